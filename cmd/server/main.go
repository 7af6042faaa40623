package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"fraudcase/internal/auth"
	"fraudcase/internal/cache"
	"fraudcase/internal/caseflow"
	"fraudcase/internal/config"
	"fraudcase/internal/database"
	"fraudcase/internal/document"
	"fraudcase/internal/events"
	"fraudcase/internal/metrics"
	"fraudcase/internal/notification"
	"fraudcase/internal/repository"
	"fraudcase/internal/repository/memory"
	"fraudcase/internal/scammer"
	"fraudcase/internal/server"
	"fraudcase/internal/timeline"
)

func main() {
	logger := initLogger()
	defer logger.Sync()

	logger.Info("Starting Fraud Case Service")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Environment),
		zap.Bool("debug", cfg.Debug),
		zap.String("store", cfg.Database.Driver))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	store, closeStore := initStore(cfg, logger)
	defer closeStore()

	var caseCache *cache.CaseCache
	if cfg.Redis.Enabled {
		client, err := cache.NewClient(ctx, cfg.Redis)
		if err != nil {
			logger.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer client.Close()
		caseCache = cache.NewCaseCache(client, cfg.Redis, collector, logger)
		logger.Info("Case cache enabled", zap.String("addr", cfg.Redis.Addr))
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.Kafka.Enabled {
		publisher = events.NewKafkaPublisher(cfg.Kafka, logger)
		logger.Info("Lifecycle events enabled",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic))
	}
	defer publisher.Close()

	mailer, err := notification.NewMailer(cfg.Notifications, logger)
	if err != nil {
		logger.Fatal("Failed to initialize mailer", zap.Error(err))
	}

	dispatcher, err := notification.NewDispatcher(mailer, cfg.Notifications, cfg.Documents.Authority, collector, logger)
	if err != nil {
		logger.Fatal("Failed to initialize notification dispatcher", zap.Error(err))
	}

	deps := caseflow.Dependencies{
		Store:        store,
		Ledger:       timeline.NewLedger(store.Timeline(), logger),
		Resolver:     scammer.NewResolver(store.Scammers(), collector, logger),
		Documents:    document.NewService(document.NewPDFRenderer(cfg.Documents), logger),
		Dispatcher:   dispatcher,
		Events:       publisher,
		Metrics:      collector,
		CodeAttempts: cfg.Cases.CodeAttempts,
	}
	opts := server.Options{
		Store:    store,
		Auth:     auth.NewService(cfg.Auth, logger),
		Gatherer: registry,
	}
	if caseCache != nil {
		deps.Cache = caseCache
		opts.Cache = caseCache
	}
	opts.Orchestrator = caseflow.New(deps, logger)

	srv := server.New(cfg, logger, opts)
	if err := srv.Initialize(); err != nil {
		logger.Fatal("Failed to initialize server", zap.Error(err))
	}

	if err := srv.Start(ctx); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
	}

	logger.Info("Fraud Case Service stopped")
}

// initStore opens the configured store and returns its close function
func initStore(cfg *config.Config, logger *zap.Logger) (repository.Store, func()) {
	if cfg.Database.Driver == "memory" {
		logger.Warn("Using in-memory store; data is lost on restart")
		return memory.New(), func() {}
	}

	db, err := database.New(&cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}

	if err := db.RunMigrations(); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	return repository.NewGormStore(db, logger), func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", zap.Error(err))
		}
	}
}

// initLogger initializes the zap logger
func initLogger() *zap.Logger {
	var config zap.Config

	env := os.Getenv("ENVIRONMENT")
	if env == "production" {
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	} else {
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	config.DisableCaller = false
	config.DisableStacktrace = false

	logger, err := config.Build()
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	return logger
}
