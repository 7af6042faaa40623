package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"fraudcase/internal/auth"
	"fraudcase/internal/caseflow"
	"fraudcase/internal/config"
	"fraudcase/internal/handlers"
	"fraudcase/internal/repository"
)

// Options are the collaborators the server exposes over HTTP
type Options struct {
	Store        repository.Store
	Orchestrator *caseflow.Orchestrator
	Auth         *auth.Service
	// Cache is reported by the readiness probe when set
	Cache    handlers.Checker
	Gatherer prometheus.Gatherer
}

// Server represents the fraud case HTTP and gRPC server
type Server struct {
	config *config.Config
	logger *zap.Logger
	opts   Options

	// Handlers
	caseHandler    *handlers.CaseHandler
	scammerHandler *handlers.ScammerHandler
	healthHandler  *handlers.HealthHandler

	// HTTP and gRPC servers
	router     *gin.Engine
	httpServer *http.Server
	grpcServer *grpc.Server

	healthServer *health.Server
}

// New creates a new server instance
func New(cfg *config.Config, logger *zap.Logger, opts Options) *Server {
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	return &Server{
		config: cfg,
		logger: logger.Named("server"),
		opts:   opts,
	}
}

// Initialize sets up the server components
func (s *Server) Initialize() error {
	s.logger.Info("Initializing fraud case server")

	if s.opts.Store == nil || s.opts.Orchestrator == nil || s.opts.Auth == nil {
		return errors.New("store, orchestrator and auth are required")
	}

	s.initHandlers()

	s.healthServer = health.NewServer()

	if err := s.initHTTPServer(); err != nil {
		return errors.Wrap(err, "failed to initialize HTTP server")
	}

	if err := s.initGRPCServer(); err != nil {
		return errors.Wrap(err, "failed to initialize gRPC server")
	}

	s.logger.Info("Server initialized successfully")
	return nil
}

func (s *Server) initHandlers() {
	s.caseHandler = handlers.NewCaseHandler(s.opts.Orchestrator, s.logger)
	s.scammerHandler = handlers.NewScammerHandler(s.opts.Orchestrator, s.logger)
	s.healthHandler = handlers.NewHealthHandler(s.opts.Store, s.opts.Cache, s.logger)
}

// initHTTPServer initializes the HTTP server with Gin
func (s *Server) initHTTPServer() error {
	s.logger.Info("Initializing HTTP server")

	if s.config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.DebugMode)
	}

	s.router = gin.New()

	s.router.Use(gin.Recovery())
	if s.config.Debug {
		s.router.Use(gin.Logger())
	}

	s.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:           fmt.Sprintf(":%d", s.config.Server.HTTPPort),
		Handler:        s.router,
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		IdleTimeout:    s.config.Server.IdleTimeout,
		MaxHeaderBytes: s.config.Server.MaxHeaderBytes,
	}

	s.logger.Info("HTTP server initialized", zap.Int("port", s.config.Server.HTTPPort))
	return nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health endpoints
	s.router.GET("/health", s.healthHandler.Health)
	s.router.GET("/health/ready", s.healthHandler.Ready)
	s.router.GET("/health/live", s.healthHandler.Live)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})))

	v1 := s.router.Group("/api/v1", s.opts.Auth.Middleware())
	{
		cases := v1.Group("/cases")
		{
			cases.POST("", s.caseHandler.SubmitCase)
			cases.GET("", s.caseHandler.ListCases)
			cases.GET("/:id", s.caseHandler.GetCase)
			cases.GET("/:id/timeline", s.caseHandler.GetTimeline)
			cases.POST("/:id/stages", s.caseHandler.AdvanceStage)
			cases.POST("/:id/notifications/retry", s.caseHandler.RetryNotifications)
			cases.GET("/:id/document", s.caseHandler.GetDocument)
		}

		scammers := v1.Group("/scammers")
		{
			scammers.GET("/:id", s.scammerHandler.GetScammer)
			scammers.PUT("/:id/status", s.scammerHandler.UpdateStatus)
		}

		v1.GET("/stages", handlers.ListStages)
	}
}

// initGRPCServer initializes the gRPC server. It only carries the
// standard health service.
func (s *Server) initGRPCServer() error {
	s.logger.Info("Initializing gRPC server")

	opts := []grpc.ServerOption{
		grpc.MaxRecvMsgSize(1024 * 1024 * 4), // 4MB
		grpc.MaxSendMsgSize(1024 * 1024 * 4), // 4MB
	}

	s.grpcServer = grpc.NewServer(opts...)

	grpc_health_v1.RegisterHealthServer(s.grpcServer, s.healthServer)

	if s.config.Debug {
		reflection.Register(s.grpcServer)
	}

	s.logger.Info("gRPC server initialized", zap.Int("port", s.config.Server.GRPCPort))
	return nil
}

// Router exposes the HTTP handler, mainly for tests
func (s *Server) Router() http.Handler {
	return s.router
}

// Start serves HTTP and gRPC until ctx is cancelled, then shuts down
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting fraud case server")

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Server.GRPCPort))
	if err != nil {
		return errors.Wrap(err, "failed to listen for gRPC")
	}

	errCh := make(chan error, 2)

	go func() {
		s.logger.Info("gRPC server listening", zap.String("address", lis.Addr().String()))
		if err := s.grpcServer.Serve(lis); err != nil {
			errCh <- errors.Wrap(err, "failed to serve gRPC")
		}
	}()

	go func() {
		s.logger.Info("HTTP server listening", zap.String("address", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- errors.Wrap(err, "failed to serve HTTP")
		}
	}()

	s.healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	s.logger.Info("Fraud case server started successfully")

	select {
	case <-ctx.Done():
		return s.Shutdown()
	case err := <-errCh:
		s.Shutdown()
		return err
	}
}

// Shutdown gracefully stops both servers
func (s *Server) Shutdown() error {
	s.logger.Info("Shutting down fraud case server")

	s.healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	timeout := s.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var shutdownErr error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("Failed to shutdown HTTP server gracefully", zap.Error(err))
		shutdownErr = err
	}

	s.grpcServer.GracefulStop()

	s.logger.Info("Fraud case server shutdown completed")
	return shutdownErr
}
