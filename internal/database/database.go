package database

import (
	"context"
	"database/sql"
	"net/url"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"fraudcase/internal/config"
)

// Database represents the database connection and operations
type Database struct {
	db     *gorm.DB
	logger *zap.Logger
	config *config.DatabaseConfig
}

// New creates a new database instance
func New(cfg *config.DatabaseConfig, logger *zap.Logger) (*Database, error) {
	if cfg == nil {
		return nil, errors.New("database config is required")
	}

	if logger == nil {
		return nil, errors.New("logger is required")
	}

	db := &Database{
		logger: logger.Named("database"),
		config: cfg,
	}

	if err := db.connect(); err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	return db, nil
}

// connect establishes database connection with proper configuration
func (d *Database) connect() error {
	d.logger.Info("Connecting to database",
		zap.String("dsn", MaskDSN(d.config.DSN)))

	gdb, err := gorm.Open(postgres.Open(d.config.DSN), &gorm.Config{
		Logger:         newQueryLogger(d.logger, d.config),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return errors.Wrap(err, "failed to open postgres")
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return errors.Wrap(err, "failed to access connection pool")
	}

	sqlDB.SetMaxOpenConns(d.config.MaxOpenConnections)
	sqlDB.SetMaxIdleConns(d.config.MaxIdleConnections)
	sqlDB.SetConnMaxLifetime(d.config.ConnectionLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), d.config.ConnectionTimeout)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return errors.Wrap(err, "failed to ping database")
	}

	d.db = gdb
	d.logger.Info("Successfully connected to database")
	return nil
}

// Close closes the database connection
func (d *Database) Close() error {
	if d.db == nil {
		return nil
	}
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	d.logger.Info("Closing database connection")
	return sqlDB.Close()
}

// DB returns the underlying gorm handle
func (d *Database) DB() *gorm.DB {
	return d.db
}

// QueryTimeout returns the per-query deadline. Zero disables it.
func (d *Database) QueryTimeout() time.Duration {
	return d.config.QueryTimeout
}

// Health checks the database health
func (d *Database) Health(ctx context.Context) error {
	if d.db == nil {
		return errors.New("database connection not initialized")
	}

	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return sqlDB.PingContext(ctx)
}

// RunMigrations executes database migrations. They run on a dedicated
// connection that is closed afterwards, leaving the query pool untouched.
func (d *Database) RunMigrations() error {
	d.logger.Info("Running database migrations", zap.String("path", d.config.MigrationPath))

	migrationDB, err := sql.Open("pgx", d.config.DSN)
	if err != nil {
		return errors.Wrap(err, "failed to open migration connection")
	}

	driver, err := migratepg.WithInstance(migrationDB, &migratepg.Config{})
	if err != nil {
		migrationDB.Close()
		return errors.Wrap(err, "failed to create migration driver")
	}

	m, err := migrate.NewWithDatabaseInstance(d.config.MigrationPath, "postgres", driver)
	if err != nil {
		driver.Close()
		return errors.Wrap(err, "failed to create migration instance")
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil || dbErr != nil {
			d.logger.Warn("Failed to close migration connection",
				zap.NamedError("source_error", srcErr),
				zap.NamedError("database_error", dbErr))
		}
	}()

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return errors.Wrap(err, "failed to run migrations")
	}

	if err == migrate.ErrNoChange {
		d.logger.Info("No new migrations to apply")
	} else {
		d.logger.Info("Successfully applied database migrations")
	}

	return nil
}

// MaskDSN hides the password of a connection URL for logging
func MaskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// Paginate provides pagination parameters for queries
type Paginate struct {
	Limit  int `json:"limit" form:"limit"`
	Offset int `json:"offset" form:"offset"`
}

// NewPaginate creates a new pagination instance with defaults
func NewPaginate(limit, offset int) *Paginate {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return &Paginate{
		Limit:  limit,
		Offset: offset,
	}
}

// PaginatedResult represents a paginated query result
type PaginatedResult struct {
	Data       interface{} `json:"data"`
	Total      int64       `json:"total"`
	Limit      int         `json:"limit"`
	Offset     int         `json:"offset"`
	TotalPages int         `json:"total_pages"`
	HasNext    bool        `json:"has_next"`
	HasPrev    bool        `json:"has_prev"`
}

// NewPaginatedResult creates a new paginated result
func NewPaginatedResult(data interface{}, total int64, paginate *Paginate) *PaginatedResult {
	totalPages := int((total + int64(paginate.Limit) - 1) / int64(paginate.Limit))
	hasNext := paginate.Offset+paginate.Limit < int(total)
	hasPrev := paginate.Offset > 0

	return &PaginatedResult{
		Data:       data,
		Total:      total,
		Limit:      paginate.Limit,
		Offset:     paginate.Offset,
		TotalPages: totalPages,
		HasNext:    hasNext,
		HasPrev:    hasPrev,
	}
}
