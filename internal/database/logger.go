package database

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"fraudcase/internal/config"
)

// queryLogger routes gorm statements through zap with slow query detection
type queryLogger struct {
	logger        *zap.Logger
	logQueries    bool
	slowThreshold time.Duration
}

func newQueryLogger(logger *zap.Logger, cfg *config.DatabaseConfig) *queryLogger {
	return &queryLogger{
		logger:        logger.Named("query"),
		logQueries:    cfg.EnableQueryLogging,
		slowThreshold: cfg.SlowQueryThreshold,
	}
}

func (l *queryLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface {
	return l
}

func (l *queryLogger) Info(_ context.Context, msg string, args ...interface{}) {
	l.logger.Sugar().Infof(msg, args...)
}

func (l *queryLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	l.logger.Sugar().Warnf(msg, args...)
}

func (l *queryLogger) Error(_ context.Context, msg string, args ...interface{}) {
	l.logger.Sugar().Errorf(msg, args...)
}

func (l *queryLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	duration := time.Since(begin)

	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		query, rows := fc()
		l.logger.Error("Database query failed",
			zap.String("query", query),
			zap.Int64("rows", rows),
			zap.Duration("duration", duration),
			zap.Error(err))
		return
	}

	if l.slowThreshold > 0 && duration > l.slowThreshold {
		query, rows := fc()
		l.logger.Warn("Slow query detected",
			zap.String("query", query),
			zap.Int64("rows", rows),
			zap.Duration("duration", duration),
			zap.Duration("threshold", l.slowThreshold))
		return
	}

	if l.logQueries {
		query, rows := fc()
		l.logger.Debug("Database query executed",
			zap.String("query", query),
			zap.Int64("rows", rows),
			zap.Duration("duration", duration))
	}
}
