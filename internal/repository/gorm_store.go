package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"fraudcase/internal/database"
)

// GormStore implements Store on top of postgres via gorm
type GormStore struct {
	conn
	health func(context.Context) error
	logger *zap.Logger
}

// NewGormStore creates a store over an open database. Every repository
// call runs under the database query timeout.
func NewGormStore(db *database.Database, logger *zap.Logger) *GormStore {
	return &GormStore{
		conn:   conn{db: db.DB(), timeout: db.QueryTimeout()},
		health: db.Health,
		logger: logger.Named("repository"),
	}
}

// conn is a gorm handle plus the deadline applied to each query
type conn struct {
	db      *gorm.DB
	timeout time.Duration
}

// session binds ctx to the handle, bounded by the query timeout
func (c conn) session(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	if c.timeout <= 0 {
		return c.db.WithContext(ctx), func() {}
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	return c.db.WithContext(ctx), cancel
}

func (s *GormStore) Cases() CaseRepository {
	return &caseRepository{conn: s.conn}
}

func (s *GormStore) Timeline() TimelineRepository {
	return &timelineRepository{conn: s.conn}
}

func (s *GormStore) Scammers() ScammerRepository {
	return &scammerRepository{conn: s.conn}
}

func (s *GormStore) Documents() DocumentRepository {
	return &documentRepository{conn: s.conn}
}

func (s *GormStore) Notifications() NotificationRepository {
	return &notificationRepository{conn: s.conn}
}

// WithTx executes fn within a database transaction. Statements inside fn
// keep the per-query timeout.
func (s *GormStore) WithTx(ctx context.Context, fn func(Store) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{
			conn:   conn{db: tx, timeout: s.timeout},
			health: s.health,
			logger: s.logger,
		})
	})
	if err != nil {
		s.logger.Debug("Transaction rolled back", zap.Error(err))
	}
	return err
}

func (s *GormStore) Health(ctx context.Context) error {
	return s.health(ctx)
}

// translate maps gorm errors onto the repository sentinels
func translate(err error, message string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return errors.Wrap(err, message)
	}
}
