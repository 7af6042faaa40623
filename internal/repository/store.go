package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"fraudcase/internal/database"
	"fraudcase/internal/models"
)

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a uniqueness constraint rejects a write
	ErrDuplicate = errors.New("duplicate record")
)

// CaseRepository persists cases
type CaseRepository interface {
	Create(ctx context.Context, c *models.Case) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Case, error)
	GetByCode(ctx context.Context, code string) (*models.Case, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	Update(ctx context.Context, c *models.Case) error
	List(ctx context.Context, filter *models.CaseFilter, paginate *database.Paginate) ([]models.Case, int64, error)
}

// TimelineRepository persists timeline entries. Insert must reject a second
// completed entry for the same (case, stage, round) with ErrDuplicate.
type TimelineRepository interface {
	Insert(ctx context.Context, entry *models.TimelineEntry) error
	FindCompleted(ctx context.Context, caseID uuid.UUID, stage models.Stage, round int) (*models.TimelineEntry, error)
	ListByCase(ctx context.Context, caseID uuid.UUID) ([]models.TimelineEntry, error)
}

// ScammerRepository persists scammer profiles
type ScammerRepository interface {
	Create(ctx context.Context, profile *models.ScammerProfile) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ScammerProfile, error)
	// FindByIdentifiers returns profiles sharing any non-empty identifier,
	// oldest first.
	FindByIdentifiers(ctx context.Context, ids models.ScammerIdentifiers) ([]models.ScammerProfile, error)
	// LinkCase adds caseID to the profile once and refreshes last seen.
	LinkCase(ctx context.Context, id, caseID uuid.UUID, seenAt time.Time) (*models.ScammerProfile, error)
	// FillIdentifiers sets identifier fields that are still empty on the profile.
	FillIdentifiers(ctx context.Context, id uuid.UUID, ids models.ScammerIdentifiers) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.ScammerStatus) error
}

// DocumentRepository persists rendered documents
type DocumentRepository interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error)
}

// NotificationRepository persists notification attempts for audit
type NotificationRepository interface {
	CreateAttempts(ctx context.Context, attempts []models.NotificationAttempt) error
	ListByCase(ctx context.Context, caseID uuid.UUID) ([]models.NotificationAttempt, error)
}

// Store groups the repositories behind one transactional boundary
type Store interface {
	Cases() CaseRepository
	Timeline() TimelineRepository
	Scammers() ScammerRepository
	Documents() DocumentRepository
	Notifications() NotificationRepository
	// WithTx runs fn against a store bound to a single transaction. The
	// transaction commits only if fn returns nil.
	WithTx(ctx context.Context, fn func(Store) error) error
	Health(ctx context.Context) error
}
