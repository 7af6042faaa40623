package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"fraudcase/internal/models"
)

type timelineRepository struct {
	conn
}

// Insert appends an entry. The partial unique index on
// (case_id, stage, round) WHERE status = 'completed' turns a second
// completion into ErrDuplicate.
func (r *timelineRepository) Insert(ctx context.Context, entry *models.TimelineEntry) error {
	db, cancel := r.session(ctx)
	defer cancel()

	err := db.Create(entry).Error
	return translate(err, "failed to create timeline entry")
}

// FindCompleted returns the completed entry for a stage in a round
func (r *timelineRepository) FindCompleted(ctx context.Context, caseID uuid.UUID, stage models.Stage, round int) (*models.TimelineEntry, error) {
	db, cancel := r.session(ctx)
	defer cancel()

	var entry models.TimelineEntry
	err := db.
		Where("case_id = ? AND stage = ? AND round = ? AND status = ?", caseID, stage, round, models.EntryCompleted).
		First(&entry).Error
	if err != nil {
		return nil, translate(err, "failed to get completed timeline entry")
	}
	return &entry, nil
}

// ListByCase returns every entry for a case in insertion order
func (r *timelineRepository) ListByCase(ctx context.Context, caseID uuid.UUID) ([]models.TimelineEntry, error) {
	db, cancel := r.session(ctx)
	defer cancel()

	var entries []models.TimelineEntry
	err := db.
		Where("case_id = ?", caseID).
		Order("created_at ASC, seq ASC").
		Find(&entries).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get timeline entries")
	}
	return entries, nil
}
