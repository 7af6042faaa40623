package timeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"fraudcase/internal/apperr"
	"fraudcase/internal/models"
	"fraudcase/internal/repository"
	"fraudcase/internal/stages"
)

// Record is a fact to append to a case timeline
type Record struct {
	CaseID      uuid.UUID
	Round       int
	Stage       models.Stage
	Status      models.EntryStatus
	Description string
	Actor       models.Actor
	Metadata    models.JSONB
}

// Ledger is the append-only record of stage completions for each case
type Ledger struct {
	repo   repository.TimelineRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewLedger creates a ledger over a timeline repository
func NewLedger(repo repository.TimelineRepository, logger *zap.Logger) *Ledger {
	return &Ledger{
		repo:   repo,
		logger: logger.Named("timeline"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// With returns a ledger writing through repo, typically a transaction-bound one
func (l *Ledger) With(repo repository.TimelineRepository) *Ledger {
	return &Ledger{repo: repo, logger: l.logger, now: l.now}
}

// Append records a new entry. A second completed entry for the same
// (case, stage, round) fails with a duplicate_stage error.
func (l *Ledger) Append(ctx context.Context, rec Record) (*models.TimelineEntry, error) {
	if !stages.Known(rec.Stage) {
		return nil, apperr.New(apperr.KindValidation, "unknown stage %q", rec.Stage)
	}

	switch rec.Status {
	case models.EntryPending, models.EntryCompleted, models.EntryFailed:
	default:
		return nil, apperr.New(apperr.KindValidation, "unknown entry status %q", rec.Status)
	}

	if rec.Round <= 0 {
		rec.Round = 1
	}

	if rec.Status == models.EntryCompleted {
		_, err := l.repo.FindCompleted(ctx, rec.CaseID, rec.Stage, rec.Round)
		switch {
		case err == nil:
			return nil, duplicate(rec)
		case !errors.Is(err, repository.ErrNotFound):
			return nil, apperr.Dependency(err, "failed to check timeline")
		}
	}

	now := l.now()
	entry := &models.TimelineEntry{
		ID:          uuid.New(),
		CaseID:      rec.CaseID,
		Round:       rec.Round,
		Stage:       rec.Stage,
		Label:       stages.Label(rec.Stage),
		Status:      rec.Status,
		Description: rec.Description,
		Actor:       rec.Actor,
		Metadata:    rec.Metadata,
		CreatedAt:   now,
	}
	if rec.Status == models.EntryCompleted {
		entry.CompletedAt = &now
	}

	if err := l.repo.Insert(ctx, entry); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, duplicate(rec)
		}
		return nil, apperr.Dependency(err, "failed to append timeline entry")
	}

	l.logger.Debug("Timeline entry appended",
		zap.String("case_id", rec.CaseID.String()),
		zap.String("stage", string(rec.Stage)),
		zap.String("status", string(rec.Status)),
		zap.Int("round", rec.Round))

	return entry, nil
}

// Read returns every entry for a case ordered by creation time
func (l *Ledger) Read(ctx context.Context, caseID uuid.UUID) ([]models.TimelineEntry, error) {
	entries, err := l.repo.ListByCase(ctx, caseID)
	if err != nil {
		return nil, apperr.Dependency(err, "failed to read timeline")
	}
	return entries, nil
}

// IsCompleted reports whether stage already has a completed entry in round
func (l *Ledger) IsCompleted(ctx context.Context, caseID uuid.UUID, stage models.Stage, round int) (bool, error) {
	_, err := l.repo.FindCompleted(ctx, caseID, stage, round)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, repository.ErrNotFound):
		return false, nil
	default:
		return false, apperr.Dependency(err, "failed to check timeline")
	}
}

func duplicate(rec Record) error {
	return apperr.New(apperr.KindDuplicateStage,
		"stage %s is already completed for this case", rec.Stage)
}
