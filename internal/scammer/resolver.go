package scammer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"fraudcase/internal/apperr"
	"fraudcase/internal/metrics"
	"fraudcase/internal/models"
	"fraudcase/internal/repository"
)

// Result is the outcome of resolving a suspect against known profiles
type Result struct {
	ScammerID uuid.UUID
	IsNew     bool
	Profile   *models.ScammerProfile
}

// Resolver deduplicates reported bad actors. It is the only component that
// writes scammer profiles.
type Resolver struct {
	repo    repository.ScammerRepository
	metrics *metrics.Collector
	logger  *zap.Logger
	now     func() time.Time

	// serializes find-or-create so two reports sharing an identifier in
	// this process cannot both create a profile
	mu sync.Mutex
}

// NewResolver creates a resolver over the scammer repository
func NewResolver(repo repository.ScammerRepository, collector *metrics.Collector, logger *zap.Logger) *Resolver {
	return &Resolver{
		repo:    repo,
		metrics: collector,
		logger:  logger.Named("scammer_resolver"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Resolve links caseID to the profile sharing any identifier with ids, or
// creates a new profile. Repeating the call for the same case is a no-op
// apart from refreshing last seen.
func (r *Resolver) Resolve(ctx context.Context, ids models.ScammerIdentifiers, caseID uuid.UUID) (*Result, error) {
	ids = Standardize(ids)
	if !ids.HasIdentifiers() {
		return nil, apperr.New(apperr.KindValidation,
			"at least one of phone, email, payment handle, bank account or routing code is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	candidates, err := r.repo.FindByIdentifiers(ctx, ids)
	if err != nil {
		return nil, apperr.Dependency(err, "failed to search scammer profiles")
	}

	if len(candidates) == 0 {
		return r.create(ctx, ids, caseID)
	}

	chosen := candidates[0]
	if len(candidates) > 1 {
		others := make([]string, 0, len(candidates)-1)
		for _, c := range candidates[1:] {
			others = append(others, c.ID.String())
		}
		r.logger.Warn("Identifiers match several scammer profiles, using the oldest",
			zap.String("scammer_id", chosen.ID.String()),
			zap.Strings("other_ids", others),
			zap.String("case_id", caseID.String()))
	}

	if err := r.repo.FillIdentifiers(ctx, chosen.ID, ids); err != nil {
		return nil, apperr.Dependency(err, "failed to augment scammer profile")
	}

	profile, err := r.repo.LinkCase(ctx, chosen.ID, caseID, r.now())
	if err != nil {
		return nil, apperr.Dependency(err, "failed to link case to scammer profile")
	}

	r.metrics.ScammerResolved(false)
	r.logger.Info("Case linked to existing scammer profile",
		zap.String("scammer_id", profile.ID.String()),
		zap.String("case_id", caseID.String()),
		zap.Int("case_count", profile.CaseCount))

	return &Result{ScammerID: profile.ID, Profile: profile}, nil
}

func (r *Resolver) create(ctx context.Context, ids models.ScammerIdentifiers, caseID uuid.UUID) (*Result, error) {
	now := r.now()
	profile := &models.ScammerProfile{
		ID:            uuid.New(),
		Name:          ids.Name,
		Phone:         ids.Phone,
		Email:         ids.Email,
		PaymentHandle: ids.PaymentHandle,
		BankAccount:   ids.BankAccount,
		RoutingCode:   ids.RoutingCode,
		Address:       ids.Address,
		CaseIDs:       []uuid.UUID{caseID},
		CaseCount:     1,
		FirstSeen:     now,
		LastSeen:      now,
		Status:        models.ScammerActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := r.repo.Create(ctx, profile); err != nil {
		return nil, apperr.Dependency(err, "failed to create scammer profile")
	}

	r.metrics.ScammerResolved(true)
	r.logger.Info("Scammer profile created",
		zap.String("scammer_id", profile.ID.String()),
		zap.String("case_id", caseID.String()))

	return &Result{ScammerID: profile.ID, IsNew: true, Profile: profile}, nil
}

// Get returns a scammer profile
func (r *Resolver) Get(ctx context.Context, id uuid.UUID) (*models.ScammerProfile, error) {
	profile, err := r.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "scammer %s not found", id)
		}
		return nil, apperr.Dependency(err, "failed to get scammer profile")
	}
	return profile, nil
}

// SetStatus changes the status of a profile
func (r *Resolver) SetStatus(ctx context.Context, id uuid.UUID, status models.ScammerStatus) (*models.ScammerProfile, error) {
	if !status.Valid() {
		return nil, apperr.New(apperr.KindValidation, "unknown scammer status %q", status)
	}

	if err := r.repo.UpdateStatus(ctx, id, status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "scammer %s not found", id)
		}
		return nil, apperr.Dependency(err, "failed to update scammer status")
	}

	r.logger.Info("Scammer status updated",
		zap.String("scammer_id", id.String()),
		zap.String("status", string(status)))

	return r.Get(ctx, id)
}
