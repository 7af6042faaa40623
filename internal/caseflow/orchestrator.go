// Package caseflow drives fraud cases through their investigation
// lifecycle. It is the only writer of case status and sequences the
// timeline ledger, scammer resolver, document service and notification
// dispatcher.
package caseflow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"fraudcase/internal/apperr"
	"fraudcase/internal/document"
	"fraudcase/internal/events"
	"fraudcase/internal/metrics"
	"fraudcase/internal/models"
	"fraudcase/internal/notification"
	"fraudcase/internal/repository"
	"fraudcase/internal/scammer"
	"fraudcase/internal/timeline"
)

// Dispatcher sends the legal notice to authority categories
type Dispatcher interface {
	Dispatch(ctx context.Context, req notification.Request) notification.Outcome
}

// CaseCache is a read-through cache for case records
type CaseCache interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Case, bool)
	Set(ctx context.Context, c *models.Case)
	Invalidate(ctx context.Context, id uuid.UUID)
}

// Dependencies are the collaborators of the orchestrator. Events and Cache
// are optional.
type Dependencies struct {
	Store        repository.Store
	Ledger       *timeline.Ledger
	Resolver     *scammer.Resolver
	Documents    *document.Service
	Dispatcher   Dispatcher
	Events       events.Publisher
	Cache        CaseCache
	Metrics      *metrics.Collector
	CodeAttempts int
}

// Orchestrator is the case lifecycle state machine
type Orchestrator struct {
	store        repository.Store
	ledger       *timeline.Ledger
	resolver     *scammer.Resolver
	documents    *document.Service
	dispatcher   Dispatcher
	events       events.Publisher
	cache        CaseCache
	metrics      *metrics.Collector
	logger       *zap.Logger
	locks        *caseLocks
	codeAttempts int
	newCode      func() (string, error)
	now          func() time.Time
}

// New creates an orchestrator
func New(deps Dependencies, logger *zap.Logger) *Orchestrator {
	publisher := deps.Events
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}

	attempts := deps.CodeAttempts
	if attempts <= 0 {
		attempts = 10
	}

	return &Orchestrator{
		store:        deps.Store,
		ledger:       deps.Ledger,
		resolver:     deps.Resolver,
		documents:    deps.Documents,
		dispatcher:   deps.Dispatcher,
		events:       publisher,
		cache:        deps.Cache,
		metrics:      deps.Metrics,
		logger:       logger.Named("orchestrator"),
		locks:        newCaseLocks(),
		codeAttempts: attempts,
		newCode:      newCaseCode,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// loadCase reads a case by UUID or external case code
func (o *Orchestrator) loadCase(ctx context.Context, ref string) (*models.Case, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return o.loadCaseByID(ctx, id)
	}

	if !IsCaseCode(ref) {
		return nil, apperr.New(apperr.KindValidation, "%q is neither a case id nor a case code", ref)
	}

	c, err := o.store.Cases().GetByCode(ctx, ref)
	if err != nil {
		return nil, caseLookupError(err, ref)
	}
	return c, nil
}

func (o *Orchestrator) loadCaseByID(ctx context.Context, id uuid.UUID) (*models.Case, error) {
	c, err := o.store.Cases().GetByID(ctx, id)
	if err != nil {
		return nil, caseLookupError(err, id.String())
	}
	return c, nil
}

func caseLookupError(err error, ref string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.New(apperr.KindNotFound, "case %s not found", ref)
	}
	return apperr.Dependency(err, "failed to load case")
}

// canView reports whether principal may see c. Reporters only see their
// own cases.
func canView(p models.Principal, c *models.Case) bool {
	return p.Role != models.RoleUser || c.ReporterID == p.ID
}

func checkPrincipal(p models.Principal) error {
	switch p.Role {
	case models.RoleUser, models.RoleAdmin, models.RolePolice, models.RoleSystem:
	default:
		return apperr.New(apperr.KindForbidden, "unknown role %q", p.Role)
	}
	if p.ID == "" {
		return apperr.New(apperr.KindForbidden, "principal id is required")
	}
	return nil
}

// committed drops the cached copy of a case whose change is now durable.
// The caller must still hold the case lock.
func (o *Orchestrator) committed(ctx context.Context, id uuid.UUID) {
	if o.cache != nil {
		o.cache.Invalidate(ctx, id)
	}
}

// publish emits lifecycle events once the case lock has been released.
// Failures are logged only.
func (o *Orchestrator) publish(ctx context.Context, pending ...events.Event) {
	for _, event := range pending {
		err := o.events.Publish(ctx, event)
		o.metrics.EventPublished(event.Type, err)
		if err != nil {
			o.logger.Error("Failed to publish case event",
				zap.String("type", event.Type),
				zap.String("case_id", event.CaseID.String()),
				zap.Error(err))
		}
	}
}

func (o *Orchestrator) recordFailure(stage models.Stage, err error) {
	kind := apperr.KindOf(err)
	if kind == "" {
		kind = "internal"
	}
	o.metrics.TransitionFailed(string(stage), string(kind))
}
