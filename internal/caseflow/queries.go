package caseflow

import (
	"context"

	"github.com/google/uuid"

	"fraudcase/internal/apperr"
	"fraudcase/internal/database"
	"fraudcase/internal/models"
	"fraudcase/internal/stages"
	"fraudcase/internal/timeline"
)

// GetCase returns a case by id or case code
func (o *Orchestrator) GetCase(ctx context.Context, principal models.Principal, ref string) (*models.Case, error) {
	if err := checkPrincipal(principal); err != nil {
		return nil, err
	}

	c, err := o.cachedCase(ctx, ref)
	if err != nil {
		return nil, err
	}

	if !canView(principal, c) {
		return nil, apperr.New(apperr.KindForbidden, "case %s belongs to another reporter", c.CaseCode)
	}
	return c, nil
}

func (o *Orchestrator) cachedCase(ctx context.Context, ref string) (*models.Case, error) {
	id, err := uuid.Parse(ref)
	if err != nil || o.cache == nil {
		return o.loadCase(ctx, ref)
	}

	if c, ok := o.cache.Get(ctx, id); ok {
		return c, nil
	}

	// Mutations invalidate while holding the case lock, so a snapshot
	// loaded under it cannot be written back over a newer commit.
	unlock := o.locks.lock(id)
	defer unlock()

	c, err := o.loadCaseByID(ctx, id)
	if err != nil {
		return nil, err
	}
	o.cache.Set(ctx, c)
	return c, nil
}

// GetTimeline returns the raw ledger for a case ordered by creation time,
// or the per-stage projection of its current round when projected is set
func (o *Orchestrator) GetTimeline(ctx context.Context, principal models.Principal, ref string, projected bool) ([]models.TimelineEntry, error) {
	c, err := o.GetCase(ctx, principal, ref)
	if err != nil {
		return nil, err
	}

	entries, err := o.ledger.Read(ctx, c.ID)
	if err != nil {
		return nil, err
	}

	if projected {
		return timeline.Project(*c, entries), nil
	}
	if entries == nil {
		entries = []models.TimelineEntry{}
	}
	return entries, nil
}

// ListCases returns a page of cases. Reporters only see their own cases.
func (o *Orchestrator) ListCases(ctx context.Context, principal models.Principal, filter *models.CaseFilter, paginate *database.Paginate) ([]models.Case, int64, error) {
	if err := checkPrincipal(principal); err != nil {
		return nil, 0, err
	}

	if filter == nil {
		filter = &models.CaseFilter{}
	}
	if principal.Role == models.RoleUser {
		scoped := *filter
		scoped.ReporterID = &principal.ID
		filter = &scoped
	}
	if filter.Status != nil && !stages.Known(*filter.Status) {
		return nil, 0, apperr.New(apperr.KindValidation, "unknown stage %q", *filter.Status)
	}
	if paginate == nil {
		paginate = database.NewPaginate(0, 0)
	}

	cases, total, err := o.store.Cases().List(ctx, filter, paginate)
	if err != nil {
		return nil, 0, apperr.Dependency(err, "failed to list cases")
	}
	if cases == nil {
		cases = []models.Case{}
	}
	return cases, total, nil
}

// GetDocument returns the legal notice generated for a case
func (o *Orchestrator) GetDocument(ctx context.Context, principal models.Principal, ref string) (*models.Document, error) {
	c, err := o.GetCase(ctx, principal, ref)
	if err != nil {
		return nil, err
	}
	if c.DocumentID == nil {
		return nil, apperr.New(apperr.KindNotFound, "no legal notice has been generated for case %s", c.CaseCode)
	}
	return o.documents.Get(ctx, o.store.Documents(), *c.DocumentID)
}

// GetScammer returns a scammer profile. Profiles aggregate several
// reporters' cases so only staff may read them.
func (o *Orchestrator) GetScammer(ctx context.Context, principal models.Principal, id uuid.UUID) (*models.ScammerProfile, error) {
	if err := staffOnly(principal, "view scammer profiles"); err != nil {
		return nil, err
	}
	return o.resolver.Get(ctx, id)
}

// SetScammerStatus changes a profile status through the resolver
func (o *Orchestrator) SetScammerStatus(ctx context.Context, principal models.Principal, id uuid.UUID, status models.ScammerStatus) (*models.ScammerProfile, error) {
	if err := staffOnly(principal, "change scammer status"); err != nil {
		return nil, err
	}
	return o.resolver.SetStatus(ctx, id, status)
}

func staffOnly(principal models.Principal, action string) error {
	if err := checkPrincipal(principal); err != nil {
		return err
	}
	if principal.Role != models.RoleAdmin && principal.Role != models.RolePolice {
		return apperr.New(apperr.KindForbidden, "role %s may not %s", principal.Role, action)
	}
	return nil
}
