package caseflow

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fraudcase/internal/apperr"
	"fraudcase/internal/events"
	"fraudcase/internal/metrics"
	"fraudcase/internal/models"
	"fraudcase/internal/notification"
	"fraudcase/internal/repository"
	"fraudcase/internal/stages"
	"fraudcase/internal/timeline"
)

// transition is a stage advance being prepared and committed
type transition struct {
	c        *models.Case
	from     models.Stage
	target   models.Stage
	round    int
	actor    models.Actor
	comment  string
	scammer  *models.ScammerProfile
	render   bool
	outcome  *notification.Outcome
	metadata models.JSONB
}

// AdvanceStage moves the case identified by ref (id or case code) to
// req.Stage on behalf of principal. Naming the stage the case already
// completed in its current round is a no-op that reports AlreadyCompleted.
func (o *Orchestrator) AdvanceStage(ctx context.Context, principal models.Principal, ref string, req models.AdvanceStageRequest) (*models.StageResult, error) {
	timer := metrics.NewTimer()

	result, err := o.advanceRef(ctx, principal, ref, req)
	if err != nil {
		o.recordFailure(req.Stage, err)
		o.logTransitionError(ref, req.Stage, principal, err)
		return nil, err
	}

	timer.ObserveTransition(o.metrics, string(req.Stage))
	return result, nil
}

func (o *Orchestrator) advanceRef(ctx context.Context, principal models.Principal, ref string, req models.AdvanceStageRequest) (*models.StageResult, error) {
	if err := checkPrincipal(principal); err != nil {
		return nil, err
	}

	c, err := o.loadCase(ctx, ref)
	if err != nil {
		return nil, err
	}

	unlock := o.locks.lock(c.ID)
	result, pending, err := o.advance(ctx, principal, c.ID, req)
	unlock()

	o.publish(ctx, pending...)
	return result, err
}

// advance performs one transition and returns the events to publish once
// the case lock is released. The caller must hold the case lock.
func (o *Orchestrator) advance(ctx context.Context, principal models.Principal, caseID uuid.UUID, req models.AdvanceStageRequest) (*models.StageResult, []events.Event, error) {
	c, err := o.loadCaseByID(ctx, caseID)
	if err != nil {
		return nil, nil, err
	}

	if !canView(principal, c) {
		return nil, nil, apperr.New(apperr.KindForbidden, "case %s belongs to another reporter", c.CaseCode)
	}

	target := req.Stage
	if !stages.Known(target) {
		return nil, nil, apperr.New(apperr.KindValidation, "unknown stage %q", target)
	}

	if def, _ := stages.Lookup(c.Status); def.Terminal {
		return nil, nil, apperr.New(apperr.KindInvalidTransition,
			"case %s is %s and cannot change", c.CaseCode, c.Status)
	}

	if target == c.Status {
		done, err := o.ledger.IsCompleted(ctx, c.ID, target, c.Round)
		if err != nil {
			return nil, nil, err
		}
		if done {
			return alreadyCompleted(c), nil, nil
		}
	}

	if !stages.CanTransition(c.Status, target) {
		return nil, nil, apperr.New(apperr.KindInvalidTransition,
			"cannot move case from %s to %s", c.Status, target)
	}

	if !stages.Permits(principal.Role, target) {
		return nil, nil, apperr.New(apperr.KindForbidden,
			"role %s may not move a case to %s", principal.Role, target)
	}

	t := &transition{
		c:        c,
		from:     c.Status,
		target:   target,
		round:    c.Round,
		actor:    principal.Actor(),
		comment:  strings.TrimSpace(req.Comment),
		metadata: models.JSONB{},
	}
	if t.comment != "" {
		t.metadata["comment"] = t.comment
	}

	if err := o.prepare(ctx, principal, t, req); err != nil {
		if apperr.Is(err, apperr.KindDependencyFailure) {
			o.appendFailed(ctx, t, err)
		}
		return nil, nil, err
	}

	entry, err := o.commit(ctx, t)
	if err != nil {
		if apperr.Is(err, apperr.KindDuplicateStage) {
			current, loadErr := o.loadCaseByID(ctx, caseID)
			if loadErr != nil {
				return nil, nil, loadErr
			}
			return alreadyCompleted(current), nil, nil
		}
		return nil, nil, err
	}

	o.metrics.StageCompleted(string(target), string(principal.Role))
	o.logger.Info("Case stage advanced",
		zap.String("case_id", c.ID.String()),
		zap.String("case_code", c.CaseCode),
		zap.String("from", string(t.from)),
		zap.String("to", string(target)),
		zap.String("actor_id", principal.ID),
		zap.String("actor_role", string(principal.Role)))

	o.committed(ctx, c.ID)
	pending := []events.Event{events.NewEvent(events.TypeStageAdvanced, t.c, target, t.actor)}
	if t.outcome != nil {
		event := events.NewEvent(events.TypeNotificationsDispatched, t.c, target, t.actor)
		event.Metadata = map[string]interface{}{"failed_categories": t.outcome.Results.Failed()}
		pending = append(pending, event)
	}

	result := &models.StageResult{
		CaseID:         c.ID,
		PreviousStatus: t.from,
		Status:         target,
		Entry:          entry,
	}
	if t.render {
		result.DocumentID = t.c.DocumentID
	}
	if t.outcome != nil {
		result.Notifications = t.outcome.Results
	}
	return result, pending, nil
}

// prepare validates stage preconditions and performs side effects that
// happen outside the store transaction
func (o *Orchestrator) prepare(ctx context.Context, principal models.Principal, t *transition, req models.AdvanceStageRequest) error {
	switch t.target {
	case models.StageReportSubmitted:
		t.round = t.c.Round + 1
		t.metadata["round"] = t.round

	case models.StageInformationVerified:
		if err := o.linkInlineScammer(ctx, t, req.Scammer); err != nil {
			return err
		}
		if t.c.ScammerID == nil {
			if t.comment == "" {
				return apperr.New(apperr.KindValidation,
					"verification requires scammer details or an override comment")
			}
			t.metadata["scammer_pending"] = true
		}

	case models.StageCRPCGenerated:
		if err := o.linkInlineScammer(ctx, t, req.Scammer); err != nil {
			return err
		}
		if t.c.ScammerID == nil {
			return apperr.New(apperr.KindValidation,
				"scammer details are required to generate the legal notice")
		}
		profile, err := o.resolver.Get(ctx, *t.c.ScammerID)
		if err != nil {
			return err
		}
		t.scammer = profile
		t.render = true

	case models.StageEmailsSent:
		if t.c.DocumentID == nil {
			return apperr.New(apperr.KindValidation, "case %s has no legal notice to send", t.c.CaseCode)
		}
		if err := o.dispatch(ctx, t, models.AllCategories); err != nil {
			return err
		}
		t.c.Notifications = t.outcome.Results
		t.metadata["notifications"] = notificationMetadata(t.outcome.Results)

	case models.StageAssignedToPolice:
		if req.Assignee == nil {
			return apperr.New(apperr.KindValidation, "an assignee is required to assign the case to police")
		}
		if err := validateStruct(req.Assignee); err != nil {
			return err
		}
		assign(t, req.Assignee.OfficerID, req.Assignee.OfficerName)

	case models.StageUnderInvestigation, models.StageEvidenceCollected, models.StageResolved:
		if t.c.AssignedOfficerID == nil && principal.Role == models.RolePolice {
			assign(t, principal.ID, principal.DisplayName)
		}
	}
	return nil
}

// linkInlineScammer resolves identifiers supplied with the request and
// links the resulting profile to the case
func (o *Orchestrator) linkInlineScammer(ctx context.Context, t *transition, ids *models.ScammerIdentifiers) error {
	if ids == nil {
		return nil
	}
	if t.c.ScammerID != nil {
		return apperr.New(apperr.KindValidation, "case %s is already linked to a scammer profile", t.c.CaseCode)
	}
	if err := validateStruct(ids); err != nil {
		return err
	}

	res, err := o.resolver.Resolve(ctx, *ids, t.c.ID)
	if err != nil {
		return err
	}

	id := res.ScammerID
	t.c.ScammerID = &id
	t.scammer = res.Profile
	t.metadata["scammer_id"] = id.String()
	t.metadata["scammer_is_new"] = res.IsNew
	return nil
}

func (o *Orchestrator) dispatch(ctx context.Context, t *transition, categories []models.Category) error {
	doc, err := o.documents.Get(ctx, o.store.Documents(), *t.c.DocumentID)
	if err != nil {
		return err
	}

	var profile *models.ScammerProfile
	if t.c.ScammerID != nil {
		if profile, err = o.resolver.Get(ctx, *t.c.ScammerID); err != nil {
			return err
		}
	}

	outcome := o.dispatcher.Dispatch(ctx, notification.Request{
		Case:       *t.c,
		Scammer:    profile,
		Document:   doc,
		Categories: categories,
	})
	t.outcome = &outcome
	return nil
}

func assign(t *transition, officerID, officerName string) {
	t.c.AssignedOfficerID = &officerID
	t.c.AssignedOfficerName = &officerName
	t.metadata["officer_id"] = officerID
	t.metadata["officer_name"] = officerName
}

// commit writes the document, notification attempts, the completed entry
// and the new case status in one transaction
func (o *Orchestrator) commit(ctx context.Context, t *transition) (*models.TimelineEntry, error) {
	var (
		entry     *models.TimelineEntry
		renderErr error
	)

	err := o.store.WithTx(ctx, func(tx repository.Store) error {
		if t.render {
			doc, err := o.documents.Generate(ctx, tx.Documents(), *t.c, t.scammer)
			if err != nil {
				renderErr = err
				return err
			}
			t.c.DocumentID = &doc.ID
			t.metadata["document_id"] = doc.ID.String()
			t.metadata["document_digest"] = doc.Digest
		}

		if t.outcome != nil && len(t.outcome.Attempts) > 0 {
			if err := tx.Notifications().CreateAttempts(ctx, t.outcome.Attempts); err != nil {
				return apperr.Dependency(err, "failed to record notification attempts")
			}
		}

		e, err := o.ledger.With(tx.Timeline()).Append(ctx, timeline.Record{
			CaseID:      t.c.ID,
			Round:       t.round,
			Stage:       t.target,
			Status:      models.EntryCompleted,
			Description: t.description(),
			Actor:       t.actor,
			Metadata:    t.metadata,
		})
		if err != nil {
			return err
		}

		t.c.Status = t.target
		t.c.Round = t.round
		t.c.UpdatedAt = o.now()
		if err := tx.Cases().Update(ctx, t.c); err != nil {
			return apperr.Dependency(err, "failed to update case")
		}

		entry = e
		return nil
	})
	if err != nil {
		if renderErr != nil {
			o.appendFailed(ctx, t, renderErr)
		}
		if apperr.KindOf(err) == "" {
			return nil, apperr.Dependency(err, "failed to commit stage transition")
		}
		return nil, err
	}
	return entry, nil
}

func (t *transition) description() string {
	if t.comment != "" {
		return t.comment
	}
	def, _ := stages.Lookup(t.target)
	return def.Description
}

// appendFailed records a failed attempt for audit. The case is unchanged.
func (o *Orchestrator) appendFailed(ctx context.Context, t *transition, cause error) {
	meta := models.JSONB{"error": apperr.Message(cause)}
	for k, v := range t.metadata {
		if k == "comment" || k == "scammer_id" {
			meta[k] = v
		}
	}

	_, err := o.ledger.Append(ctx, timeline.Record{
		CaseID:      t.c.ID,
		Round:       t.round,
		Stage:       t.target,
		Status:      models.EntryFailed,
		Description: "Stage could not be completed: " + apperr.Message(cause),
		Actor:       t.actor,
		Metadata:    meta,
	})
	if err != nil {
		o.logger.Error("Failed to record failed stage attempt",
			zap.String("case_id", t.c.ID.String()),
			zap.String("stage", string(t.target)),
			zap.Error(err))
	}
}

func alreadyCompleted(c *models.Case) *models.StageResult {
	return &models.StageResult{
		CaseID:           c.ID,
		PreviousStatus:   c.Status,
		Status:           c.Status,
		AlreadyCompleted: true,
		DocumentID:       c.DocumentID,
		Notifications:    c.Notifications,
	}
}

func notificationMetadata(results models.NotificationResults) map[string]interface{} {
	out := make(map[string]interface{}, len(results))
	for category, r := range results {
		entry := map[string]interface{}{
			"recipient": r.Recipient,
			"success":   r.Success,
			"sent_at":   r.SentAt,
		}
		if r.Error != "" {
			entry["error"] = r.Error
		}
		if r.MessageID != "" {
			entry["message_id"] = r.MessageID
		}
		out[string(category)] = entry
	}
	return out
}

func (o *Orchestrator) logTransitionError(ref string, stage models.Stage, principal models.Principal, err error) {
	fields := []zap.Field{
		zap.String("case", ref),
		zap.String("stage", string(stage)),
		zap.String("actor_id", principal.ID),
		zap.String("actor_role", string(principal.Role)),
		zap.Error(err),
	}
	if apperr.Is(err, apperr.KindDependencyFailure) {
		o.logger.Error("Stage transition failed", fields...)
		return
	}
	o.logger.Warn("Stage transition rejected", fields...)
}
