package caseflow

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"fraudcase/internal/apperr"
	"fraudcase/internal/events"
	"fraudcase/internal/models"
	"fraudcase/internal/repository"
	"fraudcase/internal/stages"
	"fraudcase/internal/timeline"
)

// SubmitCase validates an intake, stores the case at report_submitted and
// runs the automatic cascade. The cascade always confirms the intake
// (information_verified) and generates the legal notice (crpc_generated)
// only when a scammer profile could be resolved. Cascade failures are
// recorded on the timeline and leave the case at the last completed stage.
func (o *Orchestrator) SubmitCase(ctx context.Context, principal models.Principal, req *models.SubmitCaseRequest) (*models.Case, error) {
	if err := checkPrincipal(principal); err != nil {
		return nil, err
	}
	if !stages.Permits(principal.Role, models.StageReportSubmitted) {
		return nil, apperr.New(apperr.KindForbidden, "role %s may not submit cases", principal.Role)
	}
	if req == nil {
		return nil, apperr.New(apperr.KindValidation, "request body is required")
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	c := o.newCase(principal, req)

	if err := o.createCase(ctx, principal, c); err != nil {
		o.recordFailure(models.StageReportSubmitted, err)
		o.logger.Error("Failed to submit case", zap.String("reporter_id", principal.ID), zap.Error(err))
		return nil, err
	}

	o.metrics.CaseSubmitted()
	o.metrics.StageCompleted(string(models.StageReportSubmitted), string(principal.Role))
	o.logger.Info("Case submitted",
		zap.String("case_id", c.ID.String()),
		zap.String("case_code", c.CaseCode),
		zap.String("reporter_id", principal.ID),
		zap.String("priority", string(c.Priority)))
	o.publish(ctx, events.NewEvent(events.TypeCaseSubmitted, c, models.StageReportSubmitted, principal.Actor()))

	o.cascade(ctx, c.ID, req)

	current, err := o.loadCaseByID(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	return current, nil
}

func (o *Orchestrator) newCase(principal models.Principal, req *models.SubmitCaseRequest) *models.Case {
	now := o.now()

	reporterName := req.Form.ReporterName()
	if reporterName == "" {
		reporterName = principal.DisplayName
	}

	contact := req.Contact
	if contact == (models.ContactInfo{}) && req.Form.ContactInfo != nil {
		contact = *req.Form.ContactInfo
	}

	priority := req.Priority
	if priority == "" {
		priority = models.PriorityForAmount(*req.Amount)
	}

	return &models.Case{
		ID:           uuid.New(),
		ReporterID:   principal.ID,
		ReporterName: reporterName,
		CaseType:     req.CaseType,
		Description:  req.Description,
		Amount:       *req.Amount,
		IncidentDate: req.IncidentDate.UTC(),
		Location:     req.Location,
		Contact:      contact,
		Form:         req.Form,
		Evidence:     req.Evidence,
		Status:       models.StageReportSubmitted,
		Round:        1,
		Priority:     priority,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// createCase stores the case with a unique code and its first timeline
// entry. A code collision at insert time draws a new code.
func (o *Orchestrator) createCase(ctx context.Context, principal models.Principal, c *models.Case) error {
	for attempt := 1; ; attempt++ {
		code, err := o.uniqueCaseCode(ctx, o.store.Cases())
		if err != nil {
			return err
		}
		c.CaseCode = code

		err = o.store.WithTx(ctx, func(tx repository.Store) error {
			if err := tx.Cases().Create(ctx, c); err != nil {
				return err
			}
			_, err := o.ledger.With(tx.Timeline()).Append(ctx, timeline.Record{
				CaseID:      c.ID,
				Round:       1,
				Stage:       models.StageReportSubmitted,
				Status:      models.EntryCompleted,
				Description: "Fraud report submitted",
				Actor:       principal.Actor(),
				Metadata:    models.JSONB{"case_code": code, "priority": string(c.Priority)},
			})
			return err
		})
		if err == nil {
			return nil
		}

		if errors.Is(err, repository.ErrDuplicate) && attempt < o.codeAttempts {
			o.logger.Warn("Case code collided on insert, retrying", zap.String("case_code", code))
			continue
		}
		if apperr.KindOf(err) != "" {
			return err
		}
		return apperr.Dependency(err, "failed to store case")
	}
}

// cascade runs the mechanical stages that follow a submission
func (o *Orchestrator) cascade(ctx context.Context, caseID uuid.UUID, req *models.SubmitCaseRequest) {
	unlock := o.locks.lock(caseID)
	pending := o.runCascade(ctx, caseID, req)
	unlock()

	o.publish(ctx, pending...)
}

// runCascade advances the case as far as the intake allows and returns the
// events of the completed stages. The caller must hold the case lock.
func (o *Orchestrator) runCascade(ctx context.Context, caseID uuid.UUID, req *models.SubmitCaseRequest) []events.Event {
	verify := models.AdvanceStageRequest{
		Stage:   models.StageInformationVerified,
		Comment: "Report details confirmed at intake",
	}
	if ids, ok := req.SuspectIdentifiers(); ok {
		verify.Scammer = &ids
	}

	_, pending, err := o.advance(ctx, models.SystemPrincipal, caseID, verify)
	if err != nil {
		o.cascadeFailed(caseID, models.StageInformationVerified, err)
		return pending
	}

	c, err := o.loadCaseByID(ctx, caseID)
	if err != nil {
		o.cascadeFailed(caseID, models.StageCRPCGenerated, err)
		return pending
	}
	if c.ScammerID == nil {
		o.logger.Info("Case awaiting scammer details before notice generation",
			zap.String("case_id", caseID.String()))
		return pending
	}

	generate := models.AdvanceStageRequest{
		Stage:   models.StageCRPCGenerated,
		Comment: "Legal notice generated automatically",
	}
	_, generated, err := o.advance(ctx, models.SystemPrincipal, caseID, generate)
	if err != nil {
		o.cascadeFailed(caseID, models.StageCRPCGenerated, err)
	}
	return append(pending, generated...)
}

func (o *Orchestrator) cascadeFailed(caseID uuid.UUID, stage models.Stage, err error) {
	o.recordFailure(stage, err)
	o.logger.Error("Automatic stage cascade stopped",
		zap.String("case_id", caseID.String()),
		zap.String("stage", string(stage)),
		zap.Error(err))
}
