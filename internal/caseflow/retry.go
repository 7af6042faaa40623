package caseflow

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fraudcase/internal/apperr"
	"fraudcase/internal/events"
	"fraudcase/internal/models"
	"fraudcase/internal/repository"
	"fraudcase/internal/stages"
)

// RetryNotifications re-sends the legal notice to the categories whose
// last attempt failed and merges the outcomes into the case snapshot. It
// never writes a timeline completion.
func (o *Orchestrator) RetryNotifications(ctx context.Context, principal models.Principal, ref string) (*models.StageResult, error) {
	if err := checkPrincipal(principal); err != nil {
		return nil, err
	}
	if principal.Role != models.RoleAdmin {
		return nil, apperr.New(apperr.KindForbidden, "role %s may not retry notifications", principal.Role)
	}

	c, err := o.loadCase(ctx, ref)
	if err != nil {
		return nil, err
	}

	unlock := o.locks.lock(c.ID)
	result, pending, err := o.retry(ctx, principal, c.ID)
	unlock()

	o.publish(ctx, pending...)
	return result, err
}

// retry re-sends failed categories. The caller must hold the case lock.
func (o *Orchestrator) retry(ctx context.Context, principal models.Principal, caseID uuid.UUID) (*models.StageResult, []events.Event, error) {
	c, err := o.loadCaseByID(ctx, caseID)
	if err != nil {
		return nil, nil, err
	}

	sent, err := o.ledger.IsCompleted(ctx, c.ID, models.StageEmailsSent, c.Round)
	if err != nil {
		return nil, nil, err
	}
	if !sent || stages.Order(c.Status) < stages.Order(models.StageEmailsSent) {
		return nil, nil, apperr.New(apperr.KindInvalidTransition,
			"notifications can only be retried after %s", models.StageEmailsSent)
	}

	result := &models.StageResult{
		CaseID:         c.ID,
		PreviousStatus: c.Status,
		Status:         c.Status,
		DocumentID:     c.DocumentID,
		Notifications:  c.Notifications,
	}

	failed := c.Notifications.Failed()
	if len(failed) == 0 {
		return result, nil, nil
	}

	t := &transition{c: c, target: models.StageEmailsSent, actor: principal.Actor()}
	if err := o.dispatch(ctx, t, failed); err != nil {
		return nil, nil, err
	}

	merged := make(models.NotificationResults, len(c.Notifications))
	for category, r := range c.Notifications {
		merged[category] = r
	}
	for category, r := range t.outcome.Results {
		merged[category] = r
	}
	c.Notifications = merged
	c.UpdatedAt = o.now()

	err = o.store.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.Notifications().CreateAttempts(ctx, t.outcome.Attempts); err != nil {
			return apperr.Dependency(err, "failed to record notification attempts")
		}
		if err := tx.Cases().Update(ctx, c); err != nil {
			return apperr.Dependency(err, "failed to update case")
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	o.committed(ctx, c.ID)

	o.logger.Info("Notifications retried",
		zap.String("case_id", c.ID.String()),
		zap.Int("retried", len(failed)),
		zap.Int("still_failing", len(merged.Failed())))

	event := events.NewEvent(events.TypeNotificationsDispatched, c, models.StageEmailsSent, principal.Actor())
	event.Metadata = map[string]interface{}{"retried": failed, "failed_categories": merged.Failed()}

	result.Notifications = merged
	return result, []events.Event{event}, nil
}
