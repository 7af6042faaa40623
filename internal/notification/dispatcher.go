package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"fraudcase/internal/config"
	"fraudcase/internal/metrics"
	"fraudcase/internal/models"
)

// Request describes one dispatch cycle
type Request struct {
	Case       models.Case
	Scammer    *models.ScammerProfile
	Document   *models.Document
	Categories []models.Category
}

// Outcome is the result of a dispatch: a result per requested category
// plus the attempts to persist for audit
type Outcome struct {
	Results  models.NotificationResults
	Attempts []models.NotificationAttempt
}

// Dispatcher sends the legal notice to authority categories. It never
// retries and never fails as a whole.
type Dispatcher struct {
	mailer     Mailer
	templates  *Templates
	recipients map[models.Category]string
	authority  string
	timeout    time.Duration
	limiter    *rate.Limiter
	metrics    *metrics.Collector
	logger     *zap.Logger
	now        func() time.Time
}

// NewDispatcher creates a dispatcher from notification settings
func NewDispatcher(mailer Mailer, cfg config.NotificationsConfig, authority string, collector *metrics.Collector, logger *zap.Logger) (*Dispatcher, error) {
	templates, err := NewTemplates()
	if err != nil {
		return nil, err
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = len(models.AllCategories)
	}

	timeout := cfg.RecipientTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Dispatcher{
		mailer:    mailer,
		templates: templates,
		recipients: map[models.Category]string{
			models.CategoryTelecom: cfg.Recipients.Telecom,
			models.CategoryBanking: cfg.Recipients.Banking,
			models.CategoryNodal:   cfg.Recipients.Nodal,
		},
		authority: authority,
		timeout:   timeout,
		limiter:   rate.NewLimiter(limit, burst),
		metrics:   collector,
		logger:    logger.Named("notification_dispatcher"),
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Dispatch sends to every requested category concurrently. Each send has
// its own timeout; a failure or timeout only affects that category.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Outcome {
	categories := req.Categories
	if len(categories) == 0 {
		categories = models.AllCategories
	}

	data := templateData(d.authority, req.Case, req.Scammer)

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		outcome = Outcome{Results: make(models.NotificationResults, len(categories))}
	)

	for _, category := range categories {
		wg.Add(1)
		go func(category models.Category) {
			defer wg.Done()

			result, attempt := d.send(ctx, req, category, data)

			mu.Lock()
			outcome.Results[category] = result
			outcome.Attempts = append(outcome.Attempts, attempt)
			mu.Unlock()
		}(category)
	}
	wg.Wait()

	failed := outcome.Results.Failed()
	d.logger.Info("Notifications dispatched",
		zap.String("case_id", req.Case.ID.String()),
		zap.Int("categories", len(categories)),
		zap.Int("failed", len(failed)))

	return outcome
}

func (d *Dispatcher) send(ctx context.Context, req Request, category models.Category, data TemplateData) (models.NotificationResult, models.NotificationAttempt) {
	recipient := d.recipients[category]
	attempt := models.NotificationAttempt{
		ID:        uuid.New(),
		CaseID:    req.Case.ID,
		Category:  category,
		Recipient: recipient,
	}

	fail := func(err error) (models.NotificationResult, models.NotificationAttempt) {
		now := d.now()
		attempt.Error = err.Error()
		attempt.AttemptedAt = now
		d.metrics.Notification(string(category), false)
		d.logger.Warn("Notification failed",
			zap.String("case_id", req.Case.ID.String()),
			zap.String("category", string(category)),
			zap.String("recipient", recipient),
			zap.Error(err))
		return models.NotificationResult{
			Recipient: recipient,
			Error:     err.Error(),
			Subject:   attempt.Subject,
			SentAt:    now,
		}, attempt
	}

	if recipient == "" {
		return fail(fmt.Errorf("no recipient configured for %s", category))
	}

	subject, text, html, err := d.templates.Render(category, data)
	if err != nil {
		return fail(err)
	}
	attempt.Subject = subject
	attempt.Body = text

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := d.limiter.Wait(sendCtx); err != nil {
		return fail(fmt.Errorf("rate limit wait: %w", err))
	}

	msg := Message{To: recipient, Subject: subject, Text: text, HTML: html}
	if req.Document != nil {
		msg.Attachments = []Attachment{{
			Filename:    req.Case.CaseCode + ".pdf",
			ContentType: req.Document.ContentType,
			Content:     req.Document.Content,
		}}
	}

	messageID, err := d.mailer.Send(sendCtx, msg)
	if err != nil {
		return fail(err)
	}

	now := d.now()
	attempt.Success = true
	attempt.MessageID = messageID
	attempt.AttemptedAt = now
	d.metrics.Notification(string(category), true)

	return models.NotificationResult{
		Recipient: recipient,
		Success:   true,
		MessageID: messageID,
		Subject:   subject,
		SentAt:    now,
	}, attempt
}
