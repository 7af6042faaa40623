// Package events publishes case lifecycle events after state changes commit.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"fraudcase/internal/config"
	"fraudcase/internal/models"
)

// Event types
const (
	TypeCaseSubmitted           = "case.submitted"
	TypeStageAdvanced           = "case.stage_advanced"
	TypeNotificationsDispatched = "case.notifications_dispatched"
)

// Event describes a committed change to a case
type Event struct {
	ID         uuid.UUID              `json:"id"`
	Type       string                 `json:"type"`
	CaseID     uuid.UUID              `json:"case_id"`
	CaseCode   string                 `json:"case_code"`
	Stage      models.Stage           `json:"stage,omitempty"`
	Status     models.Stage           `json:"status"`
	Round      int                    `json:"round"`
	Actor      models.Actor           `json:"actor"`
	OccurredAt time.Time              `json:"occurred_at"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// NewEvent builds an event for c
func NewEvent(eventType string, c *models.Case, stage models.Stage, actor models.Actor) Event {
	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		CaseID:     c.ID,
		CaseCode:   c.CaseCode,
		Stage:      stage,
		Status:     c.Status,
		Round:      c.Round,
		Actor:      actor,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher sends lifecycle events
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a single topic keyed by case id so that
// events for one case stay ordered within a partition
type KafkaPublisher struct {
	writer  messageWriter
	timeout time.Duration
	logger  *zap.Logger
}

// NewKafkaPublisher creates a publisher for cfg.Topic
func NewKafkaPublisher(cfg config.KafkaConfig, logger *zap.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}

	return &KafkaPublisher{
		writer:  writer,
		timeout: cfg.WriteTimeout,
		logger:  logger.Named("event_publisher"),
	}
}

// Publish sends event and waits for the broker acknowledgement
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.CaseID.String()),
		Value: value,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
			{Key: "event-type", Value: []byte(event.Type)},
			{Key: "source-service", Value: []byte("fraudcase")},
		},
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("Event published",
		zap.String("type", event.Type),
		zap.String("case_id", event.CaseID.String()))
	return nil
}

// Close flushes and closes the writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher drops events. Used when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }
func (NoopPublisher) Close() error                         { return nil }
