package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Maarioo25/HiFybe/internal/core/domain"
	"github.com/Maarioo25/HiFybe/internal/core/port"
	"github.com/Maarioo25/HiFybe/internal/infra/config"
)

const schemaVersion = "1.0"

// Event types; the producer adds the configured topic prefix.
const (
	EventAccountRegistered      = "account.registered"
	EventAccountLinked          = "account.linked"
	EventPasswordResetRequested = "password_reset.requested"
	EventPasswordChanged        = "password.changed"
)

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

var _ port.EventPublisher = (*EventPublisher)(nil)

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type eventEnvelope struct {
	EventID    string            `json:"event_id"`
	EventType  string            `json:"event_type"`
	AccountID  string            `json:"account_id"`
	OccurredAt time.Time         `json:"occurred_at"`
	Version    string            `json:"version"`
	Payload    any               `json:"payload"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// publish keys messages by account id so events for one account stay ordered.
func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, accountID string, at time.Time, payload any) error {
	if at.IsZero() {
		at = time.Now()
	}
	if eventID == "" {
		eventID = uuid.NewString()
	}

	metadata := map[string]string{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	body, err := json.Marshal(eventEnvelope{
		EventID:    eventID,
		EventType:  eventType,
		AccountID:  accountID,
		OccurredAt: at.UTC(),
		Version:    schemaVersion,
		Payload:    payload,
		Metadata:   metadata,
	})
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Key:   sarama.StringEncoder(accountID),
		Value: sarama.ByteEncoder(body),
	}

	select {
	case p.producer.Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishAccountRegistered publishes account.registered events.
func (p *EventPublisher) PublishAccountRegistered(ctx context.Context, event domain.AccountRegisteredEvent) error {
	payload := struct {
		AccountID    string    `json:"account_id"`
		Email        string    `json:"email"`
		Nickname     *string   `json:"nickname,omitempty"`
		AuthProvider string    `json:"auth_provider"`
		RegisteredAt time.Time `json:"registered_at"`
	}{
		AccountID:    event.AccountID,
		Email:        event.Email,
		Nickname:     event.Nickname,
		AuthProvider: string(event.AuthProvider),
		RegisteredAt: event.RegisteredAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventAccountRegistered, event.AccountID, event.RegisteredAt, payload)
}

// PublishAccountLinked publishes account.linked events.
func (p *EventPublisher) PublishAccountLinked(ctx context.Context, event domain.AccountLinkedEvent) error {
	payload := struct {
		AccountID string    `json:"account_id"`
		Provider  string    `json:"provider"`
		LinkedAt  time.Time `json:"linked_at"`
	}{
		AccountID: event.AccountID,
		Provider:  string(event.Provider),
		LinkedAt:  event.LinkedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventAccountLinked, event.AccountID, event.LinkedAt, payload)
}

// PublishPasswordResetRequested publishes password_reset.requested events for
// the mail service.
func (p *EventPublisher) PublishPasswordResetRequested(ctx context.Context, event domain.PasswordResetRequestedEvent) error {
	payload := struct {
		AccountID   string    `json:"account_id"`
		Email       string    `json:"email"`
		Token       string    `json:"token"`
		RequestedAt time.Time `json:"requested_at"`
		ExpiresAt   time.Time `json:"expires_at"`
	}{
		AccountID:   event.AccountID,
		Email:       event.Email,
		Token:       event.Token,
		RequestedAt: event.RequestedAt.UTC(),
		ExpiresAt:   event.ExpiresAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventPasswordResetRequested, event.AccountID, event.RequestedAt, payload)
}

// PublishPasswordChanged publishes password.changed events.
func (p *EventPublisher) PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error {
	payload := struct {
		AccountID string    `json:"account_id"`
		ChangedAt time.Time `json:"changed_at"`
		Reason    string    `json:"reason"`
	}{
		AccountID: event.AccountID,
		ChangedAt: event.ChangedAt.UTC(),
		Reason:    event.Reason,
	}

	return p.publish(ctx, event.EventID, EventPasswordChanged, event.AccountID, event.ChangedAt, payload)
}
