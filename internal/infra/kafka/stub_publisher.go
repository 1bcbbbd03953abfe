package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Maarioo25/HiFybe/internal/core/domain"
	"github.com/Maarioo25/HiFybe/internal/core/port"
	"github.com/Maarioo25/HiFybe/internal/infra/logger"
)

// StubPublisher logs events instead of sending them; used when no brokers
// are configured or Kafka is unreachable at startup.
type StubPublisher struct {
	logger *zap.Logger
}

var _ port.EventPublisher = (*StubPublisher)(nil)

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, accountID string, at time.Time, fields ...zap.Field) {
	p.logger.Info("event published (stub)",
		append([]zap.Field{
			zap.String("event_type", eventType),
			zap.String("account_id", accountID),
			zap.Time("occurred_at", at.UTC()),
		}, fields...)...,
	)
}

func (p *StubPublisher) PublishAccountRegistered(_ context.Context, event domain.AccountRegisteredEvent) error {
	p.logEvent(EventAccountRegistered, event.AccountID, event.RegisteredAt,
		zap.String("email", logger.MaskEmail(event.Email)),
		zap.String("auth_provider", string(event.AuthProvider)),
	)
	return nil
}

func (p *StubPublisher) PublishAccountLinked(_ context.Context, event domain.AccountLinkedEvent) error {
	p.logEvent(EventAccountLinked, event.AccountID, event.LinkedAt,
		zap.String("provider", string(event.Provider)),
	)
	return nil
}

// PublishPasswordResetRequested never logs the raw token.
func (p *StubPublisher) PublishPasswordResetRequested(_ context.Context, event domain.PasswordResetRequestedEvent) error {
	p.logEvent(EventPasswordResetRequested, event.AccountID, event.RequestedAt,
		zap.String("email", logger.MaskEmail(event.Email)),
		zap.String("token", logger.MaskToken(event.Token)),
		zap.Time("expires_at", event.ExpiresAt.UTC()),
	)
	return nil
}

func (p *StubPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	p.logEvent(EventPasswordChanged, event.AccountID, event.ChangedAt,
		zap.String("reason", event.Reason),
	)
	return nil
}
