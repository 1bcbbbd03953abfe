package usecase

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Maarioo25/HiFybe/internal/infra/logger"
)

var tracer = otel.Tracer("github.com/Maarioo25/HiFybe/internal/usecase")

// AuthMetrics receives authentication outcomes. telemetry.AuthMetrics
// implements it with Prometheus counters.
type AuthMetrics interface {
	ObserveLogin(outcome string)
	ObserveRegistration(provider string)
	ObserveResetRequest(outcome string)
	ObserveResetRedeem(outcome string)
	ObserveExternalSignIn(outcome string)
}

type noopMetrics struct{}

func (noopMetrics) ObserveLogin(string)          {}
func (noopMetrics) ObserveRegistration(string)   {}
func (noopMetrics) ObserveResetRequest(string)   {}
func (noopMetrics) ObserveResetRedeem(string)    {}
func (noopMetrics) ObserveExternalSignIn(string) {}

func metricsOrNoop(m AuthMetrics) AuthMetrics {
	if m == nil {
		return noopMetrics{}
	}
	return m
}

func loggerOrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// endSpan records err on the span before ending it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// scoped adds the request id carried by ctx to base.
func scoped(base *zap.Logger, ctx context.Context) *zap.Logger {
	if id := logger.RequestIDFromContext(ctx); id != "" {
		return base.With(zap.String("request_id", id))
	}
	return base
}

// logPublishFailure keeps event delivery best effort: a failed publish is
// logged and never fails the operation that produced it.
func logPublishFailure(ctx context.Context, base *zap.Logger, eventType, accountID string, err error) {
	if err == nil {
		return
	}
	scoped(base, ctx).Warn("publish event failed",
		zap.String("event_type", eventType),
		zap.String("account_id", accountID),
		zap.Error(err),
	)
}
