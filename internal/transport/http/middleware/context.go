package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/Maarioo25/HiFybe/internal/core/domain"
)

const (
	// TraceIDHeader is the HTTP header name for trace ID
	TraceIDHeader = "X-Trace-ID"
	// TraceIDKey is the context key for trace ID
	TraceIDKey = "trace_id"
	// AccountKey holds the *domain.Account resolved by RequireSession.
	AccountKey = "account"
	// ClaimsKey holds the verified domain.TokenClaims.
	ClaimsKey = "token_claims"
)

// EnrichContext assigns a trace id to each request. The active OpenTelemetry
// span wins, then an inbound X-Trace-ID header, then a fresh UUID.
func EnrichContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := ""
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
			traceID = sc.TraceID().String()
		}
		if traceID == "" {
			traceID = c.GetHeader(TraceIDHeader)
		}
		if traceID == "" {
			traceID = uuid.NewString()
		}

		c.Set(TraceIDKey, traceID)
		c.Header(TraceIDHeader, traceID)

		c.Next()
	}
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(c *gin.Context) string {
	if traceID, exists := c.Get(TraceIDKey); exists {
		if id, ok := traceID.(string); ok {
			return id
		}
	}
	return ""
}

// CurrentAccount returns the account attached by RequireSession.
func CurrentAccount(c *gin.Context) (*domain.Account, bool) {
	value, exists := c.Get(AccountKey)
	if !exists {
		return nil, false
	}
	account, ok := value.(*domain.Account)
	return account, ok && account != nil
}

// CurrentClaims returns the verified session claims attached by RequireSession.
func CurrentClaims(c *gin.Context) (domain.TokenClaims, bool) {
	value, exists := c.Get(ClaimsKey)
	if !exists {
		return domain.TokenClaims{}, false
	}
	claims, ok := value.(domain.TokenClaims)
	return claims, ok
}
