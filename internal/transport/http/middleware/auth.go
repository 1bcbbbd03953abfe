package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Maarioo25/HiFybe/internal/transport/http/session"
	"github.com/Maarioo25/HiFybe/internal/usecase"
)

// ErrorResponse matches the handlers.ErrorResponse structure
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// newErrorResponse creates an error response with trace ID
func newErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: GetTraceID(c),
	}
}

const (
	msgNotAuthenticated = "No autenticado."
	msgAuthFailed       = "Error al validar la sesión."
)

// RequireSession resolves the session token carried by the request into an
// account. Any token or account problem answers 401; store failures answer 500.
func RequireSession(sessions *usecase.SessionService, transport *session.Transport, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		token, ok := transport.Extract(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, msgNotAuthenticated))
			return
		}

		account, claims, err := sessions.Authenticate(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, usecase.ErrUnauthenticated) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, msgNotAuthenticated))
				return
			}
			log.Error("session authentication failed",
				zap.String("trace_id", GetTraceID(c)),
				zap.Error(err),
			)
			c.AbortWithStatusJSON(http.StatusInternalServerError, newErrorResponse(c, msgAuthFailed))
			return
		}

		c.Set(AccountKey, account)
		c.Set(ClaimsKey, claims)

		c.Next()
	}
}
