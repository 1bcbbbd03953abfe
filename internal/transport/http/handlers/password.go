package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Maarioo25/HiFybe/internal/usecase"
)

// PasswordHandler exposes the password reset flow.
type PasswordHandler struct {
	reset         *usecase.PasswordResetService
	echoToken     bool
	revealUnknown bool
}

// NewPasswordHandler builds the handler. With revealUnknown set, requests for
// unknown emails answer 404 instead of the generic success body. echoToken
// adds the issued token to the response and must stay off outside local setups.
func NewPasswordHandler(reset *usecase.PasswordResetService, echoToken, revealUnknown bool) *PasswordHandler {
	return &PasswordHandler{
		reset:         reset,
		echoToken:     echoToken,
		revealUnknown: revealUnknown,
	}
}

// RegisterRoutes binds the reset routes; requestMiddleware runs ahead of both.
func (h *PasswordHandler) RegisterRoutes(r *gin.RouterGroup, requestMiddleware ...gin.HandlerFunc) {
	r.POST("/password-reset/request", chain(requestMiddleware, h.RequestReset)...)
	r.POST("/password-reset/redeem/:token", chain(requestMiddleware, h.Redeem)...)
}

// RequestReset issues a reset token for the given email.
func (h *PasswordHandler) RequestReset(c *gin.Context) {
	if h.reset == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, msgServiceUnavailable))
		return
	}

	var req PasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, msgInvalidPayload))
		return
	}

	ticket, err := h.reset.RequestReset(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, usecase.ErrAccountNotFound) && !h.revealUnknown {
			c.JSON(http.StatusOK, PasswordResetResponse{Mensaje: msgResetRequested})
			return
		}
		if respondInvalidInput(c, err) {
			return
		}
		RespondWithMappedError(c, err, identityErrorCases, http.StatusInternalServerError, msgResetRequestFailed)
		return
	}

	resp := PasswordResetResponse{Mensaje: msgResetRequested}
	if h.echoToken && ticket != nil {
		token := ticket.Token
		expires := ticket.ExpiresAt.UTC()
		resp.DevToken = &token
		resp.ExpiresAt = &expires
	}

	c.JSON(http.StatusOK, resp)
}

// Redeem sets a new password using the token in the path.
func (h *PasswordHandler) Redeem(c *gin.Context) {
	if h.reset == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, msgServiceUnavailable))
		return
	}

	token := strings.TrimSpace(c.Param("token"))

	var req PasswordRedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, msgInvalidPayload))
		return
	}

	if _, err := h.reset.Redeem(c.Request.Context(), token, req.password()); err != nil {
		if respondInvalidInput(c, err) {
			return
		}
		RespondWithMappedError(c, err, identityErrorCases, http.StatusInternalServerError, msgResetRedeemFailed)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Mensaje: msgPasswordUpdated})
}
