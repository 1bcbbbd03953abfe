package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Maarioo25/HiFybe/internal/transport/http/middleware"
	"github.com/Maarioo25/HiFybe/internal/usecase"
)

// ProfileHandler serves self-service profile edits.
type ProfileHandler struct {
	profiles *usecase.ProfileService
}

// NewProfileHandler constructs ProfileHandler.
func NewProfileHandler(profiles *usecase.ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// RegisterRoutes binds PUT /me behind the session gate.
func (h *ProfileHandler) RegisterRoutes(r *gin.RouterGroup, requireSession gin.HandlerFunc) {
	r.PUT("/me", requireSession, h.Update)
}

// Update edits the profile of the authenticated account.
func (h *ProfileHandler) Update(c *gin.Context) {
	if h.profiles == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, msgServiceUnavailable))
		return
	}

	account, ok := middleware.CurrentAccount(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, msgNotAuthenticated))
		return
	}

	var req ProfileUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, msgInvalidPayload))
		return
	}

	updated, err := h.profiles.UpdateProfile(c.Request.Context(), account.ID, req.toInput())
	if err != nil {
		respondIdentityError(c, err, msgProfileUpdateFailed)
		return
	}

	c.JSON(http.StatusOK, ProfileUpdateResponse{
		Mensaje: msgProfileUpdated,
		Usuario: newAccountResponse(updated),
	})
}
