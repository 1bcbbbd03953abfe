package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Maarioo25/HiFybe/internal/transport/http/middleware"
	"github.com/Maarioo25/HiFybe/internal/transport/http/session"
	"github.com/Maarioo25/HiFybe/internal/usecase"
)

// AuthHandler exposes registration, login, the current account and logout.
type AuthHandler struct {
	auth         *usecase.AuthService
	registration *usecase.RegistrationService
	sessions     *usecase.SessionService
	transport    *session.Transport
	now          func() time.Time
}

// AuthHandlerOption configures optional AuthHandler dependencies.
type AuthHandlerOption func(*AuthHandler)

// WithRegistrationService injects the registration service dependency.
func WithRegistrationService(registration *usecase.RegistrationService) AuthHandlerOption {
	return func(h *AuthHandler) {
		h.registration = registration
	}
}

// WithHandlerClock overrides the clock used to size the session cookie.
func WithHandlerClock(now func() time.Time) AuthHandlerOption {
	return func(h *AuthHandler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth *usecase.AuthService, sessions *usecase.SessionService, transport *session.Transport, opts ...AuthHandlerOption) *AuthHandler {
	handler := &AuthHandler{
		auth:      auth,
		sessions:  sessions,
		transport: transport,
		now:       time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(handler)
		}
	}

	return handler
}

// AuthRouteMiddleware lists middleware placed ahead of individual routes,
// typically rate limits.
type AuthRouteMiddleware struct {
	Login    []gin.HandlerFunc
	Register []gin.HandlerFunc
}

// RegisterRoutes binds authentication routes, applying optional middleware ahead of handlers.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, mw AuthRouteMiddleware, requireSession gin.HandlerFunc) {
	r.POST("/register", chain(mw.Register, h.register)...)
	r.POST("/login", chain(mw.Login, h.login)...)
	r.GET("/me", requireSession, h.me)
	r.POST("/logout", h.logout)
}

func chain(before []gin.HandlerFunc, handler gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(before)+1)
	for _, mw := range before {
		if mw != nil {
			out = append(out, mw)
		}
	}
	return append(out, handler)
}

func (h *AuthHandler) register(c *gin.Context) {
	if h.registration == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, msgServiceUnavailable))
		return
	}

	var req RegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, msgInvalidPayload))
		return
	}

	account, err := h.registration.Register(c.Request.Context(), req.toInput())
	if err != nil {
		respondRegistrationError(c, err)
		return
	}

	c.JSON(http.StatusCreated, RegistrationResponse{
		Mensaje: msgRegistered,
		Usuario: newAccountResponse(account),
	})
}

func (h *AuthHandler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, msgInvalidCredentials))
		return
	}

	issued, err := h.auth.Login(c.Request.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusBadRequest, Message: msgInvalidCredentials},
		}, http.StatusInternalServerError, msgLoginFailed)
		return
	}

	h.transport.Issue(c, issued.Token, issued.TTL(h.now()))

	c.JSON(http.StatusOK, LoginResponse{
		Mensaje:   msgLoggedIn,
		Usuario:   newAccountResponse(issued.Account),
		Token:     issued.Token,
		ExpiresAt: issued.ExpiresAt.UTC(),
	})
}

func (h *AuthHandler) me(c *gin.Context) {
	account, ok := middleware.CurrentAccount(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, msgNotAuthenticated))
		return
	}

	c.JSON(http.StatusOK, MeResponse{Usuario: newAccountResponse(account)})
}

// logout always clears the cookie. Server-side revocation only happens when a
// denylist is configured, and a failure there does not fail the request.
func (h *AuthHandler) logout(c *gin.Context) {
	if token, ok := h.transport.Extract(c); ok && h.sessions != nil {
		if err := h.sessions.Logout(c.Request.Context(), token); err != nil {
			_ = c.Error(err)
		}
	}

	h.transport.Clear(c)
	c.JSON(http.StatusOK, MessageResponse{Mensaje: msgLoggedOut})
}
