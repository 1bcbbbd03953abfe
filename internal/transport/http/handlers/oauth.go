package handlers

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Maarioo25/HiFybe/internal/transport/http/session"
	"github.com/Maarioo25/HiFybe/internal/usecase"
)

const (
	oauthStateCookie = "oauth_state"
	oauthStateTTL    = 10 * time.Minute

	oauthErrorUnavailable = "provider_unavailable"
	oauthErrorState       = "invalid_state"
	oauthErrorDenied      = "access_denied"
	oauthErrorProvider    = "provider_error"
	oauthErrorConflict    = "identity_conflict"
	oauthErrorServer      = "server_error"
)

// OAuthHandler runs the browser redirect flow for Google sign-in. Every
// failure ends in a redirect to the frontend login page, never a JSON body.
type OAuthHandler struct {
	external    *usecase.ExternalAuthService
	transport   *session.Transport
	frontendURL string
	secure      bool
	now         func() time.Time
}

// NewOAuthHandler builds the handler. A nil service keeps the routes mounted
// but redirects with provider_unavailable.
func NewOAuthHandler(external *usecase.ExternalAuthService, transport *session.Transport, frontendURL string, secureCookies bool) *OAuthHandler {
	return &OAuthHandler{
		external:    external,
		transport:   transport,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		secure:      secureCookies,
		now:         time.Now,
	}
}

// RegisterRoutes binds the redirect and callback routes.
func (h *OAuthHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/auth/external", h.Start)
	r.GET("/auth/external/callback", h.Callback)
}

// Start redirects the browser to the provider consent page.
func (h *OAuthHandler) Start(c *gin.Context) {
	if h.external == nil {
		h.redirectError(c, oauthErrorUnavailable)
		return
	}

	state := uuid.NewString()
	h.setStateCookie(c, state, int(oauthStateTTL/time.Second))
	c.Redirect(http.StatusFound, h.external.AuthCodeURL(state))
}

// Callback completes the sign-in and hands the session to the frontend.
func (h *OAuthHandler) Callback(c *gin.Context) {
	if h.external == nil {
		h.redirectError(c, oauthErrorUnavailable)
		return
	}

	expected, _ := c.Cookie(oauthStateCookie)
	h.setStateCookie(c, "", -1)

	if c.Query("error") != "" {
		h.redirectError(c, oauthErrorDenied)
		return
	}

	state := c.Query("state")
	if expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(state)) != 1 {
		h.redirectError(c, oauthErrorState)
		return
	}

	result, err := h.external.Resolve(c.Request.Context(), c.Query("code"))
	if err != nil {
		_ = c.Error(err)
		switch {
		case errors.Is(err, usecase.ErrProvider):
			h.redirectError(c, oauthErrorProvider)
		case errors.Is(err, usecase.ErrIdentityConflict):
			h.redirectError(c, oauthErrorConflict)
		default:
			h.redirectError(c, oauthErrorServer)
		}
		return
	}

	issued := result.Session
	h.transport.Issue(c, issued.Token, issued.TTL(h.now()))
	// The session travels only in the HttpOnly cookie, never in the URL.
	c.Redirect(http.StatusFound, h.frontendURL+"/dashboard")
}

func (h *OAuthHandler) redirectError(c *gin.Context, code string) {
	c.Redirect(http.StatusFound, h.frontendURL+"/login?"+url.Values{"error": {code}}.Encode())
}

func (h *OAuthHandler) setStateCookie(c *gin.Context, value string, maxAge int) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
