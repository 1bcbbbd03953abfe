// Package session moves session tokens between the HTTP boundary and the
// service layer. Browsers carry the token in an HttpOnly cookie; API clients
// may send it as a bearer credential instead.
package session

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	DefaultCookieName = "token"
	bearerPrefix      = "Bearer "
)

type Config struct {
	CookieName string
	Secure     bool
	Domain     string
}

type Transport struct {
	cookieName string
	secure     bool
	domain     string
}

func NewTransport(cfg Config) *Transport {
	name := strings.TrimSpace(cfg.CookieName)
	if name == "" {
		name = DefaultCookieName
	}
	return &Transport{cookieName: name, secure: cfg.Secure, domain: cfg.Domain}
}

// CookieName is the name of the session cookie.
func (t *Transport) CookieName() string {
	return t.cookieName
}

// Extract returns the session token carried by the request. The cookie wins
// over the Authorization header when both are present.
func (t *Transport) Extract(c *gin.Context) (string, bool) {
	if cookie, err := c.Request.Cookie(t.cookieName); err == nil {
		if value := strings.TrimSpace(cookie.Value); value != "" {
			return value, true
		}
	}

	header := c.GetHeader("Authorization")
	if len(header) > len(bearerPrefix) && strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		if token := strings.TrimSpace(header[len(bearerPrefix):]); token != "" {
			return token, true
		}
	}

	return "", false
}

// Issue writes the session cookie with a lifetime matching the token.
func (t *Transport) Issue(c *gin.Context, token string, ttl time.Duration) {
	maxAge := int(ttl.Round(time.Second) / time.Second)
	if maxAge <= 0 {
		maxAge = -1
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     t.cookieName,
		Value:    token,
		Path:     "/",
		Domain:   t.domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   t.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear expires the session cookie on the client.
func (t *Transport) Clear(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     t.cookieName,
		Value:    "",
		Path:     "/",
		Domain:   t.domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   t.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
