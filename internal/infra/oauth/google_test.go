package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Maarioo25/HiFybe/internal/core/domain"
)

func newFakeGoogle(t *testing.T, userinfo map[string]any, userinfoStatus int) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-1","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(userinfoStatus)
		_ = json.NewEncoder(w).Encode(userinfo)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestProvider(srv *httptest.Server) *GoogleProvider {
	return NewGoogleProvider(GoogleConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost:5000/usuarios/auth/external/callback",
		AuthURL:      srv.URL + "/auth",
		TokenURL:     srv.URL + "/token",
		UserInfoURL:  srv.URL + "/userinfo",
		HTTPClient:   srv.Client(),
	})
}

func TestGoogleProvider_AuthCodeURL(t *testing.T) {
	srv := newFakeGoogle(t, nil, http.StatusOK)
	p := newTestProvider(srv)

	raw := p.AuthCodeURL("state-123")
	u, err := url.Parse(raw)
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "state-123", q.Get("state"))
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Contains(t, q.Get("scope"), "email")
}

func TestGoogleProvider_ExchangeCodeForProfile(t *testing.T) {
	srv := newFakeGoogle(t, map[string]any{
		"sub":            "google-123",
		"email":          "Ana@X.com",
		"email_verified": true,
		"name":           "Ana López",
		"given_name":     "Ana",
		"family_name":    "López",
		"picture":        "https://example.com/ana.png",
	}, http.StatusOK)
	p := newTestProvider(srv)

	profile, err := p.ExchangeCodeForProfile(context.Background(), "good-code")
	require.NoError(t, err)

	assert.Equal(t, domain.AuthProviderGoogle, profile.Provider)
	assert.Equal(t, "google-123", profile.SubjectID)
	assert.Equal(t, "ana@x.com", profile.Email)
	assert.Equal(t, "https://example.com/ana.png", profile.PictureURL)
	assert.True(t, profile.EmailVerified)
}

func TestGoogleProvider_ExchangeFailure(t *testing.T) {
	srv := newFakeGoogle(t, nil, http.StatusOK)
	p := newTestProvider(srv)

	_, err := p.ExchangeCodeForProfile(context.Background(), "bad-code")
	require.Error(t, err)
}

func TestGoogleProvider_IncompleteProfile(t *testing.T) {
	srv := newFakeGoogle(t, map[string]any{"sub": "google-123"}, http.StatusOK)
	p := newTestProvider(srv)

	_, err := p.ExchangeCodeForProfile(context.Background(), "good-code")
	require.ErrorIs(t, err, ErrProfileIncomplete)
}

func TestGoogleProvider_UserInfoError(t *testing.T) {
	srv := newFakeGoogle(t, map[string]any{"error": "boom"}, http.StatusInternalServerError)
	p := newTestProvider(srv)

	_, err := p.ExchangeCodeForProfile(context.Background(), "good-code")
	require.Error(t, err)
}

func TestGoogleProvider_EmptyCode(t *testing.T) {
	p := NewGoogleProvider(GoogleConfig{})
	_, err := p.ExchangeCodeForProfile(context.Background(), " ")
	require.Error(t, err)
}
