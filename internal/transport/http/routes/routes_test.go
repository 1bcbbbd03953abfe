package routes_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Maarioo25/HiFybe/internal/core/domain"
	"github.com/Maarioo25/HiFybe/internal/core/port"
	"github.com/Maarioo25/HiFybe/internal/infra/config"
	"github.com/Maarioo25/HiFybe/internal/infra/kafka"
	"github.com/Maarioo25/HiFybe/internal/infra/security"
	"github.com/Maarioo25/HiFybe/internal/infra/telemetry"
	"github.com/Maarioo25/HiFybe/internal/repository/memory"
	"github.com/Maarioo25/HiFybe/internal/transport/http/middleware"
	httproutes "github.com/Maarioo25/HiFybe/internal/transport/http/routes"
	"github.com/Maarioo25/HiFybe/internal/usecase"
)

type stubProvider struct {
	profile domain.ExternalProfile
	err     error
}

func (p *stubProvider) AuthCodeURL(state string) string {
	return "https://accounts.example.test/auth?state=" + url.QueryEscape(state)
}

func (p *stubProvider) ExchangeCodeForProfile(_ context.Context, code string) (domain.ExternalProfile, error) {
	if p.err != nil {
		return domain.ExternalProfile{}, p.err
	}
	return p.profile, nil
}

var _ port.ExternalIdentityProvider = (*stubProvider)(nil)

type harness struct {
	router   *gin.Engine
	accounts *memory.AccountRepository
	provider *stubProvider
	registry *prometheus.Registry
}

type harnessOption func(*config.AppConfig)

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.AppConfig{
		App:       config.AppSettings{Env: "development"},
		HTTP:      config.HTTPSettings{BasePath: "/usuarios", CookieName: "token", FrontendURL: "https://app.hifybe.test"},
		Telemetry: config.TelemetrySettings{MetricsEnabled: true},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	logger := zaptest.NewLogger(t)
	accounts := memory.NewAccountRepository()

	hasher, err := security.NewArgon2Hasher(port.Argon2Params{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	require.NoError(t, err)

	tokens, err := security.NewTokenManager(security.StaticSecret("routes-test-secret-0123456789abcdef"), "hifybe")
	require.NoError(t, err)

	policy := security.DefaultPasswordPolicy()
	events := kafka.NewStubPublisher(logger)

	registry := prometheus.NewRegistry()
	authMetrics, err := telemetry.NewAuthMetrics(registry)
	require.NoError(t, err)
	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: registry})
	require.NoError(t, err)

	auth, err := usecase.NewAuthService(accounts, hasher, tokens, logger)
	require.NoError(t, err)
	auth.WithMetrics(authMetrics)

	provider := &stubProvider{}

	router := httproutes.Register(httproutes.Dependencies{
		Config: cfg,
		Logger: logger,
		Services: httproutes.ServiceSet{
			Auth:          auth,
			Registration:  usecase.NewRegistrationService(accounts, hasher, policy, events, logger).WithMetrics(authMetrics),
			Sessions:      usecase.NewSessionService(accounts, tokens, logger),
			PasswordReset: usecase.NewPasswordResetService(accounts, hasher, tokens, policy, events, logger).WithMetrics(authMetrics),
			Profile:       usecase.NewProfileService(accounts, logger),
			External:      usecase.NewExternalAuthService(provider, accounts, hasher, tokens, events, logger).WithMetrics(authMetrics),
		},
		HTTPMetrics: httpMetrics,
		Gatherer:    registry,
	})

	return &harness{router: router, accounts: accounts, provider: provider, registry: registry}
}

func (h *harness) do(t *testing.T, method, path string, body any, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, m := range mutate {
		m(req)
	}

	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func sessionCookie(t *testing.T, rr *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == "token" {
			return c
		}
	}
	t.Fatalf("no session cookie in response")
	return nil
}

func withCookie(c *http.Cookie) func(*http.Request) {
	return func(r *http.Request) { r.AddCookie(c) }
}

func withBearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

var ana = map[string]any{"nombre": "Ana", "apodo": "ana1", "email": "ana@x.com", "password": "secret1"}

func TestHealthEndpoint(t *testing.T) {
	h := newHarness(t)

	rr := h.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", decode(t, rr)["status"])
}

func TestAnaRegistersLogsInAndResetsPassword(t *testing.T) {
	h := newHarness(t, func(cfg *config.AppConfig) { cfg.Auth.EchoResetToken = true })

	rr := h.do(t, http.MethodPost, "/usuarios/register", ana)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	body := decode(t, rr)
	assert.Equal(t, "Usuario registrado correctamente.", body["mensaje"])
	usuario := body["usuario"].(map[string]any)
	assert.Equal(t, "Ana", usuario["nombre"])
	assert.Equal(t, "ana1", usuario["apodo"])
	for _, secret := range []string{"password", "PasswordHash", "contrasena_reset_token", "contrasena_reset_expiracion", "version"} {
		assert.NotContains(t, usuario, secret)
	}

	rr = h.do(t, http.MethodPost, "/usuarios/login", map[string]string{"email": "ana@x.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	login := decode(t, rr)
	assert.Equal(t, "Login exitoso.", login["mensaje"])
	token, _ := login["token"].(string)
	require.NotEmpty(t, token)
	cookie := sessionCookie(t, rr)
	assert.Equal(t, token, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.InDelta(t, 7*24*60*60, cookie.MaxAge, 2)

	rr = h.do(t, http.MethodGet, "/usuarios/me", nil, withCookie(cookie))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ana@x.com", decode(t, rr)["usuario"].(map[string]any)["email"])

	rr = h.do(t, http.MethodGet, "/usuarios/me", nil, withBearer(token))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = h.do(t, http.MethodPost, "/usuarios/login", map[string]string{"email": "ana@x.com", "password": "wrong"})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Credenciales inválidas.", decode(t, rr)["error"])

	rr = h.do(t, http.MethodPost, "/usuarios/password-reset/request", map[string]string{"email": "ana@x.com"})
	require.Equal(t, http.StatusOK, rr.Code)
	reset := decode(t, rr)
	assert.Equal(t, "Token de reseteo generado.", reset["mensaje"])
	resetToken, _ := reset["dev_token"].(string)
	require.NotEmpty(t, resetToken)

	stored, err := h.accounts.FindByEmail(context.Background(), "ana@x.com")
	require.NoError(t, err)
	require.NotNil(t, stored.ResetExpiresAt)
	assert.WithinDuration(t, time.Now().Add(time.Hour), *stored.ResetExpiresAt, time.Minute)

	rr = h.do(t, http.MethodPost, "/usuarios/password-reset/redeem/"+resetToken, map[string]string{"nuevaContrasena": "secret2"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "Contraseña actualizada exitosamente.", decode(t, rr)["mensaje"])

	rr = h.do(t, http.MethodPost, "/usuarios/login", map[string]string{"email": "ana@x.com", "password": "secret1"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = h.do(t, http.MethodPost, "/usuarios/login", map[string]string{"email": "ana@x.com", "password": "secret2"})
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = h.do(t, http.MethodPost, "/usuarios/password-reset/redeem/"+resetToken, map[string]string{"newPassword": "secret3"})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Token inválido o expirado.", decode(t, rr)["error"])
}

func TestRegisterRejectsDuplicatesWithField(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, http.StatusCreated, h.do(t, http.MethodPost, "/usuarios/register", ana).Code)

	rr := h.do(t, http.MethodPost, "/usuarios/register", map[string]any{"name": "Ana", "email": "ANA@x.com", "password": "secret1"})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, "email", body["field"])
	assert.Equal(t, "Email ya registrado.", body["mensaje"])

	rr = h.do(t, http.MethodPost, "/usuarios/register", map[string]any{"name": "Ana", "nickname": "ANA1", "email": "other@x.com", "password": "secret1"})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "nickname", decode(t, rr)["field"])

	rr = h.do(t, http.MethodPost, "/usuarios/register", map[string]any{"name": "Bea", "email": "bea@x.com", "password": "abc"})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "password", decode(t, rr)["field"])

	assert.Equal(t, 1, h.accounts.Len())
}

func TestMeRequiresValidSession(t *testing.T) {
	h := newHarness(t)

	rr := h.do(t, http.MethodGet, "/usuarios/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = h.do(t, http.MethodGet, "/usuarios/me", nil, withBearer("not-a-jwt"))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestUpdateProfileRequiresSessionAndPersists(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, http.StatusCreated, h.do(t, http.MethodPost, "/usuarios/register", ana).Code)
	require.Equal(t, http.StatusCreated, h.do(t, http.MethodPost, "/usuarios/register",
		map[string]any{"name": "Bea", "nickname": "bea1", "email": "bea@x.com", "password": "secret1"}).Code)

	rr := h.do(t, http.MethodPut, "/usuarios/me", map[string]any{"biografia": "x"})
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	login := h.do(t, http.MethodPost, "/usuarios/login", map[string]string{"email": "ana@x.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, login.Code)
	cookie := sessionCookie(t, login)

	rr = h.do(t, http.MethodPut, "/usuarios/me", map[string]any{"apellidos": "García", "biografia": "Indie y jazz", "ubicacion_lat": 40.4}, withCookie(cookie))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decode(t, rr)
	assert.Equal(t, "Usuario actualizado correctamente.", body["mensaje"])
	usuario := body["usuario"].(map[string]any)
	assert.Equal(t, "García", usuario["apellidos"])
	assert.Equal(t, "ana1", usuario["apodo"])
	assert.NotContains(t, usuario, "password")

	rr = h.do(t, http.MethodGet, "/usuarios/me", nil, withCookie(cookie))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Indie y jazz", decode(t, rr)["usuario"].(map[string]any)["biografia"])

	rr = h.do(t, http.MethodPut, "/usuarios/me", map[string]any{"apodo": "BEA1"}, withCookie(cookie))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	dup := decode(t, rr)
	assert.Equal(t, "nickname", dup["field"])
	assert.Equal(t, "Apodo ya registrado.", dup["mensaje"])
}

func TestLogoutClearsCookie(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, http.StatusCreated, h.do(t, http.MethodPost, "/usuarios/register", ana).Code)
	login := h.do(t, http.MethodPost, "/usuarios/login", map[string]string{"email": "ana@x.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, login.Code)

	rr := h.do(t, http.MethodPost, "/usuarios/logout", nil, withCookie(sessionCookie(t, login)))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Sesión cerrada.", decode(t, rr)["mensaje"])
	cleared := sessionCookie(t, rr)
	assert.Empty(t, cleared.Value)
	assert.Less(t, cleared.MaxAge, 0)
}

func TestPasswordResetEnumerationPolicy(t *testing.T) {
	t.Run("generic by default", func(t *testing.T) {
		h := newHarness(t)
		rr := h.do(t, http.MethodPost, "/usuarios/password-reset/request", map[string]string{"email": "ghost@x.com"})
		require.Equal(t, http.StatusOK, rr.Code)
		body := decode(t, rr)
		assert.Equal(t, "Token de reseteo generado.", body["mensaje"])
		assert.NotContains(t, body, "dev_token")
	})

	t.Run("revealed when configured", func(t *testing.T) {
		h := newHarness(t, func(cfg *config.AppConfig) { cfg.Auth.RevealUnknownResetAccounts = true })
		rr := h.do(t, http.MethodPost, "/usuarios/password-reset/request", map[string]string{"email": "ghost@x.com"})
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("token never echoed by default in development", func(t *testing.T) {
		h := newHarness(t)
		require.Equal(t, http.StatusCreated, h.do(t, http.MethodPost, "/usuarios/register", ana).Code)

		known := h.do(t, http.MethodPost, "/usuarios/password-reset/request", map[string]string{"email": "ana@x.com"})
		unknown := h.do(t, http.MethodPost, "/usuarios/password-reset/request", map[string]string{"email": "ghost@x.com"})
		require.Equal(t, http.StatusOK, known.Code)
		require.Equal(t, http.StatusOK, unknown.Code)

		body := decode(t, known)
		assert.NotContains(t, body, "dev_token")
		assert.NotContains(t, body, "expires_at")
		assert.JSONEq(t, unknown.Body.String(), known.Body.String())

		stored, err := h.accounts.FindByEmail(context.Background(), "ana@x.com")
		require.NoError(t, err)
		assert.NotNil(t, stored.ResetExpiresAt, "the token is still issued out of band")
	})

	t.Run("token echoed only when explicitly enabled", func(t *testing.T) {
		h := newHarness(t, func(cfg *config.AppConfig) { cfg.Auth.EchoResetToken = true })
		require.Equal(t, http.StatusCreated, h.do(t, http.MethodPost, "/usuarios/register", ana).Code)
		rr := h.do(t, http.MethodPost, "/usuarios/password-reset/request", map[string]string{"email": "ana@x.com"})
		require.Equal(t, http.StatusOK, rr.Code)
		assert.NotEmpty(t, decode(t, rr)["dev_token"])
	})
}

func TestExternalSignInRedirectFlow(t *testing.T) {
	h := newHarness(t)
	h.provider.profile = domain.ExternalProfile{
		Provider:      domain.AuthProviderGoogle,
		SubjectID:     "google-sub-1",
		Email:         "carla@x.com",
		EmailVerified: true,
		Name:          "Carla Ruiz Soto",
	}

	start := h.do(t, http.MethodGet, "/usuarios/auth/external", nil)
	require.Equal(t, http.StatusFound, start.Code)
	var state *http.Cookie
	for _, c := range start.Result().Cookies() {
		if c.Name == "oauth_state" {
			state = c
		}
	}
	require.NotNil(t, state)
	assert.Contains(t, start.Header().Get("Location"), url.QueryEscape(state.Value))

	rr := h.do(t, http.MethodGet, "/usuarios/auth/external/callback?code=abc&state="+url.QueryEscape(state.Value), nil, withCookie(state))
	require.Equal(t, http.StatusFound, rr.Code)
	location := rr.Header().Get("Location")
	assert.Equal(t, "https://app.hifybe.test/dashboard", location)
	assert.NotContains(t, location, "token")
	session := sessionCookie(t, rr)
	require.NotEmpty(t, session.Value)

	me := h.do(t, http.MethodGet, "/usuarios/me", nil, withCookie(session))
	require.Equal(t, http.StatusOK, me.Code)
	assert.Equal(t, "carla@x.com", decode(t, me)["usuario"].(map[string]any)["email"])

	created, err := h.accounts.FindByExternalID(context.Background(), "google-sub-1")
	require.NoError(t, err)
	assert.Equal(t, "Carla", created.Name)
	assert.Equal(t, "Ruiz Soto", created.Surname)
}

func TestExternalSignInFailuresRedirectToLogin(t *testing.T) {
	h := newHarness(t)

	rr := h.do(t, http.MethodGet, "/usuarios/auth/external/callback?code=abc&state=forged", nil)
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "https://app.hifybe.test/login?error=invalid_state", rr.Header().Get("Location"))

	h.provider.err = errors.New("token endpoint unreachable")
	state := &http.Cookie{Name: "oauth_state", Value: "s1"}
	rr = h.do(t, http.MethodGet, "/usuarios/auth/external/callback?code=abc&state=s1", nil, withCookie(state))
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "https://app.hifybe.test/login?error=provider_error", rr.Header().Get("Location"))
}

func TestMetricsEndpointExposesAuthCounters(t *testing.T) {
	h := newHarness(t)
	h.do(t, http.MethodPost, "/usuarios/login", map[string]string{"email": "nobody@x.com", "password": "secret1"})

	rr := h.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `hifybe_auth_logins_total{outcome="invalid_credentials"} 1`)
	assert.Contains(t, rr.Body.String(), "hifybe_http_requests_total")
}

func TestRegisterRoutesWithoutMetricsEndpoint(t *testing.T) {
	h := newHarness(t, func(cfg *config.AppConfig) { cfg.Telemetry.MetricsEnabled = false })
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodGet, "/metrics", nil).Code)
}
