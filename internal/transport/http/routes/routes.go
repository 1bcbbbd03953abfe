package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Maarioo25/HiFybe/internal/infra/config"
	"github.com/Maarioo25/HiFybe/internal/transport/http/handlers"
	"github.com/Maarioo25/HiFybe/internal/transport/http/middleware"
	"github.com/Maarioo25/HiFybe/internal/transport/http/session"
	"github.com/Maarioo25/HiFybe/internal/usecase"
)

const defaultBasePath = "/usuarios"

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth          *usecase.AuthService
	Registration  *usecase.RegistrationService
	Sessions      *usecase.SessionService
	PasswordReset *usecase.PasswordResetService
	Profile       *usecase.ProfileService
	// External is nil when Google sign-in is not configured.
	External *usecase.ExternalAuthService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config         *config.AppConfig
	Logger         *zap.Logger
	RateLimiter    *middleware.RateLimiter
	Services       ServiceSet
	Transport      *session.Transport
	HTTPMetrics    *middleware.HTTPMetrics
	Gatherer       prometheus.Gatherer
	TracerProvider trace.TracerProvider
	Database       DatabaseChecker
	Cache          CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	cfg := deps.Config
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	transport := deps.Transport
	if transport == nil {
		transport = session.NewTransport(session.Config{
			CookieName: cfg.HTTP.CookieName,
			Secure:     cfg.CookieSecure(),
			Domain:     cfg.HTTP.CookieDomain,
		})
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Tracing(middleware.TracingOptions{TracerProvider: deps.TracerProvider}))
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.CORS(cfg.HTTP.CORSOrigins))
	r.Use(deps.HTTPMetrics.Handler())

	healthHandler := handlers.NewHealthHandler()
	if deps.Database != nil {
		healthHandler.WithReadinessCheck("database", deps.Database.Ping)
	}
	if deps.Cache != nil {
		healthHandler.WithReadinessCheck("redis", deps.Cache.HealthCheck)
	}

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	if cfg.Telemetry.MetricsEnabled {
		gatherer := deps.Gatherer
		if gatherer == nil {
			gatherer = prometheus.DefaultGatherer
		}
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	basePath := cfg.HTTP.BasePath
	if basePath == "" {
		basePath = defaultBasePath
	}
	api := r.Group(basePath)
	{
		requireSession := middleware.RequireSession(deps.Services.Sessions, transport, deps.Logger)

		authHandler := handlers.NewAuthHandler(deps.Services.Auth, deps.Services.Sessions, transport,
			handlers.WithRegistrationService(deps.Services.Registration),
		)
		authHandler.RegisterRoutes(api, handlers.AuthRouteMiddleware{
			Login:    buildRateLimit(deps, "login_ip", cfg.RateLimit.LoginMaxAttempts, cfg.RateLimit.LoginWindow),
			Register: buildRateLimit(deps, "register_ip", cfg.RateLimit.RegisterMaxAttempts, cfg.RateLimit.RegisterWindow),
		}, requireSession)

		passwordHandler := handlers.NewPasswordHandler(deps.Services.PasswordReset,
			cfg.Auth.EchoResetToken,
			cfg.Auth.RevealUnknownResetAccounts,
		)
		passwordHandler.RegisterRoutes(api,
			buildRateLimit(deps, "password_reset_ip", cfg.RateLimit.ResetMaxAttempts, cfg.RateLimit.ResetWindow)...,
		)

		handlers.NewProfileHandler(deps.Services.Profile).RegisterRoutes(api, requireSession)

		oauthHandler := handlers.NewOAuthHandler(deps.Services.External, transport, cfg.HTTP.FrontendURL, cfg.CookieSecure())
		oauthHandler.RegisterRoutes(api)
	}

	return r
}

func buildRateLimit(deps Dependencies, name string, limit int, window time.Duration) []gin.HandlerFunc {
	if deps.RateLimiter == nil || !deps.Config.RateLimit.Enabled || limit <= 0 || window <= 0 {
		return nil
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(middleware.RateLimitRule{
		Name:       name,
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	})}
}
