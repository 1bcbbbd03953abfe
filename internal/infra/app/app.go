package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Maarioo25/HiFybe/internal/core/port"
	"github.com/Maarioo25/HiFybe/internal/infra/config"
	"github.com/Maarioo25/HiFybe/internal/infra/database"
	kafkainfra "github.com/Maarioo25/HiFybe/internal/infra/kafka"
	"github.com/Maarioo25/HiFybe/internal/infra/logger"
	"github.com/Maarioo25/HiFybe/internal/infra/oauth"
	redisinfra "github.com/Maarioo25/HiFybe/internal/infra/redis"
	"github.com/Maarioo25/HiFybe/internal/infra/security"
	"github.com/Maarioo25/HiFybe/internal/infra/telemetry"
	postgresrepo "github.com/Maarioo25/HiFybe/internal/repository/postgres"
	redisrepo "github.com/Maarioo25/HiFybe/internal/repository/redis"
	"github.com/Maarioo25/HiFybe/internal/transport/http/middleware"
	"github.com/Maarioo25/HiFybe/internal/transport/http/routes"
	"github.com/Maarioo25/HiFybe/internal/transport/http/session"
	"github.com/Maarioo25/HiFybe/internal/usecase"
)

type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
	tracer   *telemetry.TracerProvider
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &Application{cfg: cfg, logger: log}
	if err := a.build(ctx); err != nil {
		a.release(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *Application) build(ctx context.Context) error {
	cfg, log := a.cfg, a.logger

	tracer, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	a.tracer = tracer

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return fmt.Errorf("init postgres: %w", err)
	}
	a.pool = pool

	if cfg.Postgres.AutoMigrate {
		if err := database.RunMigrations(ctx, pool, cfg.Postgres, log); err != nil {
			return fmt.Errorf("migrate postgres: %w", err)
		}
	}
	repos := postgresrepo.NewRepositories(pool)

	secrets, err := signingSecret(cfg, log)
	if err != nil {
		return err
	}
	tokens, err := security.NewTokenManager(secrets, cfg.JWT.Issuer,
		security.WithTokenTTLs(cfg.JWT.SessionTTL, cfg.JWT.ResetTTL),
	)
	if err != nil {
		return fmt.Errorf("init token manager: %w", err)
	}

	hasher, err := security.NewArgon2Hasher(port.Argon2Params{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		return fmt.Errorf("configure argon2: %w", err)
	}
	policy := security.NewPasswordPolicy(cfg.Password.MinLength, cfg.Password.MaxLength, cfg.Password.MinStrength)

	var (
		rateLimiter *middleware.RateLimiter
		denylist    port.SessionDenylist
	)
	if cfg.Redis.Enabled {
		redisClient, err := redisinfra.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			return fmt.Errorf("init redis: %w", err)
		}
		a.redis = redisClient

		rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
			KeyPrefix: cfg.Redis.RateLimitPrefix,
			TTL:       longestWindow(cfg.RateLimit) * 2,
		})
		rateLimiter = middleware.NewRateLimiter(rateLimitStore, log)

		if cfg.Session.RevocationEnabled {
			denylist = redisrepo.NewSessionDenylist(redisClient.Client(), cfg.Redis.DenylistPrefix)
		}
	} else {
		log.Info("redis disabled, rate limiting and session revocation are off")
	}

	events := a.eventPublisher()

	authMetrics, err := telemetry.NewAuthMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("init auth metrics: %w", err)
	}
	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		return fmt.Errorf("init http metrics: %w", err)
	}

	authService, err := usecase.NewAuthService(repos.Accounts, hasher, tokens, log)
	if err != nil {
		return fmt.Errorf("init auth service: %w", err)
	}
	authService.WithMetrics(authMetrics)

	sessionService := usecase.NewSessionService(repos.Accounts, tokens, log).
		WithLastSeenTouch(cfg.Session.TouchLastSeen)
	if denylist != nil {
		sessionService.WithDenylist(denylist)
	}

	registrationService := usecase.NewRegistrationService(repos.Accounts, hasher, policy, events, log).
		WithMetrics(authMetrics)
	passwordResetService := usecase.NewPasswordResetService(repos.Accounts, hasher, tokens, policy, events, log).
		WithMetrics(authMetrics)
	profileService := usecase.NewProfileService(repos.Accounts, log)

	var externalService *usecase.ExternalAuthService
	if cfg.Google.Enabled() {
		provider := oauth.NewGoogleProvider(oauth.GoogleConfig{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.RedirectURL,
			AuthURL:      cfg.Google.AuthURL,
			TokenURL:     cfg.Google.TokenURL,
			UserInfoURL:  cfg.Google.UserInfoURL,
		})
		externalService = usecase.NewExternalAuthService(provider, repos.Accounts, hasher, tokens, events, log).
			WithMetrics(authMetrics)
	} else {
		log.Info("google sign-in not configured")
	}

	deps := routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		Transport: session.NewTransport(session.Config{
			CookieName: cfg.HTTP.CookieName,
			Secure:     cfg.CookieSecure(),
			Domain:     cfg.HTTP.CookieDomain,
		}),
		HTTPMetrics:    httpMetrics,
		TracerProvider: tracer.Provider(),
		Database:       pool,
		Services: routes.ServiceSet{
			Auth:          authService,
			Registration:  registrationService,
			Sessions:      sessionService,
			PasswordReset: passwordResetService,
			Profile:       profileService,
			External:      externalService,
		},
	}
	if a.redis != nil {
		deps.Cache = a.redis
	}
	a.engine = routes.Register(deps)

	return nil
}

// signingSecret prefers a mounted secret file, then the configured value.
// Outside production a missing secret falls back to a per-process random key.
func signingSecret(cfg *config.AppConfig, log *zap.Logger) (security.SecretProvider, error) {
	switch {
	case cfg.JWT.SecretFile != "":
		secret, err := security.NewFileSecret(cfg.JWT.SecretFile)
		if err != nil {
			return nil, fmt.Errorf("load jwt secret file: %w", err)
		}
		return secret, nil
	case cfg.JWT.Secret != "":
		return security.StaticSecret(cfg.JWT.Secret), nil
	case cfg.App.IsProduction():
		return nil, config.ErrMissingSecret
	default:
		log.Warn("jwt secret not configured, using an ephemeral key; sessions will not survive a restart")
		secret, err := security.EphemeralSecret()
		if err != nil {
			return nil, fmt.Errorf("generate ephemeral secret: %w", err)
		}
		return secret, nil
	}
}

func (a *Application) eventPublisher() port.EventPublisher {
	if len(a.cfg.Kafka.Brokers) == 0 {
		a.logger.Info("kafka brokers not configured, using stub publisher")
		return kafkainfra.NewStubPublisher(a.logger)
	}

	producer, err := kafkainfra.NewProducer(a.cfg.Kafka, a.logger)
	if err != nil {
		a.logger.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
		return kafkainfra.NewStubPublisher(a.logger)
	}
	a.producer = producer
	a.logger.Info("kafka event publisher initialized", zap.Strings("brokers", a.cfg.Kafka.Brokers))
	return kafkainfra.NewEventPublisher(producer, a.cfg.App, a.logger)
}

func (a *Application) Run(ctx context.Context) error {
	defer a.release(context.Background())

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       orDefault(a.cfg.HTTP.ReadTimeout, 15*time.Second),
		WriteTimeout:      orDefault(a.cfg.HTTP.WriteTimeout, 15*time.Second),
		IdleTimeout:       orDefault(a.cfg.HTTP.IdleTimeout, 60*time.Second),
	}

	a.logger.Info("starting HiFybe identity API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
		zap.String("base_path", a.cfg.HTTP.BasePath),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}

// release closes whatever build managed to open, in reverse order.
func (a *Application) release(ctx context.Context) {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("close kafka producer", zap.Error(err))
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.tracer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := a.tracer.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("shutdown tracer provider", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

func longestWindow(cfg config.RateLimitSettings) time.Duration {
	longest := time.Minute
	for _, w := range []time.Duration{cfg.LoginWindow, cfg.RegisterWindow, cfg.ResetWindow} {
		if w > longest {
			longest = w
		}
	}
	return longest
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
