package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App       AppSettings       `mapstructure:"app"`
	HTTP      HTTPSettings      `mapstructure:"http"`
	Postgres  PostgresSettings  `mapstructure:"postgres"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Kafka     KafkaSettings     `mapstructure:"kafka"`
	JWT       JWTSettings       `mapstructure:"jwt"`
	Google    GoogleSettings    `mapstructure:"google"`
	Telemetry TelemetrySettings `mapstructure:"telemetry"`
	RateLimit RateLimitSettings `mapstructure:"rate_limit"`
	Argon2    Argon2Settings    `mapstructure:"argon2"`
	Password  PasswordSettings  `mapstructure:"password"`
	Session   SessionSettings   `mapstructure:"session"`
	Auth      AuthSettings      `mapstructure:"auth"`
}

type AppSettings struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// IsProduction reports whether the service runs with production semantics
// (secure cookies, JSON logs, mandatory signing secret).
func (a AppSettings) IsProduction() bool {
	return strings.EqualFold(a.Env, "production")
}

// HTTPSettings configures the public HTTP surface consumed by the HiFybe frontend.
type HTTPSettings struct {
	BasePath     string        `mapstructure:"base_path"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`
	CookieName   string        `mapstructure:"cookie_name"`
	CookieSecure *bool         `mapstructure:"cookie_secure"`
	CookieDomain string        `mapstructure:"cookie_domain"`
	FrontendURL  string        `mapstructure:"frontend_url"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type PostgresSettings struct {
	DSN               string        `mapstructure:"dsn"`
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	Schema            string        `mapstructure:"schema"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	AutoMigrate       bool          `mapstructure:"auto_migrate"`
}

// ConnString returns the configured DSN or assembles one from the discrete fields.
func (p PostgresSettings) ConnString() string {
	if p.DSN != "" {
		return p.DSN
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User,
		p.Password,
		p.Host,
		p.Port,
		p.Database,
		p.SSLMode,
	)
}

// RedisSettings configures Redis connection and TLS
type RedisSettings struct {
	Enabled         bool   `mapstructure:"enabled"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	DB              int    `mapstructure:"db"`
	Password        string `mapstructure:"password"`
	TLSEnabled      bool   `mapstructure:"tls_enabled"`
	RateLimitPrefix string `mapstructure:"rate_limit_prefix"`
	DenylistPrefix  string `mapstructure:"denylist_prefix"`
}

// KafkaSettings configures Kafka producer
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
	ClientID    string   `mapstructure:"client_id"`
}

// RateLimitSettings configures sliding windows per public endpoint.
type RateLimitSettings struct {
	Enabled             bool          `mapstructure:"enabled"`
	LoginMaxAttempts    int           `mapstructure:"login_max_attempts"`
	LoginWindow         time.Duration `mapstructure:"login_window"`
	RegisterMaxAttempts int           `mapstructure:"register_max_attempts"`
	RegisterWindow      time.Duration `mapstructure:"register_window"`
	ResetMaxAttempts    int           `mapstructure:"password_reset_max_attempts"`
	ResetWindow         time.Duration `mapstructure:"password_reset_window"`
}

// Argon2Settings configures Argon2id password hashing parameters
type Argon2Settings struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

type JWTSettings struct {
	Secret     string        `mapstructure:"secret"`
	SecretFile string        `mapstructure:"secret_file"`
	Issuer     string        `mapstructure:"issuer"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
	ResetTTL   time.Duration `mapstructure:"reset_ttl"`
}

// GoogleSettings configures the Google OAuth2 client. The endpoint overrides
// exist for tests and self-hosted mocks.
type GoogleSettings struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url"`
	AuthURL      string `mapstructure:"auth_url"`
	TokenURL     string `mapstructure:"token_url"`
	UserInfoURL  string `mapstructure:"userinfo_url"`
}

// Enabled reports whether enough settings are present to run the OAuth flow.
func (g GoogleSettings) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != "" && g.RedirectURL != ""
}

type PasswordSettings struct {
	MinLength   int `mapstructure:"min_length"`
	MaxLength   int `mapstructure:"max_length"`
	MinStrength int `mapstructure:"min_strength"`
}

type SessionSettings struct {
	TouchLastSeen     bool `mapstructure:"touch_last_seen"`
	RevocationEnabled bool `mapstructure:"revocation_enabled"`
}

type AuthSettings struct {
	RevealUnknownResetAccounts bool `mapstructure:"reveal_unknown_reset_accounts"`
	// EchoResetToken returns the live reset token in the request response.
	// Local tooling only; it hands the account to whoever knows the email.
	EchoResetToken bool `mapstructure:"echo_reset_token"`
}

type TelemetrySettings struct {
	MetricsEnabled bool    `mapstructure:"metrics_enabled"`
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	SamplingRate   float64 `mapstructure:"sampling_rate"`
}

var (
	ErrMissingSecret  = errors.New("jwt secret is required in production")
	ErrResetTokenEcho = errors.New("auth.echo_reset_token must be off in production")
)

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("IAM")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"http.base_path",
		"http.cors_origins",
		"http.cookie_name",
		"http.cookie_secure",
		"http.cookie_domain",
		"http.frontend_url",
		"http.read_timeout",
		"http.write_timeout",
		"http.idle_timeout",
		"postgres.dsn",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
		"postgres.schema",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"postgres.auto_migrate",
		"redis.enabled",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.rate_limit_prefix",
		"redis.denylist_prefix",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.client_id",
		"jwt.secret",
		"jwt.secret_file",
		"jwt.issuer",
		"jwt.session_ttl",
		"jwt.reset_ttl",
		"google.client_id",
		"google.client_secret",
		"google.redirect_url",
		"google.auth_url",
		"google.token_url",
		"google.userinfo_url",
		"telemetry.metrics_enabled",
		"telemetry.otlp_endpoint",
		"telemetry.service_name",
		"telemetry.sampling_rate",
		"rate_limit.enabled",
		"rate_limit.login_max_attempts",
		"rate_limit.login_window",
		"rate_limit.register_max_attempts",
		"rate_limit.register_window",
		"rate_limit.password_reset_max_attempts",
		"rate_limit.password_reset_window",
		"argon2.memory",
		"argon2.iterations",
		"argon2.parallelism",
		"argon2.salt_length",
		"argon2.key_length",
		"password.min_length",
		"password.max_length",
		"password.min_strength",
		"session.touch_last_seen",
		"session.revocation_enabled",
		"auth.reveal_unknown_reset_accounts",
		"auth.echo_reset_token",
	}); err != nil {
		return nil, err
	}

	// Names used by the original HiFybe .env files.
	aliases := map[string]string{
		"jwt.secret":           "JWT_SECRET",
		"google.client_id":     "GOOGLE_CLIENT_ID",
		"google.client_secret": "GOOGLE_CLIENT_SECRET",
		"google.redirect_url":  "GOOGLE_CALLBACK_URL",
		"http.frontend_url":    "FRONTEND_URL",
		"app.port":             "PORT",
		"app.env":              "NODE_ENV",
	}
	for key, env := range aliases {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "IAM_"+envKey, envKey, env); err != nil {
			return nil, fmt.Errorf("bind env alias for %s: %w", key, err)
		}
	}

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks invariants that defaults cannot guarantee.
func (c *AppConfig) Validate() error {
	if c.App.IsProduction() && c.JWT.Secret == "" && c.JWT.SecretFile == "" {
		return ErrMissingSecret
	}
	if c.JWT.SessionTTL <= 0 {
		return fmt.Errorf("jwt.session_ttl must be positive, got %s", c.JWT.SessionTTL)
	}
	if c.JWT.ResetTTL <= 0 {
		return fmt.Errorf("jwt.reset_ttl must be positive, got %s", c.JWT.ResetTTL)
	}
	if c.Password.MinLength < 1 {
		return fmt.Errorf("password.min_length must be at least 1, got %d", c.Password.MinLength)
	}
	if c.App.IsProduction() && c.Auth.EchoResetToken {
		return ErrResetTokenEcho
	}
	if c.Password.MaxLength < c.Password.MinLength {
		return fmt.Errorf("password.max_length (%d) below min_length (%d)", c.Password.MaxLength, c.Password.MinLength)
	}
	return nil
}

// CookieSecure resolves the secure attribute for the session cookie, defaulting
// to true in production only.
func (c *AppConfig) CookieSecure() bool {
	if c.HTTP.CookieSecure != nil {
		return *c.HTTP.CookieSecure
	}
	return c.App.IsProduction()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "hifybe-identity")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 5000)

	v.SetDefault("http.base_path", "/usuarios")
	v.SetDefault("http.cors_origins", []string{"http://localhost:5173"})
	v.SetDefault("http.cookie_name", "token")
	v.SetDefault("http.frontend_url", "http://localhost:5173")
	v.SetDefault("http.read_timeout", "15s")
	v.SetDefault("http.write_timeout", "15s")
	v.SetDefault("http.idle_timeout", "60s")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "hifybe")
	v.SetDefault("postgres.password", "hifybe")
	v.SetDefault("postgres.database", "hifybe")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.schema", "identity")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")
	v.SetDefault("postgres.auto_migrate", true)

	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.rate_limit_prefix", "hifybe:ratelimit")
	v.SetDefault("redis.denylist_prefix", "hifybe:session:denylist")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic_prefix", "hifybe")
	v.SetDefault("kafka.client_id", "hifybe-identity")

	v.SetDefault("jwt.issuer", "hifybe")
	v.SetDefault("jwt.session_ttl", "168h")
	v.SetDefault("jwt.reset_ttl", "1h")

	v.SetDefault("telemetry.metrics_enabled", true)
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.service_name", "hifybe-identity")
	v.SetDefault("telemetry.sampling_rate", 1.0)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.login_max_attempts", 10)
	v.SetDefault("rate_limit.login_window", "1m")
	v.SetDefault("rate_limit.register_max_attempts", 5)
	v.SetDefault("rate_limit.register_window", "1m")
	v.SetDefault("rate_limit.password_reset_max_attempts", 5)
	v.SetDefault("rate_limit.password_reset_window", "15m")

	v.SetDefault("argon2.memory", 65536) // 64 MB
	v.SetDefault("argon2.iterations", 3)
	v.SetDefault("argon2.parallelism", 2)
	v.SetDefault("argon2.salt_length", 16)
	v.SetDefault("argon2.key_length", 32)

	v.SetDefault("password.min_length", 6)
	v.SetDefault("password.max_length", 256)
	v.SetDefault("password.min_strength", 0)

	v.SetDefault("session.touch_last_seen", true)
	v.SetDefault("session.revocation_enabled", false)

	v.SetDefault("auth.reveal_unknown_reset_accounts", false)
	v.SetDefault("auth.echo_reset_token", false)
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "IAM_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
