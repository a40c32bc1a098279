package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the service
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Session  SessionConfig
	Auth     AuthConfig
	Stripe   StripeConfig
	Email    EmailConfig
	Firebase FirebaseConfig
	Redis    RedisConfig
	NATS     NATSConfig
	Geo      GeoConfig
	Jobs     JobsConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port             string
	Environment      string
	AllowedOrigins   string
	BodyLimitBytes   int
	RateLimitMax     int
	RateLimitWindow  time.Duration
	FrontendURL      string
	ShutdownTimeout  time.Duration
	PaymentTermsDays int

	// ProxyHeader names the header carrying the client IP behind a reverse proxy
	// (e.g. X-Forwarded-For). Empty means the socket address is used.
	ProxyHeader    string
	TrustedProxies []string
}

type DatabaseConfig struct {
	URL             string
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	ConnectRetries  int
	// WatchdogFailures is the number of consecutive failed pings after which the
	// process exits so the platform can relaunch it. Zero disables the watchdog.
	WatchdogFailures int
	WatchdogInterval time.Duration
}

type SessionConfig struct {
	CookieName string
	Secure     bool
	SameSite   string
	Expiration time.Duration
}

type AuthConfig struct {
	// ResetSecret signs password-reset tokens.
	ResetSecret string
	ResetTTL    time.Duration
	TrialDays   int
}

type StripeConfig struct {
	LiveSecretKey     string
	TestSecretKey     string
	LiveWebhookSecret string
	TestWebhookSecret string
	LivePriceID       string
	TestPriceID       string
	DefaultMode       string
}

type EmailConfig struct {
	BrevoAPIKey    string
	BrevoAPIURL    string
	SendGridAPIKey string
	FromEmail      string
	FromName       string
}

type FirebaseConfig struct {
	CredentialsFile string
	StorageBucket   string
}

type RedisConfig struct {
	URL string
}

type NATSConfig struct {
	URL string
}

type GeoConfig struct {
	Provider string
	Timeout  time.Duration
}

type JobsConfig struct {
	Enabled                 bool
	OverdueSchedule         string
	RecycleBinSchedule      string
	SessionCleanupSchedule  string
	RecycleBinRetentionDays int
	IdempotencyKeyRetention time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads .env (when present) and builds the configuration from the environment.
func Load() *Config {
	_ = godotenv.Load()

	bodyLimit := envInt("BODY_LIMIT_BYTES", 0)
	if bodyLimit <= 0 {
		bodyLimit = envInt("BODY_LIMIT_MB", 4) * 1024 * 1024
	}

	env := getEnv("APP_ENV", "development")

	return &Config{
		Server: ServerConfig{
			Port:             getEnv("PORT", "8080"),
			Environment:      env,
			AllowedOrigins:   getEnv("ALLOWED_ORIGINS", "http://localhost:5173"),
			BodyLimitBytes:   bodyLimit,
			RateLimitMax:     envInt("RATE_LIMIT_MAX", 120),
			RateLimitWindow:  time.Duration(envInt("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,
			FrontendURL:      strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:5173"), "/"),
			ShutdownTimeout:  time.Duration(envInt("SHUTDOWN_TIMEOUT_SECONDS", 10)) * time.Second,
			PaymentTermsDays: envInt("PAYMENT_TERMS_DAYS", 30),
			ProxyHeader:      os.Getenv("PROXY_HEADER"),
			TrustedProxies:   envList("TRUSTED_PROXIES"),
		},
		Database: DatabaseConfig{
			URL:              os.Getenv("DATABASE_URL"),
			Host:             getEnv("DB_HOST", "localhost"),
			Port:             getEnv("DB_PORT", "5432"),
			User:             getEnv("DB_USER", "postgres"),
			Password:         os.Getenv("DB_PASSWORD"),
			Name:             getEnv("DB_NAME", "invoicing"),
			SSLMode:          getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:     envInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:     envInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  time.Duration(envInt("DB_CONN_MAX_LIFETIME_SECONDS", 1800)) * time.Second,
			ConnMaxIdleTime:  time.Duration(envInt("DB_CONN_MAX_IDLE_SECONDS", 300)) * time.Second,
			ConnectRetries:   envInt("DB_CONNECT_RETRIES", 5),
			WatchdogFailures: envInt("DB_WATCHDOG_FAILURES", 3),
			WatchdogInterval: time.Duration(envInt("DB_WATCHDOG_INTERVAL_SECONDS", 30)) * time.Second,
		},
		Session: SessionConfig{
			CookieName: getEnv("SESSION_COOKIE_NAME", "sid"),
			Secure:     envBool("SESSION_COOKIE_SECURE", env == "production"),
			SameSite:   getEnv("SESSION_COOKIE_SAMESITE", "Lax"),
			Expiration: time.Duration(envInt("SESSION_TTL_HOURS", 24*7)) * time.Hour,
		},
		Auth: AuthConfig{
			ResetSecret: getEnv("SESSION_SECRET", os.Getenv("JWT_SECRET")),
			ResetTTL:    time.Duration(envInt("PASSWORD_RESET_TTL_MINUTES", 60)) * time.Minute,
			TrialDays:   envInt("TRIAL_DAYS", 14),
		},
		Stripe: StripeConfig{
			LiveSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
			TestSecretKey:     os.Getenv("STRIPE_TEST_SECRET_KEY"),
			LiveWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
			TestWebhookSecret: os.Getenv("STRIPE_TEST_WEBHOOK_SECRET"),
			LivePriceID:       os.Getenv("STRIPE_PRICE_ID"),
			TestPriceID:       os.Getenv("STRIPE_TEST_PRICE_ID"),
			DefaultMode:       getEnv("STRIPE_MODE", "test"),
		},
		Email: EmailConfig{
			BrevoAPIKey:    os.Getenv("BREVO_API_KEY"),
			BrevoAPIURL:    getEnv("BREVO_API_URL", "https://api.brevo.com/v3"),
			SendGridAPIKey: os.Getenv("SENDGRID_API_KEY"),
			FromEmail:      getEnv("EMAIL_FROM", "no-reply@example.com"),
			FromName:       getEnv("EMAIL_FROM_NAME", "Invoicing"),
		},
		Firebase: FirebaseConfig{
			CredentialsFile: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
			StorageBucket:   os.Getenv("FIREBASE_STORAGE_BUCKET"),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		NATS: NATSConfig{
			URL: os.Getenv("NATS_URL"),
		},
		Geo: GeoConfig{
			Provider: getEnv("GEO_PROVIDER", "ip-api"),
			Timeout:  time.Duration(envInt("GEO_TIMEOUT_SECONDS", 5)) * time.Second,
		},
		Jobs: JobsConfig{
			Enabled:                 envBool("JOBS_ENABLED", true),
			OverdueSchedule:         getEnv("JOBS_OVERDUE_SCHEDULE", "0 15 1 * * *"),
			RecycleBinSchedule:      getEnv("JOBS_RECYCLE_BIN_SCHEDULE", "0 30 2 * * *"),
			SessionCleanupSchedule:  getEnv("JOBS_SESSION_CLEANUP_SCHEDULE", "0 0 * * * *"),
			RecycleBinRetentionDays: envInt("RECYCLE_BIN_RETENTION_DAYS", 30),
			IdempotencyKeyRetention: time.Duration(envInt("IDEMPOTENCY_KEY_RETENTION_HOURS", 24)) * time.Hour,
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", defaultLogFormat(env)),
		},
	}
}

// IsProduction reports whether the service runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func defaultLogFormat(env string) string {
	if env == "production" {
		return "json"
	}
	return "text"
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// envInt reads an int env var with a default fallback.
// envList splits a comma-separated variable, dropping empty entries.
func envList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
