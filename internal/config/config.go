package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultNotifyTimeout = 10 * time.Second

type Config struct {
	// Application
	AppName        string
	AppEnv         string
	AppURL         string
	Port           string
	OwnerEmail     string
	ContentPath    string
	AllowedOrigins []string

	// Database (optional driver switch via ENV, default: sqlite)
	DBDriver     string
	DBConnection string

	// Newsletter
	TokenExpiry       time.Duration // 0 disables expiry
	UnsubscribeSecret string
	NotifyTimeout     time.Duration

	// Email
	EmailProvider      string // "log", "resend", "ses" or "sendgrid"
	EmailFrom          string
	EmailFromName      string
	ResendAPIKey       string
	ResendAudienceID   string
	SendGridAPIKey     string
	SESRegion          string
	SESAccessKey       string
	SESSecretKey       string
	EmailWebhookSecret string

	// Contact form persistence: "none", "db" or "s3"
	ContactStore string

	// Storage (S3-compatible, only needed when ContactStore is "s3")
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Endpoint  string

	// Rate limiting (Redis optional, falls back to in-memory)
	RedisURL          string
	RateLimitCount    int
	RateLimitWindow   time.Duration
	TrustProxyHeaders bool // honor X-Forwarded-For / X-Real-IP; enable only behind a proxy that sets them

	// Events (optional)
	KafkaBrokers  []string
	KafkaTopic    string
	KafkaUsername string
	KafkaPassword string

	// Observability (optional)
	SentryDSN string
}

func Load() *Config {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg := &Config{
		// Application
		AppName:        envString("APP_NAME", "Ghondi Studio"),
		AppEnv:         envRequired("APP_ENV"), // Required: 'development' or 'production'
		AppURL:         envRequired("APP_URL"), // Required: base URL for verification and unsubscribe links
		Port:           envString("PORT", "8090"),
		OwnerEmail:     envString("OWNER_EMAIL", "hello@example.com"),
		ContentPath:    envString("CONTENT_PATH", "content"),
		AllowedOrigins: envList("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),

		// Database
		DBDriver:     envString("DB_DRIVER", "sqlite"),
		DBConnection: envString("DB_CONNECTION", "./data/portfolio.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"),

		// Newsletter
		TokenExpiry:       envDuration("NEWSLETTER_TOKEN_EXPIRY", 72*time.Hour),
		UnsubscribeSecret: envString("UNSUBSCRIBE_SECRET", ""),
		NotifyTimeout:     envDuration("NOTIFY_TIMEOUT", defaultNotifyTimeout),

		// Email (provider defaults to log mode, which prints links instead of sending)
		EmailProvider:      envString("EMAIL_PROVIDER", "log"),
		EmailFrom:          envString("EMAIL_FROM", "noreply@example.com"),
		EmailFromName:      envString("EMAIL_FROM_NAME", ""),
		ResendAPIKey:       envString("RESEND_API_KEY", ""),
		ResendAudienceID:   envString("RESEND_AUDIENCE_ID", ""),
		SendGridAPIKey:     envString("SENDGRID_API_KEY", ""),
		SESRegion:          envString("SES_REGION", "us-east-1"),
		SESAccessKey:       envString("SES_ACCESS_KEY", ""),
		SESSecretKey:       envString("SES_SECRET_KEY", ""),
		EmailWebhookSecret: envString("EMAIL_WEBHOOK_SECRET", ""),

		ContactStore: envString("CONTACT_STORE", "db"),

		// Storage
		S3Region:    envString("S3_REGION", "us-east-1"),
		S3Bucket:    envString("S3_BUCKET", ""),
		S3AccessKey: envString("S3_ACCESS_KEY", ""),
		S3SecretKey: envString("S3_SECRET_KEY", ""),
		S3Endpoint:  envString("S3_ENDPOINT", ""), // Optional: for non-AWS providers

		// Rate limiting
		RedisURL:          envString("REDIS_URL", ""),
		RateLimitCount:    envInt("RATE_LIMIT_COUNT", 5),
		RateLimitWindow:   envDuration("RATE_LIMIT_WINDOW", 15*time.Minute),
		TrustProxyHeaders: envBool("TRUST_PROXY_HEADERS", false),

		// Events
		KafkaBrokers:  envList("KAFKA_BROKERS", nil),
		KafkaTopic:    envString("KAFKA_TOPIC", "portfolio.subscribers"),
		KafkaUsername: envString("KAFKA_USERNAME", ""),
		KafkaPassword: envString("KAFKA_PASSWORD", ""),

		// Observability
		SentryDSN: envString("SENTRY_DSN", ""),
	}

	if cfg.NotifyTimeout <= 0 {
		slog.Warn("config NOTIFY_TIMEOUT must be positive, using default", "value", cfg.NotifyTimeout)
		cfg.NotifyTimeout = defaultNotifyTimeout
	}

	if cfg.UnsubscribeSecret == "" && cfg.IsDevelopment() {
		cfg.UnsubscribeSecret = "dev-unsubscribe-secret"
	}

	// Production: validate required services
	if cfg.IsProduction() {
		validateProduction(cfg)
	}

	return cfg
}

// validateProduction ensures all required services are configured for production deployments.
// Development allows email to run in log mode for easier local testing.
func validateProduction(cfg *Config) {
	problems := cfg.productionProblems()
	for _, problem := range problems {
		slog.Error("production deployment misconfigured", "problem", problem,
			"hint", "set APP_ENV=development for local testing with email log mode")
	}
	if len(problems) > 0 {
		os.Exit(1)
	}
}

func (c *Config) productionProblems() []string {
	var problems []string
	switch c.EmailProvider {
	case "resend":
		if c.ResendAPIKey == "" {
			problems = append(problems, "EMAIL_PROVIDER=resend requires RESEND_API_KEY")
		}
	case "sendgrid":
		if c.SendGridAPIKey == "" {
			problems = append(problems, "EMAIL_PROVIDER=sendgrid requires SENDGRID_API_KEY")
		}
	case "ses":
		if c.SESAccessKey == "" || c.SESSecretKey == "" {
			problems = append(problems, "EMAIL_PROVIDER=ses requires SES_ACCESS_KEY and SES_SECRET_KEY")
		}
	default:
		problems = append(problems, "EMAIL_PROVIDER must be resend, ses or sendgrid")
	}
	if c.UnsubscribeSecret == "" {
		problems = append(problems, "UNSUBSCRIBE_SECRET is required")
	}
	if c.ContactStore == "s3" && c.S3Bucket == "" {
		problems = append(problems, "CONTACT_STORE=s3 requires S3_BUCKET")
	}
	return problems
}

func envString(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		value = def
	}
	return value
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("config invalid bool, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("config invalid int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("config invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

// envList splits a comma separated value, dropping empty entries.
func envList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envRequired(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	slog.Error("config required env var missing", "key", key)
	os.Exit(1)
	return ""
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// RedisEnabled reports whether rate limit counters should live in Redis.
func (c *Config) RedisEnabled() bool {
	return c.RedisURL != ""
}

// KafkaEnabled reports whether lifecycle events are published to Kafka.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}
