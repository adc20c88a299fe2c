package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	LogLevel           string
	DatabaseURL        string
	CORSAllowedOrigins []string

	// Slot sources: comma-separated "schema:table" (or "schema.table", or bare
	// table) entries selecting which physical tables hold bookable slots.
	SlotSources     string
	SlotSampleLimit int
	DefaultCurrency string

	// Payment provider. When PaymentProviderURL is empty and OfflinePayments is
	// true, charges resolve to a deterministic "paid" outcome for staging.
	PaymentProviderURL     string
	PaymentProviderKey     string
	PaymentProviderTimeout time.Duration
	OfflinePayments        bool

	AdminJWTSecret string

	// Notifications
	EmailProvider       string // "sendgrid", "ses" or "" (stub)
	SendGridAPIKey      string
	SendGridFromEmail   string
	SendGridFromName    string
	SESFromEmail        string
	SESFromName         string
	NotifyEmailAddrs    []string
	NotifySMSNumbers    []string
	NotifySMSFromNumber string

	// AWS (SES sender)
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Redis (approval request lock)
	RedisAddr       string
	RedisPassword   string
	RedisTLS        bool
	ApprovalLockTTL time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),

		SlotSources:     getEnv("SLOT_SOURCES", ""),
		SlotSampleLimit: getEnvAsInt("SLOT_SAMPLE_LIMIT", 25),
		DefaultCurrency: getEnv("DEFAULT_CURRENCY", "GBP"),

		PaymentProviderURL:     getEnv("PAYMENT_PROVIDER_URL", ""),
		PaymentProviderKey:     getEnv("PAYMENT_PROVIDER_KEY", ""),
		PaymentProviderTimeout: getEnvAsDuration("PAYMENT_PROVIDER_TIMEOUT", 30*time.Second),
		OfflinePayments:        getEnvAsBool("ALLOW_OFFLINE_PAYMENTS", true),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		EmailProvider:       strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", ""))),
		SendGridAPIKey:      getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail:   getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:    getEnv("SENDGRID_FROM_NAME", "Harbor Clinic"),
		SESFromEmail:        getEnv("SES_FROM_EMAIL", ""),
		SESFromName:         getEnv("SES_FROM_NAME", "Harbor Clinic"),
		NotifyEmailAddrs:    getEnvAsList("NOTIFY_EMAIL_RECIPIENTS"),
		NotifySMSNumbers:    getEnvAsList("NOTIFY_SMS_RECIPIENTS"),
		NotifySMSFromNumber: getEnv("NOTIFY_SMS_FROM_NUMBER", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisTLS:        getEnvAsBool("REDIS_TLS", false),
		ApprovalLockTTL: getEnvAsDuration("APPROVAL_LOCK_TTL", 30*time.Second),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated env var, dropping empty entries.
func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
