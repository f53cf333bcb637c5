package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	Port             string
	DatabaseURL      string
	AdminJWTSecret   string
	GeoIPDBPath      string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	CORSOrigins      []string

	GatewayMode        string
	GatewaySecretTest  string
	GatewaySecretLive  string
	WebhookSecretTest  string
	WebhookSecretLive  string
	GatewayBaseURL     string
	GatewayTimeout     time.Duration
	EnableBoleto       bool
	EnableMonthly      bool
	EnableAnnual       bool
	EnableInvoiceEmail bool

	SMTP SMTPConfig

	ExchangeAPIURL       string
	ExchangeAPIKey       string
	ExchangeTTL          time.Duration
	ExchangeFallbackRate float64

	RabbitMQURL    string
	EventsExchange string

	SweepInterval time.Duration
	SweepLease    time.Duration
}

// SMTPConfig is passed through untouched to the mailer.
type SMTPConfig struct {
	Host       string
	Port       int
	Encryption string
	User       string
	Password   string
	FromEmail  string
	FromName   string
	SiteName   string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             getEnv("PORT", "8080"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		AdminJWTSecret:   os.Getenv("ADMIN_JWT_SECRET"),
		GeoIPDBPath:      os.Getenv("GEOIP_DB_PATH"),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		CORSOrigins:      splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),

		GatewayMode:        strings.ToLower(getEnv("GATEWAY_MODE", "test")),
		GatewaySecretTest:  strings.TrimSpace(os.Getenv("GATEWAY_SECRET_KEY_TEST")),
		GatewaySecretLive:  strings.TrimSpace(os.Getenv("GATEWAY_SECRET_KEY_LIVE")),
		WebhookSecretTest:  strings.TrimSpace(os.Getenv("GATEWAY_WEBHOOK_SECRET_TEST")),
		WebhookSecretLive:  strings.TrimSpace(os.Getenv("GATEWAY_WEBHOOK_SECRET_LIVE")),
		GatewayBaseURL:     os.Getenv("GATEWAY_BASE_URL"),
		GatewayTimeout:     time.Second * time.Duration(getEnvInt("GATEWAY_TIMEOUT_SECONDS", 10)),
		EnableBoleto:       getEnvBool("ENABLE_BOLETO", true),
		EnableMonthly:      getEnvBool("ENABLE_RECURRING_MONTHLY", true),
		EnableAnnual:       getEnvBool("ENABLE_RECURRING_ANNUAL", true),
		EnableInvoiceEmail: getEnvBool("ENABLE_INVOICE_EMAIL", false),

		SMTP: SMTPConfig{
			Host:       os.Getenv("SMTP_HOST"),
			Port:       getEnvInt("SMTP_PORT", 587),
			Encryption: strings.ToLower(getEnv("SMTP_ENCRYPTION", "tls")),
			User:       os.Getenv("SMTP_USER"),
			Password:   os.Getenv("SMTP_PASSWORD"),
			FromEmail:  os.Getenv("SMTP_FROM_EMAIL"),
			FromName:   os.Getenv("SMTP_FROM_NAME"),
			SiteName:   getEnv("SITE_NAME", "Donations"),
		},

		ExchangeAPIURL:       getEnv("EXCHANGE_API_URL", "https://apilayer.net/api/live"),
		ExchangeAPIKey:       os.Getenv("EXCHANGE_API_KEY"),
		ExchangeTTL:          time.Hour * time.Duration(getEnvInt("EXCHANGE_TTL_HOURS", 12)),
		ExchangeFallbackRate: getEnvFloat("EXCHANGE_FALLBACK_RATE", 5.0),

		RabbitMQURL:    os.Getenv("RABBITMQ_URL"),
		EventsExchange: getEnv("EVENTS_EXCHANGE", "donation.events"),

		SweepInterval: time.Hour * time.Duration(getEnvInt("SWEEP_INTERVAL_HOURS", 24)),
		SweepLease:    time.Minute * time.Duration(getEnvInt("SWEEP_LEASE_MINUTES", 30)),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	switch cfg.GatewayMode {
	case "test", "live":
	default:
		return nil, fmt.Errorf("GATEWAY_MODE must be test or live, got %q", cfg.GatewayMode)
	}

	return cfg, nil
}

// RequireAdminSecret reports the missing admin secret for binaries that serve admin routes.
func (c *Config) RequireAdminSecret() error {
	if strings.TrimSpace(c.AdminJWTSecret) == "" {
		return fmt.Errorf("ADMIN_JWT_SECRET is required")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && f > 0 {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}
