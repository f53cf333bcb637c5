package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("GATEWAY_MODE", "")
	t.Setenv("SMTP_PORT", "")
	t.Setenv("EXCHANGE_FALLBACK_RATE", "")
	t.Setenv("ENABLE_BOLETO", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.GatewayMode != "test" {
		t.Fatalf("GatewayMode = %q, want test", cfg.GatewayMode)
	}
	if cfg.SMTP.Port != 587 {
		t.Fatalf("SMTP.Port = %d, want 587", cfg.SMTP.Port)
	}
	if cfg.ExchangeFallbackRate != 5.0 {
		t.Fatalf("ExchangeFallbackRate = %v, want 5.0", cfg.ExchangeFallbackRate)
	}
	if cfg.ExchangeTTL != 12*time.Hour {
		t.Fatalf("ExchangeTTL = %s, want 12h", cfg.ExchangeTTL)
	}
	if !cfg.EnableBoleto {
		t.Fatalf("EnableBoleto should default to true")
	}
	if cfg.SweepInterval != 24*time.Hour {
		t.Fatalf("SweepInterval = %s, want 24h", cfg.SweepInterval)
	}
}

func TestLoadConfigRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error when DATABASE_URL is missing")
	}
}

func TestLoadConfigRejectsUnknownMode(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("GATEWAY_MODE", "staging")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error for unknown gateway mode")
	}
}

func TestLoadConfigParsesFlagsAndLists(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("GATEWAY_MODE", "LIVE")
	t.Setenv("ENABLE_RECURRING_ANNUAL", "false")
	t.Setenv("ENABLE_INVOICE_EMAIL", "1")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, ,https://b.example.com ")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.GatewayMode != "live" {
		t.Fatalf("GatewayMode = %q, want live", cfg.GatewayMode)
	}
	if cfg.EnableAnnual {
		t.Fatalf("EnableAnnual should be false")
	}
	if !cfg.EnableInvoiceEmail {
		t.Fatalf("EnableInvoiceEmail should be true")
	}
	want := []string{"https://a.example.com", "https://b.example.com"}
	if len(cfg.CORSOrigins) != len(want) {
		t.Fatalf("CORSOrigins = %#v, want %#v", cfg.CORSOrigins, want)
	}
	for i := range want {
		if cfg.CORSOrigins[i] != want[i] {
			t.Fatalf("CORSOrigins[%d] = %q, want %q", i, cfg.CORSOrigins[i], want[i])
		}
	}
}
