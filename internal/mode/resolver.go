// Package mode selects gateway credentials for the configured operating
// mode and filters gateway objects that belong to the other one.
package mode

import (
	"strings"

	"doacao/internal/domain"
	"doacao/internal/infra"
)

// Resolver holds per-mode credentials. It is immutable after construction.
type Resolver struct {
	mode           domain.Mode
	secretKeys     map[domain.Mode]string
	webhookSecrets map[domain.Mode]string
}

// Keys is a pair of per-mode credentials.
type Keys struct {
	Test string
	Live string
}

func New(m domain.Mode, secretKeys, webhookSecrets Keys) *Resolver {
	return &Resolver{
		mode: m,
		secretKeys: map[domain.Mode]string{
			domain.ModeTest: strings.TrimSpace(secretKeys.Test),
			domain.ModeLive: strings.TrimSpace(secretKeys.Live),
		},
		webhookSecrets: map[domain.Mode]string{
			domain.ModeTest: strings.TrimSpace(webhookSecrets.Test),
			domain.ModeLive: strings.TrimSpace(webhookSecrets.Live),
		},
	}
}

// FromConfig builds a resolver from loaded configuration.
func FromConfig(cfg *infra.Config) *Resolver {
	return New(
		domain.ParseMode(cfg.GatewayMode),
		Keys{Test: cfg.GatewaySecretTest, Live: cfg.GatewaySecretLive},
		Keys{Test: cfg.WebhookSecretTest, Live: cfg.WebhookSecretLive},
	)
}

func (r *Resolver) Mode() domain.Mode { return r.mode }

func (r *Resolver) IsLive() bool { return r.mode == domain.ModeLive }

// SecretKeyFor returns the API key for m, or "" when none is configured.
func (r *Resolver) SecretKeyFor(m domain.Mode) string {
	return r.secretKeys[m]
}

// SecretKey is the API key of the current mode.
func (r *Resolver) SecretKey() string {
	return r.secretKeys[r.mode]
}

// WebhookSecret is the signing secret of the current mode.
func (r *Resolver) WebhookSecret() string {
	return r.webhookSecrets[r.mode]
}

// MatchesCurrentMode accepts objects of the current mode and objects
// whose liveness is unknown.
func (r *Resolver) MatchesCurrentMode(l domain.Liveness) bool {
	switch l {
	case domain.LivenessLive:
		return r.IsLive()
	case domain.LivenessTest:
		return !r.IsLive()
	default:
		return true
	}
}
