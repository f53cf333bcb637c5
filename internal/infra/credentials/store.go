package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"doacao/internal/infra"
	"doacao/internal/sqlinline"
)

// Provider names of the credentials kept in integration_tokens.
const (
	ProviderSecretTest  = "gateway_secret_test"
	ProviderSecretLive  = "gateway_secret_live"
	ProviderWebhookTest = "gateway_webhook_test"
	ProviderWebhookLive = "gateway_webhook_live"
	ProviderExchange    = "exchange_api"
)

var knownProviders = map[string]struct{}{
	ProviderSecretTest:  {},
	ProviderSecretLive:  {},
	ProviderWebhookTest: {},
	ProviderWebhookLive: {},
	ProviderExchange:    {},
}

// ErrUnknownProvider is returned when a caller names a credential this store does not manage.
var ErrUnknownProvider = errors.New("credentials: unknown provider")

type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// Providers lists the managed credential names.
func Providers() []string {
	return []string{ProviderSecretTest, ProviderSecretLive, ProviderWebhookTest, ProviderWebhookLive, ProviderExchange}
}

func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

func (s *Store) Set(ctx context.Context, provider, token string) error {
	provider = strings.TrimSpace(strings.ToLower(provider))
	if _, ok := knownProviders[provider]; !ok {
		return fmt.Errorf("%w %q", ErrUnknownProvider, provider)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("credentials: %s token is required", provider)
	}
	raw, err := json.Marshal(map[string]any{"source": "cli", "hint": infra.MaskSecret(token)})
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token, raw)
	return err
}

// Entry describes a stored credential without exposing it.
type Entry struct {
	Provider  string
	Hint      string
	UpdatedAt time.Time
}

// List returns every stored credential with its value masked.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.sql.Query(ctx, sqlinline.QListIntegrationTokens)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e     Entry
			token string
		)
		if err := rows.Scan(&e.Provider, &token, &e.UpdatedAt); err != nil {
			return nil, err
		}
		e.Hint = infra.MaskSecret(token)
		out = append(out, e)
	}
	return out, rows.Err()
}

// FillConfig loads credentials missing from the environment. Environment
// values always win over stored ones.
func (s *Store) FillConfig(ctx context.Context, cfg *infra.Config) error {
	targets := []struct {
		provider string
		dst      *string
	}{
		{ProviderSecretTest, &cfg.GatewaySecretTest},
		{ProviderSecretLive, &cfg.GatewaySecretLive},
		{ProviderWebhookTest, &cfg.WebhookSecretTest},
		{ProviderWebhookLive, &cfg.WebhookSecretLive},
		{ProviderExchange, &cfg.ExchangeAPIKey},
	}
	for _, t := range targets {
		if strings.TrimSpace(*t.dst) != "" {
			continue
		}
		token, err := s.Token(ctx, t.provider)
		if err != nil {
			return fmt.Errorf("credentials: load %s: %w", t.provider, err)
		}
		*t.dst = token
	}
	return nil
}
