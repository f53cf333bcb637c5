// Package exchange provides currency rates for donation pricing. Lookups
// never fail: a fixed fallback rate is served when the rate API cannot
// answer.
package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"doacao/internal/infra"
	"doacao/internal/metrics"
)

const (
	DefaultTTL          = 12 * time.Hour
	DefaultFallbackRate = 5.0
)

var errUnsuccessful = errors.New("exchange: api reported failure")

// Options configures the rate service.
type Options struct {
	APIURL       string
	APIKey       string
	TTL          time.Duration
	FallbackRate float64
	HTTPClient   *http.Client
	Logger       *infra.Logger
	Now          func() time.Time
}

// Service caches live quotes from an apilayer-compatible endpoint.
type Service struct {
	apiURL   string
	apiKey   string
	ttl      time.Duration
	fallback float64
	http     *http.Client
	logger   *infra.Logger
	cache    *rateCache
}

func New(opts Options) *Service {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	fallback := opts.FallbackRate
	if fallback <= 0 {
		fallback = DefaultFallbackRate
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		apiURL:   strings.TrimSpace(opts.APIURL),
		apiKey:   strings.TrimSpace(opts.APIKey),
		ttl:      ttl,
		fallback: fallback,
		http:     client,
		logger:   infra.OrDiscard(opts.Logger),
		cache:    newRateCache(now),
	}
}

// FromConfig builds the service from loaded configuration.
func FromConfig(cfg *infra.Config, logger *infra.Logger) *Service {
	return New(Options{
		APIURL:       cfg.ExchangeAPIURL,
		APIKey:       cfg.ExchangeAPIKey,
		TTL:          cfg.ExchangeTTL,
		FallbackRate: cfg.ExchangeFallbackRate,
		Logger:       logger,
	})
}

// GetRate returns units of to per unit of from. Failures are logged and
// answered with the fallback rate, which is not cached.
func (s *Service) GetRate(ctx context.Context, from, to string) float64 {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	if from == to {
		return 1
	}
	key := from + to
	if rate, ok := s.cache.get(key); ok {
		return rate
	}

	rate, err := s.fetch(ctx, from, to)
	if err != nil {
		metrics.ExchangeRateFallbacks.Inc()
		s.logger.Warn().Err(err).Str("pair", key).Float64("fallback", s.fallback).Msg("exchange: rate lookup failed")
		return s.fallback
	}
	s.cache.set(key, rate, s.ttl)
	return rate
}

type liveResponse struct {
	Success bool               `json:"success"`
	Quotes  map[string]float64 `json:"quotes"`
	Error   *struct {
		Info string `json:"info"`
	} `json:"error"`
}

func (s *Service) fetch(ctx context.Context, from, to string) (float64, error) {
	if s.apiURL == "" || s.apiKey == "" {
		return 0, errors.New("exchange: api not configured")
	}
	u, err := url.Parse(s.apiURL)
	if err != nil {
		return 0, fmt.Errorf("exchange: parse api url: %w", err)
	}
	q := u.Query()
	q.Set("access_key", s.apiKey)
	q.Set("currencies", to)
	q.Set("source", from)
	q.Set("format", "1")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("exchange: build request: %w", err)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("exchange: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("exchange: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("exchange: status %d", resp.StatusCode)
	}

	var out liveResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, fmt.Errorf("exchange: decode: %w", err)
	}
	if !out.Success {
		if out.Error != nil && out.Error.Info != "" {
			return 0, fmt.Errorf("%w: %s", errUnsuccessful, out.Error.Info)
		}
		return 0, errUnsuccessful
	}
	rate, ok := out.Quotes[from+to]
	if !ok || rate <= 0 {
		return 0, fmt.Errorf("exchange: quote %s%s missing", from, to)
	}
	return rate, nil
}

// Convert applies rate to an amount in minor units, rounding half away
// from zero.
func Convert(amountMinor int64, rate float64) int64 {
	return decimal.NewFromInt(amountMinor).Mul(decimal.NewFromFloat(rate)).Round(0).IntPart()
}
