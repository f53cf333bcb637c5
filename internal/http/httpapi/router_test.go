package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"doacao/internal/domain"
	"doacao/internal/donations"
	"doacao/internal/http/handlers"
	"doacao/internal/middleware"
	"doacao/internal/submission"
)

type okSubmitter struct{ hint string }

func (s *okSubmitter) Submit(_ context.Context, _ submission.Request, hint string) (*submission.Response, error) {
	s.hint = hint
	return &submission.Response{ClientSecret: "cs", Type: submission.ResponsePaymentIntent}, nil
}

func (s *okSubmitter) SendBoletoEmail(context.Context, string) error { return nil }

type emptyLister struct{}

func (emptyLister) ListDonations(context.Context, string) ([]domain.DonationStatusView, error) {
	return nil, nil
}

type emptyRefresher struct{}

func (emptyRefresher) Refresh(context.Context, []string) map[string]donations.StatusEntry {
	return map[string]donations.StatusEntry{}
}

func newTestRouter(sub *okSubmitter) http.Handler {
	app := &handlers.App{Donations: sub, Reports: emptyLister{}, Statuses: emptyRefresher{}}
	return NewRouter(app, Options{
		Logger:          zerolog.Nop(),
		AdminSecret:     "admin-secret",
		RateLimitPerMin: 100,
		CORSOrigins:     []string{"https://give.example.org"},
	})
}

func TestRouterRoutes(t *testing.T) {
	token, _ := middleware.SignJWT("admin-secret", middleware.AdminClaims{Sub: "ops", Role: middleware.RoleAdmin, Exp: time.Now().Add(time.Hour).Unix()})

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		auth   string
		want   int
	}{
		{"health", http.MethodGet, "/v1/healthz", "", "", http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", "", "", http.StatusOK},
		{"openapi", http.MethodGet, "/v1/openapi.json", "", "", http.StatusOK},
		{"docs", http.MethodGet, "/v1/docs", "", "", http.StatusOK},
		{"donation", http.MethodPost, "/v1/donations", `{"amount_type":"10"}`, "", http.StatusOK},
		{"admin without token", http.MethodGet, "/v1/admin/donations", "", "", http.StatusUnauthorized},
		{"admin with token", http.MethodGet, "/v1/admin/donations", "", "Bearer " + token, http.StatusOK},
		{"unknown", http.MethodGet, "/v1/nope", "", "", http.StatusNotFound},
	}
	router := newTestRouter(&okSubmitter{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.body != "" {
				req.Header.Set("Content-Type", "application/json")
			}
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", rr.Code, tt.want, rr.Body.String())
			}
			if rr.Header().Get("X-Request-ID") == "" {
				t.Fatalf("expected X-Request-ID on every response")
			}
		})
	}
}

func TestRouterPassesCountryHint(t *testing.T) {
	sub := &okSubmitter{}
	router := newTestRouter(sub)

	req := httptest.NewRequest(http.MethodPost, "/v1/donations", strings.NewReader(`{"amount_type":"10"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("CF-IPCountry", "br")
	router.ServeHTTP(httptest.NewRecorder(), req)

	if sub.hint != "BR" {
		t.Fatalf("country hint = %q, want BR", sub.hint)
	}
}
