package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"doacao/internal/domain"
	"doacao/internal/donations"
	"doacao/internal/infra"
	"doacao/internal/submission"
	"doacao/internal/webhook"
)

type Submitter interface {
	Submit(ctx context.Context, req submission.Request, countryHint string) (*submission.Response, error)
	SendBoletoEmail(ctx context.Context, paymentIntentID string) error
}

type Ingester interface {
	Ingest(ctx context.Context, payload []byte, signature string) (webhook.Outcome, error)
}

type DonationLister interface {
	ListDonations(ctx context.Context, search string) ([]domain.DonationStatusView, error)
}

type StatusRefresher interface {
	Refresh(ctx context.Context, ids []string) map[string]donations.StatusEntry
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// App carries the services the HTTP handlers call.
type App struct {
	Donations Submitter
	Webhooks  Ingester
	Reports   DonationLister
	Statuses  StatusRefresher
	DB        Pinger
	Logger    *infra.Logger
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// message writes the {"message": ...} body the donor form understands.
func (a *App) message(w http.ResponseWriter, code int, msg string) {
	a.json(w, code, map[string]string{"message": msg})
}

func (a *App) logger() *infra.Logger {
	return infra.OrDiscard(a.Logger)
}
