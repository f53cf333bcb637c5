package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"doacao/internal/domain"
)

const (
	maxWebhookBytes = 1 << 20
	signatureHeader = "Stripe-Signature"
)

// Webhook ingests one gateway notification. Integrity failures are 400 so
// the gateway does not retry; storage failures are 500 so it does.
func (a *App) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		a.json(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}

	outcome, err := a.Webhooks.Ingest(r.Context(), payload, r.Header.Get(signatureHeader))
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrInvalidSignature),
		errors.Is(err, domain.ErrInvalidPayload),
		errors.Is(err, domain.ErrMissingSecret):
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("webhook: rejected")
		a.json(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("webhook: ingestion failed")
		a.json(w, http.StatusInternalServerError, map[string]string{"error": "storage unavailable"})
		return
	}

	zerolog.Ctx(r.Context()).Debug().Str("outcome", string(outcome)).Msg("webhook: acknowledged")
	a.json(w, http.StatusOK, map[string]bool{"received": true})
}
