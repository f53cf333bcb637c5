package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"doacao/internal/donations"
	"doacao/internal/middleware"
)

const maxRefreshIDs = 100

// AdminDonations lists the merged donation view, filtered and paged.
func (a *App) AdminDonations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))

	views, err := a.Reports.ListDonations(r.Context(), strings.TrimSpace(q.Get("search")))
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("admin", middleware.AdminFromContext(r.Context())).Msg("admin: listing failed")
		a.json(w, http.StatusInternalServerError, map[string]string{"error": "Could not load donations."})
		return
	}
	a.json(w, http.StatusOK, donations.Paginate(views, page))
}

type statusesRequest struct {
	PaymentIntentIDs []string `json:"payment_intent_ids"`
}

// AdminStatuses refreshes the live status of the listed payment intents.
func (a *App) AdminStatuses(w http.ResponseWriter, r *http.Request) {
	var req statusesRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFormBytes)).Decode(&req); err != nil {
		a.json(w, http.StatusBadRequest, map[string]string{"error": "Invalid request."})
		return
	}
	if len(req.PaymentIntentIDs) == 0 {
		a.json(w, http.StatusBadRequest, map[string]string{"error": "No payment ids provided."})
		return
	}
	if len(req.PaymentIntentIDs) > maxRefreshIDs {
		a.json(w, http.StatusBadRequest, map[string]string{"error": "Too many payment ids."})
		return
	}
	a.json(w, http.StatusOK, map[string]any{"statuses": a.Statuses.Refresh(r.Context(), req.PaymentIntentIDs)})
}
