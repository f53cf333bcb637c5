// Package donations builds the merged donation status view from the
// recurring boleto ledger and the stored gateway notifications.
package donations

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"doacao/internal/domain"
	"doacao/internal/infra"
)

// Window is the number of rows read from each source.
const Window = 200

type BoletoLister interface {
	ListRecent(ctx context.Context, limit int) ([]domain.RecurringBoletoRecord, error)
}

type EventLister interface {
	ListRecent(ctx context.Context, eventTypes []string, limit int) ([]domain.GatewayEventRecord, error)
}

// Aggregator is read-only. It performs one gateway lookup per emitted row.
type Aggregator struct {
	boletos  BoletoLister
	events   EventLister
	gw       IntentLookup
	modes    ModeMatcher
	statuses *StatusResolver
	logger   *infra.Logger
}

func NewAggregator(boletos BoletoLister, events EventLister, gw IntentLookup, modes ModeMatcher, logger *infra.Logger) *Aggregator {
	logger = infra.OrDiscard(logger)
	return &Aggregator{
		boletos:  boletos,
		events:   events,
		gw:       gw,
		modes:    modes,
		statuses: NewStatusResolver(gw, modes, logger),
		logger:   logger,
	}
}

// Statuses exposes the resolver used for single-id refreshes.
func (a *Aggregator) Statuses() *StatusResolver {
	return a.statuses
}

// ListDonations returns the merged view, newest first, filtered by search
// when it is not blank. Only storage failures are returned.
func (a *Aggregator) ListDonations(ctx context.Context, search string) ([]domain.DonationStatusView, error) {
	records, err := a.boletos.ListRecent(ctx, Window)
	if err != nil {
		return nil, fmt.Errorf("list recurring boletos: %w", err)
	}
	events, err := a.events.ListRecent(ctx, domain.AggregatedEventTypes(), Window)
	if err != nil {
		return nil, fmt.Errorf("list gateway events: %w", err)
	}

	views := make([]domain.DonationStatusView, 0, len(records)+len(events))
	seen := make(map[string]bool, len(records)+len(events))

	for _, rec := range records {
		res := a.statuses.Resolve(ctx, rec.PaymentIntentID)
		if res.Missing {
			continue
		}
		views = append(views, domain.DonationStatusView{
			Type:                domain.DonationRecurringBoleto,
			DonorEmail:          rec.DonorEmail,
			DonorName:           res.Name,
			Amount:              domain.MajorUnits(rec.AmountMinor),
			Currency:            "BRL",
			FrequencyDisplay:    frequencyDisplay(rec.Frequency, true),
			StatusText:          res.Status,
			PaymentInstrumentID: rec.PaymentIntentID,
			CreatedAt:           rec.CreatedAt,
			LastPaidAt:          rec.LastPaidAt,
			NextDueAt:           rec.NextDueAt,
			Active:              rec.Active,
		})
		markSeen(seen, rec.PaymentIntentID)
	}

	for _, ev := range events {
		view, ok := a.eventView(ctx, ev, seen)
		if !ok {
			continue
		}
		views = append(views, view)
		markSeen(seen, view.PaymentInstrumentID)
	}

	sort.SliceStable(views, func(i, j int) bool {
		return views[i].CreatedAt.After(views[j].CreatedAt)
	})
	for i := range views {
		views[i].StatusClass = StatusClass(views[i].StatusText)
	}

	return Filter(views, search), nil
}

func (a *Aggregator) eventView(ctx context.Context, ev domain.GatewayEventRecord, seen map[string]bool) (domain.DonationStatusView, bool) {
	parsed, ok := parseEvent(ev.RawPayload)
	if !ok {
		a.logger.Debug().Str("event_id", ev.EventID).Msg("donations: unreadable event payload")
		return domain.DonationStatusView{}, false
	}
	if !a.modes.MatchesCurrentMode(parsed.liveness) {
		return domain.DonationStatusView{}, false
	}

	obj := parsed.object
	processed := ev.ProcessedAt

	switch ev.Kind() {
	case domain.EventPaymentSucceeded, domain.EventPaymentFailed, domain.EventPaymentRequiresAction:
		id := strings.TrimSpace(obj.ID)
		if seen[id] {
			return domain.DonationStatusView{}, false
		}
		res := a.statuses.Resolve(ctx, id)
		if res.Missing {
			return domain.DonationStatusView{}, false
		}
		name := res.Name
		if name == "" {
			name = obj.Metadata["cardholder_name"]
		}
		email := obj.ReceiptEmail
		if email == "" {
			email = obj.Metadata["email"]
		}
		recurring := obj.isRecurring()
		freq := domain.FrequencyOnce
		if recurring {
			freq = domain.FrequencyMonthly
			if obj.Metadata["frequency"] == string(domain.FrequencyAnnual) {
				freq = domain.FrequencyAnnual
			}
		}
		return domain.DonationStatusView{
			Type:                paymentIntentType(recurring, obj.isBoleto()),
			DonorEmail:          email,
			DonorName:           name,
			Amount:              domain.MajorUnits(obj.Amount),
			Currency:            obj.currency(),
			FrequencyDisplay:    frequencyDisplay(freq, obj.isBoleto()),
			StatusText:          res.Status,
			PaymentInstrumentID: id,
			CreatedAt:           obj.createdAt(processed),
			LastPaidAt:          &processed,
			Active:              true,
		}, true

	case domain.EventInvoicePaymentSucceeded:
		id := refID(obj.PaymentIntent)
		if seen[id] {
			return domain.DonationStatusView{}, false
		}
		name := obj.Metadata["cardholder_name"]
		status := TextPaid
		if id != "" {
			res := a.statuses.Resolve(ctx, id)
			if res.Missing {
				return domain.DonationStatusView{}, false
			}
			status = res.Status
			if name == "" {
				name = res.Name
			}
		}
		return domain.DonationStatusView{
			Type:                domain.DonationSubscription,
			DonorEmail:          obj.CustomerEmail,
			DonorName:           name,
			Amount:              domain.MajorUnits(obj.AmountPaid),
			Currency:            obj.currency(),
			FrequencyDisplay:    frequencyDisplay(a.subscriptionFrequency(ctx, refID(obj.Subscription)), false),
			StatusText:          status,
			PaymentInstrumentID: id,
			CreatedAt:           obj.createdAt(processed),
			LastPaidAt:          &processed,
			Active:              true,
		}, true

	default:
		return domain.DonationStatusView{}, false
	}
}

// subscriptionFrequency defaults to monthly when the lookup is impossible.
func (a *Aggregator) subscriptionFrequency(ctx context.Context, id string) domain.Frequency {
	if id == "" || a.modes.SecretKey() == "" {
		return domain.FrequencyMonthly
	}
	sub, err := a.gw.RetrieveSubscription(ctx, id)
	if err != nil {
		a.logger.Debug().Err(err).Str("subscription_id", id).Msg("donations: subscription lookup failed")
		return domain.FrequencyMonthly
	}
	if sub.Interval == "year" {
		return domain.FrequencyAnnual
	}
	return domain.FrequencyMonthly
}

func paymentIntentType(recurring, boleto bool) domain.DonationType {
	switch {
	case recurring && boleto:
		return domain.DonationRecurringBoleto
	case recurring:
		return domain.DonationRecurringCard
	case boleto:
		return domain.DonationOneTimeBoleto
	default:
		return domain.DonationOneTimeCard
	}
}

func frequencyDisplay(f domain.Frequency, boleto bool) string {
	method := "Card"
	if boleto {
		method = "Boleto"
	}
	return f.Label() + " (" + method + ")"
}

func markSeen(seen map[string]bool, id string) {
	if id = strings.TrimSpace(id); id != "" {
		seen[id] = true
	}
}

// Filter keeps the rows whose name, email, amount or frequency contains
// search, ignoring case.
func Filter(views []domain.DonationStatusView, search string) []domain.DonationStatusView {
	search = strings.TrimSpace(search)
	if search == "" {
		return views
	}
	fold := cases.Fold()
	needle := fold.String(search)

	out := make([]domain.DonationStatusView, 0, len(views))
	for _, v := range views {
		for _, field := range []string{v.DonorName, v.DonorEmail, v.Amount.String(), v.FrequencyDisplay} {
			if strings.Contains(fold.String(field), needle) {
				out = append(out, v)
				break
			}
		}
	}
	return out
}
