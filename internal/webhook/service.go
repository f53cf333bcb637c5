// Package webhook ingests signed gateway notifications. Every event is
// stored once, before any side effect, and dispatched at most once.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"doacao/internal/domain"
	"doacao/internal/events"
	"doacao/internal/gateway"
	"doacao/internal/infra"
	"doacao/internal/metrics"
	"doacao/internal/notify"
)

// Outcome is the terminal state of one ingestion.
type Outcome string

const (
	OutcomeStored    Outcome = "stored"
	OutcomeDuplicate Outcome = "duplicate"
)

type Verifier interface {
	VerifyWebhookSignature(payload []byte, header, secret string) (*gateway.Event, error)
}

type SecretSource interface {
	WebhookSecret() string
}

// BoletoPayments is the ingestion side of the recurring boleto ledger.
type BoletoPayments interface {
	FindActiveByPaymentIntent(ctx context.Context, paymentIntentID string) (*domain.RecurringBoletoRecord, error)
	MarkPaid(ctx context.Context, id int64, paidAt, nextDue time.Time) error
}

// DefaultPublishTimeout bounds how long an event publish may hold the
// acknowledgement of a stored notification.
const DefaultPublishTimeout = 3 * time.Second

type Notifier interface {
	SendConfirmation(ctx context.Context, c notify.Confirmation) error
	SendReceipt(ctx context.Context, r notify.Receipt) error
}

type Service struct {
	verifier  Verifier
	secrets   SecretSource
	ledger    domain.GatewayEventRepository
	boletos   BoletoPayments
	notifier  Notifier
	publisher events.Publisher
	pubWait   time.Duration
	clock     infra.Clock
	logger    *infra.Logger
}

type Deps struct {
	Verifier  Verifier
	Secrets   SecretSource
	Ledger    domain.GatewayEventRepository
	Boletos   BoletoPayments
	Notifier  Notifier
	Publisher events.Publisher
	// PublishTimeout defaults to DefaultPublishTimeout.
	PublishTimeout time.Duration
	Clock          infra.Clock
	Logger         *infra.Logger
}

func NewService(d Deps) *Service {
	clock := d.Clock
	if clock == nil {
		clock = infra.SystemClock{}
	}
	logger := infra.OrDiscard(d.Logger)
	publisher := d.Publisher
	if publisher == nil {
		publisher = events.NewLogPublisher(logger)
	}
	pubWait := d.PublishTimeout
	if pubWait <= 0 {
		pubWait = DefaultPublishTimeout
	}
	return &Service{
		verifier:  d.Verifier,
		secrets:   d.Secrets,
		ledger:    d.Ledger,
		boletos:   d.Boletos,
		notifier:  d.Notifier,
		publisher: publisher,
		pubWait:   pubWait,
		clock:     clock,
		logger:    logger,
	}
}

// Ingest verifies, stores and dispatches one notification. Errors are
// returned only before storage succeeds; dispatch failures are logged.
func (s *Service) Ingest(ctx context.Context, payload []byte, signature string) (Outcome, error) {
	secret := s.secrets.WebhookSecret()
	if secret == "" {
		metrics.WebhookEvents.WithLabelValues("", "rejected").Inc()
		return "", domain.ErrMissingSecret
	}

	ev, err := s.verifier.VerifyWebhookSignature(payload, signature, secret)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("", "rejected").Inc()
		return "", err
	}
	log := s.logger.With().Str("event_id", ev.ID).Str("event_type", ev.Type).Logger()

	exists, err := s.ledger.Exists(ctx, ev.ID)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(ev.Type, "store_failed").Inc()
		return "", err
	}
	if exists {
		metrics.WebhookEvents.WithLabelValues(ev.Type, string(OutcomeDuplicate)).Inc()
		log.Debug().Msg("webhook: duplicate event")
		return OutcomeDuplicate, nil
	}

	now := s.clock.Now()
	inserted, err := s.ledger.Insert(ctx, domain.GatewayEventRecord{
		EventID:     ev.ID,
		EventType:   ev.Type,
		RawPayload:  payload,
		ProcessedAt: now,
	})
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(ev.Type, "store_failed").Inc()
		log.Error().Err(err).Msg("webhook: store failed")
		return "", err
	}
	if !inserted {
		metrics.WebhookEvents.WithLabelValues(ev.Type, string(OutcomeDuplicate)).Inc()
		log.Debug().Msg("webhook: lost insert race, treating as duplicate")
		return OutcomeDuplicate, nil
	}
	metrics.WebhookEvents.WithLabelValues(ev.Type, string(OutcomeStored)).Inc()
	log.Info().Msg("webhook: event stored")

	if err := s.dispatch(ctx, ev, now); err != nil {
		log.Error().Err(err).Msg("webhook: dispatch failed")
	}
	return OutcomeStored, nil
}

// eventObject holds the data.object fields the handlers read.
type eventObject struct {
	ID               string            `json:"id"`
	Amount           int64             `json:"amount"`
	Currency         string            `json:"currency"`
	Metadata         map[string]string `json:"metadata"`
	ReceiptEmail     string            `json:"receipt_email"`
	Invoice          json.RawMessage   `json:"invoice"`
	CustomerEmail    string            `json:"customer_email"`
	HostedInvoiceURL string            `json:"hosted_invoice_url"`
	InvoicePDF       string            `json:"invoice_pdf"`
}

func (o eventObject) hasInvoice() bool {
	s := strings.TrimSpace(string(o.Invoice))
	return s != "" && s != "null" && s != `""`
}

func (s *Service) dispatch(ctx context.Context, ev *gateway.Event, now time.Time) error {
	var obj eventObject
	if len(ev.Object) > 0 {
		if err := json.Unmarshal(ev.Object, &obj); err != nil {
			return fmt.Errorf("decode event object: %w", err)
		}
	}

	switch domain.ParseEventKind(ev.Type) {
	case domain.EventPaymentSucceeded:
		return s.paymentSucceeded(ctx, ev, obj, now)
	case domain.EventInvoicePaymentSucceeded:
		if err := s.notifier.SendReceipt(ctx, notify.Receipt{
			Email:     obj.CustomerEmail,
			HostedURL: obj.HostedInvoiceURL,
			PDFURL:    obj.InvoicePDF,
		}); err != nil {
			s.logNotifyError(ev, err)
		}
		s.publish(ctx, events.KeyInvoicePaymentSucceeded, ev, obj.ID)
	case domain.EventInvoicePaymentFailed:
		s.publish(ctx, events.KeyInvoicePaymentFailed, ev, obj.ID)
	case domain.EventSubscriptionDeleted:
		s.publish(ctx, events.KeySubscriptionDeleted, ev, obj.ID)
	case domain.EventPaymentFailed, domain.EventPaymentRequiresAction, domain.EventUnknown:
		// stored for the status view; nothing to do
	}
	return nil
}

// paymentSucceeded advances the matching recurring record before any
// email goes out.
func (s *Service) paymentSucceeded(ctx context.Context, ev *gateway.Event, obj eventObject, now time.Time) error {
	var stateErr error
	if obj.Metadata["recurring"] == "true" && obj.ID != "" {
		stateErr = s.markPaid(ctx, obj.ID, now)
	}

	if !obj.hasInvoice() {
		email := obj.ReceiptEmail
		if email == "" {
			email = obj.Metadata["email"]
		}
		if err := s.notifier.SendConfirmation(ctx, notify.Confirmation{
			Email:       email,
			Name:        obj.Metadata["cardholder_name"],
			AmountMinor: obj.Amount,
			Currency:    obj.Currency,
			Reference:   obj.ID,
			PaidAt:      now,
		}); err != nil {
			s.logNotifyError(ev, err)
		}
	}
	s.publish(ctx, events.KeyPaymentSucceeded, ev, obj.ID)
	return stateErr
}

func (s *Service) markPaid(ctx context.Context, paymentIntentID string, now time.Time) error {
	rec, err := s.boletos.FindActiveByPaymentIntent(ctx, paymentIntentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Debug().Str("payment_intent_id", paymentIntentID).Msg("webhook: no active recurring boleto for intent")
			return nil
		}
		return fmt.Errorf("find recurring boleto: %w", err)
	}
	next := rec.Frequency.NextDue(now)
	if err := s.boletos.MarkPaid(ctx, rec.ID, now, next); err != nil {
		return fmt.Errorf("mark recurring boleto %d paid: %w", rec.ID, err)
	}
	s.logger.Info().
		Int64("record_id", rec.ID).
		Str("payment_intent_id", paymentIntentID).
		Time("next_due_at", next).
		Msg("webhook: recurring boleto paid")
	return nil
}

// publish survives a cancelled request so a stored event is still announced.
func (s *Service) publish(ctx context.Context, key string, ev *gateway.Event, objectID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.pubWait)
	defer cancel()
	err := s.publisher.Publish(ctx, key, events.Message{
		EventID:    ev.ID,
		EventType:  ev.Type,
		ObjectID:   objectID,
		OccurredAt: ev.Created,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("event_id", ev.ID).Str("routing_key", key).Msg("webhook: publish failed")
	}
}

func (s *Service) logNotifyError(ev *gateway.Event, err error) {
	if errors.Is(err, domain.ErrFeatureDisabled) {
		return
	}
	s.logger.Warn().Err(err).Str("event_id", ev.ID).Msg("webhook: email failed")
}
