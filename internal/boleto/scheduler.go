// Package boleto drives recurring boleto donations: every due record gets
// a fresh voucher, a new due date and a renewal email.
package boleto

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"doacao/internal/domain"
	"doacao/internal/events"
	"doacao/internal/gateway"
	"doacao/internal/infra"
	"doacao/internal/metrics"
	"doacao/internal/notify"
)

const (
	// LeaseName guards the sweep against overlapping runs.
	LeaseName = "recurring-boleto-sweep"

	SettlementCurrency = "BRL"
	VoucherExpiryDays  = 3
)

type Ledger interface {
	ListDue(ctx context.Context, now time.Time) ([]domain.RecurringBoletoRecord, error)
	MarkIssued(ctx context.Context, id int64, paymentIntentID string, nextDue time.Time) error
}

type Gateway interface {
	CreatePaymentIntent(ctx context.Context, params gateway.PaymentIntentParams) (*gateway.PaymentIntent, error)
	ConfirmPaymentIntent(ctx context.Context, id string, data gateway.PaymentMethodData) (*gateway.PaymentIntent, error)
	RetrievePaymentIntent(ctx context.Context, id string, expand ...string) (*gateway.PaymentIntent, error)
}

type Notifier interface {
	SendRenewal(ctx context.Context, r notify.Renewal) error
}

type Deps struct {
	Ledger    Ledger
	Leases    domain.LeaseRepository
	Gateway   Gateway
	Notifier  Notifier
	Publisher events.Publisher
	Clock     infra.Clock
	Logger    *infra.Logger
	LeaseTTL  time.Duration
}

type Scheduler struct {
	ledger    Ledger
	leases    domain.LeaseRepository
	gw        Gateway
	notifier  Notifier
	publisher events.Publisher
	clock     infra.Clock
	logger    *infra.Logger
	leaseTTL  time.Duration
	holder    string
}

func NewScheduler(d Deps) *Scheduler {
	s := &Scheduler{
		ledger:    d.Ledger,
		leases:    d.Leases,
		gw:        d.Gateway,
		notifier:  d.Notifier,
		publisher: d.Publisher,
		clock:     d.Clock,
		logger:    infra.OrDiscard(d.Logger),
		leaseTTL:  d.LeaseTTL,
		holder:    uuid.NewString(),
	}
	if s.clock == nil {
		s.clock = infra.SystemClock{}
	}
	if s.publisher == nil {
		s.publisher = events.NewLogPublisher(s.logger)
	}
	if s.leaseTTL <= 0 {
		s.leaseTTL = 30 * time.Minute
	}
	return s
}

// SweepResult summarizes one run.
type SweepResult struct {
	Due    int
	Issued int
	Failed int
}

// GeneratePendingBoletos issues a new voucher for every due record. A
// failing record is logged and skipped. The returned error covers only the
// lease and the initial read.
func (s *Scheduler) GeneratePendingBoletos(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	start := time.Now()

	ok, err := s.leases.Acquire(ctx, LeaseName, s.holder, s.clock.Now(), s.leaseTTL)
	if err != nil {
		return res, fmt.Errorf("acquire sweep lease: %w", err)
	}
	if !ok {
		s.logger.Info().Msg("boleto: sweep already running elsewhere")
		return res, domain.ErrLeaseHeld
	}
	defer func() {
		// release even when ctx is already cancelled
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.leases.Release(relCtx, LeaseName, s.holder); err != nil {
			s.logger.Warn().Err(err).Msg("boleto: lease release failed")
		}
	}()

	due, err := s.ledger.ListDue(ctx, s.clock.Now())
	if err != nil {
		return res, fmt.Errorf("list due boletos: %w", err)
	}
	res.Due = len(due)

	for _, rec := range due {
		if ctx.Err() != nil {
			break
		}
		if err := s.renew(ctx, rec); err != nil {
			res.Failed++
			metrics.SweepRecords.WithLabelValues("failed").Inc()
			s.logger.Error().Err(err).Int64("record_id", rec.ID).Msg("boleto: renewal failed")
			continue
		}
		res.Issued++
		metrics.SweepRecords.WithLabelValues("issued").Inc()
	}

	metrics.SweepDuration.Observe(time.Since(start).Seconds())
	s.logger.Info().
		Int("due", res.Due).
		Int("issued", res.Issued).
		Int("failed", res.Failed).
		Msg("boleto: sweep finished")
	return res, nil
}

func (s *Scheduler) renew(ctx context.Context, rec domain.RecurringBoletoRecord) error {
	pi, err := s.gw.CreatePaymentIntent(ctx, gateway.PaymentIntentParams{
		AmountMinor: rec.AmountMinor,
		Currency:    SettlementCurrency,
		MethodTypes: []string{"boleto"},
		Metadata: map[string]string{
			"recurring":            "true",
			"original_donation_id": strconv.FormatInt(rec.ID, 10),
			"frequency":            string(rec.Frequency),
			"email":                rec.DonorEmail,
			"source":               "donation_recurring_boleto",
		},
		ReceiptEmail:           rec.DonorEmail,
		BoletoExpiresAfterDays: VoucherExpiryDays,
	})
	if err != nil {
		return fmt.Errorf("create payment intent: %w", err)
	}

	confirmed, err := s.gw.ConfirmPaymentIntent(ctx, pi.ID, gateway.PaymentMethodData{
		Type:  "boleto",
		Email: rec.DonorEmail,
	})
	if err != nil {
		if !errors.Is(err, domain.ErrGateway) {
			return fmt.Errorf("confirm payment intent %s: %w", pi.ID, err)
		}
		s.logger.Warn().Err(err).Str("payment_intent_id", pi.ID).Msg("boleto: confirm failed, reloading intent")
		confirmed, err = s.gw.RetrievePaymentIntent(ctx, pi.ID, "payment_method")
		if err != nil {
			return fmt.Errorf("reload payment intent %s: %w", pi.ID, err)
		}
	}

	issuedAt := s.clock.Now()
	next := rec.Frequency.NextDue(issuedAt)
	if err := s.ledger.MarkIssued(ctx, rec.ID, confirmed.ID, next); err != nil {
		return fmt.Errorf("persist new intent %s: %w", confirmed.ID, err)
	}

	voucherURL := confirmed.Vouchers.URL()
	log := s.logger.With().Int64("record_id", rec.ID).Str("payment_intent_id", confirmed.ID).Logger()
	if voucherURL == "" {
		log.Warn().Msg("boleto: no voucher url on confirmed intent")
	}
	log.Info().Time("next_due_at", next).Msg("boleto: voucher issued")

	if err := s.notifier.SendRenewal(ctx, notify.Renewal{Email: rec.DonorEmail, VoucherURL: voucherURL}); err != nil && !errors.Is(err, domain.ErrFeatureDisabled) {
		log.Warn().Err(err).Msg("boleto: renewal email failed")
	}
	if err := s.publisher.Publish(ctx, events.KeyBoletoRenewed, events.Message{
		EventID:    "boleto-renewal-" + strconv.FormatInt(rec.ID, 10) + "-" + confirmed.ID,
		EventType:  events.KeyBoletoRenewed,
		ObjectID:   confirmed.ID,
		OccurredAt: issuedAt,
	}); err != nil {
		log.Warn().Err(err).Msg("boleto: publish failed")
	}
	return nil
}
