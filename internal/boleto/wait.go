package boleto

import (
	"context"
	"errors"
	"time"

	"doacao/internal/domain"
	"doacao/internal/gateway"
	"doacao/internal/infra"
)

// WaitPolicy bounds a poll for gateway-side state that appears
// asynchronously.
type WaitPolicy struct {
	MinDelay    time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	MaxAttempts int
	Timeout     time.Duration
}

func DefaultWaitPolicy() WaitPolicy {
	return WaitPolicy{
		MinDelay:    250 * time.Millisecond,
		MaxDelay:    4 * time.Second,
		Multiplier:  2,
		MaxAttempts: 8,
		Timeout:     10 * time.Second,
	}
}

// WaitFor calls fetch until it reports ok, returns an error, or the policy
// runs out. Running out yields domain.ErrNotYetAvailable.
func WaitFor[T any](ctx context.Context, p WaitPolicy, fetch func(ctx context.Context) (T, bool, error)) (T, error) {
	var zero T
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	backoff := infra.NewBackoff(p.MinDelay, p.MaxDelay, p.Multiplier)

	for attempt := 1; ; attempt++ {
		v, ok, err := fetch(ctx)
		if err != nil {
			return zero, err
		}
		if ok {
			return v, nil
		}
		if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
			return zero, domain.ErrNotYetAvailable
		}
		if err := infra.Sleep(ctx, backoff.Next()); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return zero, domain.ErrNotYetAvailable
			}
			return zero, err
		}
	}
}

// VoucherGateway is what voucher resolution needs from the gateway.
type VoucherGateway interface {
	RetrievePaymentIntent(ctx context.Context, id string, expand ...string) (*gateway.PaymentIntent, error)
	RetrievePaymentMethod(ctx context.Context, id string) (*gateway.PaymentMethod, error)
}

// Voucher is a resolved boleto link and the intent it belongs to.
type Voucher struct {
	URL    string
	Intent *gateway.PaymentIntent
	// Email is the payment method's billing email, used when the intent
	// carries none.
	Email string
}

// ResolveVoucher waits until the voucher link of intent id is available.
func ResolveVoucher(ctx context.Context, gw VoucherGateway, id string, p WaitPolicy) (Voucher, error) {
	return WaitFor(ctx, p, func(ctx context.Context) (Voucher, bool, error) {
		pi, err := gw.RetrievePaymentIntent(ctx, id, "payment_method")
		if err != nil {
			if domain.IsNotFoundInMode(err) {
				return Voucher{}, false, err
			}
			return Voucher{}, false, nil
		}
		v := Voucher{URL: pi.Vouchers.URL(), Intent: pi, Email: pi.BillingEmail}
		if pi.PaymentMethodID != "" && (v.URL == "" || v.Email == "") {
			if pm, err := gw.RetrievePaymentMethod(ctx, pi.PaymentMethodID); err == nil {
				if v.URL == "" {
					v.URL = pm.VoucherURL
				}
				if v.Email == "" {
					v.Email = pm.BillingEmail
				}
			}
		}
		return v, v.URL != "", nil
	})
}
