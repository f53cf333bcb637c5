package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Frequency is the donation cadence chosen by the donor.
type Frequency string

const (
	FrequencyOnce    Frequency = "once"
	FrequencyMonthly Frequency = "monthly"
	FrequencyAnnual  Frequency = "annual"
)

const (
	monthlyPeriod = 30 * 24 * time.Hour
	annualPeriod  = 365 * 24 * time.Hour
)

// ParseFrequency accepts the three known cadences, case-insensitively.
func ParseFrequency(raw string) (Frequency, bool) {
	switch f := Frequency(strings.ToLower(strings.TrimSpace(raw))); f {
	case FrequencyOnce, FrequencyMonthly, FrequencyAnnual:
		return f, true
	default:
		return "", false
	}
}

func (f Frequency) Recurring() bool {
	return f == FrequencyMonthly || f == FrequencyAnnual
}

// Period is 365 days for annual and 30 days for anything else.
func (f Frequency) Period() time.Duration {
	if f == FrequencyAnnual {
		return annualPeriod
	}
	return monthlyPeriod
}

// NextDue returns from advanced by one period.
func (f Frequency) NextDue(from time.Time) time.Time {
	return from.Add(f.Period())
}

// Interval is the gateway's recurring price interval.
func (f Frequency) Interval() string {
	if f == FrequencyAnnual {
		return "year"
	}
	return "month"
}

func (f Frequency) Label() string {
	switch f {
	case FrequencyAnnual:
		return "Annual"
	case FrequencyMonthly:
		return "Monthly"
	default:
		return "One-time"
	}
}

// RecurringBoletoRecord is the ledger row standing in for a native
// subscription on the boleto instrument.
type RecurringBoletoRecord struct {
	ID              int64
	DonorEmail      string
	AmountMinor     int64
	Frequency       Frequency
	PaymentIntentID string
	LastPaidAt      *time.Time
	NextDueAt       *time.Time
	CreatedAt       time.Time
	Active          bool
}

// Validate checks the row invariants before it is written.
func (r RecurringBoletoRecord) Validate() error {
	if r.AmountMinor <= 0 {
		return fmt.Errorf("recurring boleto: amount must be positive, got %d", r.AmountMinor)
	}
	if !r.Frequency.Recurring() {
		return fmt.Errorf("recurring boleto: unsupported frequency %q", r.Frequency)
	}
	if strings.TrimSpace(r.DonorEmail) == "" {
		return fmt.Errorf("recurring boleto: email is required")
	}
	if r.NextDueAt != nil && !r.CreatedAt.IsZero() && r.NextDueAt.Before(r.CreatedAt) {
		return fmt.Errorf("recurring boleto: next due %s precedes creation %s", r.NextDueAt, r.CreatedAt)
	}
	return nil
}

// DonationType classifies a row of the status view.
type DonationType string

const (
	DonationRecurringBoleto DonationType = "recurring_boleto"
	DonationRecurringCard   DonationType = "recurring_card"
	DonationOneTimeBoleto   DonationType = "one_time_boleto"
	DonationOneTimeCard     DonationType = "one_time_card"
	DonationSubscription    DonationType = "subscription"
)

// DonationStatusView is the merged, display-only projection of ledger rows
// and stored gateway events.
type DonationStatusView struct {
	Type                DonationType    `json:"type"`
	DonorEmail          string          `json:"email"`
	DonorName           string          `json:"name"`
	Amount              decimal.Decimal `json:"amount"`
	Currency            string          `json:"currency"`
	FrequencyDisplay    string          `json:"frequency"`
	StatusText          string          `json:"status"`
	StatusClass         string          `json:"status_class"`
	PaymentInstrumentID string          `json:"payment_intent_id"`
	CreatedAt           time.Time       `json:"created_at"`
	LastPaidAt          *time.Time      `json:"last_paid_at,omitempty"`
	NextDueAt           *time.Time      `json:"next_due_at,omitempty"`
	Active              bool            `json:"active"`
}

// MajorUnits converts an amount in the currency's smallest unit.
func MajorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}
