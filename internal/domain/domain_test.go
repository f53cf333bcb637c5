package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestFrequencyNextDue(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		freq Frequency
		want time.Time
	}{
		{FrequencyMonthly, base.AddDate(0, 0, 30)},
		{FrequencyAnnual, base.AddDate(0, 0, 365)},
	}
	for _, tc := range tests {
		if got := tc.freq.NextDue(base); !got.Equal(tc.want) {
			t.Fatalf("%s NextDue = %s, want %s", tc.freq, got, tc.want)
		}
	}
}

func TestParseFrequency(t *testing.T) {
	if f, ok := ParseFrequency(" Annual "); !ok || f != FrequencyAnnual {
		t.Fatalf("ParseFrequency(Annual) = %q, %v", f, ok)
	}
	if _, ok := ParseFrequency("weekly"); ok {
		t.Fatalf("weekly should not parse")
	}
	if FrequencyOnce.Recurring() {
		t.Fatalf("once is not recurring")
	}
}

func TestRecurringBoletoRecordValidate(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	before := created.Add(-time.Hour)
	tests := []struct {
		name    string
		rec     RecurringBoletoRecord
		wantErr bool
	}{
		{"valid", RecurringBoletoRecord{DonorEmail: "a@b.co", AmountMinor: 100, Frequency: FrequencyMonthly, CreatedAt: created}, false},
		{"zero amount", RecurringBoletoRecord{DonorEmail: "a@b.co", AmountMinor: 0, Frequency: FrequencyMonthly}, true},
		{"once frequency", RecurringBoletoRecord{DonorEmail: "a@b.co", AmountMinor: 100, Frequency: FrequencyOnce}, true},
		{"due before creation", RecurringBoletoRecord{DonorEmail: "a@b.co", AmountMinor: 100, Frequency: FrequencyAnnual, CreatedAt: created, NextDueAt: &before}, true},
	}
	for _, tc := range tests {
		err := tc.rec.Validate()
		if (err != nil) != tc.wantErr {
			t.Fatalf("%s: Validate() error = %v, wantErr %v", tc.name, err, tc.wantErr)
		}
	}
}

func TestLivenessOf(t *testing.T) {
	live, test := true, false
	if got := LivenessOf(nil); got != LivenessUnknown {
		t.Fatalf("nil = %s, want unknown", got)
	}
	if got := LivenessOf(&live); got != LivenessLive {
		t.Fatalf("true = %s, want live", got)
	}
	if got := LivenessOf(&test); got != LivenessTest {
		t.Fatalf("false = %s, want test", got)
	}
}

func TestParseEventKindRoundTrip(t *testing.T) {
	for _, kind := range []EventKind{EventPaymentSucceeded, EventInvoicePaymentSucceeded, EventInvoicePaymentFailed, EventSubscriptionDeleted} {
		if got := ParseEventKind(kind.String()); got != kind {
			t.Fatalf("ParseEventKind(%q) = %v, want %v", kind.String(), got, kind)
		}
	}
	if got := ParseEventKind("charge.refunded"); got != EventUnknown {
		t.Fatalf("unexpected kind for charge.refunded: %v", got)
	}
}

func TestGatewayErrorClassification(t *testing.T) {
	notFound := fmt.Errorf("lookup: %w", &GatewayError{Op: "retrieve_payment_intent", HTTPStatus: 404, NotFound: true})
	if !errors.Is(notFound, ErrGateway) || !IsNotFoundInMode(notFound) {
		t.Fatalf("not found error should match both sentinels")
	}
	other := &GatewayError{Op: "confirm", HTTPStatus: 500, Message: "boom"}
	if !errors.Is(other, ErrGateway) || IsNotFoundInMode(other) {
		t.Fatalf("server error should only match ErrGateway")
	}
	var ge *GatewayError
	if !errors.As(notFound, &ge) || ge.HTTPStatus != 404 {
		t.Fatalf("errors.As should expose the gateway error")
	}
}

func TestValidationErrorJoinsMessages(t *testing.T) {
	err := NewValidationError("Invalid email.", "Name is required.")
	if err.Error() != "Invalid email. Name is required." {
		t.Fatalf("Error() = %q", err.Error())
	}
}

func TestMajorUnits(t *testing.T) {
	if got := MajorUnits(5000).String(); got != "50" {
		t.Fatalf("MajorUnits(5000) = %s, want 50", got)
	}
	if got := MajorUnits(1250).String(); got != "12.5" {
		t.Fatalf("MajorUnits(1250) = %s, want 12.5", got)
	}
}
