package donations

import (
	"context"
	"math"
	"testing"

	"doacao/internal/domain"
	"doacao/internal/gateway"
	"doacao/internal/gateway/gatewaytest"
	"doacao/internal/mode"
)

func TestStatusText(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"succeeded", "Paid"},
		{"processing", "Processing"},
		{"requires_payment_method", "Awaiting payment"},
		{"requires_confirmation", "Awaiting confirmation"},
		{"requires_action", "Processing"},
		{"canceled", "Canceled"},
		{"paused", "Paused"},
	}
	for _, tt := range tests {
		if got := StatusText(domain.ParseIntentStatus(tt.raw), tt.raw); got != tt.want {
			t.Fatalf("StatusText(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestErrorText(t *testing.T) {
	tests := []struct {
		msg  string
		want string
	}{
		{"Your card was declined.", "Card declined"},
		{"Your card has Insufficient Funds.", "Insufficient funds"},
		{"expired card on file", "Card expired"},
		{"Incorrect CVC supplied", "Incorrect CVC"},
		{"invalid number", "Invalid number"},
		{"Something else happened", "Something else happened"},
	}
	for _, tt := range tests {
		if got := ErrorText(tt.msg); got != tt.want {
			t.Fatalf("ErrorText(%q) = %q, want %q", tt.msg, got, tt.want)
		}
	}
}

func TestStatusClass(t *testing.T) {
	tests := map[string]string{
		"Awaiting payment": "awaiting-payment",
		"Monthly (Boleto)": "monthly-boleto",
		"Paid":             "paid",
	}
	for in, want := range tests {
		if got := StatusClass(in); got != want {
			t.Fatalf("StatusClass(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRefresh(t *testing.T) {
	gw := gatewaytest.New()
	gw.AddIntent(&gateway.PaymentIntent{
		ID:               "pi_declined",
		RawStatus:        "requires_payment_method",
		Status:           domain.StatusRequiresPaymentMethod,
		LastErrorMessage: "Your card was declined.",
	})
	r := NewStatusResolver(gw, mode.New(domain.ModeTest, mode.Keys{Test: "sk_test_1"}, mode.Keys{}), nil)

	got := r.Refresh(context.Background(), []string{"pi_declined", "pi_missing", ""})
	if got["pi_declined"].Status != "Card declined" || got["pi_declined"].StatusClass != "card-declined" {
		t.Fatalf("pi_declined = %+v", got["pi_declined"])
	}
	if got["pi_missing"].Status != TextNotFound {
		t.Fatalf("pi_missing = %+v", got["pi_missing"])
	}
	if got[""].Status != TextAwaiting {
		t.Fatalf("empty id = %+v", got[""])
	}
}

func TestResolveWithoutKey(t *testing.T) {
	gw := gatewaytest.New()
	r := NewStatusResolver(gw, mode.New(domain.ModeLive, mode.Keys{Test: "sk_test_1"}, mode.Keys{}), nil)

	if res := r.Resolve(context.Background(), "pi_1"); res.Status != TextUnknown {
		t.Fatalf("Resolve without key = %+v", res)
	}
	if len(gw.Retrieved) != 0 {
		t.Fatalf("no lookup expected without a key")
	}
}

func TestPaginate(t *testing.T) {
	views := make([]domain.DonationStatusView, 45)
	for i := range views {
		views[i].PaymentInstrumentID = string(rune('a' + i%26))
	}

	p := Paginate(views, 3)
	if p.Total != 45 || p.TotalPages != 3 || len(p.Items) != 5 {
		t.Fatalf("page 3 = total %d pages %d items %d", p.Total, p.TotalPages, len(p.Items))
	}
	if p := Paginate(views, 0); p.Page != 1 || len(p.Items) != PageSize {
		t.Fatalf("page 0 should clamp to 1: %+v", p.Page)
	}
	if p := Paginate(views, 9); len(p.Items) != 0 {
		t.Fatalf("out of range page should be empty")
	}
	if p := Paginate(views[:3], math.MaxInt); len(p.Items) != 0 || p.Total != 3 {
		t.Fatalf("huge page = %+v", p)
	}
	if p := Paginate(nil, 1); len(p.Items) != 0 || p.TotalPages != 0 {
		t.Fatalf("empty listing = %+v", p)
	}
}
