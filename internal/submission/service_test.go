package submission

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"doacao/internal/boleto"
	"doacao/internal/domain"
	"doacao/internal/gateway"
	"doacao/internal/gateway/gatewaytest"
	"doacao/internal/infra"
	"doacao/internal/notify"
)

type staticKey string

func (k staticKey) SecretKey() string { return string(k) }

type fixedRate float64

func (r fixedRate) GetRate(context.Context, string, string) float64 { return float64(r) }

type memLedger struct {
	created []domain.RecurringBoletoRecord
	err     error
}

func (m *memLedger) Create(_ context.Context, rec *domain.RecurringBoletoRecord) error {
	if m.err != nil {
		return m.err
	}
	rec.ID = int64(len(m.created) + 1)
	m.created = append(m.created, *rec)
	return nil
}

type linkRecorder struct {
	links []notify.BoletoLink
	err   error
}

func (l *linkRecorder) SendBoletoLink(_ context.Context, link notify.BoletoLink) error {
	if l.err != nil {
		return l.err
	}
	l.links = append(l.links, link)
	return nil
}

// lateInvoice links a payment intent to every invoice after a number of
// lookups.
type lateInvoice struct {
	*gatewaytest.Fake
	linkAfter int
	lookups   int
}

func (g *lateInvoice) RetrieveInvoice(ctx context.Context, id string) (*gateway.Invoice, error) {
	g.lookups++
	inv, err := g.Fake.RetrieveInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if g.linkAfter > 0 && g.lookups >= g.linkAfter {
		return &gateway.Invoice{ID: inv.ID, PaymentIntent: &gateway.PaymentIntent{ID: "pi_invoice", ClientSecret: "pi_invoice_secret"}}, nil
	}
	return inv, nil
}

var fastWait = boleto.WaitPolicy{
	MinDelay:    time.Millisecond,
	MaxDelay:    2 * time.Millisecond,
	Multiplier:  2,
	MaxAttempts: 3,
	Timeout:     time.Second,
}

var now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc    *Service
	gw     *gatewaytest.Fake
	ledger *memLedger
	links  *linkRecorder
}

func newFixture(gw gateway.Client, fake *gatewaytest.Fake, features Features) fixture {
	ledger := &memLedger{}
	links := &linkRecorder{}
	svc := NewService(Deps{
		Gateway:  gw,
		Keys:     staticKey("sk_test_1"),
		Rates:    fixedRate(5.0),
		Ledger:   ledger,
		Notifier: links,
		Features: features,
		Wait:     fastWait,
		Clock:    infra.FixedClock{T: now},
	})
	return fixture{svc: svc, gw: fake, ledger: ledger, links: links}
}

var allFeatures = Features{Boleto: true, Monthly: true, Annual: true}

func cardRequest() Request {
	return Request{
		AmountType:     "100",
		Frequency:      "once",
		Email:          "ana@example.com",
		CardholderName: "Ana Souza",
		PaymentMethod:  "card",
	}
}

func boletoRequest() Request {
	r := cardRequest()
	r.PaymentMethod = "boleto"
	r.TaxID = "123.456.789-09"
	r.AddressLine1 = "Rua A, 1"
	r.City = "Recife"
	r.PostalCode = "50000-000"
	return r
}

func validationMessages(t *testing.T, err error) []string {
	t.Helper()
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	return verr.Messages
}

func TestSubmitCollectsAllValidationMessages(t *testing.T) {
	gw := gatewaytest.New()
	f := newFixture(gw, gw, allFeatures)

	_, err := f.svc.Submit(context.Background(), Request{AmountType: "50", Frequency: "once", Email: "not-an-email", PaymentMethod: "boleto"}, "")
	got := validationMessages(t, err)
	want := []string{MsgInvalidEmail, MsgNameRequired, MsgTaxIDRequired, MsgAddressRequired, MsgCityRequired, MsgPostalRequired}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("messages = %#v, want %#v", got, want)
	}
	if len(gw.Created) != 0 {
		t.Fatalf("no gateway call expected before validation passes")
	}
}

func TestSubmitRejections(t *testing.T) {
	tests := []struct {
		name     string
		req      func() Request
		features Features
		keys     KeySource
		want     string
	}{
		{"zero preset", func() Request { r := cardRequest(); r.AmountType = "0"; return r }, allFeatures, staticKey("sk"), MsgInvalidAmount},
		{"garbage custom", func() Request { r := cardRequest(); r.AmountType = "other"; r.AmountCustom = "abc"; return r }, allFeatures, staticKey("sk"), MsgInvalidAmount},
		{"unknown frequency", func() Request { r := cardRequest(); r.Frequency = "weekly"; return r }, allFeatures, staticKey("sk"), MsgInvalidFrequency},
		{"boleto disabled", boletoRequest, Features{Monthly: true, Annual: true}, staticKey("sk"), MsgBoletoDisabled},
		{"monthly disabled", func() Request { r := cardRequest(); r.Frequency = "monthly"; return r }, Features{Boleto: true, Annual: true}, staticKey("sk"), MsgMonthlyDisabled},
		{"annual disabled", func() Request { r := cardRequest(); r.Frequency = "annual"; return r }, Features{Boleto: true, Monthly: true}, staticKey("sk"), MsgAnnualDisabled},
		{"no key", cardRequest, allFeatures, staticKey(""), MsgNotConfigured},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := gatewaytest.New()
			svc := NewService(Deps{Gateway: gw, Keys: tt.keys, Rates: fixedRate(5), Ledger: &memLedger{}, Notifier: &linkRecorder{}, Features: tt.features, Wait: fastWait})

			_, err := svc.Submit(context.Background(), tt.req(), "")
			got := validationMessages(t, err)
			if len(got) != 1 || got[0] != tt.want {
				t.Fatalf("messages = %#v, want %q", got, tt.want)
			}
			if len(gw.Created) != 0 {
				t.Fatalf("unexpected gateway call")
			}
		})
	}
}

func TestSubmitOneTimeCardConvertsForBrazil(t *testing.T) {
	gw := gatewaytest.New()
	f := newFixture(gw, gw, allFeatures)

	resp, err := f.svc.Submit(context.Background(), cardRequest(), "br")
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if resp.Type != ResponsePaymentIntent || resp.ClientSecret == "" || resp.PaymentIntentID == "" {
		t.Fatalf("unexpected response %+v", resp)
	}
	params := gw.Created[0]
	if params.Currency != "BRL" || params.AmountMinor != 50000 {
		t.Fatalf("currency/amount = %s/%d, want BRL/50000", params.Currency, params.AmountMinor)
	}
	if !reflect.DeepEqual(params.MethodTypes, []string{"card"}) {
		t.Fatalf("method types = %v", params.MethodTypes)
	}
	if params.Metadata["recurring"] != "false" || params.Metadata["source"] != "donation_form" {
		t.Fatalf("metadata = %v", params.Metadata)
	}
}

func TestSubmitOneTimeCardAbroadStaysUSD(t *testing.T) {
	gw := gatewaytest.New()
	f := newFixture(gw, gw, allFeatures)

	req := cardRequest()
	req.AmountType = "other"
	req.AmountCustom = "12.345"
	req.Country = "pt"
	if _, err := f.svc.Submit(context.Background(), req, "BR"); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	params := gw.Created[0]
	if params.Currency != "USD" || params.AmountMinor != 1234 {
		t.Fatalf("currency/amount = %s/%d, want USD/1234", params.Currency, params.AmountMinor)
	}
}

func TestSubmitOneTimeBoletoIsBRLWithoutConversion(t *testing.T) {
	gw := gatewaytest.New()
	f := newFixture(gw, gw, allFeatures)

	if _, err := f.svc.Submit(context.Background(), boletoRequest(), ""); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	params := gw.Created[0]
	if params.Currency != "BRL" || params.AmountMinor != 10000 {
		t.Fatalf("currency/amount = %s/%d, want BRL/10000", params.Currency, params.AmountMinor)
	}
	if params.BoletoExpiresAfterDays != 3 || !reflect.DeepEqual(params.MethodTypes, []string{"boleto"}) {
		t.Fatalf("unexpected boleto params %+v", params)
	}
	if len(f.ledger.created) != 0 {
		t.Fatalf("one-time boleto must not create a ledger row")
	}
}

func TestSubmitRecurringBoletoCreatesLedgerRow(t *testing.T) {
	gw := gatewaytest.New()
	f := newFixture(gw, gw, allFeatures)

	req := boletoRequest()
	req.Frequency = "annual"
	resp, err := f.svc.Submit(context.Background(), req, "")
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	params := gw.Created[0]
	if params.AmountMinor != 50000 || params.Currency != "BRL" {
		t.Fatalf("currency/amount = %s/%d, want BRL/50000", params.Currency, params.AmountMinor)
	}
	if params.Metadata["recurring"] != "true" || params.Metadata["frequency"] != "annual" {
		t.Fatalf("metadata = %v", params.Metadata)
	}
	if len(f.ledger.created) != 1 {
		t.Fatalf("ledger rows = %d, want 1", len(f.ledger.created))
	}
	rec := f.ledger.created[0]
	if rec.PaymentIntentID != resp.PaymentIntentID || rec.AmountMinor != 50000 || rec.Frequency != domain.FrequencyAnnual {
		t.Fatalf("unexpected record %+v", rec)
	}
	if rec.NextDueAt != nil || !rec.Active || !rec.CreatedAt.Equal(now) {
		t.Fatalf("record should start active without a due date: %+v", rec)
	}
}

func TestSubmitRecurringBoletoSurvivesLedgerFailure(t *testing.T) {
	gw := gatewaytest.New()
	f := newFixture(gw, gw, allFeatures)
	f.ledger.err = domain.ErrPersistence

	req := boletoRequest()
	req.Frequency = "monthly"
	resp, err := f.svc.Submit(context.Background(), req, "")
	if err != nil {
		t.Fatalf("ledger failure must not fail the donor: %v", err)
	}
	if resp.ClientSecret == "" {
		t.Fatalf("expected client secret")
	}
}

func TestSubmitSubscriptionWaitsForInvoiceIntent(t *testing.T) {
	fake := gatewaytest.New()
	gw := &lateInvoice{Fake: fake, linkAfter: 2}
	f := newFixture(gw, fake, allFeatures)

	req := cardRequest()
	req.Frequency = "monthly"
	resp, err := f.svc.Submit(context.Background(), req, "")
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if resp.Type != ResponseSubscription || resp.SubscriptionID == "" || resp.ClientSecret != "pi_invoice_secret" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if gw.lookups != 2 {
		t.Fatalf("invoice lookups = %d, want 2", gw.lookups)
	}
	price := fake.Prices[0]
	if price.Interval != "month" || price.ProductName != "Monthly donation" || price.Currency != "USD" || price.AmountMinor != 10000 {
		t.Fatalf("unexpected price %+v", price)
	}
	if len(fake.Customers) != 1 || fake.Customers[0] != "ana@example.com" {
		t.Fatalf("customers = %v", fake.Customers)
	}
}

func TestSubmitSubscriptionGivesUpWhenNeverLinked(t *testing.T) {
	fake := gatewaytest.New()
	gw := &lateInvoice{Fake: fake}
	f := newFixture(gw, fake, allFeatures)

	req := cardRequest()
	req.Frequency = "annual"
	_, err := f.svc.Submit(context.Background(), req, "")
	got := validationMessages(t, err)
	if len(got) != 1 || got[0] != MsgPaymentFailed {
		t.Fatalf("messages = %#v", got)
	}
	if gw.lookups != fastWait.MaxAttempts {
		t.Fatalf("invoice lookups = %d, want %d", gw.lookups, fastWait.MaxAttempts)
	}
}

func TestSendBoletoEmail(t *testing.T) {
	gw := gatewaytest.New()
	gw.AddIntent(&gateway.PaymentIntent{
		ID:       "pi_b",
		Metadata: map[string]string{"email": "joao@example.com"},
		Vouchers: gateway.VoucherSources{NextAction: "https://vouchers.example/b"},
	})
	f := newFixture(gw, gw, allFeatures)

	if err := f.svc.SendBoletoEmail(context.Background(), "pi_b"); err != nil {
		t.Fatalf("SendBoletoEmail returned error: %v", err)
	}
	want := []notify.BoletoLink{{Email: "joao@example.com", VoucherURL: "https://vouchers.example/b"}}
	if !reflect.DeepEqual(f.links.links, want) {
		t.Fatalf("links = %#v, want %#v", f.links.links, want)
	}
}

func TestSendBoletoEmailFailures(t *testing.T) {
	gw := gatewaytest.New()
	gw.AddIntent(&gateway.PaymentIntent{ID: "pi_pending", ReceiptEmail: "a@example.com"})
	gw.AddIntent(&gateway.PaymentIntent{ID: "pi_anon", Vouchers: gateway.VoucherSources{NextAction: "https://vouchers.example/anon"}})
	f := newFixture(gw, gw, allFeatures)

	if err := f.svc.SendBoletoEmail(context.Background(), " "); err == nil {
		t.Fatalf("expected error for missing id")
	} else {
		validationMessages(t, err)
	}
	if err := f.svc.SendBoletoEmail(context.Background(), "pi_pending"); !errors.Is(err, domain.ErrNotYetAvailable) {
		t.Fatalf("pending voucher: got %v, want ErrNotYetAvailable", err)
	}
	if err := f.svc.SendBoletoEmail(context.Background(), "pi_missing"); !domain.IsNotFoundInMode(err) {
		t.Fatalf("missing intent: got %v, want not found", err)
	}
	if got := validationMessages(t, f.svc.SendBoletoEmail(context.Background(), "pi_anon")); got[0] != MsgEmailNotFound {
		t.Fatalf("messages = %#v", got)
	}
	if len(f.links.links) != 0 {
		t.Fatalf("no email expected, got %#v", f.links.links)
	}
}

func TestSendBoletoEmailTreatsDisabledMailerAsSuccess(t *testing.T) {
	gw := gatewaytest.New()
	gw.AddIntent(&gateway.PaymentIntent{ID: "pi_b", ReceiptEmail: "a@example.com", Vouchers: gateway.VoucherSources{NextAction: "https://v/b"}})
	f := newFixture(gw, gw, allFeatures)
	f.links.err = domain.ErrFeatureDisabled

	if err := f.svc.SendBoletoEmail(context.Background(), "pi_b"); err != nil {
		t.Fatalf("disabled mailer should not surface: %v", err)
	}
}
