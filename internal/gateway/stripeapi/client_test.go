package stripeapi

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"doacao/internal/domain"
	"doacao/internal/gateway"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Options{
		SecretKey:  "sk_test_123",
		BaseURL:    srv.URL,
		Timeout:    2 * time.Second,
		HTTPClient: srv.Client(),
	})
}

func TestCreatePaymentIntentSendsBoletoOptions(t *testing.T) {
	var form map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/payment_intents" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		form = map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": "pi_1",
			"object": "payment_intent",
			"status": "requires_confirmation",
			"amount": 5000,
			"currency": "brl",
			"livemode": false,
			"metadata": {"recurring": "true"},
			"next_action": {"type": "boleto_display_details", "boleto_display_details": {"hosted_voucher_url": "https://vouchers.example/next"}}
		}`)
	})

	pi, err := c.CreatePaymentIntent(context.Background(), gateway.PaymentIntentParams{
		AmountMinor:            5000,
		Currency:               "BRL",
		MethodTypes:            []string{"boleto"},
		Metadata:               map[string]string{"recurring": "true"},
		BoletoExpiresAfterDays: 3,
	})
	if err != nil {
		t.Fatalf("CreatePaymentIntent returned error: %v", err)
	}
	if pi.ID != "pi_1" || pi.Status != domain.StatusRequiresConfirmation {
		t.Fatalf("unexpected intent %+v", pi)
	}
	if !pi.IsRecurring() {
		t.Fatalf("expected recurring metadata to survive conversion")
	}
	if got := pi.Vouchers.URL(); got != "https://vouchers.example/next" {
		t.Fatalf("voucher url = %q", got)
	}
	if form["currency"] != "brl" {
		t.Fatalf("currency = %q, want brl", form["currency"])
	}
	if form["payment_method_options[boleto][expires_after_days]"] != "3" {
		t.Fatalf("expires_after_days = %q", form["payment_method_options[boleto][expires_after_days]"])
	}
	if form["metadata[recurring]"] != "true" {
		t.Fatalf("metadata[recurring] = %q", form["metadata[recurring]"])
	}
}

func TestRetrievePaymentIntentNotFoundInMode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error": {"type": "invalid_request_error", "code": "resource_missing", "message": "No such payment_intent: 'pi_live'"}}`)
	})

	_, err := c.RetrievePaymentIntent(context.Background(), "pi_live")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsNotFoundInMode(err) {
		t.Fatalf("expected not-found-in-mode, got %v", err)
	}
	if !errors.Is(err, domain.ErrGateway) {
		t.Fatalf("expected gateway error classification")
	}
}

func TestRetrievePaymentIntentReadsRawVouchers(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": "pi_2",
			"object": "payment_intent",
			"status": "requires_action",
			"payment_method": {"id": "pm_1", "object": "payment_method", "type": "boleto", "boleto": {"hosted_voucher_url": "https://vouchers.example/pm"}},
			"charges": {"object": "list", "data": [{"payment_method_details": {"boleto": {"hosted_voucher_url": "https://vouchers.example/charge"}}}]}
		}`)
	})

	pi, err := c.RetrievePaymentIntent(context.Background(), "pi_2", "payment_method")
	if err != nil {
		t.Fatalf("RetrievePaymentIntent returned error: %v", err)
	}
	if got := pi.Vouchers.URL(); got != "https://vouchers.example/pm" {
		t.Fatalf("voucher url = %q, want payment method link", got)
	}
	if len(pi.Vouchers.Charges) != 1 {
		t.Fatalf("charges = %#v", pi.Vouchers.Charges)
	}
}

func TestCallsWithoutKeyFail(t *testing.T) {
	c := NewClient(Options{})
	if c.HasCredentials() {
		t.Fatalf("expected no credentials")
	}
	_, err := c.RetrievePaymentIntent(context.Background(), "pi_1")
	if !errors.Is(err, ErrMissingSecretKey) {
		t.Fatalf("expected ErrMissingSecretKey, got %v", err)
	}
}

func signPayload(secret string, payload []byte, ts time.Time) string {
	stamp := strconv.FormatInt(ts.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(stamp + "." + string(payload)))
	return fmt.Sprintf("t=%s,v1=%s", stamp, hex.EncodeToString(mac.Sum(nil)))
}

const eventBody = `{"id":"evt_1","object":"event","type":"payment_intent.succeeded","livemode":true,"created":1700000000,"data":{"object":{"id":"pi_1","object":"payment_intent","livemode":true}}}`

func TestVerifyWebhookSignature(t *testing.T) {
	c := NewClient(Options{})
	payload := []byte(eventBody)

	ev, err := c.VerifyWebhookSignature(payload, signPayload("whsec_1", payload, time.Now()), "whsec_1")
	if err != nil {
		t.Fatalf("VerifyWebhookSignature returned error: %v", err)
	}
	if ev.ID != "evt_1" || ev.Type != "payment_intent.succeeded" || !ev.Livemode {
		t.Fatalf("unexpected event %+v", ev)
	}
	if len(ev.Object) == 0 {
		t.Fatalf("expected raw object")
	}
}

func TestVerifyWebhookSignatureRejections(t *testing.T) {
	c := NewClient(Options{})
	payload := []byte(eventBody)

	tests := []struct {
		name    string
		payload []byte
		header  string
		secret  string
		want    error
	}{
		{"tampered", []byte(`{"id":"evt_2"}`), signPayload("whsec_1", payload, time.Now()), "whsec_1", domain.ErrInvalidSignature},
		{"wrong secret", payload, signPayload("whsec_other", payload, time.Now()), "whsec_1", domain.ErrInvalidSignature},
		{"missing header", payload, "", "whsec_1", domain.ErrInvalidSignature},
		{"not json", []byte("not-json"), "t=1,v1=00", "whsec_1", domain.ErrInvalidPayload},
		{"no secret", payload, "t=1,v1=00", "", domain.ErrMissingSecret},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.VerifyWebhookSignature(tt.payload, tt.header, tt.secret)
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
		})
	}
}
