// Package gatewaytest provides an in-memory gateway.Client for tests.
package gatewaytest

import (
	"context"
	"fmt"
	"sync"

	"doacao/internal/domain"
	"doacao/internal/gateway"
)

// Fake records calls and serves intents from an in-memory table. Hooks
// override individual operations when set.
type Fake struct {
	mu sync.Mutex

	Intents       map[string]*gateway.PaymentIntent
	Subscriptions map[string]*gateway.Subscription
	Invoices      map[string]*gateway.Invoice
	Methods       map[string]*gateway.PaymentMethod

	CreateHook   func(params gateway.PaymentIntentParams) (*gateway.PaymentIntent, error)
	ConfirmHook  func(id string, data gateway.PaymentMethodData) (*gateway.PaymentIntent, error)
	VerifyHook   func(payload []byte, header, secret string) (*gateway.Event, error)
	RetrieveErrs map[string]error

	Created   []gateway.PaymentIntentParams
	Confirmed []string
	Retrieved []string
	Prices    []gateway.PriceParams
	Customers []string

	seq int
}

func New() *Fake {
	return &Fake{
		Intents:       map[string]*gateway.PaymentIntent{},
		Subscriptions: map[string]*gateway.Subscription{},
		Invoices:      map[string]*gateway.Invoice{},
		Methods:       map[string]*gateway.PaymentMethod{},
		RetrieveErrs:  map[string]error{},
	}
}

// AddIntent registers an intent for later retrieval.
func (f *Fake) AddIntent(pi *gateway.PaymentIntent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Intents[pi.ID] = pi
}

func (f *Fake) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s_fake_%d", prefix, f.seq)
}

func (f *Fake) CreatePaymentIntent(_ context.Context, params gateway.PaymentIntentParams) (*gateway.PaymentIntent, error) {
	f.mu.Lock()
	f.Created = append(f.Created, params)
	hook := f.CreateHook
	f.mu.Unlock()
	if hook != nil {
		return hook(params)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	pi := &gateway.PaymentIntent{
		ID:                 f.nextID("pi"),
		RawStatus:          "requires_payment_method",
		Status:             domain.StatusRequiresPaymentMethod,
		AmountMinor:        params.AmountMinor,
		Currency:           params.Currency,
		Metadata:           params.Metadata,
		ReceiptEmail:       params.ReceiptEmail,
		PaymentMethodTypes: params.MethodTypes,
	}
	pi.ClientSecret = pi.ID + "_secret"
	f.Intents[pi.ID] = pi
	return pi, nil
}

func (f *Fake) ConfirmPaymentIntent(_ context.Context, id string, data gateway.PaymentMethodData) (*gateway.PaymentIntent, error) {
	f.mu.Lock()
	f.Confirmed = append(f.Confirmed, id)
	hook := f.ConfirmHook
	f.mu.Unlock()
	if hook != nil {
		return hook(id, data)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	pi, ok := f.Intents[id]
	if !ok {
		return nil, &domain.GatewayError{Op: "confirm_payment_intent", NotFound: true, Message: "no such intent"}
	}
	pi.RawStatus = "requires_action"
	pi.Status = domain.StatusRequiresAction
	if data.Type == "boleto" && pi.Vouchers.URL() == "" {
		pi.Vouchers.NextAction = "https://vouchers.test/" + id
	}
	return pi, nil
}

func (f *Fake) RetrievePaymentIntent(_ context.Context, id string, _ ...string) (*gateway.PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Retrieved = append(f.Retrieved, id)
	if err := f.RetrieveErrs[id]; err != nil {
		return nil, err
	}
	pi, ok := f.Intents[id]
	if !ok {
		return nil, &domain.GatewayError{Op: "retrieve_payment_intent", HTTPStatus: 404, Code: "resource_missing", NotFound: true, Message: "no such intent"}
	}
	return pi, nil
}

func (f *Fake) RetrievePaymentMethod(_ context.Context, id string) (*gateway.PaymentMethod, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pm, ok := f.Methods[id]
	if !ok {
		return nil, &domain.GatewayError{Op: "retrieve_payment_method", NotFound: true, Message: "no such method"}
	}
	return pm, nil
}

func (f *Fake) CreatePrice(_ context.Context, params gateway.PriceParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Prices = append(f.Prices, params)
	return f.nextID("price"), nil
}

func (f *Fake) FindOrCreateCustomer(_ context.Context, email, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Customers = append(f.Customers, email)
	return "cus_" + email, nil
}

func (f *Fake) CreateSubscription(_ context.Context, customerID, priceID, _ string) (*gateway.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv := &gateway.Invoice{ID: f.nextID("in")}
	sub := &gateway.Subscription{ID: f.nextID("sub"), Status: "incomplete", LatestInvoiceID: inv.ID}
	f.Invoices[inv.ID] = inv
	f.Subscriptions[sub.ID] = sub
	return sub, nil
}

func (f *Fake) RetrieveSubscription(_ context.Context, id string) (*gateway.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.Subscriptions[id]
	if !ok {
		return nil, &domain.GatewayError{Op: "retrieve_subscription", NotFound: true, Message: "no such subscription"}
	}
	return sub, nil
}

func (f *Fake) RetrieveInvoice(_ context.Context, id string) (*gateway.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.Invoices[id]
	if !ok {
		return nil, &domain.GatewayError{Op: "retrieve_invoice", NotFound: true, Message: "no such invoice"}
	}
	return inv, nil
}

func (f *Fake) VerifyWebhookSignature(payload []byte, header, secret string) (*gateway.Event, error) {
	if f.VerifyHook != nil {
		return f.VerifyHook(payload, header, secret)
	}
	return nil, domain.ErrInvalidSignature
}

var _ gateway.Client = (*Fake)(nil)
