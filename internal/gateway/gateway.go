// Package gateway describes the payment gateway as the engine sees it. The
// types are deliberately small: only the fields the engine reads.
package gateway

import (
	"context"
	"encoding/json"
	"time"

	"doacao/internal/domain"
)

// Client is the full gateway contract. Consumers declare the narrower
// subset they need.
type Client interface {
	CreatePaymentIntent(ctx context.Context, params PaymentIntentParams) (*PaymentIntent, error)
	ConfirmPaymentIntent(ctx context.Context, id string, data PaymentMethodData) (*PaymentIntent, error)
	RetrievePaymentIntent(ctx context.Context, id string, expand ...string) (*PaymentIntent, error)
	RetrievePaymentMethod(ctx context.Context, id string) (*PaymentMethod, error)
	CreatePrice(ctx context.Context, params PriceParams) (string, error)
	FindOrCreateCustomer(ctx context.Context, email, name string) (string, error)
	CreateSubscription(ctx context.Context, customerID, priceID, paymentBehavior string) (*Subscription, error)
	RetrieveSubscription(ctx context.Context, id string) (*Subscription, error)
	RetrieveInvoice(ctx context.Context, id string) (*Invoice, error)
	VerifyWebhookSignature(payload []byte, header, secret string) (*Event, error)
}

// PaymentIntentParams describes a new payment intent.
type PaymentIntentParams struct {
	AmountMinor            int64
	Currency               string
	MethodTypes            []string
	Metadata               map[string]string
	ReceiptEmail           string
	BoletoExpiresAfterDays int
}

// PaymentMethodData is the inline payment method used on confirmation.
type PaymentMethodData struct {
	Type    string
	Email   string
	Name    string
	TaxID   string
	Address *Address
}

type Address struct {
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
}

// PaymentIntent is a single payment attempt.
type PaymentIntent struct {
	ID                 string
	ClientSecret       string
	RawStatus          string
	Status             domain.IntentStatus
	Livemode           bool
	AmountMinor        int64
	Currency           string
	Metadata           map[string]string
	ReceiptEmail       string
	LastErrorMessage   string
	CustomerName       string
	InvoiceID          string
	PaymentMethodID    string
	PaymentMethodTypes []string
	BillingEmail       string
	Created            time.Time
	Vouchers           VoucherSources
}

// VoucherSources holds every place a boleto voucher link can appear.
type VoucherSources struct {
	PaymentMethod string
	NextAction    string
	Charges       []string
}

// URL returns the first present source: payment method, then next
// action, then the charge list.
func (v VoucherSources) URL() string {
	if v.PaymentMethod != "" {
		return v.PaymentMethod
	}
	if v.NextAction != "" {
		return v.NextAction
	}
	for _, u := range v.Charges {
		if u != "" {
			return u
		}
	}
	return ""
}

// DonorEmail prefers the receipt email, then metadata, then billing details.
func (p *PaymentIntent) DonorEmail() string {
	if p == nil {
		return ""
	}
	if p.ReceiptEmail != "" {
		return p.ReceiptEmail
	}
	if e := p.Metadata["email"]; e != "" {
		return e
	}
	return p.BillingEmail
}

// IsRecurring reports the recurring metadata flag set at creation.
func (p *PaymentIntent) IsRecurring() bool {
	return p != nil && p.Metadata["recurring"] == "true"
}

type PaymentMethod struct {
	ID           string
	Type         string
	BillingEmail string
	BillingName  string
	VoucherURL   string
}

type PriceParams struct {
	AmountMinor int64
	Currency    string
	Interval    string
	ProductName string
}

type Subscription struct {
	ID              string
	Status          string
	Interval        string
	LatestInvoiceID string
	PaymentIntent   *PaymentIntent
}

type Invoice struct {
	ID            string
	PaymentIntent *PaymentIntent
}

// Event is a verified webhook notification. Object is the raw data.object.
type Event struct {
	ID       string
	Type     string
	Livemode bool
	Created  time.Time
	Object   json.RawMessage
}
