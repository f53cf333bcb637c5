// Package stripeapi implements gateway.Client on top of stripe-go.
package stripeapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
	"github.com/stripe/stripe-go/v74/webhook"

	"doacao/internal/domain"
	"doacao/internal/gateway"
	"doacao/internal/infra"
	"doacao/internal/metrics"
)

const defaultTimeout = 10 * time.Second

// ErrMissingSecretKey indicates that the client was configured without credentials.
var ErrMissingSecretKey = errors.New("stripeapi: secret key is required")

// Options configures the gateway client.
type Options struct {
	SecretKey  string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client performs gateway calls with a bounded timeout per call.
type Client struct {
	api     *client.API
	hasKey  bool
	timeout time.Duration
	logger  *infra.Logger
}

// NewClient builds a client. Network retries inside stripe-go are disabled;
// callers own retry policy.
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := infra.OrDiscard(opts.Logger)

	cfg := &stripe.BackendConfig{
		HTTPClient:        httpClient,
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     leveledLogger{logger: logger},
	}
	if base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"); base != "" {
		cfg.URL = stripe.String(base)
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, cfg)
	key := strings.TrimSpace(opts.SecretKey)

	return &Client{
		api:     client.New(key, &stripe.Backends{API: backend, Connect: backend, Uploads: backend}),
		hasKey:  key != "",
		timeout: timeout,
		logger:  logger,
	}
}

var _ gateway.Client = (*Client)(nil)

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.hasKey
}

func (c *Client) CreatePaymentIntent(ctx context.Context, p gateway.PaymentIntentParams) (*gateway.PaymentIntent, error) {
	const op = "create_payment_intent"
	if err := c.ready(op); err != nil {
		return nil, err
	}
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(p.AmountMinor),
		Currency:           stripe.String(strings.ToLower(p.Currency)),
		PaymentMethodTypes: stripe.StringSlice(p.MethodTypes),
	}
	if p.ReceiptEmail != "" {
		params.ReceiptEmail = stripe.String(p.ReceiptEmail)
	}
	if p.BoletoExpiresAfterDays > 0 {
		params.AddExtra("payment_method_options[boleto][expires_after_days]", strconv.Itoa(p.BoletoExpiresAfterDays))
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	params.Context = ctx

	pi, err := c.api.PaymentIntents.New(params)
	c.observe(op, err)
	if err != nil {
		return nil, wrapError(op, err)
	}
	return convertPaymentIntent(pi), nil
}

func (c *Client) ConfirmPaymentIntent(ctx context.Context, id string, data gateway.PaymentMethodData) (*gateway.PaymentIntent, error) {
	const op = "confirm_payment_intent"
	if err := c.ready(op); err != nil {
		return nil, err
	}
	params := &stripe.PaymentIntentConfirmParams{}
	addPaymentMethodData(&params.Params, data)
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	params.Context = ctx

	pi, err := c.api.PaymentIntents.Confirm(id, params)
	c.observe(op, err)
	if err != nil {
		return nil, wrapError(op, err)
	}
	return convertPaymentIntent(pi), nil
}

func (c *Client) RetrievePaymentIntent(ctx context.Context, id string, expand ...string) (*gateway.PaymentIntent, error) {
	const op = "retrieve_payment_intent"
	if err := c.ready(op); err != nil {
		return nil, err
	}
	params := &stripe.PaymentIntentParams{}
	for _, e := range expand {
		params.AddExpand(e)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	params.Context = ctx

	pi, err := c.api.PaymentIntents.Get(id, params)
	c.observe(op, err)
	if err != nil {
		return nil, wrapError(op, err)
	}
	return convertPaymentIntent(pi), nil
}

func (c *Client) RetrievePaymentMethod(ctx context.Context, id string) (*gateway.PaymentMethod, error) {
	const op = "retrieve_payment_method"
	if err := c.ready(op); err != nil {
		return nil, err
	}
	params := &stripe.PaymentMethodParams{}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	params.Context = ctx

	pm, err := c.api.PaymentMethods.Get(id, params)
	c.observe(op, err)
	if err != nil {
		return nil, wrapError(op, err)
	}
	out := &gateway.PaymentMethod{ID: pm.ID, Type: string(pm.Type)}
	if pm.BillingDetails != nil {
		out.BillingEmail = pm.BillingDetails.Email
		out.BillingName = pm.BillingDetails.Name
	}
	if pm.LastResponse != nil {
		out.VoucherURL = paymentMethodVoucher(pm.LastResponse.RawJSON)
	}
	return out, nil
}

func (c *Client) CreatePrice(ctx context.Context, p gateway.PriceParams) (string, error) {
	const op = "create_price"
	if err := c.ready(op); err != nil {
		return "", err
	}
	params := &stripe.PriceParams{
		UnitAmount: stripe.Int64(p.AmountMinor),
		Currency:   stripe.String(strings.ToLower(p.Currency)),
		Recurring:  &stripe.PriceRecurringParams{Interval: stripe.String(p.Interval)},
		ProductData: &stripe.PriceProductDataParams{
			Name: stripe.String(p.ProductName),
		},
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	params.Context = ctx

	price, err := c.api.Prices.New(params)
	c.observe(op, err)
	if err != nil {
		return "", wrapError(op, err)
	}
	return price.ID, nil
}

// FindOrCreateCustomer reuses the first customer registered with email.
func (c *Client) FindOrCreateCustomer(ctx context.Context, email, name string) (string, error) {
	const op = "find_or_create_customer"
	if err := c.ready(op); err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	list := &stripe.CustomerListParams{Email: stripe.String(email)}
	list.Limit = stripe.Int64(1)
	list.Context = ctx
	iter := c.api.Customers.List(list)
	if iter.Next() {
		c.observe(op, nil)
		return iter.Customer().ID, nil
	}
	if err := iter.Err(); err != nil {
		c.observe(op, err)
		return "", wrapError(op, err)
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.AddMetadata("source", "donation_form")
	params.Context = ctx
	cust, err := c.api.Customers.New(params)
	c.observe(op, err)
	if err != nil {
		return "", wrapError(op, err)
	}
	return cust.ID, nil
}

func (c *Client) CreateSubscription(ctx context.Context, customerID, priceID, paymentBehavior string) (*gateway.Subscription, error) {
	const op = "create_subscription"
	if err := c.ready(op); err != nil {
		return nil, err
	}
	params := &stripe.SubscriptionParams{
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(priceID)},
		},
	}
	if paymentBehavior != "" {
		params.PaymentBehavior = stripe.String(paymentBehavior)
	}
	params.AddExtra("payment_settings[save_default_payment_method]", "on_subscription")
	params.AddExpand("latest_invoice.payment_intent")
	params.AddMetadata("source", "donation_form")
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	params.Context = ctx

	sub, err := c.api.Subscriptions.New(params)
	c.observe(op, err)
	if err != nil {
		return nil, wrapError(op, err)
	}
	return convertSubscription(sub), nil
}

func (c *Client) RetrieveSubscription(ctx context.Context, id string) (*gateway.Subscription, error) {
	const op = "retrieve_subscription"
	if err := c.ready(op); err != nil {
		return nil, err
	}
	params := &stripe.SubscriptionParams{}
	params.AddExpand("latest_invoice.payment_intent")
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	params.Context = ctx

	sub, err := c.api.Subscriptions.Get(id, params)
	c.observe(op, err)
	if err != nil {
		return nil, wrapError(op, err)
	}
	return convertSubscription(sub), nil
}

func (c *Client) RetrieveInvoice(ctx context.Context, id string) (*gateway.Invoice, error) {
	const op = "retrieve_invoice"
	if err := c.ready(op); err != nil {
		return nil, err
	}
	params := &stripe.InvoiceParams{}
	params.AddExpand("payment_intent")
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	params.Context = ctx

	inv, err := c.api.Invoices.Get(id, params)
	c.observe(op, err)
	if err != nil {
		return nil, wrapError(op, err)
	}
	out := &gateway.Invoice{ID: inv.ID}
	if inv.PaymentIntent != nil && inv.PaymentIntent.ID != "" {
		out.PaymentIntent = convertPaymentIntent(inv.PaymentIntent)
	}
	return out, nil
}

// VerifyWebhookSignature checks the body is JSON first, then the signature
// header against secret.
func (c *Client) VerifyWebhookSignature(payload []byte, header, secret string) (*gateway.Event, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, domain.ErrMissingSecret
	}
	if !json.Valid(payload) {
		return nil, domain.ErrInvalidPayload
	}
	ev, err := webhook.ConstructEventWithOptions(payload, header, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		switch {
		case errors.Is(err, webhook.ErrNotSigned),
			errors.Is(err, webhook.ErrInvalidHeader),
			errors.Is(err, webhook.ErrNoValidSignature),
			errors.Is(err, webhook.ErrTooOld):
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
		default:
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
		}
	}
	out := &gateway.Event{
		ID:       ev.ID,
		Type:     string(ev.Type),
		Livemode: ev.Livemode,
		Created:  time.Unix(ev.Created, 0).UTC(),
	}
	if ev.Data != nil {
		out.Object = ev.Data.Raw
	}
	return out, nil
}

func (c *Client) ready(op string) error {
	if !c.hasKey {
		return &domain.GatewayError{Op: op, Message: "secret key not configured", Err: ErrMissingSecretKey}
	}
	return nil
}

func (c *Client) observe(op string, err error) {
	metrics.GatewayRequests.WithLabelValues(op, metrics.Outcome(err)).Inc()
	if err != nil {
		c.logger.Debug().Err(err).Str("op", op).Msg("stripeapi: request failed")
	}
}

func wrapError(op string, err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		return &domain.GatewayError{
			Op:         op,
			HTTPStatus: se.HTTPStatusCode,
			Code:       string(se.Code),
			Message:    se.Msg,
			NotFound:   se.HTTPStatusCode == http.StatusNotFound || se.Code == stripe.ErrorCodeResourceMissing,
			Err:        err,
		}
	}
	return &domain.GatewayError{Op: op, Err: err}
}

func addPaymentMethodData(params *stripe.Params, data gateway.PaymentMethodData) {
	if data.Type == "" {
		return
	}
	params.AddExtra("payment_method_data[type]", data.Type)
	if data.Email != "" {
		params.AddExtra("payment_method_data[billing_details][email]", data.Email)
	}
	if data.Name != "" {
		params.AddExtra("payment_method_data[billing_details][name]", data.Name)
	}
	if data.TaxID != "" && data.Type == "boleto" {
		params.AddExtra("payment_method_data[boleto][tax_id]", data.TaxID)
	}
	if a := data.Address; a != nil {
		fields := map[string]string{
			"line1":       a.Line1,
			"line2":       a.Line2,
			"city":        a.City,
			"state":       a.State,
			"postal_code": a.PostalCode,
			"country":     a.Country,
		}
		for k, v := range fields {
			if v != "" {
				params.AddExtra("payment_method_data[billing_details][address]["+k+"]", v)
			}
		}
	}
}
