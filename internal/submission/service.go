// Package submission turns a donor's form into a gateway payment: a one-off
// intent, a recurring boleto ledger entry, or a card subscription.
package submission

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"doacao/internal/boleto"
	"doacao/internal/domain"
	"doacao/internal/exchange"
	"doacao/internal/gateway"
	"doacao/internal/infra"
	"doacao/internal/notify"
)

// Donor-facing messages.
const (
	MsgInvalidEmail     = "Invalid email."
	MsgNameRequired     = "Name is required."
	MsgTaxIDRequired    = "CPF/CNPJ is required for boleto."
	MsgAddressRequired  = "Address is required for boleto."
	MsgCityRequired     = "City is required for boleto."
	MsgPostalRequired   = "Postal code is required for boleto."
	MsgInvalidFrequency = "Invalid donation frequency."
	MsgInvalidAmount    = "Invalid donation amount."
	MsgBoletoDisabled   = "Boleto payments are disabled."
	MsgMonthlyDisabled  = "Monthly donations are disabled."
	MsgAnnualDisabled   = "Annual donations are disabled."
	MsgNotConfigured    = "Payment gateway is not configured."
	MsgPaymentFailed    = "Payment failed. Check your details and try again."
	MsgInvoiceMissing   = "Failed to create subscription: invoice not found."
	MsgMissingPaymentID = "Payment id not provided."
	MsgEmailNotFound    = "Email not found."
	MsgVoucherNotReady  = "The boleto link is not available yet. Check your email in a few minutes."
	MsgEmailSent        = "Email sent."
)

const (
	MethodBoleto = "boleto"
	MethodCard   = "card"

	ResponsePaymentIntent = "payment_intent"
	ResponseSubscription  = "subscription"

	baseCurrency       = "USD"
	brazil             = "BR"
	sourceDonationForm = "donation_form"
	paymentBehavior    = "default_incomplete"
)

// Request is the donation form as posted by the browser.
type Request struct {
	AmountType     string `json:"amount_type"`
	AmountCustom   string `json:"amount_custom"`
	Frequency      string `json:"frequency"`
	Email          string `json:"email"`
	CardholderName string `json:"cardholder_name"`
	PaymentMethod  string `json:"payment_method"`
	Country        string `json:"country"`
	TaxID          string `json:"cpf_cnpj"`
	AddressLine1   string `json:"address_line1"`
	AddressLine2   string `json:"address_line2"`
	City           string `json:"city"`
	State          string `json:"state"`
	PostalCode     string `json:"postal_code"`
}

// Response carries what the browser needs to confirm the payment.
type Response struct {
	ClientSecret    string `json:"client_secret"`
	Type            string `json:"type"`
	PaymentIntentID string `json:"payment_intent_id,omitempty"`
	SubscriptionID  string `json:"subscription_id,omitempty"`
}

// Features mirrors the admin toggles.
type Features struct {
	Boleto  bool
	Monthly bool
	Annual  bool
}

type Rates interface {
	GetRate(ctx context.Context, from, to string) float64
}

type KeySource interface {
	SecretKey() string
}

type Ledger interface {
	Create(ctx context.Context, rec *domain.RecurringBoletoRecord) error
}

type Notifier interface {
	SendBoletoLink(ctx context.Context, l notify.BoletoLink) error
}

type Deps struct {
	Gateway  gateway.Client
	Keys     KeySource
	Rates    Rates
	Ledger   Ledger
	Notifier Notifier
	Features Features
	Wait     boleto.WaitPolicy
	Clock    infra.Clock
	Logger   *infra.Logger
}

type Service struct {
	gw       gateway.Client
	keys     KeySource
	rates    Rates
	ledger   Ledger
	notifier Notifier
	features Features
	wait     boleto.WaitPolicy
	clock    infra.Clock
	logger   *infra.Logger
}

func NewService(d Deps) *Service {
	s := &Service{
		gw:       d.Gateway,
		keys:     d.Keys,
		rates:    d.Rates,
		ledger:   d.Ledger,
		notifier: d.Notifier,
		features: d.Features,
		wait:     d.Wait,
		clock:    d.Clock,
		logger:   infra.OrDiscard(d.Logger),
	}
	if s.clock == nil {
		s.clock = infra.SystemClock{}
	}
	if s.wait == (boleto.WaitPolicy{}) {
		s.wait = boleto.DefaultWaitPolicy()
	}
	return s
}

// Submit validates the form and creates the matching gateway objects.
// countryHint fills in an empty country field.
func (s *Service) Submit(ctx context.Context, req Request, countryHint string) (*Response, error) {
	req = normalize(req)
	if req.Country == "" {
		req.Country = strings.ToUpper(strings.TrimSpace(countryHint))
	}

	if msgs := validate(req); len(msgs) > 0 {
		return nil, domain.NewValidationError(msgs...)
	}
	freq, ok := domain.ParseFrequency(req.Frequency)
	if !ok {
		return nil, domain.NewValidationError(MsgInvalidFrequency)
	}
	amount := amountMinor(req)
	if amount <= 0 {
		return nil, domain.NewValidationError(MsgInvalidAmount)
	}
	if err := s.checkFeatures(req.PaymentMethod, freq); err != nil {
		return nil, err
	}
	if s.keys == nil || strings.TrimSpace(s.keys.SecretKey()) == "" {
		return nil, domain.NewValidationError(MsgNotConfigured)
	}

	switch {
	case freq == domain.FrequencyOnce:
		return s.createOneTime(ctx, req, amount)
	case req.PaymentMethod == MethodBoleto:
		return s.createRecurringBoleto(ctx, req, freq, amount)
	default:
		return s.createSubscription(ctx, req, freq, amount)
	}
}

func (s *Service) checkFeatures(method string, freq domain.Frequency) error {
	if method == MethodBoleto && !s.features.Boleto {
		return domain.NewValidationError(MsgBoletoDisabled)
	}
	switch {
	case freq == domain.FrequencyMonthly && !s.features.Monthly:
		return domain.NewValidationError(MsgMonthlyDisabled)
	case freq == domain.FrequencyAnnual && !s.features.Annual:
		return domain.NewValidationError(MsgAnnualDisabled)
	}
	return nil
}

func (s *Service) createOneTime(ctx context.Context, req Request, amount int64) (*Response, error) {
	params := gateway.PaymentIntentParams{
		AmountMinor:  amount,
		Currency:     baseCurrency,
		MethodTypes:  []string{MethodCard},
		ReceiptEmail: req.Email,
		Metadata:     donorMetadata(req, "false"),
	}
	switch {
	case req.PaymentMethod == MethodBoleto:
		params.Currency = boleto.SettlementCurrency
		params.MethodTypes = []string{MethodBoleto}
		params.BoletoExpiresAfterDays = boleto.VoucherExpiryDays
	case req.Country == brazil:
		params.Currency = boleto.SettlementCurrency
		params.AmountMinor = s.toBRL(ctx, amount)
	}

	pi, err := s.gw.CreatePaymentIntent(ctx, params)
	if err != nil {
		return nil, err
	}
	return &Response{ClientSecret: pi.ClientSecret, Type: ResponsePaymentIntent, PaymentIntentID: pi.ID}, nil
}

func (s *Service) createRecurringBoleto(ctx context.Context, req Request, freq domain.Frequency, amount int64) (*Response, error) {
	amount = s.toBRL(ctx, amount)
	meta := donorMetadata(req, "true")
	meta["frequency"] = string(freq)

	pi, err := s.gw.CreatePaymentIntent(ctx, gateway.PaymentIntentParams{
		AmountMinor:            amount,
		Currency:               boleto.SettlementCurrency,
		MethodTypes:            []string{MethodBoleto},
		ReceiptEmail:           req.Email,
		Metadata:               meta,
		BoletoExpiresAfterDays: boleto.VoucherExpiryDays,
	})
	if err != nil {
		return nil, err
	}

	rec := &domain.RecurringBoletoRecord{
		DonorEmail:      req.Email,
		AmountMinor:     amount,
		Frequency:       freq,
		PaymentIntentID: pi.ID,
		CreatedAt:       s.clock.Now(),
		Active:          true,
	}
	if err := s.ledger.Create(ctx, rec); err != nil {
		s.logger.Error().Err(err).Str("payment_intent_id", pi.ID).Msg("submission: recurring boleto record not stored")
	}
	return &Response{ClientSecret: pi.ClientSecret, Type: ResponsePaymentIntent, PaymentIntentID: pi.ID}, nil
}

func (s *Service) createSubscription(ctx context.Context, req Request, freq domain.Frequency, amount int64) (*Response, error) {
	currency := baseCurrency
	if req.Country == brazil {
		currency = boleto.SettlementCurrency
		amount = s.toBRL(ctx, amount)
	}

	priceID, err := s.gw.CreatePrice(ctx, gateway.PriceParams{
		AmountMinor: amount,
		Currency:    currency,
		Interval:    freq.Interval(),
		ProductName: freq.Label() + " donation",
	})
	if err != nil {
		return nil, err
	}
	customerID, err := s.gw.FindOrCreateCustomer(ctx, req.Email, req.CardholderName)
	if err != nil {
		return nil, err
	}
	sub, err := s.gw.CreateSubscription(ctx, customerID, priceID, paymentBehavior)
	if err != nil {
		return nil, err
	}

	pi := sub.PaymentIntent
	if pi == nil {
		if sub.LatestInvoiceID == "" {
			return nil, domain.NewValidationError(MsgInvoiceMissing)
		}
		pi, err = s.awaitInvoiceIntent(ctx, sub)
		if err != nil {
			return nil, err
		}
	}

	secret := pi.ClientSecret
	if secret == "" {
		full, err := s.gw.RetrievePaymentIntent(ctx, pi.ID)
		if err != nil {
			return nil, err
		}
		secret = full.ClientSecret
	}
	return &Response{
		ClientSecret:    secret,
		Type:            ResponseSubscription,
		PaymentIntentID: pi.ID,
		SubscriptionID:  sub.ID,
	}, nil
}

// awaitInvoiceIntent polls the invoice until the gateway links its payment
// intent, then tries the subscription once more.
func (s *Service) awaitInvoiceIntent(ctx context.Context, sub *gateway.Subscription) (*gateway.PaymentIntent, error) {
	pi, err := boleto.WaitFor(ctx, s.wait, func(ctx context.Context) (*gateway.PaymentIntent, bool, error) {
		inv, err := s.gw.RetrieveInvoice(ctx, sub.LatestInvoiceID)
		if err != nil {
			if domain.IsNotFoundInMode(err) {
				return nil, false, err
			}
			s.logger.Warn().Err(err).Str("invoice_id", sub.LatestInvoiceID).Msg("submission: invoice lookup failed")
			return nil, false, nil
		}
		return inv.PaymentIntent, inv.PaymentIntent != nil, nil
	})
	if err == nil {
		return pi, nil
	}
	if !errors.Is(err, domain.ErrNotYetAvailable) {
		return nil, err
	}

	latest, err := s.gw.RetrieveSubscription(ctx, sub.ID)
	if err == nil && latest.PaymentIntent != nil {
		return latest.PaymentIntent, nil
	}
	s.logger.Warn().Str("subscription_id", sub.ID).Msg("submission: invoice payment intent never linked")
	return nil, domain.NewValidationError(MsgPaymentFailed)
}

// SendBoletoEmail emails the voucher link of a confirmed boleto intent. A
// disabled mailer is not an error for the donor.
func (s *Service) SendBoletoEmail(ctx context.Context, paymentIntentID string) error {
	paymentIntentID = strings.TrimSpace(paymentIntentID)
	if paymentIntentID == "" {
		return domain.NewValidationError(MsgMissingPaymentID)
	}
	if s.keys == nil || strings.TrimSpace(s.keys.SecretKey()) == "" {
		return domain.NewValidationError(MsgNotConfigured)
	}

	v, err := boleto.ResolveVoucher(ctx, s.gw, paymentIntentID, s.wait)
	if err != nil {
		if errors.Is(err, domain.ErrNotYetAvailable) {
			s.logger.Warn().Str("payment_intent_id", paymentIntentID).Msg("submission: voucher link not available")
		}
		return err
	}

	email := v.Intent.DonorEmail()
	if email == "" {
		email = v.Email
	}
	if email == "" {
		return domain.NewValidationError(MsgEmailNotFound)
	}

	err = s.notifier.SendBoletoLink(ctx, notify.BoletoLink{Email: email, VoucherURL: v.URL})
	if errors.Is(err, domain.ErrFeatureDisabled) {
		s.logger.Info().Str("payment_intent_id", paymentIntentID).Msg("submission: boleto email skipped, mailer disabled")
		return nil
	}
	if err != nil {
		return fmt.Errorf("submission: send boleto email: %w", err)
	}
	return nil
}

func (s *Service) toBRL(ctx context.Context, amount int64) int64 {
	rate := s.rates.GetRate(ctx, baseCurrency, boleto.SettlementCurrency)
	if rate <= 0 {
		return amount
	}
	return exchange.Convert(amount, rate)
}

func donorMetadata(req Request, recurring string) map[string]string {
	return map[string]string{
		"email":           req.Email,
		"cardholder_name": req.CardholderName,
		"source":          sourceDonationForm,
		"recurring":       recurring,
	}
}

func normalize(req Request) Request {
	trim := func(s string) string { return strings.TrimSpace(s) }
	req.AmountType = strings.ToLower(trim(req.AmountType))
	req.AmountCustom = trim(req.AmountCustom)
	req.Frequency = strings.ToLower(trim(req.Frequency))
	req.Email = trim(req.Email)
	req.CardholderName = trim(req.CardholderName)
	req.PaymentMethod = strings.ToLower(trim(req.PaymentMethod))
	if req.PaymentMethod != MethodBoleto {
		req.PaymentMethod = MethodCard
	}
	req.Country = strings.ToUpper(trim(req.Country))
	req.TaxID = trim(req.TaxID)
	req.AddressLine1 = trim(req.AddressLine1)
	req.AddressLine2 = trim(req.AddressLine2)
	req.City = trim(req.City)
	req.State = trim(req.State)
	req.PostalCode = trim(req.PostalCode)
	return req
}

func validate(req Request) []string {
	var msgs []string
	if addr, err := mail.ParseAddress(req.Email); err != nil || addr.Address != req.Email {
		msgs = append(msgs, MsgInvalidEmail)
	}
	if req.CardholderName == "" {
		msgs = append(msgs, MsgNameRequired)
	}
	if req.PaymentMethod == MethodBoleto {
		if req.TaxID == "" {
			msgs = append(msgs, MsgTaxIDRequired)
		}
		if req.AddressLine1 == "" {
			msgs = append(msgs, MsgAddressRequired)
		}
		if req.City == "" {
			msgs = append(msgs, MsgCityRequired)
		}
		if req.PostalCode == "" {
			msgs = append(msgs, MsgPostalRequired)
		}
	}
	return msgs
}

// amountMinor reads a preset in whole units or a custom decimal amount.
// Fractions of a cent are dropped.
func amountMinor(req Request) int64 {
	if req.AmountType == "other" {
		d, err := decimal.NewFromString(strings.ReplaceAll(req.AmountCustom, ",", "."))
		if err != nil {
			return 0
		}
		return d.Shift(2).Truncate(0).IntPart()
	}
	n, err := strconv.ParseInt(req.AmountType, 10, 64)
	if err != nil || n <= 0 {
		return 0
	}
	return n * 100
}
