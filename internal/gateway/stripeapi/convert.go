package stripeapi

import (
	"encoding/json"
	"fmt"
	"time"

	stripe "github.com/stripe/stripe-go/v74"

	"doacao/internal/domain"
	"doacao/internal/gateway"
	"doacao/internal/infra"
)

func convertPaymentIntent(pi *stripe.PaymentIntent) *gateway.PaymentIntent {
	if pi == nil {
		return nil
	}
	out := &gateway.PaymentIntent{
		ID:                 pi.ID,
		ClientSecret:       pi.ClientSecret,
		RawStatus:          string(pi.Status),
		Status:             domain.ParseIntentStatus(string(pi.Status)),
		Livemode:           pi.Livemode,
		AmountMinor:        pi.Amount,
		Currency:           string(pi.Currency),
		Metadata:           pi.Metadata,
		ReceiptEmail:       pi.ReceiptEmail,
		PaymentMethodTypes: pi.PaymentMethodTypes,
	}
	if pi.Created > 0 {
		out.Created = time.Unix(pi.Created, 0).UTC()
	}
	if pi.LastPaymentError != nil {
		out.LastErrorMessage = pi.LastPaymentError.Msg
	}
	if pi.Customer != nil {
		out.CustomerName = pi.Customer.Name
	}
	if pi.Invoice != nil {
		out.InvoiceID = pi.Invoice.ID
	}
	if pi.PaymentMethod != nil {
		out.PaymentMethodID = pi.PaymentMethod.ID
		if pi.PaymentMethod.BillingDetails != nil {
			out.BillingEmail = pi.PaymentMethod.BillingDetails.Email
		}
	}
	if pi.NextAction != nil && pi.NextAction.BoletoDisplayDetails != nil {
		out.Vouchers.NextAction = pi.NextAction.BoletoDisplayDetails.HostedVoucherURL
	}
	if pi.LastResponse != nil {
		raw := rawVouchers(pi.LastResponse.RawJSON)
		out.Vouchers.PaymentMethod = raw.PaymentMethod
		out.Vouchers.Charges = raw.Charges
		if out.Vouchers.NextAction == "" {
			out.Vouchers.NextAction = raw.NextAction
		}
	}
	return out
}

func convertSubscription(sub *stripe.Subscription) *gateway.Subscription {
	out := &gateway.Subscription{ID: sub.ID, Status: string(sub.Status)}
	if sub.LatestInvoice != nil {
		out.LatestInvoiceID = sub.LatestInvoice.ID
		if pi := sub.LatestInvoice.PaymentIntent; pi != nil && pi.ID != "" {
			out.PaymentIntent = convertPaymentIntent(pi)
		}
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		if price := sub.Items.Data[0].Price; price != nil && price.Recurring != nil {
			out.Interval = string(price.Recurring.Interval)
		}
	}
	return out
}

// voucherEnvelope reads the voucher fields the typed SDK models do not
// carry: the link on an expanded payment method and on legacy charges.
type voucherEnvelope struct {
	PaymentMethod json.RawMessage `json:"payment_method"`
	NextAction    *struct {
		BoletoDisplayDetails *struct {
			HostedVoucherURL string `json:"hosted_voucher_url"`
		} `json:"boleto_display_details"`
	} `json:"next_action"`
	Charges *struct {
		Data []struct {
			PaymentMethodDetails *struct {
				Boleto *struct {
					HostedVoucherURL string `json:"hosted_voucher_url"`
				} `json:"boleto"`
			} `json:"payment_method_details"`
		} `json:"data"`
	} `json:"charges"`
}

type boletoHolder struct {
	Boleto *struct {
		HostedVoucherURL string `json:"hosted_voucher_url"`
	} `json:"boleto"`
}

// rawVouchers extracts voucher links from a raw payment intent body.
func rawVouchers(raw []byte) gateway.VoucherSources {
	var out gateway.VoucherSources
	if len(raw) == 0 {
		return out
	}
	var env voucherEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return out
	}
	out.PaymentMethod = paymentMethodVoucher(env.PaymentMethod)
	if env.NextAction != nil && env.NextAction.BoletoDisplayDetails != nil {
		out.NextAction = env.NextAction.BoletoDisplayDetails.HostedVoucherURL
	}
	if env.Charges != nil {
		for _, ch := range env.Charges.Data {
			if ch.PaymentMethodDetails != nil && ch.PaymentMethodDetails.Boleto != nil {
				out.Charges = append(out.Charges, ch.PaymentMethodDetails.Boleto.HostedVoucherURL)
			}
		}
	}
	return out
}

// paymentMethodVoucher accepts either an id string or an expanded object.
func paymentMethodVoucher(raw json.RawMessage) string {
	if len(raw) == 0 || raw[0] != '{' {
		return ""
	}
	var pm boletoHolder
	if err := json.Unmarshal(raw, &pm); err != nil || pm.Boleto == nil {
		return ""
	}
	return pm.Boleto.HostedVoucherURL
}

// leveledLogger routes stripe-go's internal logging into zerolog.
type leveledLogger struct {
	logger *infra.Logger
}

func (l leveledLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debug().Msg("stripe: " + fmt.Sprintf(format, v...))
}

func (l leveledLogger) Infof(format string, v ...interface{}) {
	l.logger.Debug().Msg("stripe: " + fmt.Sprintf(format, v...))
}

func (l leveledLogger) Warnf(format string, v ...interface{}) {
	l.logger.Warn().Msg("stripe: " + fmt.Sprintf(format, v...))
}

func (l leveledLogger) Errorf(format string, v ...interface{}) {
	l.logger.Error().Msg("stripe: " + fmt.Sprintf(format, v...))
}
