// Package notify sends donor emails. Every send is best effort: callers log
// the returned error and carry on.
package notify

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"doacao/internal/domain"
	"doacao/internal/infra"
	"doacao/internal/metrics"
)

// Email kinds, used as the metric label.
const (
	KindConfirmation = "confirmation"
	KindReceipt      = "receipt"
	KindRenewal      = "renewal"
	KindBoletoLink   = "boleto_link"
)

type Confirmation struct {
	Email       string
	Name        string
	AmountMinor int64
	Currency    string
	Reference   string
	PaidAt      time.Time
}

type Receipt struct {
	Email     string
	HostedURL string
	PDFURL    string
}

type Renewal struct {
	Email      string
	VoucherURL string
}

type BoletoLink struct {
	Email      string
	VoucherURL string
}

// Notifier renders and sends the donor emails.
type Notifier struct {
	enabled bool
	cfg     infra.SMTPConfig
	sender  Sender
	logger  *infra.Logger
}

// New gates sending on the enable flag plus a host and a valid sender
// address.
func New(enabled bool, cfg infra.SMTPConfig, sender Sender, logger *infra.Logger) *Notifier {
	return &Notifier{enabled: enabled, cfg: cfg, sender: sender, logger: infra.OrDiscard(logger)}
}

// FromConfig wires the SMTP transport.
func FromConfig(cfg *infra.Config, logger *infra.Logger) *Notifier {
	return New(cfg.EnableInvoiceEmail, cfg.SMTP, NewSMTPSender(cfg.SMTP), logger)
}

func (n *Notifier) Enabled() bool {
	if !n.enabled || n.sender == nil || strings.TrimSpace(n.cfg.Host) == "" {
		return false
	}
	return validEmail(n.cfg.FromEmail)
}

func (n *Notifier) SendConfirmation(ctx context.Context, c Confirmation) error {
	name := c.Name
	if name == "" {
		name = "donor"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Hello, %s.\n\n", name)
	b.WriteString("Thank you for your donation! Your payment was confirmed.\n\n")
	b.WriteString("TRANSACTION DETAILS\n")
	b.WriteString(strings.Repeat("-", 30) + "\n")
	fmt.Fprintf(&b, "Date: %s\n", c.PaidAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Amount: %s\n", FormatAmount(c.AmountMinor, c.Currency))
	b.WriteString("Status: Paid\n")
	fmt.Fprintf(&b, "Reference: %s\n", c.Reference)
	b.WriteString(strings.Repeat("-", 30) + "\n\n")
	b.WriteString("This email is your payment receipt.\n\n")
	b.WriteString(n.signature())

	return n.send(ctx, KindConfirmation, c.Email, n.subject("Donation receipt"), b.String())
}

func (n *Notifier) SendReceipt(ctx context.Context, r Receipt) error {
	var b strings.Builder
	b.WriteString("Thank you for your donation.\n\n")
	b.WriteString("Use the link below to view and download your invoice:\n\n")
	if r.HostedURL != "" {
		b.WriteString(r.HostedURL + "\n\n")
	}
	if r.PDFURL != "" {
		b.WriteString("Invoice PDF:\n" + r.PDFURL + "\n\n")
	}
	b.WriteString(n.signature())

	return n.send(ctx, KindReceipt, r.Email, n.subject("Your donation invoice"), b.String())
}

func (n *Notifier) SendRenewal(ctx context.Context, r Renewal) error {
	var b strings.Builder
	b.WriteString("Hello!\n\n")
	b.WriteString("It is time to renew your recurring donation. Here is your new boleto:\n\n")
	if r.VoucherURL != "" {
		b.WriteString(r.VoucherURL + "\n\n")
	}
	b.WriteString("Thank you for continuing to support our cause!\n\n")
	b.WriteString(n.signature())

	return n.send(ctx, KindRenewal, r.Email, n.subject("New recurring donation boleto"), b.String())
}

func (n *Notifier) SendBoletoLink(ctx context.Context, l BoletoLink) error {
	var b strings.Builder
	b.WriteString("Hello!\n\n")
	b.WriteString("Use the link below to view and pay your boleto:\n\n")
	b.WriteString(l.VoucherURL + "\n\n")
	b.WriteString("Thank you for your donation!\n\n")
	b.WriteString(n.signature())

	return n.send(ctx, KindBoletoLink, l.Email, n.subject("Your donation boleto"), b.String())
}

func (n *Notifier) send(ctx context.Context, kind, to, subject, body string) error {
	if !n.Enabled() {
		metrics.Emails.WithLabelValues(kind, "disabled").Inc()
		return domain.ErrFeatureDisabled
	}
	if !validEmail(to) {
		metrics.Emails.WithLabelValues(kind, "invalid_recipient").Inc()
		return fmt.Errorf("notify: invalid recipient %q", to)
	}
	err := n.sender.Send(ctx, to, subject, body)
	metrics.Emails.WithLabelValues(kind, metrics.Outcome(err)).Inc()
	if err != nil {
		return err
	}
	n.logger.Info().Str("kind", kind).Msg("notify: email sent")
	return nil
}

func (n *Notifier) subject(s string) string {
	return fmt.Sprintf("[%s] %s", n.cfg.SiteName, s)
}

func (n *Notifier) signature() string {
	return "-- " + n.cfg.SiteName
}

// FormatAmount renders minor units with the currency symbol and the
// separators of the currency's home locale.
func FormatAmount(minor int64, currency string) string {
	major := domain.MajorUnits(minor).InexactFloat64()
	if strings.EqualFold(currency, "BRL") {
		return message.NewPrinter(language.BrazilianPortuguese).Sprintf("R$ %.2f", major)
	}
	return message.NewPrinter(language.AmericanEnglish).Sprintf("$ %.2f", major)
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(strings.TrimSpace(s))
	return err == nil && addr.Address == strings.TrimSpace(s)
}
