package donations

import (
	"context"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"doacao/internal/domain"
	"doacao/internal/gateway"
	"doacao/internal/infra"
)

// Display texts shared by the listing and the refresh endpoint.
const (
	TextAwaiting     = "Awaiting"
	TextUnknown      = "Unknown"
	TextLookupFailed = "Lookup failed"
	TextNotFound     = "Not found"
	TextPaid         = "Paid"
)

// IntentLookup is the slice of the gateway the status view reads.
type IntentLookup interface {
	RetrievePaymentIntent(ctx context.Context, id string, expand ...string) (*gateway.PaymentIntent, error)
	RetrieveSubscription(ctx context.Context, id string) (*gateway.Subscription, error)
}

// ModeMatcher filters objects by live/test context.
type ModeMatcher interface {
	MatchesCurrentMode(l domain.Liveness) bool
	SecretKey() string
}

// Resolution is the live status of one payment intent.
type Resolution struct {
	Status string
	Name   string
	// Missing is set when the id does not exist in the current mode.
	Missing bool
}

// StatusResolver turns payment intent ids into display statuses. Gateway
// failures degrade to a text; they are never returned.
type StatusResolver struct {
	gw     IntentLookup
	modes  ModeMatcher
	logger *infra.Logger
}

func NewStatusResolver(gw IntentLookup, modes ModeMatcher, logger *infra.Logger) *StatusResolver {
	return &StatusResolver{gw: gw, modes: modes, logger: infra.OrDiscard(logger)}
}

// Resolve looks id up with the customer expanded so the donor name can be
// recovered.
func (s *StatusResolver) Resolve(ctx context.Context, id string) Resolution {
	id = strings.TrimSpace(id)
	if id == "" {
		return Resolution{Status: TextAwaiting}
	}
	if s.modes.SecretKey() == "" {
		return Resolution{Status: TextUnknown}
	}

	pi, err := s.gw.RetrievePaymentIntent(ctx, id, "customer")
	if err != nil {
		if domain.IsNotFoundInMode(err) {
			return Resolution{Missing: true}
		}
		s.logger.Warn().Err(err).Str("payment_intent_id", id).Msg("donations: status lookup failed")
		return Resolution{Status: TextLookupFailed}
	}

	res := Resolution{Status: StatusText(pi.Status, pi.RawStatus)}
	if pi.LastErrorMessage != "" {
		res.Status = ErrorText(pi.LastErrorMessage)
	}
	res.Name = pi.Metadata["cardholder_name"]
	if res.Name == "" {
		res.Name = pi.CustomerName
	}
	return res
}

// StatusEntry is one answer of the refresh endpoint.
type StatusEntry struct {
	Status      string `json:"status"`
	StatusClass string `json:"status_class"`
}

// Refresh resolves every id independently.
func (s *StatusResolver) Refresh(ctx context.Context, ids []string) map[string]StatusEntry {
	out := make(map[string]StatusEntry, len(ids))
	for _, id := range ids {
		res := s.Resolve(ctx, id)
		text := res.Status
		if res.Missing {
			text = TextNotFound
		}
		out[id] = StatusEntry{Status: text, StatusClass: StatusClass(text)}
	}
	return out
}

// StatusText maps a lifecycle code to its display text. Codes outside the
// table show the raw code capitalized.
func StatusText(status domain.IntentStatus, raw string) string {
	switch status {
	case domain.StatusSucceeded:
		return TextPaid
	case domain.StatusProcessing:
		return "Processing"
	case domain.StatusRequiresPaymentMethod:
		return "Awaiting payment"
	case domain.StatusRequiresConfirmation:
		return "Awaiting confirmation"
	case domain.StatusRequiresAction:
		return "Processing"
	case domain.StatusCanceled:
		return "Canceled"
	case domain.StatusUnknown:
		if raw == "" {
			raw = "unknown"
		}
		return cases.Title(language.Und, cases.NoLower).String(raw)
	}
	return raw
}

var errorOverrides = []struct {
	phrase string
	text   string
}{
	{"declined", "Card declined"},
	{"insufficient funds", "Insufficient funds"},
	{"expired card", "Card expired"},
	{"incorrect cvc", "Incorrect CVC"},
	{"invalid number", "Invalid number"},
}

// ErrorText replaces well known decline messages; anything else is shown
// as the gateway wrote it.
func ErrorText(msg string) string {
	lower := strings.ToLower(msg)
	for _, o := range errorOverrides {
		if strings.Contains(lower, o.phrase) {
			return o.text
		}
	}
	return msg
}

var slugReplacer = strings.NewReplacer(" ", "-", "(", "", ")", "")

// StatusClass is the CSS slug of a status text.
func StatusClass(text string) string {
	return strings.ToLower(slugReplacer.Replace(text))
}
