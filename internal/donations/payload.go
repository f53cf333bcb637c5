package donations

import (
	"encoding/json"
	"slices"
	"strings"
	"time"

	"doacao/internal/domain"
)

// eventEnvelope is the stored notification body.
type eventEnvelope struct {
	Livemode *bool `json:"livemode"`
	Data     struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// objectFields covers both payment intent and invoice objects.
type objectFields struct {
	ID                 string            `json:"id"`
	Livemode           *bool             `json:"livemode"`
	Amount             int64             `json:"amount"`
	AmountPaid         int64             `json:"amount_paid"`
	Currency           string            `json:"currency"`
	Created            int64             `json:"created"`
	Metadata           map[string]string `json:"metadata"`
	PaymentMethodTypes []string          `json:"payment_method_types"`
	ReceiptEmail       string            `json:"receipt_email"`
	CustomerEmail      string            `json:"customer_email"`
	Subscription       json.RawMessage   `json:"subscription"`
	PaymentIntent      json.RawMessage   `json:"payment_intent"`
}

type parsedEvent struct {
	liveness domain.Liveness
	object   objectFields
}

func parseEvent(raw []byte) (parsedEvent, bool) {
	var env eventEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return parsedEvent{}, false
	}
	if len(env.Data.Object) == 0 || string(env.Data.Object) == "null" {
		return parsedEvent{}, false
	}
	var obj objectFields
	if err := json.Unmarshal(env.Data.Object, &obj); err != nil {
		return parsedEvent{}, false
	}
	live := env.Livemode
	if live == nil {
		live = obj.Livemode
	}
	return parsedEvent{liveness: domain.LivenessOf(live), object: obj}, true
}

func (o objectFields) isBoleto() bool {
	return slices.Contains(o.PaymentMethodTypes, "boleto")
}

func (o objectFields) isRecurring() bool {
	return o.Metadata["recurring"] == "true"
}

func (o objectFields) currency() string {
	if o.Currency == "" {
		return "USD"
	}
	return strings.ToUpper(o.Currency)
}

func (o objectFields) createdAt(fallback time.Time) time.Time {
	if o.Created > 0 {
		return time.Unix(o.Created, 0).UTC()
	}
	return fallback
}

// refID reads a reference that is either an id string or an expanded
// object with an id.
func refID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return strings.TrimSpace(id)
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return strings.TrimSpace(obj.ID)
	}
	return ""
}
