package domain

import "time"

// EventKind is the closed set of gateway notifications the engine reacts
// to. Anything else maps to EventUnknown and is stored but not dispatched.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventPaymentSucceeded
	EventPaymentFailed
	EventPaymentRequiresAction
	EventInvoicePaymentSucceeded
	EventInvoicePaymentFailed
	EventSubscriptionDeleted
)

var eventKindTypes = map[EventKind]string{
	EventPaymentSucceeded:        "payment_intent.succeeded",
	EventPaymentFailed:           "payment_intent.payment_failed",
	EventPaymentRequiresAction:   "payment_intent.requires_action",
	EventInvoicePaymentSucceeded: "invoice.payment_succeeded",
	EventInvoicePaymentFailed:    "invoice.payment_failed",
	EventSubscriptionDeleted:     "customer.subscription.deleted",
}

// ParseEventKind maps a gateway event type string onto an EventKind.
func ParseEventKind(raw string) EventKind {
	for kind, name := range eventKindTypes {
		if name == raw {
			return kind
		}
	}
	return EventUnknown
}

// String returns the gateway event type, or "unknown".
func (k EventKind) String() string {
	if name, ok := eventKindTypes[k]; ok {
		return name
	}
	return "unknown"
}

// AggregatedEventTypes are the stored event types the status view reads.
func AggregatedEventTypes() []string {
	return []string{
		EventPaymentSucceeded.String(),
		EventInvoicePaymentSucceeded.String(),
		EventPaymentFailed.String(),
		EventPaymentRequiresAction.String(),
	}
}

// GatewayEventRecord is one row of the idempotency ledger. EventType keeps
// the raw gateway string so unknown types survive for audit.
type GatewayEventRecord struct {
	EventID     string
	EventType   string
	RawPayload  []byte
	ProcessedAt time.Time
}

func (r GatewayEventRecord) Kind() EventKind {
	return ParseEventKind(r.EventType)
}
