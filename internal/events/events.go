// Package events publishes internal notifications about payment activity
// for collaborators outside the engine.
package events

import (
	"context"
	"time"

	"doacao/internal/infra"
)

// Routing keys.
const (
	KeyPaymentSucceeded        = "payment.succeeded"
	KeyInvoicePaymentSucceeded = "invoice.payment_succeeded"
	KeyInvoicePaymentFailed    = "invoice.payment_failed"
	KeySubscriptionDeleted     = "subscription.deleted"
	KeyBoletoRenewed           = "boleto.renewed"
)

// Message is the JSON body of every published event.
type Message struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	ObjectID   string    `json:"object_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, routingKey string, msg Message) error
	Close() error
}

// LogPublisher writes events to the log. It is used when no broker is
// configured.
type LogPublisher struct {
	logger *infra.Logger
}

func NewLogPublisher(logger *infra.Logger) *LogPublisher {
	return &LogPublisher{logger: infra.OrDiscard(logger)}
}

func (p *LogPublisher) Publish(_ context.Context, routingKey string, msg Message) error {
	p.logger.Info().
		Str("routing_key", routingKey).
		Str("event_id", msg.EventID).
		Str("event_type", msg.EventType).
		Str("object_id", msg.ObjectID).
		Msg("events: published")
	return nil
}

func (p *LogPublisher) Close() error { return nil }
