package domain

import (
	"context"
	"time"
)

// RecurringBoletoRepository persists the recurring boleto ledger. The two
// mark methods each write only their own columns.
type RecurringBoletoRepository interface {
	Create(ctx context.Context, rec *RecurringBoletoRecord) error
	ListRecent(ctx context.Context, limit int) ([]RecurringBoletoRecord, error)
	ListDue(ctx context.Context, now time.Time) ([]RecurringBoletoRecord, error)
	FindActiveByPaymentIntent(ctx context.Context, paymentIntentID string) (*RecurringBoletoRecord, error)
	MarkIssued(ctx context.Context, id int64, paymentIntentID string, nextDue time.Time) error
	MarkPaid(ctx context.Context, id int64, paidAt, nextDue time.Time) error
}

// GatewayEventRepository is the idempotency ledger.
type GatewayEventRepository interface {
	Exists(ctx context.Context, eventID string) (bool, error)
	// Insert reports false when event_id was already stored.
	Insert(ctx context.Context, rec GatewayEventRecord) (bool, error)
	ListRecent(ctx context.Context, eventTypes []string, limit int) ([]GatewayEventRecord, error)
}

// LeaseRepository grants named, expiring mutual exclusion.
type LeaseRepository interface {
	Acquire(ctx context.Context, name, holder string, now time.Time, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name, holder string) error
}
