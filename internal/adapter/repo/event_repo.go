package repo

import (
	"context"
	"fmt"

	"doacao/internal/domain"
	"doacao/internal/infra"
	"doacao/internal/sqlinline"
)

// GatewayEventRepositoryPG is the Postgres idempotency ledger.
type GatewayEventRepositoryPG struct {
	db infra.SQLExecutor
}

func NewGatewayEventRepository(db infra.SQLExecutor) *GatewayEventRepositoryPG {
	return &GatewayEventRepositoryPG{db: db}
}

func (r *GatewayEventRepositoryPG) Exists(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, sqlinline.QGatewayEventExists, eventID).Scan(&exists); err != nil {
		return false, fmt.Errorf("%w: lookup event: %v", domain.ErrPersistence, err)
	}
	return exists, nil
}

// Insert stores rec once. A concurrent writer that loses the race on
// event_id gets (false, nil), the same as a plain duplicate.
func (r *GatewayEventRepositoryPG) Insert(ctx context.Context, rec domain.GatewayEventRecord) (bool, error) {
	var id int64
	err := r.db.QueryRow(ctx, sqlinline.QInsertGatewayEvent,
		rec.EventID,
		rec.EventType,
		string(rec.RawPayload),
		rec.ProcessedAt,
	).Scan(&id)
	switch {
	case err == nil:
		return true, nil
	case infra.IsNoRows(err), infra.IsUniqueViolation(err):
		return false, nil
	default:
		return false, fmt.Errorf("%w: insert event: %v", domain.ErrPersistence, err)
	}
}

// ListRecent returns the newest stored events of the given types.
func (r *GatewayEventRepositoryPG) ListRecent(ctx context.Context, eventTypes []string, limit int) ([]domain.GatewayEventRecord, error) {
	rows, err := r.db.Query(ctx, sqlinline.QListGatewayEvents, eventTypes, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.GatewayEventRecord
	for rows.Next() {
		var (
			rec     domain.GatewayEventRecord
			payload string
		)
		if err := rows.Scan(&rec.EventID, &rec.EventType, &payload, &rec.ProcessedAt); err != nil {
			return nil, err
		}
		rec.RawPayload = []byte(payload)
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

var _ domain.GatewayEventRepository = (*GatewayEventRepositoryPG)(nil)
