package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"doacao/internal/domain"
	"doacao/internal/infra"
	"doacao/internal/sqlinline"
)

// RecurringBoletoRepositoryPG implements domain.RecurringBoletoRepository.
type RecurringBoletoRepositoryPG struct {
	db infra.SQLExecutor
}

func NewRecurringBoletoRepository(db infra.SQLExecutor) *RecurringBoletoRepositoryPG {
	return &RecurringBoletoRepositoryPG{db: db}
}

// Create inserts a new active record. NextDueAt stays null until the first
// payment is confirmed.
func (r *RecurringBoletoRepositoryPG) Create(ctx context.Context, rec *domain.RecurringBoletoRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	row := r.db.QueryRow(ctx, sqlinline.QInsertRecurringBoleto,
		rec.DonorEmail,
		rec.AmountMinor,
		string(rec.Frequency),
		rec.PaymentIntentID,
	)
	if err := row.Scan(&rec.ID, &rec.CreatedAt); err != nil {
		return fmt.Errorf("%w: insert recurring boleto: %v", domain.ErrPersistence, err)
	}
	rec.Active = true
	return nil
}

// ListRecent returns the newest records first.
func (r *RecurringBoletoRepositoryPG) ListRecent(ctx context.Context, limit int) ([]domain.RecurringBoletoRecord, error) {
	rows, err := r.db.Query(ctx, sqlinline.QListRecurringBoletos, limit)
	if err != nil {
		return nil, err
	}
	return collectBoletos(rows)
}

// ListDue returns active records due at or before now, oldest due first.
func (r *RecurringBoletoRepositoryPG) ListDue(ctx context.Context, now time.Time) ([]domain.RecurringBoletoRecord, error) {
	rows, err := r.db.Query(ctx, sqlinline.QSelectDueBoletos, now)
	if err != nil {
		return nil, err
	}
	return collectBoletos(rows)
}

func (r *RecurringBoletoRepositoryPG) FindActiveByPaymentIntent(ctx context.Context, paymentIntentID string) (*domain.RecurringBoletoRecord, error) {
	row := r.db.QueryRow(ctx, sqlinline.QSelectActiveBoletoByIntent, paymentIntentID)
	rec, err := scanBoleto(row)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

func (r *RecurringBoletoRepositoryPG) MarkIssued(ctx context.Context, id int64, paymentIntentID string, nextDue time.Time) error {
	return r.update(ctx, sqlinline.QUpdateBoletoIssued, id, paymentIntentID, nextDue)
}

func (r *RecurringBoletoRepositoryPG) MarkPaid(ctx context.Context, id int64, paidAt, nextDue time.Time) error {
	return r.update(ctx, sqlinline.QUpdateBoletoPaid, id, paidAt, nextDue)
}

func (r *RecurringBoletoRepositoryPG) update(ctx context.Context, query string, args ...any) error {
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func collectBoletos(rows pgx.Rows) ([]domain.RecurringBoletoRecord, error) {
	defer rows.Close()

	var items []domain.RecurringBoletoRecord
	for rows.Next() {
		rec, err := scanBoleto(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func scanBoleto(row pgx.Row) (*domain.RecurringBoletoRecord, error) {
	var (
		rec       domain.RecurringBoletoRecord
		frequency string
	)
	if err := row.Scan(
		&rec.ID,
		&rec.DonorEmail,
		&rec.AmountMinor,
		&frequency,
		&rec.PaymentIntentID,
		&rec.LastPaidAt,
		&rec.NextDueAt,
		&rec.CreatedAt,
		&rec.Active,
	); err != nil {
		return nil, err
	}
	rec.Frequency = domain.Frequency(frequency)
	return &rec, nil
}

var _ domain.RecurringBoletoRepository = (*RecurringBoletoRepositoryPG)(nil)
