package repo

import (
	"context"
	"time"

	"doacao/internal/domain"
	"doacao/internal/infra"
	"doacao/internal/sqlinline"
)

// LeaseRepositoryPG hands out expiring named leases from scheduler_leases.
type LeaseRepositoryPG struct {
	db infra.SQLExecutor
}

func NewLeaseRepository(db infra.SQLExecutor) *LeaseRepositoryPG {
	return &LeaseRepositoryPG{db: db}
}

// Acquire reports false when another holder owns an unexpired lease.
func (r *LeaseRepositoryPG) Acquire(ctx context.Context, name, holder string, now time.Time, ttl time.Duration) (bool, error) {
	var got string
	err := r.db.QueryRow(ctx, sqlinline.QAcquireLease, name, holder, now.Add(ttl), now).Scan(&got)
	if err != nil {
		if infra.IsNoRows(err) {
			return false, nil
		}
		return false, err
	}
	return got == holder, nil
}

func (r *LeaseRepositoryPG) Release(ctx context.Context, name, holder string) error {
	_, err := r.db.Exec(ctx, sqlinline.QReleaseLease, name, holder)
	return err
}

var _ domain.LeaseRepository = (*LeaseRepositoryPG)(nil)
