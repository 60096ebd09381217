package database

import (
	"context"
	"database/sql"
	"time"
)

type LeaseRepository struct {
	DB *sql.DB
}

// TryAcquire inserts the lease or takes it over when it expired or already
// belongs to holder. A row comes back only when holder ends up owning it.
func (r *LeaseRepository) TryAcquire(ctx context.Context, key, holder string, now time.Time, ttl time.Duration) (bool, error) {
	query := `
		INSERT INTO leases (key, holder, expires_at)
		VALUES ($1, $2, $4)
		ON CONFLICT (key) DO UPDATE SET
			holder = EXCLUDED.holder,
			expires_at = EXCLUDED.expires_at
		WHERE leases.expires_at <= $3 OR leases.holder = EXCLUDED.holder
		RETURNING holder
	`
	var got string
	err := r.DB.QueryRowContext(ctx, query, key, holder, now, now.Add(ttl)).Scan(&got)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return got == holder, nil
}

func (r *LeaseRepository) Release(ctx context.Context, key, holder string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM leases WHERE key = $1 AND holder = $2`, key, holder)
	return err
}
