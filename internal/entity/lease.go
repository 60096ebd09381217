package entity

import (
	"context"
	"time"
)

// LeaseRepository persists time bounded exclusivity tokens so several
// process instances can coordinate.
type LeaseRepository interface {
	// TryAcquire takes key for holder when it is free or expired.
	TryAcquire(ctx context.Context, key, holder string, now time.Time, ttl time.Duration) (bool, error)
	// Release frees key only if holder still owns it.
	Release(ctx context.Context, key, holder string) error
}
