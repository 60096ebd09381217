package memstore

import (
	"context"
	"time"
)

type LeaseRepository struct {
	s *Store
}

func (r *LeaseRepository) TryAcquire(_ context.Context, key, holder string, now time.Time, ttl time.Duration) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.leases[key]
	if ok && current.holder != holder && current.expiresAt.After(now) {
		return false, nil
	}
	r.s.leases[key] = lease{holder: holder, expiresAt: now.Add(ttl)}
	return true, nil
}

func (r *LeaseRepository) Release(_ context.Context, key, holder string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if current, ok := r.s.leases[key]; ok && current.holder == holder {
		delete(r.s.leases, key)
	}
	return nil
}
