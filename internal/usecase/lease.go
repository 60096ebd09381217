package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xavierca1/linkedin-outreach/internal/entity"
)

const defaultLeasePoll = 100 * time.Millisecond

func scheduleLeaseKey(accountID string) string {
	return "schedule:" + accountID
}

func dispatchLeaseKey(campaignID, accountID string) string {
	return "dispatch:" + campaignID + ":" + accountID
}

// LeaseManager hands out persisted leases with a bounded wait. It never
// blocks longer than Wait: callers that lose simply retry on the next tick.
type LeaseManager struct {
	Repo   entity.LeaseRepository
	Clock  Clock
	Wait   time.Duration
	Poll   time.Duration
	Logger *zap.Logger
}

func NewLeaseManager(repo entity.LeaseRepository, clock Clock, wait time.Duration, logger *zap.Logger) *LeaseManager {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LeaseManager{Repo: repo, Clock: clock, Wait: wait, Poll: defaultLeasePoll, Logger: logger}
}

// Lease is a held lease. Release is safe to call more than once.
type Lease struct {
	Key    string
	Holder string

	manager  *LeaseManager
	released bool
}

// Acquire takes key for ttl, polling until Wait elapses.
func (m *LeaseManager) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	holder := uuid.New().String()
	deadline := time.Now().Add(m.Wait)

	for {
		ok, err := m.Repo.TryAcquire(ctx, key, holder, m.Clock.Now(), ttl)
		if err != nil {
			return nil, &TechnicalError{Code: "LEASE_ERROR", Message: fmt.Sprintf("acquire lease %s", key), Err: err}
		}
		if ok {
			return &Lease{Key: key, Holder: holder, manager: m}, nil
		}
		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("%s: %w", key, ErrLeaseHeld)
		}

		timer := time.NewTimer(m.poll())
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (m *LeaseManager) poll() time.Duration {
	if m.Poll <= 0 {
		return defaultLeasePoll
	}
	return m.Poll
}

func (l *Lease) Release(ctx context.Context) {
	if l == nil || l.released {
		return
	}
	l.released = true
	if err := l.manager.Repo.Release(context.WithoutCancel(ctx), l.Key, l.Holder); err != nil {
		// the lease expires on its own; log and move on
		l.manager.Logger.Warn("lease release failed", zap.String("key", l.Key), zap.Error(err))
	}
}
