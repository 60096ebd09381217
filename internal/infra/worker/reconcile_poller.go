package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/xavierca1/linkedin-outreach/internal/infra/integration/automation"
)

type OutcomePoller interface {
	Poll(ctx context.Context, limit int) ([]string, error)
}

// ReconcilePoller pulls outcomes for dispatched prospects when the engine
// exposes a status endpoint. It exits when polling is not configured.
type ReconcilePoller struct {
	Reconciler OutcomePoller
	Interval   time.Duration
	Batch      int
	Logger     *zap.Logger
}

func NewReconcilePoller(reconciler OutcomePoller, interval time.Duration, batch int, logger *zap.Logger) *ReconcilePoller {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconcilePoller{Reconciler: reconciler, Interval: interval, Batch: batch, Logger: logger}
}

func (p *ReconcilePoller) Start(ctx context.Context) {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for {
		if !p.poll(ctx) {
			p.Logger.Info("outcome polling disabled, poller exiting")
			return
		}
		select {
		case <-ctx.Done():
			p.Logger.Info("reconcile poller stopped")
			return
		case <-ticker.C:
		}
	}
}

// poll reports whether polling should continue.
func (p *ReconcilePoller) poll(ctx context.Context) bool {
	updated, err := p.Reconciler.Poll(ctx, p.Batch)
	switch {
	case errors.Is(err, automation.ErrPollingDisabled):
		return false
	case errors.Is(err, context.Canceled):
	case err != nil:
		p.Logger.Error("outcome poll failed", zap.Error(err))
	case len(updated) > 0:
		p.Logger.Info("outcomes reconciled by poll", zap.Int("updated", len(updated)))
	}
	return true
}
