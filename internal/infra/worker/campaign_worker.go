package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xavierca1/linkedin-outreach/internal/entity"
	"github.com/xavierca1/linkedin-outreach/internal/usecase"
)

type Scheduler interface {
	Execute(ctx context.Context, input usecase.ScheduleCampaignInput) (*usecase.ScheduleCampaignOutput, error)
}

type Dispatcher interface {
	Execute(ctx context.Context, input usecase.DispatchCampaignInput) (*usecase.ExecutionReceipt, error)
}

// CampaignWorker schedules and then dispatches every active campaign on each
// tick. Campaigns run concurrently up to Parallel; the account and dispatch
// leases keep concurrent work on one account serialized.
type CampaignWorker struct {
	Campaigns  entity.CampaignRepository
	Scheduler  Scheduler
	Dispatcher Dispatcher
	Interval   time.Duration
	Parallel   int
	Logger     *zap.Logger
}

func NewCampaignWorker(
	campaigns entity.CampaignRepository,
	scheduler Scheduler,
	dispatcher Dispatcher,
	interval time.Duration,
	parallel int,
	logger *zap.Logger,
) *CampaignWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	if parallel <= 0 {
		parallel = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CampaignWorker{
		Campaigns:  campaigns,
		Scheduler:  scheduler,
		Dispatcher: dispatcher,
		Interval:   interval,
		Parallel:   parallel,
		Logger:     logger,
	}
}

func (w *CampaignWorker) Start(ctx context.Context) {
	w.Logger.Info("campaign worker started", zap.Duration("interval", w.Interval), zap.Int("parallel", w.Parallel))

	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	w.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			w.Logger.Info("campaign worker stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce processes every active campaign once. Per-campaign failures are
// logged and never stop the pass.
func (w *CampaignWorker) RunOnce(ctx context.Context) {
	campaigns, err := w.Campaigns.ListActive(ctx)
	if err != nil {
		w.Logger.Error("list active campaigns", zap.Error(err))
		return
	}

	var g errgroup.Group
	g.SetLimit(w.Parallel)
	for _, c := range campaigns {
		if ctx.Err() != nil {
			break
		}
		c := c
		g.Go(func() error {
			w.runCampaign(ctx, c)
			return nil
		})
	}
	g.Wait()
}

func (w *CampaignWorker) runCampaign(ctx context.Context, c *entity.Campaign) {
	logger := w.Logger.With(zap.String("workspace_id", c.WorkspaceID), zap.String("campaign_id", c.ID))

	out, err := w.Scheduler.Execute(ctx, usecase.ScheduleCampaignInput{WorkspaceID: c.WorkspaceID, CampaignID: c.ID})
	if err != nil {
		w.logFailure(logger, "schedule", err)
	} else if out.Deferral != nil {
		logger.Debug("scheduling deferred", zap.Error(out.Deferral))
	}

	receipt, err := w.Dispatcher.Execute(ctx, usecase.DispatchCampaignInput{WorkspaceID: c.WorkspaceID, CampaignID: c.ID})
	if err != nil {
		w.logFailure(logger, "dispatch", err)
		return
	}
	if receipt != nil {
		logger.Debug("tick dispatched batch", zap.String("execution_id", receipt.ExecutionID), zap.Int("prospects", len(receipt.ProspectIDs)))
	}
}

func (w *CampaignWorker) logFailure(logger *zap.Logger, step string, err error) {
	var exhausted *usecase.DispatchExhaustedError
	switch {
	case errors.Is(err, context.Canceled):
	case usecase.IsRecoverable(err), usecase.IsDomainError(err):
		logger.Info(step+" skipped", zap.Error(err))
	case errors.As(err, &exhausted):
		logger.Warn(step+" exhausted retries", zap.Error(err))
	default:
		logger.Error(step+" failed", zap.Error(err))
	}
}
