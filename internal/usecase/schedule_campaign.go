package usecase

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/xavierca1/linkedin-outreach/internal/entity"
)

// ScheduleSettings are the scheduler knobs that come from configuration.
type ScheduleSettings struct {
	Window       SendWindow
	DefaultDelay time.Duration
	// Horizon bounds how far ahead slots are handed out; zero disables it.
	Horizon  time.Duration
	MaxBatch int
	LeaseTTL time.Duration
}

type ScheduleCampaignUseCase struct {
	Campaigns entity.CampaignRepository
	Prospects entity.ProspectRepository
	Accounts  entity.AccountRepository
	Pool      *AccountPool
	Leases    *LeaseManager
	Metrics   Metrics
	Clock     Clock
	Settings  ScheduleSettings
	Logger    *zap.Logger
}

func NewScheduleCampaignUseCase(
	campaigns entity.CampaignRepository,
	prospects entity.ProspectRepository,
	accounts entity.AccountRepository,
	pool *AccountPool,
	leases *LeaseManager,
	metrics Metrics,
	clock Clock,
	settings ScheduleSettings,
	logger *zap.Logger,
) *ScheduleCampaignUseCase {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleCampaignUseCase{
		Campaigns: campaigns,
		Prospects: prospects,
		Accounts:  accounts,
		Pool:      pool,
		Leases:    leases,
		Metrics:   metrics,
		Clock:     clock,
		Settings:  settings,
		Logger:    logger,
	}
}

// Execute hands the campaign's pending prospects the next free slots of its
// account. The account watermark is shared by every campaign on the account,
// so the account lease is held while slots are planned and written.
func (uc *ScheduleCampaignUseCase) Execute(ctx context.Context, input ScheduleCampaignInput) (*ScheduleCampaignOutput, error) {
	campaign, err := loadCampaign(ctx, uc.Campaigns, input.WorkspaceID, input.CampaignID)
	if err != nil {
		return nil, err
	}

	account, err := uc.Pool.ForCampaign(ctx, campaign)
	if err != nil {
		return nil, err
	}

	logger := uc.Logger.With(
		zap.String("workspace_id", campaign.WorkspaceID),
		zap.String("campaign_id", campaign.ID),
		zap.String("account_id", account.ID))

	lease, err := uc.Leases.Acquire(ctx, scheduleLeaseKey(account.ID), uc.Settings.LeaseTTL)
	if err != nil {
		if errors.Is(err, ErrLeaseHeld) {
			uc.Metrics.LeaseContended("schedule")
		}
		return nil, err
	}
	defer lease.Release(ctx)

	out := &ScheduleCampaignOutput{CampaignID: campaign.ID, AccountID: account.ID, Slots: []ScheduledSlot{}}

	pending, err := uc.Prospects.ListByCampaignStatus(ctx, campaign.ID, entity.StatusPending, uc.Settings.MaxBatch)
	if err != nil {
		return nil, &TechnicalError{Code: "DATABASE_ERROR", Message: "list pending prospects", Err: err}
	}
	if len(pending) == 0 {
		return out, nil
	}

	wm, err := uc.Accounts.GetWatermark(ctx, account.ID)
	if err != nil {
		return nil, &TechnicalError{Code: "DATABASE_ERROR", Message: "load account watermark", Err: err}
	}

	now := uc.Clock.Now()
	planner := newSlotPlanner(uc.Settings.Window, uc.delayFor(account), account.DailyLimit, wm)

	type plannedSlot struct {
		prospect *entity.Prospect
		at       time.Time
	}
	planned := make([]plannedSlot, 0, len(pending))
	for i, p := range pending {
		before := *planner
		slot := planner.next(now)
		if uc.Settings.Horizon > 0 && slot.After(now.Add(uc.Settings.Horizon)) {
			*planner = before
			out.Deferral = &RateLimitDeferral{AccountID: account.ID, Deferred: len(pending) - i, NextSlot: slot}
			break
		}
		planned = append(planned, plannedSlot{prospect: p, at: slot})
	}

	if len(planned) == 0 {
		logger.Info("scheduling deferred", zap.Error(out.Deferral))
		return out, nil
	}

	// the watermark goes first: a crash after this point leaves gaps, never overlaps
	if err := uc.Accounts.SaveWatermark(ctx, account.ID, planner.watermark()); err != nil {
		return nil, &TechnicalError{Code: "DATABASE_ERROR", Message: "save account watermark", Err: err}
	}

	for _, ps := range planned {
		err := uc.queue(ctx, ps.prospect, ps.at, now)
		if errors.Is(err, entity.ErrConflict) {
			out.Conflicts++
			logger.Debug("prospect left pending concurrently", zap.String("prospect_id", ps.prospect.ID))
			continue
		}
		if err != nil {
			uc.Metrics.ProspectsScheduled(len(out.Slots))
			return nil, &TechnicalError{Code: "DATABASE_ERROR", Message: "queue prospect " + ps.prospect.ID, Err: err}
		}
		out.Slots = append(out.Slots, ScheduledSlot{ProspectID: ps.prospect.ID, ScheduledAt: ps.at})
	}

	uc.Metrics.ProspectsScheduled(len(out.Slots))
	logger.Info("campaign scheduled",
		zap.Int("scheduled", len(out.Slots)),
		zap.Int("conflicts", out.Conflicts),
		zap.Bool("deferred", out.Deferral != nil))

	return out, nil
}

// queue writes the slot and only then flips the status, so a queued prospect
// always has a schedule.
func (uc *ScheduleCampaignUseCase) queue(ctx context.Context, p *entity.Prospect, at, now time.Time) error {
	txn := NewTransaction(uc.Logger)
	txn.AddStep("assign_schedule",
		func(ctx context.Context) error {
			return uc.Prospects.AssignSchedule(ctx, p.ID, at)
		},
		func(ctx context.Context) error {
			return uc.Prospects.ClearSchedule(ctx, p.ID)
		})
	txn.AddStep("mark_queued",
		func(ctx context.Context) error {
			return uc.Prospects.Transition(ctx, entity.Transition{
				ProspectID: p.ID,
				From:       entity.StatusPending,
				To:         entity.StatusQueued,
				At:         now,
				Actor:      "scheduler",
			})
		}, nil)
	return txn.Execute(ctx)
}

func (uc *ScheduleCampaignUseCase) delayFor(a *entity.Account) time.Duration {
	if a.SendDelay > 0 {
		return a.SendDelay
	}
	return uc.Settings.DefaultDelay
}

func loadCampaign(ctx context.Context, repo entity.CampaignRepository, workspaceID, campaignID string) (*entity.Campaign, error) {
	if workspaceID == "" || campaignID == "" {
		return nil, &DomainError{Code: "VALIDATION_ERROR", Message: "workspace_id and campaign_id are required"}
	}
	campaign, err := repo.FindByID(ctx, workspaceID, campaignID)
	if err != nil {
		return nil, campaignLookupError(err)
	}
	if err := campaign.Ready(); err != nil {
		return nil, &DomainError{Code: "CAMPAIGN_NOT_READY", Message: err.Error()}
	}
	return campaign, nil
}

func campaignLookupError(err error) error {
	if errors.Is(err, entity.ErrNotFound) {
		return &DomainError{Code: "CAMPAIGN_NOT_FOUND", Message: "campaign not found"}
	}
	return &TechnicalError{Code: "DATABASE_ERROR", Message: "load campaign", Err: err}
}
