package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xavierca1/linkedin-outreach/internal/entity"
	"github.com/xavierca1/linkedin-outreach/internal/infra/integration/automation"
)

type DispatchSettings struct {
	BatchSize int
	Timeout   time.Duration
	Retry     RetryPolicy
	LeaseTTL  time.Duration
}

type DispatchCampaignUseCase struct {
	Campaigns entity.CampaignRepository
	Prospects entity.ProspectRepository
	Pool      *AccountPool
	Leases    *LeaseManager
	Engine    AutomationEngine
	Notifier  OperatorNotifier
	Metrics   Metrics
	Clock     Clock
	Settings  DispatchSettings
	Logger    *zap.Logger
}

func NewDispatchCampaignUseCase(
	campaigns entity.CampaignRepository,
	prospects entity.ProspectRepository,
	pool *AccountPool,
	leases *LeaseManager,
	engine AutomationEngine,
	notifier OperatorNotifier,
	metrics Metrics,
	clock Clock,
	settings DispatchSettings,
	logger *zap.Logger,
) *DispatchCampaignUseCase {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 5 * time.Second
	}
	if settings.LeaseTTL < settings.Timeout {
		settings.LeaseTTL = 2 * settings.Timeout
	}
	return &DispatchCampaignUseCase{
		Campaigns: campaigns,
		Prospects: prospects,
		Pool:      pool,
		Leases:    leases,
		Engine:    engine,
		Notifier:  notifier,
		Metrics:   metrics,
		Clock:     clock,
		Settings:  settings,
		Logger:    logger,
	}
}

// Execute posts the campaign's due prospects to the automation engine as one
// batch. It returns a nil receipt when nothing is due. Prospects stay queued
// after a successful post; the reconciler moves them on.
func (uc *DispatchCampaignUseCase) Execute(ctx context.Context, input DispatchCampaignInput) (*ExecutionReceipt, error) {
	campaign, err := loadCampaign(ctx, uc.Campaigns, input.WorkspaceID, input.CampaignID)
	if err != nil {
		return nil, err
	}

	account, err := uc.Pool.ForCampaign(ctx, campaign)
	if err != nil {
		return nil, err
	}

	lease, err := uc.Leases.Acquire(ctx, dispatchLeaseKey(campaign.ID, account.ID), uc.Settings.LeaseTTL)
	if err != nil {
		if errors.Is(err, ErrLeaseHeld) {
			uc.Metrics.LeaseContended("dispatch")
		}
		return nil, err
	}
	defer lease.Release(ctx)

	logger := uc.Logger.With(
		zap.String("workspace_id", campaign.WorkspaceID),
		zap.String("campaign_id", campaign.ID),
		zap.String("account_id", account.ID))

	now := uc.Clock.Now()
	due, err := uc.Prospects.ListDue(ctx, campaign.ID, now, uc.Settings.BatchSize)
	if err != nil {
		return nil, &TechnicalError{Code: "DATABASE_ERROR", Message: "list due prospects", Err: err}
	}
	if len(due) == 0 {
		return nil, nil
	}

	req := buildDispatchRequest(campaign, account, due)

	callCtx, cancel := context.WithTimeout(ctx, uc.Settings.Timeout)
	resp, err := uc.Engine.Dispatch(callCtx, req)
	cancel()
	if err != nil {
		return nil, uc.handleTransportFailure(ctx, logger, campaign, account, due, now, err)
	}

	executionID := ""
	if resp != nil {
		executionID = resp.ExecutionID
	}
	if executionID == "" {
		executionID = uuid.New().String()
	}

	ids := prospectIDs(due)
	marked, err := uc.Prospects.MarkDispatched(ctx, ids, executionID, now)
	if err != nil {
		logger.Error("batch accepted but dispatch marker not persisted",
			zap.String("execution_id", executionID), zap.Error(err))
		uc.failUnmarked(ctx, logger, campaign, due, executionID, now, err)
		return nil, &TechnicalError{Code: "DATABASE_ERROR", Message: "mark prospects dispatched", Err: err}
	}
	if marked != len(ids) {
		logger.Warn("some prospects left queued during dispatch",
			zap.Int("batch", len(ids)), zap.Int("marked", marked))
	}

	uc.Metrics.DispatchBatch("accepted", len(ids))
	logger.Info("batch dispatched",
		zap.String("execution_id", executionID),
		zap.Int("prospects", len(ids)))

	return &ExecutionReceipt{
		ExecutionID:  executionID,
		WorkspaceID:  campaign.WorkspaceID,
		CampaignID:   campaign.ID,
		AccountID:    account.ID,
		ProspectIDs:  ids,
		DispatchedAt: now,
	}, nil
}

// handleTransportFailure pushes every prospect of the batch back by its
// backoff, or fails it once the retry budget is spent.
func (uc *DispatchCampaignUseCase) handleTransportFailure(
	ctx context.Context,
	logger *zap.Logger,
	campaign *entity.Campaign,
	account *entity.Account,
	due []*entity.Prospect,
	now time.Time,
	cause error,
) error {
	transport := &DispatchTransportError{CampaignID: campaign.ID, AccountID: account.ID, Prospects: len(due), Err: cause}
	logger.Warn("dispatch failed", zap.Error(cause))

	var (
		exhausted   []string
		maxAttempts int
	)
	for _, p := range due {
		attempts := p.DispatchAttempts + 1
		if attempts > maxAttempts {
			maxAttempts = attempts
		}

		failure := entity.DispatchFailure{
			ProspectID:    p.ID,
			Attempts:      attempts,
			NextAttemptAt: now.Add(uc.Settings.Retry.Backoff(attempts)),
			Reason:        cause.Error(),
		}
		if err := uc.Prospects.RecordDispatchFailure(ctx, failure); err != nil {
			if errors.Is(err, entity.ErrConflict) {
				continue
			}
			return &TechnicalError{Code: "DATABASE_ERROR", Message: "record dispatch failure", Err: err}
		}

		if !uc.Settings.Retry.Exhausted(attempts) {
			continue
		}

		err := uc.Prospects.Transition(ctx, entity.Transition{
			ProspectID: p.ID,
			From:       entity.StatusQueued,
			To:         entity.StatusFailed,
			At:         now,
			Actor:      "dispatcher",
			Reason:     fmt.Sprintf("dispatch exhausted after %d attempts: %v", attempts, cause),
		})
		if errors.Is(err, entity.ErrConflict) {
			continue
		}
		if err != nil {
			return &TechnicalError{Code: "DATABASE_ERROR", Message: "fail exhausted prospect", Err: err}
		}
		exhausted = append(exhausted, p.ID)
	}

	if len(exhausted) == 0 {
		uc.Metrics.DispatchBatch("transport_error", len(due))
		return transport
	}

	uc.Metrics.DispatchBatch("exhausted", len(exhausted))
	logger.Error("dispatch retries exhausted, prospects failed",
		zap.Strings("prospect_ids", exhausted),
		zap.Int("attempts", maxAttempts))

	exhaustedErr := &DispatchExhaustedError{
		CampaignID:  campaign.ID,
		AccountID:   account.ID,
		ProspectIDs: exhausted,
		Attempts:    maxAttempts,
		Err:         transport,
	}
	if err := uc.Notifier.Alert(ctx, OperatorAlert{
		Kind:        AlertDispatchExhausted,
		WorkspaceID: campaign.WorkspaceID,
		CampaignID:  campaign.ID,
		Subject:     fmt.Sprintf("Campaign %s: %d prospects failed to dispatch", campaign.Name, len(exhausted)),
		Detail:      exhaustedErr.Error(),
		ProspectIDs: exhausted,
	}); err != nil {
		logger.Warn("operator alert failed", zap.Error(err))
	}
	return exhaustedErr
}

// failUnmarked takes an accepted batch out of the due list when its marker
// could not be written. The engine already has these prospects; leaving them
// queued would post them again on the next pass.
func (uc *DispatchCampaignUseCase) failUnmarked(
	ctx context.Context,
	logger *zap.Logger,
	campaign *entity.Campaign,
	due []*entity.Prospect,
	executionID string,
	now time.Time,
	cause error,
) {
	reason := fmt.Sprintf("dispatch accepted (execution %s), marker not persisted: %v", executionID, cause)

	var failed []string
	for _, p := range due {
		err := uc.Prospects.Transition(ctx, entity.Transition{
			ProspectID: p.ID,
			From:       entity.StatusQueued,
			To:         entity.StatusFailed,
			At:         now,
			Actor:      "dispatcher",
			Reason:     reason,
		})
		if errors.Is(err, entity.ErrConflict) {
			continue
		}
		if err != nil {
			logger.Error("could not fail unmarked prospect",
				zap.String("prospect_id", p.ID), zap.Error(err))
			continue
		}
		failed = append(failed, p.ID)
	}
	if len(failed) == 0 {
		return
	}

	uc.Metrics.DispatchBatch("unmarked", len(failed))
	if err := uc.Notifier.Alert(ctx, OperatorAlert{
		Kind:        AlertDispatchUnmarked,
		WorkspaceID: campaign.WorkspaceID,
		CampaignID:  campaign.ID,
		Subject:     fmt.Sprintf("Campaign %s: %d prospects sent but not recorded", campaign.Name, len(failed)),
		Detail:      reason,
		ProspectIDs: failed,
	}); err != nil {
		logger.Warn("operator alert failed", zap.Error(err))
	}
}

func buildDispatchRequest(c *entity.Campaign, a *entity.Account, due []*entity.Prospect) automation.DispatchRequest {
	var first time.Time
	for _, p := range due {
		if p.ScheduledSendAt != nil && (first.IsZero() || p.ScheduledSendAt.Before(first)) {
			first = *p.ScheduledSendAt
		}
	}

	prospects := make([]automation.Prospect, 0, len(due))
	for _, p := range due {
		offset := 0
		if p.ScheduledSendAt != nil {
			offset = int(p.ScheduledSendAt.Sub(first) / time.Minute)
		}
		prospects = append(prospects, automation.Prospect{
			ID:               p.ID,
			FirstName:        p.FirstName,
			LastName:         p.LastName,
			ProfileURL:       p.ProfileID,
			SendDelayMinutes: offset,
		})
	}

	return automation.DispatchRequest{
		WorkspaceID:       c.WorkspaceID,
		CampaignID:        c.ID,
		AccountID:         a.ID,
		ProviderAccountID: a.ProviderAccountID,
		Channel:           c.Channel,
		CampaignType:      c.Type,
		Prospects:         prospects,
		Messages: automation.Messages{
			ConnectionRequest: c.Templates.ConnectionRequest,
			FollowUps:         c.Templates.FollowUps,
		},
	}
}

func prospectIDs(ps []*entity.Prospect) []string {
	ids := make([]string, 0, len(ps))
	for _, p := range ps {
		ids = append(ids, p.ID)
	}
	return ids
}
