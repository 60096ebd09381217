package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/xavierca1/linkedin-outreach/internal/entity"
)

const (
	ActionResetQueuedToPending = "reset_queued_to_pending"
	ActionMarkQueuedFailed     = "mark_queued_failed"
	ActionResetFailedToPending = "reset_failed_to_pending"
)

// OperatorActionsUseCase holds the manual escape hatches. Each is a bulk
// conditional update on the campaign's prospects in the expected prior
// status; rows that moved in the meantime are left alone.
type OperatorActionsUseCase struct {
	Campaigns entity.CampaignRepository
	Prospects entity.ProspectRepository
	Metrics   Metrics
	Clock     Clock
	Logger    *zap.Logger
}

func NewOperatorActionsUseCase(
	campaigns entity.CampaignRepository,
	prospects entity.ProspectRepository,
	metrics Metrics,
	clock Clock,
	logger *zap.Logger,
) *OperatorActionsUseCase {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OperatorActionsUseCase{Campaigns: campaigns, Prospects: prospects, Metrics: metrics, Clock: clock, Logger: logger}
}

func (uc *OperatorActionsUseCase) ResetQueuedToPending(ctx context.Context, input OperatorActionInput) (*OperatorActionOutput, error) {
	return uc.run(ctx, input, ActionResetQueuedToPending, entity.StatusQueued, entity.StatusPending)
}

func (uc *OperatorActionsUseCase) MarkQueuedFailed(ctx context.Context, input OperatorActionInput) (*OperatorActionOutput, error) {
	return uc.run(ctx, input, ActionMarkQueuedFailed, entity.StatusQueued, entity.StatusFailed)
}

func (uc *OperatorActionsUseCase) ResetFailedToPending(ctx context.Context, input OperatorActionInput) (*OperatorActionOutput, error) {
	return uc.run(ctx, input, ActionResetFailedToPending, entity.StatusFailed, entity.StatusPending)
}

func (uc *OperatorActionsUseCase) run(ctx context.Context, input OperatorActionInput, action string, from, to entity.Status) (*OperatorActionOutput, error) {
	if input.WorkspaceID == "" || input.CampaignID == "" {
		return nil, &DomainError{Code: "VALIDATION_ERROR", Message: "workspace_id and campaign_id are required"}
	}
	if _, err := uc.Campaigns.FindByID(ctx, input.WorkspaceID, input.CampaignID); err != nil {
		return nil, campaignLookupError(err)
	}

	actor := input.Actor
	if actor == "" {
		actor = "operator"
	}
	reason := input.Reason
	if reason == "" {
		reason = action
	}

	ids, err := uc.Prospects.BulkTransition(ctx, entity.BulkTransition{
		WorkspaceID: input.WorkspaceID,
		CampaignID:  input.CampaignID,
		From:        from,
		To:          to,
		At:          uc.Clock.Now(),
		Actor:       actor,
		Reason:      reason,
	})
	if err != nil {
		return nil, &TechnicalError{Code: "DATABASE_ERROR", Message: action, Err: err}
	}
	if ids == nil {
		ids = []string{}
	}

	uc.Metrics.OperatorAction(action, len(ids))
	uc.Logger.Info("operator action applied",
		zap.String("action", action),
		zap.String("workspace_id", input.WorkspaceID),
		zap.String("campaign_id", input.CampaignID),
		zap.String("actor", actor),
		zap.Int("prospects", len(ids)))

	return &OperatorActionOutput{Action: action, From: from, To: to, ProspectIDs: ids}, nil
}
