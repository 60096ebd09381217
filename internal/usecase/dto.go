package usecase

import (
	"time"

	"github.com/xavierca1/linkedin-outreach/internal/entity"
)

type PromoteSessionInput struct {
	WorkspaceID string `json:"workspace_id"`
	SessionID   string `json:"session_id"`
}

type RejectedRow struct {
	StagedID string            `json:"staged_id"`
	Errors   []ValidationError `json:"errors"`
}

type PromoteSessionOutput struct {
	SessionID       string        `json:"session_id"`
	Declared        int           `json:"declared"`
	Staged          int           `json:"staged"`
	Discrepancy     int           `json:"discrepancy"`
	Promoted        int           `json:"promoted"`
	AlreadyPromoted int           `json:"already_promoted"`
	Declined        int           `json:"declined"`
	MissingProfile  int           `json:"missing_profile"`
	Rejected        []RejectedRow `json:"rejected,omitempty"`
}

type ScheduleCampaignInput struct {
	WorkspaceID string `json:"workspace_id"`
	CampaignID  string `json:"campaign_id"`
}

type ScheduledSlot struct {
	ProspectID  string    `json:"prospect_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

type ScheduleCampaignOutput struct {
	CampaignID string             `json:"campaign_id"`
	AccountID  string             `json:"account_id"`
	Slots      []ScheduledSlot    `json:"slots"`
	Conflicts  int                `json:"conflicts"`
	Deferral   *RateLimitDeferral `json:"-"`
}

type DispatchCampaignInput struct {
	WorkspaceID string `json:"workspace_id"`
	CampaignID  string `json:"campaign_id"`
}

// ExecutionReceipt describes one batch accepted by the automation engine.
type ExecutionReceipt struct {
	ExecutionID  string    `json:"execution_id"`
	WorkspaceID  string    `json:"workspace_id"`
	CampaignID   string    `json:"campaign_id"`
	AccountID    string    `json:"account_id"`
	ProspectIDs  []string  `json:"prospect_ids"`
	DispatchedAt time.Time `json:"dispatched_at"`
}

// Outcome is the provider verdict carried by a reconciliation callback.
type Outcome string

const (
	// OutcomeRequested: the provider accepted the invitation into its queue.
	OutcomeRequested Outcome = "requested"
	OutcomeSent      Outcome = "sent"
	OutcomeRejected  Outcome = "rejected"
	OutcomeFlagged   Outcome = "flagged"
)

func (o Outcome) Valid() bool {
	switch o {
	case OutcomeRequested, OutcomeSent, OutcomeRejected, OutcomeFlagged:
		return true
	}
	return false
}

// Callback is an asynchronous per-prospect outcome, pushed by the engine or
// fetched by polling.
type Callback struct {
	ProspectID        string    `json:"prospectId,omitempty"`
	ProviderMessageID string    `json:"providerMessageId,omitempty"`
	Outcome           Outcome   `json:"outcome"`
	Timestamp         time.Time `json:"timestamp"`
	Reason            string    `json:"reason,omitempty"`
}

// Reference names the prospect the callback points to, for logs.
func (c Callback) Reference() string {
	if c.ProspectID != "" {
		return c.ProspectID
	}
	return "provider:" + c.ProviderMessageID
}

type OperatorActionInput struct {
	WorkspaceID string `json:"workspace_id"`
	CampaignID  string `json:"campaign_id"`
	Actor       string `json:"actor"`
	Reason      string `json:"reason"`
}

type OperatorActionOutput struct {
	Action      string        `json:"action"`
	From        entity.Status `json:"from"`
	To          entity.Status `json:"to"`
	ProspectIDs []string      `json:"prospect_ids"`
}
