package automation

import "time"

// Prospect is the minimal per-prospect payload of a dispatch.
type Prospect struct {
	ID               string `json:"id"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	ProfileURL       string `json:"profileUrl"`
	SendDelayMinutes int    `json:"send_delay_minutes"`
}

type Messages struct {
	ConnectionRequest string   `json:"connection_request"`
	FollowUps         []string `json:"follow_up_messages,omitempty"`
}

// DispatchRequest is the body posted to the engine's webhook.
type DispatchRequest struct {
	WorkspaceID       string     `json:"workspaceId"`
	CampaignID        string     `json:"campaignId"`
	AccountID         string     `json:"accountId"`
	ProviderAccountID string     `json:"unipileAccountId,omitempty"`
	Channel           string     `json:"channel"`
	CampaignType      string     `json:"campaignType"`
	Prospects         []Prospect `json:"prospects"`
	Messages          Messages   `json:"messages"`
}

// DispatchResponse is optional: engines that answer with an empty body are
// handed a locally generated execution id.
type DispatchResponse struct {
	ExecutionID string `json:"executionId"`
}

// OutcomeEvent is one per-prospect provider verdict.
type OutcomeEvent struct {
	ProspectID        string    `json:"prospectId,omitempty"`
	ProviderMessageID string    `json:"providerMessageId,omitempty"`
	Outcome           string    `json:"outcome"`
	Timestamp         time.Time `json:"timestamp"`
	Reason            string    `json:"reason,omitempty"`
}

type outcomesRequest struct {
	ProspectIDs []string `json:"prospectIds"`
}

type outcomesResponse struct {
	Outcomes []OutcomeEvent `json:"outcomes"`
}
