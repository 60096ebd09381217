package entity

import (
	"context"
	"encoding/json"
	"time"
)

// Reviewer decisions on a staged row.
const (
	DecisionPending  = "pending"
	DecisionApproved = "approved"
	DecisionRejected = "rejected"
)

// ApprovalSession groups a batch of staged prospects awaiting review. It is
// kept as an audit record after promotion.
type ApprovalSession struct {
	ID            string    `json:"id"`
	WorkspaceID   string    `json:"workspace_id"`
	CampaignID    string    `json:"campaign_id"`
	CampaignName  string    `json:"campaign_name"`
	Tag           string    `json:"tag,omitempty"`
	DeclaredTotal int       `json:"total_prospects"`
	CreatedAt     time.Time `json:"created_at"`
}

// StagedProspect is one candidate row of an approval session. Seq is the
// staging insertion order.
type StagedProspect struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	Seq       int64           `json:"seq"`
	FirstName string          `json:"first_name"`
	LastName  string          `json:"last_name"`
	ProfileID string          `json:"profile_id"`
	Contact   json.RawMessage `json:"contact,omitempty"`
	Decision  string          `json:"decision"`
}

// SessionSummary pairs a session with its claimed vs actual row counts.
type SessionSummary struct {
	ApprovalSession
	StagedCount int `json:"staged_count"`
}

// Discrepancy is declared minus staged; non-zero means a partial import.
func (s SessionSummary) Discrepancy() int {
	return s.DeclaredTotal - s.StagedCount
}

type SessionRepository interface {
	FindByID(ctx context.Context, workspaceID, id string) (*ApprovalSession, error)
	ListStaged(ctx context.Context, sessionID string) ([]*StagedProspect, error)
	ListSummaries(ctx context.Context, workspaceID string) ([]SessionSummary, error)
}
