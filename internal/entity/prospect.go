package entity

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Prospect is a contactable person tracked under one campaign.
type Prospect struct {
	ID          string          `json:"id"`
	WorkspaceID string          `json:"workspace_id"`
	CampaignID  string          `json:"campaign_id"`
	SessionID   string          `json:"session_id,omitempty"`
	FirstName   string          `json:"first_name"`
	LastName    string          `json:"last_name"`
	ProfileID   string          `json:"profile_id"` // LinkedIn URL or provider handle
	Contact     json.RawMessage `json:"contact,omitempty"`
	StagedSeq   int64           `json:"staged_seq"`

	Status          Status     `json:"status"`
	ScheduledSendAt *time.Time `json:"scheduled_send_at,omitempty"`
	ContactedAt     *time.Time `json:"contacted_at,omitempty"`

	// Dispatch bookkeeping. A queued prospect with DispatchedAt set was accepted
	// by the automation engine and waits for the provider outcome.
	DispatchedAt      *time.Time `json:"dispatched_at,omitempty"`
	ExecutionID       string     `json:"execution_id,omitempty"`
	DispatchAttempts  int        `json:"dispatch_attempts"`
	NextAttemptAt     *time.Time `json:"next_attempt_at,omitempty"`
	ProviderMessageID string     `json:"provider_message_id,omitempty"`
	FailureReason     string     `json:"failure_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewProspectFromStaged builds the pending prospect a staged row promotes into.
func NewProspectFromStaged(session *ApprovalSession, row *StagedProspect, now time.Time) *Prospect {
	return &Prospect{
		ID:          uuid.New().String(),
		WorkspaceID: session.WorkspaceID,
		CampaignID:  session.CampaignID,
		SessionID:   session.ID,
		FirstName:   strings.TrimSpace(row.FirstName),
		LastName:    strings.TrimSpace(row.LastName),
		ProfileID:   NormalizeProfileID(row.ProfileID),
		Contact:     row.Contact,
		StagedSeq:   row.Seq,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (p *Prospect) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Dispatched reports whether the engine already accepted this prospect.
func (p *Prospect) Dispatched() bool {
	return p.DispatchedAt != nil
}

// CheckInvariants validates the schedule/contact invariants of the data model.
func (p *Prospect) CheckInvariants() error {
	if p.ScheduledSendAt != nil && p.Status != StatusQueued {
		return errors.New("scheduled_send_at set outside queued status")
	}
	if p.ContactedAt != nil {
		switch p.Status {
		case StatusConnectionRequested, StatusConnectionRequestSent, StatusFailed:
		default:
			return errors.New("contacted_at set on a prospect that was never sent")
		}
	}
	return nil
}

// Apply moves p to t.To and clears what the new status may not carry. Edge
// legality and the expected prior status are checked by the caller.
func (p *Prospect) Apply(t Transition) {
	from := p.Status
	p.Status = t.To
	p.UpdatedAt = t.At

	if from == StatusQueued {
		p.ScheduledSendAt = nil
		p.NextAttemptAt = nil
	}
	if t.To == StatusPending {
		p.resetDelivery()
		return
	}
	if t.To == StatusFailed && t.Reason != "" {
		p.FailureReason = t.Reason
	}
	if t.ContactedAt != nil && p.ContactedAt == nil {
		at := *t.ContactedAt
		p.ContactedAt = &at
	}
	if t.ProviderMessageID != "" && p.ProviderMessageID == "" {
		p.ProviderMessageID = t.ProviderMessageID
	}
}

// resetDelivery forgets every trace of earlier delivery attempts.
func (p *Prospect) resetDelivery() {
	p.ScheduledSendAt = nil
	p.ContactedAt = nil
	p.DispatchedAt = nil
	p.ExecutionID = ""
	p.DispatchAttempts = 0
	p.NextAttemptAt = nil
	p.ProviderMessageID = ""
	p.FailureReason = ""
}

// Transition is a compare-and-set status change on one prospect. The update
// only applies when the stored status still equals From.
type Transition struct {
	ProspectID string
	From       Status
	To         Status
	At         time.Time
	Actor      string
	Reason     string

	ContactedAt       *time.Time
	ProviderMessageID string
}

// BulkTransition is the operator escape hatch: every prospect of the campaign
// currently in From moves to To. Leaving queued always clears the schedule and
// the dispatch bookkeeping.
type BulkTransition struct {
	WorkspaceID string
	CampaignID  string
	From        Status
	To          Status
	At          time.Time
	Actor       string
	Reason      string
}

// DispatchFailure records one failed dispatch attempt for a queued prospect.
type DispatchFailure struct {
	ProspectID    string
	Attempts      int
	NextAttemptAt time.Time
	Reason        string
}

// StatusEvent is one row of a prospect's status history.
type StatusEvent struct {
	ProspectID string    `json:"prospect_id"`
	From       Status    `json:"from"`
	To         Status    `json:"to"`
	Actor      string    `json:"actor"`
	Reason     string    `json:"reason,omitempty"`
	At         time.Time `json:"at"`
}

type ProspectFilter struct {
	WorkspaceID string
	CampaignID  string
	Status      Status
	Limit       int
}

type ProspectRepository interface {
	// InsertIfAbsent stores p unless (campaign, profile id) already exists.
	InsertIfAbsent(ctx context.Context, p *Prospect) (bool, error)
	FindByID(ctx context.Context, id string) (*Prospect, error)
	FindByProviderMessageID(ctx context.Context, providerMessageID string) ([]*Prospect, error)

	// ListByCampaignStatus returns prospects in staging order.
	ListByCampaignStatus(ctx context.Context, campaignID string, status Status, limit int) ([]*Prospect, error)
	// ListDue returns queued, not yet dispatched prospects whose slot and retry
	// backoff have both elapsed.
	ListDue(ctx context.Context, campaignID string, now time.Time, limit int) ([]*Prospect, error)
	// ListAwaitingOutcome returns dispatched prospects without a final outcome.
	ListAwaitingOutcome(ctx context.Context, limit int) ([]*Prospect, error)
	List(ctx context.Context, filter ProspectFilter) ([]*Prospect, error)
	History(ctx context.Context, prospectID string) ([]StatusEvent, error)

	// AssignSchedule stamps scheduled_send_at on a pending prospect.
	AssignSchedule(ctx context.Context, id string, at time.Time) error
	// ClearSchedule removes a schedule from a prospect that never left pending.
	ClearSchedule(ctx context.Context, id string) error

	Transition(ctx context.Context, t Transition) error
	BulkTransition(ctx context.Context, t BulkTransition) ([]string, error)

	MarkDispatched(ctx context.Context, ids []string, executionID string, at time.Time) (int, error)
	RecordDispatchFailure(ctx context.Context, f DispatchFailure) error
}
