package usecase

import (
	"context"
	"time"

	"github.com/xavierca1/linkedin-outreach/internal/infra/integration/automation"
)

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// AutomationEngine is the external workflow engine, consumed as an opaque
// HTTP target.
type AutomationEngine interface {
	Dispatch(ctx context.Context, req automation.DispatchRequest) (*automation.DispatchResponse, error)
	FetchOutcomes(ctx context.Context, prospectIDs []string) ([]automation.OutcomeEvent, error)
}

// Alert kinds sent to operators.
const (
	AlertDispatchExhausted = "dispatch_exhausted"
	AlertDispatchUnmarked  = "dispatch_unmarked"
	AlertSessionMismatch   = "session_mismatch"
	AlertAmbiguousAccount  = "ambiguous_account"
)

// OperatorAlert is something a human must look at.
type OperatorAlert struct {
	Kind        string
	WorkspaceID string
	CampaignID  string
	Subject     string
	Detail      string
	ProspectIDs []string
}

type OperatorNotifier interface {
	Alert(ctx context.Context, alert OperatorAlert) error
}

type NopNotifier struct{}

func (NopNotifier) Alert(context.Context, OperatorAlert) error { return nil }

// Metrics captures use case telemetry.
type Metrics interface {
	ProspectsPromoted(count int)
	ProspectsRejected(count int)
	ProspectsScheduled(count int)
	DispatchBatch(result string, prospects int)
	OutcomeReconciled(outcome, result string)
	LeaseContended(kind string)
	OperatorAction(action string, count int)
}

type NopMetrics struct{}

func (NopMetrics) ProspectsPromoted(int)            {}
func (NopMetrics) ProspectsRejected(int)            {}
func (NopMetrics) ProspectsScheduled(int)           {}
func (NopMetrics) DispatchBatch(string, int)        {}
func (NopMetrics) OutcomeReconciled(string, string) {}
func (NopMetrics) LeaseContended(string)            {}
func (NopMetrics) OperatorAction(string, int)       {}
