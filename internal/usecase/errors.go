package usecase

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xavierca1/linkedin-outreach/internal/entity"
)

// DomainError is the envelope handlers render for caller mistakes.
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

func IsDomainError(err error) bool {
	var de *DomainError
	return errors.As(err, &de)
}

// TechnicalError wraps infrastructure failures (database, broker).
type TechnicalError struct {
	Code    string
	Message string
	Err     error
}

func (e *TechnicalError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *TechnicalError) Unwrap() error {
	return e.Err
}

func IsTechnicalError(err error) bool {
	var te *TechnicalError
	return errors.As(err, &te)
}

// ValidationError rejects malformed or incomplete data at the boundary.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, e := range v {
		parts = append(parts, e.Error())
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// RateLimitDeferral is not a failure: the scheduler left prospects pending
// because the account has no free slot before the planning horizon.
type RateLimitDeferral struct {
	AccountID string
	Deferred  int
	NextSlot  time.Time
}

func (d *RateLimitDeferral) Error() string {
	return fmt.Sprintf("account %s: %d prospects deferred, next free slot %s",
		d.AccountID, d.Deferred, d.NextSlot.Format(time.RFC3339))
}

// DispatchTransportError is a network, timeout or non-2xx failure talking to
// the automation engine. The batch stays queued for another pass.
type DispatchTransportError struct {
	CampaignID string
	AccountID  string
	Prospects  int
	Err        error
}

func (e *DispatchTransportError) Error() string {
	return fmt.Sprintf("dispatch campaign %s via account %s (%d prospects): %v",
		e.CampaignID, e.AccountID, e.Prospects, e.Err)
}

func (e *DispatchTransportError) Unwrap() error {
	return e.Err
}

// DispatchExhaustedError reports prospects moved to failed after the retry cap.
type DispatchExhaustedError struct {
	CampaignID  string
	AccountID   string
	ProspectIDs []string
	Attempts    int
	Err         error
}

func (e *DispatchExhaustedError) Error() string {
	return fmt.Sprintf("dispatch campaign %s exhausted after %d attempts, %d prospects failed: %v",
		e.CampaignID, e.Attempts, len(e.ProspectIDs), e.Err)
}

func (e *DispatchExhaustedError) Unwrap() error {
	return e.Err
}

// ReconciliationMismatch is a callback that cannot be applied: unknown
// reference, ambiguous reference, or a prospect that already left the flow.
type ReconciliationMismatch struct {
	Reference string
	Status    entity.Status
	Reason    string
}

func (e *ReconciliationMismatch) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("reconcile %s (status %s): %s", e.Reference, e.Status, e.Reason)
	}
	return fmt.Sprintf("reconcile %s: %s", e.Reference, e.Reason)
}

// AccountUnavailableError means no connected account can serve the campaign.
// Callers skip the campaign and retry on the next cycle.
type AccountUnavailableError struct {
	WorkspaceID string
	Channel     string
	AccountID   string
	Reason      string
}

func (e *AccountUnavailableError) Error() string {
	if e.AccountID != "" {
		return fmt.Sprintf("account %s unavailable: %s", e.AccountID, e.Reason)
	}
	return fmt.Sprintf("no %s account for workspace %s: %s", e.Channel, e.WorkspaceID, e.Reason)
}

// Unwrap lets callers test the "not found" flavour with errors.Is.
func (e *AccountUnavailableError) Unwrap() error {
	return entity.ErrNotFound
}

// AmbiguousAccountError is a configuration error: several connected accounts
// compete for the same workspace and channel.
type AmbiguousAccountError struct {
	WorkspaceID string
	Channel     string
	AccountIDs  []string
}

func (e *AmbiguousAccountError) Error() string {
	return fmt.Sprintf("workspace %s has %d connected %s accounts (%s); exactly one is allowed",
		e.WorkspaceID, len(e.AccountIDs), e.Channel, strings.Join(e.AccountIDs, ", "))
}

// ConcurrencyConflict means another writer won the compare-and-set; its
// transition stands.
type ConcurrencyConflict struct {
	ProspectID string
	Expected   entity.Status
}

func (e *ConcurrencyConflict) Error() string {
	return fmt.Sprintf("prospect %s left %s concurrently", e.ProspectID, e.Expected)
}

func (e *ConcurrencyConflict) Unwrap() error {
	return entity.ErrConflict
}

// ErrLeaseHeld is returned when another instance owns the lease past the wait budget.
var ErrLeaseHeld = errors.New("lease held by another instance")

// IsRecoverable reports whether err belongs to the expected taxonomy that
// callers skip and retry instead of escalating.
func IsRecoverable(err error) bool {
	var (
		deferral  *RateLimitDeferral
		transport *DispatchTransportError
		mismatch  *ReconciliationMismatch
		account   *AccountUnavailableError
		conflict  *ConcurrencyConflict
	)
	switch {
	case errors.As(err, &deferral),
		errors.As(err, &transport),
		errors.As(err, &mismatch),
		errors.As(err, &account),
		errors.As(err, &conflict),
		errors.Is(err, ErrLeaseHeld):
		return true
	}
	return false
}
