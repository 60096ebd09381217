package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xavierca1/linkedin-outreach/internal/entity"
	"github.com/xavierca1/linkedin-outreach/internal/infra/integration/automation"
)

type ReconcileOutcomeUseCase struct {
	Prospects   entity.ProspectRepository
	Engine      AutomationEngine
	Metrics     Metrics
	Clock       Clock
	PollTimeout time.Duration
	Logger      *zap.Logger
}

func NewReconcileOutcomeUseCase(
	prospects entity.ProspectRepository,
	engine AutomationEngine,
	metrics Metrics,
	clock Clock,
	pollTimeout time.Duration,
	logger *zap.Logger,
) *ReconcileOutcomeUseCase {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if pollTimeout <= 0 {
		pollTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconcileOutcomeUseCase{
		Prospects:   prospects,
		Engine:      engine,
		Metrics:     metrics,
		Clock:       clock,
		PollTimeout: pollTimeout,
		Logger:      logger,
	}
}

// Execute applies one outcome and returns the ids of the prospects it
// changed. Replaying an outcome already applied changes nothing.
func (uc *ReconcileOutcomeUseCase) Execute(ctx context.Context, cb Callback) ([]string, error) {
	if errs := ValidateCallback(cb); len(errs) > 0 {
		uc.Metrics.OutcomeReconciled(string(cb.Outcome), "invalid")
		return nil, errs
	}

	prospect, err := uc.resolve(ctx, cb)
	if err != nil {
		uc.record(cb, 0, err)
		return nil, err
	}

	updated, err := uc.apply(ctx, prospect, cb)
	if errors.Is(err, entity.ErrConflict) {
		// one reload: the winner's transition may already satisfy the outcome
		reloaded, findErr := uc.Prospects.FindByID(ctx, prospect.ID)
		if findErr != nil {
			return nil, &TechnicalError{Code: "DATABASE_ERROR", Message: "reload prospect", Err: findErr}
		}
		updated, err = uc.apply(ctx, reloaded, cb)
		if errors.Is(err, entity.ErrConflict) {
			err = &ConcurrencyConflict{ProspectID: prospect.ID, Expected: reloaded.Status}
		}
	}

	uc.record(cb, len(updated), err)
	if err != nil {
		return nil, err
	}
	if len(updated) == 0 {
		uc.Logger.Debug("outcome already applied",
			zap.String("prospect_id", prospect.ID), zap.String("outcome", string(cb.Outcome)))
		return nil, nil
	}

	uc.Logger.Info("outcome reconciled",
		zap.String("prospect_id", prospect.ID),
		zap.String("outcome", string(cb.Outcome)),
		zap.String("from", string(prospect.Status)))
	return updated, nil
}

// Poll asks the engine for verdicts on every prospect still waiting for one.
// Outcomes that cannot be applied are logged and skipped.
func (uc *ReconcileOutcomeUseCase) Poll(ctx context.Context, limit int) ([]string, error) {
	awaiting, err := uc.Prospects.ListAwaitingOutcome(ctx, limit)
	if err != nil {
		return nil, &TechnicalError{Code: "DATABASE_ERROR", Message: "list prospects awaiting outcome", Err: err}
	}
	if len(awaiting) == 0 {
		return nil, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, uc.PollTimeout)
	events, err := uc.Engine.FetchOutcomes(callCtx, prospectIDs(awaiting))
	cancel()
	if err != nil {
		return nil, fmt.Errorf("poll automation engine: %w", err)
	}

	var updated []string
	for _, ev := range events {
		ids, err := uc.Execute(ctx, CallbackFromEvent(ev))
		if err != nil {
			if IsTechnicalError(err) {
				return updated, err
			}
			uc.Logger.Warn("polled outcome discarded",
				zap.String("prospect_id", ev.ProspectID),
				zap.String("outcome", ev.Outcome),
				zap.Error(err))
			continue
		}
		updated = append(updated, ids...)
	}
	return updated, nil
}

func CallbackFromEvent(ev automation.OutcomeEvent) Callback {
	return Callback{
		ProspectID:        ev.ProspectID,
		ProviderMessageID: ev.ProviderMessageID,
		Outcome:           Outcome(ev.Outcome),
		Timestamp:         ev.Timestamp,
		Reason:            ev.Reason,
	}
}

// ValidateCallback checks the shape of a callback before it is applied or
// enqueued.
func ValidateCallback(cb Callback) ValidationErrors {
	var errs ValidationErrors
	if cb.ProspectID == "" && cb.ProviderMessageID == "" {
		errs = append(errs, ValidationError{"prospectId", "prospectId or providerMessageId is required"})
	}
	if !cb.Outcome.Valid() {
		errs = append(errs, ValidationError{"outcome", fmt.Sprintf("unknown outcome %q", cb.Outcome)})
	}
	return errs
}

// resolve maps the callback reference to exactly one prospect.
func (uc *ReconcileOutcomeUseCase) resolve(ctx context.Context, cb Callback) (*entity.Prospect, error) {
	if cb.ProspectID != "" {
		p, err := uc.Prospects.FindByID(ctx, cb.ProspectID)
		if errors.Is(err, entity.ErrNotFound) {
			return nil, &ReconciliationMismatch{Reference: cb.Reference(), Reason: "unknown prospect"}
		}
		if err != nil {
			return nil, &TechnicalError{Code: "DATABASE_ERROR", Message: "find prospect", Err: err}
		}
		if cb.ProviderMessageID != "" && p.ProviderMessageID != "" && p.ProviderMessageID != cb.ProviderMessageID {
			return nil, &ReconciliationMismatch{Reference: cb.Reference(), Status: p.Status, Reason: "provider message id does not match prospect"}
		}
		return p, nil
	}

	matches, err := uc.Prospects.FindByProviderMessageID(ctx, cb.ProviderMessageID)
	if err != nil {
		return nil, &TechnicalError{Code: "DATABASE_ERROR", Message: "find prospect by provider message id", Err: err}
	}
	switch len(matches) {
	case 0:
		return nil, &ReconciliationMismatch{Reference: cb.Reference(), Reason: "unknown provider message id"}
	case 1:
		return matches[0], nil
	}
	return nil, &ReconciliationMismatch{Reference: cb.Reference(), Reason: fmt.Sprintf("provider message id maps to %d prospects", len(matches))}
}

func outcomeTarget(o Outcome) entity.Status {
	switch o {
	case OutcomeRequested:
		return entity.StatusConnectionRequested
	case OutcomeSent:
		return entity.StatusConnectionRequestSent
	default:
		return entity.StatusFailed
	}
}

// apply walks p to the status the outcome implies, one state machine edge at
// a time, with compare-and-set on each edge.
func (uc *ReconcileOutcomeUseCase) apply(ctx context.Context, p *entity.Prospect, cb Callback) ([]string, error) {
	target := outcomeTarget(cb.Outcome)

	if p.Status.Reached(target) {
		return nil, nil
	}
	if p.Status.Terminal() || p.Status == entity.StatusPending {
		return nil, &ReconciliationMismatch{
			Reference: cb.Reference(),
			Status:    p.Status,
			Reason:    fmt.Sprintf("outcome %s cannot apply", cb.Outcome),
		}
	}

	at := cb.Timestamp
	if at.IsZero() {
		at = uc.Clock.Now()
	}

	current := p.Status
	if target == entity.StatusConnectionRequestSent && current == entity.StatusQueued {
		// the requested callback was lost; pass through connection_requested
		if err := uc.transition(ctx, cb, entity.Transition{
			ProspectID:        p.ID,
			From:              entity.StatusQueued,
			To:                entity.StatusConnectionRequested,
			At:                at,
			Actor:             "reconciler",
			Reason:            "implied by sent outcome",
			ProviderMessageID: cb.ProviderMessageID,
		}); err != nil {
			return nil, err
		}
		current = entity.StatusConnectionRequested
	}

	t := entity.Transition{
		ProspectID:        p.ID,
		From:              current,
		To:                target,
		At:                at,
		Actor:             "reconciler",
		ProviderMessageID: cb.ProviderMessageID,
	}
	switch cb.Outcome {
	case OutcomeSent:
		if p.ContactedAt == nil {
			t.ContactedAt = &at
		}
	case OutcomeRejected, OutcomeFlagged:
		t.Reason = string(cb.Outcome)
		if cb.Reason != "" {
			t.Reason += ": " + cb.Reason
		}
	}

	if err := uc.transition(ctx, cb, t); err != nil {
		return nil, err
	}
	return []string{p.ID}, nil
}

func (uc *ReconcileOutcomeUseCase) transition(ctx context.Context, cb Callback, t entity.Transition) error {
	err := uc.Prospects.Transition(ctx, t)
	switch {
	case err == nil, errors.Is(err, entity.ErrConflict):
		return err
	case errors.Is(err, entity.ErrIllegalTransition):
		return &ReconciliationMismatch{Reference: cb.Reference(), Status: t.From, Reason: err.Error()}
	}
	return &TechnicalError{Code: "DATABASE_ERROR", Message: "update prospect status", Err: err}
}

func (uc *ReconcileOutcomeUseCase) record(cb Callback, updated int, err error) {
	var (
		mismatch *ReconciliationMismatch
		conflict *ConcurrencyConflict
	)
	result := "applied"
	switch {
	case err == nil && updated == 0:
		result = "noop"
	case err == nil:
	case errors.As(err, &mismatch):
		result = "mismatch"
		uc.Logger.Warn("outcome discarded",
			zap.String("reference", cb.Reference()),
			zap.String("outcome", string(cb.Outcome)),
			zap.Error(err))
	case errors.As(err, &conflict):
		result = "conflict"
	default:
		result = "error"
	}
	uc.Metrics.OutcomeReconciled(string(cb.Outcome), result)
}
