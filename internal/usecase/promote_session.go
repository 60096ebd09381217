package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/xavierca1/linkedin-outreach/internal/entity"
)

// MismatchPolicy decides what promotion does when a session's declared total
// disagrees with its staged rows.
type MismatchPolicy string

const (
	// MismatchWarn logs, alerts and promotes the rows that exist.
	MismatchWarn MismatchPolicy = "warn"
	// MismatchStrict refuses to promote anything.
	MismatchStrict MismatchPolicy = "strict"
)

func (p MismatchPolicy) Valid() bool {
	return p == MismatchWarn || p == MismatchStrict
}

type PromoteSessionUseCase struct {
	Sessions  entity.SessionRepository
	Prospects entity.ProspectRepository
	Notifier  OperatorNotifier
	Metrics   Metrics
	Clock     Clock
	Policy    MismatchPolicy
	Logger    *zap.Logger
}

func NewPromoteSessionUseCase(
	sessions entity.SessionRepository,
	prospects entity.ProspectRepository,
	notifier OperatorNotifier,
	metrics Metrics,
	clock Clock,
	policy MismatchPolicy,
	logger *zap.Logger,
) *PromoteSessionUseCase {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if !policy.Valid() {
		policy = MismatchWarn
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PromoteSessionUseCase{
		Sessions:  sessions,
		Prospects: prospects,
		Notifier:  notifier,
		Metrics:   metrics,
		Clock:     clock,
		Policy:    policy,
		Logger:    logger,
	}
}

// Execute moves every valid staged row of the session into the campaign's
// prospects as pending. Running it again only counts rows already promoted.
func (uc *PromoteSessionUseCase) Execute(ctx context.Context, input PromoteSessionInput) (*PromoteSessionOutput, error) {
	if input.WorkspaceID == "" || input.SessionID == "" {
		return nil, &DomainError{Code: "VALIDATION_ERROR", Message: "workspace_id and session_id are required"}
	}

	session, err := uc.Sessions.FindByID(ctx, input.WorkspaceID, input.SessionID)
	if errors.Is(err, entity.ErrNotFound) {
		return nil, &DomainError{Code: "SESSION_NOT_FOUND", Message: "approval session not found"}
	}
	if err != nil {
		return nil, &TechnicalError{Code: "DATABASE_ERROR", Message: "load approval session", Err: err}
	}

	rows, err := uc.Sessions.ListStaged(ctx, session.ID)
	if err != nil {
		return nil, &TechnicalError{Code: "DATABASE_ERROR", Message: "load staged prospects", Err: err}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Seq < rows[j].Seq })

	logger := uc.Logger.With(
		zap.String("workspace_id", session.WorkspaceID),
		zap.String("session_id", session.ID),
		zap.String("campaign_id", session.CampaignID))

	out := &PromoteSessionOutput{
		SessionID:   session.ID,
		Declared:    session.DeclaredTotal,
		Staged:      len(rows),
		Discrepancy: session.DeclaredTotal - len(rows),
	}

	if out.Discrepancy != 0 {
		mismatch := ValidationError{
			Field:   "total_prospects",
			Message: fmt.Sprintf("session declares %d prospects but %d rows are staged", session.DeclaredTotal, len(rows)),
		}
		logger.Warn("approval session count mismatch",
			zap.Int("declared", session.DeclaredTotal),
			zap.Int("staged", len(rows)),
			zap.String("policy", string(uc.Policy)))
		uc.alert(ctx, OperatorAlert{
			Kind:        AlertSessionMismatch,
			WorkspaceID: session.WorkspaceID,
			CampaignID:  session.CampaignID,
			Subject:     fmt.Sprintf("Approval session %s is incomplete", session.ID),
			Detail:      mismatch.Error(),
		})
		if uc.Policy == MismatchStrict {
			return nil, mismatch
		}
	}

	now := uc.Clock.Now()
	for _, row := range rows {
		if row.Decision == entity.DecisionRejected {
			out.Declined++
			continue
		}

		if errs := ValidateStagedProspect(row); len(errs) > 0 {
			out.Rejected = append(out.Rejected, RejectedRow{StagedID: row.ID, Errors: errs})
			if hasField(errs, "profile_id") {
				out.MissingProfile++
			}
			continue
		}

		prospect := entity.NewProspectFromStaged(session, row, now)
		inserted, err := uc.Prospects.InsertIfAbsent(ctx, prospect)
		if err != nil {
			return nil, &TechnicalError{Code: "DATABASE_ERROR", Message: "insert prospect from row " + row.ID, Err: err}
		}
		if inserted {
			out.Promoted++
		} else {
			out.AlreadyPromoted++
		}
	}

	uc.Metrics.ProspectsPromoted(out.Promoted)
	uc.Metrics.ProspectsRejected(len(out.Rejected))

	logger.Info("approval session promoted",
		zap.Int("promoted", out.Promoted),
		zap.Int("already_promoted", out.AlreadyPromoted),
		zap.Int("declined", out.Declined),
		zap.Int("rejected", len(out.Rejected)),
		zap.Int("discrepancy", out.Discrepancy))

	return out, nil
}

func (uc *PromoteSessionUseCase) alert(ctx context.Context, a OperatorAlert) {
	if err := uc.Notifier.Alert(ctx, a); err != nil {
		uc.Logger.Warn("operator alert failed", zap.String("kind", a.Kind), zap.Error(err))
	}
}
