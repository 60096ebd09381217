package usecase

import (
	"context"
	"errors"

	"github.com/xavierca1/linkedin-outreach/internal/entity"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// StatusQueryUseCase is the read-only surface used by operator tooling.
type StatusQueryUseCase struct {
	Prospects entity.ProspectRepository
	Sessions  entity.SessionRepository
}

func NewStatusQueryUseCase(prospects entity.ProspectRepository, sessions entity.SessionRepository) *StatusQueryUseCase {
	return &StatusQueryUseCase{Prospects: prospects, Sessions: sessions}
}

func (uc *StatusQueryUseCase) ListProspects(ctx context.Context, filter entity.ProspectFilter) ([]*entity.Prospect, error) {
	if filter.WorkspaceID == "" {
		return nil, &DomainError{Code: "VALIDATION_ERROR", Message: "workspace_id is required"}
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, &DomainError{Code: "VALIDATION_ERROR", Message: "unknown status " + string(filter.Status)}
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}

	prospects, err := uc.Prospects.List(ctx, filter)
	if err != nil {
		return nil, &TechnicalError{Code: "DATABASE_ERROR", Message: "list prospects", Err: err}
	}
	return prospects, nil
}

// ListSessions returns every approval session of the workspace with its
// declared and staged counts side by side.
func (uc *StatusQueryUseCase) ListSessions(ctx context.Context, workspaceID string) ([]entity.SessionSummary, error) {
	if workspaceID == "" {
		return nil, &DomainError{Code: "VALIDATION_ERROR", Message: "workspace_id is required"}
	}
	summaries, err := uc.Sessions.ListSummaries(ctx, workspaceID)
	if err != nil {
		return nil, &TechnicalError{Code: "DATABASE_ERROR", Message: "list approval sessions", Err: err}
	}
	return summaries, nil
}

func (uc *StatusQueryUseCase) History(ctx context.Context, prospectID string) ([]entity.StatusEvent, error) {
	if _, err := uc.Prospects.FindByID(ctx, prospectID); err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return nil, &DomainError{Code: "PROSPECT_NOT_FOUND", Message: "prospect not found"}
		}
		return nil, &TechnicalError{Code: "DATABASE_ERROR", Message: "find prospect", Err: err}
	}
	events, err := uc.Prospects.History(ctx, prospectID)
	if err != nil {
		return nil, &TechnicalError{Code: "DATABASE_ERROR", Message: "load status history", Err: err}
	}
	return events, nil
}
