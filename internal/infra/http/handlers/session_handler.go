package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/xavierca1/linkedin-outreach/internal/entity"
	"github.com/xavierca1/linkedin-outreach/internal/usecase"
)

type Promoter interface {
	Execute(ctx context.Context, input usecase.PromoteSessionInput) (*usecase.PromoteSessionOutput, error)
}

type StatusQuery interface {
	ListProspects(ctx context.Context, filter entity.ProspectFilter) ([]*entity.Prospect, error)
	ListSessions(ctx context.Context, workspaceID string) ([]entity.SessionSummary, error)
	History(ctx context.Context, prospectID string) ([]entity.StatusEvent, error)
}

type SessionHandler struct {
	Promoter Promoter
	Query    StatusQuery
	Logger   *zap.Logger
}

func NewSessionHandler(promoter Promoter, query StatusQuery, logger *zap.Logger) *SessionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandler{Promoter: promoter, Query: query, Logger: logger}
}

func (h *SessionHandler) Promote(w http.ResponseWriter, r *http.Request) {
	out, err := h.Promoter.Execute(r.Context(), usecase.PromoteSessionInput{
		WorkspaceID: chi.URLParam(r, "workspaceId"),
		SessionID:   chi.URLParam(r, "sessionId"),
	})
	if err != nil {
		writeUseCaseError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type SessionView struct {
	entity.SessionSummary
	Discrepancy int `json:"discrepancy"`
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.Query.ListSessions(r.Context(), chi.URLParam(r, "workspaceId"))
	if err != nil {
		writeUseCaseError(w, h.Logger, err)
		return
	}

	views := make([]SessionView, 0, len(summaries))
	for _, s := range summaries {
		views = append(views, SessionView{SessionSummary: s, Discrepancy: s.Discrepancy()})
	}
	writeJSON(w, http.StatusOK, views)
}
