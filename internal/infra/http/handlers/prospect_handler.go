package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/xavierca1/linkedin-outreach/internal/entity"
)

type ProspectHandler struct {
	Query  StatusQuery
	Logger *zap.Logger
}

func NewProspectHandler(query StatusQuery, logger *zap.Logger) *ProspectHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProspectHandler{Query: query, Logger: logger}
}

// List serves GET /workspaces/{workspaceId}/prospects?campaign_id=&status=&limit=
func (h *ProspectHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := entity.ProspectFilter{
		WorkspaceID: chi.URLParam(r, "workspaceId"),
		CampaignID:  q.Get("campaign_id"),
		Status:      entity.Status(q.Get("status")),
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeErrorResponse(w, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}

	prospects, err := h.Query.ListProspects(r.Context(), filter)
	if err != nil {
		writeUseCaseError(w, h.Logger, err)
		return
	}
	if prospects == nil {
		prospects = []*entity.Prospect{}
	}
	writeJSON(w, http.StatusOK, prospects)
}

func (h *ProspectHandler) History(w http.ResponseWriter, r *http.Request) {
	events, err := h.Query.History(r.Context(), chi.URLParam(r, "prospectId"))
	if err != nil {
		writeUseCaseError(w, h.Logger, err)
		return
	}
	if events == nil {
		events = []entity.StatusEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}
