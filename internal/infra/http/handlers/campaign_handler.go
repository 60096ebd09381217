package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/xavierca1/linkedin-outreach/internal/usecase"
)

type Scheduler interface {
	Execute(ctx context.Context, input usecase.ScheduleCampaignInput) (*usecase.ScheduleCampaignOutput, error)
}

type Dispatcher interface {
	Execute(ctx context.Context, input usecase.DispatchCampaignInput) (*usecase.ExecutionReceipt, error)
}

type OperatorActions interface {
	ResetQueuedToPending(ctx context.Context, input usecase.OperatorActionInput) (*usecase.OperatorActionOutput, error)
	MarkQueuedFailed(ctx context.Context, input usecase.OperatorActionInput) (*usecase.OperatorActionOutput, error)
	ResetFailedToPending(ctx context.Context, input usecase.OperatorActionInput) (*usecase.OperatorActionOutput, error)
}

type CampaignHandler struct {
	Scheduler  Scheduler
	Dispatcher Dispatcher
	Operator   OperatorActions
	Logger     *zap.Logger
}

func NewCampaignHandler(scheduler Scheduler, dispatcher Dispatcher, operator OperatorActions, logger *zap.Logger) *CampaignHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CampaignHandler{Scheduler: scheduler, Dispatcher: dispatcher, Operator: operator, Logger: logger}
}

type Deferral struct {
	Deferred int       `json:"deferred"`
	NextSlot time.Time `json:"next_slot"`
}

type ScheduleResponse struct {
	*usecase.ScheduleCampaignOutput
	Deferral *Deferral `json:"deferral,omitempty"`
}

func (h *CampaignHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	out, err := h.Scheduler.Execute(r.Context(), usecase.ScheduleCampaignInput{
		WorkspaceID: chi.URLParam(r, "workspaceId"),
		CampaignID:  chi.URLParam(r, "campaignId"),
	})
	if err != nil {
		writeUseCaseError(w, h.Logger, err)
		return
	}

	resp := ScheduleResponse{ScheduleCampaignOutput: out}
	if out.Deferral != nil {
		resp.Deferral = &Deferral{Deferred: out.Deferral.Deferred, NextSlot: out.Deferral.NextSlot}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *CampaignHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.Dispatcher.Execute(r.Context(), usecase.DispatchCampaignInput{
		WorkspaceID: chi.URLParam(r, "workspaceId"),
		CampaignID:  chi.URLParam(r, "campaignId"),
	})
	if err != nil {
		writeUseCaseError(w, h.Logger, err)
		return
	}
	if receipt == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusAccepted, receipt)
}

func (h *CampaignHandler) ResetQueued(w http.ResponseWriter, r *http.Request) {
	h.operatorAction(w, r, h.Operator.ResetQueuedToPending)
}

func (h *CampaignHandler) FailQueued(w http.ResponseWriter, r *http.Request) {
	h.operatorAction(w, r, h.Operator.MarkQueuedFailed)
}

func (h *CampaignHandler) ResetFailed(w http.ResponseWriter, r *http.Request) {
	h.operatorAction(w, r, h.Operator.ResetFailedToPending)
}

func (h *CampaignHandler) operatorAction(
	w http.ResponseWriter,
	r *http.Request,
	action func(context.Context, usecase.OperatorActionInput) (*usecase.OperatorActionOutput, error),
) {
	var body struct {
		Actor  string `json:"actor"`
		Reason string `json:"reason"`
	}
	if err := decodeOptional(r, &body); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}

	out, err := action(r.Context(), usecase.OperatorActionInput{
		WorkspaceID: chi.URLParam(r, "workspaceId"),
		CampaignID:  chi.URLParam(r, "campaignId"),
		Actor:       body.Actor,
		Reason:      body.Reason,
	})
	if err != nil {
		writeUseCaseError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
