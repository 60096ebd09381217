package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/xavierca1/linkedin-outreach/internal/infra/queue"
	"github.com/xavierca1/linkedin-outreach/internal/usecase"
)

const maxCallbackBody = 1 << 20

type Reconciler interface {
	Execute(ctx context.Context, cb usecase.Callback) ([]string, error)
}

// CallbackHandler receives provider outcomes from the automation engine.
// With a Producer it only validates and enqueues; otherwise it reconciles
// inline.
type CallbackHandler struct {
	Reconciler Reconciler
	Producer   queue.OutcomeProducer
	Logger     *zap.Logger
}

func NewCallbackHandler(reconciler Reconciler, producer queue.OutcomeProducer, logger *zap.Logger) *CallbackHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CallbackHandler{Reconciler: reconciler, Producer: producer, Logger: logger}
}

type CallbackResult struct {
	Reference string   `json:"reference"`
	Status    string   `json:"status"`
	Updated   []string `json:"updated,omitempty"`
	Detail    string   `json:"detail,omitempty"`
}

type CallbackResponse struct {
	Results []CallbackResult `json:"results"`
}

// Handle accepts one callback object or an array of them.
func (h *CallbackHandler) Handle(w http.ResponseWriter, r *http.Request) {
	callbacks, err := decodeCallbacks(io.LimitReader(r.Body, maxCallbackBody))
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	if len(callbacks) == 0 {
		writeErrorResponse(w, http.StatusBadRequest, "VALIDATION_ERROR", "no outcomes in request")
		return
	}

	if h.Producer != nil {
		h.enqueue(w, r, callbacks)
		return
	}

	resp := CallbackResponse{Results: make([]CallbackResult, 0, len(callbacks))}
	status := http.StatusOK
	for _, cb := range callbacks {
		res := CallbackResult{Reference: cb.Reference()}
		updated, err := h.Reconciler.Execute(r.Context(), cb)

		var (
			mismatch *usecase.ReconciliationMismatch
			conflict *usecase.ConcurrencyConflict
			invalid  usecase.ValidationErrors
		)
		switch {
		case err == nil && len(updated) == 0:
			res.Status = "noop"
		case err == nil:
			res.Status = "applied"
			res.Updated = updated
		case errors.As(err, &mismatch):
			// acknowledged so the engine does not retry a callback that can never apply
			res.Status = "discarded"
			res.Detail = err.Error()
		case errors.As(err, &conflict):
			// a concurrent writer already moved the prospect
			res.Status = "conflict"
			res.Detail = err.Error()
		case errors.As(err, &invalid):
			res.Status = "invalid"
			res.Detail = err.Error()
			if len(callbacks) == 1 {
				writeUseCaseError(w, h.Logger, err)
				return
			}
		default:
			res.Status = "error"
			res.Detail = err.Error()
			status = http.StatusInternalServerError
			h.Logger.Error("callback processing failed", zap.String("reference", cb.Reference()), zap.Error(err))
		}
		resp.Results = append(resp.Results, res)
	}

	writeJSON(w, status, resp)
}

func (h *CallbackHandler) enqueue(w http.ResponseWriter, r *http.Request, callbacks []usecase.Callback) {
	for _, cb := range callbacks {
		if errs := usecase.ValidateCallback(cb); len(errs) > 0 {
			writeUseCaseError(w, h.Logger, errs)
			return
		}
	}

	resp := CallbackResponse{Results: make([]CallbackResult, 0, len(callbacks))}
	for _, cb := range callbacks {
		if err := h.Producer.PublishOutcome(r.Context(), cb); err != nil {
			h.Logger.Error("enqueue outcome", zap.String("reference", cb.Reference()), zap.Error(err))
			writeErrorResponse(w, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE", "outcome could not be enqueued")
			return
		}
		resp.Results = append(resp.Results, CallbackResult{Reference: cb.Reference(), Status: "queued"})
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func decodeCallbacks(r io.Reader) ([]usecase.Callback, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, errors.New("empty body")
	}

	if raw[0] == '[' {
		var cbs []usecase.Callback
		if err := json.Unmarshal(raw, &cbs); err != nil {
			return nil, err
		}
		return cbs, nil
	}

	var cb usecase.Callback
	if err := json.Unmarshal(raw, &cb); err != nil {
		return nil, err
	}
	return []usecase.Callback{cb}, nil
}
