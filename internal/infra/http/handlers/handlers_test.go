package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/linkedin-outreach/internal/entity"
	"github.com/xavierca1/linkedin-outreach/internal/usecase"
)

type MockReconciler struct{ mock.Mock }

func (m *MockReconciler) Execute(ctx context.Context, cb usecase.Callback) ([]string, error) {
	args := m.Called(ctx, cb)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

type MockProducer struct{ mock.Mock }

func (m *MockProducer) PublishOutcome(ctx context.Context, cb usecase.Callback) error {
	return m.Called(ctx, cb).Error(0)
}

type MockScheduler struct{ mock.Mock }

func (m *MockScheduler) Execute(ctx context.Context, in usecase.ScheduleCampaignInput) (*usecase.ScheduleCampaignOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*usecase.ScheduleCampaignOutput)
	return out, args.Error(1)
}

type MockDispatcher struct{ mock.Mock }

func (m *MockDispatcher) Execute(ctx context.Context, in usecase.DispatchCampaignInput) (*usecase.ExecutionReceipt, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*usecase.ExecutionReceipt)
	return out, args.Error(1)
}

type MockOperator struct{ mock.Mock }

func (m *MockOperator) ResetQueuedToPending(ctx context.Context, in usecase.OperatorActionInput) (*usecase.OperatorActionOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*usecase.OperatorActionOutput)
	return out, args.Error(1)
}

func (m *MockOperator) MarkQueuedFailed(ctx context.Context, in usecase.OperatorActionInput) (*usecase.OperatorActionOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*usecase.OperatorActionOutput)
	return out, args.Error(1)
}

func (m *MockOperator) ResetFailedToPending(ctx context.Context, in usecase.OperatorActionInput) (*usecase.OperatorActionOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*usecase.OperatorActionOutput)
	return out, args.Error(1)
}

type MockPromoter struct{ mock.Mock }

func (m *MockPromoter) Execute(ctx context.Context, in usecase.PromoteSessionInput) (*usecase.PromoteSessionOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*usecase.PromoteSessionOutput)
	return out, args.Error(1)
}

type MockQuery struct{ mock.Mock }

func (m *MockQuery) ListProspects(ctx context.Context, f entity.ProspectFilter) ([]*entity.Prospect, error) {
	args := m.Called(ctx, f)
	out, _ := args.Get(0).([]*entity.Prospect)
	return out, args.Error(1)
}

func (m *MockQuery) ListSessions(ctx context.Context, ws string) ([]entity.SessionSummary, error) {
	args := m.Called(ctx, ws)
	out, _ := args.Get(0).([]entity.SessionSummary)
	return out, args.Error(1)
}

func (m *MockQuery) History(ctx context.Context, id string) ([]entity.StatusEvent, error) {
	args := m.Called(ctx, id)
	out, _ := args.Get(0).([]entity.StatusEvent)
	return out, args.Error(1)
}

func serve(t *testing.T, r chi.Router, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func callbackRouter(h *CallbackHandler) chi.Router {
	r := chi.NewRouter()
	r.Post("/callbacks/outcome", h.Handle)
	return r
}

func TestCallbackSync(t *testing.T) {
	sent := usecase.Callback{ProspectID: "p-1", Outcome: usecase.OutcomeSent}
	replay := usecase.Callback{ProspectID: "p-2", Outcome: usecase.OutcomeSent}
	unknown := usecase.Callback{ProviderMessageID: "msg-x", Outcome: usecase.OutcomeRejected}

	rec := new(MockReconciler)
	rec.On("Execute", mock.Anything, sent).Return([]string{"p-1"}, nil)
	rec.On("Execute", mock.Anything, replay).Return(nil, nil)
	rec.On("Execute", mock.Anything, unknown).Return(nil, &usecase.ReconciliationMismatch{Reference: "provider:msg-x", Reason: "unknown provider message id"})

	body := `[
		{"prospectId":"p-1","outcome":"sent"},
		{"prospectId":"p-2","outcome":"sent"},
		{"providerMessageId":"msg-x","outcome":"rejected"}
	]`
	resp := serve(t, callbackRouter(NewCallbackHandler(rec, nil, nil)), http.MethodPost, "/callbacks/outcome", body)

	require.Equal(t, http.StatusOK, resp.Code)
	out := decode[CallbackResponse](t, resp)
	require.Len(t, out.Results, 3)
	assert.Equal(t, "applied", out.Results[0].Status)
	assert.Equal(t, []string{"p-1"}, out.Results[0].Updated)
	assert.Equal(t, "noop", out.Results[1].Status)
	assert.Equal(t, "discarded", out.Results[2].Status)
	rec.AssertExpectations(t)
}

func TestCallbackSyncErrors(t *testing.T) {
	cb := usecase.Callback{ProspectID: "p-1", Outcome: usecase.OutcomeRequested}

	t.Run("technical error asks for a retry", func(t *testing.T) {
		rec := new(MockReconciler)
		rec.On("Execute", mock.Anything, cb).Return(nil, &usecase.TechnicalError{Code: "DATABASE_ERROR", Message: "find prospect", Err: errors.New("down")})
		resp := serve(t, callbackRouter(NewCallbackHandler(rec, nil, nil)), http.MethodPost, "/callbacks/outcome", `{"prospectId":"p-1","outcome":"requested"}`)
		assert.Equal(t, http.StatusInternalServerError, resp.Code)
	})

	t.Run("concurrent update is acknowledged", func(t *testing.T) {
		rec := new(MockReconciler)
		rec.On("Execute", mock.Anything, cb).Return(nil, &usecase.ConcurrencyConflict{ProspectID: "p-1"})
		resp := serve(t, callbackRouter(NewCallbackHandler(rec, nil, nil)), http.MethodPost, "/callbacks/outcome", `{"prospectId":"p-1","outcome":"requested"}`)
		require.Equal(t, http.StatusOK, resp.Code)
		out := decode[CallbackResponse](t, resp)
		require.Len(t, out.Results, 1)
		assert.Equal(t, "conflict", out.Results[0].Status)
		assert.NotEmpty(t, out.Results[0].Detail)
	})

	t.Run("invalid single callback", func(t *testing.T) {
		bad := usecase.Callback{ProspectID: "p-1", Outcome: "opened"}
		rec := new(MockReconciler)
		rec.On("Execute", mock.Anything, bad).Return(nil, usecase.ValidateCallback(bad))
		resp := serve(t, callbackRouter(NewCallbackHandler(rec, nil, nil)), http.MethodPost, "/callbacks/outcome", `{"prospectId":"p-1","outcome":"opened"}`)
		assert.Equal(t, http.StatusBadRequest, resp.Code)
		out := decode[ErrorResponse](t, resp)
		assert.Equal(t, "VALIDATION_ERROR", out.Error)
		require.Len(t, out.Fields, 1)
		assert.Equal(t, "outcome", out.Fields[0].Field)
	})

	t.Run("malformed json", func(t *testing.T) {
		resp := serve(t, callbackRouter(NewCallbackHandler(new(MockReconciler), nil, nil)), http.MethodPost, "/callbacks/outcome", `{"prospectId":`)
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("empty array", func(t *testing.T) {
		resp := serve(t, callbackRouter(NewCallbackHandler(new(MockReconciler), nil, nil)), http.MethodPost, "/callbacks/outcome", `[]`)
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})
}

func TestCallbackAsync(t *testing.T) {
	cb := usecase.Callback{ProspectID: "p-1", Outcome: usecase.OutcomeSent}

	t.Run("enqueues", func(t *testing.T) {
		producer := new(MockProducer)
		producer.On("PublishOutcome", mock.Anything, cb).Return(nil).Once()
		rec := new(MockReconciler)

		resp := serve(t, callbackRouter(NewCallbackHandler(rec, producer, nil)), http.MethodPost, "/callbacks/outcome", `{"prospectId":"p-1","outcome":"sent"}`)

		assert.Equal(t, http.StatusAccepted, resp.Code)
		producer.AssertExpectations(t)
		rec.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
	})

	t.Run("rejects invalid before enqueueing", func(t *testing.T) {
		producer := new(MockProducer)
		resp := serve(t, callbackRouter(NewCallbackHandler(new(MockReconciler), producer, nil)), http.MethodPost, "/callbacks/outcome", `{"outcome":"sent"}`)
		assert.Equal(t, http.StatusBadRequest, resp.Code)
		producer.AssertNotCalled(t, "PublishOutcome", mock.Anything, mock.Anything)
	})

	t.Run("broker down", func(t *testing.T) {
		producer := new(MockProducer)
		producer.On("PublishOutcome", mock.Anything, cb).Return(errors.New("channel closed"))
		resp := serve(t, callbackRouter(NewCallbackHandler(new(MockReconciler), producer, nil)), http.MethodPost, "/callbacks/outcome", `{"prospectId":"p-1","outcome":"sent"}`)
		assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
	})
}

func campaignRouter(h *CampaignHandler) chi.Router {
	r := chi.NewRouter()
	r.Route("/workspaces/{workspaceId}/campaigns/{campaignId}", func(r chi.Router) {
		r.Post("/schedule", h.Schedule)
		r.Post("/dispatch", h.Dispatch)
		r.Post("/reset-queued", h.ResetQueued)
		r.Post("/fail-queued", h.FailQueued)
		r.Post("/reset-failed", h.ResetFailed)
	})
	return r
}

func TestScheduleHandler(t *testing.T) {
	in := usecase.ScheduleCampaignInput{WorkspaceID: "ws-1", CampaignID: "camp-1"}
	next := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)

	sched := new(MockScheduler)
	sched.On("Execute", mock.Anything, in).Return(&usecase.ScheduleCampaignOutput{
		CampaignID: "camp-1",
		AccountID:  "acc-1",
		Slots:      []usecase.ScheduledSlot{{ProspectID: "p-1", ScheduledAt: next.Add(-time.Hour)}},
		Deferral:   &usecase.RateLimitDeferral{AccountID: "acc-1", Deferred: 3, NextSlot: next},
	}, nil)

	resp := serve(t, campaignRouter(NewCampaignHandler(sched, nil, nil, nil)), http.MethodPost, "/workspaces/ws-1/campaigns/camp-1/schedule", "")

	require.Equal(t, http.StatusOK, resp.Code)
	out := decode[map[string]any](t, resp)
	assert.Equal(t, "acc-1", out["account_id"])
	assert.Len(t, out["slots"], 1)
	deferral := out["deferral"].(map[string]any)
	assert.Equal(t, 3.0, deferral["deferred"])
}

func TestScheduleHandlerErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		want string
	}{
		{"campaign missing", &usecase.DomainError{Code: "CAMPAIGN_NOT_FOUND", Message: "campaign not found"}, http.StatusNotFound, "CAMPAIGN_NOT_FOUND"},
		{"no template", &usecase.DomainError{Code: "CAMPAIGN_NOT_READY", Message: "campaign has no connection request template"}, http.StatusConflict, "CAMPAIGN_NOT_READY"},
		{"ambiguous", &usecase.AmbiguousAccountError{WorkspaceID: "ws-1", Channel: "linkedin", AccountIDs: []string{"a", "b"}}, http.StatusConflict, "AMBIGUOUS_ACCOUNT"},
		{"no account", &usecase.AccountUnavailableError{WorkspaceID: "ws-1", Channel: "linkedin", Reason: "no connected account"}, http.StatusConflict, "ACCOUNT_UNAVAILABLE"},
		{"lease", usecase.ErrLeaseHeld, http.StatusConflict, "LEASE_HELD"},
		{"database", &usecase.TechnicalError{Code: "DATABASE_ERROR", Message: "list pending prospects", Err: errors.New("down")}, http.StatusInternalServerError, "DATABASE_ERROR"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sched := new(MockScheduler)
			sched.On("Execute", mock.Anything, mock.Anything).Return(nil, tt.err)

			resp := serve(t, campaignRouter(NewCampaignHandler(sched, nil, nil, nil)), http.MethodPost, "/workspaces/ws-1/campaigns/camp-1/schedule", "")

			assert.Equal(t, tt.code, resp.Code)
			assert.Equal(t, tt.want, decode[ErrorResponse](t, resp).Error)
		})
	}
}

func TestDispatchHandler(t *testing.T) {
	in := usecase.DispatchCampaignInput{WorkspaceID: "ws-1", CampaignID: "camp-1"}

	t.Run("nothing due", func(t *testing.T) {
		disp := new(MockDispatcher)
		disp.On("Execute", mock.Anything, in).Return(nil, nil)
		resp := serve(t, campaignRouter(NewCampaignHandler(nil, disp, nil, nil)), http.MethodPost, "/workspaces/ws-1/campaigns/camp-1/dispatch", "")
		assert.Equal(t, http.StatusNoContent, resp.Code)
	})

	t.Run("batch accepted", func(t *testing.T) {
		disp := new(MockDispatcher)
		disp.On("Execute", mock.Anything, in).Return(&usecase.ExecutionReceipt{ExecutionID: "exec-1", ProspectIDs: []string{"p-1"}}, nil)
		resp := serve(t, campaignRouter(NewCampaignHandler(nil, disp, nil, nil)), http.MethodPost, "/workspaces/ws-1/campaigns/camp-1/dispatch", "")
		require.Equal(t, http.StatusAccepted, resp.Code)
		assert.Equal(t, "exec-1", decode[usecase.ExecutionReceipt](t, resp).ExecutionID)
	})

	t.Run("engine down", func(t *testing.T) {
		disp := new(MockDispatcher)
		disp.On("Execute", mock.Anything, in).Return(nil, &usecase.DispatchTransportError{CampaignID: "camp-1", Err: errors.New("timeout")})
		resp := serve(t, campaignRouter(NewCampaignHandler(nil, disp, nil, nil)), http.MethodPost, "/workspaces/ws-1/campaigns/camp-1/dispatch", "")
		assert.Equal(t, http.StatusBadGateway, resp.Code)
		assert.Equal(t, "DISPATCH_FAILED", decode[ErrorResponse](t, resp).Error)
	})
}

func TestOperatorActionHandlers(t *testing.T) {
	tests := []struct {
		path   string
		method string
		action string
	}{
		{"/reset-queued", "ResetQueuedToPending", usecase.ActionResetQueuedToPending},
		{"/fail-queued", "MarkQueuedFailed", usecase.ActionMarkQueuedFailed},
		{"/reset-failed", "ResetFailedToPending", usecase.ActionResetFailedToPending},
	}
	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			op := new(MockOperator)
			in := usecase.OperatorActionInput{WorkspaceID: "ws-1", CampaignID: "camp-1", Actor: "maria", Reason: "engine outage"}
			op.On(tt.method, mock.Anything, in).Return(&usecase.OperatorActionOutput{Action: tt.action, ProspectIDs: []string{"p-1", "p-2"}}, nil)

			resp := serve(t, campaignRouter(NewCampaignHandler(nil, nil, op, nil)), http.MethodPost,
				"/workspaces/ws-1/campaigns/camp-1"+tt.path, `{"actor":"maria","reason":"engine outage"}`)

			require.Equal(t, http.StatusOK, resp.Code)
			out := decode[usecase.OperatorActionOutput](t, resp)
			assert.Equal(t, tt.action, out.Action)
			assert.Len(t, out.ProspectIDs, 2)
			op.AssertExpectations(t)
		})
	}

	t.Run("empty body uses defaults", func(t *testing.T) {
		op := new(MockOperator)
		op.On("ResetQueuedToPending", mock.Anything, usecase.OperatorActionInput{WorkspaceID: "ws-1", CampaignID: "camp-1"}).
			Return(&usecase.OperatorActionOutput{Action: usecase.ActionResetQueuedToPending}, nil)
		resp := serve(t, campaignRouter(NewCampaignHandler(nil, nil, op, nil)), http.MethodPost, "/workspaces/ws-1/campaigns/camp-1/reset-queued", "")
		assert.Equal(t, http.StatusOK, resp.Code)
	})
}

func sessionRouter(sh *SessionHandler, ph *ProspectHandler) chi.Router {
	r := chi.NewRouter()
	r.Post("/workspaces/{workspaceId}/sessions/{sessionId}/promote", sh.Promote)
	r.Get("/workspaces/{workspaceId}/sessions", sh.List)
	r.Get("/workspaces/{workspaceId}/prospects", ph.List)
	r.Get("/prospects/{prospectId}/history", ph.History)
	return r
}

func TestPromoteHandler(t *testing.T) {
	promoter := new(MockPromoter)
	promoter.On("Execute", mock.Anything, usecase.PromoteSessionInput{WorkspaceID: "ws-1", SessionID: "sess-1"}).
		Return(&usecase.PromoteSessionOutput{SessionID: "sess-1", Declared: 11, Staged: 10, Discrepancy: 1, Promoted: 10}, nil)

	resp := serve(t, sessionRouter(NewSessionHandler(promoter, nil, nil), NewProspectHandler(nil, nil)), http.MethodPost, "/workspaces/ws-1/sessions/sess-1/promote", "")

	require.Equal(t, http.StatusOK, resp.Code)
	out := decode[usecase.PromoteSessionOutput](t, resp)
	assert.Equal(t, 10, out.Promoted)
	assert.Equal(t, 1, out.Discrepancy)
}

func TestPromoteHandlerStrictMismatch(t *testing.T) {
	promoter := new(MockPromoter)
	promoter.On("Execute", mock.Anything, mock.Anything).
		Return(nil, usecase.ValidationError{Field: "total_prospects", Message: "session declares 11 prospects but 10 rows are staged"})

	resp := serve(t, sessionRouter(NewSessionHandler(promoter, nil, nil), NewProspectHandler(nil, nil)), http.MethodPost, "/workspaces/ws-1/sessions/sess-1/promote", "")

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	out := decode[ErrorResponse](t, resp)
	require.Len(t, out.Fields, 1)
	assert.Equal(t, "total_prospects", out.Fields[0].Field)
}

func TestListSessionsHandler(t *testing.T) {
	query := new(MockQuery)
	query.On("ListSessions", mock.Anything, "ws-1").Return([]entity.SessionSummary{
		{ApprovalSession: entity.ApprovalSession{ID: "sess-1", WorkspaceID: "ws-1", DeclaredTotal: 11}, StagedCount: 10},
	}, nil)

	resp := serve(t, sessionRouter(NewSessionHandler(nil, query, nil), NewProspectHandler(query, nil)), http.MethodGet, "/workspaces/ws-1/sessions", "")

	require.Equal(t, http.StatusOK, resp.Code)
	out := decode[[]map[string]any](t, resp)
	require.Len(t, out, 1)
	assert.Equal(t, 11.0, out[0]["total_prospects"])
	assert.Equal(t, 10.0, out[0]["staged_count"])
	assert.Equal(t, 1.0, out[0]["discrepancy"])
}

func TestListProspectsHandler(t *testing.T) {
	query := new(MockQuery)
	query.On("ListProspects", mock.Anything, entity.ProspectFilter{WorkspaceID: "ws-1", CampaignID: "camp-1", Status: entity.StatusQueued, Limit: 5}).
		Return([]*entity.Prospect{{ID: "p-1", Status: entity.StatusQueued}}, nil)
	query.On("ListProspects", mock.Anything, entity.ProspectFilter{WorkspaceID: "ws-1"}).Return(nil, nil)

	r := sessionRouter(NewSessionHandler(nil, query, nil), NewProspectHandler(query, nil))

	resp := serve(t, r, http.MethodGet, "/workspaces/ws-1/prospects?campaign_id=camp-1&status=queued&limit=5", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, decode[[]entity.Prospect](t, resp), 1)

	resp = serve(t, r, http.MethodGet, "/workspaces/ws-1/prospects", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, "[]", resp.Body.String())

	resp = serve(t, r, http.MethodGet, "/workspaces/ws-1/prospects?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestHistoryHandler(t *testing.T) {
	query := new(MockQuery)
	query.On("History", mock.Anything, "p-1").Return([]entity.StatusEvent{
		{ProspectID: "p-1", From: "", To: entity.StatusPending},
		{ProspectID: "p-1", From: entity.StatusPending, To: entity.StatusQueued},
	}, nil)
	query.On("History", mock.Anything, "missing").Return(nil, &usecase.DomainError{Code: "PROSPECT_NOT_FOUND", Message: "prospect not found"})

	r := sessionRouter(NewSessionHandler(nil, query, nil), NewProspectHandler(query, nil))

	resp := serve(t, r, http.MethodGet, "/prospects/p-1/history", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, decode[[]entity.StatusEvent](t, resp), 2)

	resp = serve(t, r, http.MethodGet, "/prospects/missing/history", "")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestHealthHandlerInMemory(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler(nil, nil, true).Handle(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	out := decode[HealthResponse](t, rec)
	assert.Equal(t, "healthy", out.Status)
	assert.Equal(t, "in-memory", out.Dependencies["database"])
	assert.Equal(t, "configured", out.Dependencies["automation_engine"])
}
