package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/linkedin-outreach/internal/entity"
	"github.com/xavierca1/linkedin-outreach/internal/infra/integration/automation"
	"github.com/xavierca1/linkedin-outreach/internal/infra/memstore"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// MockEngine
type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) Dispatch(ctx context.Context, req automation.DispatchRequest) (*automation.DispatchResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*automation.DispatchResponse), args.Error(1)
}

func (m *MockEngine) FetchOutcomes(ctx context.Context, ids []string) ([]automation.OutcomeEvent, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]automation.OutcomeEvent), args.Error(1)
}

// MockNotifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Alert(ctx context.Context, a OperatorAlert) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

// Monday 09:00 UTC
var monday = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store    *memstore.Store
	clock    *fakeClock
	engine   *MockEngine
	pool     *AccountPool
	leases   *LeaseManager
	schedule *ScheduleCampaignUseCase
	dispatch *DispatchCampaignUseCase
	recon    *ReconcileOutcomeUseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	store.PutAccount(&entity.Account{
		ID:               "acc-1",
		WorkspaceID:      "ws-1",
		Channel:          entity.ChannelLinkedIn,
		ConnectionStatus: entity.ConnectionConnected,
		SendDelay:        10 * time.Minute,
	})
	store.PutCampaign(campaign("camp-1", "acc-1"))

	clock := newFakeClock(monday)
	engine := new(MockEngine)
	pool := NewAccountPool(store.Accounts(), nil, nil)
	leases := NewLeaseManager(store.Leases(), clock, 0, nil)

	f := &fixture{store: store, clock: clock, engine: engine, pool: pool, leases: leases}
	f.schedule = NewScheduleCampaignUseCase(store.Campaigns(), store.Prospects(), store.Accounts(), pool, leases, nil, clock,
		ScheduleSettings{DefaultDelay: 5 * time.Minute, LeaseTTL: time.Minute}, nil)
	f.dispatch = NewDispatchCampaignUseCase(store.Campaigns(), store.Prospects(), pool, leases, engine, nil, nil, clock,
		DispatchSettings{
			BatchSize: 50,
			Timeout:   time.Second,
			LeaseTTL:  time.Minute,
			Retry:     RetryPolicy{MaxAttempts: 3, BaseDelay: time.Minute, MaxDelay: 10 * time.Minute},
		}, nil)
	f.recon = NewReconcileOutcomeUseCase(store.Prospects(), engine, nil, clock, time.Second, nil)
	return f
}

func campaign(id, accountID string) *entity.Campaign {
	return &entity.Campaign{
		ID:          id,
		WorkspaceID: "ws-1",
		Name:        "Campaign " + id,
		Channel:     entity.ChannelLinkedIn,
		Type:        entity.CampaignTypeConnector,
		AccountID:   accountID,
		Active:      true,
		Templates:   entity.MessageTemplates{ConnectionRequest: "Hi {first_name}, let's connect"},
	}
}

// addPending inserts n pending prospects into the campaign and returns their ids in staging order.
func (f *fixture) addPending(t *testing.T, campaignID string, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%s-p%d", campaignID, i+1)
		_, err := f.store.Prospects().InsertIfAbsent(context.Background(), &entity.Prospect{
			ID:          id,
			WorkspaceID: "ws-1",
			CampaignID:  campaignID,
			FirstName:   "Prospect",
			LastName:    fmt.Sprint(i + 1),
			ProfileID:   fmt.Sprintf("https://www.linkedin.com/in/%s", id),
			StagedSeq:   int64(i + 1),
			Status:      entity.StatusPending,
			CreatedAt:   monday,
		})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func (f *fixture) prospect(t *testing.T, id string) *entity.Prospect {
	t.Helper()
	p, err := f.store.Prospects().FindByID(context.Background(), id)
	require.NoError(t, err)
	return p
}

func (f *fixture) scheduleAndQueue(t *testing.T, campaignID string) *ScheduleCampaignOutput {
	t.Helper()
	out, err := f.schedule.Execute(context.Background(), ScheduleCampaignInput{WorkspaceID: "ws-1", CampaignID: campaignID})
	require.NoError(t, err)
	return out
}

// assertLegalHistory checks every recorded status change follows the state machine.
func (f *fixture) assertLegalHistory(t *testing.T, ids ...string) {
	t.Helper()
	for _, id := range ids {
		events, err := f.store.Prospects().History(context.Background(), id)
		require.NoError(t, err)
		for _, ev := range events {
			require.Truef(t, entity.CanTransition(ev.From, ev.To), "prospect %s: illegal edge %q -> %q", id, ev.From, ev.To)
		}
	}
}
