package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/linkedin-outreach/internal/entity"
	"github.com/xavierca1/linkedin-outreach/internal/infra/integration/automation"
)

func TestScheduleCampaignSpacesSlotsInStagingOrder(t *testing.T) {
	f := newFixture(t)
	ids := f.addPending(t, "camp-1", 4)

	out := f.scheduleAndQueue(t, "camp-1")

	require.Len(t, out.Slots, 4)
	for i, slot := range out.Slots {
		assert.Equal(t, ids[i], slot.ProspectID)
		assert.Equal(t, monday.Add(time.Duration(i)*10*time.Minute), slot.ScheduledAt)

		p := f.prospect(t, slot.ProspectID)
		assert.Equal(t, entity.StatusQueued, p.Status)
		require.NotNil(t, p.ScheduledSendAt)
		assert.Equal(t, slot.ScheduledAt, *p.ScheduledSendAt)
		assert.NoError(t, p.CheckInvariants())
	}

	wm, err := f.store.Accounts().GetWatermark(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.Equal(t, out.Slots[3].ScheduledAt, wm.LastSlot)
	f.assertLegalHistory(t, ids...)
}

func TestScheduleCampaignSharesWatermarkAcrossCampaigns(t *testing.T) {
	f := newFixture(t)
	f.store.PutCampaign(campaign("camp-2", "acc-1"))
	f.addPending(t, "camp-1", 2)
	f.addPending(t, "camp-2", 2)

	first := f.scheduleAndQueue(t, "camp-1")
	second := f.scheduleAndQueue(t, "camp-2")

	assert.Equal(t, monday.Add(20*time.Minute), second.Slots[0].ScheduledAt)
	assert.Equal(t, first.Slots[1].ScheduledAt.Add(10*time.Minute), second.Slots[0].ScheduledAt)
}

func TestScheduleCampaignDisconnectedAccountLeavesProspectsPending(t *testing.T) {
	f := newFixture(t)
	f.store.PutAccount(&entity.Account{
		ID:               "acc-1",
		WorkspaceID:      "ws-1",
		Channel:          entity.ChannelLinkedIn,
		ConnectionStatus: entity.ConnectionDisconnected,
	})
	ids := f.addPending(t, "camp-1", 3)

	out, err := f.schedule.Execute(context.Background(), ScheduleCampaignInput{WorkspaceID: "ws-1", CampaignID: "camp-1"})

	assert.Nil(t, out)
	var unavailable *AccountUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.True(t, IsRecoverable(err))
	for _, id := range ids {
		p := f.prospect(t, id)
		assert.Equal(t, entity.StatusPending, p.Status)
		assert.Nil(t, p.ScheduledSendAt)
	}
}

func TestScheduleCampaignRequiresConnectionTemplate(t *testing.T) {
	f := newFixture(t)
	c := campaign("camp-1", "acc-1")
	c.Templates.ConnectionRequest = ""
	f.store.PutCampaign(c)
	f.addPending(t, "camp-1", 1)

	_, err := f.schedule.Execute(context.Background(), ScheduleCampaignInput{WorkspaceID: "ws-1", CampaignID: "camp-1"})

	var de *DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "CAMPAIGN_NOT_READY", de.Code)
}

func TestScheduleCampaignDefersPastHorizon(t *testing.T) {
	f := newFixture(t)
	f.schedule.Settings.Horizon = 15 * time.Minute
	ids := f.addPending(t, "camp-1", 4)

	out := f.scheduleAndQueue(t, "camp-1")

	require.Len(t, out.Slots, 2)
	require.NotNil(t, out.Deferral)
	assert.Equal(t, 2, out.Deferral.Deferred)
	assert.Equal(t, monday.Add(20*time.Minute), out.Deferral.NextSlot)
	assert.Equal(t, entity.StatusPending, f.prospect(t, ids[2]).Status)

	wm, _ := f.store.Accounts().GetWatermark(context.Background(), "acc-1")
	assert.Equal(t, monday.Add(10*time.Minute), wm.LastSlot)
}

func TestScheduleCampaignLeaseHeldByAnotherInstance(t *testing.T) {
	f := newFixture(t)
	f.addPending(t, "camp-1", 1)
	ok, err := f.store.Leases().TryAcquire(context.Background(), scheduleLeaseKey("acc-1"), "other-instance", monday, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.schedule.Execute(context.Background(), ScheduleCampaignInput{WorkspaceID: "ws-1", CampaignID: "camp-1"})

	assert.True(t, errors.Is(err, ErrLeaseHeld))
	assert.True(t, IsRecoverable(err))
}

func TestConcurrentScheduleAndDispatchOnSharedAccount(t *testing.T) {
	f := newFixture(t)
	f.leases.Wait = 2 * time.Second
	f.leases.Poll = 5 * time.Millisecond
	f.store.PutCampaign(campaign("camp-2", "acc-1"))
	ids := append(f.addPending(t, "camp-1", 5), f.addPending(t, "camp-2", 5)...)

	f.engine.On("Dispatch", mock.Anything, mock.Anything).Return(&automation.DispatchResponse{ExecutionID: "exec"}, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for _, id := range []string{"camp-1", "camp-2"} {
		wg.Add(1)
		go func(campaignID string) {
			defer wg.Done()
			ctx := context.Background()
			if _, err := f.schedule.Execute(ctx, ScheduleCampaignInput{WorkspaceID: "ws-1", CampaignID: campaignID}); err != nil {
				errs <- err
				return
			}
			if _, err := f.dispatch.Execute(ctx, DispatchCampaignInput{WorkspaceID: "ws-1", CampaignID: campaignID}); err != nil {
				errs <- err
			}
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var slots []time.Time
	for _, id := range ids {
		p := f.prospect(t, id)
		require.Equal(t, entity.StatusQueued, p.Status)
		require.NotNil(t, p.ScheduledSendAt)
		slots = append(slots, *p.ScheduledSendAt)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Before(slots[j]) })
	for i := 1; i < len(slots); i++ {
		assert.GreaterOrEqual(t, slots[i].Sub(slots[i-1]), 10*time.Minute)
	}
	f.assertLegalHistory(t, ids...)
}
