package memstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/linkedin-outreach/internal/entity"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newProspect(id, profile string, seq int64) *entity.Prospect {
	return &entity.Prospect{
		ID:          id,
		WorkspaceID: "ws-1",
		CampaignID:  "camp-1",
		ProfileID:   profile,
		StagedSeq:   seq,
		Status:      entity.StatusPending,
		CreatedAt:   t0,
	}
}

func TestInsertIfAbsentDedupesByCampaignAndProfile(t *testing.T) {
	ctx := context.Background()
	repo := New().Prospects()

	inserted, err := repo.InsertIfAbsent(ctx, newProspect("p1", "https://www.linkedin.com/in/ana", 1))
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.InsertIfAbsent(ctx, newProspect("p2", "https://www.linkedin.com/in/ana", 2))
	require.NoError(t, err)
	assert.False(t, inserted)

	other := newProspect("p3", "https://www.linkedin.com/in/ana", 1)
	other.CampaignID = "camp-2"
	inserted, err = repo.InsertIfAbsent(ctx, other)
	require.NoError(t, err)
	assert.True(t, inserted)
}

func TestTransitionCompareAndSet(t *testing.T) {
	ctx := context.Background()
	repo := New().Prospects()
	_, err := repo.InsertIfAbsent(ctx, newProspect("p1", "ana", 1))
	require.NoError(t, err)

	require.NoError(t, repo.AssignSchedule(ctx, "p1", t0.Add(time.Hour)))
	require.NoError(t, repo.Transition(ctx, entity.Transition{ProspectID: "p1", From: entity.StatusPending, To: entity.StatusQueued, At: t0}))

	err = repo.Transition(ctx, entity.Transition{ProspectID: "p1", From: entity.StatusPending, To: entity.StatusQueued, At: t0})
	assert.ErrorIs(t, err, entity.ErrConflict)

	err = repo.Transition(ctx, entity.Transition{ProspectID: "p1", From: entity.StatusQueued, To: entity.StatusConnectionRequestSent, At: t0})
	assert.ErrorIs(t, err, entity.ErrIllegalTransition)

	err = repo.Transition(ctx, entity.Transition{ProspectID: "missing", From: entity.StatusPending, To: entity.StatusQueued, At: t0})
	assert.ErrorIs(t, err, entity.ErrNotFound)

	p, err := repo.FindByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusQueued, p.Status)
	require.NotNil(t, p.ScheduledSendAt)
}

func TestFailedToPendingOnlyThroughBulk(t *testing.T) {
	ctx := context.Background()
	repo := New().Prospects()
	p := newProspect("p1", "ana", 1)
	p.Status = entity.StatusFailed
	_, err := repo.InsertIfAbsent(ctx, p)
	require.NoError(t, err)

	err = repo.Transition(ctx, entity.Transition{ProspectID: "p1", From: entity.StatusFailed, To: entity.StatusPending, At: t0})
	assert.ErrorIs(t, err, entity.ErrIllegalTransition)

	ids, err := repo.BulkTransition(ctx, entity.BulkTransition{
		WorkspaceID: "ws-1", CampaignID: "camp-1",
		From: entity.StatusFailed, To: entity.StatusPending, At: t0, Actor: "ops",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, ids)
}

func TestBulkTransitionClearsScheduleAndRecordsHistory(t *testing.T) {
	ctx := context.Background()
	repo := New().Prospects()
	for i, id := range []string{"p1", "p2", "p3"} {
		_, err := repo.InsertIfAbsent(ctx, newProspect(id, id, int64(i)))
		require.NoError(t, err)
	}
	for _, id := range []string{"p1", "p2"} {
		require.NoError(t, repo.AssignSchedule(ctx, id, t0))
		require.NoError(t, repo.Transition(ctx, entity.Transition{ProspectID: id, From: entity.StatusPending, To: entity.StatusQueued, At: t0, Actor: "scheduler"}))
	}

	ids, err := repo.BulkTransition(ctx, entity.BulkTransition{
		WorkspaceID: "ws-1", CampaignID: "camp-1",
		From: entity.StatusQueued, To: entity.StatusFailed, At: t0, Actor: "ops", Reason: "bad copy",
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"p1", "p2"}, ids)

	p, err := repo.FindByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusFailed, p.Status)
	assert.Nil(t, p.ScheduledSendAt)
	assert.Equal(t, "bad copy", p.FailureReason)

	history, err := repo.History(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	for _, ev := range history {
		assert.True(t, entity.CanTransition(ev.From, ev.To), "%s -> %s", ev.From, ev.To)
	}
}

func TestListDueSkipsFutureDispatchedAndBackedOff(t *testing.T) {
	ctx := context.Background()
	repo := New().Prospects()
	slots := map[string]time.Time{
		"due":        t0.Add(-time.Minute),
		"future":     t0.Add(time.Minute),
		"dispatched": t0.Add(-2 * time.Minute),
		"backoff":    t0.Add(-3 * time.Minute),
	}
	seq := int64(0)
	for id, at := range slots {
		seq++
		_, err := repo.InsertIfAbsent(ctx, newProspect(id, id, seq))
		require.NoError(t, err)
		require.NoError(t, repo.AssignSchedule(ctx, id, at))
		require.NoError(t, repo.Transition(ctx, entity.Transition{ProspectID: id, From: entity.StatusPending, To: entity.StatusQueued, At: t0}))
	}
	_, err := repo.MarkDispatched(ctx, []string{"dispatched"}, "exec-1", t0)
	require.NoError(t, err)
	require.NoError(t, repo.RecordDispatchFailure(ctx, entity.DispatchFailure{ProspectID: "backoff", Attempts: 1, NextAttemptAt: t0.Add(time.Minute)}))

	due, err := repo.ListDue(ctx, "camp-1", t0, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "due", due[0].ID)

	awaiting, err := repo.ListAwaitingOutcome(ctx, 10)
	require.NoError(t, err)
	require.Len(t, awaiting, 1)
	assert.Equal(t, "dispatched", awaiting[0].ID)
}

func TestLeaseRepository(t *testing.T) {
	ctx := context.Background()
	repo := New().Leases()

	ok, err := repo.TryAcquire(ctx, "k", "a", t0, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = repo.TryAcquire(ctx, "k", "b", t0.Add(30*time.Second), time.Minute)
	assert.False(t, ok)

	ok, _ = repo.TryAcquire(ctx, "k", "b", t0.Add(2*time.Minute), time.Minute)
	assert.True(t, ok, "expired lease is taken over")

	require.NoError(t, repo.Release(ctx, "k", "a"))
	ok, _ = repo.TryAcquire(ctx, "k", "c", t0.Add(2*time.Minute), time.Minute)
	assert.False(t, ok, "release by a stale holder is ignored")
}

func TestLoadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
campaigns:
  - id: camp-1
    workspace_id: ws-1
    name: Founders Q2
    active: true
    account_id: acc-1
    connection_request: "Hi {first_name}"
accounts:
  - id: acc-1
    workspace_id: ws-1
    connection_status: connected
    send_delay_minutes: 7
sessions:
  - id: sess-1
    workspace_id: ws-1
    campaign_id: camp-1
    total_prospects: 2
    staged:
      - id: row-1
        first_name: Ana
        profile_id: https://www.linkedin.com/in/ana
        contact:
          company: Acme
      - id: row-2
        first_name: Bruno
        profile_id: https://www.linkedin.com/in/bruno
        decision: rejected
`), 0o600))

	seed, err := LoadSeedFile(path)
	require.NoError(t, err)

	store := New()
	require.NoError(t, seed.Apply(store))
	ctx := context.Background()

	c, err := store.Campaigns().FindByID(ctx, "ws-1", "camp-1")
	require.NoError(t, err)
	assert.Equal(t, entity.ChannelLinkedIn, c.Channel)
	assert.NoError(t, c.Ready())

	a, err := store.Accounts().FindByID(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, 7*time.Minute, a.SendDelay)

	rows, err := store.Sessions().ListStaged(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1), rows[0].Seq)
	assert.JSONEq(t, `{"company":"Acme"}`, string(rows[0].Contact))
	assert.Equal(t, entity.DecisionRejected, rows[1].Decision)

	summaries, err := store.Sessions().ListSummaries(ctx, "ws-1")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Zero(t, summaries[0].Discrepancy())
}

func TestInsertIfAbsentFoldsProfileCase(t *testing.T) {
	ctx := context.Background()
	repo := New().Prospects()

	inserted, err := repo.InsertIfAbsent(ctx, newProspect("p1", "https://www.linkedin.com/in/Ana-Lima", 1))
	require.NoError(t, err)
	require.True(t, inserted)

	inserted, err = repo.InsertIfAbsent(ctx, newProspect("p2", "https://www.linkedin.com/in/ana-lima", 2))
	require.NoError(t, err)
	assert.False(t, inserted)

	p, err := repo.FindByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "https://www.linkedin.com/in/Ana-Lima", p.ProfileID)
}

func TestStagedSequenceSpansSessions(t *testing.T) {
	ctx := context.Background()
	store := New()
	row := func(id string) *entity.StagedProspect {
		return &entity.StagedProspect{ID: id, FirstName: id, ProfileID: "https://www.linkedin.com/in/" + id}
	}

	store.PutSession(&entity.ApprovalSession{ID: "sess-a", WorkspaceID: "ws-1", CampaignID: "camp-1"}, row("a1"), row("a2"))
	store.PutSession(&entity.ApprovalSession{ID: "sess-b", WorkspaceID: "ws-1", CampaignID: "camp-1"}, row("b1"), row("b2"))

	var promoted []string
	for _, sessionID := range []string{"sess-a", "sess-b"} {
		session, err := store.Sessions().FindByID(ctx, "ws-1", sessionID)
		require.NoError(t, err)
		rows, err := store.Sessions().ListStaged(ctx, sessionID)
		require.NoError(t, err)
		for _, r := range rows {
			p := entity.NewProspectFromStaged(session, r, t0)
			_, err := store.Prospects().InsertIfAbsent(ctx, p)
			require.NoError(t, err)
		}
	}

	b, err := store.Sessions().ListStaged(ctx, "sess-b")
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 4}, []int64{b[0].Seq, b[1].Seq})

	pending, err := store.Prospects().ListByCampaignStatus(ctx, "camp-1", entity.StatusPending, 0)
	require.NoError(t, err)
	for _, p := range pending {
		promoted = append(promoted, p.FirstName)
	}
	assert.Equal(t, []string{"a1", "a2", "b1", "b2"}, promoted)
}
