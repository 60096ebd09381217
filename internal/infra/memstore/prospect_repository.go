package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/xavierca1/linkedin-outreach/internal/entity"
)

type ProspectRepository struct {
	s *Store
}

func (r *ProspectRepository) InsertIfAbsent(_ context.Context, p *entity.Prospect) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.prospects {
		if existing.CampaignID == p.CampaignID && entity.ProfileKey(existing.ProfileID) == entity.ProfileKey(p.ProfileID) {
			return false, nil
		}
	}

	r.s.prospects[p.ID] = cloneProspect(p)
	r.s.events = append(r.s.events, entity.StatusEvent{
		ProspectID: p.ID,
		To:         p.Status,
		Actor:      "approval_gate",
		Reason:     "promoted from session " + p.SessionID,
		At:         p.CreatedAt,
	})
	return true, nil
}

func (r *ProspectRepository) FindByID(_ context.Context, id string) (*entity.Prospect, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.prospects[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	return cloneProspect(p), nil
}

func (r *ProspectRepository) FindByProviderMessageID(_ context.Context, providerMessageID string) ([]*entity.Prospect, error) {
	return r.collect(func(p *entity.Prospect) bool {
		return p.ProviderMessageID == providerMessageID
	}, byCreated, 0), nil
}

func (r *ProspectRepository) ListByCampaignStatus(_ context.Context, campaignID string, status entity.Status, n int) ([]*entity.Prospect, error) {
	return r.collect(func(p *entity.Prospect) bool {
		return p.CampaignID == campaignID && p.Status == status
	}, byStaged, n), nil
}

func (r *ProspectRepository) ListDue(_ context.Context, campaignID string, now time.Time, n int) ([]*entity.Prospect, error) {
	return r.collect(func(p *entity.Prospect) bool {
		return p.CampaignID == campaignID &&
			p.Status == entity.StatusQueued &&
			p.DispatchedAt == nil &&
			p.ScheduledSendAt != nil && !p.ScheduledSendAt.After(now) &&
			(p.NextAttemptAt == nil || !p.NextAttemptAt.After(now))
	}, bySchedule, n), nil
}

func (r *ProspectRepository) ListAwaitingOutcome(_ context.Context, n int) ([]*entity.Prospect, error) {
	return r.collect(func(p *entity.Prospect) bool {
		return (p.Status == entity.StatusQueued && p.DispatchedAt != nil) ||
			p.Status == entity.StatusConnectionRequested
	}, byStaged, n), nil
}

func (r *ProspectRepository) List(_ context.Context, f entity.ProspectFilter) ([]*entity.Prospect, error) {
	return r.collect(func(p *entity.Prospect) bool {
		return p.WorkspaceID == f.WorkspaceID &&
			(f.CampaignID == "" || p.CampaignID == f.CampaignID) &&
			(f.Status == "" || p.Status == f.Status)
	}, byStaged, f.Limit), nil
}

func (r *ProspectRepository) History(_ context.Context, prospectID string) ([]entity.StatusEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []entity.StatusEvent
	for _, ev := range r.s.events {
		if ev.ProspectID == prospectID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (r *ProspectRepository) AssignSchedule(_ context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.prospects[id]
	if !ok {
		return entity.ErrNotFound
	}
	if p.Status != entity.StatusPending {
		return entity.ErrConflict
	}
	p.ScheduledSendAt = &at
	return nil
}

func (r *ProspectRepository) ClearSchedule(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.prospects[id]
	if !ok {
		return entity.ErrNotFound
	}
	if p.Status == entity.StatusPending {
		p.ScheduledSendAt = nil
	}
	return nil
}

func (r *ProspectRepository) Transition(_ context.Context, t entity.Transition) error {
	if !entity.CanTransition(t.From, t.To) || entity.OperatorOnly(t.From, t.To) {
		return entity.ErrIllegalTransition
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.prospects[t.ProspectID]
	if !ok {
		return entity.ErrNotFound
	}
	if p.Status != t.From {
		return entity.ErrConflict
	}
	r.s.apply(p, t)
	return nil
}

func (r *ProspectRepository) BulkTransition(_ context.Context, bt entity.BulkTransition) ([]string, error) {
	if !entity.CanTransition(bt.From, bt.To) {
		return nil, entity.ErrIllegalTransition
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var ids []string
	for _, p := range r.s.sorted(byStaged) {
		if p.WorkspaceID != bt.WorkspaceID || p.CampaignID != bt.CampaignID || p.Status != bt.From {
			continue
		}
		r.s.apply(p, entity.Transition{
			ProspectID: p.ID,
			From:       bt.From,
			To:         bt.To,
			At:         bt.At,
			Actor:      bt.Actor,
			Reason:     bt.Reason,
		})
		ids = append(ids, p.ID)
	}
	return ids, nil
}

func (r *ProspectRepository) MarkDispatched(_ context.Context, ids []string, executionID string, at time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	marked := 0
	for _, id := range ids {
		p, ok := r.s.prospects[id]
		if !ok || p.Status != entity.StatusQueued || p.DispatchedAt != nil {
			continue
		}
		p.DispatchedAt = &at
		p.ExecutionID = executionID
		p.NextAttemptAt = nil
		p.UpdatedAt = at
		marked++
	}
	return marked, nil
}

func (r *ProspectRepository) RecordDispatchFailure(_ context.Context, f entity.DispatchFailure) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.prospects[f.ProspectID]
	if !ok {
		return entity.ErrNotFound
	}
	if p.Status != entity.StatusQueued || p.DispatchedAt != nil {
		return entity.ErrConflict
	}
	next := f.NextAttemptAt
	p.DispatchAttempts = f.Attempts
	p.NextAttemptAt = &next
	p.FailureReason = f.Reason
	return nil
}

// apply runs with s.mu held.
func (s *Store) apply(p *entity.Prospect, t entity.Transition) {
	from := p.Status
	p.Apply(t)
	s.events = append(s.events, entity.StatusEvent{
		ProspectID: p.ID,
		From:       from,
		To:         t.To,
		Actor:      t.Actor,
		Reason:     t.Reason,
		At:         t.At,
	})
}

type ordering func(a, b *entity.Prospect) bool

func byStaged(a, b *entity.Prospect) bool {
	if a.StagedSeq != b.StagedSeq {
		return a.StagedSeq < b.StagedSeq
	}
	return byCreated(a, b)
}

func byCreated(a, b *entity.Prospect) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// bySchedule puts unscheduled prospects last.
func bySchedule(a, b *entity.Prospect) bool {
	switch {
	case a.ScheduledSendAt == nil && b.ScheduledSendAt == nil:
		return byStaged(a, b)
	case a.ScheduledSendAt == nil:
		return false
	case b.ScheduledSendAt == nil:
		return true
	case !a.ScheduledSendAt.Equal(*b.ScheduledSendAt):
		return a.ScheduledSendAt.Before(*b.ScheduledSendAt)
	}
	return byStaged(a, b)
}

// sorted runs with s.mu held and returns live pointers.
func (s *Store) sorted(less ordering) []*entity.Prospect {
	out := make([]*entity.Prospect, 0, len(s.prospects))
	for _, p := range s.prospects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func (r *ProspectRepository) collect(match func(*entity.Prospect) bool, less ordering, n int) []*entity.Prospect {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*entity.Prospect
	for _, p := range r.s.sorted(less) {
		if match(p) {
			out = append(out, cloneProspect(p))
		}
	}
	return limit(out, n)
}
