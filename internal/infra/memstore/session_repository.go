package memstore

import (
	"context"
	"sort"

	"github.com/xavierca1/linkedin-outreach/internal/entity"
)

type SessionRepository struct {
	s *Store
}

func (r *SessionRepository) FindByID(_ context.Context, workspaceID, id string) (*entity.ApprovalSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	session, ok := r.s.sessions[id]
	if !ok || session.WorkspaceID != workspaceID {
		return nil, entity.ErrNotFound
	}
	cp := *session
	return &cp, nil
}

func (r *SessionRepository) ListStaged(_ context.Context, sessionID string) ([]*entity.StagedProspect, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rows := r.s.staged[sessionID]
	out := make([]*entity.StagedProspect, 0, len(rows))
	for _, row := range rows {
		cp := *row
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (r *SessionRepository) ListSummaries(_ context.Context, workspaceID string) ([]entity.SessionSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := []entity.SessionSummary{}
	for _, session := range r.s.sessions {
		if session.WorkspaceID != workspaceID {
			continue
		}
		out = append(out, entity.SessionSummary{
			ApprovalSession: *session,
			StagedCount:     len(r.s.staged[session.ID]),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
