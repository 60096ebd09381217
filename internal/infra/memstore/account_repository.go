package memstore

import (
	"context"
	"sort"

	"github.com/xavierca1/linkedin-outreach/internal/entity"
)

type AccountRepository struct {
	s *Store
}

func (r *AccountRepository) FindByID(_ context.Context, id string) (*entity.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.accounts[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *AccountRepository) ListByWorkspaceChannel(_ context.Context, workspaceID, channel string) ([]*entity.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*entity.Account
	for _, a := range r.s.accounts {
		if a.WorkspaceID == workspaceID && a.Channel == channel {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *AccountRepository) GetWatermark(_ context.Context, accountID string) (entity.Watermark, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.watermarks[accountID], nil
}

func (r *AccountRepository) SaveWatermark(_ context.Context, accountID string, wm entity.Watermark) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.watermarks[accountID] = wm
	return nil
}
