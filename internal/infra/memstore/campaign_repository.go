package memstore

import (
	"context"
	"sort"

	"github.com/xavierca1/linkedin-outreach/internal/entity"
)

type CampaignRepository struct {
	s *Store
}

func (r *CampaignRepository) FindByID(_ context.Context, workspaceID, id string) (*entity.Campaign, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.campaigns[id]
	if !ok || c.WorkspaceID != workspaceID {
		return nil, entity.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *CampaignRepository) ListActive(_ context.Context) ([]*entity.Campaign, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*entity.Campaign
	for _, c := range r.s.campaigns {
		if c.Active {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
