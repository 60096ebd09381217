package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/xavierca1/linkedin-outreach/internal/infra/memstore"
)

// ApplySeed upserts a dev fixture into PostgreSQL. Staged rows are inserted
// in file order so the BIGSERIAL sequence keeps staging order.
func ApplySeed(ctx context.Context, db *sql.DB, seed *memstore.Seed) error {
	campaigns, accounts, sessions, err := seed.Entities()
	if err != nil {
		return err
	}

	accountRepo := &AccountRepository{DB: db}
	for _, a := range accounts {
		if err := accountRepo.Save(ctx, a); err != nil {
			return fmt.Errorf("seed account %s: %w", a.ID, err)
		}
	}
	campaignRepo := &CampaignRepository{DB: db}
	for _, c := range campaigns {
		if err := campaignRepo.Save(ctx, c); err != nil {
			return fmt.Errorf("seed campaign %s: %w", c.ID, err)
		}
	}
	sessionRepo := &SessionRepository{DB: db}
	for _, ss := range sessions {
		if err := sessionRepo.Save(ctx, ss.Session, ss.Rows); err != nil {
			return fmt.Errorf("seed session %s: %w", ss.Session.ID, err)
		}
	}
	return nil
}
