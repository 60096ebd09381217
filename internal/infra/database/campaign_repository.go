package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/xavierca1/linkedin-outreach/internal/entity"
)

const campaignColumns = `
	id, workspace_id, name, channel, campaign_type, message_templates, COALESCE(account_id, ''), active`

type CampaignRepository struct {
	DB *sql.DB
}

func (r *CampaignRepository) FindByID(ctx context.Context, workspaceID, id string) (*entity.Campaign, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT`+campaignColumns+`
		FROM campaigns
		WHERE id = $1 AND workspace_id = $2`, id, workspaceID)
	c, err := scanCampaign(row)
	if err == sql.ErrNoRows {
		return nil, entity.ErrNotFound
	}
	return c, err
}

func (r *CampaignRepository) ListActive(ctx context.Context) ([]*entity.Campaign, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT`+campaignColumns+`
		FROM campaigns
		WHERE active
		ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entity.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Save upserts a campaign. Used by seeding and tests.
func (r *CampaignRepository) Save(ctx context.Context, c *entity.Campaign) error {
	templates, err := json.Marshal(c.Templates)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, `
		INSERT INTO campaigns (id, workspace_id, name, channel, campaign_type, message_templates, account_id, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			channel = EXCLUDED.channel,
			campaign_type = EXCLUDED.campaign_type,
			message_templates = EXCLUDED.message_templates,
			account_id = EXCLUDED.account_id,
			active = EXCLUDED.active`,
		c.ID, c.WorkspaceID, c.Name, c.Channel, c.Type, string(templates), nullString(c.AccountID), c.Active)
	return err
}

func scanCampaign(s scanner) (*entity.Campaign, error) {
	var (
		c         entity.Campaign
		templates []byte
	)
	if err := s.Scan(&c.ID, &c.WorkspaceID, &c.Name, &c.Channel, &c.Type, &templates, &c.AccountID, &c.Active); err != nil {
		return nil, err
	}
	if len(templates) > 0 {
		if err := json.Unmarshal(templates, &c.Templates); err != nil {
			return nil, fmt.Errorf("campaign %s templates: %w", c.ID, err)
		}
	}
	return &c, nil
}
