package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/xavierca1/linkedin-outreach/internal/entity"
)

const accountColumns = `
	id, workspace_id, channel, name, provider_account_id, connection_status, send_delay_minutes, daily_limit`

type AccountRepository struct {
	DB *sql.DB
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*entity.Account, error) {
	row := r.DB.QueryRowContext(ctx, "SELECT"+accountColumns+" FROM accounts WHERE id = $1", id)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, entity.ErrNotFound
	}
	return a, err
}

func (r *AccountRepository) ListByWorkspaceChannel(ctx context.Context, workspaceID, channel string) ([]*entity.Account, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT`+accountColumns+`
		FROM accounts
		WHERE workspace_id = $1 AND channel = $2
		ORDER BY id`, workspaceID, channel)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entity.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *AccountRepository) GetWatermark(ctx context.Context, accountID string) (entity.Watermark, error) {
	var (
		wm   entity.Watermark
		slot sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx, `
		SELECT watermark_slot, watermark_day_count FROM accounts WHERE id = $1`, accountID).
		Scan(&slot, &wm.DayCount)
	if err == sql.ErrNoRows {
		return entity.Watermark{}, entity.ErrNotFound
	}
	if err != nil {
		return entity.Watermark{}, err
	}
	if slot.Valid {
		wm.LastSlot = slot.Time.UTC()
	}
	return wm, nil
}

func (r *AccountRepository) SaveWatermark(ctx context.Context, accountID string, wm entity.Watermark) error {
	var slot *time.Time
	if !wm.LastSlot.IsZero() {
		slot = &wm.LastSlot
	}
	res, err := r.DB.ExecContext(ctx, `
		UPDATE accounts SET watermark_slot = $2, watermark_day_count = $3
		WHERE id = $1`, accountID, slot, wm.DayCount)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return entity.ErrNotFound
	}
	return nil
}

// Save upserts an account without touching its watermark.
func (r *AccountRepository) Save(ctx context.Context, a *entity.Account) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO accounts (id, workspace_id, channel, name, provider_account_id, connection_status, send_delay_minutes, daily_limit)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			workspace_id = EXCLUDED.workspace_id,
			channel = EXCLUDED.channel,
			name = EXCLUDED.name,
			provider_account_id = EXCLUDED.provider_account_id,
			connection_status = EXCLUDED.connection_status,
			send_delay_minutes = EXCLUDED.send_delay_minutes,
			daily_limit = EXCLUDED.daily_limit`,
		a.ID, a.WorkspaceID, a.Channel, a.Name, a.ProviderAccountID, a.ConnectionStatus,
		int(a.SendDelay/time.Minute), a.DailyLimit)
	return err
}

func scanAccount(s scanner) (*entity.Account, error) {
	var (
		a            entity.Account
		delayMinutes int
	)
	err := s.Scan(&a.ID, &a.WorkspaceID, &a.Channel, &a.Name, &a.ProviderAccountID, &a.ConnectionStatus, &delayMinutes, &a.DailyLimit)
	if err != nil {
		return nil, err
	}
	a.SendDelay = time.Duration(delayMinutes) * time.Minute
	return &a, nil
}
