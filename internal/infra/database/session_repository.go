package database

import (
	"context"
	"database/sql"

	"github.com/xavierca1/linkedin-outreach/internal/entity"
)

type SessionRepository struct {
	DB *sql.DB
}

func (r *SessionRepository) FindByID(ctx context.Context, workspaceID, id string) (*entity.ApprovalSession, error) {
	query := `
		SELECT id, workspace_id, campaign_id, campaign_name, tag, total_prospects, created_at
		FROM approval_sessions
		WHERE id = $1 AND workspace_id = $2
	`
	var s entity.ApprovalSession
	err := r.DB.QueryRowContext(ctx, query, id, workspaceID).Scan(
		&s.ID,
		&s.WorkspaceID,
		&s.CampaignID,
		&s.CampaignName,
		&s.Tag,
		&s.DeclaredTotal,
		&s.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.CreatedAt = s.CreatedAt.UTC()
	return &s, nil
}

func (r *SessionRepository) ListStaged(ctx context.Context, sessionID string) ([]*entity.StagedProspect, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, session_id, seq, first_name, last_name, profile_id, contact, decision
		FROM staged_prospects
		WHERE session_id = $1
		ORDER BY seq`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entity.StagedProspect
	for rows.Next() {
		var (
			sp      entity.StagedProspect
			contact []byte
		)
		if err := rows.Scan(&sp.ID, &sp.SessionID, &sp.Seq, &sp.FirstName, &sp.LastName, &sp.ProfileID, &contact, &sp.Decision); err != nil {
			return nil, err
		}
		if len(contact) > 0 {
			sp.Contact = contact
		}
		out = append(out, &sp)
	}
	return out, rows.Err()
}

func (r *SessionRepository) ListSummaries(ctx context.Context, workspaceID string) ([]entity.SessionSummary, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT s.id, s.workspace_id, s.campaign_id, s.campaign_name, s.tag, s.total_prospects, s.created_at,
		       COUNT(sp.id)
		FROM approval_sessions s
		LEFT JOIN staged_prospects sp ON sp.session_id = s.id
		WHERE s.workspace_id = $1
		GROUP BY s.id
		ORDER BY s.created_at DESC`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []entity.SessionSummary{}
	for rows.Next() {
		var s entity.SessionSummary
		err := rows.Scan(
			&s.ID,
			&s.WorkspaceID,
			&s.CampaignID,
			&s.CampaignName,
			&s.Tag,
			&s.DeclaredTotal,
			&s.CreatedAt,
			&s.StagedCount,
		)
		if err != nil {
			return nil, err
		}
		s.CreatedAt = s.CreatedAt.UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}

// Save stores a session and replaces its staged rows, as the ingestion
// process would.
func (r *SessionRepository) Save(ctx context.Context, s *entity.ApprovalSession, rows []*entity.StagedProspect) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO approval_sessions (id, workspace_id, campaign_id, campaign_name, tag, total_prospects, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))
		ON CONFLICT (id) DO UPDATE SET
			campaign_name = EXCLUDED.campaign_name,
			tag = EXCLUDED.tag,
			total_prospects = EXCLUDED.total_prospects`,
		s.ID, s.WorkspaceID, s.CampaignID, s.CampaignName, s.Tag, s.DeclaredTotal, nullTimeValue(s.CreatedAt))
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM staged_prospects WHERE session_id = $1`, s.ID); err != nil {
		return err
	}
	for _, row := range rows {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO staged_prospects (id, session_id, first_name, last_name, profile_id, contact, decision)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			row.ID, s.ID, row.FirstName, row.LastName, row.ProfileID, nullJSON(row.Contact), row.Decision)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}
