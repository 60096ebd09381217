package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/xavierca1/linkedin-outreach/internal/entity"
)

const prospectColumns = `
	id, workspace_id, campaign_id, COALESCE(session_id, ''), first_name, last_name,
	profile_id, contact, staged_seq, status, scheduled_send_at, contacted_at,
	dispatched_at, COALESCE(execution_id, ''), dispatch_attempts, next_attempt_at,
	COALESCE(provider_message_id, ''), COALESCE(failure_reason, ''), created_at, updated_at`

const foreignKeyViolation = "23503"

type ProspectRepository struct {
	DB *sql.DB
}

func (r *ProspectRepository) InsertIfAbsent(ctx context.Context, p *entity.Prospect) (bool, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO prospects (
			id, workspace_id, campaign_id, session_id, first_name, last_name,
			profile_id, contact, staged_seq, status, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		ON CONFLICT (campaign_id, lower(profile_id)) DO NOTHING
	`
	res, err := tx.ExecContext(ctx, query,
		p.ID,
		p.WorkspaceID,
		p.CampaignID,
		nullString(p.SessionID),
		p.FirstName,
		p.LastName,
		p.ProfileID,
		nullJSON(p.Contact),
		p.StagedSeq,
		p.Status,
		p.CreatedAt,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
		return false, fmt.Errorf("campaign %s: %w", p.CampaignID, entity.ErrNotFound)
	}
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	ev := entity.StatusEvent{
		ProspectID: p.ID,
		To:         p.Status,
		Actor:      "approval_gate",
		Reason:     "promoted from session " + p.SessionID,
		At:         p.CreatedAt,
	}
	if err := insertEvent(ctx, tx, ev); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

func (r *ProspectRepository) FindByID(ctx context.Context, id string) (*entity.Prospect, error) {
	row := r.DB.QueryRowContext(ctx, "SELECT"+prospectColumns+" FROM prospects WHERE id = $1", id)
	p, err := scanProspect(row)
	if err == sql.ErrNoRows {
		return nil, entity.ErrNotFound
	}
	return p, err
}

func (r *ProspectRepository) FindByProviderMessageID(ctx context.Context, providerMessageID string) ([]*entity.Prospect, error) {
	return r.query(ctx, `SELECT`+prospectColumns+`
		FROM prospects
		WHERE provider_message_id = $1
		ORDER BY created_at, id`, providerMessageID)
}

func (r *ProspectRepository) ListByCampaignStatus(ctx context.Context, campaignID string, status entity.Status, limit int) ([]*entity.Prospect, error) {
	return r.query(ctx, `SELECT`+prospectColumns+`
		FROM prospects
		WHERE campaign_id = $1 AND status = $2
		ORDER BY staged_seq, created_at, id
		LIMIT NULLIF($3, 0)`, campaignID, status, limit)
}

func (r *ProspectRepository) ListDue(ctx context.Context, campaignID string, now time.Time, limit int) ([]*entity.Prospect, error) {
	return r.query(ctx, `SELECT`+prospectColumns+`
		FROM prospects
		WHERE campaign_id = $1
		  AND status = 'queued'
		  AND dispatched_at IS NULL
		  AND scheduled_send_at <= $2
		  AND (next_attempt_at IS NULL OR next_attempt_at <= $2)
		ORDER BY scheduled_send_at, staged_seq, id
		LIMIT NULLIF($3, 0)`, campaignID, now, limit)
}

func (r *ProspectRepository) ListAwaitingOutcome(ctx context.Context, limit int) ([]*entity.Prospect, error) {
	return r.query(ctx, `SELECT`+prospectColumns+`
		FROM prospects
		WHERE (status = 'queued' AND dispatched_at IS NOT NULL)
		   OR status = 'connection_requested'
		ORDER BY staged_seq, created_at, id
		LIMIT NULLIF($1, 0)`, limit)
}

func (r *ProspectRepository) List(ctx context.Context, f entity.ProspectFilter) ([]*entity.Prospect, error) {
	return r.query(ctx, `SELECT`+prospectColumns+`
		FROM prospects
		WHERE workspace_id = $1
		  AND ($2 = '' OR campaign_id = $2)
		  AND ($3 = '' OR status = $3)
		ORDER BY staged_seq, created_at, id
		LIMIT NULLIF($4, 0)`, f.WorkspaceID, f.CampaignID, string(f.Status), f.Limit)
}

func (r *ProspectRepository) History(ctx context.Context, prospectID string) ([]entity.StatusEvent, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT prospect_id, from_status, to_status, actor, reason, at
		FROM prospect_status_events
		WHERE prospect_id = $1
		ORDER BY id`, prospectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entity.StatusEvent
	for rows.Next() {
		var ev entity.StatusEvent
		if err := rows.Scan(&ev.ProspectID, &ev.From, &ev.To, &ev.Actor, &ev.Reason, &ev.At); err != nil {
			return nil, err
		}
		ev.At = ev.At.UTC()
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (r *ProspectRepository) AssignSchedule(ctx context.Context, id string, at time.Time) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE prospects SET scheduled_send_at = $2
		WHERE id = $1 AND status = 'pending'`, id, at)
	if err != nil {
		return err
	}
	return r.casResult(ctx, res, id)
}

func (r *ProspectRepository) ClearSchedule(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE prospects SET scheduled_send_at = NULL
		WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil || n > 0 {
		return err
	}
	// a prospect that already left pending keeps its schedule
	return existsOr(ctx, r.DB, "prospects", id, entity.ErrNotFound, nil)
}

// Transition locks the row, applies the change in Go and writes it back with
// its history event in one transaction.
func (r *ProspectRepository) Transition(ctx context.Context, t entity.Transition) error {
	if !entity.CanTransition(t.From, t.To) || entity.OperatorOnly(t.From, t.To) {
		return entity.ErrIllegalTransition
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, "SELECT"+prospectColumns+" FROM prospects WHERE id = $1 FOR UPDATE", t.ProspectID)
	p, err := scanProspect(row)
	if err == sql.ErrNoRows {
		return entity.ErrNotFound
	}
	if err != nil {
		return err
	}
	if p.Status != t.From {
		return entity.ErrConflict
	}

	if err := applyTransition(ctx, tx, p, t); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *ProspectRepository) BulkTransition(ctx context.Context, bt entity.BulkTransition) ([]string, error) {
	if !entity.CanTransition(bt.From, bt.To) {
		return nil, entity.ErrIllegalTransition
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT`+prospectColumns+`
		FROM prospects
		WHERE workspace_id = $1 AND campaign_id = $2 AND status = $3
		ORDER BY staged_seq, created_at, id
		FOR UPDATE`, bt.WorkspaceID, bt.CampaignID, bt.From)
	if err != nil {
		return nil, err
	}
	var locked []*entity.Prospect
	for rows.Next() {
		p, err := scanProspect(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		locked = append(locked, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(locked))
	for _, p := range locked {
		t := entity.Transition{
			ProspectID: p.ID,
			From:       bt.From,
			To:         bt.To,
			At:         bt.At,
			Actor:      bt.Actor,
			Reason:     bt.Reason,
		}
		if err := applyTransition(ctx, tx, p, t); err != nil {
			return nil, err
		}
		ids = append(ids, p.ID)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *ProspectRepository) MarkDispatched(ctx context.Context, ids []string, executionID string, at time.Time) (int, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE prospects
		SET dispatched_at = $2, execution_id = $3, next_attempt_at = NULL, updated_at = $2
		WHERE id = ANY($1) AND status = 'queued' AND dispatched_at IS NULL`,
		pq.Array(ids), at, executionID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *ProspectRepository) RecordDispatchFailure(ctx context.Context, f entity.DispatchFailure) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE prospects
		SET dispatch_attempts = $2, next_attempt_at = $3, failure_reason = $4
		WHERE id = $1 AND status = 'queued' AND dispatched_at IS NULL`,
		f.ProspectID, f.Attempts, f.NextAttemptAt, f.Reason)
	if err != nil {
		return err
	}
	return r.casResult(ctx, res, f.ProspectID)
}

func (r *ProspectRepository) query(ctx context.Context, query string, args ...any) ([]*entity.Prospect, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entity.Prospect
	for rows.Next() {
		p, err := scanProspect(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// casResult turns a zero-row conditional update into ErrNotFound or ErrConflict.
func (r *ProspectRepository) casResult(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	return existsOr(ctx, r.DB, "prospects", id, entity.ErrNotFound, entity.ErrConflict)
}

func applyTransition(ctx context.Context, tx *sql.Tx, p *entity.Prospect, t entity.Transition) error {
	from := p.Status
	p.Apply(t)

	_, err := tx.ExecContext(ctx, `
		UPDATE prospects SET
			status = $2,
			scheduled_send_at = $3,
			contacted_at = $4,
			dispatched_at = $5,
			execution_id = $6,
			dispatch_attempts = $7,
			next_attempt_at = $8,
			provider_message_id = $9,
			failure_reason = $10,
			updated_at = $11
		WHERE id = $1`,
		p.ID,
		p.Status,
		p.ScheduledSendAt,
		p.ContactedAt,
		p.DispatchedAt,
		nullString(p.ExecutionID),
		p.DispatchAttempts,
		p.NextAttemptAt,
		nullString(p.ProviderMessageID),
		nullString(p.FailureReason),
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update prospect %s: %w", p.ID, err)
	}

	return insertEvent(ctx, tx, entity.StatusEvent{
		ProspectID: p.ID,
		From:       from,
		To:         t.To,
		Actor:      t.Actor,
		Reason:     t.Reason,
		At:         t.At,
	})
}

func insertEvent(ctx context.Context, tx *sql.Tx, ev entity.StatusEvent) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO prospect_status_events (prospect_id, from_status, to_status, actor, reason, at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		ev.ProspectID, ev.From, ev.To, ev.Actor, ev.Reason, ev.At)
	return err
}

func scanProspect(s scanner) (*entity.Prospect, error) {
	var (
		p          entity.Prospect
		contact    []byte
		schedule   sql.NullTime
		contacted  sql.NullTime
		dispatched sql.NullTime
		retryAt    sql.NullTime
	)
	err := s.Scan(
		&p.ID,
		&p.WorkspaceID,
		&p.CampaignID,
		&p.SessionID,
		&p.FirstName,
		&p.LastName,
		&p.ProfileID,
		&contact,
		&p.StagedSeq,
		&p.Status,
		&schedule,
		&contacted,
		&dispatched,
		&p.ExecutionID,
		&p.DispatchAttempts,
		&retryAt,
		&p.ProviderMessageID,
		&p.FailureReason,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(contact) > 0 {
		p.Contact = contact
	}
	p.ScheduledSendAt = nullTime(schedule)
	p.ContactedAt = nullTime(contacted)
	p.DispatchedAt = nullTime(dispatched)
	p.NextAttemptAt = nullTime(retryAt)
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
