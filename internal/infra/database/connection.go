package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

//go:embed schema.sql
var schema string

// NewDBConnection opens the pool and pings it.
func NewDBConnection(connString string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate creates the tables when missing. Every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func nullTimeValue(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// existsOr tells a compare-and-set miss apart from an unknown row.
func existsOr(ctx context.Context, q querier, table, id string, missErr, conflictErr error) error {
	var one int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM "+table+" WHERE id = $1", id).Scan(&one)
	if err == sql.ErrNoRows {
		return missErr
	}
	if err != nil {
		return err
	}
	return conflictErr
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
