// internal/store/postgres.go
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"community-scout/internal/common/config"
)

const insertRunQuery = `
	INSERT INTO discovery_runs (
		run_id, query, location, intent,
		phrase_count, candidate_count, entity_count, error_count,
		elapsed_ms, degraded, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

// PostgresRunLog appends one row per pipeline run.
type PostgresRunLog struct {
	db *sql.DB
}

func NewPostgresRunLog(cfg config.PostgresConfig) (*PostgresRunLog, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresRunLog{db: db}, nil
}

// NewPostgresRunLogWithDB wraps an existing handle (used by tests).
func NewPostgresRunLogWithDB(db *sql.DB) *PostgresRunLog {
	return &PostgresRunLog{db: db}
}

func (l *PostgresRunLog) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

func (l *PostgresRunLog) Record(ctx context.Context, record RunRecord) error {
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := l.db.ExecContext(ctx, insertRunQuery,
		record.RunID, record.Query, record.Location, record.Intent,
		record.Phrases, record.Candidates, record.Entities, record.Errors,
		record.ElapsedMS, record.Degraded, createdAt,
	)
	if err != nil {
		return fmt.Errorf("run log insert failed: %w", err)
	}
	return nil
}

func (l *PostgresRunLog) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}
