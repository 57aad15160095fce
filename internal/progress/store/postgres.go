package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"dials/internal/progress/models"
	"dials/pkg/platform/sentinel"
)

// Schema creates the user_progress table. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS user_progress (
	user_id    TEXT        NOT NULL,
	user_key   VARCHAR(100) NOT NULL,
	data       JSONB       NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (user_id, user_key)
);
CREATE INDEX IF NOT EXISTS user_progress_user_updated_idx
	ON user_progress (user_id, updated_at DESC);
`

// PostgresStore persists progress records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate applies Schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate user_progress: %w", err)
	}
	return nil
}

func (s *PostgresStore) Upsert(ctx context.Context, p *models.Progress) error {
	query := `
		INSERT INTO user_progress (user_id, user_key, data, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, user_key) DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, p.UserID, p.UserKey, string(p.Data), p.UpdatedAt); err != nil {
		return fmt.Errorf("upsert progress: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, userID, userKey string) (*models.Progress, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, user_key, data, updated_at
		FROM user_progress
		WHERE user_id = $1 AND user_key = $2`, userID, userKey)
	return scanProgress(row, "get progress")
}

func (s *PostgresStore) Latest(ctx context.Context, userID string) (*models.Progress, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, user_key, data, updated_at
		FROM user_progress
		WHERE user_id = $1
		ORDER BY updated_at DESC, user_key DESC
		LIMIT 1`, userID)
	return scanProgress(row, "latest progress")
}

func (s *PostgresStore) Delete(ctx context.Context, userID, userKey string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM user_progress WHERE user_id = $1 AND user_key = $2`, userID, userKey)
	if err != nil {
		return fmt.Errorf("delete progress: %w", err)
	}
	return nil
}

func scanProgress(row *sql.Row, op string) (*models.Progress, error) {
	var (
		p    models.Progress
		data []byte
	)
	if err := row.Scan(&p.UserID, &p.UserKey, &data, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	p.Data = data
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}
