package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"emissions/internal/emission"
	"emissions/internal/platform/postgres"
	"emissions/pkg/platform/sentinel"
)

// PostgresStore persists snapshots as immutable JSONB rows, one per version.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Latest(ctx context.Context) (*emission.Snapshot, error) {
	query := `
		SELECT version, payload, updated_by, updated_at
		FROM threshold_snapshots
		ORDER BY version DESC
		LIMIT 1
	`
	var (
		version   int64
		payload   any
		updatedBy string
		updatedAt time.Time
	)
	err := s.db.QueryRowContext(ctx, query).Scan(&version, &payload, &updatedBy, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("load latest thresholds: %w", err)
	}
	raw, err := postgres.RawJSON(payload)
	if err != nil {
		return nil, err
	}
	var snap emission.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode thresholds payload: %w", err)
	}
	snap.Version = version
	snap.UpdatedBy = updatedBy
	snap.UpdatedAt = updatedAt
	return &snap, nil
}

// Save inserts a new version. Losing a race on the version number returns
// sentinel.ErrConflict; the insert is also rejected unless it directly
// follows the current latest version.
func (s *PostgresStore) Save(ctx context.Context, snap emission.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode thresholds payload: %w", err)
	}
	query := `
		INSERT INTO threshold_snapshots (version, payload, updated_by, updated_at)
		SELECT $1::bigint, $2::jsonb, $3::text, $4::timestamptz
		WHERE $1::bigint = COALESCE((SELECT MAX(version) FROM threshold_snapshots), 0) + 1
	`
	res, err := s.db.ExecContext(ctx, query, snap.Version, payload, snap.UpdatedBy, snap.UpdatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("save thresholds: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save thresholds rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrConflict
	}
	return nil
}
