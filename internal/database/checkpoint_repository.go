package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jonesrussell/merchantcrawl/internal/domain"
)

// ErrCheckpointNotFound is returned when no checkpoint exists for a source.
var ErrCheckpointNotFound = errors.New("checkpoint not found")

// CheckpointRepository persists crawl checkpoints, one row per source.
type CheckpointRepository struct {
	db *sqlx.DB
}

// NewCheckpointRepository creates a new checkpoint repository.
func NewCheckpointRepository(db *sqlx.DB) *CheckpointRepository {
	return &CheckpointRepository{db: db}
}

// EnsureSchema creates the checkpoint table if it does not exist yet.
func (r *CheckpointRepository) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS crawl_checkpoints (
			source_id        TEXT PRIMARY KEY,
			completed_pages  BIGINT[] NOT NULL DEFAULT '{}',
			total_saved      INTEGER NOT NULL DEFAULT 0,
			last_merchant_id TEXT NOT NULL DEFAULT '',
			updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to ensure checkpoint schema: %w", err)
	}
	return nil
}

// Save upserts the checkpoint for its source.
func (r *CheckpointRepository) Save(ctx context.Context, cp *domain.Checkpoint) error {
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now()
	}

	query := `
		INSERT INTO crawl_checkpoints (source_id, completed_pages, total_saved, last_merchant_id, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (source_id)
		DO UPDATE SET
			completed_pages = EXCLUDED.completed_pages,
			total_saved = EXCLUDED.total_saved,
			last_merchant_id = EXCLUDED.last_merchant_id,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		cp.SourceID,
		pagesToArray(cp.CompletedPages),
		cp.TotalSaved,
		cp.LastMerchantID,
		cp.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint for source %s: %w", cp.SourceID, err)
	}

	return nil
}

// Get retrieves the checkpoint for a source. Returns ErrCheckpointNotFound
// when the source has never checkpointed.
func (r *CheckpointRepository) Get(ctx context.Context, sourceID string) (*domain.Checkpoint, error) {
	query := `
		SELECT source_id, completed_pages, total_saved, last_merchant_id, updated_at
		FROM crawl_checkpoints
		WHERE source_id = $1
	`

	var (
		cp    domain.Checkpoint
		pages pq.Int64Array
	)
	err := r.db.QueryRowContext(ctx, query, sourceID).Scan(
		&cp.SourceID,
		&pages,
		&cp.TotalSaved,
		&cp.LastMerchantID,
		&cp.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: source %s", ErrCheckpointNotFound, sourceID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get checkpoint for source %s: %w", sourceID, err)
	}

	cp.CompletedPages = arrayToPages(pages)
	return &cp, nil
}

// Clear removes the checkpoint for a source. Clearing a source that has
// no checkpoint is not an error.
func (r *CheckpointRepository) Clear(ctx context.Context, sourceID string) error {
	query := `DELETE FROM crawl_checkpoints WHERE source_id = $1`

	if _, err := r.db.ExecContext(ctx, query, sourceID); err != nil {
		return fmt.Errorf("failed to clear checkpoint for source %s: %w", sourceID, err)
	}
	return nil
}

// List returns all stored checkpoints, most recently updated first.
func (r *CheckpointRepository) List(ctx context.Context) ([]*domain.Checkpoint, error) {
	query := `
		SELECT source_id, completed_pages, total_saved, last_merchant_id, updated_at
		FROM crawl_checkpoints
		ORDER BY updated_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer rows.Close()

	var checkpoints []*domain.Checkpoint
	for rows.Next() {
		var (
			cp    domain.Checkpoint
			pages pq.Int64Array
		)
		if scanErr := rows.Scan(&cp.SourceID, &pages, &cp.TotalSaved, &cp.LastMerchantID, &cp.UpdatedAt); scanErr != nil {
			return nil, fmt.Errorf("failed to scan checkpoint row: %w", scanErr)
		}
		cp.CompletedPages = arrayToPages(pages)
		checkpoints = append(checkpoints, &cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate checkpoint rows: %w", err)
	}

	return checkpoints, nil
}

func pagesToArray(pages []int) pq.Int64Array {
	arr := make(pq.Int64Array, len(pages))
	for i, p := range pages {
		arr[i] = int64(p)
	}
	return arr
}

func arrayToPages(arr pq.Int64Array) []int {
	if len(arr) == 0 {
		return nil
	}
	pages := make([]int, len(arr))
	for i, p := range arr {
		pages[i] = int(p)
	}
	return pages
}
