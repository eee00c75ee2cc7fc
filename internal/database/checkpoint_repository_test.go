package database_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jonesrussell/merchantcrawl/internal/database"
	"github.com/jonesrussell/merchantcrawl/internal/domain"
)

// checkpointColumns lists the columns returned by checkpoint SELECT queries.
var checkpointColumns = []string{
	"source_id", "completed_pages", "total_saved", "last_merchant_id", "updated_at",
}

func newCheckpointRepo(t *testing.T) (*database.CheckpointRepository, sqlmock.Sqlmock, func()) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	db := sqlx.NewDb(mockDB, "postgres")
	repo := database.NewCheckpointRepository(db)

	return repo, mock, func() { mockDB.Close() }
}

func TestCheckpointRepository_Save_Upserts(t *testing.T) {
	repo, mock, cleanup := newCheckpointRepo(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectExec("INSERT INTO crawl_checkpoints").
		WithArgs("kyoto", pq.Int64Array{1, 2, 3}, 60, "kyoto_a1b2c3d4", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Save(context.Background(), &domain.Checkpoint{
		SourceID:       "kyoto",
		CompletedPages: []int{1, 2, 3},
		TotalSaved:     60,
		LastMerchantID: "kyoto_a1b2c3d4",
		UpdatedAt:      now,
	})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCheckpointRepository_Save_SetsUpdatedAt(t *testing.T) {
	repo, mock, cleanup := newCheckpointRepo(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO crawl_checkpoints").
		WillReturnResult(sqlmock.NewResult(0, 1))

	cp := &domain.Checkpoint{SourceID: "kyoto", CompletedPages: []int{1}}
	if err := repo.Save(context.Background(), cp); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if cp.UpdatedAt.IsZero() {
		t.Error("Save() should stamp UpdatedAt when unset")
	}
}

func TestCheckpointRepository_Get(t *testing.T) {
	repo, mock, cleanup := newCheckpointRepo(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery("SELECT .+ FROM crawl_checkpoints WHERE source_id").
		WithArgs("kyoto").
		WillReturnRows(
			sqlmock.NewRows(checkpointColumns).AddRow(
				"kyoto", pq.Int64Array{1, 2, 3}, 60, "kyoto_a1b2c3d4", now,
			),
		)

	cp, err := repo.Get(context.Background(), "kyoto")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if cp.SourceID != "kyoto" {
		t.Errorf("SourceID = %q, want kyoto", cp.SourceID)
	}
	if len(cp.CompletedPages) != 3 || cp.CompletedPages[2] != 3 {
		t.Errorf("CompletedPages = %v, want [1 2 3]", cp.CompletedPages)
	}
	if cp.TotalSaved != 60 {
		t.Errorf("TotalSaved = %d, want 60", cp.TotalSaved)
	}
	if got := cp.ResumePage(); got != 4 {
		t.Errorf("ResumePage() = %d, want 4", got)
	}
}

func TestCheckpointRepository_Get_NotFound(t *testing.T) {
	repo, mock, cleanup := newCheckpointRepo(t)
	defer cleanup()

	mock.ExpectQuery("SELECT .+ FROM crawl_checkpoints WHERE source_id").
		WithArgs("nowhere").
		WillReturnRows(sqlmock.NewRows(checkpointColumns))

	_, err := repo.Get(context.Background(), "nowhere")
	if !errors.Is(err, database.ErrCheckpointNotFound) {
		t.Fatalf("Get() error = %v, want ErrCheckpointNotFound", err)
	}
}

func TestCheckpointRepository_Clear(t *testing.T) {
	repo, mock, cleanup := newCheckpointRepo(t)
	defer cleanup()

	mock.ExpectExec("DELETE FROM crawl_checkpoints WHERE source_id").
		WithArgs("kyoto").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Clear(context.Background(), "kyoto"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
}

func TestCheckpointRepository_Clear_MissingRowIsNotAnError(t *testing.T) {
	repo, mock, cleanup := newCheckpointRepo(t)
	defer cleanup()

	mock.ExpectExec("DELETE FROM crawl_checkpoints WHERE source_id").
		WithArgs("nowhere").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Clear(context.Background(), "nowhere"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
}

func TestCheckpointRepository_List(t *testing.T) {
	repo, mock, cleanup := newCheckpointRepo(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery("SELECT .+ FROM crawl_checkpoints").
		WillReturnRows(
			sqlmock.NewRows(checkpointColumns).
				AddRow("kyoto", pq.Int64Array{1, 2}, 40, "kyoto_a1b2c3d4", now).
				AddRow("osaka", pq.Int64Array{}, 0, "", now.Add(-time.Hour)),
		)

	checkpoints, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(checkpoints) != 2 {
		t.Fatalf("List() returned %d checkpoints, want 2", len(checkpoints))
	}
	if checkpoints[1].CompletedPages != nil {
		t.Errorf("empty page array should scan as nil, got %v", checkpoints[1].CompletedPages)
	}
}
