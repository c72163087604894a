package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/traveler-renamer/internal/batch"
	"github.com/joseph-ayodele/traveler-renamer/internal/common"
	"github.com/joseph-ayodele/traveler-renamer/internal/llm"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := Open(context.Background(), Config{DSN: dsn}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func sampleResult(started time.Time) *batch.Result {
	return &batch.Result{
		BatchID:    uuid.New(),
		StartedAt:  started,
		FinishedAt: started.Add(9 * time.Second),
		Results: []batch.ProcessingResult{
			{OriginalName: "job1.pdf", Fields: llm.Fields("Acme", "PN-100", "Bracket"),
				NewName: "PN-100 Acme Bracket.pdf", Status: "Success"},
			{OriginalName: "job2.pdf", Fields: llm.Fields("Beta", "PN-200", ""),
				NewName: "PN-200 Beta Unknown.pdf", Status: "Partial success (missing: Description)",
				Missing: []string{llm.FieldDescription}},
			{OriginalName: "job3.pdf", Status: "Error: No data extracted", Error: "service overloaded"},
		},
	}
}

func TestSaveAndGet(t *testing.T) {
	db := openTestDB(t)
	repo := NewBatchRepository(db, nil)
	ctx := context.Background()
	started := time.Date(2025, 9, 3, 10, 0, 0, 0, time.UTC)

	res := sampleResult(started)
	require.NoError(t, repo.Save(ctx, res))

	got, err := repo.Get(ctx, res.BatchID)
	require.NoError(t, err)
	assert.Equal(t, res.BatchID, got.ID)
	assert.True(t, got.StartedAt.Equal(started))
	assert.Equal(t, batch.Summary{Total: 3, Succeeded: 1, Partial: 1, Failed: 1}, got.Summary)

	require.Len(t, got.Files, 3)
	assert.Equal(t, res.Rows(), got.Rows())
	assert.Equal(t, "service overloaded", got.Files[2].ErrorMessage)
	assert.Equal(t, "N/A", got.Rows()[2].NewFilename)
}

func TestGetMissing(t *testing.T) {
	repo := NewBatchRepository(openTestDB(t), nil)
	_, err := repo.Get(context.Background(), uuid.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestListNewestFirst(t *testing.T) {
	repo := NewBatchRepository(openTestDB(t), nil)
	ctx := context.Background()
	base := time.Date(2025, 9, 3, 10, 0, 0, 0, time.UTC)

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		res := sampleResult(base.Add(time.Duration(i) * time.Hour))
		require.NoError(t, repo.Save(ctx, res))
		ids = append(ids, res.BatchID)
	}

	runs, err := repo.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[2], runs[0].ID)
	assert.Equal(t, ids[1], runs[1].ID)
	assert.Empty(t, runs[0].Files)
}

func TestSaveRejectsDuplicateBatch(t *testing.T) {
	repo := NewBatchRepository(openTestDB(t), nil)
	ctx := context.Background()
	res := sampleResult(time.Now())
	require.NoError(t, repo.Save(ctx, res))

	err := repo.Save(ctx, res)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrDatabase)
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Migrate(context.Background()))
	assert.Equal(t, "sqlite3", db.Dialect())
	assert.NoError(t, db.HealthCheck(context.Background(), time.Second))
}

func TestIsPostgres(t *testing.T) {
	assert.True(t, isPostgres("postgres://u:p@localhost/db"))
	assert.True(t, isPostgres("postgresql://localhost/db"))
	assert.False(t, isPostgres("file:travelers.db"))
}
