package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/precedent2txt/internal/entity"
)

func openMemory(t *testing.T) CaseRunRepository {
	t.Helper()
	db, err := Open(context.Background(), Config{DSN: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(nil) })

	repo := NewCaseRunRepository(db, nil)
	require.NoError(t, repo.EnsureSchema(context.Background()))
	require.NoError(t, repo.EnsureSchema(context.Background()), "schema creation is repeatable")
	return repo
}

func TestCaseRunRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := openMemory(t)
	runID := uuid.New()
	started := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Start(ctx, entity.CaseRun{
		RunID: runID, CaseName: "b", CaseNumber: "2", Mode: "ocr", Status: "PENDING", StartedAt: started.Add(time.Second),
	}))
	require.NoError(t, repo.Start(ctx, entity.CaseRun{
		RunID: runID, CaseName: "a", CaseNumber: "1", Mode: "ocr", Status: "PENDING", StartedAt: started,
	}))

	kind, msg := "NETWORK_ERROR", "GET failed"
	finished := started.Add(time.Minute)
	require.NoError(t, repo.Finish(ctx, entity.CaseRun{
		RunID: runID, CaseName: "a", CaseNumber: "1", Mode: "ocr", Status: "DONE",
		Diagnostics: []string{"page 2: tesseract: exit status 1"}, Pages: 3, TextBytes: 120, FinishedAt: &finished,
	}))
	require.NoError(t, repo.Finish(ctx, entity.CaseRun{
		RunID: runID, CaseName: "b", CaseNumber: "2", Mode: "ocr", Status: "FAILED", ErrorKind: &kind, ErrorMessage: &msg,
	}))

	runs, err := repo.ListByRun(ctx, runID)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	a, b := runs[0], runs[1]
	assert.Equal(t, "a", a.CaseName)
	assert.Equal(t, "DONE", a.Status)
	assert.Equal(t, 3, a.Pages)
	assert.Equal(t, 120, a.TextBytes)
	assert.Equal(t, []string{"page 2: tesseract: exit status 1"}, a.Diagnostics)
	assert.True(t, a.StartedAt.Equal(started))
	require.NotNil(t, a.FinishedAt)
	assert.True(t, a.FinishedAt.Equal(finished))
	assert.Nil(t, a.ErrorKind)

	assert.Equal(t, "b", b.CaseName)
	require.NotNil(t, b.ErrorKind)
	assert.Equal(t, kind, *b.ErrorKind)
	assert.Equal(t, msg, *b.ErrorMessage)
	assert.NotNil(t, b.FinishedAt)
	assert.Empty(t, b.Diagnostics)
}

func TestCaseRunRepository_StartIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := openMemory(t)
	run := entity.CaseRun{RunID: uuid.New(), CaseName: "dup", Mode: "text-layer", Status: "PENDING", StartedAt: time.Now()}

	require.NoError(t, repo.Start(ctx, run))
	require.NoError(t, repo.Start(ctx, run))

	runs, err := repo.ListByRun(ctx, run.RunID)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestCaseRunRepository_FinishWithoutStart(t *testing.T) {
	repo := openMemory(t)
	err := repo.Finish(context.Background(), entity.CaseRun{RunID: uuid.New(), CaseName: "ghost", Status: "DONE"})
	assert.Error(t, err)
}

func TestCaseRunRepository_LatestRunID(t *testing.T) {
	ctx := context.Background()
	repo := openMemory(t)

	_, err := repo.LatestRunID(ctx)
	assert.True(t, errors.Is(err, ErrNoRuns))

	older, newer := uuid.New(), uuid.New()
	now := time.Now().UTC()
	require.NoError(t, repo.Start(ctx, entity.CaseRun{RunID: older, CaseName: "x", Mode: "ocr", Status: "DONE", StartedAt: now.Add(-time.Hour)}))
	require.NoError(t, repo.Start(ctx, entity.CaseRun{RunID: newer, CaseName: "x", Mode: "ocr", Status: "DONE", StartedAt: now}))

	got, err := repo.LatestRunID(ctx)
	require.NoError(t, err)
	assert.Equal(t, newer, got)
}

func TestOpen_SQLiteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")
	db, err := Open(context.Background(), Config{DSN: path}, nil)
	require.NoError(t, err)
	defer db.Close(nil)

	assert.Equal(t, "sqlite3", db.Dialect)
	assert.NoError(t, HealthCheck(context.Background(), db, time.Second, nil))
}

func TestIsPostgresDSN(t *testing.T) {
	assert.True(t, IsPostgresDSN("postgres://u:p@localhost:5432/db"))
	assert.True(t, IsPostgresDSN("postgresql://localhost/db"))
	assert.False(t, IsPostgresDSN("tmp/ledger.db"))
	assert.False(t, IsPostgresDSN(":memory:"))
}
