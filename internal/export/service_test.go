package export

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/precedent2txt/internal/entity"
	"github.com/joseph-ayodele/precedent2txt/internal/repository"
)

func sampleRuns(runID uuid.UUID) []entity.CaseRun {
	started := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	finished := started.Add(90 * time.Second)
	kind, msg := "NETWORK_ERROR", "GET https://example.test/b.pdf: 404 Not Found"
	return []entity.CaseRun{
		{RunID: runID, CaseName: "a", CaseNumber: "1", Mode: "ocr", Status: "DONE", Pages: 3, TextBytes: 99,
			Diagnostics: []string{"page 2: tesseract: exit status 1", "page 2: '/tmp/a-2.txt': No such file or directory"},
			StartedAt:   started, FinishedAt: &finished},
		{RunID: runID, CaseName: "b", CaseNumber: "2", Mode: "ocr", Status: "FAILED",
			ErrorKind: &kind, ErrorMessage: &msg, StartedAt: started, FinishedAt: &finished},
	}
}

func TestWriteRunsXLSX(t *testing.T) {
	b, err := NewService(nil, nil).WriteRunsXLSX(sampleRuns(uuid.New()))
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(casesSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Case", rows[0][0])
	assert.Equal(t, []string{"a", "1", "ocr", "DONE", "3", "99", "2", "", "", "2024-05-01T09:00:00Z", "2024-05-01T09:01:30Z", "90.0"}, rows[1])
	assert.Equal(t, "NETWORK_ERROR", rows[2][7])

	diags, err := f.GetRows(diagnosticsSheet)
	require.NoError(t, err)
	require.Len(t, diags, 3)
	assert.Equal(t, []string{"a", "page 2: tesseract: exit status 1"}, diags[1])
}

func TestExportRunXLSX_FromLedger(t *testing.T) {
	ctx := context.Background()
	db, err := repository.Open(ctx, repository.Config{DSN: ":memory:"}, nil)
	require.NoError(t, err)
	defer db.Close(nil)
	runs := repository.NewCaseRunRepository(db, nil)
	require.NoError(t, runs.EnsureSchema(ctx))

	runID := uuid.New()
	for _, r := range sampleRuns(runID) {
		require.NoError(t, runs.Start(ctx, r))
		require.NoError(t, runs.Finish(ctx, r))
	}

	b, err := NewService(runs, nil).ExportRunXLSX(ctx, runID)
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(casesSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestExportRunXLSX_NoLedger(t *testing.T) {
	_, err := NewService(nil, nil).ExportRunXLSX(context.Background(), uuid.New())
	assert.Error(t, err)
}

func TestTruncate_KeepsRunesWhole(t *testing.T) {
	s := strings.Repeat("判", 300)

	got := truncate(s, 500)
	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, len(got), 500)
	assert.Equal(t, strings.Repeat("判", 165)+"…", got)

	assert.Equal(t, s, truncate(s, 0))
	assert.Equal(t, "short", truncate("short", 500))
	assert.Equal(t, "判", truncate(s, 3))
}
