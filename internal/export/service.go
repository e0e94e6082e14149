package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/precedent2txt/internal/entity"
	"github.com/joseph-ayodele/precedent2txt/internal/repository"
	"github.com/joseph-ayodele/precedent2txt/internal/utils"
)

const (
	casesSheet       = "Cases"
	diagnosticsSheet = "Diagnostics"
)

// Service produces XLSX bytes for batch run reports.
type Service struct {
	runs   repository.CaseRunRepository
	logger *slog.Logger
}

func NewService(runs repository.CaseRunRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{runs: runs, logger: logger}
}

// ExportRunXLSX returns a workbook with one row per case of the given run.
func (s *Service) ExportRunXLSX(ctx context.Context, runID uuid.UUID) ([]byte, error) {
	if s.runs == nil {
		return nil, fmt.Errorf("export: no ledger configured")
	}
	runs, err := s.runs.ListByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("query case runs: %w", err)
	}
	return s.WriteRunsXLSX(runs)
}

// WriteRunsXLSX renders runs without touching the ledger.
func (s *Service) WriteRunsXLSX(runs []entity.CaseRun) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", casesSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(diagnosticsSheet); err != nil {
		return nil, err
	}
	activeIndex, _ := f.GetSheetIndex(casesSheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Case",
		"Case Number",
		"Mode",
		"Status",
		"Pages",
		"Text Bytes",
		"Diagnostics",
		"Error Kind",
		"Error Message",
		"Started At",
		"Finished At",
		"Duration (s)",
	}
	writeRow(f, casesSheet, 1, toAny(headers))
	writeRow(f, diagnosticsSheet, 1, []any{"Case", "Diagnostic"})

	diagRow := 2
	for i, r := range runs {
		duration := ""
		finished := ""
		if r.FinishedAt != nil {
			finished = utils.FormatTime(*r.FinishedAt)
			duration = fmt.Sprintf("%.1f", r.FinishedAt.Sub(r.StartedAt).Seconds())
		}
		writeRow(f, casesSheet, i+2, []any{
			r.CaseName,
			r.CaseNumber,
			r.Mode,
			r.Status,
			r.Pages,
			r.TextBytes,
			len(r.Diagnostics),
			utils.StrOrEmpty(r.ErrorKind),
			truncate(utils.StrOrEmpty(r.ErrorMessage), 500),
			utils.FormatTime(r.StartedAt),
			finished,
			duration,
		})
		for _, d := range r.Diagnostics {
			writeRow(f, diagnosticsSheet, diagRow, []any{r.CaseName, truncate(d, 2000)})
			diagRow++
		}
	}

	// Widen a few columns
	_ = f.SetColWidth(casesSheet, "A", "A", 32) // case
	_ = f.SetColWidth(casesSheet, "B", "B", 20) // case number
	_ = f.SetColWidth(casesSheet, "C", "D", 14)
	_ = f.SetColWidth(casesSheet, "I", "I", 60) // error message
	_ = f.SetColWidth(casesSheet, "J", "K", 22) // timestamps
	_ = f.SetColWidth(diagnosticsSheet, "A", "A", 32)
	_ = f.SetColWidth(diagnosticsSheet, "B", "B", 100)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(runs),
		"diagnostics", diagRow-2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= len("…") {
		return utils.TruncateUTF8(s, n)
	}
	return utils.TruncateUTF8(s, n-len("…")) + "…"
}
