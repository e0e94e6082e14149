package ocr

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joseph-ayodele/precedent2txt/constants"
	"github.com/joseph-ayodele/precedent2txt/internal/common"
)

// TextLayerRecognizer reads the embedded text layer with `pdftotext -raw`.
type TextLayerRecognizer struct {
	Bin    string
	Runner Runner
	Logger *slog.Logger
}

func NewTextLayerRecognizer(bin string, r Runner, logger *slog.Logger) *TextLayerRecognizer {
	if bin == "" {
		bin = "pdftotext"
	}
	if r == nil {
		r = ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TextLayerRecognizer{Bin: bin, Runner: r, Logger: logger}
}

func (t *TextLayerRecognizer) Method() string { return string(constants.ModeTextLayer) }

func (t *TextLayerRecognizer) NeedsPageCount() bool { return false }

// Recognize never fails on tool problems: they end up in the diagnostics and
// a missing output file yields empty text.
func (t *TextLayerRecognizer) Recognize(ctx context.Context, job Job) (Extraction, error) {
	ex := Extraction{Method: t.Method()}
	generated := job.Base + constants.TextExt

	// pdftotext writes next to the PDF; a leftover from an earlier run must not pass for fresh output.
	if err := os.Remove(generated); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return ex, common.IOError("remove stale text layer", err)
	}

	_, errb, err := t.Runner.Run(ctx, t.Bin, t.Logger, job.PDFPath, "-raw")
	if d, ok := toolDiagnostic(t.Bin, 0, errb, err); ok {
		ex.Diagnostics = append(ex.Diagnostics, d)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ex, ctxErr
	}

	data, err := os.ReadFile(generated)
	if err != nil {
		t.Logger.Warn("textlayer.missing", "path", generated, "error", err)
		ex.Diagnostics = append(ex.Diagnostics, missingDiagnostic(0, generated))
		return ex, nil
	}

	raw := string(data)
	ex.PageCount = 1 + strings.Count(strings.TrimRight(raw, "\f"), "\f") // form feed separates pages
	ex.Raw = FilterBoilerplate(raw)
	t.Logger.Debug("textlayer.ok", "path", generated, "bytes", len(data), "pages", ex.PageCount)
	return ex, nil
}
