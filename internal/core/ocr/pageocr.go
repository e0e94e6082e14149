package ocr

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joseph-ayodele/precedent2txt/constants"
	"github.com/joseph-ayodele/precedent2txt/internal/common"
)

// PageOCRRecognizer rasterizes the document once, then crops and recognizes
// every page in ascending order. No page failure stops the loop.
type PageOCRRecognizer struct {
	Rasterizer *Rasterizer
	Cropper    *Cropper
	Engine     Engine
	Logger     *slog.Logger
}

func (p *PageOCRRecognizer) Method() string { return string(constants.ModeOCR) }

func (p *PageOCRRecognizer) NeedsPageCount() bool { return true }

func (p *PageOCRRecognizer) Recognize(ctx context.Context, job Job) (Extraction, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ex := Extraction{Method: p.Method(), PageCount: job.Pages, PageFiles: make([]string, 0, job.Pages)}

	if d, ok := p.Rasterizer.Rasterize(ctx, job.PDFPath, job.Base); ok {
		ex.Diagnostics = append(ex.Diagnostics, d)
	}

	for page := 1; page <= job.Pages; page++ {
		if err := ctx.Err(); err != nil {
			return ex, err
		}
		pageBase := constants.PageBase(job.Base, page)
		art := PageArtifact{Index: page, TextPath: pageBase + constants.TextExt}
		ex.PageFiles = append(ex.PageFiles, art.TextPath)

		// A failed page must not pick up its text from an earlier run.
		if err := os.Remove(art.TextPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			ex.Pages = append(ex.Pages, art)
			ex.Diagnostics = append(ex.Diagnostics, errDiagnostic(page, common.IOError("remove stale page text", err)))
			continue
		}

		img, err := ResolvePageImage(job.Base, page)
		art.RasterPath, art.CroppedPath = img, img
		ex.Pages = append(ex.Pages, art)
		if err != nil {
			logger.Warn("ocr.page.no_image", "page", page, "error", err)
			ex.Diagnostics = append(ex.Diagnostics, errDiagnostic(page, err))
			continue
		}

		if d, ok := p.Cropper.Crop(ctx, page, img); ok {
			ex.Diagnostics = append(ex.Diagnostics, d)
		}

		errb, err := p.Engine.RecognizeImage(ctx, img, pageBase)
		if d, ok := toolDiagnostic(p.Engine.Name(), page, errb, err); ok {
			ex.Diagnostics = append(ex.Diagnostics, d)
		}
		logger.Debug("ocr.page.done", "page", page, "of", job.Pages)
	}
	return ex, nil
}
