package ocr

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/precedent2txt/constants"
	"github.com/joseph-ayodele/precedent2txt/internal/common"
)

// Rasterizer renders every page of a PDF to "{base}-{page}.jpg" with pdftoppm.
type Rasterizer struct {
	Bin    string
	Runner Runner
	Logger *slog.Logger
}

func NewRasterizer(bin string, r Runner, logger *slog.Logger) *Rasterizer {
	if bin == "" {
		bin = "pdftoppm"
	}
	if r == nil {
		r = ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Rasterizer{Bin: bin, Runner: r, Logger: logger}
}

// Rasterize runs once per document. Warnings on stderr are logged only;
// a failed invocation is returned as a diagnostic so the page loop can still report per page.
func (r *Rasterizer) Rasterize(ctx context.Context, pdfPath, base string) (Diagnostic, bool) {
	// Images left by an earlier run were already cropped in place.
	if err := RemovePageImages(base); err != nil {
		return errDiagnostic(0, err), true
	}
	_, errb, err := r.Runner.Run(ctx, r.Bin, r.Logger, "-jpeg", pdfPath, base)
	if err != nil {
		return toolDiagnostic(r.Bin, 0, errb, err)
	}
	if len(errb) > 0 {
		r.Logger.Warn("raster.stderr", "path", pdfPath, "stderr", truncate(string(errb), 8<<10))
	}
	return Diagnostic{}, false
}

// RemovePageImages deletes every "{base}-{digits}.jpg", padded or not.
func RemovePageImages(base string) error {
	dir, stem := filepath.Split(base)
	if dir == "" {
		dir = "."
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return common.IOError("list page images", err)
	}
	for _, e := range entries {
		if e.IsDir() || !isPageImage(e.Name(), stem) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return common.IOError("remove stale page image", err)
		}
	}
	return nil
}

func isPageImage(name, stem string) bool {
	rest, ok := strings.CutPrefix(name, stem+"-")
	if !ok {
		return false
	}
	digits, ok := strings.CutSuffix(rest, constants.ImageExt)
	if !ok || digits == "" {
		return false
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// ResolvePageImage returns "{base}-{page}.jpg". pdftoppm zero-pads page numbers
// to the width of the page total, so a padded file is renamed over the plain name.
// Padded names win: they can only come from the latest rasterization.
func ResolvePageImage(base string, page int) (string, error) {
	want := constants.PageBase(base, page) + constants.ImageExt
	for width := 2; width <= 6; width++ {
		padded := fmt.Sprintf("%s-%0*d%s", base, width, page, constants.ImageExt)
		if _, err := os.Stat(padded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return want, common.IOError("stat page image", err)
		}
		if err := os.Rename(padded, want); err != nil {
			return want, common.IOError("rename page image", err)
		}
		return want, nil
	}
	if _, err := os.Stat(want); err == nil {
		return want, nil
	}
	return want, common.MissingArtifactError(want)
}

// Cropper trims every page image in place to a fixed geometry with ImageMagick.
type Cropper struct {
	Bin      string
	Geometry string
	Runner   Runner
	Logger   *slog.Logger
}

func NewCropper(bin, geometry string, r Runner, logger *slog.Logger) *Cropper {
	if bin == "" {
		bin = "convert"
	}
	if geometry == "" {
		geometry = common.DefaultCropGeometry
	}
	if r == nil {
		r = ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cropper{Bin: bin, Geometry: geometry, Runner: r, Logger: logger}
}

// Crop overwrites imagePath with its cropped version.
func (c *Cropper) Crop(ctx context.Context, page int, imagePath string) (Diagnostic, bool) {
	_, errb, err := c.Runner.Run(ctx, c.Bin, c.Logger, "-crop", c.Geometry, imagePath, imagePath)
	return toolDiagnostic(c.Bin, page, errb, err)
}
