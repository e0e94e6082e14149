//go:build !gosseract

package ocr

import (
	"log/slog"

	"github.com/joseph-ayodele/precedent2txt/internal/common"
)

func newGosseractEngine(common.OCRConfig, *slog.Logger) (Engine, error) {
	return nil, common.NewAppError(common.CodeConfig, "gosseract engine requires building with -tags gosseract", common.ErrInvalidInput)
}
