//go:build gosseract

package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/otiai10/gosseract/v2"

	"github.com/joseph-ayodele/precedent2txt/internal/common"
)

// GosseractEngine runs tesseract in-process through libtesseract.
type GosseractEngine struct {
	Lang        string
	TessdataDir string
	Logger      *slog.Logger
}

func newGosseractEngine(cfg common.OCRConfig, logger *slog.Logger) (Engine, error) {
	lang := cfg.Lang
	if lang == "" {
		lang = common.DefaultLang
	}
	return &GosseractEngine{Lang: lang, TessdataDir: cfg.TessdataDir, Logger: logger}, nil
}

func (e *GosseractEngine) Name() string { return "gosseract" }

func (e *GosseractEngine) RecognizeImage(ctx context.Context, imagePath, outBase string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := gosseract.NewClient()
	defer c.Close()

	if e.TessdataDir != "" {
		if err := c.SetTessdataPrefix(e.TessdataDir); err != nil {
			return nil, fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	if err := c.SetLanguage(e.Lang); err != nil {
		return nil, fmt.Errorf("set languages: %w", err)
	}
	if err := c.SetImage(imagePath); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	text, err := c.Text()
	if err != nil {
		return nil, fmt.Errorf("recognize text: %w", err)
	}
	if err := os.WriteFile(outBase+".txt", []byte(text), 0o644); err != nil {
		return nil, fmt.Errorf("write page text: %w", err)
	}
	e.Logger.Debug("gosseract.ok", "image", imagePath, "chars", len(text))
	return nil, nil
}
