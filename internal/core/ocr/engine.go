package ocr

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/precedent2txt/internal/common"
)

// Engine recognizes one image and writes the text to "{outBase}.txt".
type Engine interface {
	Name() string
	RecognizeImage(ctx context.Context, imagePath, outBase string) (stderr []byte, err error)
}

// TesseractCLI runs the tesseract binary.
type TesseractCLI struct {
	Bin         string
	Lang        string
	TessdataDir string
	Runner      Runner
	Logger      *slog.Logger
}

func (t *TesseractCLI) Name() string { return t.Bin }

func (t *TesseractCLI) RecognizeImage(ctx context.Context, imagePath, outBase string) ([]byte, error) {
	args := []string{imagePath, outBase, "-l", t.Lang}
	if t.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.TessdataDir)
	}
	_, errb, err := t.Runner.Run(ctx, t.Bin, t.Logger, args...)
	return errb, err
}

// NewEngine builds the engine named in cfg.Engine.
func NewEngine(cfg common.OCRConfig, tesseractBin string, r Runner, logger *slog.Logger) (Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Engine {
	case "gosseract":
		return newGosseractEngine(cfg, logger)
	case "", "tesseract":
		if tesseractBin == "" {
			tesseractBin = "tesseract"
		}
		if r == nil {
			r = ExecRunner{}
		}
		lang := cfg.Lang
		if lang == "" {
			lang = common.DefaultLang
		}
		return &TesseractCLI{Bin: tesseractBin, Lang: lang, TessdataDir: cfg.TessdataDir, Runner: r, Logger: logger}, nil
	default:
		return nil, common.NewAppError(common.CodeConfig, "unknown ocr engine "+cfg.Engine, common.ErrInvalidInput)
	}
}
