package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/joseph-ayodele/precedent2txt/internal/common"
)

var rePages = regexp.MustCompile(`Pages:\s*(\d+)`)

// PageCounter reports how many pages a PDF has.
type PageCounter interface {
	CountPages(ctx context.Context, pdfPath string) (int, error)
}

// ParsePageCount extracts N from the "Pages: N" line of a pdfinfo report.
func ParsePageCount(report []byte) (int, error) {
	m := rePages.FindSubmatch(report)
	if m == nil {
		return 0, common.ParseError("page count not found in pdfinfo output", nil)
	}
	n, err := strconv.ParseUint(string(m[1]), 10, 32)
	if err != nil {
		return 0, common.ParseError(fmt.Sprintf("page count %q", m[1]), err)
	}
	return int(n), nil
}

// PdfinfoCounter shells out to poppler's pdfinfo.
type PdfinfoCounter struct {
	Bin    string
	Runner Runner
	Logger *slog.Logger
}

func NewPdfinfoCounter(bin string, r Runner, logger *slog.Logger) *PdfinfoCounter {
	if bin == "" {
		bin = "pdfinfo"
	}
	if r == nil {
		r = ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PdfinfoCounter{Bin: bin, Runner: r, Logger: logger}
}

func (c *PdfinfoCounter) CountPages(ctx context.Context, pdfPath string) (int, error) {
	// Exit status is ignored: only the report matters.
	out, errb, err := c.Runner.Run(ctx, c.Bin, c.Logger, pdfPath)
	n, perr := ParsePageCount(out)
	if perr != nil {
		c.Logger.Error("pagecount.failed", "path", pdfPath, "error", perr, "exec_error", err, "stderr", truncate(string(errb), 1<<10))
		if err != nil {
			return 0, common.ParseError(fmt.Sprintf("pdfinfo %s", pdfPath), err)
		}
		return 0, perr
	}
	c.Logger.Debug("pagecount.ok", "path", pdfPath, "pages", n)
	return n, nil
}

// PdfcpuCounter reads the page tree in-process.
type PdfcpuCounter struct {
	Logger *slog.Logger
}

func (c PdfcpuCounter) CountPages(ctx context.Context, pdfPath string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n, err := api.PageCountFile(pdfPath)
	if err != nil {
		return 0, common.ParseError(fmt.Sprintf("pdfcpu page count %s", pdfPath), err)
	}
	if c.Logger != nil {
		c.Logger.Debug("pagecount.ok", "path", pdfPath, "pages", n, "counter", "pdfcpu")
	}
	return n, nil
}

// NewPageCounter picks the implementation named by kind ("pdfinfo" or "pdfcpu").
func NewPageCounter(kind, pdfinfoBin string, r Runner, logger *slog.Logger) PageCounter {
	if kind == "pdfcpu" {
		return PdfcpuCounter{Logger: logger}
	}
	return NewPdfinfoCounter(pdfinfoBin, r, logger)
}
