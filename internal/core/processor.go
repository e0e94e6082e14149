package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/precedent2txt/constants"
	"github.com/joseph-ayodele/precedent2txt/internal/common"
	"github.com/joseph-ayodele/precedent2txt/internal/core/ocr"
	"github.com/joseph-ayodele/precedent2txt/internal/entity"
	"github.com/joseph-ayodele/precedent2txt/internal/utils"
)

// Fetcher copies a document from source to dest.
type Fetcher interface {
	Fetch(ctx context.Context, source, dest string) (int64, error)
}

// Options are the per-run settings the processor needs.
type Options struct {
	TmpDir     string
	OutputDir  string
	ReuseCache bool
	ForceRerun bool
}

// CaseResult is the outcome of one case. Err is set only when Status is FAILED.
type CaseResult struct {
	Name        string
	CaseNumber  string
	Method      string
	Status      constants.CaseStatus
	Downloaded  bool
	Pages       int
	TextBytes   int
	Diagnostics []string
	OutputPath  string
	SidecarPath string
	Err         error
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Processor runs one case at a time through cache check, fetch, recognition and join.
type Processor struct {
	logger     *slog.Logger
	fetcher    Fetcher
	counter    ocr.PageCounter
	recognizer ocr.Recognizer
	sink       EventSink
	opts       Options
}

func NewProcessor(
	logger *slog.Logger,
	fetcher Fetcher,
	counter ocr.PageCounter,
	recognizer ocr.Recognizer,
	sink EventSink,
	opts Options,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = SlogSink{Logger: logger}
	}
	if opts.TmpDir == "" {
		opts.TmpDir = "tmp"
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	return &Processor{
		logger:     logger,
		fetcher:    fetcher,
		counter:    counter,
		recognizer: recognizer,
		sink:       sink,
		opts:       opts,
	}
}

// Method names the recognition strategy this processor runs.
func (p *Processor) Method() string { return p.recognizer.Method() }

// caseRun carries the mutable state of one ProcessCase call.
type caseRun struct {
	p   *Processor
	ctx context.Context
	res CaseResult
}

func (c *caseRun) emit(typ string, attrs ...any) {
	c.p.sink.Emit(c.ctx, Event{Type: typ, Case: c.res.Name, Status: c.res.Status, Attrs: attrs})
}

func (c *caseRun) transition(s constants.CaseStatus) {
	c.res.Status = s
	c.emit(EventState)
}

func (c *caseRun) fail(err error) CaseResult {
	c.res.Status = constants.CaseStatusFailed
	c.res.Err = err
	c.res.FinishedAt = time.Now().UTC()
	c.p.sink.Emit(c.ctx, Event{Type: EventFailed, Case: c.res.Name, Status: c.res.Status, Err: err,
		Attrs: []any{"error_code", common.CodeOf(err)}})
	return c.res
}

// ProcessCase never panics on bad input and never returns an error: failures
// are reported in the result so sibling cases keep running.
func (p *Processor) ProcessCase(ctx context.Context, rec entity.CaseRecord) CaseResult {
	ctx = common.WithCaseName(ctx, rec.Name)
	c := &caseRun{p: p, ctx: ctx, res: CaseResult{
		Name:       rec.Name,
		CaseNumber: rec.CaseNumber,
		Method:     p.recognizer.Method(),
		Status:     constants.CaseStatusPending,
		StartedAt:  time.Now().UTC(),
	}}

	if rec.Err != nil {
		return c.fail(rec.Err)
	}
	if v := common.NewValidator().Field("name", rec.Name, common.FileName); v.HasErrors() {
		return c.fail(common.SchemaError(fmt.Sprintf("case %q: %s", rec.Name, v.ErrorMessage())))
	}
	if v := common.NewValidator().Field("case_number", rec.CaseNumber, common.Required); v.HasErrors() {
		return c.fail(common.SchemaError(fmt.Sprintf("case %q: %s", rec.Name, v.ErrorMessage())))
	}
	c.emit(EventCaseNumber, "case_number", rec.CaseNumber)

	base := filepath.Join(p.opts.TmpDir, rec.Name)
	pdfPath := base + constants.PDFExt
	outPath := filepath.Join(p.opts.OutputDir, rec.Name+constants.TextExt)
	sidecar := base + constants.ErrorSuffix
	c.res.OutputPath = outPath

	state, err := StatCacheState(pdfPath, outPath)
	if err != nil {
		return c.fail(err)
	}
	decision := ResolveCache(p.opts.ReuseCache, p.opts.ForceRerun, state.PDFCached, state.TextProduced)

	if !decision.ShouldRun {
		c.res.Status = constants.CaseStatusSkippedCached
		c.res.FinishedAt = time.Now().UTC()
		c.emit(EventTextCacheHit, "path", outPath)
		return c.res
	}

	if v := common.NewValidator().Field("full_pdf_link", rec.SourceURL, common.Required); v.HasErrors() {
		return c.fail(common.SchemaError(fmt.Sprintf("case %q: %s", rec.Name, v.ErrorMessage())))
	}
	c.emit(EventWriteStart)

	if decision.ShouldDownload {
		c.transition(constants.CaseStatusDownloading)
		c.emit(EventFetchStart, "source", rec.SourceURL)
		n, err := p.fetcher.Fetch(ctx, rec.SourceURL, pdfPath)
		if err != nil {
			return c.fail(err)
		}
		c.res.Downloaded = true
		c.emit(EventFetchEnd, "source", rec.SourceURL, "bytes", n)
	} else {
		c.emit(EventPDFCacheHit, "path", pdfPath)
	}

	job := ocr.Job{PDFPath: pdfPath, Base: base}
	if p.recognizer.NeedsPageCount() {
		c.transition(constants.CaseStatusCounting)
		n, err := p.counter.CountPages(ctx, pdfPath)
		if err != nil {
			return c.fail(err)
		}
		job.Pages = n
	}

	c.transition(constants.CaseStatusExtracting)
	ex, err := p.recognizer.Recognize(ctx, job)
	if err != nil {
		return c.fail(err)
	}

	c.transition(constants.CaseStatusJoining)
	outcome := ocr.Join(ex)
	c.res.Pages = outcome.Pages
	c.res.TextBytes = len(outcome.Text)

	if _, err := utils.WriteFileAtomic(outPath, strings.NewReader(outcome.Text), 0o644); err != nil {
		return c.fail(common.IOError("write output text", err))
	}

	for _, d := range outcome.Diagnostics {
		c.res.Diagnostics = append(c.res.Diagnostics, d.String())
		c.emit(EventDiagnostic, "code", d.Code, "page", d.Page, "message", truncateLine(d.Message))
	}
	if err := writeSidecar(sidecar, c.res.Diagnostics); err != nil {
		return c.fail(err)
	}
	if len(c.res.Diagnostics) > 0 {
		c.res.SidecarPath = sidecar
	}

	c.res.Status = constants.CaseStatusDone
	c.res.FinishedAt = time.Now().UTC()
	c.emit(EventWriteEnd, "path", outPath, "pages", c.res.Pages, "bytes", c.res.TextBytes,
		"diagnostics", len(c.res.Diagnostics), "duration_ms", c.res.FinishedAt.Sub(c.res.StartedAt).Milliseconds())
	return c.res
}

// writeSidecar writes one diagnostic per line, or removes a stale sidecar when there are none.
func writeSidecar(path string, diags []string) error {
	if len(diags) == 0 {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return common.IOError("remove stale sidecar", err)
		}
		return nil
	}
	var b strings.Builder
	for _, d := range diags {
		b.WriteString(strings.TrimRight(d, "\n"))
		b.WriteByte('\n')
	}
	if _, err := utils.WriteFileAtomic(path, strings.NewReader(b.String()), 0o644); err != nil {
		return common.IOError("write sidecar", err)
	}
	return nil
}

func truncateLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i] + " ..."
	}
	if len(s) > 512 {
		s = utils.TruncateUTF8(s, 512) + "...(truncated)"
	}
	return s
}
