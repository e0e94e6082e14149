package async

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/precedent2txt/constants"
	"github.com/joseph-ayodele/precedent2txt/internal/common"
	"github.com/joseph-ayodele/precedent2txt/internal/core"
	"github.com/joseph-ayodele/precedent2txt/internal/entity"
	"github.com/joseph-ayodele/precedent2txt/internal/utils"
)

// CaseProcessor is the part of core.Processor the batch depends on.
type CaseProcessor interface {
	Method() string
	ProcessCase(ctx context.Context, rec entity.CaseRecord) core.CaseResult
}

// Ledger persists one row per case and run.
type Ledger interface {
	Start(ctx context.Context, run entity.CaseRun) error
	Finish(ctx context.Context, run entity.CaseRun) error
}

// BatchReport summarizes a run. Results keep input order.
type BatchReport struct {
	RunID     uuid.UUID
	Results   []core.CaseResult
	Succeeded int
	Skipped   int
	Failed    int
	Duration  time.Duration
}

func (r BatchReport) HasFailures() bool { return r.Failed > 0 }

// Batch runs cases through a bounded pool. One case failing never stops the others.
type Batch struct {
	proc        CaseProcessor
	logger      *slog.Logger
	ledger      Ledger
	workers     int
	caseTimeout time.Duration
	runID       uuid.UUID
}

type Option func(*Batch)

func WithWorkers(n int) Option {
	return func(b *Batch) {
		if n > 0 {
			b.workers = n
		}
	}
}

func WithCaseTimeout(d time.Duration) Option {
	return func(b *Batch) {
		if d > 0 {
			b.caseTimeout = d
		}
	}
}

func WithLedger(l Ledger) Option {
	return func(b *Batch) { b.ledger = l }
}

func WithRunID(id uuid.UUID) Option {
	return func(b *Batch) {
		if id != uuid.Nil {
			b.runID = id
		}
	}
}

func NewBatch(proc CaseProcessor, logger *slog.Logger, opts ...Option) *Batch {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Batch{
		proc:    proc,
		logger:  logger,
		workers: 1,
		runID:   uuid.New(),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

func (b *Batch) RunID() uuid.UUID { return b.runID }

// Run processes every record and returns once all started cases finished.
// Cases not yet started when ctx is cancelled are reported as failed.
func (b *Batch) Run(ctx context.Context, records []entity.CaseRecord) BatchReport {
	start := time.Now()
	ctx = common.WithRunID(ctx, b.runID.String())
	logger := common.LoggerFrom(ctx, b.logger)
	logger.Info("batch.start", "cases", len(records), "workers", b.workers, "mode", b.proc.Method())

	results := make([]core.CaseResult, len(records))
	var g errgroup.Group
	g.SetLimit(b.workers)
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			results[i] = core.CaseResult{
				Name:       rec.Name,
				CaseNumber: rec.CaseNumber,
				Method:     b.proc.Method(),
				Status:     constants.CaseStatusFailed,
				Err:        fmt.Errorf("not started: %w", err),
			}
			continue
		}
		g.Go(func() error {
			results[i] = b.runOne(ctx, rec)
			return nil
		})
	}
	_ = g.Wait()

	report := BatchReport{RunID: b.runID, Results: results, Duration: time.Since(start)}
	for _, r := range results {
		switch r.Status {
		case constants.CaseStatusDone:
			report.Succeeded++
		case constants.CaseStatusSkippedCached:
			report.Skipped++
		default:
			report.Failed++
		}
	}
	logger.Info("batch.done",
		"succeeded", report.Succeeded,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"duration_ms", report.Duration.Milliseconds(),
	)
	return report
}

func (b *Batch) runOne(ctx context.Context, rec entity.CaseRecord) (res core.CaseResult) {
	logger := common.LoggerFrom(common.WithCaseName(ctx, rec.Name), b.logger)
	if b.caseTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.caseTimeout)
		defer cancel()
	}

	run := entity.CaseRun{
		RunID:      b.runID,
		CaseName:   rec.Name,
		CaseNumber: rec.CaseNumber,
		Mode:       b.proc.Method(),
		Status:     string(constants.CaseStatusPending),
		StartedAt:  time.Now().UTC(),
	}
	if b.ledger != nil {
		if err := b.ledger.Start(ctx, run); err != nil {
			logger.Error("ledger.start failed", "error", err)
		}
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("case panicked", "panic", r)
			res = core.CaseResult{
				Name:       rec.Name,
				CaseNumber: rec.CaseNumber,
				Method:     b.proc.Method(),
				Status:     constants.CaseStatusFailed,
				Err:        fmt.Errorf("panic: %v", r),
				StartedAt:  run.StartedAt,
				FinishedAt: time.Now().UTC(),
			}
		}
		if b.ledger != nil {
			// The case context may already be past its deadline.
			fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			if err := b.ledger.Finish(fctx, ToCaseRun(b.runID, res)); err != nil {
				logger.Error("ledger.finish failed", "error", err)
			}
		}
	}()

	return b.proc.ProcessCase(ctx, rec)
}

// ToCaseRun maps a case result onto a ledger row.
func ToCaseRun(runID uuid.UUID, res core.CaseResult) entity.CaseRun {
	run := entity.CaseRun{
		RunID:       runID,
		CaseName:    res.Name,
		CaseNumber:  res.CaseNumber,
		Mode:        res.Method,
		Status:      string(res.Status),
		Diagnostics: res.Diagnostics,
		Pages:       res.Pages,
		TextBytes:   res.TextBytes,
		StartedAt:   res.StartedAt,
	}
	if !res.FinishedAt.IsZero() {
		t := res.FinishedAt
		run.FinishedAt = &t
	}
	if res.Err != nil {
		kind := common.CodeOf(res.Err)
		if kind == "" {
			kind = "INTERNAL"
		}
		run.ErrorKind = utils.StrPtr(kind)
		run.ErrorMessage = utils.StrPtr(res.Err.Error())
	}
	return run
}
