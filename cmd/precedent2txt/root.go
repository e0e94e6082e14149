package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/precedent2txt/constants"
	"github.com/joseph-ayodele/precedent2txt/internal/common"
	"github.com/joseph-ayodele/precedent2txt/internal/core"
	"github.com/joseph-ayodele/precedent2txt/internal/core/async"
	"github.com/joseph-ayodele/precedent2txt/internal/core/fetch"
	"github.com/joseph-ayodele/precedent2txt/internal/core/ocr"
	"github.com/joseph-ayodele/precedent2txt/internal/entity"
	"github.com/joseph-ayodele/precedent2txt/internal/export"
	"github.com/joseph-ayodele/precedent2txt/internal/ingest"
	repo "github.com/joseph-ayodele/precedent2txt/internal/repository"
)

// errCasesFailed makes the process exit non-zero once the summary is printed.
var errCasesFailed = errors.New("one or more cases failed")

type batchFlags struct {
	input           string
	tmp             string
	output          string
	mode            string
	doNotUseCache   bool
	forceRerun      bool
	workers         int
	lang            string
	toolTimeout     time.Duration
	caseTimeout     time.Duration
	ledger          string
	reportXLSX      string
	acceptAnyStatus bool
	pageCounter     string
	verbose         bool
	logJSON         bool
}

func newRootCmd() *cobra.Command {
	f := &batchFlags{}
	cmd := &cobra.Command{
		Use:   "precedent2txt",
		Short: "Convert judicial case PDFs into plain text",
		Long: "precedent2txt reads a JSON list of case records, fetches each PDF and\n" +
			"writes {name}.txt using either the PDF text layer or page OCR.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := f.config(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cmd.ErrOrStderr(), f.verbose, f.logJSON)
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runBatch(ctx, cfg, logger, cmd.OutOrStdout())
		},
	}

	bindBatchFlags(cmd, f)
	cmd.AddCommand(newReportCmd(), newPagesCmd(), newVersionCmd())
	return cmd
}

func bindBatchFlags(cmd *cobra.Command, f *batchFlags) {
	fs := cmd.Flags()
	fs.StringVar(&f.input, "input", "", "case records JSON file (required)")
	fs.StringVar(&f.tmp, "tmp", "tmp", "directory for downloaded PDFs and intermediate files")
	fs.StringVar(&f.output, "output", ".", "directory for the final {name}.txt files")
	fs.StringVar(&f.mode, "mode", string(constants.ModeTextLayer), "recognition mode: text-layer (p2t) or ocr")
	fs.BoolVar(&f.doNotUseCache, "do-not-use-cache", false, "always download PDFs even when cached")
	fs.BoolVar(&f.forceRerun, "force-re-run", false, "re-extract even when the output text exists")
	fs.BoolVar(&f.forceRerun, "force-re-ocr", false, "alias of --force-re-run")
	fs.IntVar(&f.workers, "workers", 1, "cases processed concurrently")
	fs.StringVar(&f.lang, "lang", common.DefaultLang, "tesseract language")
	fs.DurationVar(&f.toolTimeout, "tool-timeout", 10*time.Minute, "timeout per external tool invocation (0 disables)")
	fs.DurationVar(&f.caseTimeout, "case-timeout", 30*time.Minute, "timeout per case (0 disables)")
	fs.StringVar(&f.ledger, "ledger", "", "run ledger DSN: SQLite path or postgres:// URL; empty string disables (default {tmp}/ledger.db)")
	fs.StringVar(&f.reportXLSX, "report-xlsx", "", "write an XLSX report of this run")
	fs.BoolVar(&f.acceptAnyStatus, "accept-any-status", false, "write the response body whatever the HTTP status")
	fs.StringVar(&f.pageCounter, "page-counter", "pdfinfo", "page counter: pdfinfo or pdfcpu")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "debug logging")
	fs.BoolVar(&f.logJSON, "log-json", false, "log as JSON")
	_ = cmd.MarkFlagRequired("input")
}

// config starts from the environment and applies only the flags the user set.
func (f *batchFlags) config(cmd *cobra.Command) (*common.Config, error) {
	fs := cmd.Flags()
	cfg := common.LoadConfig()
	ledgerFromEnv := os.Getenv("LEDGER_DSN") != ""

	cfg.Batch.Input = f.input
	if fs.Changed("tmp") {
		cfg.Batch.TmpDir = f.tmp
		if !ledgerFromEnv {
			cfg.Ledger.DSN = common.DefaultLedgerDSN(f.tmp)
		}
	}
	if fs.Changed("output") {
		cfg.Batch.OutputDir = f.output
	}
	if fs.Changed("mode") {
		m, ok := constants.ParseMode(f.mode)
		if !ok {
			return nil, common.NewAppError(common.CodeConfig, "unknown mode "+f.mode, common.ErrInvalidInput)
		}
		cfg.Batch.Mode = m
	}
	if fs.Changed("do-not-use-cache") {
		cfg.Batch.ReuseCache = !f.doNotUseCache
	}
	if fs.Changed("force-re-run") || fs.Changed("force-re-ocr") {
		cfg.Batch.ForceRerun = f.forceRerun
	}
	if fs.Changed("workers") {
		cfg.Batch.Workers = f.workers
	}
	if fs.Changed("lang") {
		cfg.OCR.Lang = f.lang
	}
	if fs.Changed("tool-timeout") {
		cfg.Tools.Timeout = f.toolTimeout
	}
	if fs.Changed("case-timeout") {
		cfg.Batch.CaseTimeout = f.caseTimeout
	}
	if fs.Changed("ledger") {
		cfg.Ledger.DSN = f.ledger
	}
	if fs.Changed("report-xlsx") {
		cfg.Batch.ReportXLSX = f.reportXLSX
	}
	if fs.Changed("accept-any-status") {
		cfg.Fetch.AcceptAnyStatus = f.acceptAnyStatus
	}
	if fs.Changed("page-counter") {
		cfg.OCR.PageCounter = f.pageCounter
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newRecognizer wires the external tools for the configured mode.
func newRecognizer(cfg *common.Config, r ocr.Runner, logger *slog.Logger) (ocr.Recognizer, error) {
	if cfg.Batch.Mode == constants.ModeTextLayer {
		return ocr.NewTextLayerRecognizer(cfg.Tools.Pdftotext, r, logger), nil
	}
	engine, err := ocr.NewEngine(cfg.OCR, cfg.Tools.Tesseract, r, logger)
	if err != nil {
		return nil, err
	}
	return &ocr.PageOCRRecognizer{
		Rasterizer: ocr.NewRasterizer(cfg.Tools.Pdftoppm, r, logger),
		Cropper:    ocr.NewCropper(cfg.Tools.Convert, cfg.OCR.CropGeometry, r, logger),
		Engine:     engine,
		Logger:     logger,
	}, nil
}

// openLedger returns nil when the ledger is disabled or unreachable; the batch runs either way.
func openLedger(ctx context.Context, cfg common.LedgerConfig, logger *slog.Logger) (*repo.DB, repo.CaseRunRepository) {
	if cfg.DSN == "" {
		return nil, nil
	}
	db, err := repo.Open(ctx, repo.Config{
		DSN:         cfg.DSN,
		MaxConns:    cfg.MaxConns,
		MinConns:    1,
		DialTimeout: cfg.DialTimeout,
	}, logger)
	if err != nil {
		logger.Warn("ledger disabled", "error", err)
		return nil, nil
	}
	if err := repo.HealthCheck(ctx, db, cfg.DialTimeout, logger); err != nil {
		logger.Warn("ledger disabled", "error", err)
		db.Close(logger)
		return nil, nil
	}
	runs := repo.NewCaseRunRepository(db, logger)
	if err := runs.EnsureSchema(ctx); err != nil {
		logger.Warn("ledger disabled", "error", err)
		db.Close(logger)
		return nil, nil
	}
	return db, runs
}

func runBatch(ctx context.Context, cfg *common.Config, logger *slog.Logger, out io.Writer) error {
	for _, dir := range []string{cfg.Batch.TmpDir, cfg.Batch.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return common.IOError("create "+dir, err)
		}
	}

	loader, err := ingest.NewJSONLoader(logger)
	if err != nil {
		return err
	}
	records, err := loader.LoadFile(ctx, cfg.Batch.Input)
	if err != nil {
		return common.WrapError(err, "load cases")
	}

	runner := ocr.ExecRunner{Timeout: cfg.Tools.Timeout}
	recognizer, err := newRecognizer(cfg, runner, logger)
	if err != nil {
		return err
	}
	counter := ocr.NewPageCounter(cfg.OCR.PageCounter, cfg.Tools.Pdfinfo, runner, logger)

	fetcher := fetch.New(logger,
		fetch.WithTimeout(cfg.Fetch.Timeout),
		fetch.WithUserAgent(cfg.Fetch.UserAgent),
		fetch.WithAcceptAnyStatus(cfg.Fetch.AcceptAnyStatus),
	)
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("close fetcher", "error", err)
		}
	}()

	proc := core.NewProcessor(logger, fetcher, counter, recognizer, nil, core.Options{
		TmpDir:     cfg.Batch.TmpDir,
		OutputDir:  cfg.Batch.OutputDir,
		ReuseCache: cfg.Batch.ReuseCache,
		ForceRerun: cfg.Batch.ForceRerun,
	})

	db, runs := openLedger(ctx, cfg.Ledger, logger)
	defer db.Close(logger)

	opts := []async.Option{
		async.WithWorkers(cfg.Batch.Workers),
		async.WithCaseTimeout(cfg.Batch.CaseTimeout),
	}
	if runs != nil {
		opts = append(opts, async.WithLedger(runs))
	}
	report := async.NewBatch(proc, logger, opts...).Run(ctx, records)

	if cfg.Batch.ReportXLSX != "" {
		if err := writeReport(ctx, cfg.Batch.ReportXLSX, report, runs, logger); err != nil {
			logger.Error("report.xlsx failed", "path", cfg.Batch.ReportXLSX, "error", err)
		}
	}

	printSummary(out, report)
	if report.HasFailures() {
		return errCasesFailed
	}
	return nil
}

func writeReport(ctx context.Context, path string, report async.BatchReport, runs repo.CaseRunRepository, logger *slog.Logger) error {
	svc := export.NewService(runs, logger)
	var (
		b   []byte
		err error
	)
	if runs != nil {
		b, err = svc.ExportRunXLSX(ctx, report.RunID)
	} else {
		b, err = svc.WriteRunsXLSX(reportRuns(report))
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func printSummary(w io.Writer, report async.BatchReport) {
	for _, r := range report.Results {
		if r.Err != nil {
			fmt.Fprintf(w, "FAILED %s: %v\n", r.Name, r.Err)
		}
	}
	fmt.Fprintf(w, "Run %s complete in %s\n", report.RunID, report.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "- Succeeded: %d\n", report.Succeeded)
	fmt.Fprintf(w, "- Skipped (cached): %d\n", report.Skipped)
	fmt.Fprintf(w, "- Failed: %d\n", report.Failed)
}

func reportRuns(report async.BatchReport) []entity.CaseRun {
	runs := make([]entity.CaseRun, 0, len(report.Results))
	for _, r := range report.Results {
		runs = append(runs, async.ToCaseRun(report.RunID, r))
	}
	return runs
}
