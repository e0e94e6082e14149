package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/precedent2txt/internal/entity"
)

const caseRunsTable = "case_runs"

// Fixed width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// Plain DDL that both SQLite and PostgreSQL accept.
var caseRunsDDL = []string{
	`CREATE TABLE IF NOT EXISTS case_runs (
		run_id        TEXT    NOT NULL,
		case_name     TEXT    NOT NULL,
		case_number   TEXT    NOT NULL DEFAULT '',
		mode          TEXT    NOT NULL,
		status        TEXT    NOT NULL,
		error_kind    TEXT,
		error_message TEXT,
		diagnostics   TEXT    NOT NULL DEFAULT '[]',
		pages         INTEGER NOT NULL DEFAULT 0,
		text_bytes    INTEGER NOT NULL DEFAULT 0,
		started_at    TEXT    NOT NULL,
		finished_at   TEXT,
		PRIMARY KEY (run_id, case_name)
	)`,
	`CREATE INDEX IF NOT EXISTS case_runs_started_at_idx ON case_runs (started_at)`,
}

var caseRunColumns = []string{
	"run_id", "case_name", "case_number", "mode", "status", "error_kind", "error_message",
	"diagnostics", "pages", "text_bytes", "started_at", "finished_at",
}

// ErrNoRuns is returned by LatestRunID on an empty ledger.
var ErrNoRuns = errors.New("ledger has no runs")

type CaseRunRepository interface {
	EnsureSchema(ctx context.Context) error
	Start(ctx context.Context, run entity.CaseRun) error
	Finish(ctx context.Context, run entity.CaseRun) error
	ListByRun(ctx context.Context, runID uuid.UUID) ([]entity.CaseRun, error)
	LatestRunID(ctx context.Context) (uuid.UUID, error)
}

type caseRunRepo struct {
	drv     *entsql.Driver
	dialect string
	log     *slog.Logger
}

func NewCaseRunRepository(db *DB, log *slog.Logger) CaseRunRepository {
	if log == nil {
		log = slog.Default()
	}
	return &caseRunRepo{drv: db.Driver, dialect: db.Dialect, log: log}
}

func (r *caseRunRepo) EnsureSchema(ctx context.Context) error {
	for _, stmt := range caseRunsDDL {
		if err := r.drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			r.log.Error("case_runs schema failed", "err", err)
			return fmt.Errorf("ensure case_runs schema: %w", err)
		}
	}
	return nil
}

func (r *caseRunRepo) Start(ctx context.Context, run entity.CaseRun) error {
	diags, err := json.Marshal(nonNil(run.Diagnostics))
	if err != nil {
		return err
	}
	query, args := entsql.Dialect(r.dialect).
		Insert(caseRunsTable).
		Columns(caseRunColumns...).
		Values(
			run.RunID.String(), run.CaseName, run.CaseNumber, run.Mode, run.Status,
			nullable(run.ErrorKind), nullable(run.ErrorMessage), string(diags),
			run.Pages, run.TextBytes, formatTime(run.StartedAt), nullableTime(run.FinishedAt),
		).
		OnConflict(
			entsql.ConflictColumns("run_id", "case_name"),
			entsql.ResolveWithNewValues(),
		).
		Query()
	if err := r.drv.Exec(ctx, query, args, nil); err != nil {
		r.log.Error("case_run start failed", "run_id", run.RunID, "case", run.CaseName, "err", err)
		return err
	}
	r.log.Debug("case_run started", "run_id", run.RunID, "case", run.CaseName)
	return nil
}

func (r *caseRunRepo) Finish(ctx context.Context, run entity.CaseRun) error {
	diags, err := json.Marshal(nonNil(run.Diagnostics))
	if err != nil {
		return err
	}
	finished := run.FinishedAt
	if finished == nil {
		now := time.Now().UTC()
		finished = &now
	}
	query, args := entsql.Dialect(r.dialect).
		Update(caseRunsTable).
		Set("case_number", run.CaseNumber).
		Set("mode", run.Mode).
		Set("status", run.Status).
		Set("error_kind", nullable(run.ErrorKind)).
		Set("error_message", nullable(run.ErrorMessage)).
		Set("diagnostics", string(diags)).
		Set("pages", run.Pages).
		Set("text_bytes", run.TextBytes).
		Set("finished_at", formatTime(*finished)).
		Where(entsql.And(
			entsql.EQ("run_id", run.RunID.String()),
			entsql.EQ("case_name", run.CaseName),
		)).
		Query()
	var res sql.Result
	if err := r.drv.Exec(ctx, query, args, &res); err != nil {
		r.log.Error("case_run finish failed", "run_id", run.RunID, "case", run.CaseName, "err", err)
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("case_run %s/%s not started", run.RunID, run.CaseName)
	}
	r.log.Debug("case_run finished", "run_id", run.RunID, "case", run.CaseName, "status", run.Status)
	return nil
}

func (r *caseRunRepo) ListByRun(ctx context.Context, runID uuid.UUID) ([]entity.CaseRun, error) {
	b := entsql.Dialect(r.dialect)
	query, args := b.Select(caseRunColumns...).
		From(b.Table(caseRunsTable)).
		Where(entsql.EQ("run_id", runID.String())).
		OrderBy("started_at", "case_name").
		Query()

	rows := &entsql.Rows{}
	if err := r.drv.Query(ctx, query, args, rows); err != nil {
		r.log.Error("case_run list failed", "run_id", runID, "err", err)
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []entity.CaseRun
	for rows.Next() {
		run, err := scanCaseRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (r *caseRunRepo) LatestRunID(ctx context.Context) (uuid.UUID, error) {
	b := entsql.Dialect(r.dialect)
	query, args := b.Select("run_id").
		From(b.Table(caseRunsTable)).
		OrderBy(entsql.Desc("started_at")).
		Limit(1).
		Query()

	rows := &entsql.Rows{}
	if err := r.drv.Query(ctx, query, args, rows); err != nil {
		return uuid.Nil, err
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return uuid.Nil, err
		}
		return uuid.Nil, ErrNoRuns
	}
	var id string
	if err := rows.Scan(&id); err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(id)
}

func scanCaseRun(rows *entsql.Rows) (entity.CaseRun, error) {
	var (
		run                         entity.CaseRun
		runID, diags, started       string
		errKind, errMsg, finishedAt sql.NullString
	)
	if err := rows.Scan(
		&runID, &run.CaseName, &run.CaseNumber, &run.Mode, &run.Status, &errKind, &errMsg,
		&diags, &run.Pages, &run.TextBytes, &started, &finishedAt,
	); err != nil {
		return run, err
	}
	id, err := uuid.Parse(runID)
	if err != nil {
		return run, fmt.Errorf("parse run_id: %w", err)
	}
	run.RunID = id
	if errKind.Valid {
		run.ErrorKind = &errKind.String
	}
	if errMsg.Valid {
		run.ErrorMessage = &errMsg.String
	}
	if err := json.Unmarshal([]byte(diags), &run.Diagnostics); err != nil {
		return run, fmt.Errorf("decode diagnostics: %w", err)
	}
	if run.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return run, fmt.Errorf("parse started_at: %w", err)
	}
	if finishedAt.Valid {
		t, err := time.Parse(timeLayout, finishedAt.String)
		if err != nil {
			return run, fmt.Errorf("parse finished_at: %w", err)
		}
		run.FinishedAt = &t
	}
	return run, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeLayout)
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
