package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/precedent2txt/internal/common"
	"github.com/joseph-ayodele/precedent2txt/internal/export"
	repo "github.com/joseph-ayodele/precedent2txt/internal/repository"
)

func newReportCmd() *cobra.Command {
	var (
		ledger  string
		runID   string
		out     string
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Export one run from the ledger to XLSX",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger(cmd.ErrOrStderr(), verbose, false)
			if !cmd.Flags().Changed("ledger") {
				ledger = common.LoadConfig().Ledger.DSN
			}
			if ledger == "" {
				return common.NewAppError(common.CodeConfig, "--ledger is required", common.ErrInvalidInput)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			db, err := repo.Open(ctx, repo.Config{DSN: ledger, MaxConns: 2, MinConns: 1, DialTimeout: 3 * time.Second}, logger)
			if err != nil {
				return fmt.Errorf("open ledger: %w", err)
			}
			defer db.Close(logger)

			runs := repo.NewCaseRunRepository(db, logger)
			if err := runs.EnsureSchema(ctx); err != nil {
				return err
			}

			var id uuid.UUID
			if runID == "" {
				if id, err = runs.LatestRunID(ctx); err != nil {
					return err
				}
			} else if id, err = uuid.Parse(runID); err != nil {
				return common.NewAppError(common.CodeConfig, "invalid --run-id (must be UUID)", err)
			}

			b, err := export.NewService(runs, logger).ExportRunXLSX(ctx, id)
			if err != nil {
				return err
			}
			if out == "" {
				out = id.String() + ".xlsx"
			}
			if err := os.WriteFile(out, b, 0o644); err != nil {
				return common.IOError("write "+out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Run %s exported to %s\n", id, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&ledger, "ledger", "", "run ledger DSN (default $LEDGER_DSN or tmp/ledger.db)")
	cmd.Flags().StringVar(&runID, "run-id", "", "run to export (default: latest)")
	cmd.Flags().StringVar(&out, "out", "", "output XLSX path (default {run-id}.xlsx)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	return cmd
}
