package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/precedent2txt/internal/common"
	"github.com/joseph-ayodele/precedent2txt/internal/core/ocr"
	"github.com/joseph-ayodele/precedent2txt/internal/ingest"
)

func newPagesCmd() *cobra.Command {
	var counterKind string
	cmd := &cobra.Command{
		Use:   "pages <pdf>...",
		Short: "Print the page count of each PDF",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := common.LoadConfig()
			if cmd.Flags().Changed("page-counter") {
				cfg.OCR.PageCounter = counterKind
			}
			logger := newLogger(cmd.ErrOrStderr(), false, false)
			runner := ocr.ExecRunner{Timeout: cfg.Tools.Timeout}
			counter := ocr.NewPageCounter(cfg.OCR.PageCounter, cfg.Tools.Pdfinfo, runner, logger)

			failed := 0
			for _, path := range args {
				if !ingest.AllowedExt(filepath.Ext(path)) {
					printError("%s: not a PDF\n", path)
					failed++
					continue
				}
				n, err := counter.CountPages(cmd.Context(), path)
				if err != nil {
					printError("%s: %v\n", path, err)
					failed++
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", path, n)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&counterKind, "page-counter", "pdfinfo", "page counter: pdfinfo or pdfcpu")
	return cmd
}
