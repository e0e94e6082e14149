package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "precedent2txt %s\n", Version)
			fmt.Fprintf(w, "  Git Commit:  %s\n", GitCommit)
			fmt.Fprintf(w, "  Build Time:  %s\n", BuildTime)
			fmt.Fprintf(w, "  Go Version:  %s\n", runtime.Version())
			fmt.Fprintf(w, "  OS/Arch:     %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
