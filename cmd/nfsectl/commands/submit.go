package commands

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/nfse-reader/internal/core"
	"github.com/joseph-ayodele/nfse-reader/internal/ingest"
)

var submitSkipHidden bool

var submitDirCmd = &cobra.Command{
	Use:   "submit-dir <dir>",
	Short: "Extract every PDF under a directory, recording one task per file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), time.Hour)
		defer cancel()

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		a.Executor.UseScheduler(core.Inline{Exec: a.Executor, Timeout: extractTimeout})

		results, stats, err := ingest.SubmitDirectory(ctx, a.Executor, args[0], submitSkipHidden, logger)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TASK\tSTATUS\tPATH")
		for _, r := range results {
			status := "-"
			if r.TaskID != 0 {
				if view, err := a.Executor.Status(ctx, r.TaskID); err == nil && view != nil {
					status = string(view.Status)
				}
			}
			if r.Err != "" {
				status = "error: " + r.Err
			}
			fmt.Fprintf(w, "%d\t%s\t%s\n", r.TaskID, status, r.Path)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "matched %d, submitted %d, failed %d\n", stats.Matched, stats.Submitted, stats.Failed)
		return nil
	},
}

func init() {
	submitDirCmd.Flags().BoolVar(&submitSkipHidden, "skip-hidden", true, "skip dot files and directories")
	submitDirCmd.Flags().DurationVar(&extractTimeout, "timeout", defaultTimeout, "abort each extraction after this long")
	rootCmd.AddCommand(submitDirCmd)
}
