package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/nfse-reader/internal/app"
	"github.com/joseph-ayodele/nfse-reader/internal/core"
)

var (
	extractRecord  bool
	extractDebug   string
	extractTimeout = defaultTimeout
)

var extractCmd = &cobra.Command{
	Use:   "extract <pdf>",
	Short: "Extract an invoice PDF and print the record as JSON",
	Long: `Extract renders the first page of the PDF, reads the configured layout's
regions and prints the parsed record. With --record the document goes through
the task lifecycle instead and the outcome is stored like an uploaded file.`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().BoolVar(&extractRecord, "record", false, "store the run as a task in the database")
	extractCmd.Flags().StringVar(&extractDebug, "debug-dir", "", "write annotated debug images to this directory")
	extractCmd.Flags().DurationVar(&extractTimeout, "timeout", defaultTimeout, "abort extraction after this long")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	path := args[0]
	if extractDebug != "" {
		cfg.Layout.DebugDir = extractDebug
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), extractTimeout)
	defer cancel()

	if !extractRecord {
		pipe, err := app.NewPipeline(cfg, logger)
		if err != nil {
			return err
		}
		rec, err := pipe.Extract(ctx, path)
		if err != nil {
			return fmt.Errorf("extract %s: %w", path, err)
		}
		return printJSON(cmd, rec)
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	a.Executor.UseScheduler(core.Inline{Exec: a.Executor, Timeout: extractTimeout})

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	id, err := a.Executor.Submit(ctx, filepath.Base(path), f)
	if err != nil {
		return err
	}
	return printTask(ctx, cmd, a, id)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
