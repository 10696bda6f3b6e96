package commands

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/nfse-reader/internal/app"
)

const defaultTimeout = 3 * time.Minute

var statusCmd = &cobra.Command{
	Use:   "status <task-id>",
	Short: "Show a task's status and, once completed, its result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("task id must be a positive integer, got %q", args[0])
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		return printTask(ctx, cmd, a, id)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func printTask(ctx context.Context, cmd *cobra.Command, a *app.App, id int64) error {
	view, err := a.Executor.Status(ctx, id)
	if err != nil {
		return err
	}
	if view == nil {
		return fmt.Errorf("task %d not found", id)
	}
	out := map[string]any{"task": view}

	rec, err := a.Executor.Result(ctx, id)
	if err != nil {
		return err
	}
	if rec != nil {
		out["result"] = rec
	}
	task, err := a.Tasks.Get(ctx, id)
	if err != nil {
		return err
	}
	if task.ErrorMessage != nil {
		out["error"] = *task.ErrorMessage
	}
	return printJSON(cmd, out)
}
