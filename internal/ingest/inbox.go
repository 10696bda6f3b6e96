package ingest

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FailedDir is the inbox subdirectory holding files whose submission failed.
const FailedDir = "failed"

// Inbox submits every PDF that lands in a directory and removes the original
// once its task has been scheduled. Files that could not be submitted are
// moved to FailedDir and never retried automatically.
type Inbox struct {
	dir      string
	debounce time.Duration
	sub      Submitter
	logger   *slog.Logger
}

func NewInbox(dir string, debounce time.Duration, sub Submitter, logger *slog.Logger) *Inbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inbox{dir: dir, debounce: debounce, sub: sub, logger: logger}
}

// Run watches the inbox until ctx ends. Files already present are submitted first.
func (in *Inbox) Run(ctx context.Context) error {
	if err := os.MkdirAll(in.dir, 0o755); err != nil {
		return err
	}
	events, errs, err := StartWatcher(ctx, WatchConfig{
		Roots:       []string{in.dir},
		InitialScan: true,
		Debounce:    in.debounce,
	}, in.logger)
	if err != nil {
		return err
	}
	in.logger.Info("inbox watching", "dir", in.dir)

	for {
		select {
		case path, ok := <-events:
			if !ok {
				return ctx.Err()
			}
			in.submit(ctx, path)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			in.logger.Warn("inbox watcher error", "error", err)
		}
	}
}

func (in *Inbox) submit(ctx context.Context, path string) {
	if in.isFailed(path) {
		return
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		// already consumed; a rename or a second write event
		return
	}
	id, err := SubmitFile(ctx, in.sub, path)
	if err != nil {
		// a non-zero id means the task row exists but was failed before running;
		// the stored copy is gone, so the original is the only one left
		in.logger.Error("inbox submit failed", "path", path, "task_id", id, "error", err)
		in.quarantine(path)
		return
	}
	if err := os.Remove(path); err != nil {
		in.logger.Warn("inbox cleanup failed", "path", path, "error", err)
	}
	in.logger.Info("inbox file submitted", "path", path, "task_id", id)
}

func (in *Inbox) isFailed(path string) bool {
	rel, err := filepath.Rel(filepath.Join(in.dir, FailedDir), path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (in *Inbox) quarantine(path string) {
	dst := filepath.Join(in.dir, FailedDir)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		in.logger.Warn("inbox quarantine failed", "path", path, "error", err)
		return
	}
	dst = filepath.Join(dst, filepath.Base(path))
	if err := os.Rename(path, dst); err != nil {
		in.logger.Warn("inbox quarantine failed", "path", path, "error", err)
		return
	}
	in.logger.Info("inbox file quarantined", "path", dst)
}
