package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

type FileResult struct {
	Path   string
	TaskID int64
	Err    string
}

type DirStats struct {
	Scanned   uint32
	Matched   uint32
	Submitted uint32
	Failed    uint32
}

// SubmitFile opens path and submits it under its base name.
func SubmitFile(ctx context.Context, sub Submitter, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return sub.Submit(ctx, filepath.Base(path), f)
}

// SubmitDirectory walks root, skips hidden entries if requested, and submits
// every PDF it finds. A failing file is recorded and the walk continues.
func SubmitDirectory(ctx context.Context, sub Submitter, root string, skipHidden bool, logger *slog.Logger) ([]FileResult, DirStats, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}

	var results []FileResult
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, FileResult{Path: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !Allowed(path) {
			return nil
		}
		stats.Matched++

		id, err := SubmitFile(ctx, sub, path)
		if err != nil {
			logger.Warn("submit failed", "path", path, "error", err)
			results = append(results, FileResult{Path: path, TaskID: id, Err: err.Error()})
			stats.Failed++
			return nil
		}
		results = append(results, FileResult{Path: path, TaskID: id})
		stats.Submitted++
		return nil
	})
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}

	logger.Info("directory submitted",
		"root", root,
		"matched", stats.Matched,
		"submitted", stats.Submitted,
		"failed", stats.Failed,
	)
	return results, stats, nil
}
