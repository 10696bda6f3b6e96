package ocr

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"time"
)

// Runner executes the OCR engine. Tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct {
	logger *slog.Logger
}

func (r execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now()
	err := cmd.Run()
	attrs := []any{
		"engine", name,
		"argc", len(args),
		"elapsed_ms", time.Since(started).Milliseconds(),
	}

	if err == nil {
		r.logger.Debug("ocr.exec.ok", append(attrs, "text_bytes", stdout.Len())...)
		return stdout.Bytes(), stderr.Bytes(), nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		attrs = append(attrs, "exit_code", exitErr.ExitCode())
	}
	if ctx.Err() != nil {
		attrs = append(attrs, "ctx_err", ctx.Err())
	}
	r.logger.Warn("ocr.exec.failed", append(attrs, "error", err, "stderr", truncate(stderr.String(), 4<<10))...)
	return stdout.Bytes(), stderr.Bytes(), err
}

// truncate caps s at max bytes for logs and error messages.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
