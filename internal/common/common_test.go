package common

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DB_URL", "")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("WORKERS", "")

	cfg := LoadConfig()
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 300, cfg.OCR.DPI)
	assert.Equal(t, "por", cfg.OCR.Lang)
	assert.Equal(t, 6, cfg.OCR.PSM)
	assert.Equal(t, 3, cfg.OCR.OEM)
	assert.Equal(t, 1, cfg.OCR.CloseKernel)
	assert.InDelta(t, 0.6, cfg.Layout.Threshold, 1e-9)
	assert.Zero(t, cfg.Layout.MatchSide)
	assert.Equal(t, 5*time.Second, cfg.Webhook.Timeout)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("DB_URL", "postgres://u:p@localhost:5432/nfse")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("WORKERS", "8")
	t.Setenv("PROCESS_TIMEOUT", "90s")
	t.Setenv("LAYOUT_THRESHOLD", "not-a-number")
	t.Setenv("LAYOUT_MATCH_SIDE", "96")

	cfg := LoadConfig()
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 8, cfg.Worker.Workers)
	assert.Equal(t, 90*time.Second, cfg.Worker.ProcessTimeout)
	assert.InDelta(t, 0.6, cfg.Layout.Threshold, 1e-9)
	assert.Equal(t, 96, cfg.Layout.MatchSide)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := LoadConfig()
	cfg.Layout.Threshold = 1.5

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)

	var appErr *AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "CONFIG_ERROR", appErr.Code)

	cfg = LoadConfig()
	cfg.Layout.MatchSide = -1
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidInput)
}

func TestErrorChain(t *testing.T) {
	base := errors.New("tesseract exited 1")
	err := WrapError(WrapError(base, "read region"), "extract")

	chain := ErrorChain(err)
	assert.Contains(t, chain, "extract: read region: tesseract exited 1")
	assert.Contains(t, chain, "caused by: tesseract exited 1")
	assert.Empty(t, ErrorChain(nil))
}

func TestWithContextAddsIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, LogConfig{Level: "debug", Format: "text"})

	ctx := WithTaskID(WithRequestID(context.Background(), "req-1"), 42)
	WithContext(ctx, logger).Info("hello")

	out := buf.String()
	assert.Contains(t, out, "request_id=req-1")
	assert.Contains(t, out, "task_id=42")
}
