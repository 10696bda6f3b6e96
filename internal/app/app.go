// Package app assembles the extraction service from configuration. Both the
// daemon and the operator CLI build on it.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/nfse-reader/internal/common"
	"github.com/joseph-ayodele/nfse-reader/internal/core"
	"github.com/joseph-ayodele/nfse-reader/internal/export"
	"github.com/joseph-ayodele/nfse-reader/internal/layout"
	"github.com/joseph-ayodele/nfse-reader/internal/notify"
	"github.com/joseph-ayodele/nfse-reader/internal/ocr"
	"github.com/joseph-ayodele/nfse-reader/internal/pipeline"
	"github.com/joseph-ayodele/nfse-reader/internal/render"
	"github.com/joseph-ayodele/nfse-reader/internal/repository"
	"github.com/joseph-ayodele/nfse-reader/internal/storage"
)

type App struct {
	DB       *repository.DB
	Tasks    repository.TaskRepository
	Webhooks repository.WebhookRepository
	Pipeline *pipeline.Pipeline
	Executor *core.Executor
	Export   *export.Service

	logger *slog.Logger
}

// New opens and migrates the database and wires the pipeline and executor.
// No scheduler is attached; callers choose a worker pool or core.Inline.
func New(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pipe, err := NewPipeline(cfg, logger)
	if err != nil {
		return nil, err
	}

	db, err := repository.Open(ctx, repository.Config{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		DialTimeout:     cfg.Database.DialTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}
	if err := repository.Migrate(ctx, db, logger); err != nil {
		repository.Close(db, logger)
		return nil, err
	}

	files, err := storage.NewLocal(cfg.Storage.TempDir, logger)
	if err != nil {
		repository.Close(db, logger)
		return nil, err
	}

	tasks := repository.NewTaskRepository(db, logger)
	webhooks := repository.NewWebhookRepository(db, logger)
	notifier := notify.NewNotifier(webhooks, cfg.Webhook.Timeout, logger)

	return &App{
		DB:       db,
		Tasks:    tasks,
		Webhooks: webhooks,
		Pipeline: pipe,
		Executor: core.NewExecutor(tasks, pipe, files, notifier, logger),
		Export:   export.NewService(tasks, logger),
		logger:   logger,
	}, nil
}

// NewPipeline builds the extraction pipeline alone; it needs no database.
func NewPipeline(cfg *common.Config, logger *slog.Logger) (*pipeline.Pipeline, error) {
	l, err := SelectLayout(cfg.Layout)
	if err != nil {
		return nil, err
	}

	renderer := render.NewRenderer(RenderDPI(l, cfg.OCR.DPI, logger), logger)
	verifier := layout.NewVerifier(cfg.Layout.TemplatePath, logger,
		layout.WithThreshold(cfg.Layout.Threshold),
		layout.WithMatchSide(cfg.Layout.MatchSide),
	)
	reader := ocr.NewReader(ocr.Config{
		Tesseract:   cfg.OCR.Tesseract,
		Lang:        cfg.OCR.Lang,
		OEM:         cfg.OCR.OEM,
		PSM:         cfg.OCR.PSM,
		TessdataDir: cfg.OCR.TessdataDir,
		CloseKernel: cfg.OCR.CloseKernel,
	}, logger)

	return pipeline.New(renderer, verifier, reader, l, logger, pipeline.WithDebugDir(cfg.Layout.DebugDir))
}

// RenderDPI returns the resolution pages must be rendered at for l. A layout
// that declares its DPI wins over RENDER_DPI, since its rectangles are in
// pixels at that resolution.
func RenderDPI(l *layout.Layout, configured int, logger *slog.Logger) int {
	if l.DPI <= 0 {
		return configured
	}
	if configured != l.DPI {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("layout.dpi_override", "layout", l.Name, "render_dpi", configured, "layout_dpi", l.DPI)
	}
	return l.DPI
}

// SelectLayout returns the configured layout. A LAYOUT_FILE is registered
// first, so it may replace a built-in layout of the same name.
func SelectLayout(cfg common.LayoutConfig) (*layout.Layout, error) {
	reg := layout.NewRegistry()
	if cfg.LayoutFile != "" {
		l, err := layout.LoadFile(cfg.LayoutFile)
		if err != nil {
			return nil, fmt.Errorf("layout file %s: %w", cfg.LayoutFile, err)
		}
		reg.Register(l)
	}
	return reg.Get(cfg.Name)
}

// Health pings the database.
func (a *App) Health(ctx context.Context) error {
	return repository.HealthCheck(ctx, a.DB, 2*time.Second, a.logger)
}

// Close waits for background notifications and closes the database.
func (a *App) Close() {
	a.Executor.Wait()
	repository.Close(a.DB, a.logger)
}
