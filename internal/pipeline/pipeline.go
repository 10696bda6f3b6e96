package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/nfse-reader/internal/entity"
	"github.com/joseph-ayodele/nfse-reader/internal/layout"
	"github.com/joseph-ayodele/nfse-reader/internal/parse"
	"github.com/joseph-ayodele/nfse-reader/internal/render"
)

type Renderer interface {
	Render(ctx context.Context, path string, page int) (*render.Raster, error)
}

// ErrDPIMismatch means pages would be rendered at a resolution other than the
// one the layout's rectangles are expressed in.
var ErrDPIMismatch = errors.New("render dpi does not match layout dpi")

type Verifier interface {
	Verify(ctx context.Context, img image.Image) layout.MatchResult
}

type RegionReader interface {
	Read(ctx context.Context, img image.Image, regions []layout.Region) map[string]string
}

// Pipeline turns the first page of an invoice PDF into an ExtractedRecord:
// render, verify layout, read regions, parse fields.
type Pipeline struct {
	renderer Renderer
	verifier Verifier
	reader   RegionReader
	layout   *layout.Layout
	parser   *parse.Parser
	debugDir string
	logger   *slog.Logger
}

type Option func(*Pipeline)

// WithDebugDir enables annotated PNG artifacts written to dir.
func WithDebugDir(dir string) Option {
	return func(p *Pipeline) { p.debugDir = dir }
}

func New(r Renderer, v Verifier, rd RegionReader, l *layout.Layout, logger *slog.Logger, opts ...Option) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	parser, err := parse.New(l)
	if err != nil {
		return nil, fmt.Errorf("layout %s: %w", l.Name, err)
	}
	if d, ok := r.(interface{ DPI() int }); ok && l.DPI > 0 && d.DPI() != l.DPI {
		return nil, fmt.Errorf("layout %s: %w: render %d, layout %d", l.Name, ErrDPIMismatch, d.DPI(), l.DPI)
	}
	p := &Pipeline{
		renderer: r,
		verifier: v,
		reader:   rd,
		layout:   l,
		parser:   parser,
		logger:   logger,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Extract processes the document at path. Only rendering errors and
// cancellation fail the call; a layout that cannot be confirmed and regions
// that cannot be read degrade the record instead.
func (p *Pipeline) Extract(ctx context.Context, path string) (*entity.ExtractedRecord, error) {
	start := time.Now()

	raster, err := p.renderer.Render(ctx, path, 0)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}

	match := p.verifier.Verify(ctx, raster.Image)
	if match.Found {
		p.logger.Info("pipeline.layout_confirmed", "path", path, "layout", p.layout.Name, "score", match.Score, "scale", match.Scale)
	} else {
		p.logger.Warn("pipeline.layout_not_confirmed", "path", path, "layout", p.layout.Name, "score", match.Score)
	}
	if p.debugDir != "" {
		p.writeDebug(path, raster.Image, match)
	}

	raw := p.reader.Read(ctx, raster.Image, p.layout.Regions)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rec := p.parser.Parse(raw)
	p.logger.Info("pipeline.extracted",
		"path", path,
		"layout_found", match.Found,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return rec, nil
}
