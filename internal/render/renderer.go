package render

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
)

// DefaultDPI is the resolution the fortaleza layout coordinates are expressed in.
const DefaultDPI = 300

// Raster is one rendered page: 8-bit RGB samples, row-major, alpha always opaque.
type Raster struct {
	Image *image.NRGBA
	DPI   int
	Page  int
}

// Width returns the raster width in pixels.
func (r *Raster) Width() int { return r.Image.Bounds().Dx() }

// Height returns the raster height in pixels.
func (r *Raster) Height() int { return r.Image.Bounds().Dy() }

// Renderer rasterizes PDF pages with MuPDF.
type Renderer struct {
	dpi    int
	logger *slog.Logger
}

func NewRenderer(dpi int, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return &Renderer{dpi: dpi, logger: logger}
}

// DPI returns the resolution pages are rendered at.
func (r *Renderer) DPI() int { return r.dpi }

// Render rasterizes the zero-based page of the PDF at path.
// The document is opened and closed within the call.
func (r *Renderer) Render(ctx context.Context, path string, page int) (*Raster, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	doc, err := fitz.New(path)
	if err != nil {
		r.logger.Error("render.open_failed", "path", path, "error", err)
		return nil, &Error{Kind: ErrDocumentOpen, Path: path, Page: page, Err: err}
	}
	defer func() {
		if err := doc.Close(); err != nil {
			r.logger.Warn("render.close_failed", "path", path, "error", err)
		}
	}()

	n := doc.NumPage()
	if page < 0 || page >= n {
		return nil, &Error{Kind: ErrPageIndex, Path: path, Page: page, Err: fmt.Errorf("document has %d pages", n)}
	}

	rgba, err := doc.ImageDPI(page, float64(r.dpi))
	if err != nil {
		r.logger.Error("render.rasterize_failed", "path", path, "page", page, "error", err)
		return nil, &Error{Kind: ErrDocumentOpen, Path: path, Page: page, Err: err}
	}

	raster := &Raster{Image: imaging.Clone(rgba), DPI: r.dpi, Page: page}
	r.logger.Debug("render.ok",
		"path", path,
		"page", page,
		"width", raster.Width(),
		"height", raster.Height(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return raster, nil
}
