package ocr

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/disintegration/imaging"

	"github.com/joseph-ayodele/nfse-reader/internal/layout"
)

type Config struct {
	Tesseract   string // binary name or absolute path; if empty -> "tesseract"
	Lang        string // default "por"
	OEM         int    // default 3 (engine default)
	PSM         int    // default 6 (uniform block of text)
	TessdataDir string
	CloseKernel int    // closing kernel side; 1 disables closing
	WorkDir     string // parent of per-call temp dirs; empty -> os.TempDir()
}

// Reader runs tesseract over the rectangular regions of a rendered page.
type Reader struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

type Option func(*Reader)

// WithRunner replaces the command runner, mainly for tests.
func WithRunner(r Runner) Option {
	return func(rd *Reader) {
		if r != nil {
			rd.runner = r
		}
	}
}

func NewReader(cfg Config, logger *slog.Logger, opts ...Option) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "por"
	}
	if cfg.OEM <= 0 {
		cfg.OEM = 3
	}
	if cfg.PSM <= 0 {
		cfg.PSM = 6
	}
	if cfg.CloseKernel < 1 {
		cfg.CloseKernel = 1
	}
	r := &Reader{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Read returns one entry per region, keyed by region name. A region whose
// recognition fails, or whose rectangle falls outside the page, maps to "".
// Read itself never fails.
func (r *Reader) Read(ctx context.Context, img image.Image, regions []layout.Region) map[string]string {
	start := time.Now()
	out := make(map[string]string, len(regions))
	for _, reg := range regions {
		out[reg.Name] = ""
	}

	dir, err := os.MkdirTemp(r.cfg.WorkDir, "nfse-ocr-*")
	if err != nil {
		r.logger.Error("ocr.tempdir_failed", "error", err)
		return out
	}
	defer func() { _ = os.RemoveAll(dir) }()

	// One raster, one tesseract at a time, in layout order.
	for i, reg := range regions {
		if ctx.Err() != nil {
			break
		}
		txt, err := r.readRegion(ctx, img, reg, filepath.Join(dir, fmt.Sprintf("%02d.png", i)))
		if err != nil {
			r.logger.Warn("ocr.region_failed", "region", reg.Name, "error", err)
			continue
		}
		out[reg.Name] = txt
	}

	r.logger.Debug("ocr.read_done", "regions", len(regions), "duration_ms", time.Since(start).Milliseconds())
	return out
}

func (r *Reader) readRegion(ctx context.Context, img image.Image, reg layout.Region, path string) (string, error) {
	rect := reg.Rect.Clamp(img.Bounds())
	if rect.Empty() {
		r.logger.Debug("ocr.region_outside_page", "region", reg.Name)
		return "", nil
	}

	bin := Preprocess(imaging.Crop(img, rect), r.cfg.CloseKernel)
	if err := imaging.Save(bin, path); err != nil {
		return "", fmt.Errorf("write crop: %w", err)
	}

	out, errb, err := r.runner.Run(ctx, r.cfg.Tesseract, r.args(path)...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, truncate(string(errb), 512))
	}
	return Normalize(string(out)), nil
}

// tesseract <file> stdout -l <lang> --oem <n> --psm <n> [--tessdata-dir <dir>]
func (r *Reader) args(path string) []string {
	args := []string{
		path, "stdout",
		"-l", r.cfg.Lang,
		"--oem", strconv.Itoa(r.cfg.OEM),
		"--psm", strconv.Itoa(r.cfg.PSM),
	}
	if r.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", r.cfg.TessdataDir)
	}
	return args
}
