package layout

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/disintegration/imaging"
)

// ErrTemplateUnavailable means the reference template could not be loaded.
var ErrTemplateUnavailable = errors.New("layout template unavailable")

// sharpen emphasizes the template's edges before matching.
var sharpen = [9]float64{
	-1, -1, -1,
	-1, 9, -1,
	-1, -1, -1,
}

// MatchResult reports where the template was best found in a page.
// Location and Size are in source pixels. Score is -1 when no scale could be
// tried, for example when the template is missing or larger than the page.
type MatchResult struct {
	Found    bool
	Score    float64
	Location image.Point
	Size     image.Point
	Scale    float64
}

// Rect returns the matched area in source pixels.
func (m MatchResult) Rect() image.Rectangle {
	return image.Rectangle{Min: m.Location, Max: m.Location.Add(m.Size)}
}

// Verifier confirms a page follows a layout by locating a reference
// template at several scales.
type Verifier struct {
	templatePath string
	threshold    float64
	minScale     float64
	maxScale     float64
	steps        int
	matchSide    int
	logger       *slog.Logger

	once     sync.Once
	template *image.NRGBA
	loadErr  error
}

type Option func(*Verifier)

// WithThreshold sets the score at which the template counts as found.
func WithThreshold(t float64) Option {
	return func(v *Verifier) {
		if t > 0 {
			v.threshold = t
		}
	}
}

// WithScales sets the evenly spaced scale factors tried, smallest first.
func WithScales(min, max float64, steps int) Option {
	return func(v *Verifier) {
		if min > 0 && max >= min && steps > 0 {
			v.minScale, v.maxScale, v.steps = min, max, steps
		}
	}
}

// WithMatchSide bounds the longest template side used for correlation.
// Larger templates are matched on a proportionally downsampled page, which
// is faster but loses detail finer than the reduction. Zero, the default,
// matches at full resolution.
func WithMatchSide(n int) Option {
	return func(v *Verifier) {
		if n >= 0 {
			v.matchSide = n
		}
	}
}

func NewVerifier(templatePath string, logger *slog.Logger, opts ...Option) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	v := &Verifier{
		templatePath: templatePath,
		threshold:    0.6,
		minScale:     0.6,
		maxScale:     1.4,
		steps:        12,
		logger:       logger,
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Threshold returns the score at which a match counts as found.
func (v *Verifier) Threshold() float64 { return v.threshold }

// Template loads and sharpens the reference template on first use.
func (v *Verifier) Template() (*image.NRGBA, error) {
	v.once.Do(func() {
		img, err := imaging.Open(v.templatePath)
		if err != nil {
			v.loadErr = fmt.Errorf("%w: %v", ErrTemplateUnavailable, err)
			v.logger.Warn("layout.template_load_failed", "path", v.templatePath, "error", err)
			return
		}
		v.template = imaging.Convolve3x3(img, sharpen, nil)
		b := v.template.Bounds()
		v.logger.Info("layout.template_loaded", "path", v.templatePath, "width", b.Dx(), "height", b.Dy())
	})
	return v.template, v.loadErr
}

// Verify searches img for the reference template. It never fails: a
// missing template yields Found=false with Score=-1.
func (v *Verifier) Verify(ctx context.Context, img image.Image) MatchResult {
	tmpl, err := v.Template()
	if err != nil {
		return MatchResult{Score: -1}
	}
	return v.Match(ctx, img, tmpl)
}

// Match searches img for tmpl as given, without sharpening.
func (v *Verifier) Match(ctx context.Context, img image.Image, tmpl image.Image) MatchResult {
	start := time.Now()
	best := MatchResult{Score: -1}

	src := imaging.Clone(img)
	base := imaging.Clone(tmpl)
	factor := 1.0
	if side := max(base.Bounds().Dx(), base.Bounds().Dy()); v.matchSide > 0 && side > v.matchSide {
		factor = float64(side) / float64(v.matchSide)
		src = imaging.Resize(src, scaled(src.Bounds().Dx(), 1/factor), scaled(src.Bounds().Dy(), 1/factor), imaging.Box)
		base = imaging.Resize(base, scaled(base.Bounds().Dx(), 1/factor), scaled(base.Bounds().Dy(), 1/factor), imaging.Box)
	}

	sw, sh := src.Bounds().Dx(), src.Bounds().Dy()
	srcPlanes := planesOf(src)
	var ints [3]integral
	for c := range srcPlanes {
		ints[c] = integralOf(srcPlanes[c])
	}

	for i := 0; i < v.steps; i++ {
		if ctx.Err() != nil {
			break
		}
		s := v.scaleAt(i)
		tw, th := scaled(base.Bounds().Dx(), s), scaled(base.Bounds().Dy(), s)
		if tw >= sw || th >= sh {
			continue
		}

		t := base
		if tw != base.Bounds().Dx() || th != base.Bounds().Dy() {
			filter := imaging.CatmullRom
			if s < 1 {
				filter = imaging.Box
			}
			t = imaging.Resize(base, tw, th, filter)
		}

		score, loc, err := bestMatch(ctx, srcPlanes, ints, planesOf(t))
		if err != nil {
			break
		}
		if score > best.Score {
			best = MatchResult{
				Score:    score,
				Location: image.Pt(int(math.Round(float64(loc.X)*factor)), int(math.Round(float64(loc.Y)*factor))),
				Size:     image.Pt(scaled(tw, factor), scaled(th, factor)),
				Scale:    s,
			}
		}
		if best.Score >= v.threshold {
			break
		}
	}

	best.Found = best.Score >= v.threshold
	v.logger.Debug("layout.match",
		"found", best.Found,
		"score", best.Score,
		"x", best.Location.X,
		"y", best.Location.Y,
		"scale", best.Scale,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return best
}

func (v *Verifier) scaleAt(i int) float64 {
	if v.steps == 1 {
		return v.minScale
	}
	return v.minScale + (v.maxScale-v.minScale)*float64(i)/float64(v.steps-1)
}

func scaled(n int, f float64) int {
	return max(1, int(math.Round(float64(n)*f)))
}
