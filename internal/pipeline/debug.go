package pipeline

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/joseph-ayodele/nfse-reader/internal/layout"
)

var (
	matchColor  = color.NRGBA{R: 0, G: 200, B: 0, A: 255}
	regionColor = color.NRGBA{R: 220, G: 0, B: 0, A: 255}
)

// writeDebug saves the page annotated with the template match, when the
// layout was found, and with the numbered layout regions. Failures are
// logged and otherwise ignored.
func (p *Pipeline) writeDebug(path string, img image.Image, match layout.MatchResult) {
	if err := os.MkdirAll(p.debugDir, 0o755); err != nil {
		p.logger.Warn("pipeline.debug_dir_failed", "dir", p.debugDir, "error", err)
		return
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	if match.Found {
		matched := imaging.Clone(img)
		drawRect(matched, match.Rect(), matchColor, 4)
		drawLabel(matched, match.Location.Add(image.Pt(0, -6)), fmt.Sprintf("score=%.3f scale=%.2f", match.Score, match.Scale), matchColor)
		p.saveDebug(filepath.Join(p.debugDir, base+"_debug_match.png"), matched)
	}

	marked := imaging.Clone(img)
	for i, reg := range p.layout.Regions {
		r := reg.Rect.Clamp(marked.Bounds())
		if r.Empty() {
			continue
		}
		drawRect(marked, r, regionColor, 2)
		drawLabel(marked, r.Min.Add(image.Pt(2, 13)), fmt.Sprintf("%d %s", i, reg.Name), regionColor)
	}
	p.saveDebug(filepath.Join(p.debugDir, base+"_debug_marked.png"), marked)
}

func (p *Pipeline) saveDebug(path string, img image.Image) {
	if err := imaging.Save(img, path); err != nil {
		p.logger.Warn("pipeline.debug_write_failed", "path", path, "error", err)
		return
	}
	p.logger.Debug("pipeline.debug_written", "path", path)
}

// drawRect outlines r with a border of the given thickness, drawn inward.
func drawRect(img *image.NRGBA, r image.Rectangle, c color.NRGBA, thickness int) {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	for t := 0; t < thickness; t++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetNRGBA(x, r.Min.Y+t, c)
			img.SetNRGBA(x, r.Max.Y-1-t, c)
		}
		for y := r.Min.Y; y < r.Max.Y; y++ {
			img.SetNRGBA(r.Min.X+t, y, c)
			img.SetNRGBA(r.Max.X-1-t, y, c)
		}
	}
}

func drawLabel(img *image.NRGBA, at image.Point, text string, c color.Color) {
	if at.Y < 13 {
		at.Y = 13
	}
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(at.X, at.Y),
	}
	d.DrawString(text)
}
