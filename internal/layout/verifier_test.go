package layout

import (
	"context"
	"image"
	"image/color"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blocks is a 4x4 grid of 10px cells; 1 is black.
var blocks = [4][4]int{
	{1, 0, 1, 1},
	{1, 1, 0, 0},
	{0, 1, 0, 1},
	{1, 0, 0, 1},
}

func blockTemplate() *image.NRGBA {
	img := imaging.New(40, 40, color.White)
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			if blocks[y/10][x/10] == 1 {
				img.Set(x, y, color.Black)
			}
		}
	}
	return img
}

func pageWithTemplate(at image.Point) *image.NRGBA {
	page := imaging.New(160, 160, color.White)
	return imaging.Paste(page, blockTemplate(), at)
}

func TestMatchExactScale(t *testing.T) {
	v := NewVerifier("", nil, WithScales(1, 1, 1), WithMatchSide(0))
	at := image.Pt(70, 50)

	res := v.Match(context.Background(), pageWithTemplate(at), blockTemplate())
	assert.True(t, res.Found)
	assert.InDelta(t, 1.0, res.Score, 1e-6)
	assert.Equal(t, at, res.Location)
	assert.Equal(t, image.Pt(40, 40), res.Size)
	assert.Equal(t, 1.0, res.Scale)
}

func TestVerifyDefaultScales(t *testing.T) {
	path := filepath.Join(t.TempDir(), "template.png")
	require.NoError(t, imaging.Save(blockTemplate(), path))

	v := NewVerifier(path, nil)
	at := image.Pt(70, 50)
	res := v.Verify(context.Background(), pageWithTemplate(at))

	assert.True(t, res.Found)
	assert.GreaterOrEqual(t, res.Score, v.Threshold())
	assert.True(t, res.Rect().Overlaps(image.Rect(70, 50, 110, 90)), "match %v", res.Rect())

	// the template is loaded once and reused
	again := v.Verify(context.Background(), pageWithTemplate(at))
	assert.Equal(t, res, again)
}

func TestVerifyMissingTemplate(t *testing.T) {
	v := NewVerifier(filepath.Join(t.TempDir(), "missing.png"), nil)

	res := v.Verify(context.Background(), pageWithTemplate(image.Pt(0, 0)))
	assert.False(t, res.Found)
	assert.Equal(t, -1.0, res.Score)

	_, err := v.Template()
	assert.ErrorIs(t, err, ErrTemplateUnavailable)
}

func TestVerifyCorruptTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "template.png")
	require.NoError(t, os.WriteFile(path, []byte("not a png at all"), 0o644))
	v := NewVerifier(path, nil)

	res := v.Verify(context.Background(), pageWithTemplate(image.Pt(0, 0)))
	assert.False(t, res.Found)
	assert.Equal(t, -1.0, res.Score)

	_, err := v.Template()
	assert.ErrorIs(t, err, ErrTemplateUnavailable)
}

// noiseTemplate has detail down to single pixels, which any downsampling blurs away.
func noiseTemplate(side int) *image.NRGBA {
	rng := rand.New(rand.NewPCG(7, 11))
	img := imaging.New(side, side, color.White)
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			if rng.IntN(2) == 1 {
				img.Set(x, y, color.Black)
			}
		}
	}
	return img
}

func TestMatchDefaultKeepsPixelDetail(t *testing.T) {
	tmpl := noiseTemplate(60)
	at := image.Pt(123, 77)
	page := imaging.Paste(imaging.New(220, 180, color.White), tmpl, at)

	v := NewVerifier("", nil, WithScales(1, 1, 1))
	res := v.Match(context.Background(), page, tmpl)

	assert.True(t, res.Found)
	assert.InDelta(t, 1.0, res.Score, 1e-6)
	assert.Equal(t, at, res.Location)
	assert.Equal(t, image.Pt(60, 60), res.Size)
}

func TestMatchTemplateLargerThanPage(t *testing.T) {
	v := NewVerifier("", nil, WithMatchSide(0))
	page := imaging.New(30, 30, color.White)

	res := v.Match(context.Background(), page, blockTemplate())
	assert.False(t, res.Found)
	assert.Equal(t, -1.0, res.Score)
}

func TestMatchFlatTemplateScoresZero(t *testing.T) {
	v := NewVerifier("", nil, WithScales(1, 1, 1))
	flat := imaging.New(10, 10, color.White)

	res := v.Match(context.Background(), pageWithTemplate(image.Pt(10, 10)), flat)
	assert.False(t, res.Found)
	assert.Equal(t, 0.0, res.Score)
}

func TestMatchDownsampled(t *testing.T) {
	v := NewVerifier("", nil, WithScales(1, 1, 1), WithMatchSide(20))
	at := image.Pt(60, 80)

	res := v.Match(context.Background(), pageWithTemplate(at), blockTemplate())
	require.True(t, res.Found)
	assert.InDelta(t, at.X, res.Location.X, 2)
	assert.InDelta(t, at.Y, res.Location.Y, 2)
	assert.Equal(t, image.Pt(40, 40), res.Size)
}

func TestCcoeffNormedAnticorrelated(t *testing.T) {
	src := plane{w: 2, h: 1, pix: []float64{0, 255}}
	tmpl := plane{w: 2, h: 1, pix: []float64{255, 0}}

	scores := ccoeffNormed(src, integralOf(src), tmpl)
	require.Len(t, scores, 1)
	assert.InDelta(t, -1.0, scores[0], 1e-9)
}
