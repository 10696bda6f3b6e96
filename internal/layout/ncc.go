package layout

import (
	"context"
	"image"
	"math"

	"golang.org/x/sync/errgroup"
)

// plane is one color channel as float samples, row-major.
type plane struct {
	w, h int
	pix  []float64
}

// integral holds summed-area tables of a plane and of its squares.
type integral struct {
	stride int
	sum    []float64
	sqsum  []float64
}

func planesOf(img *image.NRGBA) [3]plane {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	var out [3]plane
	for c := range out {
		out[c] = plane{w: w, h: h, pix: make([]float64, w*h)}
	}
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			i := y*w + x
			out[0].pix[i] = float64(row[x*4])
			out[1].pix[i] = float64(row[x*4+1])
			out[2].pix[i] = float64(row[x*4+2])
		}
	}
	return out
}

func integralOf(p plane) integral {
	stride := p.w + 1
	in := integral{
		stride: stride,
		sum:    make([]float64, stride*(p.h+1)),
		sqsum:  make([]float64, stride*(p.h+1)),
	}
	for y := 0; y < p.h; y++ {
		var rs, rq float64
		for x := 0; x < p.w; x++ {
			v := p.pix[y*p.w+x]
			rs += v
			rq += v * v
			i := (y+1)*stride + x + 1
			in.sum[i] = in.sum[i-stride] + rs
			in.sqsum[i] = in.sqsum[i-stride] + rq
		}
	}
	return in
}

// window returns the sum and the sum of squares over [x, x+w) x [y, y+h).
func (in integral) window(x, y, w, h int) (float64, float64) {
	a := y*in.stride + x
	b := a + w
	c := (y+h)*in.stride + x
	d := c + w
	return in.sum[d] - in.sum[b] - in.sum[c] + in.sum[a],
		in.sqsum[d] - in.sqsum[b] - in.sqsum[c] + in.sqsum[a]
}

// ccoeffNormed computes the mean-subtracted normalized cross-correlation of
// tmpl over every placement inside src. Scores lie in [-1, 1]; a flat
// template or a flat window scores 0.
func ccoeffNormed(src plane, in integral, tmpl plane) []float64 {
	rw, rh := src.w-tmpl.w+1, src.h-tmpl.h+1
	out := make([]float64, rw*rh)

	n := float64(tmpl.w * tmpl.h)
	var tsum float64
	for _, v := range tmpl.pix {
		tsum += v
	}
	tmean := tsum / n
	tc := make([]float64, len(tmpl.pix))
	var tnorm float64
	for i, v := range tmpl.pix {
		tc[i] = v - tmean
		tnorm += tc[i] * tc[i]
	}
	if tnorm < 1e-9 {
		return out
	}

	for y := 0; y < rh; y++ {
		for x := 0; x < rw; x++ {
			var num float64
			for ty := 0; ty < tmpl.h; ty++ {
				srow := src.pix[(y+ty)*src.w+x : (y+ty)*src.w+x+tmpl.w]
				trow := tc[ty*tmpl.w : (ty+1)*tmpl.w]
				for tx, tv := range trow {
					num += tv * srow[tx]
				}
			}
			s, sq := in.window(x, y, tmpl.w, tmpl.h)
			variance := sq - s*s/n
			if variance < 1e-9 {
				continue
			}
			score := num / math.Sqrt(tnorm*variance)
			out[y*rw+x] = math.Max(-1, math.Min(1, score))
		}
	}
	return out
}

// bestMatch correlates each color channel in parallel, averages the three
// score maps and returns the best score with its top-left placement.
func bestMatch(ctx context.Context, src [3]plane, ints [3]integral, tmpl [3]plane) (float64, image.Point, error) {
	var maps [3][]float64
	g, _ := errgroup.WithContext(ctx)
	for c := 0; c < 3; c++ {
		g.Go(func() error {
			maps[c] = ccoeffNormed(src[c], ints[c], tmpl[c])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, image.Point{}, err
	}
	if err := ctx.Err(); err != nil {
		return 0, image.Point{}, err
	}

	rw := src[0].w - tmpl[0].w + 1
	best, at := math.Inf(-1), 0
	for i := range maps[0] {
		avg := (maps[0][i] + maps[1][i] + maps[2][i]) / 3
		if avg > best {
			best, at = avg, i
		}
	}
	return best, image.Pt(at%rw, at/rw), nil
}
