package ocr

import (
	"image"

	"github.com/disintegration/imaging"
)

// Grayscale converts img to 8-bit luminance.
func Grayscale(img image.Image) *image.Gray {
	src := imaging.Grayscale(img)
	b := src.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			g.Pix[y*g.Stride+x] = src.Pix[y*src.Stride+x*4]
		}
	}
	return g
}

// OtsuThreshold picks the level that maximizes between-class variance.
// Pixels strictly above it are foreground.
func OtsuThreshold(g *image.Gray) uint8 {
	var hist [256]int
	b := g.Bounds()
	for y := 0; y < b.Dy(); y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+b.Dx()]
		for _, v := range row {
			hist[v]++
		}
	}

	total := b.Dx() * b.Dy()
	var sum float64
	for i, n := range hist {
		sum += float64(i * n)
	}

	var (
		sumB   float64
		wB     int
		best   float64
		thresh uint8
	)
	for t := 0; t < 256; t++ {
		wB += hist[t]
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(t * hist[t])
		mB := sumB / float64(wB)
		mF := (sum - sumB) / float64(wF)
		between := float64(wB) * float64(wF) * (mB - mF) * (mB - mF)
		if between > best {
			best = between
			thresh = uint8(t)
		}
	}
	return thresh
}

// Binarize maps pixels above t to 255 and the rest to 0.
func Binarize(g *image.Gray, t uint8) *image.Gray {
	b := g.Bounds()
	out := image.NewGray(b)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			if g.Pix[y*g.Stride+x] > t {
				out.Pix[y*out.Stride+x] = 255
			}
		}
	}
	return out
}

// Close applies a morphological closing (dilate, then erode) with a k x k
// square kernel. k <= 1 returns g unchanged.
func Close(g *image.Gray, k int) *image.Gray {
	if k <= 1 {
		return g
	}
	return morph(morph(g, k, true), k, false)
}

func morph(g *image.Gray, k int, dilate bool) *image.Gray {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(b)
	lo, hi := k/2, k-1-k/2
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			acc := uint8(255)
			if dilate {
				acc = 0
			}
			for dy := -lo; dy <= hi; dy++ {
				yy := y + dy
				if yy < 0 || yy >= h {
					continue
				}
				for dx := -lo; dx <= hi; dx++ {
					xx := x + dx
					if xx < 0 || xx >= w {
						continue
					}
					v := g.Pix[yy*g.Stride+xx]
					if dilate && v > acc || !dilate && v < acc {
						acc = v
					}
				}
			}
			out.Pix[y*out.Stride+x] = acc
		}
	}
	return out
}

// Preprocess turns a color crop into the binary image handed to tesseract.
func Preprocess(img image.Image, closeKernel int) *image.Gray {
	g := Grayscale(img)
	return Close(Binarize(g, OtsuThreshold(g)), closeKernel)
}
