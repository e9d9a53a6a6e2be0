// Package shrink implements the lossy block-shrink stage: each 64x64
// block of an image is downsampled in proportion to how little detail it
// carries and then scaled back up, so flat regions lose resolution that
// later compresses away.
package shrink

import (
	"fmt"
	"image"
	"math"

	"github.com/AnyUserName/pixconv/internal/pixel"
	"github.com/disintegration/imaging"
)

const (
	// DefaultFactor applies when the caller gives no factor.
	DefaultFactor = 0.8

	// BlockSize is the edge of a shrink block; edge blocks may be smaller.
	BlockSize = 64
)

// Factor selects how aggressively Apply shrinks. It is either Skip or a
// numeric value. The zero Factor is Value(DefaultFactor).
type Factor struct {
	skip bool
	set  bool
	v    float64
}

// Skip bypasses the shrink stage entirely.
func Skip() Factor { return Factor{skip: true} }

// Value returns a numeric factor. It is stored verbatim and clamped to
// [0, 1] when applied.
func Value(f float64) Factor { return Factor{set: true, v: f} }

// ParseFactor maps an optional caller value to a Factor: absent means
// DefaultFactor and exactly 1.0 means Skip.
func ParseFactor(p *float64) Factor {
	switch {
	case p == nil:
		return Value(DefaultFactor)
	case *p == 1.0:
		return Skip()
	default:
		return Value(*p)
	}
}

// IsSkip reports whether the factor bypasses shrinking.
func (f Factor) IsSkip() bool { return f.skip }

// Amount returns the numeric factor. It is meaningless for Skip.
func (f Factor) Amount() float64 {
	if !f.set {
		return DefaultFactor
	}
	return f.v
}

func (f Factor) String() string {
	if f.skip {
		return "skip"
	}
	return fmt.Sprintf("%.2f", f.Amount())
}

// Apply returns a shrunk copy of img. Skip yields a deep copy of the same
// image type, so it encodes to the same bytes as img. Otherwise the
// result is an *image.NRGBA with img's dimensions, anchored at the origin.
func Apply(img image.Image, f Factor) image.Image {
	if f.skip {
		return pixel.Clone(img)
	}

	amount := f.Amount()
	switch {
	case math.IsNaN(amount) || amount < 0:
		amount = 0
	case amount > 1:
		amount = 1
	}

	src := imaging.Clone(img)
	b := src.Bounds()
	dst := image.NewNRGBA(b)

	for y := 0; y < b.Dy(); y += BlockSize {
		for x := 0; x < b.Dx(); x += BlockSize {
			r := image.Rect(x, y, min(x+BlockSize, b.Dx()), min(y+BlockSize, b.Dy()))
			block := imaging.Crop(src, r)
			paste(dst, shrinkBlock(block, amount), r.Min)
		}
	}
	return dst
}

// shrinkBlock scales block down by 1 - amount*(1-detail) and back up to
// its original size.
func shrinkBlock(block *image.NRGBA, amount float64) *image.NRGBA {
	w, h := block.Bounds().Dx(), block.Bounds().Dy()
	scale := 1 - amount*(1-detail(block))

	sw := max(1, int(math.Round(float64(w)*scale)))
	sh := max(1, int(math.Round(float64(h)*scale)))
	if sw == w && sh == h {
		return block
	}

	small := imaging.Resize(block, sw, sh, imaging.Lanczos)
	return imaging.Resize(small, w, h, imaging.NearestNeighbor)
}

// detail scores a block in [0, 1] as the mean absolute difference between
// each sample and its right and lower neighbours, over all four channels.
func detail(img *image.NRGBA) float64 {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	var sum, n uint64
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			i := x * 4
			for c := 0; c < 4; c++ {
				v := int(row[i+c])
				if x+1 < w {
					sum += uint64(absInt(v - int(row[i+4+c])))
					n++
				}
				if y+1 < h {
					sum += uint64(absInt(v - int(img.Pix[(y+1)*img.Stride+i+c])))
					n++
				}
			}
		}
	}
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n) / 255
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func paste(dst, src *image.NRGBA, at image.Point) {
	w := src.Bounds().Dx() * 4
	for y := 0; y < src.Bounds().Dy(); y++ {
		di := dst.PixOffset(at.X, at.Y+y)
		copy(dst.Pix[di:di+w], src.Pix[y*src.Stride:y*src.Stride+w])
	}
}
