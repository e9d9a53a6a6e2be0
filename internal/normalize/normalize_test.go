package normalize

import (
	"image"
	"image/color"
	"testing"

	"github.com/AnyUserName/pixconv/internal/format"
	"github.com/AnyUserName/pixconv/internal/pixel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checker(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{R: 200, G: 40, B: 90, A: 255}
			if (x/4+y/4)%2 == 0 {
				c = color.NRGBA{R: 10, G: 220, B: 30, A: 128}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestIconIsExactly256(t *testing.T) {
	for _, size := range []image.Point{{10, 10}, {300, 120}, {256, 256}, {1, 900}} {
		out := Normalize(checker(size.X, size.Y), format.PNG, true, format.ICO)
		assert.Equal(t, image.Rect(0, 0, IconSize, IconSize), out.Bounds(), "from %v", size)
		assert.IsType(t, &image.NRGBA{}, out)
	}
}

func TestTargetsWithoutAlphaGetRGB(t *testing.T) {
	src := checker(16, 8)
	for _, target := range []format.Format{format.JPEG, format.Farbfeld, format.PNM, format.QOI, format.TGA} {
		out := Normalize(src, format.PNG, true, target)
		require.IsType(t, &pixel.RGB{}, out, target.String())
		assert.Equal(t, src.Bounds(), out.Bounds())
		assert.Equal(t, color.RGBA{R: 10, G: 220, B: 30, A: 255}, out.At(0, 0))
	}
}

func TestHDRTargetGetsFloat(t *testing.T) {
	out := Normalize(checker(8, 8), format.PNG, true, format.HDR)
	f, ok := out.(*pixel.RGBA32F)
	require.True(t, ok)
	assert.InDelta(t, 200.0/255, f.ColorFAt(4, 0).R, 1e-3)
}

func TestHDRSourceBecomesRGBA8(t *testing.T) {
	src := pixel.NewRGBA32F(image.Rect(0, 0, 2, 1))
	src.SetColorF(0, 0, pixel.ColorF{R: 3, G: 1, B: 0, A: 1})
	src.SetColorF(1, 0, pixel.ColorF{R: 0, G: 0, B: 0.25, A: 1})

	out := Normalize(src, format.HDR, true, format.PNG)
	n, ok := out.(*image.NRGBA)
	require.True(t, ok)
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 0, A: 255}, n.NRGBAAt(0, 0))
}

func TestPassThroughCopies(t *testing.T) {
	src := checker(8, 8)
	out := Normalize(src, format.PNG, true, format.WebP)
	require.IsType(t, &image.NRGBA{}, out)
	assert.Equal(t, src.Pix, out.(*image.NRGBA).Pix)

	out.(*image.NRGBA).Pix[0] = 0
	assert.Equal(t, uint8(10), src.Pix[0], "input must not be modified")
}

func TestNormalizeIsIdempotent(t *testing.T) {
	for _, target := range format.All() {
		t.Run(target.String(), func(t *testing.T) {
			once := Normalize(checker(33, 17), format.PNG, true, target)
			twice := Normalize(once, format.PNG, true, target)

			require.Equal(t, once.Bounds(), twice.Bounds())
			assert.IsType(t, once, twice)
			b := once.Bounds()
			for y := b.Min.Y; y < b.Max.Y; y++ {
				for x := b.Min.X; x < b.Max.X; x++ {
					require.Equal(t, once.At(x, y), twice.At(x, y), "pixel %d,%d", x, y)
				}
			}
		})
	}
}
