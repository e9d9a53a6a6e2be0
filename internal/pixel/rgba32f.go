package pixel

import (
	"image"
	"image/color"
)

// ColorF is a non-premultiplied color with float32 channels. Values are
// nominally in [0, 1] but may exceed 1 for high-dynamic-range content.
type ColorF struct {
	R, G, B, A float32
}

// RGBA implements color.Color, clamping to the 16-bit range.
func (c ColorF) RGBA() (r, g, b, a uint32) {
	a = clamp16(c.A)
	r = clamp16(c.R) * a / 0xffff
	g = clamp16(c.G) * a / 0xffff
	b = clamp16(c.B) * a / 0xffff
	return r, g, b, a
}

func clamp16(v float32) uint32 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 0xffff
	default:
		return uint32(v*0xffff + 0.5)
	}
}

// ColorFModel converts any color to ColorF.
var ColorFModel = color.ModelFunc(func(c color.Color) color.Color {
	if f, ok := c.(ColorF); ok {
		return f
	}
	n := color.NRGBA64Model.Convert(c).(color.NRGBA64)
	return ColorF{
		R: float32(n.R) / 0xffff,
		G: float32(n.G) / 0xffff,
		B: float32(n.B) / 0xffff,
		A: float32(n.A) / 0xffff,
	}
})

// RGBA32F is an in-memory image of float32 R, G, B, A samples.
type RGBA32F struct {
	Pix    []float32
	Stride int
	Rect   image.Rectangle
}

// NewRGBA32F returns a new RGBA32F image with the given bounds.
func NewRGBA32F(r image.Rectangle) *RGBA32F {
	w, h := r.Dx(), r.Dy()
	return &RGBA32F{
		Pix:    make([]float32, 4*w*h),
		Stride: 4 * w,
		Rect:   r,
	}
}

func (p *RGBA32F) ColorModel() color.Model { return ColorFModel }

func (p *RGBA32F) Bounds() image.Rectangle { return p.Rect }

func (p *RGBA32F) At(x, y int) color.Color {
	return p.ColorFAt(x, y)
}

// ColorFAt returns the float color at (x, y).
func (p *RGBA32F) ColorFAt(x, y int) ColorF {
	if !(image.Point{x, y}.In(p.Rect)) {
		return ColorF{}
	}
	i := p.PixOffset(x, y)
	s := p.Pix[i : i+4 : i+4]
	return ColorF{R: s[0], G: s[1], B: s[2], A: s[3]}
}

// PixOffset returns the index of the first sample of the pixel at (x, y).
func (p *RGBA32F) PixOffset(x, y int) int {
	return (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)*4
}

func (p *RGBA32F) Set(x, y int, c color.Color) {
	if !(image.Point{x, y}.In(p.Rect)) {
		return
	}
	p.SetColorF(x, y, ColorFModel.Convert(c).(ColorF))
}

// SetColorF stores c at (x, y).
func (p *RGBA32F) SetColorF(x, y int, c ColorF) {
	if !(image.Point{x, y}.In(p.Rect)) {
		return
	}
	i := p.PixOffset(x, y)
	s := p.Pix[i : i+4 : i+4]
	s[0], s[1], s[2], s[3] = c.R, c.G, c.B, c.A
}

// Opaque scans the image and reports whether every alpha sample is >= 1.
func (p *RGBA32F) Opaque() bool {
	if p.Rect.Empty() {
		return true
	}
	w := p.Rect.Dx() * 4
	for y := 0; y < p.Rect.Dy(); y++ {
		row := p.Pix[y*p.Stride : y*p.Stride+w]
		for i := 3; i < len(row); i += 4 {
			if row[i] < 1 {
				return false
			}
		}
	}
	return true
}

// SubImage returns the part of p visible through r, sharing pixels.
func (p *RGBA32F) SubImage(r image.Rectangle) image.Image {
	r = r.Intersect(p.Rect)
	if r.Empty() {
		return &RGBA32F{}
	}
	i := p.PixOffset(r.Min.X, r.Min.Y)
	return &RGBA32F{
		Pix:    p.Pix[i:],
		Stride: p.Stride,
		Rect:   r,
	}
}

// ToRGBA32F converts img to a new float image anchored at the origin.
func ToRGBA32F(img image.Image) *RGBA32F {
	b := img.Bounds()
	dst := NewRGBA32F(image.Rect(0, 0, b.Dx(), b.Dy()))

	if src, ok := img.(*RGBA32F); ok {
		for y := 0; y < b.Dy(); y++ {
			si := src.PixOffset(b.Min.X, b.Min.Y+y)
			copy(dst.Pix[y*dst.Stride:(y+1)*dst.Stride], src.Pix[si:si+dst.Stride])
		}
		return dst
	}

	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := ColorFModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(ColorF)
			dst.SetColorF(x, y, c)
		}
	}
	return dst
}
