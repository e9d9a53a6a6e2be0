// Package pixel provides the in-memory pixel layouts the standard library
// lacks: packed 8-bit RGB without alpha, and 32-bit float RGBA for
// high-dynamic-range output.
package pixel

import (
	"image"
	"image/color"
)

// RGB is an in-memory image of opaque 8-bit R, G, B samples.
type RGB struct {
	// Pix holds the samples in R, G, B order. The pixel at (x, y) starts
	// at Pix[(y-Rect.Min.Y)*Stride + (x-Rect.Min.X)*3].
	Pix    []uint8
	Stride int
	Rect   image.Rectangle
}

// NewRGB returns a new RGB image with the given bounds.
func NewRGB(r image.Rectangle) *RGB {
	w, h := r.Dx(), r.Dy()
	return &RGB{
		Pix:    make([]uint8, 3*w*h),
		Stride: 3 * w,
		Rect:   r,
	}
}

func (p *RGB) ColorModel() color.Model { return color.RGBAModel }

func (p *RGB) Bounds() image.Rectangle { return p.Rect }

func (p *RGB) At(x, y int) color.Color {
	return p.RGBAAt(x, y)
}

// RGBAAt returns the pixel at (x, y) with a fully opaque alpha.
func (p *RGB) RGBAAt(x, y int) color.RGBA {
	if !(image.Point{x, y}.In(p.Rect)) {
		return color.RGBA{}
	}
	i := p.PixOffset(x, y)
	s := p.Pix[i : i+3 : i+3]
	return color.RGBA{R: s[0], G: s[1], B: s[2], A: 0xff}
}

// PixOffset returns the index of the first sample of the pixel at (x, y).
func (p *RGB) PixOffset(x, y int) int {
	return (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)*3
}

// Set stores c at (x, y), discarding its alpha.
func (p *RGB) Set(x, y int, c color.Color) {
	if !(image.Point{x, y}.In(p.Rect)) {
		return
	}
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	i := p.PixOffset(x, y)
	s := p.Pix[i : i+3 : i+3]
	s[0], s[1], s[2] = n.R, n.G, n.B
}

// Opaque is always true: RGB has no alpha channel.
func (p *RGB) Opaque() bool { return true }

// SubImage returns the part of p visible through r. The result shares
// pixels with p.
func (p *RGB) SubImage(r image.Rectangle) image.Image {
	r = r.Intersect(p.Rect)
	if r.Empty() {
		return &RGB{}
	}
	i := p.PixOffset(r.Min.X, r.Min.Y)
	return &RGB{
		Pix:    p.Pix[i:],
		Stride: p.Stride,
		Rect:   r,
	}
}

// ToRGB converts img to a new RGB image, dropping alpha. Color channels
// are taken un-premultiplied, so a half transparent red stays pure red.
func ToRGB(img image.Image) *RGB {
	b := img.Bounds()
	dst := NewRGB(image.Rect(0, 0, b.Dx(), b.Dy()))

	switch src := img.(type) {
	case *RGB:
		for y := 0; y < b.Dy(); y++ {
			si := src.PixOffset(b.Min.X, b.Min.Y+y)
			copy(dst.Pix[y*dst.Stride:(y+1)*dst.Stride], src.Pix[si:si+dst.Stride])
		}
	case *image.NRGBA:
		for y := 0; y < b.Dy(); y++ {
			si := src.PixOffset(b.Min.X, b.Min.Y+y)
			di := y * dst.Stride
			for x := 0; x < b.Dx(); x++ {
				dst.Pix[di] = src.Pix[si]
				dst.Pix[di+1] = src.Pix[si+1]
				dst.Pix[di+2] = src.Pix[si+2]
				si += 4
				di += 3
			}
		}
	default:
		for y := 0; y < b.Dy(); y++ {
			di := y * dst.Stride
			for x := 0; x < b.Dx(); x++ {
				n := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
				dst.Pix[di] = n.R
				dst.Pix[di+1] = n.G
				dst.Pix[di+2] = n.B
				di += 3
			}
		}
	}
	return dst
}
