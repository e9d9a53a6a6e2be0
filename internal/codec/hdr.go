package codec

import (
	"bytes"
	"errors"
	"image"

	"github.com/AnyUserName/pixconv/internal/format"
	"github.com/AnyUserName/pixconv/internal/pixel"
	"github.com/mdouchement/hdr"
	"github.com/mdouchement/hdr/codec/rgbe"
	"github.com/mdouchement/hdr/hdrcolor"
)

// Radiance RGBE (.hdr) support. Pixels are stored as three 8-bit
// mantissas sharing one exponent byte.
const hdrMagic = "#?RADIANCE"

// HDREncoder writes run-length encoded Radiance RGBE images. Alpha is
// dropped.
type HDREncoder struct{}

func (e *HDREncoder) Format() format.Format { return format.HDR }

func (e *HDREncoder) Encode(img image.Image, _ int) ([]byte, error) {
	f, ok := img.(*pixel.RGBA32F)
	if !ok {
		f = pixel.ToRGBA32F(img)
	}
	b := f.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, errors.New("hdr: empty image")
	}

	dst := hdr.NewRGB(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := f.ColorFAt(b.Min.X+x, b.Min.Y+y)
			dst.SetRGB(x, y, hdrcolor.RGB{R: float64(c.R), G: float64(c.G), B: float64(c.B)})
		}
	}

	var buf bytes.Buffer
	buf.Grow(64 + w*h*4)
	if err := rgbe.Encode(&buf, dst); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeHDR reads RGBE and XYZE images into linear float RGB.
func decodeHDR(data []byte) (image.Image, error) {
	m, err := rgbe.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	src, ok := m.(hdr.Image)
	if !ok {
		return nil, errors.New("hdr: unexpected image type")
	}

	b := src.Bounds()
	img := pixel.NewRGBA32F(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			r, g, bl, _ := src.HDRAt(b.Min.X+x, b.Min.Y+y).HDRRGBA()
			img.SetColorF(x, y, pixel.ColorF{R: float32(r), G: float32(g), B: float32(bl), A: 1})
		}
	}
	return img, nil
}

// hdrRasterOffset returns the index of the first scanline: the header
// ends with a blank line followed by the resolution line.
func hdrRasterOffset(data []byte) int {
	end := bytes.Index(data, []byte("\n\n"))
	if end < 0 {
		return len(data)
	}
	res := bytes.IndexByte(data[end+2:], '\n')
	if res < 0 {
		return len(data)
	}
	return end + 2 + res + 1
}
