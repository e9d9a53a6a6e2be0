package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"testing"

	"github.com/AnyUserName/pixconv/internal/format"
	"github.com/AnyUserName/pixconv/internal/pixel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / w),
				G: uint8(y * 255 / h),
				B: 128,
				A: 255,
			})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodeWithHint(t *testing.T) {
	r := NewRegistry()
	data := encodePNG(t, gradient(8, 8))

	img, f, err := r.Decode(data, format.PNG, true)
	require.NoError(t, err)
	assert.Equal(t, format.PNG, f)
	assert.Equal(t, image.Rect(0, 0, 8, 8), img.Bounds())
}

func TestDecodeWrongHintFallsBackToDetection(t *testing.T) {
	r := NewRegistry()
	data := encodePNG(t, gradient(8, 8))

	img, f, err := r.Decode(data, format.JPEG, true)
	require.NoError(t, err)
	assert.Equal(t, format.PNG, f, "detected format replaces the wrong hint")
	assert.Equal(t, 8, img.Bounds().Dx())
}

func TestDecodeWithoutHint(t *testing.T) {
	r := NewRegistry()
	_, f, err := r.Decode(encodePNG(t, gradient(4, 4)), 0, false)
	require.NoError(t, err)
	assert.Equal(t, format.PNG, f)
}

func TestDecodeGarbage(t *testing.T) {
	r := NewRegistry()

	_, _, err := r.Decode([]byte("definitely not an image"), format.PNG, true)
	var unknown *UnknownFormatError
	require.ErrorAs(t, err, &unknown)
	assert.Contains(t, err.Error(), "unknown file type")

	_, _, err = r.Decode([]byte("definitely not an image"), 0, false)
	require.ErrorAs(t, err, &unknown)
}

func TestLosslessCodecsRoundTrip(t *testing.T) {
	r := NewRegistry()
	src := pixel.ToRGB(gradient(37, 21))

	for _, f := range []format.Format{format.Farbfeld, format.PNM, format.QOI, format.TGA} {
		t.Run(f.String(), func(t *testing.T) {
			data, err := r.Encode(src, f, 0)
			require.NoError(t, err)

			img, got, err := r.Decode(data, f, true)
			require.NoError(t, err)
			assert.Equal(t, f, got)
			require.Equal(t, src.Bounds(), img.Bounds())

			for y := 0; y < 21; y++ {
				for x := 0; x < 37; x++ {
					want := src.RGBAAt(x, y)
					have := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
					require.Equal(t, color.NRGBA(want), have, "pixel %d,%d", x, y)
				}
			}
		})
	}
}

func TestAutoDetectMagicFormats(t *testing.T) {
	r := NewRegistry()
	src := pixel.ToRGB(gradient(9, 9))

	for _, f := range []format.Format{format.Farbfeld, format.PNM, format.QOI, format.HDR} {
		data, err := r.Encode(src, f, 0)
		require.NoError(t, err, f.String())

		_, got, err := r.Decode(data, 0, false)
		require.NoError(t, err, f.String())
		assert.Equal(t, f, got)
	}
}

func TestQOIKeepsAlpha(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 3, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 40})
	src.SetNRGBA(1, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 40})
	src.SetNRGBA(2, 0, color.NRGBA{R: 250, G: 1, B: 2, A: 255})

	data, err := (&QOIEncoder{}).Encode(src, 0)
	require.NoError(t, err)
	assert.Equal(t, byte(4), data[12])

	img, err := decodeQOI(data)
	require.NoError(t, err)
	assert.Equal(t, src.Pix, img.(*image.NRGBA).Pix)
}

func TestHDRRoundTrip(t *testing.T) {
	src := pixel.NewRGBA32F(image.Rect(0, 0, 16, 2))
	for x := 0; x < 16; x++ {
		src.SetColorF(x, 0, pixel.ColorF{R: 4.0, G: 0.5, B: 0.25, A: 1})
		src.SetColorF(x, 1, pixel.ColorF{R: float32(x) / 16, G: 0, B: 1, A: 1})
	}

	data, err := (&HDREncoder{}).Encode(src, 0)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte(hdrMagic)))

	img, err := decodeHDR(data)
	require.NoError(t, err)
	out := img.(*pixel.RGBA32F)

	for y := 0; y < 2; y++ {
		for x := 0; x < 16; x++ {
			want := src.ColorFAt(x, y)
			got := out.ColorFAt(x, y)
			// RGBE keeps 8 bits of mantissa relative to the brightest channel.
			tol := float64(maxf(want.R, want.G, want.B)) / 100
			assert.InDelta(t, want.R, got.R, tol)
			assert.InDelta(t, want.G, got.G, tol)
			assert.InDelta(t, want.B, got.B, tol)
		}
	}
}

func maxf(vs ...float32) float32 {
	m := vs[0]
	for _, v := range vs[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func TestPNMAsciiGraymap(t *testing.T) {
	data := []byte("P2\n# comment\n2 2\n4\n0 1\n2 4\n")
	img, err := decodePNM(data)
	require.NoError(t, err)

	g := img.(*image.Gray)
	assert.Equal(t, []uint8{0, 64, 128, 255}, g.Pix)
}

func TestTGABottomLeftOrigin(t *testing.T) {
	// 1x2 uncompressed, bottom-left origin: first stored row is the bottom.
	data := make([]byte, tgaHeaderLen)
	data[2] = tgaTrueColor
	data[12], data[14], data[16] = 1, 2, 24
	data = append(data, 0, 0, 255 /* bottom: red */, 255, 0, 0 /* top: blue */)

	img, err := decodeTGA(data)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{B: 255, A: 255}, img.At(0, 0))
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, img.At(0, 1))
}

func TestDecodeRejectsImpossibleHeaders(t *testing.T) {
	be32 := func(v uint32) []byte { return binary.BigEndian.AppendUint32(nil, v) }

	qoiHeader := func(w, h uint32) []byte {
		data := append([]byte("qoif"), be32(w)...)
		data = append(data, be32(h)...)
		data = append(data, 4, 0)
		return append(data, 0, 0, 0, 0, 0, 0, 0, 1)
	}
	tgaHeader := func(w, h uint16, imgType byte) []byte {
		data := make([]byte, tgaHeaderLen)
		data[2] = imgType
		binary.LittleEndian.PutUint16(data[12:], w)
		binary.LittleEndian.PutUint16(data[14:], h)
		data[16] = 24
		return data
	}
	farbfeld := append([]byte("farbfeld"), be32(4096)...)
	farbfeld = append(farbfeld, be32(4096)...)

	tests := []struct {
		name string
		hint format.Format
		data []byte
	}{
		{"qoi oversized", format.QOI, qoiHeader(65536, 65536)},
		{"qoi short payload", format.QOI, qoiHeader(4096, 4096)},
		{"hdr oversized", format.HDR, []byte("#?RADIANCE\nFORMAT=32-bit_rle_rgbe\n\n-Y 65536 +X 65536\n")},
		{"hdr short payload", format.HDR, []byte("#?RADIANCE\nFORMAT=32-bit_rle_rgbe\n\n-Y 4096 +X 4096\n\x02\x02\x10\x00")},
		{"ppm oversized", format.PNM, []byte("P6\n65536 65536\n255\n")},
		{"ppm short payload", format.PNM, []byte("P6\n1000 1000\n255\nabc")},
		{"pbm short payload", format.PNM, []byte("P4\n4096 4096\n\xff")},
		{"pgm wide samples", format.PNM, append([]byte("P5\n2 2\n65535\n"), 0, 0, 0, 0)},
		{"tga oversized", format.TGA, tgaHeader(0xffff, 0xffff, tgaTrueColor)},
		{"tga short payload", format.TGA, tgaHeader(1000, 1000, tgaTrueColor)},
		{"tga short rle payload", format.TGA, tgaHeader(1000, 1000, tgaRLETrueColor)},
		{"farbfeld short payload", format.Farbfeld, farbfeld},
	}

	r := NewRegistry()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var unknown *UnknownFormatError

			_, _, err := r.Decode(tt.data, tt.hint, true)
			require.ErrorAs(t, err, &unknown)

			_, _, err = r.Decode(tt.data, 0, false)
			require.ErrorAs(t, err, &unknown)
		})
	}
}

func TestDecodeWithinLimits(t *testing.T) {
	r := NewRegistry()

	// A solid 512x512 QOI is a handful of run chunks: small but legitimate.
	src := image.NewNRGBA(image.Rect(0, 0, 512, 512))
	draw.Draw(src, src.Bounds(), image.NewUniform(color.NRGBA{R: 9, A: 255}), image.Point{}, draw.Src)
	data, err := r.Encode(src, format.QOI, 0)
	require.NoError(t, err)
	require.Less(t, len(data), 512*512/62+64)

	img, f, err := r.Decode(data, 0, false)
	require.NoError(t, err)
	assert.Equal(t, format.QOI, f)
	assert.Equal(t, src.Bounds(), img.Bounds())
}

func init() {
	image.RegisterFormat("pixconv-test", "PXTEST", func(io.Reader) (image.Image, error) {
		return image.NewGray(image.Rect(0, 0, 1, 1)), nil
	}, func(io.Reader) (image.Config, error) {
		return image.Config{ColorModel: color.GrayModel, Width: 1, Height: 1}, nil
	})
}

func TestDecodeUnsupportedDetectedFormat(t *testing.T) {
	r := NewRegistry()
	data := []byte("PXTEST")

	_, _, err := r.Decode(data, 0, false)
	var unknown *UnknownFormatError
	require.ErrorAs(t, err, &unknown)
	assert.Contains(t, err.Error(), "pixconv-test")

	// With a hint the caller's format stands in for the unknown name.
	_, f, err := r.Decode(data, format.PNG, true)
	require.NoError(t, err)
	assert.Equal(t, format.PNG, f)
}

type panicEncoder struct{}

func (panicEncoder) Format() format.Format { return format.PNG }

func (panicEncoder) Encode(image.Image, int) ([]byte, error) { panic("boom") }

type failEncoder struct{}

func (failEncoder) Format() format.Format { return format.GIF }

func (failEncoder) Encode(image.Image, int) ([]byte, error) { return nil, errors.New("bad layout") }

func TestEncodeErrors(t *testing.T) {
	r := NewRegistry()
	r.Register(panicEncoder{})
	r.Register(failEncoder{})

	var encErr *EncodingError

	_, err := r.Encode(gradient(2, 2), format.PNG, 0)
	require.ErrorAs(t, err, &encErr)
	assert.Equal(t, format.PNG, encErr.Format)
	assert.Contains(t, encErr.Detail, "boom")

	_, err = r.Encode(gradient(2, 2), format.GIF, 0)
	require.ErrorAs(t, err, &encErr)
	assert.Equal(t, "bad layout", encErr.Detail)

	_, err = r.Encode(gradient(2, 2), format.Format(99), 0)
	require.ErrorAs(t, err, &encErr)
}

func TestRegistryCoversAllFormats(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, format.All(), r.Available())
	for _, f := range format.All() {
		assert.NotNil(t, r.decoders[f], f.String())
	}
	assert.Contains(t, r.String(), "webp")
}
