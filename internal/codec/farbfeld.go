package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"io"

	"github.com/AnyUserName/pixconv/internal/format"
)

// Farbfeld layout: "farbfeld" magic, big-endian uint32 width and height,
// then width*height pixels of four big-endian uint16 samples (RGBA,
// non-premultiplied).
const farbfeldMagic = "farbfeld"

const farbfeldHeaderLen = 16

// FarbfeldEncoder writes farbfeld images.
type FarbfeldEncoder struct{}

func (e *FarbfeldEncoder) Format() format.Format { return format.Farbfeld }

func (e *FarbfeldEncoder) Encode(img image.Image, _ int) ([]byte, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	out := make([]byte, farbfeldHeaderLen+w*h*8)
	copy(out, farbfeldMagic)
	binary.BigEndian.PutUint32(out[8:], uint32(w))
	binary.BigEndian.PutUint32(out[12:], uint32(h))

	off := farbfeldHeaderLen
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBA64Model.Convert(img.At(x, y)).(color.NRGBA64)
			binary.BigEndian.PutUint16(out[off:], c.R)
			binary.BigEndian.PutUint16(out[off+2:], c.G)
			binary.BigEndian.PutUint16(out[off+4:], c.B)
			binary.BigEndian.PutUint16(out[off+6:], c.A)
			off += 8
		}
	}
	return out, nil
}

func decodeFarbfeld(data []byte) (image.Image, error) {
	w, h, err := farbfeldHeader(data)
	if err != nil {
		return nil, err
	}
	if uint64(len(data)-farbfeldHeaderLen) < uint64(w)*uint64(h)*8 {
		return nil, errors.New("farbfeld: truncated pixel data")
	}

	img := image.NewNRGBA64(image.Rect(0, 0, w, h))
	// NRGBA64 stores big-endian 16-bit samples in RGBA order, which is
	// exactly the farbfeld pixel layout.
	copy(img.Pix, data[farbfeldHeaderLen:farbfeldHeaderLen+w*h*8])
	return img, nil
}

func farbfeldHeader(data []byte) (int, int, error) {
	if len(data) < farbfeldHeaderLen || string(data[:8]) != farbfeldMagic {
		return 0, 0, errors.New("farbfeld: invalid header")
	}
	w := binary.BigEndian.Uint32(data[8:])
	h := binary.BigEndian.Uint32(data[12:])
	if w > maxDimension || h > maxDimension {
		return 0, 0, errors.New("farbfeld: unsupported dimensions")
	}
	if err := checkDimensions("farbfeld", int(w), int(h)); err != nil {
		return 0, 0, err
	}
	return int(w), int(h), nil
}

func init() {
	image.RegisterFormat("farbfeld", farbfeldMagic,
		readerDecoder(decodeFarbfeld),
		func(r io.Reader) (image.Config, error) {
			head := make([]byte, farbfeldHeaderLen)
			if _, err := io.ReadFull(r, head); err != nil {
				return image.Config{}, err
			}
			w, h, err := farbfeldHeader(head)
			if err != nil {
				return image.Config{}, err
			}
			return image.Config{ColorModel: color.NRGBA64Model, Width: w, Height: h}, nil
		})
}

// readerDecoder adapts a byte decoder to image.RegisterFormat.
func readerDecoder(fn DecodeFunc) func(io.Reader) (image.Image, error) {
	return func(r io.Reader) (image.Image, error) {
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(r); err != nil {
			return nil, err
		}
		return fn(buf.Bytes())
	}
}
