package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"

	"github.com/AnyUserName/pixconv/internal/format"
	"github.com/AnyUserName/pixconv/internal/pixel"
)

// TGA image types.
const (
	tgaTrueColor    = 2
	tgaGray         = 3
	tgaRLETrueColor = 10
	tgaRLEGray      = 11

	tgaHeaderLen = 18
	tgaTopLeft   = 0x20
)

// TGAEncoder writes uncompressed 24-bit top-left-origin TGA.
type TGAEncoder struct{}

func (e *TGAEncoder) Format() format.Format { return format.TGA }

func (e *TGAEncoder) Encode(img image.Image, _ int) ([]byte, error) {
	rgb, ok := img.(*pixel.RGB)
	if !ok {
		rgb = pixel.ToRGB(img)
	}
	b := rgb.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > 0xffff || h > 0xffff {
		return nil, fmt.Errorf("tga: %dx%d exceeds 65535x65535", w, h)
	}

	out := make([]byte, tgaHeaderLen+w*h*3)
	out[2] = tgaTrueColor
	binary.LittleEndian.PutUint16(out[12:], uint16(w))
	binary.LittleEndian.PutUint16(out[14:], uint16(h))
	out[16] = 24
	out[17] = tgaTopLeft

	off := tgaHeaderLen
	for y := b.Min.Y; y < b.Max.Y; y++ {
		i := rgb.PixOffset(b.Min.X, y)
		for x := 0; x < w; x++ {
			// TGA stores BGR.
			out[off] = rgb.Pix[i+2]
			out[off+1] = rgb.Pix[i+1]
			out[off+2] = rgb.Pix[i]
			off += 3
			i += 3
		}
	}
	return out, nil
}

// decodeTGA reads true-color (24/32 bit) and grayscale (8 bit) images,
// raw or run-length encoded. TGA has no magic number, so it is only
// reachable through a source hint.
func decodeTGA(data []byte) (image.Image, error) {
	if len(data) < tgaHeaderLen {
		return nil, errors.New("tga: short header")
	}
	idLen := int(data[0])
	cmapType := data[1]
	imgType := data[2]
	cmapLen := int(binary.LittleEndian.Uint16(data[5:]))
	cmapDepth := int(data[7])
	w := int(binary.LittleEndian.Uint16(data[12:]))
	h := int(binary.LittleEndian.Uint16(data[14:]))
	depth := int(data[16])
	desc := data[17]

	if cmapType != 0 {
		return nil, errors.New("tga: color-mapped images are not supported")
	}
	if w == 0 || h == 0 {
		return nil, errors.New("tga: empty image")
	}

	gray := imgType == tgaGray || imgType == tgaRLEGray
	rle := imgType == tgaRLETrueColor || imgType == tgaRLEGray
	switch {
	case imgType == tgaTrueColor || imgType == tgaRLETrueColor:
		if depth != 24 && depth != 32 {
			return nil, fmt.Errorf("tga: unsupported depth %d", depth)
		}
	case gray:
		if depth != 8 {
			return nil, fmt.Errorf("tga: unsupported gray depth %d", depth)
		}
	default:
		return nil, fmt.Errorf("tga: unsupported image type %d", imgType)
	}

	bpp := depth / 8
	pos := tgaHeaderLen + idLen + cmapLen*((cmapDepth+7)/8)
	if pos > len(data) {
		return nil, errors.New("tga: truncated header")
	}

	if err := checkDimensions("tga", w, h); err != nil {
		return nil, err
	}
	// Raw data is exact; a run-length packet covers at most 128 pixels.
	need := w * h * bpp
	if rle {
		need = (w*h + 127) / 128 * (1 + bpp)
	}
	if len(data)-pos < need {
		return nil, errors.New("tga: truncated pixel data")
	}

	raw := make([]byte, w*h*bpp)
	if rle {
		if err := tgaUnpackRLE(data[pos:], raw, bpp); err != nil {
			return nil, err
		}
	} else {
		copy(raw, data[pos:])
	}

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	topLeft := desc&tgaTopLeft != 0
	for y := 0; y < h; y++ {
		dy := y
		if !topLeft {
			dy = h - 1 - y
		}
		src := raw[y*w*bpp:]
		dst := img.Pix[dy*img.Stride:]
		for x := 0; x < w; x++ {
			s := src[x*bpp:]
			d := dst[x*4 : x*4+4 : x*4+4]
			if gray {
				d[0], d[1], d[2], d[3] = s[0], s[0], s[0], 0xff
				continue
			}
			d[0], d[1], d[2], d[3] = s[2], s[1], s[0], 0xff
			if bpp == 4 {
				d[3] = s[3]
			}
		}
	}
	return img, nil
}

func tgaUnpackRLE(src, dst []byte, bpp int) error {
	si, di := 0, 0
	for di < len(dst) {
		if si >= len(src) {
			return errors.New("tga: truncated rle data")
		}
		hdr := src[si]
		si++
		count := int(hdr&0x7f) + 1
		if di+count*bpp > len(dst) {
			return errors.New("tga: rle packet overflows image")
		}
		if hdr&0x80 != 0 {
			if si+bpp > len(src) {
				return errors.New("tga: truncated rle data")
			}
			for i := 0; i < count; i++ {
				copy(dst[di:], src[si:si+bpp])
				di += bpp
			}
			si += bpp
			continue
		}
		n := count * bpp
		if si+n > len(src) {
			return errors.New("tga: truncated rle data")
		}
		copy(dst[di:], src[si:si+n])
		si += n
		di += n
	}
	return nil
}
