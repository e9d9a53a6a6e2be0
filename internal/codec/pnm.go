package codec

import (
	"bytes"
	"errors"
	"image"
	"image/draw"
	"strconv"

	"github.com/AnyUserName/pixconv/internal/format"
	"github.com/AnyUserName/pixconv/internal/pixel"
	"github.com/spakin/netpbm"
)

// PNMEncoder writes binary PPM (P6, maxval 255).
type PNMEncoder struct{}

func (e *PNMEncoder) Format() format.Format { return format.PNM }

func (e *PNMEncoder) Encode(img image.Image, _ int) ([]byte, error) {
	rgb, ok := img.(*pixel.RGB)
	if !ok {
		rgb = pixel.ToRGB(img)
	}
	b := rgb.Bounds()

	var buf bytes.Buffer
	buf.Grow(32 + b.Dx()*b.Dy()*3)
	err := netpbm.Encode(&buf, rgb, &netpbm.EncodeOptions{Format: netpbm.PPM, MaxValue: 255})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodePNM reads PBM, PGM, PPM and PAM images. Bitmaps and graymaps
// decode to Gray, pixmaps to RGB, anything with alpha to NRGBA. Samples
// are rescaled from the file's maxval to 8 bits.
func decodePNM(data []byte) (image.Image, error) {
	img, err := netpbm.Decode(bytes.NewReader(data), &netpbm.DecodeOptions{Target: netpbm.PAM})
	if err != nil {
		return nil, err
	}

	switch src := img.(type) {
	case *netpbm.GrayM:
		dst := image.NewGray(src.Bounds())
		for i, v := range src.Pix {
			dst.Pix[i] = scaleSample(int(v), int(src.Model.M))
		}
		return dst, nil
	case *netpbm.RGBM:
		dst := pixel.NewRGB(src.Bounds())
		for i, v := range src.Pix {
			dst.Pix[i] = scaleSample(int(v), int(src.Model.M))
		}
		return dst, nil
	}

	b := img.Bounds()
	if img.HasAlpha() {
		dst := image.NewNRGBA(b)
		draw.Draw(dst, b, img, b.Min, draw.Src)
		return dst, nil
	}
	if img.Format() == netpbm.PBM || img.Format() == netpbm.PGM {
		dst := image.NewGray(b)
		draw.Draw(dst, b, img, b.Min, draw.Src)
		return dst, nil
	}
	return pixel.ToRGB(img), nil
}

// scaleSample maps v in [0, maxval] to [0, 255], rounding to nearest.
func scaleSample(v, maxval int) uint8 {
	if maxval <= 0 {
		return 0
	}
	if v > maxval {
		v = maxval
	}
	return uint8((v*255 + maxval/2) / maxval)
}

// pnmReader tokenizes a PNM header: whitespace separated fields with
// '#' comments running to end of line.
type pnmReader struct {
	data []byte
	pos  int
}

func (r *pnmReader) skipSpace() {
	for r.pos < len(r.data) {
		c := r.data[r.pos]
		switch {
		case c == '#':
			for r.pos < len(r.data) && r.data[r.pos] != '\n' {
				r.pos++
			}
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f':
			r.pos++
		default:
			return
		}
	}
}

func (r *pnmReader) int() (int, error) {
	r.skipSpace()
	start := r.pos
	for r.pos < len(r.data) && r.data[r.pos] >= '0' && r.data[r.pos] <= '9' {
		r.pos++
	}
	if start == r.pos {
		return 0, errors.New("pnm: expected number")
	}
	return strconv.Atoi(string(r.data[start:r.pos]))
}

// pnmHasPayload reports whether data carries enough raster bytes after
// its header for w*h pixels. Raw variants are checked exactly; plain and
// PAM variants need at least one byte per sample. Headers it cannot
// parse are left for the decoder to reject.
func pnmHasPayload(data []byte, w, h int) bool {
	if len(data) < 2 || data[0] != 'P' {
		return true
	}
	kind := data[1]
	if kind == '7' {
		end := bytes.Index(data, []byte("ENDHDR"))
		if end < 0 {
			return true
		}
		return len(data)-end-len("ENDHDR\n") >= w*h
	}

	r := &pnmReader{data: data, pos: 2}
	if _, err := r.int(); err != nil {
		return true
	}
	if _, err := r.int(); err != nil {
		return true
	}
	maxval := 1
	if kind != '1' && kind != '4' {
		v, err := r.int()
		if err != nil {
			return true
		}
		maxval = v
	}
	// A single whitespace byte ends the header.
	r.pos++

	channels := 1
	if kind == '3' || kind == '6' {
		channels = 3
	}
	bytesPer := 1
	if maxval > 255 {
		bytesPer = 2
	}

	var need int
	switch kind {
	case '4':
		need = (w + 7) / 8 * h
	case '5', '6':
		need = w * h * channels * bytesPer
	default:
		need = w * h * channels
	}
	return len(data)-r.pos >= need
}
