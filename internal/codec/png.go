package codec

import (
	"bytes"
	"image"
	"image/png"

	"github.com/AnyUserName/pixconv/internal/format"
)

// PNGEncoder encodes images to PNG using Go's standard library.
// Quality is ignored: PNG is lossless, so best compression is always used.
type PNGEncoder struct{}

func (e *PNGEncoder) Format() format.Format { return format.PNG }

func (e *PNGEncoder) Encode(img image.Image, _ int) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(512 * 1024)

	enc := &png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
