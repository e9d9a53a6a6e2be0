package codec

import (
	"bytes"
	"image"
	"image/gif"

	"github.com/AnyUserName/pixconv/internal/format"
)

// GIFEncoder writes a single-frame GIF. Images that are not already
// paletted are quantized to 256 colors by the standard library.
type GIFEncoder struct{}

func (e *GIFEncoder) Format() format.Format { return format.GIF }

func (e *GIFEncoder) Encode(img image.Image, _ int) ([]byte, error) {
	var buf bytes.Buffer
	if err := gif.Encode(&buf, img, &gif.Options{NumColors: 256}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
