package codec

import (
	"bytes"
	"image"
	"image/jpeg"

	"github.com/AnyUserName/pixconv/internal/format"
)

// DefaultJPEGQuality is used when the caller passes quality 0.
const DefaultJPEGQuality = 82

// JPEGEncoder encodes images to baseline JPEG using Go's standard library.
type JPEGEncoder struct{}

func (e *JPEGEncoder) Format() format.Format { return format.JPEG }

func (e *JPEGEncoder) Encode(img image.Image, quality int) ([]byte, error) {
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}

	var buf bytes.Buffer
	buf.Grow(256 * 1024) // pre-alloc 256KB, typical photo size

	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
