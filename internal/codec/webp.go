package codec

import (
	"bytes"
	"image"

	"github.com/AnyUserName/pixconv/internal/format"
	"github.com/chai2010/webp"
)

// DefaultWebPQuality is used when the caller passes quality 0.
const DefaultWebPQuality = 82

// WebPEncoder encodes images to lossy WebP through libwebp.
type WebPEncoder struct {
	// Lossless switches to VP8L; quality then controls effort.
	Lossless bool
}

func (e *WebPEncoder) Format() format.Format { return format.WebP }

func (e *WebPEncoder) Encode(img image.Image, quality int) ([]byte, error) {
	if quality <= 0 || quality > 100 {
		quality = DefaultWebPQuality
	}

	var buf bytes.Buffer
	buf.Grow(128 * 1024)

	err := webp.Encode(&buf, img, &webp.Options{
		Lossless: e.Lossless,
		Quality:  float32(quality),
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeWebP(data []byte) (image.Image, error) {
	return webp.Decode(bytes.NewReader(data))
}
