package codec

import (
	"bytes"
	"image"

	"github.com/AnyUserName/pixconv/internal/format"
	"github.com/gen2brain/avif"
)

// DefaultAVIFQuality is used when the caller passes quality 0.
const DefaultAVIFQuality = 60

// avifSpeed trades encode time for size; 10 is the fastest setting.
const avifSpeed = 8

// AVIFEncoder encodes images to AVIF with the WASM build of libavif, so
// no system library or CGO is needed.
type AVIFEncoder struct{}

func (e *AVIFEncoder) Format() format.Format { return format.AVIF }

func (e *AVIFEncoder) Encode(img image.Image, quality int) ([]byte, error) {
	if quality <= 0 || quality > 100 {
		quality = DefaultAVIFQuality
	}

	var buf bytes.Buffer
	err := avif.Encode(&buf, img, avif.Options{
		Quality:      quality,
		QualityAlpha: quality,
		Speed:        avifSpeed,
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeAVIF(data []byte) (image.Image, error) {
	return avif.Decode(bytes.NewReader(data))
}
