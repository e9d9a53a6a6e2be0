// Package codec decodes source bytes into images and encodes images into
// the target container.
package codec

import (
	"image"

	"github.com/AnyUserName/pixconv/internal/format"
)

// Encoder encodes an image to a specific format.
type Encoder interface {
	// Format returns the container this encoder writes.
	Format() format.Format

	// Encode converts the image to bytes at the given quality (1-100).
	// Lossless encoders ignore quality; 0 selects the encoder default.
	Encode(img image.Image, quality int) ([]byte, error)
}

// DecodeFunc decodes one specific format.
type DecodeFunc func(data []byte) (image.Image, error)
