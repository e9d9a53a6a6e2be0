// Package normalize adapts a decoded image to what the target encoder
// expects before it is written.
package normalize

import (
	"image"

	"github.com/AnyUserName/pixconv/internal/format"
	"github.com/AnyUserName/pixconv/internal/pixel"
	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
)

// IconSize is the edge length every ICO output is resized to.
const IconSize = 256

// Normalize returns a new image suitable for encoding as target. source
// is the format the image was decoded from, when known. The input is
// never modified.
//
// An HDR source is first reduced to 8-bit RGBA. After that at most one
// transform is applied for the target: 3-channel 8-bit for containers
// without alpha, an exact 256x256 fit for ICO, float RGBA for HDR.
func Normalize(img image.Image, source format.Format, hasSource bool, target format.Format) image.Image {
	if hasSource && source == format.HDR {
		img = imaging.Clone(img)
	}

	switch target {
	case format.JPEG, format.Farbfeld, format.PNM, format.QOI, format.TGA:
		return pixel.ToRGB(img)
	case format.ICO:
		return fitIcon(img)
	case format.HDR:
		return pixel.ToRGBA32F(img)
	default:
		return pixel.Clone(img)
	}
}

// fitIcon stretches img to IconSize x IconSize with Lanczos3. Aspect
// ratio is not preserved.
func fitIcon(img image.Image) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() == IconSize && b.Dy() == IconSize {
		return imaging.Clone(img)
	}
	return imaging.Clone(resize.Resize(IconSize, IconSize, img, resize.Lanczos3))
}
