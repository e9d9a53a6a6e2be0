package pixel

import (
	"image"

	"github.com/disintegration/imaging"
)

// Clone returns a deep copy of img that keeps its concrete type, bounds
// and palette, so encoders produce the same bytes for the copy as for the
// original. Types without a fast path are copied into *image.NRGBA.
func Clone(img image.Image) image.Image {
	switch src := img.(type) {
	case *image.NRGBA:
		dst := *src
		dst.Pix = append([]uint8(nil), src.Pix...)
		return &dst
	case *image.RGBA:
		dst := *src
		dst.Pix = append([]uint8(nil), src.Pix...)
		return &dst
	case *image.NRGBA64:
		dst := *src
		dst.Pix = append([]uint8(nil), src.Pix...)
		return &dst
	case *image.RGBA64:
		dst := *src
		dst.Pix = append([]uint8(nil), src.Pix...)
		return &dst
	case *image.Gray:
		dst := *src
		dst.Pix = append([]uint8(nil), src.Pix...)
		return &dst
	case *image.Gray16:
		dst := *src
		dst.Pix = append([]uint8(nil), src.Pix...)
		return &dst
	case *image.CMYK:
		dst := *src
		dst.Pix = append([]uint8(nil), src.Pix...)
		return &dst
	case *image.Paletted:
		dst := *src
		dst.Pix = append([]uint8(nil), src.Pix...)
		dst.Palette = append(src.Palette[:0:0], src.Palette...)
		return &dst
	case *image.YCbCr:
		dst := *src
		dst.Y = append([]uint8(nil), src.Y...)
		dst.Cb = append([]uint8(nil), src.Cb...)
		dst.Cr = append([]uint8(nil), src.Cr...)
		return &dst
	case *image.NYCbCrA:
		dst := *src
		dst.Y = append([]uint8(nil), src.Y...)
		dst.Cb = append([]uint8(nil), src.Cb...)
		dst.Cr = append([]uint8(nil), src.Cr...)
		dst.A = append([]uint8(nil), src.A...)
		return &dst
	case *RGB:
		dst := *src
		dst.Pix = append([]uint8(nil), src.Pix...)
		return &dst
	case *RGBA32F:
		dst := *src
		dst.Pix = append([]float32(nil), src.Pix...)
		return &dst
	default:
		return imaging.Clone(img)
	}
}
