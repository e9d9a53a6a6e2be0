package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"

	"github.com/AnyUserName/pixconv/internal/format"
	"github.com/rs/zerolog/log"

	// Registered for auto-detection through image.Decode.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// autoFormats maps image.Decode format names to formats.
var autoFormats = map[string]format.Format{
	"webp":     format.WebP,
	"png":      format.PNG,
	"jpeg":     format.JPEG,
	"gif":      format.GIF,
	"avif":     format.AVIF,
	"bmp":      format.BMP,
	"tiff":     format.TIFF,
	"ico":      format.ICO,
	"farbfeld": format.Farbfeld,
	"pbm":      format.PNM,
	"pgm":      format.PNM,
	"ppm":      format.PNM,
	"pam":      format.PNM,
	"qoi":      format.QOI,
	"hdr":      format.HDR,
}

// Decode turns data into an image. When hasHint is set the hinted
// decoder is tried first; if it fails, or there is no hint, the format
// is detected from the bytes. The returned format is the one that
// actually decoded the data.
func (r *Registry) Decode(data []byte, hint format.Format, hasHint bool) (image.Image, format.Format, error) {
	if err := checkLimits(data); err != nil {
		return nil, 0, &UnknownFormatError{Detail: err.Error()}
	}

	var hintErr error
	if hasHint {
		if dec := r.decoders[hint]; dec != nil {
			img, err := safeDecode(dec, data)
			if err == nil {
				return img, hint, nil
			}
			hintErr = err
			log.Debug().Err(err).Stringer("hint", hint).Msg("hinted decode failed, detecting format")
		}
	}

	img, name, err := safeAutoDecode(data)
	if err == nil {
		f, ok := autoFormats[name]
		if !ok {
			if !hasHint {
				return nil, 0, &UnknownFormatError{Detail: fmt.Sprintf("decoded as unsupported format %q", name)}
			}
			f = hint
		}
		return img, f, nil
	}

	if hintErr != nil {
		return nil, 0, &UnknownFormatError{
			Detail: fmt.Sprintf("decoding as %s failed (%v) and format detection failed (%v)", hint, hintErr, err),
		}
	}
	return nil, 0, &UnknownFormatError{Detail: fmt.Sprintf("failed to load image from memory: %v", err)}
}

func safeDecode(dec DecodeFunc, data []byte) (img image.Image, err error) {
	defer func() {
		if p := recover(); p != nil {
			img, err = nil, fmt.Errorf("decoder panic: %v", p)
		}
	}()
	return dec(data)
}

func safeAutoDecode(data []byte) (img image.Image, name string, err error) {
	defer func() {
		if p := recover(); p != nil {
			img, name, err = nil, "", fmt.Errorf("decoder panic: %v", p)
		}
	}()
	return image.Decode(bytes.NewReader(data))
}

func decodePNG(data []byte) (image.Image, error) {
	return png.Decode(bytes.NewReader(data))
}

func decodeJPEG(data []byte) (image.Image, error) {
	return jpeg.Decode(bytes.NewReader(data))
}

func decodeGIF(data []byte) (image.Image, error) {
	return gif.Decode(bytes.NewReader(data))
}
