package codec

import (
	"bytes"
	"image"

	"github.com/AnyUserName/pixconv/internal/format"
	ico "github.com/sergeymakinen/go-ico"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// BMPEncoder writes uncompressed BMP.
type BMPEncoder struct{}

func (e *BMPEncoder) Format() format.Format { return format.BMP }

func (e *BMPEncoder) Encode(img image.Image, _ int) ([]byte, error) {
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// TIFFEncoder writes deflate-compressed TIFF.
type TIFFEncoder struct{}

func (e *TIFFEncoder) Format() format.Format { return format.TIFF }

func (e *TIFFEncoder) Encode(img image.Image, _ int) ([]byte, error) {
	var buf bytes.Buffer
	if err := tiff.Encode(&buf, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ICOEncoder writes a single-entry icon. Entries are limited to 256x256,
// which the normalizer guarantees.
type ICOEncoder struct{}

func (e *ICOEncoder) Format() format.Format { return format.ICO }

func (e *ICOEncoder) Encode(img image.Image, _ int) ([]byte, error) {
	var buf bytes.Buffer
	if err := ico.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeBMP(data []byte) (image.Image, error) {
	return bmp.Decode(bytes.NewReader(data))
}

func decodeTIFF(data []byte) (image.Image, error) {
	return tiff.Decode(bytes.NewReader(data))
}

// decodeICO uses the ico package directly: probing through image.Decode
// fails on some icons that carry cursor data.
func decodeICO(data []byte) (image.Image, error) {
	return ico.Decode(bytes.NewReader(data))
}
