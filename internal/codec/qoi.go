package codec

import (
	"bytes"
	"image"

	"github.com/AnyUserName/pixconv/internal/format"
	"github.com/xfmoulet/qoi"
)

const (
	qoiHeaderLen  = 14
	qoiPaddingLen = 8

	// A single QOI_OP_RUN chunk covers at most 62 pixels.
	qoiMaxRun = 62
)

// QOIEncoder writes four-channel QOI images.
type QOIEncoder struct{}

func (e *QOIEncoder) Format() format.Format { return format.QOI }

func (e *QOIEncoder) Encode(img image.Image, _ int) ([]byte, error) {
	var buf bytes.Buffer
	if err := qoi.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeQOI(data []byte) (image.Image, error) {
	return qoi.Decode(bytes.NewReader(data))
}

// qoiMinPayload is the smallest chunk stream that can describe w*h
// pixels: one run chunk per qoiMaxRun pixels.
func qoiMinPayload(w, h int) int {
	return (w*h+qoiMaxRun-1)/qoiMaxRun + qoiPaddingLen
}
