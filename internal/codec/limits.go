package codec

import (
	"bytes"
	"fmt"
	"image"
)

const (
	// maxDimension bounds widths and heights read from image headers.
	maxDimension = 1 << 16
	// maxPixels bounds the raster a single decode may allocate.
	maxPixels = 1 << 26
)

// payloadChecks hold per-format lower bounds on the bytes that must
// follow the header, keyed by image.Decode format name.
var payloadChecks = map[string]func(data []byte, w, h int) bool{
	"qoi": func(data []byte, w, h int) bool {
		return len(data)-qoiHeaderLen >= qoiMinPayload(w, h)
	},
	"hdr": func(data []byte, w, h int) bool {
		// Every scanline takes at least four bytes, flat or run-length.
		return len(data)-hdrRasterOffset(data) >= 4*h
	},
	"pbm": pnmHasPayload,
	"pgm": pnmHasPayload,
	"ppm": pnmHasPayload,
	"pam": pnmHasPayload,
	"farbfeld": func(data []byte, w, h int) bool {
		return len(data)-farbfeldHeaderLen >= w*h*8
	},
}

// checkLimits reads the header of data and rejects images whose declared
// size exceeds the decode limits or cannot be backed by the payload. It
// runs before any decoder allocates a raster. Data whose header is not
// recognized passes; the decoders report it.
func checkLimits(data []byte) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("header panic: %v", p)
		}
	}()

	cfg, name, cfgErr := image.DecodeConfig(bytes.NewReader(data))
	if cfgErr != nil {
		return nil
	}
	if err := checkDimensions(name, cfg.Width, cfg.Height); err != nil {
		return err
	}
	if check := payloadChecks[name]; check != nil && !check(data, cfg.Width, cfg.Height) {
		return fmt.Errorf("%s: %dx%d image with truncated pixel data", name, cfg.Width, cfg.Height)
	}
	return nil
}

func checkDimensions(name string, w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%s: empty image %dx%d", name, w, h)
	}
	if w > maxDimension || h > maxDimension || w*h > maxPixels {
		return fmt.Errorf("%s: %dx%d exceeds decode limits", name, w, h)
	}
	return nil
}
