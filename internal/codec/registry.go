package codec

import (
	"fmt"
	"image"
	"strings"

	"github.com/AnyUserName/pixconv/internal/format"
	"github.com/rs/zerolog/log"
)

// Registry holds the encoder and decoder for every supported format.
type Registry struct {
	encoders map[format.Format]Encoder
	decoders map[format.Format]DecodeFunc
}

// NewRegistry creates a registry with all built-in codecs.
func NewRegistry() *Registry {
	r := &Registry{
		encoders: make(map[format.Format]Encoder),
		decoders: make(map[format.Format]DecodeFunc),
	}

	for _, enc := range []Encoder{
		&WebPEncoder{},
		&PNGEncoder{},
		&JPEGEncoder{},
		&GIFEncoder{},
		&AVIFEncoder{},
		&BMPEncoder{},
		&TIFFEncoder{},
		&ICOEncoder{},
		&FarbfeldEncoder{},
		&PNMEncoder{},
		&QOIEncoder{},
		&TGAEncoder{},
		&HDREncoder{},
	} {
		r.encoders[enc.Format()] = enc
	}

	r.decoders[format.WebP] = decodeWebP
	r.decoders[format.PNG] = decodePNG
	r.decoders[format.JPEG] = decodeJPEG
	r.decoders[format.GIF] = decodeGIF
	r.decoders[format.AVIF] = decodeAVIF
	r.decoders[format.BMP] = decodeBMP
	r.decoders[format.TIFF] = decodeTIFF
	r.decoders[format.ICO] = decodeICO
	r.decoders[format.Farbfeld] = decodeFarbfeld
	r.decoders[format.PNM] = decodePNM
	r.decoders[format.QOI] = decodeQOI
	r.decoders[format.TGA] = decodeTGA
	r.decoders[format.HDR] = decodeHDR

	return r
}

// Register replaces the encoder for enc.Format().
func (r *Registry) Register(enc Encoder) {
	r.encoders[enc.Format()] = enc
}

// Get returns the encoder for f, or nil if there is none.
func (r *Registry) Get(f format.Format) Encoder {
	return r.encoders[f]
}

// Available returns all encodable formats in declaration order.
func (r *Registry) Available() []format.Format {
	var result []format.Format
	for _, f := range format.All() {
		if _, ok := r.encoders[f]; ok {
			result = append(result, f)
		}
	}
	return result
}

// Encode serializes img as f. Every failure, including a panic inside a
// codec, is reported as an *EncodingError.
func (r *Registry) Encode(img image.Image, f format.Format, quality int) (data []byte, err error) {
	enc := r.encoders[f]
	if enc == nil {
		return nil, &EncodingError{Format: f, Detail: "no encoder available"}
	}

	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic", p).Stringer("format", f).Msg("encoder panicked")
			data, err = nil, &EncodingError{Format: f, Detail: fmt.Sprint(p)}
		}
	}()

	data, err = enc.Encode(img, quality)
	if err != nil {
		return nil, &EncodingError{Format: f, Detail: err.Error()}
	}
	return data, nil
}

// String returns a summary of available encoders.
func (r *Registry) String() string {
	avail := r.Available()
	if len(avail) == 0 {
		return "no encoders available"
	}
	names := make([]string, len(avail))
	for i, f := range avail {
		names[i] = f.String()
	}
	return fmt.Sprintf("encoders: %s", strings.Join(names, ", "))
}
