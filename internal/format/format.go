// Package format maps MIME types to the raster containers pixconv can
// read and write.
package format

import (
	"strings"
)

// Format identifies a concrete raster container.
type Format int

// Known formats. WebP comes first: it is the canonical container used
// whenever a target MIME type cannot be resolved.
const (
	WebP Format = iota
	PNG
	JPEG
	GIF
	AVIF
	BMP
	TIFF
	ICO
	Farbfeld
	PNM
	QOI
	TGA
	HDR

	numFormats
)

// Default is the target used when a target MIME type does not resolve.
const Default = WebP

// OctetStream is the MIME type reported for formats without a
// browser-recognised content type.
const OctetStream = "application/octet-stream"

// All returns every known format in declaration order.
func All() []Format {
	out := make([]Format, 0, numFormats)
	for f := Format(0); f < numFormats; f++ {
		out = append(out, f)
	}
	return out
}

// Valid reports whether f is one of the declared formats.
func (f Format) Valid() bool {
	return f >= 0 && f < numFormats
}

func (f Format) String() string {
	switch f {
	case WebP:
		return "webp"
	case PNG:
		return "png"
	case JPEG:
		return "jpeg"
	case GIF:
		return "gif"
	case AVIF:
		return "avif"
	case BMP:
		return "bmp"
	case TIFF:
		return "tiff"
	case ICO:
		return "ico"
	case Farbfeld:
		return "farbfeld"
	case PNM:
		return "pnm"
	case QOI:
		return "qoi"
	case TGA:
		return "tga"
	case HDR:
		return "hdr"
	default:
		return "unknown"
	}
}

// Extension returns the file extension without dot.
func (f Format) Extension() string {
	switch f {
	case JPEG:
		return "jpg"
	case Farbfeld:
		return "ff"
	case PNM:
		return "ppm"
	default:
		return f.String()
	}
}

// MIMEType returns the content type used when packaging output for a
// browser. Only formats browsers render natively get their own type.
func (f Format) MIMEType() string {
	switch f {
	case PNG:
		return "image/png"
	case JPEG:
		return "image/jpeg"
	case GIF:
		return "image/gif"
	case AVIF:
		return "image/avif"
	case WebP:
		return "image/webp"
	case ICO:
		return "image/x-icon"
	default:
		return OctetStream
	}
}

// ContentType returns the most specific MIME type for f, one that
// Resolve maps back to f. Use it for decode hints; MIMEType is for
// packaging output.
func (f Format) ContentType() string {
	switch f {
	case BMP:
		return "image/bmp"
	case TIFF:
		return "image/tiff"
	case Farbfeld:
		return "image/x-farbfeld"
	case PNM:
		return "image/x-portable-anymap"
	case QOI:
		return "image/x-qoi"
	case TGA:
		return "image/x-tga"
	case HDR:
		return "image/vnd.radiance"
	default:
		return f.MIMEType()
	}
}

// WritesAlpha reports whether output in this format keeps an alpha
// channel. Farbfeld, QOI and TGA could carry one but are always written
// as opaque RGB.
func (f Format) WritesAlpha() bool {
	switch f {
	case JPEG, Farbfeld, PNM, QOI, TGA:
		return false
	default:
		return true
	}
}

// standard is the registered MIME table.
var standard = map[string]Format{
	"image/webp":               WebP,
	"image/png":                PNG,
	"image/jpeg":               JPEG,
	"image/gif":                GIF,
	"image/avif":               AVIF,
	"image/bmp":                BMP,
	"image/tiff":               TIFF,
	"image/x-icon":             ICO,
	"image/vnd.microsoft.icon": ICO,
	"image/x-portable-anymap":  PNM,
	"image/x-portable-pixmap":  PNM,
	"image/x-portable-graymap": PNM,
	"image/x-portable-bitmap":  PNM,
	"image/x-qoi":              QOI,
	"image/x-tga":              TGA,
	"image/x-targa":            TGA,
	"image/vnd.radiance":       HDR,
}

// aliases covers MIME strings seen in the wild that no registry lists.
var aliases = map[string]Format{
	"image/farbfeld":   Farbfeld,
	"image/x-farbfeld": Farbfeld,
	"image/jpg":        JPEG,
	"image/pjpeg":      JPEG,
	"image/x-png":      PNG,
	"image/x-ms-bmp":   BMP,
	"image/qoi":        QOI,
	"image/x-hdr":      HDR,
}

// Resolve maps a MIME type to a format. Parameters such as
// "; charset=binary" are ignored and matching is case-insensitive.
func Resolve(mime string) (Format, bool) {
	key := strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(key, ';'); i >= 0 {
		key = strings.TrimSpace(key[:i])
	}
	if f, ok := standard[key]; ok {
		return f, true
	}
	if f, ok := aliases[key]; ok {
		return f, true
	}
	return 0, false
}

// ResolveOr resolves mime or returns fallback.
func ResolveOr(mime string, fallback Format) Format {
	if f, ok := Resolve(mime); ok {
		return f
	}
	return fallback
}

// ResolveTarget resolves a target MIME type, falling back to Default.
func ResolveTarget(mime string) Format {
	return ResolveOr(mime, Default)
}

// extensions maps lowercase file extensions (with dot) to formats.
var extensions = map[string]Format{
	".webp": WebP,
	".png":  PNG,
	".jpg":  JPEG,
	".jpeg": JPEG,
	".gif":  GIF,
	".avif": AVIF,
	".bmp":  BMP,
	".tif":  TIFF,
	".tiff": TIFF,
	".ico":  ICO,
	".ff":   Farbfeld,
	".pnm":  PNM,
	".ppm":  PNM,
	".pgm":  PNM,
	".pbm":  PNM,
	".qoi":  QOI,
	".tga":  TGA,
	".hdr":  HDR,
}

// FromExtension maps a file extension such as ".png" to a format.
func FromExtension(ext string) (Format, bool) {
	f, ok := extensions[strings.ToLower(ext)]
	return f, ok
}
