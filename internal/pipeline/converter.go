package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/AnyUserName/pixconv/internal/acquire"
	"github.com/AnyUserName/pixconv/internal/blob"
	"github.com/AnyUserName/pixconv/internal/codec"
	"github.com/AnyUserName/pixconv/internal/format"
	"github.com/AnyUserName/pixconv/internal/normalize"
	"github.com/AnyUserName/pixconv/internal/progress"
	"github.com/AnyUserName/pixconv/internal/shrink"
	"github.com/rs/zerolog/log"
)

// Request describes one conversion.
type Request struct {
	Input acquire.Input
	// SourceType is a MIME hint for decoding; empty or unknown means
	// detect from the bytes.
	SourceType string
	// TargetType is the output MIME type; unknown values select
	// format.Default.
	TargetType string
	Factor     shrink.Factor
}

// Result is a finished conversion.
type Result struct {
	Data     []byte
	Format   format.Format // the requested target, even when FellBack
	MIMEType string
	// FellBack is set when Data is the unchanged source because the
	// converted output was larger.
	FellBack  bool
	InputSize int

	SourceFormat  format.Format // format the source actually decoded as
	Width, Height int           // source dimensions
	HasAlpha      bool
}

type callOptions struct {
	reporter progress.Reporter
	quality  int
}

// Option configures a single conversion.
type Option func(*callOptions)

// WithReporter reports conversion milestones to r.
func WithReporter(r progress.Reporter) Option {
	return func(o *callOptions) { o.reporter = r }
}

// WithQuality overrides the encoder quality (1-100) for lossy targets.
func WithQuality(q int) Option {
	return func(o *callOptions) { o.quality = q }
}

// Converter runs the acquire, decode, normalize, shrink, encode and
// guard stages. It holds no per-call state and is safe for concurrent
// use.
type Converter struct {
	acquirer *acquire.Acquirer
	registry *codec.Registry
}

// NewConverter creates a converter. A nil fetcher disables URL inputs.
func NewConverter(fetcher acquire.Fetcher) *Converter {
	return &Converter{
		acquirer: acquire.New(fetcher),
		registry: codec.NewRegistry(),
	}
}

// Registry exposes the codecs in use.
func (c *Converter) Registry() *codec.Registry { return c.registry }

// Convert runs the full pipeline and returns the output bytes. Errors
// are one of *acquire.InvalidInputError, *acquire.Error,
// *codec.UnknownFormatError or *codec.EncodingError.
func (c *Converter) Convert(ctx context.Context, req Request, opts ...Option) (*Result, error) {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}
	start := time.Now()

	progress.Notify(o.reporter, progress.Starting)
	data, err := c.acquirer.Acquire(ctx, req.Input)
	if err != nil {
		log.Debug().Err(err).Stringer("input", req.Input).Msg("acquire failed")
		return nil, err
	}

	progress.Notify(o.reporter, progress.Loading)
	hint, hasHint := format.Resolve(req.SourceType)
	img, source, err := c.registry.Decode(data, hint, hasHint)
	if err != nil {
		log.Debug().Err(err).Str("source_type", req.SourceType).Int("bytes", len(data)).Msg("decode failed")
		return nil, err
	}
	b := img.Bounds()

	progress.Notify(o.reporter, progress.Processing)
	target := format.ResolveTarget(req.TargetType)
	prepared := normalize.Normalize(img, source, true, target)
	if !req.Factor.IsSkip() {
		// Shrinking yields 8-bit RGBA; restore the target's layout.
		prepared = normalize.Normalize(shrink.Apply(prepared, req.Factor), source, false, target)
	}

	progress.Notify(o.reporter, progress.Converting)
	encoded, err := c.registry.Encode(prepared, target, o.quality)
	if err != nil {
		log.Debug().Err(err).Stringer("format", target).Msg("encode failed")
		return nil, err
	}
	out, fellBack := Guard(encoded, data)

	progress.Notify(o.reporter, progress.Complete)

	log.Debug().
		Stringer("source", source).
		Stringer("format", target).
		Stringer("factor", req.Factor).
		Int("width", b.Dx()).
		Int("height", b.Dy()).
		Int("in_bytes", len(data)).
		Int("encoded_bytes", len(encoded)).
		Bool("fallback", fellBack).
		Dur("took", time.Since(start)).
		Msg("converted")

	return &Result{
		Data:         out,
		Format:       target,
		MIMEType:     target.MIMEType(),
		FellBack:     fellBack,
		InputSize:    len(data),
		SourceFormat: source,
		Width:        b.Dx(),
		Height:       b.Dy(),
		HasAlpha:     !isOpaque(img),
	}, nil
}

// ConvertToURL converts and stores the output in store under the target's
// MIME type, returning the store's URL.
func (c *Converter) ConvertToURL(ctx context.Context, req Request, store blob.Store, opts ...Option) (string, error) {
	res, err := c.Convert(ctx, req, opts...)
	if err != nil {
		return "", err
	}
	url, err := store.Put(ctx, res.Data, res.MIMEType)
	if err != nil {
		return "", fmt.Errorf("store result: %w", err)
	}
	return url, nil
}
