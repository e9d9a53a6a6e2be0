// Package acquire turns a conversion input (a URL or raw bytes) into the
// source byte buffer.
package acquire

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// ErrNoNetwork is wrapped by an Error when a URL input arrives but no
// Fetcher is configured.
var ErrNoNetwork = errors.New("no networking context available")

// InvalidInputError reports an input that is neither a URL nor a byte
// buffer.
type InvalidInputError struct {
	Got string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input type %s: must be a URL string or a byte buffer", e.Got)
}

// Error reports a failed acquisition of a URL input.
type Error struct {
	URL string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("acquire %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

type kind uint8

const (
	kindInvalid kind = iota
	kindURL
	kindBytes
)

// Input is either a URL or a byte buffer. The zero Input is invalid.
type Input struct {
	kind kind
	url  string
	data []byte
}

// FromURL returns an Input that is fetched from url.
func FromURL(url string) Input {
	return Input{kind: kindURL, url: url}
}

// FromBytes returns an Input holding data. The slice is copied when the
// input is acquired, not here.
func FromBytes(data []byte) Input {
	return Input{kind: kindBytes, data: data}
}

// URL returns the URL and true for URL inputs.
func (in Input) URL() (string, bool) {
	return in.url, in.kind == kindURL
}

// IsBytes reports whether in holds a byte buffer.
func (in Input) IsBytes() bool { return in.kind == kindBytes }

func (in Input) String() string {
	switch in.kind {
	case kindURL:
		return "url(" + in.url + ")"
	case kindBytes:
		return fmt.Sprintf("bytes(%d)", len(in.data))
	default:
		return "invalid"
	}
}

// Fetcher performs a single GET and returns the complete response body.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Acquirer produces source buffers. A nil Fetcher disables URL inputs.
type Acquirer struct {
	fetcher Fetcher
}

// New returns an Acquirer using f for URL inputs. f may be nil.
func New(f Fetcher) *Acquirer {
	return &Acquirer{fetcher: f}
}

// Acquire returns the source bytes for in. URL inputs are fetched exactly
// once; byte inputs are copied so the caller may reuse its buffer.
func (a *Acquirer) Acquire(ctx context.Context, in Input) ([]byte, error) {
	switch in.kind {
	case kindBytes:
		return append([]byte(nil), in.data...), nil

	case kindURL:
		if in.url == "" {
			return nil, &InvalidInputError{Got: "empty URL"}
		}
		if a == nil || a.fetcher == nil {
			return nil, &Error{URL: in.url, Err: ErrNoNetwork}
		}

		log.Debug().Str("url", in.url).Msg("fetching source image")
		data, err := a.fetcher.Fetch(ctx, in.url)
		if err != nil {
			return nil, &Error{URL: in.url, Err: err}
		}
		// A cancelled caller must not proceed to decode, even if the
		// fetcher ignored the context.
		if err := ctx.Err(); err != nil {
			return nil, &Error{URL: in.url, Err: err}
		}

		log.Debug().Str("url", in.url).Int("bytes", len(data)).Msg("fetched source image")
		return data, nil

	default:
		return nil, &InvalidInputError{Got: "unset input"}
	}
}
