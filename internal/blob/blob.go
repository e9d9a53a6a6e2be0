// Package blob stores converted images and hands back a URL for them.
package blob

import (
	"context"
	"errors"

	"github.com/AnyUserName/pixconv/internal/format"
)

// ErrNotFound is returned for unknown or expired blobs.
var ErrNotFound = errors.New("blob not found")

// Store persists bytes under a MIME type and returns a URL that resolves
// to them.
type Store interface {
	Put(ctx context.Context, data []byte, mime string) (string, error)
}

// extensionFor picks a file extension for mime, "bin" when unknown.
func extensionFor(mime string) string {
	if f, ok := format.Resolve(mime); ok {
		return f.Extension()
	}
	return "bin"
}
