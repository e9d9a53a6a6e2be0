package blob

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/AnyUserName/pixconv/internal/hasher"
)

// LocalStore writes blobs into a directory, content-addressed, and
// returns file:// URLs.
type LocalStore struct {
	dir string
}

// NewLocalStore creates dir if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", abs, err)
	}
	return &LocalStore{dir: abs}, nil
}

// Put writes data to <dir>/<hash>.<ext>. Identical content maps to the
// same file.
func (s *LocalStore) Put(_ context.Context, data []byte, mime string) (string, error) {
	name := hasher.Sum(data, hasher.FullLen) + "." + extensionFor(mime)
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return u.String(), nil
}
