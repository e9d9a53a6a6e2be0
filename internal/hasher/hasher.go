// Package hasher derives content hashes used for output file names,
// blob keys and HTTP ETags.
package hasher

import (
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
)

// FullLen is the length of an untruncated hash.
const FullLen = 16

// Sum returns the xxHash64 of data as lowercase hex, truncated to n
// characters when 0 < n < FullLen.
func Sum(data []byte, n int) string {
	return truncate(xxhash.Sum64(data), n)
}

// SumReader is Sum over a stream.
func SumReader(r io.Reader, n int) (string, error) {
	h := xxhash.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hash: %w", err)
	}
	return truncate(h.Sum64(), n), nil
}

// ETag returns a strong HTTP entity tag for data.
func ETag(data []byte) string {
	return `"` + Sum(data, FullLen) + `"`
}

func truncate(v uint64, n int) string {
	s := fmt.Sprintf("%016x", v)
	if n > 0 && n < len(s) {
		return s[:n]
	}
	return s
}
