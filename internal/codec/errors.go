package codec

import (
	"fmt"

	"github.com/AnyUserName/pixconv/internal/format"
)

// UnknownFormatError reports source bytes that no decoder could read.
type UnknownFormatError struct {
	Detail string
}

func (e *UnknownFormatError) Error() string {
	return "unknown file type: " + e.Detail
}

// EncodingError reports a codec-level failure while writing the target.
type EncodingError struct {
	Format format.Format
	Detail string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("error writing image as %s: %s", e.Format, e.Detail)
}
