package pipeline

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/AnyUserName/pixconv/internal/format"
	"github.com/AnyUserName/pixconv/internal/manifest"
)

// Source represents a discovered image file.
type Source struct {
	// AbsPath is the path to the file on disk.
	AbsPath string
	// RelPath is the path relative to the input directory.
	RelPath string
	// Key is the asset key (relpath without extension, forward slashes).
	Key string
	// Format is the format implied by the extension; decoding still
	// detects the real one.
	Format format.Format
	// Size is the file size in bytes.
	Size int64
}

// ScanImages walks the input directory and returns all files with a
// recognised image extension. Hidden directories and manifests are
// skipped.
func ScanImages(inputDir string) ([]Source, error) {
	var sources []Source

	err := filepath.Walk(inputDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if strings.HasPrefix(info.Name(), ".") && path != inputDir {
				return filepath.SkipDir
			}
			return nil
		}
		if info.Name() == manifest.FileName {
			return nil
		}

		ext := filepath.Ext(path)
		f, ok := format.FromExtension(ext)
		if !ok {
			return nil
		}

		relPath, err := filepath.Rel(inputDir, path)
		if err != nil {
			return err
		}

		sources = append(sources, Source{
			AbsPath: path,
			RelPath: filepath.ToSlash(relPath),
			Key:     filepath.ToSlash(strings.TrimSuffix(relPath, ext)),
			Format:  f,
			Size:    info.Size(),
		})
		return nil
	})

	return sources, err
}
