package manifest

import (
	"fmt"
	"os"
	"path/filepath"
)

// Validate checks m for internal consistency and that every output it
// references exists under baseDir with the recorded size.
func Validate(m *Manifest, baseDir string) []string {
	var errs []string

	if m.Version != SupportedManifestVersion {
		errs = append(errs, fmt.Sprintf("unsupported manifest version: %d", m.Version))
	}

	seenPaths := map[string]string{}
	var in, out int64
	fellBack := 0
	for key, a := range m.Assets {
		if a.Original.Width <= 0 || a.Original.Height <= 0 {
			errs = append(errs, fmt.Sprintf("asset %q: invalid original dimensions %dx%d",
				key, a.Original.Width, a.Original.Height))
		}
		if a.Output.Format == "" {
			errs = append(errs, fmt.Sprintf("asset %q: empty output format", key))
		}
		if a.Output.Hash == "" {
			errs = append(errs, fmt.Sprintf("asset %q: missing hash", key))
		}
		if a.FellBack && a.Output.Size != a.Original.Size {
			errs = append(errs, fmt.Sprintf("asset %q: fell back but output size %d != original %d",
				key, a.Output.Size, a.Original.Size))
		}
		in += a.Original.Size
		out += a.Output.Size
		if a.FellBack {
			fellBack++
		}

		if a.Output.Path == "" {
			errs = append(errs, fmt.Sprintf("asset %q: missing path", key))
			continue
		}
		if other, dup := seenPaths[a.Output.Path]; dup {
			errs = append(errs, fmt.Sprintf("asset %q: path %q already used by %q", key, a.Output.Path, other))
		}
		seenPaths[a.Output.Path] = key

		info, err := os.Stat(filepath.Join(baseDir, a.Output.Path))
		if err != nil {
			errs = append(errs, fmt.Sprintf("asset %q: file not found: %s", key, a.Output.Path))
		} else if info.Size() != a.Output.Size {
			errs = append(errs, fmt.Sprintf("asset %q: size mismatch: manifest=%d, disk=%d",
				key, a.Output.Size, info.Size()))
		}
	}

	if m.Stats.TotalAssets != len(m.Assets) {
		errs = append(errs, fmt.Sprintf("stats.total_assets mismatch: %d != %d", m.Stats.TotalAssets, len(m.Assets)))
	}
	if m.Stats.TotalInputBytes != in || m.Stats.TotalOutputBytes != out {
		errs = append(errs, fmt.Sprintf("stats byte totals mismatch: in %d/%d, out %d/%d",
			m.Stats.TotalInputBytes, in, m.Stats.TotalOutputBytes, out))
	}
	if m.Stats.FellBack != fellBack {
		errs = append(errs, fmt.Sprintf("stats.fell_back mismatch: %d != %d", m.Stats.FellBack, fellBack))
	}
	return errs
}
