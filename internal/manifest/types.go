// Package manifest describes the JSON report written by a batch run.
package manifest

// FileName is the manifest written next to batch outputs.
const FileName = "pixconv.manifest.json"

// Manifest is the top-level output of a batch run.
type Manifest struct {
	Version     int              `json:"version"`
	GeneratedAt string           `json:"generated_at"`
	Target      string           `json:"target"` // MIME type requested for every asset
	Factor      string           `json:"factor"` // "skip" or the numeric shrink factor
	BasePath    string           `json:"base_path"`
	BuildInfo   *BuildInfo       `json:"build_info,omitempty"`
	Assets      map[string]Asset `json:"assets"`
	Stats       Stats            `json:"stats"`
}

// BuildInfo captures run parameters for diagnostics.
type BuildInfo struct {
	Workers int    `json:"workers"`
	Preset  string `json:"preset,omitempty"`
}

// Asset describes one source image and its converted output.
type Asset struct {
	Original OriginalInfo `json:"original"`
	Output   Output       `json:"output"`
	// FellBack is set when the converted bytes were larger than the
	// source and the source bytes were written instead.
	FellBack bool `json:"fell_back,omitempty"`
}

// OriginalInfo holds metadata about the source image.
type OriginalInfo struct {
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Format   string `json:"format"` // detected format, e.g. "png"
	Size     int64  `json:"size"`
	HasAlpha bool   `json:"has_alpha"`
}

// Output is the file written for an asset.
type Output struct {
	Format   string `json:"format"` // "webp", "jpeg", ...
	MIMEType string `json:"mime_type"`
	Size     int64  `json:"size"` // bytes on disk
	Hash     string `json:"hash"` // first 16 hex chars of xxhash64
	Path     string `json:"path"` // relative to base_path
}

// Stats aggregates run metrics.
type Stats struct {
	TotalInputBytes  int64 `json:"total_input_bytes"`
	TotalOutputBytes int64 `json:"total_output_bytes"`
	TotalAssets      int   `json:"total_assets"`
	FellBack         int   `json:"fell_back,omitempty"`
	Failed           int   `json:"failed,omitempty"`
}

// SupportedManifestVersion is the current schema version.
const SupportedManifestVersion = 1
