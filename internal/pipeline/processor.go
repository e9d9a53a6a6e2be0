package pipeline

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/AnyUserName/pixconv/internal/acquire"
	"github.com/AnyUserName/pixconv/internal/hasher"
	"github.com/AnyUserName/pixconv/internal/manifest"
)

// processResult holds the result of converting a single source file.
type processResult struct {
	key   string
	asset manifest.Asset
	err   error
}

// processFile converts one source and writes it as key.hash8.ext under
// the output directory.
func (p *Pipeline) processFile(ctx context.Context, src Source) processResult {
	result := processResult{key: src.Key}

	data, err := os.ReadFile(src.AbsPath)
	if err != nil {
		result.err = fmt.Errorf("read %s: %w", src.RelPath, err)
		return result
	}

	opts := []Option{}
	if p.cfg.Quality > 0 {
		opts = append(opts, WithQuality(p.cfg.Quality))
	}
	res, err := p.converter.Convert(ctx, Request{
		Input:      acquire.FromBytes(data),
		SourceType: src.Format.ContentType(),
		TargetType: p.cfg.TargetType,
		Factor:     p.cfg.Factor,
	}, opts...)
	if err != nil {
		result.err = fmt.Errorf("convert %s: %w", src.RelPath, err)
		return result
	}

	// A fallback writes the source bytes, so keep the source container.
	outFormat := res.Format
	if res.FellBack {
		outFormat = res.SourceFormat
	}

	keyDir := filepath.Dir(src.Key)
	if err := os.MkdirAll(filepath.Join(p.cfg.OutputDir, keyDir), 0o755); err != nil {
		result.err = fmt.Errorf("mkdir %s: %w", keyDir, err)
		return result
	}

	contentHash := hasher.Sum(res.Data, hasher.FullLen)
	fileName := fmt.Sprintf("%s.%s.%s", filepath.Base(src.Key), contentHash[:8], outFormat.Extension())
	relPath := filepath.ToSlash(filepath.Join(keyDir, fileName))

	if err := os.WriteFile(filepath.Join(p.cfg.OutputDir, relPath), res.Data, 0o644); err != nil {
		result.err = fmt.Errorf("write %s: %w", relPath, err)
		return result
	}

	result.asset = manifest.Asset{
		Original: manifest.OriginalInfo{
			Width:    res.Width,
			Height:   res.Height,
			Format:   res.SourceFormat.String(),
			Size:     src.Size,
			HasAlpha: res.HasAlpha,
		},
		Output: manifest.Output{
			Format:   outFormat.String(),
			MIMEType: outFormat.MIMEType(),
			Size:     int64(len(res.Data)),
			Hash:     contentHash,
			Path:     relPath,
		},
		FellBack: res.FellBack,
	}
	return result
}

// isOpaque reports whether every pixel of img is fully opaque.
func isOpaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0xffff {
				return false
			}
		}
	}
	return true
}
