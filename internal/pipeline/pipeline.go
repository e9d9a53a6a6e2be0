package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/AnyUserName/pixconv/internal/manifest"
	"github.com/AnyUserName/pixconv/internal/shrink"
	"github.com/rs/zerolog/log"
)

// Config holds all parameters for a batch run.
type Config struct {
	InputDir   string
	OutputDir  string
	TargetType string // output MIME type
	Factor     shrink.Factor
	Quality    int
	Workers    int
	Preset     string // recorded in the manifest only
}

// Pipeline converts every image in a directory tree.
type Pipeline struct {
	cfg       Config
	converter *Converter
}

// New creates a batch pipeline around conv.
func New(cfg Config, conv *Converter) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	return &Pipeline{cfg: cfg, converter: conv}
}

// Run converts all sources and returns the manifest. Individual failures
// are logged and counted; Run only fails when every source failed.
func (p *Pipeline) Run(ctx context.Context) (*manifest.Manifest, error) {
	log.Debug().Str("codecs", p.converter.Registry().String()).Send()

	sources, err := ScanImages(p.cfg.InputDir)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no images found in %s", p.cfg.InputDir)
	}
	log.Info().Int("count", len(sources)).Str("dir", p.cfg.InputDir).Msg("found images")

	results := make([]processResult, len(sources))
	var wg sync.WaitGroup
	sem := make(chan struct{}, p.cfg.Workers)

	for i, src := range sources {
		wg.Add(1)
		go func(idx int, s Source) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			log.Debug().Str("key", s.Key).Msg("processing")
			results[idx] = p.processFile(ctx, s)
			if results[idx].err == nil {
				log.Debug().Str("key", s.Key).
					Int64("size", results[idx].asset.Output.Size).
					Bool("fallback", results[idx].asset.FellBack).
					Msg("done")
			}
		}(i, src)
	}
	wg.Wait()

	m := manifest.New(p.cfg.TargetType, p.cfg.Factor.String())
	m.BuildInfo = &manifest.BuildInfo{Workers: p.cfg.Workers, Preset: p.cfg.Preset}

	var errs []error
	for _, r := range results {
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		m.Assets[r.key] = r.asset
	}

	if len(errs) > 0 {
		for _, e := range errs {
			log.Error().Err(e).Msg("conversion failed")
		}
		if len(errs) == len(sources) {
			return nil, fmt.Errorf("all %d images failed to convert", len(errs))
		}
		log.Warn().Msgf("%d of %d images had errors", len(errs), len(sources))
	}

	m.Stats.Failed = len(errs)
	m.ComputeStats()
	return m, nil
}
