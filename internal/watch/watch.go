// Package watch converts images as they appear in a directory.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/AnyUserName/pixconv/internal/acquire"
	"github.com/AnyUserName/pixconv/internal/format"
	"github.com/AnyUserName/pixconv/internal/pipeline"
	"github.com/AnyUserName/pixconv/internal/shrink"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// DefaultDebounce is how long a file must stay quiet before it is
// converted, so partially written files are not picked up.
const DefaultDebounce = 500 * time.Millisecond

// Event reports one converted (or failed) file.
type Event struct {
	Source   string
	Output   string
	FellBack bool
	Err      error
}

// Config holds watcher parameters.
type Config struct {
	InputDir   string
	OutputDir  string
	TargetType string
	Factor     shrink.Factor
	Quality    int
	Debounce   time.Duration
}

// Watcher converts new or modified images in InputDir into OutputDir.
type Watcher struct {
	cfg       Config
	converter *pipeline.Converter
	fs        *fsnotify.Watcher
	events    chan Event

	mu       sync.Mutex
	debounce map[string]*time.Timer
	wg       sync.WaitGroup
}

// New creates a watcher. Call Run to start it.
func New(cfg Config, conv *pipeline.Converter) (*Watcher, error) {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	in, err := filepath.Abs(cfg.InputDir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", cfg.InputDir, err)
	}
	out, err := filepath.Abs(cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", cfg.OutputDir, err)
	}
	if in == out {
		return nil, fmt.Errorf("output dir must differ from input dir")
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(cfg.InputDir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", cfg.InputDir, err)
	}

	return &Watcher{
		cfg:       cfg,
		converter: conv,
		fs:        fsw,
		events:    make(chan Event, 100),
		debounce:  make(map[string]*time.Timer),
	}, nil
}

// Events delivers one Event per handled file. It is closed when Run
// returns.
func (w *Watcher) Events() <-chan Event { return w.events }

// Run processes filesystem events until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	log.Debug().Str("dir", w.cfg.InputDir).Dur("debounce", w.cfg.Debounce).Msg("watching for images")
	defer func() {
		w.mu.Lock()
		for _, t := range w.debounce {
			if t.Stop() {
				w.wg.Done()
			}
		}
		w.mu.Unlock()
		w.wg.Wait()
		close(w.events)
	}()
	defer w.fs.Close()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if _, ok := format.FromExtension(filepath.Ext(ev.Name)); !ok {
				continue
			}
			if strings.HasPrefix(filepath.Base(ev.Name), ".") {
				continue
			}
			w.schedule(ctx, ev.Name)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("watcher error")
		}
	}
}

func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.debounce[path]; ok && t.Stop() {
		w.wg.Done()
	}
	w.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(w.cfg.Debounce, func() {
		defer w.wg.Done()
		w.forget(path, t)

		ev := w.convert(ctx, path)
		select {
		case w.events <- ev:
		default:
			log.Warn().Str("file", path).Msg("event dropped, nobody is reading")
		}
	})
	w.debounce[path] = t
}

// forget drops the pending timer for path, unless a later write has
// already replaced it.
func (w *Watcher) forget(path string, t *time.Timer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounce[path] == t {
		delete(w.debounce, path)
	}
}

func (w *Watcher) convert(ctx context.Context, path string) Event {
	ev := Event{Source: path}

	data, err := os.ReadFile(path)
	if err != nil {
		ev.Err = fmt.Errorf("read %s: %w", path, err)
		return ev
	}
	src, _ := format.FromExtension(filepath.Ext(path))

	var opts []pipeline.Option
	if w.cfg.Quality > 0 {
		opts = append(opts, pipeline.WithQuality(w.cfg.Quality))
	}
	res, err := w.converter.Convert(ctx, pipeline.Request{
		Input:      acquire.FromBytes(data),
		SourceType: src.ContentType(),
		TargetType: w.cfg.TargetType,
		Factor:     w.cfg.Factor,
	}, opts...)
	if err != nil {
		ev.Err = fmt.Errorf("convert %s: %w", filepath.Base(path), err)
		return ev
	}

	ext := res.Format.Extension()
	if res.FellBack {
		ext = res.SourceFormat.Extension()
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	ev.Output = filepath.Join(w.cfg.OutputDir, base+"."+ext)
	ev.FellBack = res.FellBack

	if err := os.WriteFile(ev.Output, res.Data, 0o644); err != nil {
		ev.Err = fmt.Errorf("write %s: %w", ev.Output, err)
		return ev
	}
	log.Debug().Str("source", filepath.Base(path)).Str("output", ev.Output).
		Int("bytes", len(res.Data)).Bool("fallback", res.FellBack).Msg("wrote")
	return ev
}
