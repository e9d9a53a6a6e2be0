// Package preset holds named conversion settings selectable with
// --preset.
package preset

import (
	"fmt"
	"os"
	"sort"

	"github.com/AnyUserName/pixconv/internal/format"
	"github.com/AnyUserName/pixconv/internal/shrink"
	"gopkg.in/yaml.v3"
)

// Preset bundles a target type with a shrink factor and quality.
type Preset struct {
	Name    string   `yaml:"-"`
	Target  string   `yaml:"target"`  // MIME type
	Factor  *float64 `yaml:"factor"`  // absent: default factor, 1.0: no shrink
	Quality int      `yaml:"quality"` // 0: encoder default
}

// ShrinkFactor converts the preset factor.
func (p Preset) ShrinkFactor() shrink.Factor {
	return shrink.ParseFactor(p.Factor)
}

func f64(v float64) *float64 { return &v }

// Built-in presets.
var builtin = map[string]Preset{
	"web": {
		Name:    "web",
		Target:  "image/webp",
		Quality: 82,
	},
	"web-small": {
		Name:    "web-small",
		Target:  "image/avif",
		Factor:  f64(0.9),
		Quality: 55,
	},
	"photo": {
		Name:    "photo",
		Target:  "image/jpeg",
		Factor:  f64(0.5),
		Quality: 85,
	},
	"lossless": {
		Name:   "lossless",
		Target: "image/png",
		Factor: f64(1),
	},
	"favicon": {
		Name:   "favicon",
		Target: "image/x-icon",
		Factor: f64(1),
	},
}

// Set is a collection of presets keyed by name.
type Set struct {
	presets map[string]Preset
}

// Builtin returns a set holding only the built-in presets.
func Builtin() *Set {
	s := &Set{presets: make(map[string]Preset, len(builtin))}
	for k, v := range builtin {
		s.presets[k] = v
	}
	return s
}

// LoadFile reads a YAML map of name -> preset and merges it over s.
// File entries replace built-ins of the same name.
func (s *Set) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read presets: %w", err)
	}

	var file map[string]Preset
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse presets: %w", err)
	}
	for name, p := range file {
		if err := p.validate(); err != nil {
			return fmt.Errorf("preset %q: %w", name, err)
		}
		p.Name = name
		s.presets[name] = p
	}
	return nil
}

func (p Preset) validate() error {
	if _, ok := format.Resolve(p.Target); !ok {
		return fmt.Errorf("unknown target type %q", p.Target)
	}
	if p.Factor != nil && (*p.Factor < 0 || *p.Factor > 1) {
		return fmt.Errorf("factor %.2f outside [0, 1]", *p.Factor)
	}
	if p.Quality < 0 || p.Quality > 100 {
		return fmt.Errorf("quality %d outside [0, 100]", p.Quality)
	}
	return nil
}

// Get returns the named preset.
func (s *Set) Get(name string) (Preset, bool) {
	p, ok := s.presets[name]
	return p, ok
}

// Names returns all preset names, sorted.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.presets))
	for k := range s.presets {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
