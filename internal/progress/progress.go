// Package progress defines the observer a conversion reports its
// milestones to.
package progress

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// Milestone is one reported step of a conversion.
type Milestone struct {
	Percent int    `json:"percent"`
	Message string `json:"message"`
}

// Conversion milestones, reported in this order.
var (
	Starting   = Milestone{10, "starting"}
	Loading    = Milestone{35, "loading"}
	Processing = Milestone{50, "processing"}
	Converting = Milestone{70, "converting"}
	Complete   = Milestone{100, "complete"}
)

// Milestones returns all milestones in reporting order.
func Milestones() []Milestone {
	return []Milestone{Starting, Loading, Processing, Converting, Complete}
}

// Reporter receives milestones. Its errors never affect the conversion.
type Reporter interface {
	Report(percent int, message string) error
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(percent int, message string) error

func (f ReporterFunc) Report(percent int, message string) error { return f(percent, message) }

// Notify sends m to r. A nil reporter is a no-op; errors and panics from
// r are logged and dropped.
func Notify(r Reporter, m Milestone) {
	if r == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			log.Debug().Str("panic", fmt.Sprint(p)).Int("percent", m.Percent).Msg("progress reporter panicked")
		}
	}()
	if err := r.Report(m.Percent, m.Message); err != nil {
		log.Debug().Err(err).Int("percent", m.Percent).Msg("progress reporter failed")
	}
}
