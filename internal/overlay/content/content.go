// Package content composes the text lines drawn on overlay surfaces. It is
// pure computation over a config snapshot and the cached weather and to-do
// data; all I/O happens in the providers.
package content

import (
	"time"

	"github.com/restmode/restmode/internal/configuration"
	"github.com/restmode/restmode/internal/todo"
	"github.com/restmode/restmode/internal/weather"
)

// WeatherSource returns the cached weather snapshot. ok is false while no
// valid snapshot exists, which omits the weather line.
type WeatherSource interface {
	Info() (weather.Info, bool)
}

// TodoSource returns the cached to-do list.
type TodoSource interface {
	List() todo.List
}

// Composer renders the overlay lines for one redraw.
type Composer struct {
	Clock   func() time.Time
	Weather WeatherSource
	Todo    TodoSource
}

// Lines returns the clock and date lines, followed by the weather line and
// the to-do block where available.
func (c Composer) Lines(cfg configuration.Configuration) []string {
	now := time.Now()
	if c.Clock != nil {
		now = c.Clock()
	}

	lines := []string{Clock(now, cfg.Display), Date(now, cfg.Display)}
	if c.Weather != nil {
		if info, ok := c.Weather.Info(); ok {
			lines = append(lines, info.String())
		}
	}
	if c.Todo != nil {
		if list := c.Todo.List(); len(list.Items) > 0 {
			items := list.Items
			if max := cfg.Todo.MaxItems; max > 0 && len(items) > max {
				items = items[:max]
			}
			lines = append(lines, "", list.Title)
			for _, item := range items {
				lines = append(lines, "• "+item)
			}
		}
	}
	return lines
}

// Clock formats the time line, zero-padded like the clock widgets it
// replaces ("03:04 PM", "15:04:05").
func Clock(now time.Time, cfg configuration.DisplayConfiguration) string {
	layout := "15:04"
	if cfg.TimeFormat == "12h" {
		layout = "03:04"
	}
	if cfg.ShowSeconds {
		layout += ":05"
	}
	if cfg.TimeFormat == "12h" {
		layout += " PM"
	}
	return now.Format(layout)
}

// Date formats the date line.
func Date(now time.Time, cfg configuration.DisplayConfiguration) string {
	switch cfg.DateFormat {
	case "short":
		return now.Format("Jan 02, 2006")
	case "iso":
		return now.Format("2006-01-02")
	default:
		return now.Format("Monday, January 02, 2006")
	}
}
