// Package notifier publishes overlay session events (activated, deactivated,
// error) to the configured sinks. Implementations must not block: they are
// called from the daemon's event loops.
package notifier

import (
	"fmt"
	"time"
)

// Kind is the type of event being reported.
type Kind int

const (
	Activated Kind = iota
	Deactivated
	Error
)

func (k Kind) String() string {
	switch k {
	case Activated:
		return "activated"
	case Deactivated:
		return "deactivated"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText makes Kind marshal as its name, e.g. in JSON payloads.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a Kind from its name.
func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "activated":
		*k = Activated
	case "deactivated":
		*k = Deactivated
	case "error":
		*k = Error
	default:
		return fmt.Errorf("invalid event kind: %q", string(text))
	}
	return nil
}

// Event is one reportable occurrence.
type Event struct {
	Kind      Kind      `json:"event"`
	SessionID string    `json:"session_id,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Message   string    `json:"message,omitempty"`
	Time      time.Time `json:"time"`
}

func (e Event) String() string {
	switch e.Kind {
	case Activated:
		return "overlay activated"
	case Deactivated:
		return "overlay deactivated"
	case Error:
		return "error: " + e.Message
	default:
		return e.Message
	}
}

// Notifier is a sink for events.
type Notifier interface {
	Notify(Event)
}

// Notifiers fans an event out to multiple sinks.
type Notifiers []Notifier

var _ Notifier = Notifiers{}

func (n Notifiers) Notify(e Event) {
	for _, l := range n {
		l.Notify(e)
	}
}
