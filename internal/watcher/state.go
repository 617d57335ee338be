package watcher

import (
	"time"

	"github.com/restmode/restmode/internal/overlay"
)

// State is the machine's position: Idle while the user is active, Waiting
// while idle time accumulates or a suppressing condition holds, Active while
// the overlay is up.
type State int

const (
	StateIdle State = iota
	StateWaiting
	StateActive
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaiting:
		return "waiting"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON and YAML output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Cause identifies what produced an Update.
type Cause string

const (
	CauseStartup   Cause = "startup"   // watcher started
	CauseActivity  Cause = "activity"  // input since the previous poll
	CauseVideo     Cause = "video"     // fullscreen video suppressed activation
	CauseBusy      Cause = "busy"      // a blocking window suppressed activation
	CauseWaiting   Cause = "waiting"   // idle, delay not yet reached
	CauseTimer     Cause = "timer"     // idle delay reached, session started
	CauseManual    Cause = "manual"    // toggle hotkey
	CauseEmergency Cause = "emergency" // emergency-exit hotkey
	CauseInput     Cause = "input"     // input on a surface ended the session
	CauseError     Cause = "error"     // activation failed
	CauseRefresh   Cause = "refresh"   // republished on request
)

// Update is published on every poll and every session transition.
type Update struct {
	State     State
	Cause     Cause
	Since     time.Time // when the current state was entered
	LastInput time.Time
	Session   overlay.Session // zero unless State is Active
	Ended     *overlay.Ended  // set on the update that closes a session
	Time      time.Time
}

func triggerCause(t overlay.Trigger) Cause {
	if t == overlay.TriggerManual {
		return CauseManual
	}
	return CauseTimer
}

func endCause(r overlay.EndReason) Cause {
	switch r {
	case overlay.EndReasonManual:
		return CauseManual
	case overlay.EndReasonEmergency:
		return CauseEmergency
	default:
		return CauseInput
	}
}
