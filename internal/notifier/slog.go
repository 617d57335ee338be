package notifier

import (
	"log/slog"
)

// SLogNotifier reports events to the daemon's log.
type SLogNotifier struct {
	Logger *slog.Logger
}

var _ Notifier = SLogNotifier{}

func (s SLogNotifier) Notify(e Event) {
	if e.Kind == Error {
		s.Logger.Error(e.String())
		return
	}
	s.Logger.Info(e.String(), "session", e.SessionID, "reason", e.Reason)
}
