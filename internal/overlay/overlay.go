// Package overlay manages full-screen overlay sessions: one surface per
// display, a shared redraw ticker and teardown on the first input event.
package overlay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/restmode/restmode/internal/configuration"
	"github.com/restmode/restmode/internal/notifier"
	"github.com/restmode/restmode/internal/overlay/content"
	"github.com/restmode/restmode/internal/platform"
)

// Trigger identifies what started a session.
type Trigger string

const (
	TriggerTimer  Trigger = "timer"
	TriggerManual Trigger = "manual"
)

// EndReason identifies what ended a session.
type EndReason string

const (
	EndReasonInput     EndReason = "input"
	EndReasonManual    EndReason = "manual"
	EndReasonEmergency EndReason = "emergency"
	EndReasonShutdown  EndReason = "shutdown"
)

// Session describes one activation.
type Session struct {
	ID       string
	Trigger  Trigger
	Started  time.Time
	Surfaces int
}

// Ended reports a finished session.
type Ended struct {
	Session
	Reason  EndReason
	EndedAt time.Time
}

// Duration returns how long the session lasted.
func (e Ended) Duration() time.Duration {
	return e.EndedAt.Sub(e.Started)
}

// Manager owns at most one session at a time. Activate and Deactivate are
// idempotent and safe to call from any goroutine; input callbacks arrive on
// the platform's event loop.
type Manager struct {
	displays platform.DisplayLister
	surfaces platform.SurfaceFactory
	composer content.Composer
	notifier notifier.Notifier
	logger   *slog.Logger
	ended    chan Ended

	mu      sync.Mutex
	session *activeSession
}

type activeSession struct {
	info     Session
	cfg      configuration.Configuration
	surfaces []platform.Surface
	cancel   context.CancelFunc
}

// New returns a Manager drawing sessions on the given factory's surfaces.
func New(displays platform.DisplayLister, surfaces platform.SurfaceFactory, composer content.Composer, n notifier.Notifier, logger *slog.Logger) *Manager {
	return &Manager{
		displays: displays,
		surfaces: surfaces,
		composer: composer,
		notifier: n,
		logger:   logger,
		// one session ends before the next can start, so one slot never
		// blocks the sender.
		ended: make(chan Ended, 1),
	}
}

// Ended emits one event per finished session, carrying the end reason.
func (m *Manager) Ended() <-chan Ended {
	return m.ended
}

// Active reports whether a session is live.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session != nil
}

// Activate enumerates the displays and covers each with a surface. Displays
// are enumerated fresh on every call, so plugging or unplugging one between
// sessions needs no special handling. A display that fails to get a surface
// is skipped; without at least one surface, activation fails. Calling
// Activate with a live session returns that session.
func (m *Manager) Activate(cfg configuration.Configuration, trigger Trigger) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		m.logger.Debug("session already active", slog.String("id", m.session.info.ID))
		return m.session.info, nil
	}

	displays, err := m.displays.Displays()
	if err != nil {
		return Session{}, errors.Wrap(err, "enumerate displays")
	}

	surfaces := make([]platform.Surface, 0, len(displays))
	for _, display := range displays {
		surface, err := m.surfaces.CreateSurface(display, func() { m.Deactivate(EndReasonInput) })
		if err != nil {
			m.logger.Warn("no surface on display", slog.Int("display", display.Index), slog.Any("err", err))
			m.notifier.Notify(notifier.Event{
				Kind:    notifier.Error,
				Message: "failed to create an overlay surface",
				Reason:  err.Error(),
				Time:    time.Now(),
			})
			continue
		}
		surfaces = append(surfaces, surface)
	}
	if len(surfaces) == 0 {
		return Session{}, errors.New("no overlay surface could be created")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := activeSession{
		info: Session{
			ID:       uuid.NewString(),
			Trigger:  trigger,
			Started:  time.Now(),
			Surfaces: len(surfaces),
		},
		cfg:      cfg,
		surfaces: surfaces,
		cancel:   cancel,
	}
	m.session = &s

	m.paint(&s)
	go m.redraw(ctx, &s)

	m.logger.Info("session started",
		slog.String("id", s.info.ID),
		slog.String("trigger", string(trigger)),
		slog.Int("surfaces", len(surfaces)),
	)
	return s.info, nil
}

// Deactivate tears down the live session, if any, and emits the end event.
func (m *Manager) Deactivate(reason EndReason) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.session
	if s == nil {
		return
	}
	m.session = nil

	s.cancel()
	for _, surface := range s.surfaces {
		if err := surface.Close(); err != nil {
			m.logger.Warn("failed to close surface", slog.Any("err", err))
		}
	}

	ended := Ended{Session: s.info, Reason: reason, EndedAt: time.Now()}
	m.ended <- ended

	m.logger.Info("session ended",
		slog.String("id", s.info.ID),
		slog.String("reason", string(reason)),
		slog.Duration("duration", ended.Duration()),
	)
}

// redraw repaints all surfaces until the session ends: every second, or
// every five in low-power mode.
func (m *Manager) redraw(ctx context.Context, s *activeSession) {
	interval := time.Second
	if s.cfg.System.LowPower {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.paint(s)
		}
	}
}

func (m *Manager) paint(s *activeSession) {
	lines := m.composer.Lines(s.cfg)
	for _, surface := range s.surfaces {
		if err := surface.Draw(lines); err != nil {
			// racing a teardown is harmless, the surface is already gone
			m.logger.Debug("draw failed", slog.Any("err", err))
		}
	}
}
