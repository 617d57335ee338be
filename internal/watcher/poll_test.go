package watcher

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/restmode/restmode/internal/configuration"
	"github.com/restmode/restmode/internal/notifier"
	"github.com/restmode/restmode/internal/overlay"
)

func pollConfig() configuration.Configuration {
	return configuration.Configuration{
		Activation: configuration.ActivationConfiguration{
			Delay:        5 * time.Minute,
			PollInterval: 30 * time.Second,
			Auto:         true,
		},
	}
}

func TestWatcher_Poll(t *testing.T) {
	tests := []struct {
		name  string
		setup func(h *pollHarness)
		want  State
	}{
		{
			name:  "input since the last poll",
			setup: func(h *pollHarness) { h.tracker.active = true },
			want:  StateIdle,
		},
		{
			name:  "video playing",
			setup: func(h *pollHarness) { h.inspector.video = true },
			want:  StateWaiting,
		},
		{
			name:  "blocking foreground window",
			setup: func(h *pollHarness) { h.inspector.busy = true },
			want:  StateWaiting,
		},
		{
			name:  "idle below the delay",
			setup: func(_ *pollHarness) {},
			want:  StateWaiting,
		},
		{
			name:  "idle past the delay",
			setup: func(h *pollHarness) { h.watcher.lastInput = h.now.Add(-time.Hour) },
			want:  StateActive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newPollHarness(t, pollConfig())
			tt.setup(h)

			h.poll()

			assert.Equal(t, tt.want, h.watcher.state)
			assert.Equal(t, tt.want == StateActive, h.overlay.live)
		})
	}
}

func TestWatcher_Poll_InputWinsOverElapsedTime(t *testing.T) {
	h := newPollHarness(t, pollConfig())
	h.watcher.lastInput = h.now.Add(-2 * time.Hour)
	h.tracker.active = true

	h.poll()

	assert.Equal(t, StateIdle, h.watcher.state)
	assert.False(t, h.overlay.live)
	assert.Equal(t, h.now, h.watcher.lastInput)
}

func TestWatcher_Poll_VideoSuppressesActivation(t *testing.T) {
	h := newPollHarness(t, pollConfig())
	h.watcher.lastInput = h.now.Add(-2 * time.Hour)
	h.inspector.video = true

	h.poll()
	assert.Equal(t, StateWaiting, h.watcher.state)
	assert.False(t, h.overlay.live)

	// suppression does not restart the idle clock
	h.inspector.video = false
	h.poll()
	assert.Equal(t, StateActive, h.watcher.state)
	assert.True(t, h.overlay.live)
}

func TestWatcher_Poll_ActivatesAfterDelay(t *testing.T) {
	// 5m delay at a 30s interval: the tenth poll is the first with the
	// delay elapsed
	h := newPollHarness(t, pollConfig())

	for range 9 {
		h.poll()
		require.Equal(t, StateWaiting, h.watcher.state)
	}
	require.False(t, h.overlay.live)

	h.poll()
	assert.Equal(t, StateActive, h.watcher.state)
	assert.True(t, h.overlay.live)
	assert.Equal(t, overlay.TriggerTimer, h.overlay.trigger)
}

func TestWatcher_Poll_ActivationFailure(t *testing.T) {
	h := newPollHarness(t, pollConfig())
	h.watcher.lastInput = h.now.Add(-time.Hour)
	h.overlay.fail = true

	h.poll()

	assert.Equal(t, StateWaiting, h.watcher.state)
	require.Len(t, h.events.recorded, 1)
	assert.Equal(t, notifier.Error, h.events.recorded[0].Kind)

	// the next poll retries
	h.overlay.fail = false
	h.poll()
	assert.Equal(t, StateActive, h.watcher.state)
}

func TestWatcher_Poll_SkipsWhileActive(t *testing.T) {
	h := newPollHarness(t, pollConfig())
	h.watcher.lastInput = h.now.Add(-time.Hour)
	h.poll()
	require.Equal(t, StateActive, h.watcher.state)

	// a tick buffered from before the activation must not consume input
	polls := h.tracker.polls
	h.tracker.active = true
	h.poll()
	assert.Equal(t, polls, h.tracker.polls)
	assert.Equal(t, StateActive, h.watcher.state)
}

func TestWatcher_ApplyConfig_ReArmsScreenOff(t *testing.T) {
	cfg := pollConfig()
	cfg.System.ScreenOffDelay = time.Hour

	h := newPollHarness(t, cfg)
	h.watcher.lastInput = h.now.Add(-time.Hour)
	h.poll()
	require.Equal(t, StateActive, h.watcher.state)
	require.NotNil(t, h.watcher.screenOff)
	armed := h.watcher.screenOff

	// a new delay replaces the armed timer
	cfg.System.ScreenOffDelay = 30 * time.Minute
	h.watcher.applyConfig(context.Background(), cfg)
	require.NotNil(t, h.watcher.screenOff)
	assert.NotSame(t, armed, h.watcher.screenOff)
	assert.False(t, armed.Due())

	// a zero delay disarms it
	cfg.System.ScreenOffDelay = 0
	h.watcher.applyConfig(context.Background(), cfg)
	assert.Nil(t, h.watcher.screenOff)
}

// pollHarness drives the state machine one poll at a time with a manual
// clock, bypassing Run's ticker.
type pollHarness struct {
	watcher   *Watcher
	tracker   *stubTracker
	inspector *stubInspector
	overlay   *stubOverlay
	events    *stubNotifier
	now       time.Time
}

func newPollHarness(t *testing.T, cfg configuration.Configuration) *pollHarness {
	t.Helper()

	h := pollHarness{
		tracker:   &stubTracker{},
		inspector: &stubInspector{},
		overlay:   &stubOverlay{},
		events:    &stubNotifier{},
		now:       time.Date(2024, time.March, 9, 21, 0, 0, 0, time.UTC),
	}
	h.watcher = New(cfg, h.tracker, h.inspector, h.overlay, nil, nil, h.events, slog.New(slog.DiscardHandler))
	h.watcher.now = func() time.Time { return h.now }
	h.watcher.since = h.now
	h.watcher.lastInput = h.now
	h.watcher.ticker = time.NewTicker(time.Hour)
	h.watcher.polling = true
	t.Cleanup(h.watcher.ticker.Stop)
	t.Cleanup(h.watcher.disarmScreenOff)
	return &h
}

// poll advances the clock by one poll interval and runs one cycle.
func (h *pollHarness) poll() {
	h.now = h.now.Add(h.watcher.cfg.Activation.PollInterval)
	h.watcher.poll(context.Background())
}

type stubTracker struct {
	active bool
	polls  int
}

func (s *stubTracker) Consume() bool {
	s.polls++
	seen := s.active
	s.active = false
	return seen
}

type stubInspector struct {
	video bool
	busy  bool
}

func (s *stubInspector) VideoPlaying() bool   { return s.video }
func (s *stubInspector) ForegroundBusy() bool { return s.busy }

type stubOverlay struct {
	fail    bool
	live    bool
	trigger overlay.Trigger
}

func (s *stubOverlay) Activate(_ configuration.Configuration, trigger overlay.Trigger) (overlay.Session, error) {
	if s.fail {
		return overlay.Session{}, errors.New("no surfaces")
	}
	s.live = true
	s.trigger = trigger
	return overlay.Session{ID: "session-1", Trigger: trigger, Surfaces: 1}, nil
}

func (s *stubOverlay) Deactivate(overlay.EndReason) { s.live = false }
func (s *stubOverlay) Ended() <-chan overlay.Ended  { return nil }

type stubNotifier struct {
	recorded []notifier.Event
}

func (s *stubNotifier) Notify(event notifier.Event) { s.recorded = append(s.recorded, event) }
