// Package watcher implements the inactivity state machine. It polls the
// activity tracker and the foreground inspector, raises the overlay once the
// configured idle delay has passed, and retracts it on input or on request.
package watcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/restmode/restmode/internal/configuration"
	"github.com/restmode/restmode/internal/notifier"
	"github.com/restmode/restmode/internal/overlay"
	"github.com/restmode/restmode/internal/platform"
	"github.com/restmode/restmode/pkg/pubsub"
	"github.com/restmode/restmode/pkg/scheduler"
)

// Tracker reports whether input occurred since the last call.
type Tracker interface {
	Consume() bool
}

// Inspector reports the foreground conditions that suppress activation.
type Inspector interface {
	VideoPlaying() bool
	ForegroundBusy() bool
}

// Overlay is the session lifecycle the watcher drives.
type Overlay interface {
	Activate(configuration.Configuration, overlay.Trigger) (overlay.Session, error)
	Deactivate(overlay.EndReason)
	Ended() <-chan overlay.Ended
}

// ConfigSource delivers configuration snapshots.
type ConfigSource interface {
	Subscribe() chan configuration.Configuration
	Unsubscribe(chan configuration.Configuration)
}

type request int

const (
	requestToggle request = iota
	requestEmergency
	requestRefresh
)

// Watcher is the inactivity state machine. The Run goroutine owns all state;
// hotkey callbacks and other goroutines only enqueue requests, so a request
// arriving during a transition is queued rather than dropped or applied
// twice.
type Watcher struct {
	tracker   Tracker
	inspector Inspector
	overlay   Overlay
	power     platform.PowerController
	configs   ConfigSource
	notifier  notifier.Notifier
	logger    *slog.Logger
	now       func() time.Time
	requests  chan request

	*pubsub.Publisher[Update]

	// owned by the Run goroutine
	cfg       configuration.Configuration
	state     State
	since     time.Time
	lastInput time.Time
	session   overlay.Session
	screenOff *scheduler.Job
	ticker    *time.Ticker
	polling   bool
}

// New returns a Watcher starting from the given configuration snapshot.
// Later snapshots arrive through configs and take effect on the next poll,
// except the poll interval, which re-arms the ticker immediately.
func New(cfg configuration.Configuration, tracker Tracker, inspector Inspector, o Overlay, power platform.PowerController, configs ConfigSource, n notifier.Notifier, logger *slog.Logger) *Watcher {
	return &Watcher{
		tracker:   tracker,
		inspector: inspector,
		overlay:   o,
		power:     power,
		configs:   configs,
		notifier:  n,
		logger:    logger,
		now:       time.Now,
		requests:  make(chan request, 16),
		Publisher: pubsub.New[Update](logger.With(slog.String("component", "updates"))),
		cfg:       cfg,
	}
}

// Toggle queues a manual toggle: it starts a session when none is live and
// ends the live one.
func (w *Watcher) Toggle() {
	w.requests <- requestToggle
}

// Emergency queues a forced deactivation.
func (w *Watcher) Emergency() {
	w.requests <- requestEmergency
}

// Refresh queues a republish of the current state, without polling.
func (w *Watcher) Refresh() {
	w.requests <- requestRefresh
}

// Run drives the state machine until ctx is canceled, then tears down any
// live session.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Debug("started")
	defer w.logger.Debug("stopped")

	configCh := w.configs.Subscribe()
	defer w.configs.Unsubscribe(configCh)

	now := w.now()
	w.state = StateIdle
	w.since = now
	w.lastInput = now

	w.ticker = time.NewTicker(w.cfg.Activation.PollInterval)
	defer w.ticker.Stop()
	w.polling = true
	if !w.cfg.Activation.Auto {
		w.stopPolling()
	}

	w.publish(CauseStartup, now, nil)

	for {
		select {
		case <-ctx.Done():
			w.shutdown()
			return nil
		case <-w.ticker.C:
			w.poll(ctx)
		case req := <-w.requests:
			w.handleRequest(ctx, req)
		case cfg := <-configCh:
			w.applyConfig(ctx, cfg)
		case ended := <-w.overlay.Ended():
			w.sessionEnded(ended)
		}
	}
}

// poll is one cycle of the state machine. Input wins over everything; video
// and blocking foreground windows suppress activation regardless of elapsed
// time and leave the last-input timestamp alone.
func (w *Watcher) poll(ctx context.Context) {
	if w.state == StateActive {
		// a tick can still be buffered from just before activation
		return
	}

	now := w.now()
	switch {
	case w.tracker.Consume():
		w.lastInput = now
		w.setState(StateIdle, CauseActivity, now)
	case w.inspector.VideoPlaying():
		w.setState(StateWaiting, CauseVideo, now)
	case w.inspector.ForegroundBusy():
		w.setState(StateWaiting, CauseBusy, now)
	case now.Sub(w.lastInput) >= w.cfg.Activation.Delay:
		w.activate(ctx, overlay.TriggerTimer, now)
	default:
		w.setState(StateWaiting, CauseWaiting, now)
	}
}

func (w *Watcher) activate(ctx context.Context, trigger overlay.Trigger, now time.Time) {
	if w.state == StateActive {
		return
	}

	session, err := w.overlay.Activate(w.cfg, trigger)
	if err != nil {
		w.logger.Error("activation failed", slog.Any("err", err))
		w.notifier.Notify(notifier.Event{
			Kind:    notifier.Error,
			Message: "failed to activate the overlay",
			Reason:  err.Error(),
			Time:    now,
		})
		w.setState(StateWaiting, CauseError, now)
		return
	}

	w.session = session
	w.stopPolling()
	if delay := w.cfg.System.ScreenOffDelay; delay > 0 {
		w.screenOff = scheduler.Schedule(ctx, &powerOffTask{power: w.power, logger: w.logger}, delay)
		w.logger.Debug("screen-off timer armed", slog.Duration("delay", delay))
	}
	w.setState(StateActive, triggerCause(trigger), now)
	w.notifier.Notify(notifier.Event{
		Kind:      notifier.Activated,
		SessionID: session.ID,
		Reason:    string(trigger),
		Time:      now,
	})
}

func (w *Watcher) sessionEnded(ended overlay.Ended) {
	w.disarmScreenOff()
	w.session = overlay.Session{}

	if w.state != StateWaiting {
		w.logger.Info("state changed",
			slog.String("from", w.state.String()), slog.String("to", StateWaiting.String()),
			slog.String("cause", string(endCause(ended.Reason))))
		w.state = StateWaiting
		w.since = ended.EndedAt
	}
	if w.cfg.Activation.Auto {
		w.startPolling()
	}

	w.publish(endCause(ended.Reason), ended.EndedAt, &ended)
	w.notifier.Notify(notifier.Event{
		Kind:      notifier.Deactivated,
		SessionID: ended.ID,
		Reason:    string(ended.Reason),
		Time:      ended.EndedAt,
	})
}

func (w *Watcher) handleRequest(ctx context.Context, req request) {
	switch req {
	case requestToggle:
		if w.state == StateActive {
			w.overlay.Deactivate(overlay.EndReasonManual)
		} else {
			w.activate(ctx, overlay.TriggerManual, w.now())
		}
	case requestEmergency:
		w.overlay.Deactivate(overlay.EndReasonEmergency)
	case requestRefresh:
		w.publish(CauseRefresh, w.now(), nil)
	}
}

// applyConfig swaps in a new snapshot between polls. The poll interval
// re-arms the ticker at once; an armed screen-off timer follows the new
// delay, matching how a live config change behaved in the original tool.
func (w *Watcher) applyConfig(ctx context.Context, cfg configuration.Configuration) {
	old := w.cfg
	w.cfg = cfg
	w.logger.Info("configuration applied")

	if w.screenOff != nil && w.screenOff.Due() {
		w.disarmScreenOff()
		if delay := cfg.System.ScreenOffDelay; delay > 0 {
			w.screenOff = scheduler.Schedule(ctx, &powerOffTask{power: w.power, logger: w.logger}, delay)
			w.logger.Debug("screen-off timer re-armed", slog.Duration("delay", delay))
		}
	}

	if w.state == StateActive {
		// polling stays stopped; the session end applies the rest
		return
	}

	if w.polling && cfg.Activation.PollInterval != old.Activation.PollInterval {
		w.ticker.Reset(cfg.Activation.PollInterval)
	}
	switch {
	case cfg.Activation.Auto && !w.polling:
		w.startPolling()
	case !cfg.Activation.Auto && w.polling:
		w.stopPolling()
	}
}

// shutdown tears the machine down: polling stopped, any session destroyed,
// the screen-off timer disarmed. Safe to run whatever has or hasn't started.
func (w *Watcher) shutdown() {
	w.stopPolling()
	w.overlay.Deactivate(overlay.EndReasonShutdown)
	select {
	case ended := <-w.overlay.Ended():
		w.notifier.Notify(notifier.Event{
			Kind:      notifier.Deactivated,
			SessionID: ended.ID,
			Reason:    string(ended.Reason),
			Time:      ended.EndedAt,
		})
	default:
	}
	w.disarmScreenOff()
}

func (w *Watcher) setState(state State, cause Cause, now time.Time) {
	if w.state != state {
		w.logger.Info("state changed",
			slog.String("from", w.state.String()), slog.String("to", state.String()),
			slog.String("cause", string(cause)))
		w.state = state
		w.since = now
	}
	w.publish(cause, now, nil)
}

func (w *Watcher) publish(cause Cause, now time.Time, ended *overlay.Ended) {
	w.Publisher.Publish(Update{
		State:     w.state,
		Cause:     cause,
		Since:     w.since,
		LastInput: w.lastInput,
		Session:   w.session,
		Ended:     ended,
		Time:      now,
	})
}

func (w *Watcher) startPolling() {
	if !w.polling {
		w.ticker.Reset(w.cfg.Activation.PollInterval)
		w.polling = true
	}
}

func (w *Watcher) stopPolling() {
	if w.polling {
		w.ticker.Stop()
		w.polling = false
	}
}

func (w *Watcher) disarmScreenOff() {
	if w.screenOff != nil {
		w.screenOff.Cancel()
		w.screenOff = nil
		w.logger.Debug("screen-off timer disarmed")
	}
}

// powerOffTask turns the displays off when the screen-off timer fires.
// Failure is logged only: by that point the user is long gone and the
// overlay will be dismissed before anyone reads a dialog.
type powerOffTask struct {
	power  platform.PowerController
	logger *slog.Logger
}

func (t *powerOffTask) Run(context.Context) error {
	t.logger.Info("turning displays off")
	if err := t.power.DisplaysOff(); err != nil {
		t.logger.Error("failed to turn displays off", slog.Any("err", err))
		return err
	}
	return nil
}
