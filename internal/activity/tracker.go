// Package activity watches global user input and records whether any was
// seen since the last poll.
package activity

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/restmode/restmode/internal/notifier"
	"github.com/restmode/restmode/internal/platform"
)

// Tracker samples the platform's input idle time and collapses all input
// seen between polls into a single pending flag.
//
// If sampling fails (no display server, missing extension), the tracker
// reports the failure once and runs degraded: the flag is never set and the
// daemon treats the user as always idle-eligible.
type Tracker struct {
	sampler  platform.ActivitySampler
	interval time.Duration
	notifier notifier.Notifier
	logger   *slog.Logger

	pending  atomic.Bool
	degraded atomic.Bool
	notified atomic.Bool
}

// New creates a Tracker sampling the idle time every interval. The interval
// sets input detection latency; it is independent of the poll interval.
func New(sampler platform.ActivitySampler, interval time.Duration, n notifier.Notifier, logger *slog.Logger) *Tracker {
	return &Tracker{
		sampler:  sampler,
		interval: interval,
		notifier: n,
		logger:   logger,
	}
}

// Run samples the idle time until ctx is canceled. An idle time lower than
// the previous sample means input arrived in between, which sets the
// pending flag.
func (t *Tracker) Run(ctx context.Context) error {
	t.logger.Debug("tracker started")
	defer t.logger.Debug("tracker stopped")

	last, err := t.sampler.IdleTime()
	if err != nil {
		t.degrade(err)
	}

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			idle, err := t.sampler.IdleTime()
			if err != nil {
				t.degrade(err)
				continue
			}
			t.degraded.Store(false)
			if idle < last {
				t.pending.Store(true)
			}
			last = idle
		}
	}
}

// Consume reports whether any input was seen since the previous call,
// clearing the flag. A burst of input between polls collapses to one true.
func (t *Tracker) Consume() bool {
	return t.pending.Swap(false)
}

// Degraded reports whether the last sample failed.
func (t *Tracker) Degraded() bool {
	return t.degraded.Load()
}

func (t *Tracker) degrade(err error) {
	t.degraded.Store(true)
	if t.notified.Swap(true) {
		t.logger.Debug("input sampling failed", "err", err)
		return
	}
	t.logger.Warn("input tracking unavailable, treating the user as always idle", "err", err)
	t.notifier.Notify(notifier.Event{
		Kind:    notifier.Error,
		Message: fmt.Sprintf("input tracking unavailable: %v", err),
		Time:    time.Now(),
	})
}
