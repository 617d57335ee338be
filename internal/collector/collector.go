// Package collector exports the watcher's state and session activity as
// Prometheus metrics.
package collector

import (
	"context"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/restmode/restmode/internal/notifier"
	"github.com/restmode/restmode/internal/watcher"
)

var (
	stateDesc = prometheus.NewDesc(
		prometheus.BuildFQName("restmode", "watcher", "state"),
		"Watcher state. 1 for the current state, 0 for the others",
		[]string{"state"},
		nil,
	)
	sinceDesc = prometheus.NewDesc(
		prometheus.BuildFQName("restmode", "watcher", "state_since_timestamp_seconds"),
		"Unix time the current state was entered",
		nil,
		nil,
	)
	lastInputDesc = prometheus.NewDesc(
		prometheus.BuildFQName("restmode", "watcher", "last_input_timestamp_seconds"),
		"Unix time of the last user input seen by a poll",
		nil,
		nil,
	)
	updatesDesc = prometheus.NewDesc(
		prometheus.BuildFQName("restmode", "watcher", "updates_total"),
		"Number of published state updates, by state and cause",
		[]string{"state", "cause"},
		nil,
	)
	sessionsDesc = prometheus.NewDesc(
		prometheus.BuildFQName("restmode", "", "sessions_total"),
		"Number of completed overlay sessions, by trigger and end reason",
		[]string{"trigger", "reason"},
		nil,
	)
	eventsDesc = prometheus.NewDesc(
		prometheus.BuildFQName("restmode", "", "events_total"),
		"Number of reported events, by kind",
		[]string{"kind"},
		nil,
	)
)

// UpdateSource delivers watcher updates.
type UpdateSource interface {
	Subscribe() chan watcher.Update
	Unsubscribe(chan watcher.Update)
}

// Collector records watcher updates and reported events and exposes them as
// Prometheus metrics. It doubles as a notification sink so that every event
// sent to the configured notifiers is counted as well.
type Collector struct {
	source UpdateSource
	logger *slog.Logger

	lock       sync.RWMutex
	lastUpdate *watcher.Update
	updates    map[updateKey]int
	sessions   map[sessionKey]int
	events     map[string]int
	durations  prometheus.Histogram
}

type updateKey struct {
	state string
	cause string
}

type sessionKey struct {
	trigger string
	reason  string
}

var (
	_ prometheus.Collector = &Collector{}
	_ notifier.Notifier    = &Collector{}
)

// New returns a Collector consuming updates from source.
func New(source UpdateSource, logger *slog.Logger) *Collector {
	return &Collector{
		source:   source,
		logger:   logger,
		updates:  make(map[updateKey]int),
		sessions: make(map[sessionKey]int),
		events:   make(map[string]int),
		durations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "restmode",
			Name:      "session_duration_seconds",
			Help:      "Duration of completed overlay sessions in seconds",
			Buckets:   []float64{10, 60, 300, 900, 1800, 3600, 7200},
		}),
	}
}

// Run consumes updates until ctx is canceled.
func (c *Collector) Run(ctx context.Context) error {
	c.logger.Debug("started")
	defer c.logger.Debug("stopped")

	ch := c.source.Subscribe()
	defer c.source.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-ch:
			c.process(update)
		}
	}
}

func (c *Collector) process(update watcher.Update) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.lastUpdate = &update
	c.updates[updateKey{state: update.State.String(), cause: string(update.Cause)}]++
	if update.Ended != nil {
		c.sessions[sessionKey{trigger: string(update.Ended.Trigger), reason: string(update.Ended.Reason)}]++
		c.durations.Observe(update.Ended.Duration().Seconds())
	}
}

// Notify counts the event. It never blocks.
func (c *Collector) Notify(event notifier.Event) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.events[event.Kind.String()]++
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- stateDesc
	ch <- sinceDesc
	ch <- lastInputDesc
	ch <- updatesDesc
	ch <- sessionsDesc
	ch <- eventsDesc
	c.durations.Describe(ch)
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	if c.lastUpdate != nil {
		for _, state := range []watcher.State{watcher.StateIdle, watcher.StateWaiting, watcher.StateActive} {
			var value float64
			if state == c.lastUpdate.State {
				value = 1
			}
			ch <- prometheus.MustNewConstMetric(stateDesc, prometheus.GaugeValue, value, state.String())
		}
		ch <- prometheus.MustNewConstMetric(sinceDesc, prometheus.GaugeValue, float64(c.lastUpdate.Since.Unix()))
		ch <- prometheus.MustNewConstMetric(lastInputDesc, prometheus.GaugeValue, float64(c.lastUpdate.LastInput.Unix()))
	}
	for key, count := range c.updates {
		ch <- prometheus.MustNewConstMetric(updatesDesc, prometheus.CounterValue, float64(count), key.state, key.cause)
	}
	for key, count := range c.sessions {
		ch <- prometheus.MustNewConstMetric(sessionsDesc, prometheus.CounterValue, float64(count), key.trigger, key.reason)
	}
	for kind, count := range c.events {
		ch <- prometheus.MustNewConstMetric(eventsDesc, prometheus.CounterValue, float64(count), kind)
	}
	c.durations.Collect(ch)
}
