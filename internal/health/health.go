// Package health exposes the watcher's last known state over HTTP.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/restmode/restmode/internal/watcher"
)

// Monitor is the part of the watcher the health endpoint consumes.
type Monitor interface {
	Subscribe() chan watcher.Update
	Unsubscribe(ch chan watcher.Update)
	Refresh()
}

// Health serves the most recent watcher update as JSON. Before the first
// update arrives, it reports 503 and asks the watcher to publish one.
type Health struct {
	Monitor
	logger  *slog.Logger
	update  watcher.Update
	updated bool
	lock    sync.RWMutex
}

func New(m Monitor, logger *slog.Logger) *Health {
	return &Health{
		Monitor: m,
		logger:  logger,
	}
}

func (h *Health) Run(ctx context.Context) error {
	h.logger.Debug("started")
	defer h.logger.Debug("stopped")

	ch := h.Monitor.Subscribe()
	defer h.Monitor.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-ch:
			h.lock.Lock()
			h.update = update
			h.updated = true
			h.lock.Unlock()
		}
	}
}

func (h *Health) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	h.lock.RLock()
	defer h.lock.RUnlock()
	if !h.updated {
		http.Error(w, "no update yet", http.StatusServiceUnavailable)
		h.Monitor.Refresh()
		return
	}

	w.Header().Set("Content-Type", "application/json")

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(h.update); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
