package history_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/restmode/restmode/internal/history"
	"github.com/restmode/restmode/internal/notifier"
	"github.com/restmode/restmode/internal/overlay"
	"github.com/restmode/restmode/internal/watcher"
	"github.com/restmode/restmode/pkg/pubsub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := history.Open(path)
	require.NoError(t, err)

	_, err = os.Stat(path)
	require.NoError(t, err)

	started := time.Date(2024, time.March, 9, 21, 0, 0, 0, time.UTC)
	require.NoError(t, store.Add(&history.SessionRecord{
		SessionID: "session-1",
		Trigger:   "timer",
		Reason:    "input",
		StartedAt: started,
		EndedAt:   started.Add(5 * time.Minute),
		Duration:  300,
		Surfaces:  1,
	}))
	require.NoError(t, store.Add(&history.SessionRecord{
		SessionID: "session-2",
		Trigger:   "manual",
		Reason:    "manual",
		StartedAt: started.Add(time.Hour),
		EndedAt:   started.Add(time.Hour + time.Minute),
		Duration:  60,
		Surfaces:  2,
	}))

	records, err := store.Recent(10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "session-2", records[0].SessionID)
	assert.Equal(t, "session-1", records[1].SessionID)

	records, err = store.Recent(1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "session-2", records[0].SessionID)

	assert.NoError(t, store.Close())
}

func TestStore_DefaultPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	store, err := history.Open("")
	require.NoError(t, err)
	assert.NoError(t, store.Close())

	_, err = os.Stat(filepath.Join(home, ".restmode", "history.db"))
	assert.NoError(t, err)
}

func TestRecorder(t *testing.T) {
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	source := pubsub.New[watcher.Update](slog.New(slog.DiscardHandler))
	events := eventRecorder{}
	r := history.NewRecorder(store, source, &events, slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error)
	go func() { errCh <- r.Run(ctx) }()

	assert.Eventually(t, func() bool { return source.Subscribers() == 1 }, time.Second, 10*time.Millisecond)

	// updates without a session end leave the store untouched
	source.Publish(watcher.Update{State: watcher.StateWaiting})

	started := time.Date(2024, time.March, 9, 21, 0, 0, 0, time.UTC)
	source.Publish(watcher.Update{
		State: watcher.StateWaiting,
		Ended: &overlay.Ended{
			Session: overlay.Session{
				ID:       "session-1",
				Trigger:  overlay.TriggerTimer,
				Started:  started,
				Surfaces: 2,
			},
			Reason:  overlay.EndReasonInput,
			EndedAt: started.Add(42 * time.Second),
		},
	})

	assert.Eventually(t, func() bool {
		records, err := store.Recent(10)
		return err == nil && len(records) == 1
	}, time.Second, 10*time.Millisecond)

	records, err := store.Recent(10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "session-1", records[0].SessionID)
	assert.Equal(t, "timer", records[0].Trigger)
	assert.Equal(t, "input", records[0].Reason)
	assert.Equal(t, float64(42), records[0].Duration)
	assert.Equal(t, 2, records[0].Surfaces)
	assert.Empty(t, events.recordedEvents())

	cancel()
	assert.NoError(t, <-errCh)
}

func TestRecorder_StoreFailure(t *testing.T) {
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	source := pubsub.New[watcher.Update](slog.New(slog.DiscardHandler))
	events := eventRecorder{}
	r := history.NewRecorder(store, source, &events, slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error)
	go func() { errCh <- r.Run(ctx) }()

	assert.Eventually(t, func() bool { return source.Subscribers() == 1 }, time.Second, 10*time.Millisecond)

	ended := overlay.Ended{
		Session: overlay.Session{ID: "session-1", Trigger: overlay.TriggerManual, Started: time.Now()},
		Reason:  overlay.EndReasonManual,
		EndedAt: time.Now(),
	}
	source.Publish(watcher.Update{State: watcher.StateWaiting, Ended: &ended})

	assert.Eventually(t, func() bool {
		recorded := events.recordedEvents()
		return len(recorded) == 1 && recorded[0].Kind == notifier.Error
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, "session-1", events.recordedEvents()[0].SessionID)

	// a failed write must not stop the recorder
	source.Publish(watcher.Update{State: watcher.StateWaiting, Ended: &ended})
	assert.Eventually(t, func() bool { return len(events.recordedEvents()) == 2 }, time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-errCh)
}

type eventRecorder struct {
	mu       sync.Mutex
	recorded []notifier.Event
}

func (r *eventRecorder) Notify(event notifier.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recorded = append(r.recorded, event)
}

func (r *eventRecorder) recordedEvents() []notifier.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notifier.Event(nil), r.recorded...)
}
