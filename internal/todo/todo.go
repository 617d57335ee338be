// Package todo serves the to-do list shown on the overlay, reloading it
// whenever the backing YAML file changes.
package todo

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// List is the content of the to-do file.
type List struct {
	Title string   `yaml:"title"`
	Items []string `yaml:"items"`
}

// DefaultTitle is used when the file does not set one.
const DefaultTitle = "To-Do List"

// Watcher caches the to-do file and reloads it on changes. A missing file
// yields an empty list; a file that fails to parse keeps the last good list.
type Watcher struct {
	path   string
	logger *slog.Logger

	mu   sync.RWMutex
	list List
}

// New returns a Watcher for the given file. An empty path disables the
// to-do list altogether.
func New(path string, logger *slog.Logger) *Watcher {
	if path != "" {
		path = filepath.Clean(path)
	}
	return &Watcher{path: path, logger: logger}
}

// List returns the cached to-do list.
func (w *Watcher) List() List {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.list
}

// Run loads the file and reloads it on every change, until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	if w.path == "" {
		<-ctx.Done()
		return nil
	}

	w.reload()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	// watch the directory: editors typically save by writing a temporary
	// file and renaming it over the original, which drops a watch on the
	// file itself.
	if err = watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	w.logger.Debug("started", slog.String("path", w.path))
	defer w.logger.Debug("stopped")

	filename := filepath.Base(w.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.reload()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watch failed", slog.Any("err", err))
		}
	}
}

func (w *Watcher) reload() {
	list, err := load(w.path)
	if err != nil {
		w.logger.Error("failed to load to-do list", slog.Any("err", err), slog.String("path", w.path))
		return
	}

	w.mu.Lock()
	w.list = list
	w.mu.Unlock()

	w.logger.Debug("to-do list loaded", slog.Int("items", len(list.Items)))
}

func load(path string) (List, error) {
	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return List{Title: DefaultTitle}, nil
	}
	if err != nil {
		return List{}, err
	}

	list := List{Title: DefaultTitle}
	if err = yaml.Unmarshal(content, &list); err != nil {
		return List{}, err
	}
	if list.Title == "" {
		list.Title = DefaultTitle
	}
	return list, nil
}
