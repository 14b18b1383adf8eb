// Package watcher reports changes to a single file. Editors and the sandbox
// host both replace files by rename, so the parent directory is watched and
// events are filtered by name.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/cutpilot/cutpilot-agent/internal/logging"
)

const DefaultDebounce = 300 * time.Millisecond

type Watcher interface {
	Start(ctx context.Context) error
	Stop() error
	OnChange(callback func(path string, event EventType))
}

type EventType int

const (
	EventCreate EventType = iota
	EventModify
	EventDelete
)

func (e EventType) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventModify:
		return "modify"
	case EventDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// FileWatcher coalesces bursts of events on one file into a single
// callback once the file has been quiet for the debounce interval.
type FileWatcher struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger

	mu        sync.Mutex
	fsw       *fsnotify.Watcher
	callbacks []func(path string, event EventType)
	stopCh    chan struct{}
	doneCh    chan struct{}
	running   bool
}

// New watches path. A zero debounce uses DefaultDebounce.
func New(path string, debounce time.Duration, logger *slog.Logger) *FileWatcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileWatcher{
		path:     filepath.Clean(path),
		debounce: debounce,
		logger:   logging.WithComponent(logger, "watcher"),
	}
}

func (w *FileWatcher) OnChange(callback func(path string, event EventType)) {
	w.mu.Lock()
	w.callbacks = append(w.callbacks, callback)
	w.mu.Unlock()
}

// Start begins watching. It returns once the watch is registered.
func (w *FileWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	dir := filepath.Dir(w.path)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return fmt.Errorf("failed to watch %s: %w", logging.SanitizePath(dir), err)
	}

	w.fsw = fsw
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.running = true
	go w.run(ctx, fsw, w.stopCh, w.doneCh)

	w.logger.Info("watching timeline file", "path", logging.SanitizePath(w.path))
	return nil
}

// Stop ends the watch and waits for the event loop to exit.
func (w *FileWatcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	fsw, stopCh, doneCh := w.fsw, w.stopCh, w.doneCh
	w.mu.Unlock()

	close(stopCh)
	<-doneCh
	return fsw.Close()
}

func (w *FileWatcher) run(ctx context.Context, fsw *fsnotify.Watcher, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	var pending *EventType
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return

		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			typ, match := w.classify(ev)
			if !match {
				continue
			}
			w.logger.Debug("file event", "op", ev.Op.String(), "event", typ.String())
			pending = &typ
			timer.Reset(w.debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			if !errors.Is(err, fsnotify.ErrEventOverflow) {
				w.logger.Warn("watcher error", "error", err)
				continue
			}
			// events were dropped; assume the file changed
			typ := EventModify
			pending = &typ
			timer.Reset(w.debounce)

		case <-timer.C:
			if pending == nil {
				continue
			}
			w.fire(*pending)
			pending = nil
		}
	}
}

func (w *FileWatcher) classify(ev fsnotify.Event) (EventType, bool) {
	if filepath.Clean(ev.Name) != w.path {
		return 0, false
	}
	switch {
	case ev.Has(fsnotify.Create):
		return EventCreate, true
	case ev.Has(fsnotify.Write):
		return EventModify, true
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		return EventDelete, true
	default:
		return 0, false
	}
}

func (w *FileWatcher) fire(typ EventType) {
	w.mu.Lock()
	callbacks := append(([]func(string, EventType))(nil), w.callbacks...)
	w.mu.Unlock()

	for _, fn := range callbacks {
		fn(w.path, typ)
	}
}
