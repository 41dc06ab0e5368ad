package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounce = 500 * time.Millisecond

// ChangeFunc is called with the previous and the newly loaded config.
type ChangeFunc func(old, cur *Config)

// Watcher reloads the config file when it changes on disk.
type Watcher struct {
	path string
	fs   *fsnotify.Watcher

	mu        sync.RWMutex
	cfg       *Config
	callbacks []ChangeFunc

	done chan struct{}
	wg   sync.WaitGroup
}

// NewWatcher starts watching path. cur is the config already loaded from it.
func NewWatcher(path string, cur *Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	path = filepath.Clean(path)
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}

	w := &Watcher{path: path, fs: fsw, cfg: cur, done: make(chan struct{})}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// OnChange registers a callback for successful reloads.
func (w *Watcher) OnChange(fn ChangeFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, fn)
}

// Config returns the most recently loaded config.
func (w *Watcher) Config() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cfg
}

// Close stops watching.
func (w *Watcher) Close() error {
	close(w.done)
	err := w.fs.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	var timer *time.Timer
	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return

		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			switch {
			case ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create):
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounce, w.reload)
			case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
				// Editors often replace the file; pick up the new one.
				slog.Warn("config file removed or renamed", "path", w.path)
				time.AfterFunc(time.Second, func() {
					if err := w.fs.Add(w.path); err == nil {
						w.reload()
					}
				})
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			slog.Warn("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	select {
	case <-w.done:
		return
	default:
	}

	cur, err := Load(w.path)
	if err != nil {
		slog.Error("config reload failed, keeping previous", "error", err)
		return
	}

	w.mu.Lock()
	old := w.cfg
	w.cfg = cur
	callbacks := append([]ChangeFunc(nil), w.callbacks...)
	w.mu.Unlock()

	slog.Info("config reloaded", "path", w.path)
	for _, fn := range callbacks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("config callback panicked", "panic", r)
				}
			}()
			fn(old, cur)
		}()
	}
}
