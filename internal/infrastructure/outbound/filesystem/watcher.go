package filesystem

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sophialabs/clientmock/internal/infrastructure/ports"
)

var defaultWatchExtensions = []string{".yaml", ".yml"}

// Watcher watches the rules tree and calls onReload once changes settle.
type Watcher struct {
	debounce   time.Duration
	logger     ports.Logger
	watcher    *fsnotify.Watcher
	onReload   func()
	extensions []string
	done       chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WatchExtensions replaces the watched file extensions (default .yaml, .yml).
// Body files referenced by rules can be added here, e.g. ".json". The
// leading dot is optional.
func WatchExtensions(exts ...string) WatcherOption {
	return func(w *Watcher) {
		w.extensions = nil
		for _, ext := range exts {
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			w.extensions = append(w.extensions, strings.ToLower(ext))
		}
	}
}

// NewWatcher creates a file watcher for rootDir and all of its subdirectories.
func NewWatcher(rootDir string, debounce time.Duration, logger ports.Logger, onReload func(), opts ...WatcherOption) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		debounce:   debounce,
		logger:     logger,
		watcher:    fsWatcher,
		onReload:   onReload,
		extensions: defaultWatchExtensions,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := w.addRecursive(rootDir); err != nil {
		_ = fsWatcher.Close()
		return nil, err
	}
	return w, nil
}

// Start begins watching in a goroutine.
func (w *Watcher) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop terminates the watcher. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.watcher.Close()
	})
	w.wg.Wait()
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("file change detected", "file", event.Name, "op", event.Op.String())
			timer.Reset(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)

		case <-timer.C:
			w.logger.Info("reloading rules due to file changes")
			w.onReload()
		}
	}
}

// relevant reports whether event should trigger a reload. New directories
// are added to the watch set.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				w.logger.Warn("failed to watch new directory", "dir", event.Name, "error", err)
			}
			return false
		}
	}
	if event.Op == fsnotify.Chmod {
		return false
	}
	return slices.Contains(w.extensions, strings.ToLower(filepath.Ext(event.Name)))
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.watcher.Add(path)
		}
		return nil
	})
}

func isYAMLFile(name string) bool {
	return slices.Contains(defaultWatchExtensions, strings.ToLower(filepath.Ext(name)))
}
