// Package watch reloads the current model when files in its directory change on disk.
package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-viewer/common"
	"github.com/Carmen-Shannon/oxy-viewer/engine/loader"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

// Reloader reloads the current model. scene.Scene satisfies it.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Watcher follows the directory of the current model and triggers a debounced reload on write or create
// events inside it.
type Watcher interface {
	// Follow points the watcher at the directory of ref. Remote and in-memory references stop watching.
	//
	// Parameters:
	//   - ref: the reference that was just installed
	//
	// Returns:
	//   - error: error if the directory cannot be watched
	Follow(ref loader.Reference) error

	// Dir returns the directory being watched, or "" when idle.
	Dir() string

	// Run processes events until ctx is done or the watcher is closed.
	Run(ctx context.Context) error

	// Close releases the underlying fsnotify watcher.
	Close() error
}

type watcher struct {
	mu *sync.Mutex

	fs       *fsnotify.Watcher
	reloader Reloader
	debounce time.Duration
	logger   *slog.Logger

	dir string
}

var _ Watcher = &watcher{}

// NewWatcher creates a Watcher.
//
// Parameters:
//   - options: functional options (reloader, debounce, logger)
//
// Returns:
//   - Watcher: the watcher, idle until Follow is called
//   - error: error if the platform watcher cannot be created
func NewWatcher(options ...WatcherBuilderOption) (Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create file watcher")
	}
	w := &watcher{
		mu:       &sync.Mutex{},
		fs:       fw,
		debounce: 250 * time.Millisecond,
		logger:   slog.Default(),
	}
	for _, opt := range options {
		opt(w)
	}
	return w, nil
}

// DirFor returns the local directory a reference's files live in, or "" when there is none.
func DirFor(ref loader.Reference) string {
	if ref.File != nil {
		if f, ok := ref.File.(loader.OSFile); ok {
			return filepath.Dir(f.Path)
		}
		return ""
	}
	if ref.Path == "" || common.IsRemote(ref.Path) {
		return ""
	}
	abs, err := filepath.Abs(filepath.Dir(ref.Path))
	if err != nil {
		return filepath.Dir(ref.Path)
	}
	return abs
}

func (w *watcher) Follow(ref loader.Reference) error {
	dir := DirFor(ref)

	w.mu.Lock()
	defer w.mu.Unlock()
	if dir == w.dir {
		return nil
	}
	if w.dir != "" {
		if err := w.fs.Remove(w.dir); err != nil {
			w.logger.Debug("[watch] failed to remove directory", "dir", w.dir, "error", err)
		}
		w.dir = ""
	}
	if dir == "" {
		w.logger.Debug("[watch] idle", "model", ref.Name())
		return nil
	}
	if err := w.fs.Add(dir); err != nil {
		return errors.Wrapf(err, "failed to watch %s", dir)
	}
	w.dir = dir
	w.logger.Info("[watch] watching", "dir", dir)
	return nil
}

func (w *watcher) Dir() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dir
}

func (w *watcher) Run(ctx context.Context) error {
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("[watch] change", "file", event.Name, "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("[watch] watcher error", "error", err)
		case <-fire:
			fire = nil
			w.reload(ctx)
		}
	}
}

func (w *watcher) reload(ctx context.Context) {
	if w.reloader == nil {
		return
	}
	w.logger.Info("[watch] reloading", "dir", w.Dir())
	if err := w.reloader.Reload(ctx); err != nil {
		w.logger.Warn("[watch] reload failed", "error", err)
	}
}

// relevant keeps write and create events for non-hidden, non-backup files in the watched directory.
func (w *watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return false
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	dir := w.Dir()
	return dir != "" && filepath.Dir(event.Name) == dir
}

func (w *watcher) Close() error {
	return w.fs.Close()
}
