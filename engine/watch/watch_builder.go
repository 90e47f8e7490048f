package watch

import (
	"log/slog"
	"time"
)

// WatcherBuilderOption is a functional option for configuring a Watcher.
type WatcherBuilderOption func(w *watcher)

// WithReloader sets what is reloaded when the watched directory changes.
func WithReloader(r Reloader) WatcherBuilderOption {
	return func(w *watcher) {
		w.reloader = r
	}
}

// WithDebounce sets how long the directory must stay quiet before a reload. Values <= 0 keep the default.
func WithDebounce(d time.Duration) WatcherBuilderOption {
	return func(w *watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) WatcherBuilderOption {
	return func(w *watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}
