package engine

import (
	"log/slog"

	"github.com/Carmen-Shannon/oxy-viewer/engine/profiler"
	"github.com/Carmen-Shannon/oxy-viewer/engine/scene"
	"github.com/Carmen-Shannon/oxy-viewer/engine/window"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables performance profiling output.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled.Store(enabled)
	}
}

// WithProfiler replaces the default profiler.
func WithProfiler(p *profiler.Profiler) EngineBuilderOption {
	return func(e *engine) {
		e.profiler = p
	}
}

// WithWindow sets the window the engine renders into and whose message loop Run drives.
// Leave unset for headless runs.
//
// Parameters:
//   - w: a spawned Window instance
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithScene sets the scene the render loop drives.
//
// Parameters:
//   - s: the Scene to drive
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithScene(s scene.Scene) EngineBuilderOption {
	return func(e *engine) {
		e.scene = s
	}
}

// WithRenderFrameLimit sets an optional render frame rate cap in frames per second.
// Pass 0 to uncap the render loop (default).
//
// Parameters:
//   - fps: maximum render frames per second (0 = uncapped)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		e.renderFrameLimit.Store(int64(frameDuration(fps)))
	}
}

// WithFrames stops the loop after n frames. 0 runs until quit.
func WithFrames(n int) EngineBuilderOption {
	return func(e *engine) {
		if n < 0 {
			n = 0
		}
		e.frameBudget = uint64(n)
	}
}

// WithSize sets the surface size passed to the scene when there is no window.
func WithSize(width, height int) EngineBuilderOption {
	return func(e *engine) {
		if width > 0 && height > 0 {
			e.width, e.height = width, height
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) EngineBuilderOption {
	return func(e *engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}
