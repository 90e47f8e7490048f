// Package engine runs the frame loop that drives a scene.Scene from one render goroutine.
package engine

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-viewer/engine/profiler"
	"github.com/Carmen-Shannon/oxy-viewer/engine/scene"
	"github.com/Carmen-Shannon/oxy-viewer/engine/window"
)

// engine implements the Engine interface.
// Coordinates the render goroutine and the window message loop.
type engine struct {
	wg sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	window window.Window
	scene  scene.Scene
	logger *slog.Logger

	profiler         *profiler.Profiler
	profilingEnabled atomic.Bool

	renderCallback func(deltaTime float32)

	renderFrameLimit atomic.Int64 // minimum frame duration in ns; 0 = uncapped
	frameBudget      uint64       // headless runs stop after this many frames; 0 = until quit
	frames           atomic.Uint64

	width, height int // surface size used when there is no window
}

// Engine is the main entry point for the viewer.
// It owns the render loop: one goroutine asking the scene for a frame every iteration until quit.
type Engine interface {
	// Window returns the underlying window, or nil for headless runs.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Scene returns the scene driven by the loop.
	Scene() scene.Scene

	// Profiler returns the frame profiler. Its FPS is updated only while profiling is enabled.
	Profiler() *profiler.Profiler

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetRenderCallback registers the function called after each render frame.
	//
	// Parameters:
	//   - callback: function to call each render frame, receiving the delta time in seconds
	SetRenderCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default). Takes effect on the next frame.
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// Frames returns the number of loop iterations completed so far.
	Frames() uint64

	// Run starts the render loop and blocks until quit. With a window the message loop runs on the calling
	// goroutine, which must be the main thread, and closing the window quits. Without one Run waits for
	// Quit or for the frame budget to be spent.
	Run()

	// Quit signals the render goroutine to stop after its current frame.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()

	// Done is closed once quit has been signalled.
	Done() <-chan struct{}
}

// NewEngine creates a new Engine instance with the provided options.
//
// Parameters:
//   - options: functional options for engine configuration (scene, window, profiling, etc.)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		quitChannel: make(chan struct{}),
		logger:      slog.Default(),
		width:       1280,
		height:      720,
	}

	for _, opt := range options {
		opt(e)
	}

	if e.scene == nil {
		e.scene = scene.NewScene(scene.WithLogger(e.logger))
	}
	if e.profiler == nil {
		e.profiler = profiler.NewProfiler(e.logger)
	}
	if e.window != nil {
		e.window.SetResizeCallback(func(width, height int) {
			e.logger.Debug("[engine] window resized", "width", width, "height", height)
		})
		// runs on the main thread; closing the window ends ProcessMessages
		e.window.SetUpdateCallback(func() {
			select {
			case <-e.quitChannel:
				if err := e.window.Close(); err != nil {
					e.logger.Warn("[engine] failed to close window", "error", err)
				}
			default:
			}
		})
	}

	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Scene() scene.Scene {
	return e.scene
}

func (e *engine) Profiler() *profiler.Profiler {
	return e.profiler
}

func (e *engine) Run() {
	e.wg.Add(1)
	go e.handleRender()

	if e.window != nil {
		e.window.ProcessMessages()
		e.signalQuit()
	} else {
		<-e.quitChannel
	}
	e.wg.Wait()
}

// Quit signals all engine goroutines to stop.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
}

func (e *engine) Done() <-chan struct{} {
	return e.quitChannel
}

// signalQuit closes the quit channel to signal all goroutines to exit.
// Uses sync.Once to ensure the channel is only closed once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

// handleRender runs the uncapped (or frame-limited) render loop in its own goroutine.
// Every iteration asks the scene for one frame at the current surface size. Frame errors are logged and the
// loop carries on; a panic is recovered, logged, and signals quit.
func (e *engine) handleRender() {
	defer e.wg.Done()
	// Recover from panics inside the render goroutine to avoid crashing the whole process.
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("[engine] render goroutine recovered from panic", "panic", r)
			e.signalQuit()
		}
	}()

	lastRender := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		default:
		}

		now := time.Now()
		dt := float32(now.Sub(lastRender).Seconds())
		lastRender = now

		width, height := e.surfaceSize()
		if err := e.scene.Frame(width, height); err != nil {
			e.logger.Warn("[engine] frame failed", "frame", e.frames.Load(), "error", err)
		}

		if e.renderCallback != nil {
			e.renderCallback(dt)
		}

		if e.profilingEnabled.Load() {
			e.profiler.Tick()
		}

		n := e.frames.Add(1)
		if e.frameBudget > 0 && n >= e.frameBudget {
			e.logger.Info("[engine] frame budget reached", "frames", n)
			e.signalQuit()
			return
		}

		// Frame rate limiting
		if limit := time.Duration(e.renderFrameLimit.Load()); limit > 0 {
			if remaining := limit - time.Since(lastRender); remaining > 0 {
				select {
				case <-e.quitChannel:
					return
				case <-time.After(remaining):
				}
			}
		}
	}
}

func (e *engine) surfaceSize() (int, int) {
	if e.window != nil {
		return e.window.Width(), e.window.Height()
	}
	return e.width, e.height
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled.Store(true)
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled.Store(false)
}

// SetRenderCallback registers the function called each render frame.
func (e *engine) SetRenderCallback(callback func(deltaTime float32)) {
	e.renderCallback = callback
}

// SetRenderFrameLimit sets an optional render frame rate cap.
// Pass 0 to uncap the render loop.
func (e *engine) SetRenderFrameLimit(fps float64) {
	e.renderFrameLimit.Store(int64(frameDuration(fps)))
}

func (e *engine) Frames() uint64 {
	return e.frames.Load()
}

func frameDuration(fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / fps)
}
