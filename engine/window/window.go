package window

import (
	"runtime"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-viewer/engine/input"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/pkg/errors"
)

// Window provides platform windowing and routes pointer, wheel, key and drop events to an input.Controller.
// It satisfies renderer.Surface.
type Window interface {
	// SetUpdateCallback sets the function called each message loop iteration.
	//
	// Parameters:
	//   - callback: function to call (or nil to disable)
	SetUpdateCallback(callback func())

	// SetResizeCallback sets the function called when the framebuffer is resized.
	//
	// Parameters:
	//   - callback: function receiving new width and height in pixels
	SetResizeCallback(callback func(width, height int))

	// SetController replaces the controller events are routed to. nil discards input.
	SetController(c input.Controller)

	// SetTitle updates the title bar text. Safe to call from any goroutine; applied on the next message loop
	// iteration.
	SetTitle(title string)

	// SurfaceDescriptor returns a wgpu.SurfaceDescriptor suitable for creating a WebGPU surface.
	// The descriptor is platform-appropriate (Windows HWND, X11 Xlib, Wayland, macOS Metal, etc.)
	// and is created by the wgpuglfw bridge from the underlying GLFW window.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the platform-specific surface descriptor, or nil if window is not initialized
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// IsRunning returns true if the window is still active.
	IsRunning() bool

	// Close closes the window and releases platform resources.
	//
	// Returns:
	//   - error: error if the window was never initialized
	Close() error

	// ProcessMessages runs the window message loop on the calling goroutine, which must be the main thread.
	// Blocks until the window is closed. Calls the update callback each iteration.
	ProcessMessages()

	// Width returns the current framebuffer width in pixels. Safe to call from any goroutine.
	Width() int

	// Height returns the current framebuffer height in pixels. Safe to call from any goroutine.
	Height() int
}

// engineWindow is the implementation of the Window interface.
// Holds window configuration, GLFW state, and event callbacks.
type engineWindow struct {
	title     string
	maxWidth  int
	maxHeight int
	minWidth  int
	minHeight int

	// width and height are written by the GLFW callbacks on the main thread and read by the render goroutine.
	width  atomic.Int32
	height atomic.Int32

	// pendingTitle is set from any goroutine and applied by the message loop.
	pendingTitle atomic.Pointer[string]

	// internalWindow holds the platform-specific window data (glfwWindow).
	internalWindow any

	controller input.Controller
	onUpdate   func()
	onResize   func(width, height int)
}

var _ Window = &engineWindow{}

var errNotInitialized = errors.New("window is not initialized")

// NewWindow creates a new Window with the specified options and spawns the platform window.
// Must be called on the main thread.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the spawned window
//   - error: error if the platform window could not be created
func NewWindow(options ...WindowBuilderOption) (Window, error) {
	w := &engineWindow{
		title:     "oxy-viewer",
		maxWidth:  -1,
		maxHeight: -1,
		minWidth:  320,
		minHeight: 200,
	}
	w.width.Store(1280)
	w.height.Store(720)
	for _, opt := range options {
		opt(w)
	}
	if err := newPlatformWindow(w); err != nil {
		return nil, errors.Wrap(err, "failed to create platform window")
	}
	return w, nil
}

func (w *engineWindow) SetUpdateCallback(callback func()) {
	w.onUpdate = callback
}

func (w *engineWindow) SetResizeCallback(callback func(width, height int)) {
	w.onResize = callback
}

func (w *engineWindow) SetController(c input.Controller) {
	w.controller = c
}

func (w *engineWindow) SetTitle(title string) {
	w.pendingTitle.Store(&title)
}

func (w *engineWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return platformGetSurfaceDescriptor(w)
}

func (w *engineWindow) IsRunning() bool {
	return platformIsRunningCheck(w)
}

func (w *engineWindow) Close() error {
	return platformCloseWindow(w)
}

func (w *engineWindow) ProcessMessages() {
	for w.IsRunning() {
		if succ := platformProcessMessages(w); !succ {
			break
		}

		if t := w.pendingTitle.Swap(nil); t != nil {
			platformSetTitle(w, *t)
		}
		if w.controller != nil {
			platformApplyCursor(w, w.controller.Cursor())
		}
		if w.onUpdate != nil {
			w.onUpdate()
		}

		runtime.Gosched()
	}
}

func (w *engineWindow) Width() int {
	return int(w.width.Load())
}

func (w *engineWindow) Height() int {
	return int(w.height.Load())
}

// setSize records a framebuffer size and fires the resize callback.
func (w *engineWindow) setSize(width, height int) {
	w.width.Store(int32(width))
	w.height.Store(int32(height))
	if w.onResize != nil {
		w.onResize(width, height)
	}
}
