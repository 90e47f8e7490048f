package window

import (
	"runtime"

	"github.com/Carmen-Shannon/oxy-viewer/engine/input"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/pkg/errors"
)

// glfwWindow holds the GLFW-specific window state.
type glfwWindow struct {
	parent  *engineWindow
	window  *glfw.Window
	running bool

	grabCursor *glfw.Cursor
	cursor     input.CursorHint
	cursorSet  bool
}

// newPlatformWindow creates the GLFW window with input callbacks and stores it as the internal window.
//
// GLFW reference: https://www.glfw.org/docs/latest/window_guide.html
// go-gl/glfw: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw
func newPlatformWindow(w *engineWindow) error {
	runtime.LockOSThread()

	if err := glfw.Init(); err != nil {
		return errors.Wrap(err, "failed to initialize GLFW")
	}

	// WebGPU provides its own graphics API, so disable OpenGL context creation.
	// Reference: https://www.glfw.org/docs/latest/window_guide.html#window_hints_ctx
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)

	win, err := glfw.CreateWindow(w.Width(), w.Height(), w.title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return errors.Wrap(err, "failed to create GLFW window")
	}
	win.SetSizeLimits(limit(w.minWidth), limit(w.minHeight), limit(w.maxWidth), limit(w.maxHeight))

	gw := &glfwWindow{
		parent:     w,
		window:     win,
		running:    true,
		grabCursor: glfw.CreateStandardCursor(glfw.HandCursor),
	}
	w.internalWindow = gw

	// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Window.SetKeyCallback
	win.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			gw.running = false
			win.SetShouldClose(true)
			return
		}
		if (action == glfw.Press || action == glfw.Repeat) && w.controller != nil {
			w.controller.KeyDown(uint32(key))
		}
	})

	// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Window.SetScrollCallback
	win.SetScrollCallback(func(_ *glfw.Window, xoff, yoff float64) {
		if w.controller != nil && yoff != 0 {
			w.controller.Wheel(float32(yoff))
		}
	})

	// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Window.SetMouseButtonCallback
	win.SetMouseButtonCallback(func(_ *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
		if button != glfw.MouseButtonLeft || w.controller == nil {
			return
		}
		switch action {
		case glfw.Press:
			xpos, ypos := win.GetCursorPos()
			w.controller.PointerDown(float32(xpos), float32(ypos))
		case glfw.Release:
			w.controller.PointerUp()
		}
	})

	// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Window.SetCursorPosCallback
	win.SetCursorPosCallback(func(_ *glfw.Window, xpos, ypos float64) {
		if w.controller != nil {
			w.controller.PointerMove(float32(xpos), float32(ypos))
		}
	})

	// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Window.SetDropCallback
	win.SetDropCallback(func(_ *glfw.Window, names []string) {
		if w.controller != nil {
			w.controller.DropPaths(names)
		}
	})

	// Use framebuffer size callback for pixel-accurate resize events.
	// On high-DPI displays (e.g., macOS Retina), framebuffer size differs from window size.
	// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Window.SetFramebufferSizeCallback
	win.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		w.setSize(width, height)
	})

	fbWidth, fbHeight := win.GetFramebufferSize()
	w.width.Store(int32(fbWidth))
	w.height.Store(int32(fbHeight))

	return nil
}

func limit(v int) int {
	if v <= 0 {
		return glfw.DontCare
	}
	return v
}

// platformGetSurfaceDescriptor creates a platform-appropriate wgpu.SurfaceDescriptor from the GLFW window.
// Uses the wgpuglfw bridge package which has per-platform implementations (Windows, X11, Wayland, macOS).
//
// Reference: https://pkg.go.dev/github.com/cogentcore/webgpu/wgpuglfw#GetSurfaceDescriptor
func platformGetSurfaceDescriptor(w *engineWindow) *wgpu.SurfaceDescriptor {
	if w.internalWindow == nil {
		return nil
	}
	gw := w.internalWindow.(*glfwWindow)
	return wgpuglfw.GetSurfaceDescriptor(gw.window)
}

// platformIsRunningCheck returns whether the GLFW window is still active.
// Returns false if the internal window is nil, the running flag is cleared, or GLFW reports ShouldClose.
func platformIsRunningCheck(w *engineWindow) bool {
	if w.internalWindow == nil {
		return false
	}
	gw := w.internalWindow.(*glfwWindow)
	return gw.running && gw.window != nil && !gw.window.ShouldClose()
}

// platformCloseWindow destroys the GLFW window and terminates the GLFW library.
func platformCloseWindow(w *engineWindow) error {
	if w.internalWindow == nil {
		return errNotInitialized
	}
	gw := w.internalWindow.(*glfwWindow)
	if gw.window == nil {
		return nil
	}
	gw.running = false
	if gw.grabCursor != nil {
		gw.grabCursor.Destroy()
		gw.grabCursor = nil
	}
	gw.window.SetShouldClose(true)
	gw.window.Destroy()
	gw.window = nil
	glfw.Terminate()
	return nil
}

// platformProcessMessages polls GLFW for pending events without blocking.
//
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#PollEvents
func platformProcessMessages(w *engineWindow) bool {
	glfw.PollEvents()
	return platformIsRunningCheck(w)
}

func platformSetTitle(w *engineWindow, title string) {
	if gw, ok := w.internalWindow.(*glfwWindow); ok && gw.window != nil {
		gw.window.SetTitle(title)
	}
}

// platformApplyCursor maps the controller's cursor hint onto the GLFW cursor mode. Only changes are applied.
//
// Reference: https://www.glfw.org/docs/latest/input_guide.html#cursor_mode
func platformApplyCursor(w *engineWindow, hint input.CursorHint) {
	gw, ok := w.internalWindow.(*glfwWindow)
	if !ok || gw.window == nil || (gw.cursorSet && gw.cursor == hint) {
		return
	}
	gw.cursor, gw.cursorSet = hint, true
	switch hint {
	case input.CursorHidden:
		gw.window.SetInputMode(glfw.CursorMode, glfw.CursorHidden)
	default:
		gw.window.SetInputMode(glfw.CursorMode, glfw.CursorNormal)
		gw.window.SetCursor(gw.grabCursor)
	}
}
