// Package input turns pointer, wheel, touch, key and drop events into camera and load commands.
package input

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-viewer/common"
	"github.com/Carmen-Shannon/oxy-viewer/engine/loader"
)

// DragState is the pointer drag state machine.
type DragState int

const (
	DragUp DragState = iota
	DragDown
)

// CursorHint tells the window how to present the cursor.
type CursorHint int

const (
	// CursorGrab is shown while hovering with no drag in progress.
	CursorGrab CursorHint = iota
	// CursorHidden is used while dragging or zooming.
	CursorHidden
)

// Orbiter receives camera input. camera.UserCamera satisfies it.
type Orbiter interface {
	Rotate(dx, dy float32)
	Zoom(delta float32)
}

// Navigator receives keyboard commands that act on the scene rather than the camera.
type Navigator interface {
	NavigateScene(delta int)
	SetCameraIndex(index int)
	Refit()
}

// Point is one touch point in window coordinates.
type Point struct {
	X, Y float32
}

type controller struct {
	mu *sync.Mutex

	orbiter   Orbiter
	navigator Navigator
	onLoad    func(loader.Reference)
	active    func() bool
	logger    *slog.Logger

	drag   DragState
	lastX  float32
	lastY  float32
	cursor CursorHint

	touchDown bool
	touchX    float32
	touchY    float32
}

// Controller is the input state machine shared by the window and tests.
// While the active check reports false, presses, camera motion and key bindings are ignored. Releases and
// drops always apply.
type Controller interface {
	// PointerDown records the drag anchor and enters DragDown.
	PointerDown(x, y float32)

	// PointerUp leaves DragDown.
	PointerUp()

	// PointerMove rotates the camera by the delta since the last position while dragging.
	// With no drag in progress it only updates the cursor hint.
	PointerMove(x, y float32)

	// Wheel zooms the camera regardless of the drag state.
	Wheel(delta float32)

	// TouchStart, TouchMove and TouchEnd mirror the pointer using the first touch point only.
	TouchStart(points []Point)
	TouchMove(points []Point)
	TouchEnd()

	// KeyDown handles scene navigation keys: PageDown/N and PageUp/P step the scene, R refits the camera,
	// U selects the user camera and 0-9 select an embedded camera.
	//
	// Parameters:
	//   - keyCode: a common.Key* code
	KeyDown(keyCode uint32)

	// Drop classifies dropped files into a container and siblings and issues a load.
	// The last container wins when several are dropped. Without a container a warning is logged and nothing
	// is loaded.
	//
	// Parameters:
	//   - files: the dropped files
	//
	// Returns:
	//   - bool: true if a load was issued
	Drop(files []loader.File) bool

	// DropPaths is Drop for files identified by local paths.
	DropPaths(paths []string) bool

	DragState() DragState
	Cursor() CursorHint
}

var _ Controller = &controller{}

// NewController creates a Controller. Without an Orbiter, camera input is discarded.
//
// Parameters:
//   - options: functional options to configure the controller
//
// Returns:
//   - Controller: the newly created controller
func NewController(options ...ControllerBuilderOption) Controller {
	c := &controller{
		mu:     &sync.Mutex{},
		active: func() bool { return true },
		logger: slog.Default(),
		cursor: CursorGrab,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

func (c *controller) PointerDown(x, y float32) {
	if !c.active() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drag = DragDown
	c.lastX, c.lastY = x, y
	c.cursor = CursorHidden
}

func (c *controller) PointerUp() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drag = DragUp
	c.cursor = CursorGrab
}

func (c *controller) PointerMove(x, y float32) {
	c.mu.Lock()
	if c.drag != DragDown {
		c.cursor = CursorGrab
		c.mu.Unlock()
		return
	}
	dx, dy := x-c.lastX, y-c.lastY
	c.lastX, c.lastY = x, y
	c.mu.Unlock()

	if c.active() {
		c.rotate(dx, dy)
	}
}

func (c *controller) Wheel(delta float32) {
	if !c.active() {
		return
	}
	c.mu.Lock()
	c.cursor = CursorHidden
	c.mu.Unlock()

	if c.orbiter != nil {
		c.orbiter.Zoom(delta)
	}
}

func (c *controller) TouchStart(points []Point) {
	if !c.active() || len(points) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touchDown = true
	c.touchX, c.touchY = points[0].X, points[0].Y
}

func (c *controller) TouchMove(points []Point) {
	if len(points) == 0 {
		return
	}
	c.mu.Lock()
	if !c.touchDown {
		c.mu.Unlock()
		return
	}
	dx, dy := points[0].X-c.touchX, points[0].Y-c.touchY
	c.touchX, c.touchY = points[0].X, points[0].Y
	c.mu.Unlock()

	if c.active() {
		c.rotate(dx, dy)
	}
}

func (c *controller) TouchEnd() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touchDown = false
}

func (c *controller) KeyDown(keyCode uint32) {
	if !c.active() || c.navigator == nil {
		return
	}
	switch keyCode {
	case common.KeyPageDown, common.KeyN:
		c.navigator.NavigateScene(1)
	case common.KeyPageUp, common.KeyP:
		c.navigator.NavigateScene(-1)
	case common.KeyR:
		c.navigator.Refit()
	case common.KeyU:
		c.navigator.SetCameraIndex(-1)
	default:
		if keyCode >= common.Key0 && keyCode <= common.Key9 {
			c.navigator.SetCameraIndex(int(keyCode - common.Key0))
		}
	}
}

func (c *controller) Drop(files []loader.File) bool {
	var main loader.File
	var siblings []loader.File
	for _, f := range files {
		if !loader.IsContainer(f.Name()) {
			siblings = append(siblings, f)
			continue
		}
		if main != nil {
			siblings = append(siblings, main)
		}
		main = f
	}

	if main == nil {
		names := make([]string, 0, len(files))
		for _, f := range files {
			names = append(names, f.Name())
		}
		c.logger.Warn("[input] no gltf/glb file found in drop", "files", strings.Join(names, ", "))
		return false
	}

	c.logger.Info("[input] drop", "file", main.Name(), "siblings", len(siblings))
	if c.onLoad != nil {
		c.onLoad(loader.FileReference(main, siblings...))
	}
	return true
}

func (c *controller) DropPaths(paths []string) bool {
	files := make([]loader.File, 0, len(paths))
	for _, p := range paths {
		files = append(files, loader.OSFile{Path: p})
	}
	return c.Drop(files)
}

func (c *controller) DragState() DragState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drag
}

func (c *controller) Cursor() CursorHint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor
}

func (c *controller) rotate(dx, dy float32) {
	if c.orbiter != nil && (dx != 0 || dy != 0) {
		c.orbiter.Rotate(dx, dy)
	}
}
