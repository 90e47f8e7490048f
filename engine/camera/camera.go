package camera

import (
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-viewer/engine/asset"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	defaultRotateSpeed = 1.0 / 180.0
	defaultZoomFactor  = 1.04
	maxPitch           = math.Pi/2 - 0.01
	minZoom            = 1e-4
)

// View is the per-frame camera output consumed by the renderer.
type View struct {
	Position   mgl32.Vec3
	View       mgl32.Mat4
	Projection mgl32.Mat4
}

// ViewProjection returns Projection * View.
func (v View) ViewProjection() mgl32.Mat4 {
	return v.Projection.Mul4(v.View)
}

// Settings is the full set of user camera parameters. It is the argument of UserCamera.Set.
type Settings struct {
	Eye         mgl32.Vec3
	Target      mgl32.Vec3
	Up          mgl32.Vec3
	Projection  asset.ProjectionKind
	ZNear       float32
	ZFar        float32
	YFov        float32
	AspectRatio float32
	XMag        float32
	YMag        float32
}

// DefaultSettings returns the camera a freshly started viewer uses before any asset is fitted.
func DefaultSettings() Settings {
	return Settings{
		Eye:         mgl32.Vec3{0, 0, 0.05},
		Target:      mgl32.Vec3{0, 0, 0},
		Up:          mgl32.Vec3{0, 1, 0},
		Projection:  asset.ProjectionPerspective,
		ZNear:       0.01,
		ZFar:        10000,
		YFov:        mgl32.DegToRad(45),
		AspectRatio: 16.0 / 9.0,
		XMag:        1,
		YMag:        1,
	}
}

type userCamera struct {
	mu *sync.Mutex

	target mgl32.Vec3
	up     mgl32.Vec3

	yaw   float32
	pitch float32
	zoom  float32

	position mgl32.Vec3

	projection asset.ProjectionKind
	yfov       float32
	aspect     float32
	xmag       float32
	ymag       float32
	znear      float32
	zfar       float32

	rotateSpeed float32
	zoomFactor  float32

	pendingX    float32
	pendingY    float32
	pendingZoom int
}

// UserCamera is the orbiting camera driven by pointer input.
// Input is accumulated by Rotate and Zoom and applied once per frame by Update.
type UserCamera interface {
	// Rotate accumulates an orbit delta in pixels. It has no visible effect until Update.
	//
	// Parameters:
	//   - dx: horizontal pointer delta
	//   - dy: vertical pointer delta
	Rotate(dx, dy float32)

	// Zoom accumulates one wheel step. A positive delta moves the camera away from the target.
	//
	// Parameters:
	//   - delta: the wheel delta; only its sign is used
	Zoom(delta float32)

	// Update applies pending rotation and zoom and recomputes the camera position.
	Update()

	// FitToExtents points the camera at the centre of the box and backs off until the whole box is visible.
	// Yaw and pitch are reset and pending input is discarded.
	//
	// Parameters:
	//   - min: the lower corner of the box
	//   - max: the upper corner of the box
	FitToExtents(min, max mgl32.Vec3)

	// Set replaces every camera parameter.
	//
	// Parameters:
	//   - s: the new settings
	Set(s Settings)

	// SetAspect sets the aspect ratio (width / height). Non-positive values are ignored.
	SetAspect(aspect float32)

	Position() mgl32.Vec3
	Target() mgl32.Vec3
	Distance() float32
	Near() float32
	Far() float32
	Projection() asset.ProjectionKind

	// View returns the current view and projection matrices.
	View() View
}

var _ UserCamera = &userCamera{}

// NewUserCamera creates a UserCamera initialised from DefaultSettings.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - UserCamera: the newly created camera
func NewUserCamera(options ...CameraBuilderOption) UserCamera {
	c := &userCamera{
		mu:          &sync.Mutex{},
		rotateSpeed: defaultRotateSpeed,
		zoomFactor:  defaultZoomFactor,
	}
	c.set(DefaultSettings())
	for _, option := range options {
		option(c)
	}
	return c
}

func (c *userCamera) Rotate(dx, dy float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingX += dx
	c.pendingY += dy
}

func (c *userCamera) Zoom(delta float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case delta > 0:
		c.pendingZoom++
	case delta < 0:
		c.pendingZoom--
	}
}

func (c *userCamera) Update() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.yaw -= c.pendingX * c.rotateSpeed
	c.pitch = clampPitch(c.pitch - c.pendingY*c.rotateSpeed)
	c.pendingX, c.pendingY = 0, 0

	if c.pendingZoom != 0 {
		c.zoom *= float32(math.Pow(float64(c.zoomFactor), float64(c.pendingZoom)))
		c.zoom = max(c.zoom, minZoom)
		c.pendingZoom = 0
	}
	c.updatePosition()
}

func (c *userCamera) FitToExtents(lo, hi mgl32.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.target = lo.Add(hi).Mul(0.5)

	axis := max(hi.X()-lo.X(), hi.Y()-lo.Y())
	if axis <= 0 {
		axis = hi.Sub(lo).Len()
	}
	if axis <= 0 {
		axis = 1
	}
	yfov := float64(c.yfov)
	xfov := yfov * float64(c.aspect)
	yZoom := float64(axis) / 2 / math.Tan(yfov/2)
	xZoom := float64(axis) / 2 / math.Tan(xfov/2)
	c.zoom = max(float32(math.Max(xZoom, yZoom)), minZoom)

	longest := 10 * hi.Sub(lo).Len()
	if longest <= 0 {
		longest = 10 * axis
	}
	c.zfar = c.zoom + longest*0.6
	c.znear = max(c.zoom-longest*0.6, c.zfar/10000)

	c.yaw, c.pitch = 0, 0
	c.pendingX, c.pendingY, c.pendingZoom = 0, 0, 0
	c.updatePosition()
}

func (c *userCamera) Set(s Settings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set(s)
}

func (c *userCamera) SetAspect(aspect float32) {
	if aspect <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aspect = aspect
}

func (c *userCamera) Position() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

func (c *userCamera) Target() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

func (c *userCamera) Distance() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.zoom
}

func (c *userCamera) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.znear
}

func (c *userCamera) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.zfar
}

func (c *userCamera) Projection() asset.ProjectionKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projection
}

func (c *userCamera) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return View{
		Position:   c.position,
		View:       mgl32.LookAtV(c.position, c.target, c.up),
		Projection: projectionMatrix(c.projection, c.yfov, c.aspect, c.xmag, c.ymag, c.znear, c.zfar),
	}
}

// set applies s and derives the orbit parameters from the eye/target pair.
// Caller must hold the mutex.
func (c *userCamera) set(s Settings) {
	c.target = s.Target
	c.up = s.Up
	if c.up.Len() == 0 {
		c.up = mgl32.Vec3{0, 1, 0}
	}
	c.projection = s.Projection
	c.znear = s.ZNear
	c.zfar = s.ZFar
	c.yfov = s.YFov
	c.aspect = s.AspectRatio
	c.xmag = s.XMag
	c.ymag = s.YMag

	offset := s.Eye.Sub(s.Target)
	c.zoom = max(offset.Len(), minZoom)
	c.pitch = clampPitch(float32(math.Asin(float64(mgl32.Clamp(offset.Y()/c.zoom, -1, 1)))))
	c.yaw = float32(math.Atan2(float64(offset.X()), float64(offset.Z())))
	c.pendingX, c.pendingY, c.pendingZoom = 0, 0, 0
	c.updatePosition()
}

// updatePosition recomputes the camera position from yaw, pitch and zoom around the target.
// Caller must hold the mutex.
func (c *userCamera) updatePosition() {
	cosPitch := float32(math.Cos(float64(c.pitch)))
	sinPitch := float32(math.Sin(float64(c.pitch)))
	cosYaw := float32(math.Cos(float64(c.yaw)))
	sinYaw := float32(math.Sin(float64(c.yaw)))

	dir := mgl32.Vec3{sinYaw * cosPitch, sinPitch, cosYaw * cosPitch}
	c.position = c.target.Add(dir.Mul(c.zoom))
}

func clampPitch(p float32) float32 {
	return mgl32.Clamp(p, -maxPitch, maxPitch)
}

func projectionMatrix(kind asset.ProjectionKind, yfov, aspect, xmag, ymag, znear, zfar float32) mgl32.Mat4 {
	if kind == asset.ProjectionOrthographic {
		return mgl32.Ortho(-xmag, xmag, -ymag, ymag, znear, zfar)
	}
	return mgl32.Perspective(yfov, aspect, znear, zfar)
}
