// Package scene owns the active asset: it runs loads through the loader pipeline, swaps the result in, and
// turns the active asset into renderer draw batches once per frame.
package scene

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-viewer/common"
	"github.com/Carmen-Shannon/oxy-viewer/engine/asset"
	"github.com/Carmen-Shannon/oxy-viewer/engine/camera"
	"github.com/Carmen-Shannon/oxy-viewer/engine/config"
	"github.com/Carmen-Shannon/oxy-viewer/engine/environment"
	"github.com/Carmen-Shannon/oxy-viewer/engine/input"
	"github.com/Carmen-Shannon/oxy-viewer/engine/loader"
	"github.com/Carmen-Shannon/oxy-viewer/engine/renderer"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

var (
	errNoPipeline  = errors.New("scene has no load pipeline")
	errNoReference = errors.New("nothing has been loaded yet")
	errClosed      = errors.New("scene is closed")
)

// LoadState gates drawing: frames are only drawn when it is Ready.
type LoadState int32

const (
	// LoadStateIdle means no asset is installed: before the first load and after Close.
	LoadStateIdle LoadState = iota
	// LoadStateLoading means a swap is replacing the active asset.
	LoadStateLoading
	// LoadStateReady means the active asset is fully installed.
	LoadStateReady
)

func (l LoadState) String() string {
	switch l {
	case LoadStateLoading:
		return "loading"
	case LoadStateReady:
		return "ready"
	default:
		return "idle"
	}
}

// State is the externally visible viewer state.
type State int

const (
	// StateNoAsset means nothing has been installed yet.
	StateNoAsset State = iota
	// StateLoading means at least one load is in flight.
	StateLoading
	// StateRendering means an asset is installed and no load is in flight.
	StateRendering
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateRendering:
		return "rendering"
	default:
		return "no-asset"
	}
}

// Status events.
const (
	EventLoading  = "loading"
	EventReady    = "ready"
	EventError    = "error"
	EventNavigate = "navigate"
)

// Status is a snapshot of the orchestrator, published to status observers.
type Status struct {
	Event       string `json:"event"`
	State       string `json:"state"`
	Model       string `json:"model,omitempty"`
	Scene       int    `json:"scene"`
	SceneCount  int    `json:"sceneCount"`
	CameraIndex int    `json:"cameraIndex"`
	Error       string `json:"error,omitempty"`
}

// FrameInfo is passed to the frame observer after every Frame call.
type FrameInfo struct {
	Index uint64
	Drawn bool
	State State
}

// Scene is the orchestrator between the load pipeline, the active asset, the user camera and the renderer.
//
// Loads may overlap. Each builds its own asset and the last one to complete is the one displayed.
// Frame is called from a single render goroutine; every other method is safe from any goroutine.
type Scene interface {
	input.Navigator

	// Load runs ref through the pipeline and swaps the result in. It blocks until the load completes.
	// On failure the previously installed asset stays displayed.
	//
	// Parameters:
	//   - ctx: cancels the load
	//   - ref: what to load
	//
	// Returns:
	//   - error: the pipeline error, or errClosed after Close
	Load(ctx context.Context, ref loader.Reference) error

	// LoadAsync starts Load on its own goroutine.
	//
	// Returns:
	//   - <-chan error: receives the result of the load once, then is closed
	LoadAsync(ctx context.Context, ref loader.Reference) <-chan error

	// Reload loads the most recently installed reference again.
	Reload(ctx context.Context) error

	// Frame draws one frame of the active asset at the given surface size.
	//
	// Parameters:
	//   - width: the surface width in pixels
	//   - height: the surface height in pixels
	//
	// Returns:
	//   - error: a renderer error; the frame loop logs it and carries on
	Frame(width, height int) error

	// State returns the current viewer state.
	State() State

	// LoadState returns the draw gate.
	LoadState() LoadState

	// IsRendering reports whether an asset is displayed and no load is in flight.
	IsRendering() bool

	// Asset returns the active asset, or nil.
	Asset() *asset.Asset

	// Reference returns the reference of the active asset.
	Reference() (loader.Reference, bool)

	// SceneIndex returns the selected scene index.
	SceneIndex() int

	// CameraIndex returns the selected camera index, -1 for the user camera.
	CameraIndex() int

	// Camera returns the user camera.
	Camera() camera.UserCamera

	// Parameters returns the shared rendering parameters.
	Parameters() *config.Parameters

	// Status returns a snapshot of the orchestrator.
	Status() Status

	// Close cancels loads in flight and waits for them, releases the active asset and stops the load pipeline.
	Close()
}

// scene is the implementation of the Scene interface.
type scene struct {
	pipeline loader.Pipeline
	renderer renderer.Renderer
	camera   camera.UserCamera
	params   *config.Parameters
	logger   *slog.Logger

	headless       bool
	frameObserver  func(FrameInfo)
	statusObserver func(Status)

	// swapMu serializes swaps; slotMu is held for reading for a whole frame and for writing during a swap.
	swapMu    *sync.Mutex
	slotMu    *sync.RWMutex
	active    atomic.Pointer[asset.Asset]
	loadState atomic.Int32
	inflight  atomic.Int32
	frames    atomic.Uint64

	// every load derives from life; Close cancels it and waits on loads. lifeMu orders loads.Add against Close.
	lifeMu *sync.Mutex
	life   context.Context
	stop   context.CancelFunc
	loads  sync.WaitGroup
	closed atomic.Bool

	mu          *sync.Mutex
	ref         *loader.Reference
	sceneIndex  int
	cameraIndex int
	lastErr     error
}

var _ Scene = &scene{}

// NewScene creates a new Scene with the given options applied.
// Without a renderer a Recorder is used, which is what headless runs want.
//
// Parameters:
//   - options: variadic list of SceneBuilderOption functions
//
// Returns:
//   - Scene: the orchestrator
func NewScene(options ...SceneBuilderOption) Scene {
	s := &scene{
		logger:      slog.Default(),
		swapMu:      &sync.Mutex{},
		slotMu:      &sync.RWMutex{},
		lifeMu:      &sync.Mutex{},
		mu:          &sync.Mutex{},
		cameraIndex: -1,
	}
	s.life, s.stop = context.WithCancel(context.Background())
	for _, opt := range options {
		opt(s)
	}
	if s.renderer == nil {
		s.renderer = renderer.NewRecorder()
	}
	if s.camera == nil {
		s.camera = camera.NewUserCamera()
	}
	if s.params == nil {
		s.params = config.NewParameters(config.Default().Rendering)
	}
	return s
}

func (s *scene) Load(ctx context.Context, ref loader.Reference) error {
	s.lifeMu.Lock()
	if s.closed.Load() {
		s.lifeMu.Unlock()
		return errClosed
	}
	if s.pipeline == nil {
		s.lifeMu.Unlock()
		return errNoPipeline
	}
	s.loads.Add(1)
	s.lifeMu.Unlock()
	defer s.loads.Done()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer context.AfterFunc(s.life, cancel)()

	s.inflight.Add(1)
	s.publish(EventLoading, ref.Name(), nil)

	params := s.params.Get()
	a, err := s.pipeline.Load(ctx, ref, loader.EnvironmentRequest{
		Name:   params.Environment,
		Format: environment.FormatFor(params.UseHDR),
	})
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil && s.closed.Load() {
		s.inflight.Add(-1)
		s.logger.Debug("[scene] load abandoned at close", "ref", ref.Name())
		return errClosed
	}
	if err != nil {
		s.logger.Error("[scene] load failed", "ref", ref.Name(), "error", err)
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
		s.inflight.Add(-1)
		s.publish(EventError, ref.Name(), err)
		return err
	}

	if !s.swap(a, ref) {
		s.inflight.Add(-1)
		return errClosed
	}
	s.inflight.Add(-1)
	s.logger.Info("[scene] asset installed", "ref", ref.Name(), "asset", a.ID(), "scene", s.SceneIndex())
	s.publish(EventReady, ref.Name(), nil)
	return nil
}

func (s *scene) LoadAsync(ctx context.Context, ref loader.Reference) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- s.Load(ctx, ref)
	}()
	return done
}

func (s *scene) Reload(ctx context.Context) error {
	s.mu.Lock()
	ref := s.ref
	s.mu.Unlock()
	if ref == nil {
		return errNoReference
	}
	return s.Load(ctx, *ref)
}

// swap installs a: release the previous asset, install, reset the scene index, fit the camera.
// The frame loop holds slotMu for reading, so it sees either the old asset or the new one, never a mix.
// After Close nothing is installed: a is released and swap reports false.
func (s *scene) swap(a *asset.Asset, ref loader.Reference) bool {
	s.swapMu.Lock()
	defer s.swapMu.Unlock()

	if s.closed.Load() {
		s.renderer.ReleaseAsset(a)
		return false
	}

	s.loadState.Store(int32(LoadStateLoading))
	s.slotMu.Lock()

	if prev := s.active.Load(); prev != nil {
		s.renderer.ReleaseAsset(prev)
	}
	s.active.Store(a)

	s.mu.Lock()
	s.ref = &ref
	s.sceneIndex = a.DefaultSceneIndex()
	s.lastErr = nil
	idx := s.sceneIndex
	s.mu.Unlock()

	s.fit(a, idx)

	s.slotMu.Unlock()
	s.loadState.Store(int32(LoadStateReady))
	return true
}

// fit points the user camera at the extents of a scene. Scenes without geometry leave the camera alone.
func (s *scene) fit(a *asset.Asset, idx int) {
	lo, hi, ok := a.Extents(idx)
	if !ok {
		s.logger.Debug("[scene] scene has no extents, camera left as is", "scene", idx)
		return
	}
	s.camera.FitToExtents(lo, hi)
}

func (s *scene) Frame(width, height int) error {
	index := s.frames.Add(1)

	if LoadState(s.loadState.Load()) != LoadStateReady {
		s.observe(index, false)
		return nil
	}

	s.slotMu.RLock()
	err := s.draw(width, height)
	s.slotMu.RUnlock()

	s.observe(index, err == nil)
	return err
}

// draw dispatches the active asset. Caller must hold slotMu for reading.
func (s *scene) draw(width, height int) error {
	a := s.active.Load()
	if a == nil {
		return nil
	}

	if err := s.renderer.BeginFrame(); err != nil {
		return errors.Wrap(err, "failed to begin frame")
	}
	defer s.renderer.EndFrame()
	s.renderer.Resize(width, height)

	s.mu.Lock()
	s.sceneIndex = common.Clamp(s.sceneIndex, 0, len(a.Scenes)-1)
	idx, cam := s.sceneIndex, s.cameraIndex
	s.mu.Unlock()

	if !s.headless {
		s.camera.Update()
	}

	opaque, blend := a.Partition(idx)
	if len(blend) == 0 {
		return s.renderer.DrawBatch(a, opaque, cam, false, false)
	}

	if err := s.renderer.DrawBatch(a, opaque, cam, false, false); err != nil {
		return err
	}
	blend = a.SortBackToFront(blend, s.eye(a, cam, width, height))
	return s.renderer.DrawBatch(a, blend, cam, true, true)
}

// eye is the position of the camera the frame is drawn through.
func (s *scene) eye(a *asset.Asset, cam, width, height int) mgl32.Vec3 {
	if cam >= 0 && height > 0 {
		if v, err := camera.FromAsset(a, cam, float32(width)/float32(height)); err == nil {
			return v.Position
		}
	}
	return s.camera.Position()
}

func (s *scene) observe(index uint64, drawn bool) {
	if s.frameObserver == nil {
		return
	}
	s.frameObserver(FrameInfo{Index: index, Drawn: drawn, State: s.State()})
}

func (s *scene) NavigateScene(delta int) {
	a := s.active.Load()
	if a == nil || len(a.Scenes) == 0 {
		return
	}

	s.mu.Lock()
	s.sceneIndex = common.Clamp(s.sceneIndex+delta, 0, len(a.Scenes)-1)
	idx := s.sceneIndex
	s.mu.Unlock()

	s.logger.Debug("[scene] scene selected", "scene", idx, "scenes", len(a.Scenes))
	s.publish(EventNavigate, "", nil)
}

func (s *scene) SetCameraIndex(index int) {
	if index < -1 {
		index = -1
	}
	if a := s.active.Load(); index >= 0 && (a == nil || index >= len(a.Cameras)) {
		s.logger.Debug("[scene] camera index ignored", "camera", index)
		return
	}

	s.mu.Lock()
	s.cameraIndex = index
	s.mu.Unlock()
	s.publish(EventNavigate, "", nil)
}

func (s *scene) Refit() {
	s.slotMu.RLock()
	defer s.slotMu.RUnlock()

	a := s.active.Load()
	if a == nil {
		return
	}
	s.fit(a, s.SceneIndex())
}

func (s *scene) State() State {
	if s.inflight.Load() > 0 {
		return StateLoading
	}
	if s.active.Load() != nil {
		return StateRendering
	}
	return StateNoAsset
}

func (s *scene) LoadState() LoadState {
	return LoadState(s.loadState.Load())
}

func (s *scene) IsRendering() bool {
	return s.State() == StateRendering && s.LoadState() == LoadStateReady
}

func (s *scene) Asset() *asset.Asset {
	return s.active.Load()
}

func (s *scene) Reference() (loader.Reference, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ref == nil {
		return loader.Reference{}, false
	}
	return *s.ref, true
}

func (s *scene) SceneIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sceneIndex
}

func (s *scene) CameraIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cameraIndex
}

func (s *scene) Camera() camera.UserCamera {
	return s.camera
}

func (s *scene) Parameters() *config.Parameters {
	return s.params
}

func (s *scene) Status() Status {
	return s.status("", "", nil)
}

func (s *scene) status(event, model string, err error) Status {
	st := Status{Event: event, State: s.State().String(), Model: model}
	s.mu.Lock()
	st.Scene = s.sceneIndex
	st.CameraIndex = s.cameraIndex
	if st.Model == "" && s.ref != nil {
		st.Model = s.ref.Name()
	}
	if err == nil {
		err = s.lastErr
	}
	s.mu.Unlock()
	if a := s.active.Load(); a != nil {
		st.SceneCount = len(a.Scenes)
	}
	if err != nil {
		st.Error = err.Error()
	}
	return st
}

func (s *scene) publish(event, model string, err error) {
	if s.statusObserver == nil {
		return
	}
	s.statusObserver(s.status(event, model, err))
}

func (s *scene) Close() {
	s.lifeMu.Lock()
	if s.closed.Load() {
		s.lifeMu.Unlock()
		return
	}
	s.closed.Store(true)
	s.lifeMu.Unlock()

	s.stop()
	s.loads.Wait()

	s.swapMu.Lock()
	s.slotMu.Lock()
	if prev := s.active.Swap(nil); prev != nil {
		s.renderer.ReleaseAsset(prev)
	}
	s.loadState.Store(int32(LoadStateIdle))
	s.slotMu.Unlock()
	s.swapMu.Unlock()

	if s.pipeline != nil {
		s.pipeline.Close()
	}
}
