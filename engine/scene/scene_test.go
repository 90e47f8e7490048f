package scene

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-viewer/engine/asset"
	"github.com/Carmen-Shannon/oxy-viewer/engine/camera"
	"github.com/Carmen-Shannon/oxy-viewer/engine/config"
	"github.com/Carmen-Shannon/oxy-viewer/engine/environment"
	"github.com/Carmen-Shannon/oxy-viewer/engine/input"
	"github.com/Carmen-Shannon/oxy-viewer/engine/loader"
	"github.com/Carmen-Shannon/oxy-viewer/engine/renderer"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testTimeout = 2 * time.Second
	testTick    = 5 * time.Millisecond
)

type fakePipeline struct {
	mu       sync.Mutex
	builders map[string]func() (*asset.Asset, error)
	gates    map[string]chan struct{}
	requests []loader.EnvironmentRequest
	loads    []string
	closed   bool
}

func newFakePipeline() *fakePipeline {
	return &fakePipeline{
		builders: make(map[string]func() (*asset.Asset, error)),
		gates:    make(map[string]chan struct{}),
	}
}

func (p *fakePipeline) add(path string, build func() (*asset.Asset, error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.builders[path] = build
}

func (p *fakePipeline) gate(path string) chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := make(chan struct{})
	p.gates[path] = ch
	return ch
}

func (p *fakePipeline) Load(ctx context.Context, ref loader.Reference, env loader.EnvironmentRequest) (*asset.Asset, error) {
	p.mu.Lock()
	p.requests = append(p.requests, env)
	p.loads = append(p.loads, ref.Name())
	build, ok := p.builders[ref.Name()]
	gate := p.gates[ref.Name()]
	p.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if !ok {
		return nil, &loader.SubResourceFetchError{URI: ref.Name(), Kind: "document", Err: errors.New("not found")}
	}
	return build()
}

func (p *fakePipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}

// buildAsset creates an asset with the given number of opaque and blended nodes in every scene.
// Opaque nodes sit at x = 0, 1, ...; blended nodes at z = blendZ[i].
func buildAsset(path string, opaque int, blendZ []float32, scenes int) func() (*asset.Asset, error) {
	return func() (*asset.Asset, error) {
		a := asset.New(path)
		a.Accessors = []asset.Accessor{{Type: asset.TypeVec3, ComponentType: asset.ComponentFloat, Count: 3,
			Min: []float32{-1, -1, -1}, Max: []float32{1, 1, 1}}}
		a.Materials = []asset.Material{
			{AlphaMode: asset.AlphaOpaque},
			{AlphaMode: asset.AlphaBlend},
		}
		prim := func(mat int) asset.Primitive {
			return asset.Primitive{Attributes: map[string]int{"POSITION": 0}, Material: asset.Ref(mat), Mode: 4}
		}
		a.Meshes = []asset.Mesh{
			{Primitives: []asset.Primitive{prim(0)}},
			{Primitives: []asset.Primitive{prim(0), prim(1)}},
		}

		var roots []int
		for i := range opaque {
			a.Nodes = append(a.Nodes, asset.Node{Mesh: asset.Ref(0), Translation: mgl32.Vec3{float32(i), 0, 0}})
			roots = append(roots, len(a.Nodes)-1)
		}
		for _, z := range blendZ {
			a.Nodes = append(a.Nodes, asset.Node{Mesh: asset.Ref(1), Translation: mgl32.Vec3{0, 0, z}})
			roots = append(roots, len(a.Nodes)-1)
		}
		for range scenes {
			a.Scenes = append(a.Scenes, asset.Scene{Nodes: roots})
		}
		if err := asset.ResolveHierarchy(a); err != nil {
			return nil, err
		}
		return a, nil
	}
}

func newTestScene(t *testing.T, options ...SceneBuilderOption) (Scene, *fakePipeline, *renderer.Recorder) {
	t.Helper()
	p := newFakePipeline()
	rec := renderer.NewRecorder()
	s := NewScene(append([]SceneBuilderOption{WithPipeline(p), WithRenderer(rec)}, options...)...)
	t.Cleanup(s.Close)
	return s, p, rec
}

func TestLoadInstallsAsset(t *testing.T) {
	s, p, _ := newTestScene(t)
	p.add("a.gltf", buildAsset("a.gltf", 2, nil, 1))

	assert.Equal(t, StateNoAsset, s.State())
	assert.Equal(t, LoadStateIdle, s.LoadState())
	assert.False(t, s.IsRendering())

	require.NoError(t, s.Load(context.Background(), loader.Reference{Path: "a.gltf"}))

	assert.Equal(t, StateRendering, s.State())
	assert.Equal(t, LoadStateReady, s.LoadState())
	assert.True(t, s.IsRendering())
	require.NotNil(t, s.Asset())
	assert.Equal(t, "a.gltf", s.Asset().Path)

	ref, ok := s.Reference()
	require.True(t, ok)
	assert.Equal(t, "a.gltf", ref.Name())

	require.Len(t, p.requests, 1)
	assert.Equal(t, config.DefaultEnvironment, p.requests[0].Name)
	assert.Equal(t, environment.FormatJPEG, p.requests[0].Format)

	assert.True(t, s.Camera().Target().ApproxEqual(mgl32.Vec3{0.5, 0, 0}))
}

func TestLoadUsesHDRParameter(t *testing.T) {
	params := config.NewParameters(config.RenderingConfig{Environment: "field", UseHDR: true})
	s, p, _ := newTestScene(t, WithParameters(params))
	p.add("a.gltf", buildAsset("a.gltf", 1, nil, 1))

	require.NoError(t, s.Load(context.Background(), loader.Reference{Path: "a.gltf"}))
	require.Len(t, p.requests, 1)
	assert.Equal(t, loader.EnvironmentRequest{Name: "field", Format: environment.FormatHDR}, p.requests[0])
}

func TestFrameWithoutBlendIsOneBatch(t *testing.T) {
	s, p, rec := newTestScene(t)
	p.add("a.gltf", buildAsset("a.gltf", 3, nil, 1))
	require.NoError(t, s.Load(context.Background(), loader.Reference{Path: "a.gltf"}))

	require.NoError(t, s.Frame(800, 600))

	batches := rec.Batches()
	require.Len(t, batches, 1)
	assert.Equal(t, []int{0, 1, 2}, batches[0].Nodes)
	assert.False(t, batches[0].AlphaBlend)
	assert.False(t, batches[0].Sort)
	assert.Equal(t, -1, batches[0].CameraIndex)
	assert.Equal(t, 1, rec.Frames())

	w, h := rec.Size()
	assert.Equal(t, 800, w)
	assert.Equal(t, 600, h)
}

func TestFrameWithBlendIsTwoBatches(t *testing.T) {
	s, p, rec := newTestScene(t)
	p.add("a.gltf", buildAsset("a.gltf", 2, []float32{-3}, 1))
	require.NoError(t, s.Load(context.Background(), loader.Reference{Path: "a.gltf"}))

	require.NoError(t, s.Frame(800, 600))

	batches := rec.Batches()
	require.Len(t, batches, 2)
	assert.Equal(t, []int{0, 1}, batches[0].Nodes)
	assert.False(t, batches[0].AlphaBlend)
	assert.Equal(t, []int{2}, batches[1].Nodes)
	assert.True(t, batches[1].AlphaBlend)
	assert.True(t, batches[1].Sort)
}

func TestBlendBatchIsBackToFront(t *testing.T) {
	s, p, rec := newTestScene(t)
	p.add("a.gltf", buildAsset("a.gltf", 1, []float32{-1, -10, 4, -5}, 1))
	require.NoError(t, s.Load(context.Background(), loader.Reference{Path: "a.gltf"}))

	s.Camera().Rotate(40, 15)
	require.NoError(t, s.Frame(800, 600))

	batches := rec.Batches()
	require.Len(t, batches, 2)
	blend := batches[1].Nodes
	require.Len(t, blend, 4)

	a := s.Asset()
	eye := s.Camera().Position()
	for i := 1; i < len(blend); i++ {
		prev := a.Nodes[blend[i-1]].WorldPosition().Sub(eye).Len()
		cur := a.Nodes[blend[i]].WorldPosition().Sub(eye).Len()
		assert.GreaterOrEqual(t, prev, cur)
	}
}

func TestFrameSkippedWithoutAsset(t *testing.T) {
	var infos []FrameInfo
	s, _, rec := newTestScene(t, WithFrameObserver(func(fi FrameInfo) { infos = append(infos, fi) }))

	require.NoError(t, s.Frame(800, 600))
	require.NoError(t, s.Frame(800, 600))

	assert.Empty(t, rec.Batches())
	assert.Equal(t, 0, rec.Frames())
	require.Len(t, infos, 2)
	assert.False(t, infos[0].Drawn)
	assert.Equal(t, uint64(2), infos[1].Index)
	assert.Equal(t, StateNoAsset, infos[1].State)
}

func TestFrameBeginErrorIsReported(t *testing.T) {
	var drawn []bool
	s, p, rec := newTestScene(t, WithFrameObserver(func(fi FrameInfo) { drawn = append(drawn, fi.Drawn) }))
	p.add("a.gltf", buildAsset("a.gltf", 1, nil, 1))
	require.NoError(t, s.Load(context.Background(), loader.Reference{Path: "a.gltf"}))

	rec.BeginErr = errors.New("surface lost")
	assert.Error(t, s.Frame(10, 10))
	rec.BeginErr = nil
	assert.NoError(t, s.Frame(10, 10))
	assert.Equal(t, []bool{false, true}, drawn)
}

func TestSwapReleasesPreviousAsset(t *testing.T) {
	s, p, rec := newTestScene(t)
	p.add("a.gltf", buildAsset("a.gltf", 1, nil, 1))
	p.add("b.gltf", buildAsset("b.gltf", 2, nil, 1))

	require.NoError(t, s.Load(context.Background(), loader.Reference{Path: "a.gltf"}))
	first := s.Asset()
	require.NoError(t, s.Frame(10, 10))
	assert.Empty(t, rec.Released())

	require.NoError(t, s.Load(context.Background(), loader.Reference{Path: "b.gltf"}))
	second := s.Asset()
	assert.Equal(t, []uint64{first.ID()}, rec.Released())

	rec.Reset()
	require.NoError(t, s.Frame(10, 10))
	for _, b := range rec.Batches() {
		assert.Equal(t, second.ID(), b.AssetID)
	}
}

func TestEmptyAssetLeavesStateUnchanged(t *testing.T) {
	s, p, rec := newTestScene(t)
	p.add("a.gltf", buildAsset("a.gltf", 1, nil, 1))
	p.add("empty.gltf", func() (*asset.Asset, error) {
		return nil, &loader.EmptyAssetError{Path: "empty.gltf"}
	})

	err := s.Load(context.Background(), loader.Reference{Path: "empty.gltf"})
	var empty *loader.EmptyAssetError
	require.ErrorAs(t, err, &empty)
	assert.Equal(t, LoadStateIdle, s.LoadState())
	assert.Equal(t, StateNoAsset, s.State())

	require.NoError(t, s.Load(context.Background(), loader.Reference{Path: "a.gltf"}))
	installed := s.Asset()

	err = s.Load(context.Background(), loader.Reference{Path: "empty.gltf"})
	require.ErrorAs(t, err, &empty)
	assert.Equal(t, LoadStateReady, s.LoadState())
	assert.Equal(t, StateRendering, s.State())
	assert.Same(t, installed, s.Asset())
	assert.Empty(t, rec.Released())
	assert.Contains(t, s.Status().Error, "no scenes")
}

func TestLastCompletionWins(t *testing.T) {
	s, p, rec := newTestScene(t)
	p.add("slow.gltf", buildAsset("slow.gltf", 1, nil, 1))
	p.add("fast.gltf", buildAsset("fast.gltf", 1, nil, 1))
	gate := p.gate("slow.gltf")

	slow := s.LoadAsync(context.Background(), loader.Reference{Path: "slow.gltf"})
	require.Eventually(t, func() bool { return s.State() == StateLoading }, testTimeout, testTick)

	require.NoError(t, s.Load(context.Background(), loader.Reference{Path: "fast.gltf"}))
	assert.Equal(t, "fast.gltf", s.Asset().Path)
	assert.Equal(t, StateLoading, s.State())
	fast := s.Asset()

	close(gate)
	require.NoError(t, <-slow)
	assert.Equal(t, "slow.gltf", s.Asset().Path)
	assert.Equal(t, StateRendering, s.State())
	assert.Equal(t, []uint64{fast.ID()}, rec.Released())
}

func TestCancelledLoadIsNotInstalled(t *testing.T) {
	s, p, _ := newTestScene(t)
	p.add("a.gltf", buildAsset("a.gltf", 1, nil, 1))
	p.gate("a.gltf")

	ctx, cancel := context.WithCancel(context.Background())
	done := s.LoadAsync(ctx, loader.Reference{Path: "a.gltf"})
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Nil(t, s.Asset())
}

func TestNavigateSceneClamps(t *testing.T) {
	s, p, rec := newTestScene(t)
	p.add("a.gltf", buildAsset("a.gltf", 1, nil, 3))

	s.NavigateScene(1)
	assert.Equal(t, 0, s.SceneIndex())

	require.NoError(t, s.Load(context.Background(), loader.Reference{Path: "a.gltf"}))

	steps := []int{1, 1, 1, 1, -1, -5, 2, 7, -1}
	for _, d := range steps {
		s.NavigateScene(d)
		idx := s.SceneIndex()
		assert.GreaterOrEqual(t, idx, 0)
		assert.LessOrEqual(t, idx, 2)
		require.NoError(t, s.Frame(10, 10))
	}
	assert.Equal(t, 1, s.SceneIndex())
	assert.Len(t, rec.Batches(), len(steps))
}

func TestDefaultSceneAndRoundTrip(t *testing.T) {
	withDefault := func(path string, def int) func() (*asset.Asset, error) {
		build := buildAsset(path, 2, []float32{-2}, 3)
		return func() (*asset.Asset, error) {
			a, err := build()
			if err == nil {
				a.DefaultScene = asset.Ref(def)
			}
			return a, err
		}
	}

	s, p, _ := newTestScene(t)
	p.add("a.gltf", withDefault("a.gltf", 2))
	p.add("b.gltf", buildAsset("b.gltf", 5, nil, 1))

	fresh, fp, _ := newTestScene(t)
	fp.add("a.gltf", withDefault("a.gltf", 2))
	require.NoError(t, fresh.Load(context.Background(), loader.Reference{Path: "a.gltf"}))

	require.NoError(t, s.Load(context.Background(), loader.Reference{Path: "a.gltf"}))
	assert.Equal(t, 2, s.SceneIndex())
	s.NavigateScene(-1)
	require.NoError(t, s.Load(context.Background(), loader.Reference{Path: "b.gltf"}))
	assert.Equal(t, 0, s.SceneIndex())
	require.NoError(t, s.Load(context.Background(), loader.Reference{Path: "a.gltf"}))

	assert.Equal(t, fresh.SceneIndex(), s.SceneIndex())
	assert.True(t, fresh.Camera().Position().ApproxEqual(s.Camera().Position()))
	assert.True(t, fresh.Camera().Target().ApproxEqual(s.Camera().Target()))
	assert.InDelta(t, fresh.Camera().Distance(), s.Camera().Distance(), 1e-5)
	assert.InDelta(t, fresh.Camera().Far(), s.Camera().Far(), 1e-3)
}

func TestSetCameraIndex(t *testing.T) {
	s, p, rec := newTestScene(t)
	build := buildAsset("a.gltf", 1, nil, 1)
	p.add("a.gltf", func() (*asset.Asset, error) {
		a, err := build()
		if err != nil {
			return nil, err
		}
		a.Cameras = []asset.Camera{{YFov: 1, ZNear: 0.1, ZFar: 100}}
		a.Nodes = append(a.Nodes, asset.Node{Camera: asset.Ref(0), Translation: mgl32.Vec3{0, 0, 5}})
		return a, asset.ResolveHierarchy(a)
	})

	s.SetCameraIndex(0)
	assert.Equal(t, -1, s.CameraIndex(), "no asset, no cameras")

	require.NoError(t, s.Load(context.Background(), loader.Reference{Path: "a.gltf"}))
	s.SetCameraIndex(0)
	assert.Equal(t, 0, s.CameraIndex())
	s.SetCameraIndex(3)
	assert.Equal(t, 0, s.CameraIndex())

	require.NoError(t, s.Frame(10, 10))
	assert.Equal(t, 0, rec.Batches()[0].CameraIndex)

	s.SetCameraIndex(-7)
	assert.Equal(t, -1, s.CameraIndex())
}

func TestHeadlessSkipsCameraUpdate(t *testing.T) {
	for _, headless := range []bool{true, false} {
		cam := camera.NewUserCamera()
		s, p, _ := newTestScene(t, WithHeadless(headless), WithCamera(cam))
		p.add("a.gltf", buildAsset("a.gltf", 1, nil, 1))
		require.NoError(t, s.Load(context.Background(), loader.Reference{Path: "a.gltf"}))

		before := cam.Position()
		cam.Rotate(90, 0)
		require.NoError(t, s.Frame(10, 10))
		assert.Equal(t, headless, before.ApproxEqual(cam.Position()), "headless=%v", headless)
	}
}

func TestRefit(t *testing.T) {
	cam := camera.NewUserCamera()
	s, p, _ := newTestScene(t, WithCamera(cam))
	p.add("a.gltf", buildAsset("a.gltf", 1, nil, 1))
	require.NoError(t, s.Load(context.Background(), loader.Reference{Path: "a.gltf"}))

	fitted := cam.Position()
	cam.Zoom(1)
	cam.Rotate(30, 30)
	cam.Update()
	require.False(t, fitted.ApproxEqual(cam.Position()))

	s.Refit()
	assert.True(t, fitted.ApproxEqual(cam.Position()))
}

func TestStatusObserver(t *testing.T) {
	var mu sync.Mutex
	var events []Status
	s, p, _ := newTestScene(t, WithStatusObserver(func(st Status) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, st)
	}))
	p.add("a.gltf", buildAsset("a.gltf", 1, nil, 2))

	require.NoError(t, s.Load(context.Background(), loader.Reference{Path: "a.gltf"}))
	assert.Error(t, s.Load(context.Background(), loader.Reference{Path: "missing.gltf"}))
	s.NavigateScene(1)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 5)
	assert.Equal(t, EventLoading, events[0].Event)
	assert.Equal(t, "loading", events[0].State)
	assert.Equal(t, EventReady, events[1].Event)
	assert.Equal(t, "rendering", events[1].State)
	assert.Equal(t, 2, events[1].SceneCount)
	assert.Equal(t, EventLoading, events[2].Event)
	assert.Equal(t, EventError, events[3].Event)
	assert.Equal(t, "missing.gltf", events[3].Model)
	assert.Contains(t, events[3].Error, "not found")
	assert.Equal(t, EventNavigate, events[4].Event)
	assert.Equal(t, 1, events[4].Scene)
	assert.Equal(t, "a.gltf", events[4].Model)
}

func TestReload(t *testing.T) {
	s, p, rec := newTestScene(t)
	assert.ErrorIs(t, s.Reload(context.Background()), errNoReference)

	p.add("a.gltf", buildAsset("a.gltf", 1, nil, 1))
	require.NoError(t, s.Load(context.Background(), loader.Reference{Path: "a.gltf"}))
	first := s.Asset()
	require.NoError(t, s.Reload(context.Background()))

	assert.Equal(t, []string{"a.gltf", "a.gltf"}, p.loads)
	assert.NotEqual(t, first.ID(), s.Asset().ID())
	assert.Equal(t, []uint64{first.ID()}, rec.Released())
}

func TestCloseReleasesAndStopsPipeline(t *testing.T) {
	s, p, rec := newTestScene(t)
	p.add("a.gltf", buildAsset("a.gltf", 1, nil, 1))
	require.NoError(t, s.Load(context.Background(), loader.Reference{Path: "a.gltf"}))
	id := s.Asset().ID()

	s.Close()
	s.Close()

	assert.True(t, p.closed)
	assert.Equal(t, []uint64{id}, rec.Released())
	assert.Nil(t, s.Asset())
	assert.ErrorIs(t, s.Load(context.Background(), loader.Reference{Path: "a.gltf"}), errClosed)
	assert.NoError(t, s.Frame(10, 10))
}

func TestCloseCancelsLoadInFlight(t *testing.T) {
	s, p, rec := newTestScene(t)
	p.add("a.gltf", buildAsset("a.gltf", 1, nil, 1))
	p.gate("a.gltf")

	done := s.LoadAsync(context.Background(), loader.Reference{Path: "a.gltf"})
	require.Eventually(t, func() bool { return s.State() == StateLoading }, testTimeout, testTick)

	s.Close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, errClosed)
	case <-time.After(testTimeout):
		t.Fatal("load still running after Close")
	}
	assert.Nil(t, s.Asset())
	assert.Equal(t, LoadStateIdle, s.LoadState())
	assert.Empty(t, rec.Released())
	assert.True(t, p.closed)
}

func TestSwapAfterCloseReleasesAsset(t *testing.T) {
	s, _, rec := newTestScene(t)
	a, err := buildAsset("a.gltf", 1, nil, 1)()
	require.NoError(t, err)

	s.Close()
	assert.False(t, s.(*scene).swap(a, loader.Reference{Path: "a.gltf"}))

	assert.Nil(t, s.Asset())
	assert.Equal(t, LoadStateIdle, s.LoadState())
	assert.Equal(t, []uint64{a.ID()}, rec.Released())
}

type rotationCounter struct {
	mu        sync.Mutex
	rotations int
}

func (r *rotationCounter) Rotate(dx, dy float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rotations++
}

func (r *rotationCounter) Zoom(float32) {}

func (r *rotationCounter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rotations
}

// newWiredController connects a controller to s the same way the viewer command does.
func newWiredController(s Scene, o input.Orbiter) input.Controller {
	return input.NewController(
		input.WithOrbiter(o),
		input.WithNavigator(s),
		input.WithLoadFunc(func(ref loader.Reference) { s.LoadAsync(context.Background(), ref) }),
		input.WithActiveCheck(s.IsRendering),
	)
}

func TestDropLoadsBeforeFirstAsset(t *testing.T) {
	s, p, _ := newTestScene(t)
	p.add("model.glb", buildAsset("model.glb", 1, nil, 1))
	c := newWiredController(s, &rotationCounter{})

	require.False(t, s.IsRendering())
	assert.True(t, c.Drop([]loader.File{loader.MemoryFile{FileName: "model.glb"}}))

	require.Eventually(t, s.IsRendering, testTimeout, testTick)
	assert.Equal(t, "model.glb", s.Asset().Path)
}

func TestReleaseDuringLoadEndsDrag(t *testing.T) {
	s, p, _ := newTestScene(t)
	p.add("a.gltf", buildAsset("a.gltf", 1, nil, 1))
	p.add("b.gltf", buildAsset("b.gltf", 1, nil, 1))
	require.NoError(t, s.Load(context.Background(), loader.Reference{Path: "a.gltf"}))

	o := &rotationCounter{}
	c := newWiredController(s, o)
	c.PointerDown(0, 0)

	gate := p.gate("b.gltf")
	done := s.LoadAsync(context.Background(), loader.Reference{Path: "b.gltf"})
	require.Eventually(t, func() bool { return s.State() == StateLoading }, testTimeout, testTick)
	c.PointerUp()
	close(gate)
	require.NoError(t, <-done)

	require.True(t, s.IsRendering())
	c.PointerMove(50, 50)
	assert.Equal(t, input.DragUp, c.DragState())
	assert.Zero(t, o.count())
}

func TestLoadWithoutPipeline(t *testing.T) {
	s := NewScene()
	assert.ErrorIs(t, s.Load(context.Background(), loader.Reference{Path: "a.gltf"}), errNoPipeline)
}
