package camera

import (
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-viewer/engine/asset"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vecEqual(t *testing.T, want, got mgl32.Vec3) {
	t.Helper()
	assert.Truef(t, want.ApproxEqualThreshold(got, 1e-4), "want %v, got %v", want, got)
}

func TestDefaultPosition(t *testing.T) {
	c := NewUserCamera()
	vecEqual(t, mgl32.Vec3{0, 0, 0.05}, c.Position())
	vecEqual(t, mgl32.Vec3{}, c.Target())
	assert.InDelta(t, 0.01, c.Near(), 1e-6)
	assert.InDelta(t, 10000, c.Far(), 1e-3)
	assert.Equal(t, asset.ProjectionPerspective, c.Projection())
}

func TestRotateAppliedOnUpdate(t *testing.T) {
	c := NewUserCamera()
	before := c.Position()

	c.Rotate(90, 0)
	c.Rotate(90, 0)
	vecEqual(t, before, c.Position())

	c.Update()
	// 180 pixels at 1/180 rad per pixel is one radian of yaw.
	d := c.Distance()
	want := mgl32.Vec3{float32(math.Sin(-1)) * d, 0, float32(math.Cos(-1)) * d}
	vecEqual(t, want, c.Position())

	c.Update()
	vecEqual(t, want, c.Position())
}

func TestPitchClamped(t *testing.T) {
	c := NewUserCamera()
	c.Rotate(0, -100000)
	c.Update()

	p := c.Position()
	d := c.Distance()
	assert.InDelta(t, math.Sin(math.Pi/2-0.01)*float64(d), float64(p.Y()), 1e-5)

	c.Rotate(0, 200000)
	c.Update()
	p = c.Position()
	assert.InDelta(t, -math.Sin(math.Pi/2-0.01)*float64(d), float64(p.Y()), 1e-5)
}

func TestZoomSteps(t *testing.T) {
	c := NewUserCamera()
	d := c.Distance()

	c.Zoom(120)
	c.Zoom(3)
	assert.Equal(t, d, c.Distance())
	c.Update()
	assert.InDelta(t, d*1.04*1.04, c.Distance(), 1e-6)

	c.Zoom(-1)
	c.Zoom(0)
	c.Update()
	assert.InDelta(t, d*1.04, c.Distance(), 1e-6)
}

func TestFitToExtents(t *testing.T) {
	c := NewUserCamera(WithAspect(1))
	c.Rotate(50, 50)
	c.FitToExtents(mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{1, 1, 1})

	vecEqual(t, mgl32.Vec3{}, c.Target())

	yfov := float64(mgl32.DegToRad(45))
	want := 1 / math.Tan(yfov/2)
	assert.InDelta(t, want, float64(c.Distance()), 1e-4)
	vecEqual(t, mgl32.Vec3{0, 0, float32(want)}, c.Position())

	longest := 10 * math.Sqrt(12)
	far := want + 0.6*longest
	assert.InDelta(t, far, float64(c.Far()), 1e-3)
	assert.InDelta(t, far/10000, float64(c.Near()), 1e-5)

	// pending input was discarded by the fit
	c.Update()
	vecEqual(t, mgl32.Vec3{0, 0, float32(want)}, c.Position())
}

func TestFitToExtentsWideAspect(t *testing.T) {
	c := NewUserCamera(WithAspect(0.5))
	c.FitToExtents(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{4, 2, 0})

	vecEqual(t, mgl32.Vec3{2, 1, 0}, c.Target())
	yfov := float64(mgl32.DegToRad(45))
	xZoom := 2 / math.Tan(yfov*0.5/2)
	assert.InDelta(t, xZoom, float64(c.Distance()), 1e-3)
}

func TestFitIsRepeatable(t *testing.T) {
	c := NewUserCamera()
	c.FitToExtents(mgl32.Vec3{-1, 0, -1}, mgl32.Vec3{1, 2, 1})
	first := c.View()

	c.FitToExtents(mgl32.Vec3{-10, -10, -10}, mgl32.Vec3{10, 10, 10})
	c.Rotate(30, 10)
	c.Update()

	c.FitToExtents(mgl32.Vec3{-1, 0, -1}, mgl32.Vec3{1, 2, 1})
	assert.True(t, first.View.ApproxEqual(c.View().View))
	vecEqual(t, first.Position, c.Position())
}

func TestSet(t *testing.T) {
	c := NewUserCamera()
	c.Set(Settings{
		Eye:         mgl32.Vec3{3, 0, 0},
		Target:      mgl32.Vec3{1, 0, 0},
		Up:          mgl32.Vec3{0, 1, 0},
		Projection:  asset.ProjectionOrthographic,
		ZNear:       0.1,
		ZFar:        50,
		YFov:        1,
		AspectRatio: 2,
		XMag:        2,
		YMag:        1,
	})

	vecEqual(t, mgl32.Vec3{3, 0, 0}, c.Position())
	assert.InDelta(t, 2, c.Distance(), 1e-5)
	assert.Equal(t, asset.ProjectionOrthographic, c.Projection())

	v := c.View()
	assert.True(t, v.Projection.ApproxEqual(mgl32.Ortho(-2, 2, -1, 1, 0.1, 50)))
	// the target sits on the negative view axis
	target := mgl32.TransformCoordinate(mgl32.Vec3{1, 0, 0}, v.View)
	vecEqual(t, mgl32.Vec3{0, 0, -2}, target)
}

func TestSetAspectIgnoresNonPositive(t *testing.T) {
	c := NewUserCamera(WithAspect(2))
	c.SetAspect(0)
	c.SetAspect(-1)
	v := c.View()
	assert.True(t, v.Projection.ApproxEqual(mgl32.Perspective(mgl32.DegToRad(45), 2, 0.01, 10000)))
}

func TestFromAsset(t *testing.T) {
	aspect := float32(1.5)
	a := asset.New("cams.gltf")
	a.Cameras = []asset.Camera{
		{Projection: asset.ProjectionPerspective, YFov: 0.8, AspectRatio: &aspect, ZNear: 0.1, ZFar: 100},
		{Projection: asset.ProjectionOrthographic, XMag: 1, YMag: 1, ZNear: 0.1, ZFar: 10},
	}
	a.Nodes = []asset.Node{
		{Children: []int{1}, Translation: mgl32.Vec3{0, 5, 0}},
		{Camera: asset.Ref(0), Translation: mgl32.Vec3{0, 0, 10}},
		{Camera: asset.Ref(0), Translation: mgl32.Vec3{100, 0, 0}},
	}
	a.Scenes = []asset.Scene{{Nodes: []int{0, 2}}}
	require.NoError(t, asset.ResolveHierarchy(a))

	v, err := FromAsset(a, 0, 1)
	require.NoError(t, err)
	vecEqual(t, mgl32.Vec3{0, 5, 10}, v.Position)
	vecEqual(t, mgl32.Vec3{}, mgl32.TransformCoordinate(mgl32.Vec3{0, 5, 10}, v.View))
	assert.True(t, v.Projection.ApproxEqual(mgl32.Perspective(0.8, 1.5, 0.1, 100)))

	_, err = FromAsset(a, 1, 1)
	assert.ErrorIs(t, err, errCameraNotPlaced)

	_, err = FromAsset(a, 2, 1)
	assert.ErrorIs(t, err, errCameraIndexRange)
	_, err = FromAsset(a, -1, 1)
	assert.ErrorIs(t, err, errCameraIndexRange)
}
