package input

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/Carmen-Shannon/oxy-viewer/common"
	"github.com/Carmen-Shannon/oxy-viewer/engine/loader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orbitRecorder struct {
	rotations [][2]float32
	zooms     []float32
}

func (o *orbitRecorder) Rotate(dx, dy float32) { o.rotations = append(o.rotations, [2]float32{dx, dy}) }
func (o *orbitRecorder) Zoom(delta float32)    { o.zooms = append(o.zooms, delta) }

type navRecorder struct {
	steps   []int
	cameras []int
	refits  int
}

func (n *navRecorder) NavigateScene(delta int)  { n.steps = append(n.steps, delta) }
func (n *navRecorder) SetCameraIndex(index int) { n.cameras = append(n.cameras, index) }
func (n *navRecorder) Refit()                   { n.refits++ }

func TestDragRotates(t *testing.T) {
	o := &orbitRecorder{}
	c := NewController(WithOrbiter(o))

	c.PointerMove(5, 5)
	assert.Empty(t, o.rotations)
	assert.Equal(t, DragUp, c.DragState())
	assert.Equal(t, CursorGrab, c.Cursor())

	c.PointerDown(10, 10)
	assert.Equal(t, DragDown, c.DragState())
	assert.Equal(t, CursorHidden, c.Cursor())

	c.PointerMove(15, 8)
	c.PointerMove(20, 8)
	c.PointerUp()
	c.PointerMove(100, 100)

	assert.Equal(t, [][2]float32{{5, -2}, {5, 0}}, o.rotations)
	assert.Equal(t, DragUp, c.DragState())
	assert.Equal(t, CursorGrab, c.Cursor())
}

func TestWheelZoomsInAnyDragState(t *testing.T) {
	o := &orbitRecorder{}
	c := NewController(WithOrbiter(o))

	c.Wheel(1)
	c.PointerDown(0, 0)
	c.Wheel(-1)

	assert.Equal(t, []float32{1, -1}, o.zooms)
	assert.Equal(t, CursorHidden, c.Cursor())
}

func TestTouchUsesFirstPoint(t *testing.T) {
	o := &orbitRecorder{}
	c := NewController(WithOrbiter(o))

	c.TouchMove([]Point{{1, 1}})
	assert.Empty(t, o.rotations)

	c.TouchStart([]Point{{10, 10}, {500, 500}})
	c.TouchMove([]Point{{12, 13}, {0, 0}})
	c.TouchEnd()
	c.TouchMove([]Point{{50, 50}})

	assert.Equal(t, [][2]float32{{2, 3}}, o.rotations)
}

func TestInactiveIgnoresCameraInput(t *testing.T) {
	o := &orbitRecorder{}
	n := &navRecorder{}
	c := NewController(
		WithOrbiter(o),
		WithNavigator(n),
		WithActiveCheck(func() bool { return false }),
	)

	c.PointerDown(0, 0)
	c.PointerMove(10, 10)
	c.Wheel(1)
	c.KeyDown(common.KeyN)

	assert.Equal(t, DragUp, c.DragState())
	assert.Empty(t, o.rotations)
	assert.Empty(t, o.zooms)
	assert.Empty(t, n.steps)
}

func TestDropLoadsWhileInactive(t *testing.T) {
	var refs []loader.Reference
	c := NewController(
		WithActiveCheck(func() bool { return false }),
		WithLoadFunc(func(ref loader.Reference) { refs = append(refs, ref) }),
	)

	assert.True(t, c.Drop([]loader.File{loader.MemoryFile{FileName: "a.glb"}}))
	require.Len(t, refs, 1)
	assert.Equal(t, "a.glb", refs[0].Name())
}

func TestReleaseWhileInactiveEndsDrag(t *testing.T) {
	o := &orbitRecorder{}
	active := true
	c := NewController(WithOrbiter(o), WithActiveCheck(func() bool { return active }))

	c.PointerDown(0, 0)
	c.TouchStart([]Point{{0, 0}})
	active = false
	c.PointerMove(20, 20)
	c.PointerUp()
	c.TouchEnd()
	active = true
	c.PointerMove(50, 50)
	c.TouchMove([]Point{{50, 50}})

	assert.Equal(t, DragUp, c.DragState())
	assert.Equal(t, CursorGrab, c.Cursor())
	assert.Empty(t, o.rotations)
}

func TestMoveWhileInactiveKeepsAnchorCurrent(t *testing.T) {
	o := &orbitRecorder{}
	active := true
	c := NewController(WithOrbiter(o), WithActiveCheck(func() bool { return active }))

	c.PointerDown(0, 0)
	active = false
	c.PointerMove(40, 40)
	active = true
	c.PointerMove(45, 42)

	assert.Equal(t, [][2]float32{{5, 2}}, o.rotations)
}

func TestKeys(t *testing.T) {
	n := &navRecorder{}
	c := NewController(WithNavigator(n))

	for _, k := range []uint32{common.KeyPageDown, common.KeyN, common.KeyPageUp, common.KeyP, common.KeyR, common.KeyU, common.Key3, common.KeySpace} {
		c.KeyDown(k)
	}

	assert.Equal(t, []int{1, 1, -1, -1}, n.steps)
	assert.Equal(t, []int{-1, 3}, n.cameras)
	assert.Equal(t, 1, n.refits)
}

func TestDrop(t *testing.T) {
	var got []loader.Reference
	c := NewController(WithLoadFunc(func(r loader.Reference) { got = append(got, r) }))

	files := []loader.File{
		loader.MemoryFile{FileName: "model.bin"},
		loader.MemoryFile{FileName: "model.GLTF"},
		loader.MemoryFile{FileName: "texture.png"},
	}
	require.True(t, c.Drop(files))
	require.Len(t, got, 1)
	assert.Equal(t, "model.GLTF", got[0].Name())
	require.Len(t, got[0].Siblings, 2)
	assert.Equal(t, "model.bin", got[0].Siblings[0].Name())
	assert.Equal(t, "texture.png", got[0].Siblings[1].Name())
}

func TestDropLastContainerWins(t *testing.T) {
	var got loader.Reference
	c := NewController(WithLoadFunc(func(r loader.Reference) { got = r }))

	require.True(t, c.DropPaths([]string{"/tmp/a.gltf", "/tmp/b.glb"}))
	assert.Equal(t, "b.glb", got.Name())
	assert.True(t, got.IsBinary())
}

func TestDropWithoutContainerWarns(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	loads := 0
	c := NewController(
		WithLogger(logger),
		WithLoadFunc(func(loader.Reference) { loads++ }),
	)

	issued := c.Drop([]loader.File{
		loader.MemoryFile{FileName: "model.png"},
		loader.MemoryFile{FileName: "model.bin"},
	})

	assert.False(t, issued)
	assert.Zero(t, loads)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "model.png, model.bin")
}
