package asset

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMixedAsset builds one scene with two opaque meshes and one blended mesh:
//
//	0 (opaque) -> 1 (blend)
//	2 (no mesh) -> 3 (opaque)
func newMixedAsset() *Asset {
	a := New("mixed.gltf")
	a.Materials = []Material{
		{Name: "solid", AlphaMode: AlphaOpaque},
		{Name: "glass", AlphaMode: AlphaBlend},
	}
	a.Meshes = []Mesh{
		{Name: "solid", Primitives: []Primitive{{Material: Ref(0)}}},
		{Name: "glass", Primitives: []Primitive{{Material: Ref(0)}, {Material: Ref(1)}}},
		{Name: "bare", Primitives: []Primitive{{}}},
	}
	a.Nodes = []Node{
		{Name: "a", Mesh: Ref(0), Children: []int{1}},
		{Name: "b", Mesh: Ref(1), Translation: mgl32.Vec3{0, 0, -5}},
		{Name: "group", Children: []int{3}},
		{Name: "c", Mesh: Ref(2), Translation: mgl32.Vec3{2, 0, 0}},
	}
	a.Scenes = []Scene{{Name: "main", Nodes: []int{0, 2}}}
	return a
}

func TestNewAssignsUniqueIDs(t *testing.T) {
	a, b := New("a"), New("b")
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, 0, a.DefaultSceneIndex())
	a.DefaultScene = Ref(2)
	assert.Equal(t, 2, a.DefaultSceneIndex())
}

func TestResolveHierarchyComposesTransforms(t *testing.T) {
	a := newMixedAsset()
	a.Nodes[0].Translation = mgl32.Vec3{1, 0, 0}
	scale := mgl32.Vec3{2, 2, 2}
	a.Nodes[0].Scale = &scale

	require.NoError(t, ResolveHierarchy(a))
	assert.True(t, a.Nodes[1].WorldPosition().ApproxEqual(mgl32.Vec3{1, 0, -10}))
	assert.True(t, a.Nodes[3].WorldPosition().ApproxEqual(mgl32.Vec3{2, 0, 0}))
}

func TestResolveHierarchyMatrixWins(t *testing.T) {
	a := newMixedAsset()
	m := mgl32.Translate3D(0, 7, 0)
	a.Nodes[2].Matrix = &m
	a.Nodes[2].Translation = mgl32.Vec3{100, 100, 100}

	require.NoError(t, ResolveHierarchy(a))
	assert.True(t, a.Nodes[3].WorldPosition().ApproxEqual(mgl32.Vec3{2, 7, 0}))
}

func TestResolveHierarchyRejectsMalformedGraphs(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(a *Asset)
		node   int
	}{
		{
			name:   "cycle",
			mutate: func(a *Asset) { a.Nodes[1].Children = []int{0} },
			node:   0,
		},
		{
			name:   "self parent",
			mutate: func(a *Asset) { a.Nodes[3].Children = []int{3} },
			node:   3,
		},
		{
			name:   "two parents",
			mutate: func(a *Asset) { a.Nodes[2].Children = []int{3, 1} },
			node:   1,
		},
		{
			name:   "child out of range",
			mutate: func(a *Asset) { a.Nodes[2].Children = []int{9} },
			node:   2,
		},
		{
			name:   "root out of range",
			mutate: func(a *Asset) { a.Scenes[0].Nodes = append(a.Scenes[0].Nodes, 12) },
			node:   12,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newMixedAsset()
			tt.mutate(a)

			err := ResolveHierarchy(a)
			var malformed *MalformedAssetError
			require.True(t, errors.As(err, &malformed), "got %v", err)
			assert.Equal(t, tt.node, malformed.Node)
		})
	}
}

func TestResolveHierarchyDetectsDetachedCycle(t *testing.T) {
	a := newMixedAsset()
	a.Nodes = append(a.Nodes, Node{Name: "x", Children: []int{5}}, Node{Name: "y", Children: []int{4}})

	var malformed *MalformedAssetError
	assert.ErrorAs(t, ResolveHierarchy(a), &malformed)
}

func TestPartitionCoversDrawablesOnce(t *testing.T) {
	a := newMixedAsset()
	require.NoError(t, ResolveHierarchy(a))

	drawables := a.Drawables(0)
	assert.Equal(t, []int{0, 1, 3}, drawables)

	opaque, blend := a.Partition(0)
	assert.Equal(t, []int{0, 3}, opaque)
	assert.Equal(t, []int{1}, blend)
	assert.ElementsMatch(t, drawables, append(append([]int{}, opaque...), blend...))

	opaque, blend = a.Partition(4)
	assert.Empty(t, opaque)
	assert.Empty(t, blend)
}

func TestSortBackToFront(t *testing.T) {
	a := New("sort.gltf")
	a.Nodes = []Node{
		{Translation: mgl32.Vec3{0, 0, -1}},
		{Translation: mgl32.Vec3{0, 0, -10}},
		{Translation: mgl32.Vec3{0, 0, -5}},
		{Translation: mgl32.Vec3{0, 0, -10}},
	}
	a.Scenes = []Scene{{Nodes: []int{0, 1, 2, 3}}}
	require.NoError(t, ResolveHierarchy(a))

	eye := mgl32.Vec3{0, 0, 3}
	in := []int{0, 1, 2, 3}
	sorted := a.SortBackToFront(in, eye)

	assert.Equal(t, []int{1, 3, 2, 0}, sorted)
	assert.Equal(t, []int{0, 1, 2, 3}, in)
	for i := 1; i < len(sorted); i++ {
		prev := a.Nodes[sorted[i-1]].WorldPosition().Sub(eye).Len()
		cur := a.Nodes[sorted[i]].WorldPosition().Sub(eye).Len()
		assert.GreaterOrEqual(t, prev, cur)
	}
}

func TestExtents(t *testing.T) {
	a := New("box.gltf")
	a.Accessors = []Accessor{{Type: TypeVec3, ComponentType: ComponentFloat, Count: 8, Min: []float32{-1, -1, -1}, Max: []float32{1, 1, 1}}}
	a.Meshes = []Mesh{{Primitives: []Primitive{{Attributes: map[string]int{"POSITION": 0}}}}}
	a.Nodes = []Node{{Mesh: Ref(0), Translation: mgl32.Vec3{10, 0, 0}}}
	a.Scenes = []Scene{{Nodes: []int{0}}}
	require.NoError(t, ResolveHierarchy(a))

	lo, hi, ok := a.Extents(0)
	require.True(t, ok)
	r := float32(math.Sqrt(3))
	assert.InDelta(t, 10-r, lo.X(), 1e-5)
	assert.InDelta(t, 10+r, hi.X(), 1e-5)
	assert.InDelta(t, -r, lo.Y(), 1e-5)
	assert.InDelta(t, r, hi.Z(), 1e-5)

	_, _, ok = New("empty").Extents(0)
	assert.False(t, ok)
}

func TestReadAccessors(t *testing.T) {
	buf := make([]byte, 0, 64)
	for _, f := range []float32{1, 2, 3, 4, 5, 6} {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
	}
	for _, i := range []uint16{0, 1, 0} {
		buf = binary.LittleEndian.AppendUint16(buf, i)
	}

	a := New("accessors.gltf")
	a.Buffers = []Buffer{{ByteLength: len(buf), Data: buf}}
	a.BufferViews = []BufferView{
		{Buffer: 0, ByteOffset: 0, ByteLength: 24},
		{Buffer: 0, ByteOffset: 24, ByteLength: 6},
	}
	a.Accessors = []Accessor{
		{BufferView: Ref(0), ComponentType: ComponentFloat, Type: TypeVec3, Count: 2},
		{BufferView: Ref(1), ComponentType: ComponentUnsignedShort, Type: TypeScalar, Count: 3},
		{BufferView: Ref(0), ComponentType: ComponentFloat, Type: TypeVec2, Count: 3},
		{ComponentType: ComponentFloat, Type: TypeVec3, Count: 1},
		{BufferView: Ref(0), ComponentType: ComponentFloat, Type: TypeVec3, Count: 5},
	}

	v3, err := a.ReadVec3(0)
	require.NoError(t, err)
	assert.Equal(t, [][3]float32{{1, 2, 3}, {4, 5, 6}}, v3)

	idx, err := a.ReadIndices(1)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1, 0}, idx)

	v2, err := a.ReadVec2(2)
	require.NoError(t, err)
	assert.Equal(t, [][2]float32{{1, 2}, {3, 4}, {5, 6}}, v2)

	_, err = a.ReadVec2(0)
	assert.Error(t, err)
	_, err = a.ReadVec3(3)
	assert.ErrorIs(t, err, errNoBufferView)
	_, err = a.ReadVec3(4)
	assert.ErrorIs(t, err, errAccessorBounds)

	raw, err := a.BufferViewBytes(1)
	require.NoError(t, err)
	assert.Len(t, raw, 6)
}

func TestCubeFaceLayers(t *testing.T) {
	for i, f := range CubeFaces {
		assert.Equal(t, i, f.Layer())
		assert.Equal(t, 0x8515+i, f.GLTarget())
	}
	assert.Equal(t, "right", FaceRight.String())
	assert.Equal(t, "back", FaceBack.String())
	assert.Equal(t, -1, FaceNone.Layer())
}
