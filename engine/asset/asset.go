// Package asset holds the in-memory representation of a loaded glTF scene asset.
// Nodes live in a flat arena addressed by index; scenes reference their root nodes by index into the
// same arena, so an Asset never shares nodes with another Asset.
package asset

import (
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"
)

var assetCount atomic.Uint64

// AlphaMode selects how a material composites with what is already in the frame.
type AlphaMode string

const (
	AlphaOpaque AlphaMode = "OPAQUE"
	AlphaMask   AlphaMode = "MASK"
	AlphaBlend  AlphaMode = "BLEND"
)

// ProjectionKind identifies the projection used by a camera.
type ProjectionKind int

const (
	// ProjectionPerspective is a symmetric perspective frustum described by a vertical field of view.
	ProjectionPerspective ProjectionKind = iota
	// ProjectionOrthographic is a box projection described by horizontal and vertical magnification.
	ProjectionOrthographic
)

// TextureTarget identifies the kind of texture a Texture describes.
type TextureTarget int

const (
	Target2D TextureTarget = iota
	TargetCubeMap
)

// Asset is a fully described scene graph plus its resource lists.
// All index fields inside the Asset refer to positions in the Asset's own slices.
type Asset struct {
	id uint64

	// Path is the reference the asset was loaded from (file path or URL).
	Path string

	// DefaultScene is the explicit default scene index declared by the document, if any.
	DefaultScene *int

	Scenes      []Scene
	Nodes       []Node
	Meshes      []Mesh
	Materials   []Material
	Cameras     []Camera
	Accessors   []Accessor
	BufferViews []BufferView
	Buffers     []Buffer
	Samplers    []Sampler
	Images      []Image
	Textures    []Texture
}

// Scene is an ordered list of root nodes.
type Scene struct {
	Name  string
	Nodes []int
}

// Node is one element of the scene hierarchy.
// A nil Rotation, Scale or Matrix means the glTF default for that component.
type Node struct {
	Name     string
	Children []int
	Mesh     *int
	Camera   *int

	Translation mgl32.Vec3
	Rotation    *mgl32.Quat
	Scale       *mgl32.Vec3
	Matrix      *mgl32.Mat4

	// World is the resolved world transform. Valid after ResolveHierarchy.
	World mgl32.Mat4
}

// Mesh is a set of primitives drawn with the owning node's transform.
type Mesh struct {
	Name       string
	Primitives []Primitive
}

// Primitive is a single draw of a mesh.
type Primitive struct {
	Attributes map[string]int
	Indices    *int
	Material   *int
	Mode       int
}

// Material carries the parts of a glTF material the viewer uses for ordering and unlit shading.
type Material struct {
	Name             string
	AlphaMode        AlphaMode
	AlphaCutoff      float32
	DoubleSided      bool
	BaseColorFactor  mgl32.Vec4
	BaseColorTexture *int
}

// Camera is a camera description embedded in the asset.
type Camera struct {
	Name        string
	Projection  ProjectionKind
	YFov        float32
	AspectRatio *float32
	XMag        float32
	YMag        float32
	ZNear       float32
	ZFar        float32
}

// Accessor describes how to read typed elements out of a buffer view.
type Accessor struct {
	BufferView    *int
	ByteOffset    int
	ComponentType int
	Count         int
	Type          string
	Min           []float32
	Max           []float32
}

// BufferView is a slice of a buffer.
type BufferView struct {
	Buffer     int
	ByteOffset int
	ByteLength int
	ByteStride int
}

// Buffer is a binary blob. Data is populated by the loader.
type Buffer struct {
	URI        string
	ByteLength int
	Data       []byte
}

// Sampler holds glTF sampler constants. Zero means "unset" for every field.
type Sampler struct {
	Name      string
	MagFilter int
	MinFilter int
	WrapS     int
	WrapT     int
}

// Image is an image source. Exactly one of URI or BufferView identifies the bytes.
type Image struct {
	Name       string
	URI        string
	BufferView *int
	MimeType   string

	// Face is the cube map face this image fills; FaceNone for 2-D images.
	Face CubeFace
	// MipLevel is the mip level this image fills inside its texture.
	MipLevel int

	// Data holds the fetched image bytes. Populated by the loader.
	Data []byte
}

// Texture binds one or more source images to a sampler.
type Texture struct {
	Name    string
	Sampler *int
	Sources []int
	Target  TextureTarget
}

// New creates an empty Asset for the given source path with a process-unique ID.
//
// Parameters:
//   - path: the file path or URL the asset is loaded from
//
// Returns:
//   - *Asset: the empty asset
func New(path string) *Asset {
	return &Asset{
		id:   assetCount.Add(1),
		Path: path,
	}
}

// ID returns the process-unique identifier of this asset. Renderers key GPU residency by it.
func (a *Asset) ID() uint64 {
	return a.id
}

// DefaultSceneIndex returns the explicit default scene, or 0 when the document does not declare one.
func (a *Asset) DefaultSceneIndex() int {
	if a.DefaultScene != nil {
		return *a.DefaultScene
	}
	return 0
}

// Ref returns a pointer to i. Convenience for optional index fields.
func Ref(i int) *int {
	return &i
}

// LocalMatrix returns the node's local transform.
// An explicit matrix wins over translation/rotation/scale.
func (n *Node) LocalMatrix() mgl32.Mat4 {
	if n.Matrix != nil {
		return *n.Matrix
	}
	rotation := mgl32.QuatIdent()
	if n.Rotation != nil {
		rotation = *n.Rotation
	}
	scale := mgl32.Vec3{1, 1, 1}
	if n.Scale != nil {
		scale = *n.Scale
	}
	t := mgl32.Translate3D(n.Translation.Elem())
	s := mgl32.Scale3D(scale.Elem())
	return t.Mul4(rotation.Normalize().Mat4()).Mul4(s)
}

// WorldPosition returns the translation part of the resolved world transform.
func (n *Node) WorldPosition() mgl32.Vec3 {
	return n.World.Col(3).Vec3()
}
