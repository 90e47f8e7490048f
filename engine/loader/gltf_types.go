// gltf_types.go holds the JSON shapes the importer decodes before building an asset.Asset.
// Only the properties the viewer reads are declared; encoding/json drops the rest.
// Reference: https://registry.khronos.org/glTF/specs/2.0/glTF-2.0.html
package loader

// gltfDocument is the root object of a glTF document.
type gltfDocument struct {
	Asset struct {
		Version string `json:"version"`
	} `json:"asset"`

	Scene       *int             `json:"scene,omitempty"` // default scene
	Scenes      []gltfScene      `json:"scenes,omitempty"`
	Nodes       []gltfNode       `json:"nodes,omitempty"`
	Meshes      []gltfMesh       `json:"meshes,omitempty"`
	Accessors   []gltfAccessor   `json:"accessors,omitempty"`
	BufferViews []gltfBufferView `json:"bufferViews,omitempty"`
	Buffers     []gltfBuffer     `json:"buffers,omitempty"`
	Materials   []gltfMaterial   `json:"materials,omitempty"`
	Textures    []gltfTexture    `json:"textures,omitempty"`
	Images      []gltfImage      `json:"images,omitempty"`
	Samplers    []gltfSampler    `json:"samplers,omitempty"`
	Cameras     []gltfCamera     `json:"cameras,omitempty"`

	// ExtensionsRequired names extensions a loader must understand; the importer refuses the ones it cannot honour.
	ExtensionsRequired []string `json:"extensionsRequired,omitempty"`
}

type gltfScene struct {
	Name  string `json:"name,omitempty"`
	Nodes []int  `json:"nodes,omitempty"` // root nodes
}

// gltfNode carries either Matrix or the TRS triple, never both.
type gltfNode struct {
	Name     string `json:"name,omitempty"`
	Children []int  `json:"children,omitempty"`
	Mesh     *int   `json:"mesh,omitempty"`
	Camera   *int   `json:"camera,omitempty"`

	Matrix      *[16]float32 `json:"matrix,omitempty"` // column-major
	Translation *[3]float32  `json:"translation,omitempty"`
	Rotation    *[4]float32  `json:"rotation,omitempty"` // quaternion x, y, z, w
	Scale       *[3]float32  `json:"scale,omitempty"`
}

type gltfMesh struct {
	Name       string          `json:"name,omitempty"`
	Primitives []gltfPrimitive `json:"primitives"`
}

type gltfPrimitive struct {
	Attributes map[string]int `json:"attributes"` // semantic -> accessor
	Indices    *int           `json:"indices,omitempty"`
	Material   *int           `json:"material,omitempty"`
	Mode       *int           `json:"mode,omitempty"`
}

// gltfPrimitiveModeTriangles is the topology assumed when a primitive has no mode.
const gltfPrimitiveModeTriangles = 4

type gltfAccessor struct {
	BufferView    *int      `json:"bufferView,omitempty"`
	ByteOffset    int       `json:"byteOffset,omitempty"`
	ComponentType int       `json:"componentType"`
	Count         int       `json:"count"`
	Type          string    `json:"type"` // SCALAR, VEC2 ... MAT4
	Max           []float32 `json:"max,omitempty"`
	Min           []float32 `json:"min,omitempty"`

	// Sparse is only checked for presence; the importer rejects sparse storage.
	Sparse *struct {
		Count int `json:"count"`
	} `json:"sparse,omitempty"`
}

type gltfBufferView struct {
	Buffer     int  `json:"buffer"`
	ByteOffset int  `json:"byteOffset,omitempty"`
	ByteLength int  `json:"byteLength"`
	ByteStride *int `json:"byteStride,omitempty"`
}

// gltfBuffer has no URI when it is the GLB binary chunk.
type gltfBuffer struct {
	URI        string `json:"uri,omitempty"`
	ByteLength int    `json:"byteLength"`
}

type gltfMaterial struct {
	Name                 string `json:"name,omitempty"`
	PbrMetallicRoughness *struct {
		BaseColorFactor  *[4]float32 `json:"baseColorFactor,omitempty"`
		BaseColorTexture *struct {
			Index int `json:"index"`
		} `json:"baseColorTexture,omitempty"`
	} `json:"pbrMetallicRoughness,omitempty"`
	AlphaMode   string   `json:"alphaMode,omitempty"`   // OPAQUE when empty
	AlphaCutoff *float32 `json:"alphaCutoff,omitempty"` // 0.5 when nil
	DoubleSided bool     `json:"doubleSided,omitempty"`
}

type gltfTexture struct {
	Name    string `json:"name,omitempty"`
	Sampler *int   `json:"sampler,omitempty"`
	Source  *int   `json:"source,omitempty"`
}

// gltfImage is backed by either URI or BufferView; MimeType is required with the latter.
type gltfImage struct {
	Name       string `json:"name,omitempty"`
	URI        string `json:"uri,omitempty"`
	MimeType   string `json:"mimeType,omitempty"`
	BufferView *int   `json:"bufferView,omitempty"`
}

// gltfSampler fields are GL enums; see the GL* constants in common.
type gltfSampler struct {
	Name      string `json:"name,omitempty"`
	MagFilter *int   `json:"magFilter,omitempty"`
	MinFilter *int   `json:"minFilter,omitempty"`
	WrapS     *int   `json:"wrapS,omitempty"`
	WrapT     *int   `json:"wrapT,omitempty"`
}

type gltfCamera struct {
	Name        string `json:"name,omitempty"`
	Type        string `json:"type"`
	Perspective *struct {
		AspectRatio *float32 `json:"aspectRatio,omitempty"`
		YFov        float32  `json:"yfov"`
		ZFar        *float32 `json:"zfar,omitempty"` // infinite when nil
		ZNear       float32  `json:"znear"`
	} `json:"perspective,omitempty"`
	Orthographic *struct {
		XMag  float32 `json:"xmag"`
		YMag  float32 `json:"ymag"`
		ZFar  float32 `json:"zfar"`
		ZNear float32 `json:"znear"`
	} `json:"orthographic,omitempty"`
}

const (
	gltfCameraPerspective  = "perspective"
	gltfCameraOrthographic = "orthographic"
)

// GLB container framing.
// Reference: https://registry.khronos.org/glTF/specs/2.0/glTF-2.0.html#glb-file-format-specification
type gltfGLBHeader struct {
	Magic   uint32
	Version uint32
	Length  uint32 // whole file, header included
}

type gltfGLBChunkHeader struct {
	ChunkLength uint32
	ChunkType   uint32
}

const (
	gltfGLBMagic     = 0x46546C67 // "glTF"
	gltfGLBVersion   = 2
	gltfGLBChunkJSON = 0x4E4F534A // "JSON"
	gltfGLBChunkBIN  = 0x004E4942 // "BIN\0"
)
