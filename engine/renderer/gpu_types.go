package renderer

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-viewer/common"
	"github.com/go-gl/mathgl/mgl32"
)

// unlitShaderSource is the WGSL program used by every pipeline of the wgpu backend.
//
//go:embed shaders/unlit.wgsl
var unlitShaderSource string

// vertexStride is the size of one interleaved vertex: position (vec3<f32>) then texcoord (vec2<f32>).
const vertexStride = 20

// uniformSlotSize is the dynamic offset step of the per-draw uniform buffer. WebGPU requires
// minUniformBufferOffsetAlignment, which is 256 on every adapter.
const uniformSlotSize = 256

// GPUDrawUniform is the GPU-aligned per-draw uniform. Matches the WGSL DrawUniform struct.
// Size: 96 bytes.
type GPUDrawUniform struct {
	MVP       [16]float32 // offset  0: model-view-projection (mat4x4<f32>)
	BaseColor [4]float32  // offset 64: base color factor (vec4<f32>)
	// Params.x is the alpha cutoff, negative when alpha testing is off. y, z, w are unused.
	Params [4]float32 // offset 80
}

// NewGPUDrawUniform builds the uniform for one draw.
//
// Parameters:
//   - mvp: the model-view-projection matrix
//   - baseColor: the material base color factor
//   - alphaCutoff: the alpha test threshold, or a negative value to disable alpha testing
//
// Returns:
//   - GPUDrawUniform: the uniform
func NewGPUDrawUniform(mvp mgl32.Mat4, baseColor mgl32.Vec4, alphaCutoff float32) GPUDrawUniform {
	return GPUDrawUniform{
		MVP:       mvp,
		BaseColor: baseColor,
		Params:    [4]float32{alphaCutoff, 0, 0, 0},
	}
}

// Size returns the size of the GPUDrawUniform struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (96)
func (g *GPUDrawUniform) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUDrawUniform struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPUDrawUniform) Marshal() []byte {
	return append([]byte(nil), common.StructToBytes(g)...)
}

// packVertices interleaves positions and texcoords. Missing texcoords are written as zero.
func packVertices(positions [][3]float32, uvs [][2]float32) []byte {
	buf := make([]byte, len(positions)*vertexStride)
	for i, p := range positions {
		off := i * vertexStride
		for c := range 3 {
			binary.LittleEndian.PutUint32(buf[off+c*4:], math.Float32bits(p[c]))
		}
		if i < len(uvs) {
			binary.LittleEndian.PutUint32(buf[off+12:], math.Float32bits(uvs[i][0]))
			binary.LittleEndian.PutUint32(buf[off+16:], math.Float32bits(uvs[i][1]))
		}
	}
	return buf
}
