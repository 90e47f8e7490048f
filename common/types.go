// package common contains common types that are used throughout this viewer. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types and glTF constants shared between the loader, the environment builder and the renderer.
package common

import (
	"bytes"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/pkg/errors"
)

// glTF sampler filter and wrap constants.
// Reference: https://registry.khronos.org/glTF/specs/2.0/glTF-2.0.html#reference-sampler
const (
	GLNearest              = 9728
	GLLinear               = 9729
	GLNearestMipmapNearest = 9984
	GLLinearMipmapNearest  = 9985
	GLNearestMipmapLinear  = 9986
	GLLinearMipmapLinear   = 9987
	GLClampToEdge          = 33071
	GLMirroredRepeat       = 33648
	GLRepeat               = 10497
)

// TextureStagingData holds RGBA pixel data for a texture pending GPU upload.
type TextureStagingData struct {
	// Pixels is the byte slice representing the actual pixel data for the texture. It should be in RGBA format, with 4 bytes per pixel.
	Pixels []byte
	// Width is the width of the texture in pixels.
	Width uint32
	// Height is the height of the texture in pixels.
	Height uint32
}

// SamplerStagingData holds the configuration for a sampler pending GPU creation.
type SamplerStagingData struct {
	// AddressModeU, AddressModeV, AddressModeW specify the addressing mode for texture coordinates outside the [0, 1] range in each dimension (U, V, W).
	AddressModeU, AddressModeV, AddressModeW wgpu.AddressMode
	// MagFilter and MinFilter specify the filtering mode for magnification and minification.
	MagFilter, MinFilter wgpu.FilterMode
	// MipmapFilter specifies the filtering mode for mipmap level selection.
	MipmapFilter wgpu.MipmapFilterMode
	// LodMinClamp and LodMaxClamp specify the minimum and maximum level of detail (LOD) for mipmapping.
	LodMinClamp, LodMaxClamp float32
	// MaxAnisotropy specifies the maximum anisotropy level for anisotropic filtering.
	MaxAnisotropy uint16
}

// DefaultSamplerStagingData returns the glTF default sampler: linear filtering with repeat wrapping.
func DefaultSamplerStagingData() *SamplerStagingData {
	return &SamplerStagingData{
		AddressModeU:  wgpu.AddressModeRepeat,
		AddressModeV:  wgpu.AddressModeRepeat,
		AddressModeW:  wgpu.AddressModeRepeat,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeLinear,
		LodMinClamp:   0,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	}
}

// SamplerStagingDataFromGL converts glTF sampler constants into SamplerStagingData.
// Zero values are treated as unset and keep the glTF defaults.
//
// Parameters:
//   - magFilter: the glTF magnification filter constant, or 0
//   - minFilter: the glTF minification filter constant, or 0
//   - wrapS: the glTF S wrap constant, or 0
//   - wrapT: the glTF T wrap constant, or 0
//
// Returns:
//   - *SamplerStagingData: the converted sampler staging data
func SamplerStagingDataFromGL(magFilter, minFilter, wrapS, wrapT int) *SamplerStagingData {
	result := DefaultSamplerStagingData()

	switch magFilter {
	case GLNearest:
		result.MagFilter = wgpu.FilterModeNearest
	case GLLinear:
		result.MagFilter = wgpu.FilterModeLinear
	}

	switch minFilter {
	case GLNearest, GLNearestMipmapNearest, GLNearestMipmapLinear:
		result.MinFilter = wgpu.FilterModeNearest
	case GLLinear, GLLinearMipmapNearest, GLLinearMipmapLinear:
		result.MinFilter = wgpu.FilterModeLinear
	}
	switch minFilter {
	case GLNearestMipmapNearest, GLLinearMipmapNearest:
		result.MipmapFilter = wgpu.MipmapFilterModeNearest
	case GLNearestMipmapLinear, GLLinearMipmapLinear:
		result.MipmapFilter = wgpu.MipmapFilterModeLinear
	case GLNearest, GLLinear:
		result.MipmapFilter = wgpu.MipmapFilterModeNearest
	}

	if wrapS != 0 {
		result.AddressModeU = wrapToAddressMode(wrapS)
	}
	if wrapT != 0 {
		result.AddressModeV = wrapToAddressMode(wrapT)
	}
	return result
}

func wrapToAddressMode(wrap int) wgpu.AddressMode {
	switch wrap {
	case GLClampToEdge:
		return wgpu.AddressModeClampToEdge
	case GLMirroredRepeat:
		return wgpu.AddressModeMirrorRepeat
	default:
		return wgpu.AddressModeRepeat
	}
}

// DecodeRGBA decodes PNG or JPEG bytes into RGBA pixels.
// Reference: https://pkg.go.dev/image
//
// Parameters:
//   - data: the encoded image bytes
//
// Returns:
//   - *TextureStagingData: raw RGBA pixel data (4 bytes per pixel, row-major order) with its size
//   - error: error if decoding fails
func DecodeRGBA(data []byte) (*TextureStagingData, error) {
	if len(data) == 0 {
		return nil, errors.New("image has no data")
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode image")
	}

	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)

	return &TextureStagingData{
		Pixels: rgba.Pix,
		Width:  uint32(bounds.Dx()),
		Height: uint32(bounds.Dy()),
	}, nil
}
