package asset

// CubeFace names one of the six faces of a cube map.
type CubeFace int

const (
	// FaceNone marks an image that is not part of a cube map.
	FaceNone CubeFace = iota - 1
	FaceRight
	FaceLeft
	FaceTop
	FaceBottom
	FaceFront
	FaceBack
)

// CubeFaces lists the faces in the fixed order images are appended for a cube map.
var CubeFaces = [6]CubeFace{FaceRight, FaceLeft, FaceTop, FaceBottom, FaceFront, FaceBack}

// GL cube map target constants, kept so face slots can be compared with glTF tooling output.
const (
	glTextureCubeMapPositiveX = 0x8515
)

// String returns the face name used in environment file names.
func (f CubeFace) String() string {
	switch f {
	case FaceRight:
		return "right"
	case FaceLeft:
		return "left"
	case FaceTop:
		return "top"
	case FaceBottom:
		return "bottom"
	case FaceFront:
		return "front"
	case FaceBack:
		return "back"
	default:
		return "none"
	}
}

// Layer returns the array layer of the face in a cube texture (+X, -X, +Y, -Y, +Z, -Z), or -1.
func (f CubeFace) Layer() int {
	if f < FaceRight || f > FaceBack {
		return -1
	}
	return int(f)
}

// GLTarget returns the TEXTURE_CUBE_MAP_POSITIVE_X + layer constant for the face, or 0 for FaceNone.
func (f CubeFace) GLTarget() int {
	if l := f.Layer(); l >= 0 {
		return glTextureCubeMapPositiveX + l
	}
	return 0
}
