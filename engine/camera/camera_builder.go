package camera

import "github.com/go-gl/mathgl/mgl32"

// CameraBuilderOption is a functional option for configuring a UserCamera via NewUserCamera.
type CameraBuilderOption func(*userCamera)

// WithSettings replaces the default camera settings.
//
// Parameters:
//   - s: the initial settings
//
// Returns:
//   - CameraBuilderOption: a function that applies the settings to the camera
func WithSettings(s Settings) CameraBuilderOption {
	return func(c *userCamera) {
		c.set(s)
	}
}

// WithYFov sets the vertical field of view in radians.
//
// Parameters:
//   - fov: field of view in radians
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's field of view
func WithYFov(fov float32) CameraBuilderOption {
	return func(c *userCamera) {
		if fov > 0 {
			c.yfov = fov
		}
	}
}

// WithAspect sets the camera's aspect ratio (width / height).
//
// Parameters:
//   - aspect: the aspect ratio to set
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's aspect ratio
func WithAspect(aspect float32) CameraBuilderOption {
	return func(c *userCamera) {
		if aspect > 0 {
			c.aspect = aspect
		}
	}
}

// WithUp sets the camera's up vector.
func WithUp(up mgl32.Vec3) CameraBuilderOption {
	return func(c *userCamera) {
		if up.Len() > 0 {
			c.up = up
		}
	}
}

// WithRotateSpeed sets the orbit angle in radians applied per pixel of pointer movement.
func WithRotateSpeed(speed float32) CameraBuilderOption {
	return func(c *userCamera) {
		if speed > 0 {
			c.rotateSpeed = speed
		}
	}
}

// WithZoomFactor sets the distance multiplier applied per wheel step. Values not greater than 1 are ignored.
func WithZoomFactor(factor float32) CameraBuilderOption {
	return func(c *userCamera) {
		if factor > 1 {
			c.zoomFactor = factor
		}
	}
}
