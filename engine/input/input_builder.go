package input

import (
	"log/slog"

	"github.com/Carmen-Shannon/oxy-viewer/engine/loader"
)

// ControllerBuilderOption is a functional option for configuring a Controller via NewController.
type ControllerBuilderOption func(*controller)

// WithOrbiter sets the camera that receives rotation and zoom.
//
// Parameters:
//   - o: the orbiter
//
// Returns:
//   - ControllerBuilderOption: a function that applies the orbiter option to a controller
func WithOrbiter(o Orbiter) ControllerBuilderOption {
	return func(c *controller) {
		c.orbiter = o
	}
}

// WithNavigator sets the target of scene navigation keys.
func WithNavigator(n Navigator) ControllerBuilderOption {
	return func(c *controller) {
		c.navigator = n
	}
}

// WithLoadFunc sets the callback invoked with the reference built from a drop.
func WithLoadFunc(fn func(loader.Reference)) ControllerBuilderOption {
	return func(c *controller) {
		c.onLoad = fn
	}
}

// WithActiveCheck sets the gate consulted before camera and key input. Releases and drops are not gated.
//
// Parameters:
//   - fn: reports whether an asset is currently rendering
//
// Returns:
//   - ControllerBuilderOption: a function that applies the gate to a controller
func WithActiveCheck(fn func() bool) ControllerBuilderOption {
	return func(c *controller) {
		if fn != nil {
			c.active = fn
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ControllerBuilderOption {
	return func(c *controller) {
		if l != nil {
			c.logger = l
		}
	}
}
