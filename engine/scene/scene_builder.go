package scene

import (
	"log/slog"

	"github.com/Carmen-Shannon/oxy-viewer/engine/camera"
	"github.com/Carmen-Shannon/oxy-viewer/engine/config"
	"github.com/Carmen-Shannon/oxy-viewer/engine/loader"
	"github.com/Carmen-Shannon/oxy-viewer/engine/renderer"
)

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithPipeline sets the load pipeline assets are built with.
//
// Parameters:
//   - p: the load pipeline
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithPipeline(p loader.Pipeline) SceneBuilderOption {
	return func(s *scene) {
		s.pipeline = p
	}
}

// WithRenderer sets the renderer frames are dispatched to.
//
// Parameters:
//   - r: the renderer
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithRenderer(r renderer.Renderer) SceneBuilderOption {
	return func(s *scene) {
		s.renderer = r
	}
}

// WithCamera sets the user camera that is fitted on every swap. Pass the same camera to the renderer.
//
// Parameters:
//   - c: the user camera
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithCamera(c camera.UserCamera) SceneBuilderOption {
	return func(s *scene) {
		s.camera = c
	}
}

// WithParameters sets the shared rendering parameters. The environment name and HDR flag are read at the
// start of every load.
//
// Parameters:
//   - p: the shared parameters
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithParameters(p *config.Parameters) SceneBuilderOption {
	return func(s *scene) {
		s.params = p
	}
}

// WithHeadless disables the per-frame camera update. Loading, partitioning and dispatch are unchanged.
//
// Parameters:
//   - headless: true for headless runs
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithHeadless(headless bool) SceneBuilderOption {
	return func(s *scene) {
		s.headless = headless
	}
}

// WithCameraIndex selects the initial camera. -1 is the user camera.
func WithCameraIndex(index int) SceneBuilderOption {
	return func(s *scene) {
		if index < -1 {
			index = -1
		}
		s.cameraIndex = index
	}
}

// WithFrameObserver registers a hook called after every Frame, drawn or not.
func WithFrameObserver(fn func(FrameInfo)) SceneBuilderOption {
	return func(s *scene) {
		s.frameObserver = fn
	}
}

// WithStatusObserver registers a hook called on load start, load completion, load failure and navigation.
// It runs on the goroutine that caused the event.
func WithStatusObserver(fn func(Status)) SceneBuilderOption {
	return func(s *scene) {
		s.statusObserver = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SceneBuilderOption {
	return func(s *scene) {
		if logger != nil {
			s.logger = logger
		}
	}
}
