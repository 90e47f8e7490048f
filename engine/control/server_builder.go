package control

import (
	"log/slog"

	"github.com/Carmen-Shannon/oxy-viewer/engine/scene"
)

// ServerBuilderOption is a functional option for configuring a Server.
type ServerBuilderOption func(s *server)

// WithScene sets the scene the API acts on.
//
// Parameters:
//   - sc: the scene orchestrator
//
// Returns:
//   - ServerBuilderOption: option function to apply
func WithScene(sc scene.Scene) ServerBuilderOption {
	return func(s *server) {
		s.scene = sc
	}
}

// WithHub sets the status hub. Create the hub first so its Publish can be passed to the scene.
func WithHub(h *Hub) ServerBuilderOption {
	return func(s *server) {
		s.hub = h
	}
}

// WithModels sets the initial model catalog.
func WithModels(models map[string]string) ServerBuilderOption {
	return func(s *server) {
		s.models.set(models)
	}
}

// WithBasePath sets the directory or URL catalog paths are relative to.
func WithBasePath(basePath string) ServerBuilderOption {
	return func(s *server) {
		s.basePath = basePath
	}
}

// WithAddress sets the listen address.
func WithAddress(addr string) ServerBuilderOption {
	return func(s *server) {
		if addr != "" {
			s.address = addr
		}
	}
}

// WithFPS sets the frame rate source reported by GET /api/status.
func WithFPS(fn func() float64) ServerBuilderOption {
	return func(s *server) {
		if fn != nil {
			s.fps = fn
		}
	}
}

// WithLogger sets the logger used for access, recovery and handler logs.
func WithLogger(logger *slog.Logger) ServerBuilderOption {
	return func(s *server) {
		if logger != nil {
			s.logger = logger
		}
	}
}
