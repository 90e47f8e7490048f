package loader

import (
	"log/slog"

	"github.com/Carmen-Shannon/oxy-viewer/engine/environment"
)

// PipelineBuilderOption is a functional option for configuring a Pipeline via NewPipeline.
type PipelineBuilderOption func(*pipeline)

// WithFetcher is an option builder that sets the Fetcher used for documents and sub-resources.
//
// Parameters:
//   - f: the fetcher
//
// Returns:
//   - PipelineBuilderOption: a function that applies the fetcher option to a pipeline
func WithFetcher(f Fetcher) PipelineBuilderOption {
	return func(p *pipeline) {
		if f != nil {
			p.fetcher = f
		}
	}
}

// WithEnvironmentBuilder is an option builder that enables environment injection.
//
// Parameters:
//   - b: the environment builder
//
// Returns:
//   - PipelineBuilderOption: a function that applies the builder option to a pipeline
func WithEnvironmentBuilder(b environment.Builder) PipelineBuilderOption {
	return func(p *pipeline) {
		p.environment = b
	}
}

// WithWorkers sets the maximum number of concurrent sub-resource fetches.
func WithWorkers(n int) PipelineBuilderOption {
	return func(p *pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithQueueSize sets the worker pool's task queue length.
func WithQueueSize(n int) PipelineBuilderOption {
	return func(p *pipeline) {
		if n > 0 {
			p.queueSize = n
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) PipelineBuilderOption {
	return func(p *pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}
