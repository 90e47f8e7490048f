package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Carmen-Shannon/oxy-viewer/common"
	"github.com/Carmen-Shannon/oxy-viewer/engine/catalog"
	"github.com/Carmen-Shannon/oxy-viewer/engine/config"
	"github.com/Carmen-Shannon/oxy-viewer/engine/environment"
	"github.com/Carmen-Shannon/oxy-viewer/engine/loader"
)

// newFetcher returns the fetcher shared by the pipeline and the catalog.
func newFetcher(cfg *config.Config) loader.Fetcher {
	return loader.NewDefaultFetcher(cfg.Loader.HTTPTimeout.Duration)
}

// newChecker picks how specular mip levels are probed: from a manifest when one is configured, otherwise
// by asking the image root directly.
func newChecker(cfg *config.Config) (environment.ExistenceChecker, error) {
	root := cfg.ImageRootPath()
	if manifest := cfg.ManifestPath(); manifest != "" {
		m, err := environment.LoadManifest(manifest)
		if err != nil {
			return nil, err
		}
		return environment.NewManifestChecker(root, m), nil
	}
	if common.IsRemote(root) {
		return environment.HTTPChecker{}, nil
	}
	return environment.OSChecker{}, nil
}

// newPipeline wires the fetcher and the environment builder into a load pipeline.
func newPipeline(cfg *config.Config, fetcher loader.Fetcher, logger *slog.Logger) (loader.Pipeline, error) {
	checker, err := newChecker(cfg)
	if err != nil {
		return nil, err
	}
	env := environment.NewBuilder(
		environment.WithRoot(cfg.ImageRootPath()),
		environment.WithLUTPath(cfg.LUTPath()),
		environment.WithExistenceChecker(checker),
		environment.WithMaxMipLevels(cfg.Environment.MaxMipLevels),
		environment.WithLogger(logger),
	)
	return loader.NewPipeline(
		loader.WithFetcher(fetcher),
		loader.WithEnvironmentBuilder(env),
		loader.WithWorkers(cfg.Loader.Workers),
		loader.WithQueueSize(cfg.Loader.QueueSize),
		loader.WithLogger(logger),
	), nil
}

// loadCatalog reads the model index. A missing index is not fatal: models can still be opened by path.
func loadCatalog(ctx context.Context, cfg *config.Config, fetcher loader.Fetcher, logger *slog.Logger) map[string]string {
	if cfg.ModelIndex == "" {
		return map[string]string{}
	}
	models, err := catalog.Load(ctx, fetcher, cfg.ModelIndexPath())
	if err != nil {
		logger.Warn("[viewer] model index unavailable", "index", cfg.ModelIndexPath(), "error", err)
		return map[string]string{}
	}
	logger.Info("[viewer] model index loaded", "index", cfg.ModelIndexPath(), "models", len(models))
	return models
}

// resolveModel turns a catalog display name or a path into a Reference. Catalog names and paths that do not
// exist locally are resolved against the base path; existing local files and URLs are used as given.
//
// Parameters:
//   - model: a catalog display name, a catalog-style relative path, a local file or a URL
//   - models: the catalog
//   - basePath: the directory or URL catalog paths are relative to
//
// Returns:
//   - loader.Reference: the reference to load
//   - bool: false when model is empty
func resolveModel(model string, models map[string]string, basePath string) (loader.Reference, bool) {
	if model == "" {
		return loader.Reference{}, false
	}
	if p, ok := models[model]; ok {
		return loader.PathReference(p, basePath), true
	}
	if common.IsRemote(model) || filepath.IsAbs(model) {
		return loader.Reference{Path: model}, true
	}
	if _, err := os.Stat(model); err == nil {
		return loader.Reference{Path: model}, true
	}
	return loader.PathReference(model, basePath), true
}
