package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/Carmen-Shannon/oxy-viewer/engine/asset"
	"github.com/Carmen-Shannon/oxy-viewer/engine/config"
	"github.com/Carmen-Shannon/oxy-viewer/engine/environment"
	"github.com/Carmen-Shannon/oxy-viewer/engine/loader"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newInfoCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "info <model>",
		Short: "Load a model and print a summary",
		Long:  "Load a model through the full pipeline, environment included, and print its scenes, resources and extents.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			return runInfo(cmd.Context(), cmd.OutOrStdout(), cfg, logger, args[0])
		},
	}
}

func runInfo(ctx context.Context, out io.Writer, cfg *config.Config, logger *slog.Logger, model string) error {
	fetcher := newFetcher(cfg)
	pipeline, err := newPipeline(cfg, fetcher, logger)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	models := loadCatalog(ctx, cfg, fetcher, logger)
	ref, _ := resolveModel(model, models, cfg.BasePath)

	a, err := pipeline.Load(ctx, ref, loader.EnvironmentRequest{
		Name:   cfg.Rendering.Environment,
		Format: environment.FormatFor(cfg.Rendering.UseHDR),
	})
	if err != nil {
		return errors.Wrapf(err, "failed to load %s", ref.Name())
	}
	return writeSummary(out, ref.Name(), a)
}

// writeSummary prints the asset's resource counts, its scenes and the extents of each scene.
func writeSummary(out io.Writer, name string, a *asset.Asset) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	var opaque, mask, blend int
	for _, m := range a.Materials {
		switch m.AlphaMode {
		case asset.AlphaBlend:
			blend++
		case asset.AlphaMask:
			mask++
		default:
			opaque++
		}
	}
	var envImages int
	for _, img := range a.Images {
		if img.Face != asset.FaceNone {
			envImages++
		}
	}

	fmt.Fprintf(tw, "Model:\t%s\n", name)
	fmt.Fprintf(tw, "Scenes:\t%d (default %d)\n", len(a.Scenes), a.DefaultSceneIndex())
	fmt.Fprintf(tw, "Nodes:\t%d\n", len(a.Nodes))
	fmt.Fprintf(tw, "Meshes:\t%d\n", len(a.Meshes))
	fmt.Fprintf(tw, "Materials:\t%d (opaque %d, mask %d, blend %d)\n", len(a.Materials), opaque, mask, blend)
	fmt.Fprintf(tw, "Cameras:\t%d\n", len(a.Cameras))
	fmt.Fprintf(tw, "Textures:\t%d\n", len(a.Textures))
	fmt.Fprintf(tw, "Images:\t%d (environment %d)\n", len(a.Images), envImages)
	fmt.Fprintf(tw, "Buffers:\t%d\n", len(a.Buffers))

	for i, s := range a.Scenes {
		label := s.Name
		if label == "" {
			label = "-"
		}
		opaqueNodes, blendNodes := a.Partition(i)
		lo, hi, ok := a.Extents(i)
		if !ok {
			fmt.Fprintf(tw, "Scene %d:\t%s, %d opaque, %d blend, no extents\n", i, label, len(opaqueNodes), len(blendNodes))
			continue
		}
		fmt.Fprintf(tw, "Scene %d:\t%s, %d opaque, %d blend, min (%.3f, %.3f, %.3f) max (%.3f, %.3f, %.3f)\n",
			i, label, len(opaqueNodes), len(blendNodes), lo[0], lo[1], lo[2], hi[0], hi[1], hi[2])
	}
	return tw.Flush()
}
