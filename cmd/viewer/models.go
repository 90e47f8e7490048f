package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/Carmen-Shannon/oxy-viewer/engine/catalog"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newModelsCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models in the model index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.load(cmd)
			if err != nil {
				return err
			}
			models, err := catalog.Load(cmd.Context(), newFetcher(cfg), cfg.ModelIndexPath())
			if err != nil {
				return err
			}
			return writeModels(cmd.OutOrStdout(), models)
		},
	}
}

func writeModels(out io.Writer, models map[string]string) error {
	if len(models) == 0 {
		return errors.New("model index lists no models")
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, name := range catalog.Names(models) {
		fmt.Fprintf(tw, "%s\t%s\n", name, models[name])
	}
	return tw.Flush()
}
