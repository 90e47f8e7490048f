// viewer - interactive glTF 2.0 viewer
//
// Controls:
//
//	Mouse drag      - Orbit the camera
//	Scroll          - Zoom in/out
//	PageDown / N    - Next scene
//	PageUp / P      - Previous scene
//	0-9             - Embedded camera by index
//	U               - User camera
//	R               - Refit the camera to the scene
//	Drop files      - Load a dropped .gltf/.glb with its sibling files
//	Esc             - Quit
package main

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
)

func init() {
	// GLFW must run on the main thread.
	runtime.LockOSThread()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd, _ := newRoot()
	return cmd
}

// newRoot builds the command tree and returns the options its flags are bound to.
func newRoot() (*cobra.Command, *options) {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "viewer [model]",
		Short: "Interactive glTF 2.0 viewer",
		Long: `viewer - interactive glTF 2.0 viewer

Loads a model by catalog name or path and renders it every frame. With --headless the
same loop runs against a recording renderer for a fixed number of frames.

Controls:
  Mouse drag    - Orbit the camera
  Scroll        - Zoom in/out
  PageDown / N  - Next scene
  PageUp / P    - Previous scene
  0-9           - Embedded camera by index
  U             - User camera
  R             - Refit the camera
  Drop files    - Load a dropped .gltf/.glb and its siblings
  Esc           - Quit`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			model := cfg.InitialModel
			if len(args) == 1 {
				model = args[0]
			}
			return run(cmd.Context(), cfg, logger, model)
		},
	}

	opts.bindPersistent(cmd)
	opts.bindRun(cmd)

	cmd.AddCommand(newInfoCommand(opts), newModelsCommand(opts))
	return cmd, opts
}
