package main

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Carmen-Shannon/oxy-viewer/engine/config"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// options holds flag values. Only flags the user set override the configuration file.
type options struct {
	configPath string
	basePath   string
	modelIndex string
	logLevel   string
	logFormat  string

	headless    bool
	frames      int
	environment string
	hdr         bool
	camera      int
	frameLimit  int
	msaa        int
	vsync       bool
	software    bool
	profile     bool
	control     bool
	controlAddr string
	watch       bool
	workers     int
}

func (o *options) bindPersistent(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVarP(&o.configPath, "config", "c", "", "Configuration file (.toml, .yaml or .yml)")
	f.StringVar(&o.basePath, "base-path", "", "Directory or URL model paths are relative to")
	f.StringVar(&o.modelIndex, "model-index", "", "Model index file, relative to the base path")
	f.StringVar(&o.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	f.StringVar(&o.logFormat, "log-format", "", "Log format: text or json")
	f.IntVar(&o.workers, "workers", 0, "Sub-resource fetch workers")
	f.StringVar(&o.environment, "environment", "", "Environment map folder name")
	f.BoolVar(&o.hdr, "hdr", false, "Use HDR environment images")
}

func (o *options) bindRun(cmd *cobra.Command) {
	f := cmd.Flags()
	f.BoolVar(&o.headless, "headless", false, "Run without a window against a recording renderer")
	f.IntVar(&o.frames, "frames", 0, "Stop a headless run after this many frames (0 = until interrupted)")
	f.IntVar(&o.camera, "camera", -1, "Initial camera index, -1 for the user camera")
	f.IntVar(&o.frameLimit, "frame-limit", 0, "Cap frames per second (0 = uncapped)")
	f.IntVar(&o.msaa, "msaa", 0, "MSAA sample count: 1, 4 or 8")
	f.BoolVar(&o.vsync, "vsync", true, "Wait for vertical blank when presenting")
	f.BoolVar(&o.software, "software", false, "Render on the CPU fallback adapter")
	f.BoolVar(&o.profile, "profile", false, "Log frame rate and memory statistics")
	f.BoolVar(&o.control, "control", false, "Serve the HTTP control API")
	f.StringVar(&o.controlAddr, "control-addr", "", "Control API listen address")
	f.BoolVar(&o.watch, "watch", false, "Reload the model when its files change on disk")
}

// load reads the configuration file, applies the flags that were set and builds the logger.
func (o *options) load(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg := config.Default()
	if o.configPath != "" {
		c, err := config.Load(o.configPath)
		if err != nil {
			return nil, nil, err
		}
		cfg = c
	}
	o.apply(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cmd.ErrOrStderr(), cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func (o *options) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}
	if changed("base-path") {
		cfg.BasePath = o.basePath
	}
	if changed("model-index") {
		cfg.ModelIndex = o.modelIndex
	}
	if changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
	if changed("log-format") {
		cfg.Log.Format = o.logFormat
	}
	if changed("workers") {
		cfg.Loader.Workers = o.workers
	}
	if changed("environment") {
		cfg.Rendering.Environment = o.environment
	}
	if changed("hdr") {
		cfg.Rendering.UseHDR = o.hdr
	}
	if changed("headless") {
		cfg.Headless = o.headless
	}
	if changed("frames") {
		cfg.Render.Frames = o.frames
	}
	if changed("camera") {
		cfg.Render.CameraIndex = o.camera
	}
	if changed("frame-limit") {
		cfg.Render.FrameLimit = o.frameLimit
	}
	if changed("msaa") {
		cfg.Render.MSAA = o.msaa
	}
	if changed("vsync") {
		cfg.Render.VSync = o.vsync
	}
	if changed("software") {
		cfg.Render.Software = o.software
	}
	if changed("profile") {
		cfg.Render.Profiling = o.profile
	}
	if changed("control") {
		cfg.Control.Enabled = o.control
	}
	if changed("control-addr") {
		cfg.Control.Address = o.controlAddr
	}
	if changed("watch") {
		cfg.Watch.Enabled = o.watch
	}
}

// newLogger builds the process logger from the log section.
func newLogger(w io.Writer, lc config.LogConfig) (*slog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(lc.Level))); err != nil {
		return nil, errors.Errorf("unknown log level %q", lc.Level)
	}
	hopts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(lc.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, hopts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, hopts)), nil
	default:
		return nil, errors.Errorf("unknown log format %q", lc.Format)
	}
}
