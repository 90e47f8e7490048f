// Package config holds the viewer configuration and the shared rendering parameters.
package config

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Carmen-Shannon/oxy-viewer/common"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultEnvironment is the environment folder used when none is configured.
const DefaultEnvironment = "papermill"

var errUnknownConfigFormat = errors.New("unknown config file format")

// Duration is a time.Duration written as a string such as "250ms" in config files.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Config is the full viewer configuration.
type Config struct {
	// BasePath is the directory or URL model paths and the model index are relative to.
	BasePath string `toml:"base_path" yaml:"base_path"`
	// ModelIndex is the catalog file, relative to BasePath.
	ModelIndex string `toml:"model_index" yaml:"model_index"`
	// InitialModel is loaded at start-up when set.
	InitialModel string `toml:"initial_model" yaml:"initial_model"`
	Headless     bool   `toml:"headless" yaml:"headless"`

	Rendering   RenderingConfig   `toml:"rendering" yaml:"rendering"`
	Environment EnvironmentConfig `toml:"environment" yaml:"environment"`
	Window      WindowConfig      `toml:"window" yaml:"window"`
	Render      RenderConfig      `toml:"render" yaml:"render"`
	Loader      LoaderConfig      `toml:"loader" yaml:"loader"`
	Control     ControlConfig     `toml:"control" yaml:"control"`
	Watch       WatchConfig       `toml:"watch" yaml:"watch"`
	Log         LogConfig         `toml:"log" yaml:"log"`
}

// RenderingConfig seeds the shared Parameters.
type RenderingConfig struct {
	Environment string     `toml:"environment" yaml:"environment"`
	UseHDR      bool       `toml:"use_hdr" yaml:"use_hdr"`
	ClearColor  [4]float32 `toml:"clear_color" yaml:"clear_color"`
}

// EnvironmentConfig locates environment map images.
type EnvironmentConfig struct {
	// ImageRoot is the folder holding one sub-folder per environment, relative to BasePath.
	ImageRoot string `toml:"image_root" yaml:"image_root"`
	// LUTPath is the BRDF lookup table image, relative to BasePath.
	LUTPath string `toml:"lut_path" yaml:"lut_path"`
	// Manifest is an optional YAML file listing specular mip counts per environment.
	Manifest     string `toml:"manifest" yaml:"manifest"`
	MaxMipLevels int    `toml:"max_mip_levels" yaml:"max_mip_levels"`
}

type WindowConfig struct {
	Title  string `toml:"title" yaml:"title"`
	Width  int    `toml:"width" yaml:"width"`
	Height int    `toml:"height" yaml:"height"`
	// MinWidth and MinHeight bound interactive resizing; 0 leaves the size unbounded.
	MinWidth  int `toml:"min_width" yaml:"min_width"`
	MinHeight int `toml:"min_height" yaml:"min_height"`
}

// RenderConfig controls the frame loop and the GPU surface.
type RenderConfig struct {
	// FrameLimit caps frames per second; 0 means uncapped.
	FrameLimit int  `toml:"frame_limit" yaml:"frame_limit"`
	VSync      bool `toml:"vsync" yaml:"vsync"`
	MSAA       int  `toml:"msaa" yaml:"msaa"`
	Profiling  bool `toml:"profiling" yaml:"profiling"`
	// CameraIndex selects the initial camera; -1 is the user camera.
	CameraIndex int `toml:"camera_index" yaml:"camera_index"`
	// Frames stops a headless run after this many frames; 0 runs until quit.
	Frames int `toml:"frames" yaml:"frames"`
	// Software requests the CPU fallback adapter.
	Software bool `toml:"software" yaml:"software"`
}

type LoaderConfig struct {
	Workers     int      `toml:"workers" yaml:"workers"`
	QueueSize   int      `toml:"queue_size" yaml:"queue_size"`
	HTTPTimeout Duration `toml:"http_timeout" yaml:"http_timeout"`
}

type ControlConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Address string `toml:"address" yaml:"address"`
}

type WatchConfig struct {
	Enabled  bool     `toml:"enabled" yaml:"enabled"`
	Debounce Duration `toml:"debounce" yaml:"debounce"`
}

type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level" yaml:"level"`
	// Format is text or json.
	Format string `toml:"format" yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		BasePath:   "",
		ModelIndex: "model-index.json",
		Rendering: RenderingConfig{
			Environment: DefaultEnvironment,
			ClearColor:  [4]float32{0.2, 0.2, 0.2, 1.0},
		},
		Environment: EnvironmentConfig{
			ImageRoot:    "assets/images",
			LUTPath:      "assets/images/brdfLUT.png",
			MaxMipLevels: 16,
		},
		Window: WindowConfig{
			Title:     "oxy-viewer",
			Width:     1280,
			Height:    720,
			MinWidth:  320,
			MinHeight: 240,
		},
		Render: RenderConfig{
			FrameLimit:  0,
			VSync:       true,
			MSAA:        4,
			CameraIndex: -1,
		},
		Loader: LoaderConfig{
			Workers:     8,
			QueueSize:   64,
			HTTPTimeout: Duration{30 * time.Second},
		},
		Control: ControlConfig{
			Address: "127.0.0.1:8089",
		},
		Watch: WatchConfig{
			Debounce: Duration{250 * time.Millisecond},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// decoder is satisfied by both the TOML and the YAML decoders.
type decoder interface {
	Decode(v any) error
}

func decoderFor(name string, r io.Reader) (decoder, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".toml":
		d := toml.NewDecoder(r)
		d.DisallowUnknownFields()
		return d, nil
	case ".yaml", ".yml":
		d := yaml.NewDecoder(r)
		d.KnownFields(true)
		return d, nil
	default:
		return nil, errors.Wrap(errUnknownConfigFormat, name)
	}
}

// Load reads a TOML or YAML configuration file over Default. The format is chosen by file extension.
//
// Parameters:
//   - path: the configuration file
//
// Returns:
//   - *Config: the configuration
//   - error: error if the file cannot be read, has an unknown extension, or fails validation
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open config")
	}
	defer f.Close()
	return Decode(path, bufio.NewReader(f))
}

// Decode reads configuration from r over Default, using name's extension to pick the format.
func Decode(name string, r io.Reader) (*Config, error) {
	cfg := Default()
	d, err := decoderFor(name, r)
	if err != nil {
		return nil, err
	}
	if err := d.Decode(cfg); err != nil && err != io.EOF {
		return nil, errors.Wrapf(err, "failed to decode %s", name)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.Loader.Workers <= 0:
		return errors.Errorf("loader.workers must be positive, got %d", c.Loader.Workers)
	case c.Loader.QueueSize <= 0:
		return errors.Errorf("loader.queue_size must be positive, got %d", c.Loader.QueueSize)
	case c.Environment.MaxMipLevels <= 0:
		return errors.Errorf("environment.max_mip_levels must be positive, got %d", c.Environment.MaxMipLevels)
	case c.Window.Width <= 0 || c.Window.Height <= 0:
		return errors.Errorf("window size must be positive, got %dx%d", c.Window.Width, c.Window.Height)
	case c.Window.MinWidth < 0 || c.Window.MinHeight < 0:
		return errors.Errorf("window minimum size must not be negative, got %dx%d", c.Window.MinWidth, c.Window.MinHeight)
	case c.Render.FrameLimit < 0:
		return errors.Errorf("render.frame_limit must not be negative, got %d", c.Render.FrameLimit)
	case c.Render.CameraIndex < -1:
		return errors.Errorf("render.camera_index must be -1 or a camera index, got %d", c.Render.CameraIndex)
	}
	return nil
}

// ModelIndexPath returns the model index location under BasePath.
func (c *Config) ModelIndexPath() string {
	return c.resolve(c.ModelIndex)
}

// ImageRootPath returns the environment image root under BasePath.
func (c *Config) ImageRootPath() string {
	return c.resolve(c.Environment.ImageRoot)
}

// LUTPath returns the lookup table image under BasePath.
func (c *Config) LUTPath() string {
	return c.resolve(c.Environment.LUTPath)
}

// ManifestPath returns the environment manifest under BasePath, or "" when none is configured.
func (c *Config) ManifestPath() string {
	if c.Environment.Manifest == "" {
		return ""
	}
	return c.resolve(c.Environment.Manifest)
}

func (c *Config) resolve(p string) string {
	if c.BasePath == "" || filepath.IsAbs(p) || common.IsRemote(p) {
		return p
	}
	return common.JoinURI(c.BasePath, p)
}
