// Package config provides configuration loading and validation for projblend.
// It handles loading the run configuration from YAML or TOML files and
// provides default values for a three projector dome setup.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"projblend/pkg/errs"
	"projblend/pkg/hull"
	"projblend/pkg/mask"
)

// UVScale is the resolution of the intermediary UV grid the blend weights are
// computed on.
type UVScale struct {
	Width  int `yaml:"width" toml:"width"`
	Height int `yaml:"height" toml:"height"`
}

// Config represents the blending run configuration
type Config struct {
	// InputDir holds the correspondence rasters. Empty means the directory
	// given on the command line.
	InputDir string `yaml:"input_dir" toml:"input_dir"`

	// OutputDir receives the blended rasters. Empty means InputDir.
	OutputDir string `yaml:"output_dir" toml:"output_dir"`

	// UVScale is the UV grid resolution
	UVScale UVScale `yaml:"uv_scale" toml:"uv_scale"`

	// ProjectorIDs are the projector numbers substituted into the file name
	// templates, in processing order
	ProjectorIDs []int `yaml:"projector_ids" toml:"projector_ids"`

	// ViewportCount is the number of viewports every projector shows
	ViewportCount int `yaml:"viewport_count" toml:"viewport_count"`

	// InputTemplate names the per-pixel (non interpolated) sample raster
	InputTemplate string `yaml:"input_template" toml:"input_template"`

	// InterpTemplate names the interpolated raster used for resampling
	InterpTemplate string `yaml:"interp_template" toml:"interp_template"`

	// OutputTemplate names the blended output raster
	OutputTemplate string `yaml:"output_template" toml:"output_template"`

	// ValidThreshold is the U value above which a pixel holds a sample
	ValidThreshold float64 `yaml:"valid_threshold" toml:"valid_threshold"`

	// HullMode selects merged or independent hull construction
	HullMode hull.Mode `yaml:"hull_mode" toml:"hull_mode"`

	// Neighbors is the candidate neighbour count used by the clusterer
	Neighbors int `yaml:"neighbors" toml:"neighbors"`

	// Workers bounds the number of distance transforms computed at once
	Workers int `yaml:"workers" toml:"workers"`

	// ViewportConfig optionally names a display calibration file whose
	// viewport polygons replace clustering
	ViewportConfig string `yaml:"viewport_config" toml:"viewport_config"`

	// DebugDir, when set, receives masks, gradient sums, previews and plots
	DebugDir string `yaml:"debug_dir" toml:"debug_dir"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		UVScale:        UVScale{Width: 2400, Height: 1133},
		ProjectorIDs:   []int{0, 1, 3},
		ViewportCount:  3,
		InputTemplate:  "display_server%d.nointerp.pfm",
		InterpTemplate: "display_server%d.pfm",
		OutputTemplate: "display_server%d.blend.pfm",
		ValidThreshold: -0.99,
		HullMode:       hull.ModeMerged,
		Neighbors:      8,
		Workers:        runtime.NumCPU(),
	}
}

// LoadConfig loads configuration from a YAML or TOML file, chosen by the
// file extension. If the file doesn't exist, it returns the default
// configuration. Unknown keys are rejected.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errs.IO("read", configPath, err)
	}

	if strings.EqualFold(filepath.Ext(configPath), ".toml") {
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, errs.Config("", fmt.Errorf("error parsing config file: %w", err))
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, errs.Configf(undecoded[0].String(), "unknown key")
		}
		return cfg, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, errs.Config("", fmt.Errorf("error parsing config file: %w", err))
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errs.IO("mkdir", dir, err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return errs.IO("write", configPath, err)
	}

	return nil
}

// ResolveDirs fills InputDir and OutputDir from the command line directory
// where the configuration leaves them empty.
func (c *Config) ResolveDirs(dir string) {
	if c.InputDir == "" {
		c.InputDir = dir
	}
	if c.OutputDir == "" {
		c.OutputDir = c.InputDir
	}
}

// Validate checks the configuration once, before any file is read, and
// returns a ConfigError naming the first offending key.
func (c *Config) Validate() error {
	switch {
	case c.InputDir == "":
		return errs.Configf("input_dir", "must be set")
	case c.OutputDir == "":
		return errs.Configf("output_dir", "must be set")
	case c.UVScale.Width <= 0 || c.UVScale.Height <= 0:
		return errs.Configf("uv_scale", "width and height must be positive, got %dx%d", c.UVScale.Width, c.UVScale.Height)
	case len(c.ProjectorIDs) == 0:
		return errs.Configf("projector_ids", "at least one projector is required")
	case c.ViewportCount < 1 || c.ViewportCount > mask.MaxLabel:
		return errs.Configf("viewport_count", "must be between 1 and %d, got %d", mask.MaxLabel, c.ViewportCount)
	case !c.HullMode.Valid():
		return errs.Configf("hull_mode", "unknown mode %q (want %q or %q)", c.HullMode, hull.ModeMerged, hull.ModeIndependent)
	case c.Neighbors < 1:
		return errs.Configf("neighbors", "must be positive, got %d", c.Neighbors)
	case c.Workers < 1:
		return errs.Configf("workers", "must be positive, got %d", c.Workers)
	}

	seen := make(map[int]bool, len(c.ProjectorIDs))
	for _, id := range c.ProjectorIDs {
		if seen[id] {
			return errs.Configf("projector_ids", "duplicate projector %d", id)
		}
		seen[id] = true
	}

	templates := []struct{ key, value string }{
		{"input_template", c.InputTemplate},
		{"interp_template", c.InterpTemplate},
		{"output_template", c.OutputTemplate},
	}
	for _, t := range templates {
		if strings.Count(t.value, "%d") != 1 || strings.Count(t.value, "%") != 1 {
			return errs.Configf(t.key, "template %q must contain exactly one %%d", t.value)
		}
	}
	if c.OutputTemplate == c.InputTemplate || c.OutputTemplate == c.InterpTemplate {
		return errs.Configf("output_template", "would overwrite an input raster")
	}
	return nil
}

// InputPath returns the sample raster path of projector number n.
func (c *Config) InputPath(n int) string {
	return filepath.Join(c.InputDir, fmt.Sprintf(c.InputTemplate, n))
}

// InterpPath returns the interpolated raster path of projector number n.
func (c *Config) InterpPath(n int) string {
	return filepath.Join(c.InputDir, fmt.Sprintf(c.InterpTemplate, n))
}

// OutputPath returns the blended raster path of projector number n.
func (c *Config) OutputPath(n int) string {
	return filepath.Join(c.OutputDir, fmt.Sprintf(c.OutputTemplate, n))
}
