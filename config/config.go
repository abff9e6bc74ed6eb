// Package config loads the overdraw tool configuration from a YAML file
// with OVERDRAW_* environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/gogpu/overdraw"
)

// Config is the complete tool configuration.
type Config struct {
	Monitor   MonitorConfig   `yaml:"monitor"`
	Screen    ScreenConfig    `yaml:"screen"`
	Scene     SceneConfig     `yaml:"scene"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Recording RecordingConfig `yaml:"recording"`
	Log       LogConfig       `yaml:"log"`
}

// MonitorConfig selects the backend and the statistics window.
type MonitorConfig struct {
	// SamplePeriod is the statistics window length.
	SamplePeriod time.Duration `yaml:"sample_period"`
	// Backend is a backend name, or empty for the best available one.
	Backend string `yaml:"backend"`
	// Compute measures through compute cameras instead of the sources.
	Compute bool `yaml:"compute"`
}

// ScreenConfig is the default camera output size.
type ScreenConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// SceneConfig describes the cameras of the built-in scene.
type SceneConfig struct {
	Cameras []CameraConfig `yaml:"cameras"`
}

// CameraConfig is one camera and what it sees. Width and Height default to
// the screen size.
type CameraConfig struct {
	Name    string `yaml:"name"`
	Width   int    `yaml:"width"`
	Height  int    `yaml:"height"`
	Primary bool   `yaml:"primary"`
	// Disabled cameras exist but are not tracked.
	Disabled bool         `yaml:"disabled"`
	Layers   int          `yaml:"layers"`
	Quads    []QuadConfig `yaml:"quads"`
}

// QuadConfig is an axis-aligned rectangle in clip space.
type QuadConfig struct {
	Name   string    `yaml:"name"`
	Rect   []float32 `yaml:"rect"` // x0, y0, x1, y1
	Depth  float32   `yaml:"depth"`
	Opaque bool      `yaml:"opaque"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// RecordingConfig controls session recording.
type RecordingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// LogConfig sets the log level (debug, info, warn, error).
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is given: one
// primary 1280x720 camera looking at three stacked full-screen layers.
func Default() *Config {
	return &Config{
		Monitor: MonitorConfig{SamplePeriod: overdraw.DefaultSamplePeriod},
		Screen:  ScreenConfig{Width: 1280, Height: 720},
		Scene: SceneConfig{Cameras: []CameraConfig{
			{Name: "main", Primary: true, Layers: 3},
		}},
		Metrics:   MetricsConfig{Address: ":9090"},
		Recording: RecordingConfig{Dir: "recordings"},
		Log:       LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %v", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %v", err)
		}
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %v", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Monitor.SamplePeriod = getDurationOrDefault("OVERDRAW_SAMPLE_PERIOD", cfg.Monitor.SamplePeriod)
	cfg.Monitor.Backend = getEnvOrDefault("OVERDRAW_BACKEND", cfg.Monitor.Backend)
	cfg.Monitor.Compute = getBoolOrDefault("OVERDRAW_COMPUTE", cfg.Monitor.Compute)
	cfg.Screen.Width = getIntOrDefault("OVERDRAW_SCREEN_WIDTH", cfg.Screen.Width)
	cfg.Screen.Height = getIntOrDefault("OVERDRAW_SCREEN_HEIGHT", cfg.Screen.Height)
	cfg.Metrics.Enabled = getBoolOrDefault("OVERDRAW_METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.Metrics.Address = getEnvOrDefault("OVERDRAW_METRICS_ADDRESS", cfg.Metrics.Address)
	cfg.Recording.Enabled = getBoolOrDefault("OVERDRAW_RECORDING_ENABLED", cfg.Recording.Enabled)
	cfg.Recording.Dir = getEnvOrDefault("OVERDRAW_RECORDING_DIR", cfg.Recording.Dir)
	cfg.Log.Level = getEnvOrDefault("OVERDRAW_LOG_LEVEL", cfg.Log.Level)
}

// Validate checks the configuration for values the tool cannot run with.
func (c *Config) Validate() error {
	if c.Monitor.SamplePeriod <= 0 {
		return fmt.Errorf("sample period must be positive")
	}
	if c.Screen.Width <= 0 || c.Screen.Height <= 0 {
		return fmt.Errorf("screen size must be positive, got %dx%d", c.Screen.Width, c.Screen.Height)
	}
	if len(c.Scene.Cameras) == 0 {
		return fmt.Errorf("scene needs at least one camera")
	}
	seen := make(map[string]bool, len(c.Scene.Cameras))
	primaries := 0
	for i, cam := range c.Scene.Cameras {
		if cam.Name == "" {
			return fmt.Errorf("camera at index %d has no name", i)
		}
		if seen[cam.Name] {
			return fmt.Errorf("duplicate camera name %q", cam.Name)
		}
		seen[cam.Name] = true
		if cam.Width < 0 || cam.Height < 0 {
			return fmt.Errorf("camera %s has negative size", cam.Name)
		}
		if cam.Layers < 0 {
			return fmt.Errorf("camera %s has negative layer count", cam.Name)
		}
		if cam.Primary {
			primaries++
		}
		for j, q := range cam.Quads {
			if len(q.Rect) != 4 {
				return fmt.Errorf("quad %d of camera %s: rect needs 4 values, got %d", j, cam.Name, len(q.Rect))
			}
			if q.Depth < 0 || q.Depth > 1 {
				return fmt.Errorf("quad %d of camera %s: depth %v outside [0, 1]", j, cam.Name, q.Depth)
			}
		}
	}
	if primaries > 1 {
		return fmt.Errorf("at most one camera can be primary, got %d", primaries)
	}
	if c.Metrics.Enabled && c.Metrics.Address == "" {
		return fmt.Errorf("metrics address is required when metrics are enabled")
	}
	if c.Recording.Enabled && c.Recording.Dir == "" {
		return fmt.Errorf("recording dir is required when recording is enabled")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// CameraSize returns the pixel size of cam, falling back to the screen.
func (c *Config) CameraSize(cam CameraConfig) (width, height int) {
	width, height = cam.Width, cam.Height
	if width == 0 {
		width = c.Screen.Width
	}
	if height == 0 {
		height = c.Screen.Height
	}
	return width, height
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if strValue := os.Getenv(key); strValue != "" {
		if value, err := strconv.Atoi(strings.TrimSpace(strValue)); err == nil {
			return value
		}
		overdraw.Logger().Warn("config: invalid integer value, using default",
			"key", key, "value", strValue, "default", defaultValue)
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if strValue := os.Getenv(key); strValue != "" {
		if value, err := strconv.ParseBool(strValue); err == nil {
			return value
		}
		overdraw.Logger().Warn("config: invalid boolean value, using default",
			"key", key, "value", strValue, "default", defaultValue)
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if strValue := os.Getenv(key); strValue != "" {
		if value, err := time.ParseDuration(strValue); err == nil {
			return value
		}
		overdraw.Logger().Warn("config: invalid duration value, using default",
			"key", key, "value", strValue, "default", defaultValue)
	}
	return defaultValue
}
