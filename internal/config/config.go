package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the scrubber configuration file.
type Config struct {
	Assets   AssetsConfig   `yaml:"assets"`
	Viewport ViewportConfig `yaml:"viewport"`
	Render   RenderConfig   `yaml:"render"`
	Loader   LoaderConfig   `yaml:"loader"`
	Output   OutputConfig   `yaml:"output"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Serve    ServeConfig    `yaml:"serve"`
}

// AssetsConfig selects where frame images come from.
type AssetsConfig struct {
	Kind    string        `yaml:"kind"`     // dir, http, pdf
	Root    string        `yaml:"root"`     // directory for dir and pdf
	BaseURL string        `yaml:"base_url"` // for http
	Timeout time.Duration `yaml:"timeout"`
	PDFDPI  int           `yaml:"pdf_dpi"`
}

// ViewportConfig is the simulated browser window, in CSS pixels.
type ViewportConfig struct {
	Width            int     `yaml:"width"`
	Height           int     `yaml:"height"`
	DevicePixelRatio float64 `yaml:"dpr"`
}

type RenderConfig struct {
	FPS             int      `yaml:"fps"`
	Background      string   `yaml:"background"`       // hex colour
	VignetteFalloff string   `yaml:"vignette_falloff"` // ease function name
	Effects         []string `yaml:"effects"`          // overlays painted over the frame, in order
}

type LoaderConfig struct {
	MaxConcurrent int `yaml:"max_concurrent"`
}

type OutputConfig struct {
	Dir          string `yaml:"dir"`
	VideoEncoder string `yaml:"encoder"` // empty: detect
	Quality      int    `yaml:"quality"` // 0: encoder default
	ShowStats    bool   `yaml:"stats"`
}

// MQTTConfig enables state telemetry when URL is set.
type MQTTConfig struct {
	URL      string `yaml:"url"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type ServeConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Assets: AssetsConfig{
			Kind:    "dir",
			Root:    "public",
			Timeout: 10 * time.Second,
			PDFDPI:  72,
		},
		Viewport: ViewportConfig{
			Width:            1280,
			Height:           720,
			DevicePixelRatio: 1,
		},
		Render: RenderConfig{
			FPS:             60,
			Background:      "#000000",
			VignetteFalloff: "linear",
			Effects:         []string{"vignette"},
		},
		Loader: LoaderConfig{
			MaxConcurrent: runtime.NumCPU(),
		},
		Output: OutputConfig{
			Dir: "output",
		},
		MQTT: MQTTConfig{
			ClientID: "scrubber",
			Topic:    "scrubber/state",
		},
		Serve: ServeConfig{
			Addr: ":3000",
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks for values the scrubber cannot run with.
func (c *Config) Validate() error {
	switch c.Assets.Kind {
	case "dir", "pdf":
		if c.Assets.Root == "" {
			return fmt.Errorf("assets.root is required for kind %q", c.Assets.Kind)
		}
	case "http":
		if c.Assets.BaseURL == "" {
			return fmt.Errorf("assets.base_url is required for kind http")
		}
	default:
		return fmt.Errorf("unknown assets.kind: %q", c.Assets.Kind)
	}

	if c.Viewport.Width <= 0 || c.Viewport.Height <= 0 {
		return fmt.Errorf("viewport must be positive, got %dx%d", c.Viewport.Width, c.Viewport.Height)
	}
	if c.Render.FPS <= 0 {
		return fmt.Errorf("render.fps must be positive, got %d", c.Render.FPS)
	}
	if c.Loader.MaxConcurrent <= 0 {
		return fmt.Errorf("loader.max_concurrent must be positive, got %d", c.Loader.MaxConcurrent)
	}
	return nil
}

// Write saves the configuration as YAML.
func (c *Config) Write(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
