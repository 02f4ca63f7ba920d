package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/yumekawa-dev/kanade/engine/core"
)

// Config is the full application configuration, loaded once at startup.
type Config struct {
	Window   WindowConfig   `toml:"window"`
	Renderer RendererConfig `toml:"renderer"`
	Audio    AudioConfig    `toml:"audio"`
	Game     GameConfig     `toml:"game"`
	LogLevel core.LogLevel  `toml:"log_level"`
}

type WindowConfig struct {
	Title  string `toml:"title"`
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
}

type RendererConfig struct {
	// ValidationLayers enables the Vulkan debug layers when available.
	ValidationLayers      bool   `toml:"validation_layers"`
	CommandPoolCount      uint32 `toml:"command_pool_count"`
	CommandBuffersPerPool uint32 `toml:"command_buffers_per_pool"`
	DescriptorMaxSets     uint32 `toml:"descriptor_max_sets"`
	MemoryBudgetMB        uint64 `toml:"memory_budget_mb"`
}

type AudioConfig struct {
	// BufferSizeMS is the speaker buffer length. Larger values trade
	// latency for underrun resistance.
	BufferSizeMS int `toml:"buffer_size_ms"`
}

type GameConfig struct {
	ChartPath string `toml:"chart_path"`
	// ScrollSpeed is how many world units one second of chart occupies.
	ScrollSpeed float32 `toml:"scroll_speed"`
	// LaneKeys binds keyboard letters to lane indices, left to right.
	LaneKeys []string `toml:"lane_keys"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Window: WindowConfig{
			Title:  "Kanade",
			Width:  1280,
			Height: 720,
		},
		Renderer: RendererConfig{
			ValidationLayers:      false,
			CommandPoolCount:      2,
			CommandBuffersPerPool: 8,
			DescriptorMaxSets:     64,
			MemoryBudgetMB:        256,
		},
		Audio: AudioConfig{
			BufferSizeMS: 50,
		},
		Game: GameConfig{
			ChartPath:   "assets/charts/tutorial.kch",
			ScrollSpeed: 8.0,
			LaneKeys:    []string{"d", "f", "j", "k"},
		},
		LogLevel: core.LogLevelInfo,
	}
}

// Load reads a TOML config file, layering it over the defaults. A missing
// file is not an error; the defaults apply unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		core.LogInfo("no config file at %s, using defaults", path)
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Window.Width == 0 || c.Window.Height == 0 {
		return fmt.Errorf("window dimensions must be non-zero, got %dx%d", c.Window.Width, c.Window.Height)
	}
	if c.Renderer.CommandPoolCount == 0 || c.Renderer.CommandBuffersPerPool == 0 {
		return fmt.Errorf("command pool configuration must be non-zero")
	}
	if c.Game.ScrollSpeed <= 0 {
		return fmt.Errorf("scroll_speed must be positive, got %f", c.Game.ScrollSpeed)
	}
	if len(c.Game.LaneKeys) == 0 {
		return fmt.Errorf("at least one lane key binding is required")
	}
	for _, key := range c.Game.LaneKeys {
		if len(key) != 1 {
			return fmt.Errorf("lane key %q is not a single letter", key)
		}
	}
	return nil
}

// MemoryBudgetBytes converts the configured budget to bytes.
func (c *Config) MemoryBudgetBytes() uint64 {
	return c.Renderer.MemoryBudgetMB * 1024 * 1024
}
