// Package config provides configuration loading and access for the grid engine.
package config

import (
	_ "embed"
	"fmt"
	"image/color"
	"math"
	"os"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/beaker/components"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all engine and scenario configuration parameters.
type Config struct {
	Grid      GridConfig      `yaml:"grid"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Palette   PaletteConfig   `yaml:"palette"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Scenario  []ScenarioStep  `yaml:"scenario"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// GridConfig holds container geometry.
type GridConfig struct {
	Width        float64 `yaml:"width"`         // Container width
	MaxHeight    float64 `yaml:"max_height"`    // Tallest possible liquid column
	ParticleSize float64 `yaml:"particle_size"` // Particle diameter
}

// ReconcileConfig holds tick scheduling parameters.
type ReconcileConfig struct {
	TickInterval     float64 `yaml:"tick_interval"`      // Seconds between ticks
	MutationsPerTick int     `yaml:"mutations_per_tick"` // Slot changes per tick
}

// ColorConfig is a hex colour plus opacity.
type ColorConfig struct {
	Hex     string  `yaml:"hex"`     // "#rrggbb"
	Opacity float64 `yaml:"opacity"` // 0..1
}

// PaletteConfig holds the render colour of each species.
type PaletteConfig struct {
	Water     ColorConfig `yaml:"water"`
	Substance ColorConfig `yaml:"substance"`
	Primary   ColorConfig `yaml:"primary"`
	Secondary ColorConfig `yaml:"secondary"`
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	LogMutations bool `yaml:"log_mutations"` // Write every slot change to mutations.csv
}

// ScenarioStep is one scripted host input. Nil fields leave that input unchanged.
type ScenarioStep struct {
	Name         string             `yaml:"name"`
	Width        *float64           `yaml:"width,omitempty"`
	MaxHeight    *float64           `yaml:"max_height,omitempty"`
	LiquidHeight *float64           `yaml:"liquid_height,omitempty"`
	Desired      *components.Counts `yaml:"desired,omitempty"`
	Ticks        int                `yaml:"ticks,omitempty"` // Ticks to run before the next step (0 = until idle)
	Hold         float64            `yaml:"hold,omitempty"`  // Seconds to wait in real-time mode (0 = until idle)
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	TickInterval time.Duration      // Reconcile.TickInterval as a duration
	Palette      components.Palette // parsed species colours
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.computeDerived(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() error {
	if c.Grid.ParticleSize <= 0 {
		c.Grid.ParticleSize = 14.3
	}
	if c.Reconcile.MutationsPerTick < 1 {
		c.Reconcile.MutationsPerTick = 2
	}
	if c.Reconcile.TickInterval <= 0 {
		c.Reconcile.TickInterval = 0.1
	}
	c.Derived.TickInterval = time.Duration(c.Reconcile.TickInterval * float64(time.Second))

	entries := []struct {
		species components.Species
		cc      ColorConfig
	}{
		{components.Water, c.Palette.Water},
		{components.Substance, c.Palette.Substance},
		{components.PrimaryIon, c.Palette.Primary},
		{components.SecondaryIon, c.Palette.Secondary},
	}
	for _, e := range entries {
		col, err := e.cc.NRGBA()
		if err != nil {
			return fmt.Errorf("palette %s: %w", e.species, err)
		}
		c.Derived.Palette[e.species] = col
	}
	return nil
}

// NRGBA parses the hex colour and applies the opacity as alpha.
func (cc ColorConfig) NRGBA() (color.NRGBA, error) {
	col, err := colorful.Hex(cc.Hex)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("parsing colour %q: %w", cc.Hex, err)
	}
	r, g, b := col.RGB255()
	if math.IsNaN(cc.Opacity) {
		cc.Opacity = 0
	}
	a := math.Round(math.Min(math.Max(cc.Opacity, 0), 1) * 255)
	return color.NRGBA{R: r, G: g, B: b, A: uint8(a)}, nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
