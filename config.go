package collisiongrid

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds the tunables of a collision hash. The zero value is not
// usable; start from DefaultConfig or LoadConfig.
type Config struct {
	CellEdge          float32    `yaml:"cell_edge"`
	MaxCellsPerAxis   int32      `yaml:"max_cells_per_axis"`
	OverflowThreshold int32      `yaml:"overflow_threshold"`
	UnboundedExtent   float32    `yaml:"unbounded_extent"`
	LineClipPadding   float32    `yaml:"line_clip_padding"`
	BrushPadding      float32    `yaml:"brush_padding"`
	ArenaBlockSize    int        `yaml:"arena_block_size"`
	Pool              PoolConfig `yaml:"pool"`
}

// PoolConfig sizes the record pool.
type PoolConfig struct {
	BlockSize     int  `yaml:"block_size"`
	MaxBlocks     int  `yaml:"max_blocks"` // 0 = unlimited
	ZeroOnRelease bool `yaml:"zero_on_release"`
}

// DefaultConfig returns the embedded defaults.
func DefaultConfig() Config {
	cfg, err := ParseConfig(nil)
	if err != nil {
		panic(fmt.Sprintf("collisiongrid: embedded defaults: %v", err))
	}
	return cfg
}

// ParseConfig overlays data on the embedded defaults and validates the
// result. Fields missing from data keep their default.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads a YAML file over the defaults. An empty path returns
// the defaults.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return ParseConfig(nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return ParseConfig(data)
}

func (c Config) Validate() error {
	switch {
	case c.CellEdge <= 0:
		return fmt.Errorf("%w: cell_edge must be positive, got %g", ErrInvalidConfig, c.CellEdge)
	case c.MaxCellsPerAxis <= 0 || c.MaxCellsPerAxis > 255:
		return fmt.Errorf("%w: max_cells_per_axis must be in [1,255], got %d", ErrInvalidConfig, c.MaxCellsPerAxis)
	case c.OverflowThreshold <= 0:
		return fmt.Errorf("%w: overflow_threshold must be positive, got %d", ErrInvalidConfig, c.OverflowThreshold)
	case c.UnboundedExtent <= 0:
		return fmt.Errorf("%w: unbounded_extent must be positive, got %g", ErrInvalidConfig, c.UnboundedExtent)
	case c.LineClipPadding < 0 || c.BrushPadding < 0:
		return fmt.Errorf("%w: paddings must not be negative", ErrInvalidConfig)
	case c.ArenaBlockSize <= 0:
		return fmt.Errorf("%w: arena_block_size must be positive, got %d", ErrInvalidConfig, c.ArenaBlockSize)
	case c.Pool.BlockSize <= 0:
		return fmt.Errorf("%w: pool.block_size must be positive, got %d", ErrInvalidConfig, c.Pool.BlockSize)
	case c.Pool.MaxBlocks < 0:
		return fmt.Errorf("%w: pool.max_blocks must not be negative, got %d", ErrInvalidConfig, c.Pool.MaxBlocks)
	}
	return nil
}
