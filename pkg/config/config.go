// Package config defines voxpack's configuration: the default chunk shape,
// which deflation strategy chunk-managing code applies to idle arrays, and
// the ambient logging and metrics settings.
//
// The configuration is organized into logical sections:
//   - Chunk: dimensions and the variant new arrays are created as
//   - Deflate: strategy, compression codec and thresholds
//   - Logging: zap level and encoding
//   - Metrics: whether Prometheus collectors record
//
// Example usage:
//
//	cfg, err := config.LoadFile("voxpack.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	dims := cfg.Chunk.Dimensions()
package config

import (
	"runtime"

	"github.com/ajitpratap0/voxpack/pkg/blockdata"
	"github.com/ajitpratap0/voxpack/pkg/compression"
	"github.com/ajitpratap0/voxpack/pkg/errors"
)

// Deflation strategies.
const (
	StrategyNone       = "none"
	StrategyRows       = "rows"
	StrategyCompressed = "compressed"
)

// Config is the root configuration structure.
type Config struct {
	// Chunk describes the arrays created for each chunk
	Chunk ChunkConfig `yaml:"chunk" json:"chunk" mapstructure:"chunk"`

	// Deflate controls how idle arrays are compacted
	Deflate DeflateConfig `yaml:"deflate" json:"deflate" mapstructure:"deflate"`

	// Logging configures the global zap logger
	Logging LoggingConfig `yaml:"logging" json:"logging" mapstructure:"logging"`

	// Metrics toggles Prometheus recording
	Metrics MetricsConfig `yaml:"metrics" json:"metrics" mapstructure:"metrics"`
}

// ChunkConfig describes the arrays created for each chunk.
type ChunkConfig struct {
	SizeX int `yaml:"size_x" json:"size_x" mapstructure:"size_x"`
	SizeY int `yaml:"size_y" json:"size_y" mapstructure:"size_y"`
	SizeZ int `yaml:"size_z" json:"size_z" mapstructure:"size_z"`
	// DefaultVariant is the registry tag new arrays are created with
	DefaultVariant string `yaml:"default_variant" json:"default_variant" mapstructure:"default_variant"`
}

// Dimensions returns the configured chunk extent.
func (c ChunkConfig) Dimensions() blockdata.Dimensions {
	return blockdata.NewDimensions(c.SizeX, c.SizeY, c.SizeZ)
}

// DeflateConfig controls how idle arrays are compacted.
type DeflateConfig struct {
	// Strategy is one of none, rows or compressed
	Strategy string `yaml:"strategy" json:"strategy" mapstructure:"strategy"`
	// Compression selects the codec for the compressed strategy
	Compression CompressionConfig `yaml:"compression" json:"compression" mapstructure:"compression"`
	// MinRowRatio is the share of uniform rows the rows strategy requires
	MinRowRatio float64 `yaml:"min_row_ratio" json:"min_row_ratio" mapstructure:"min_row_ratio"`
	// MinSavings is the share of memory the compressed strategy must save
	MinSavings float64 `yaml:"min_savings" json:"min_savings" mapstructure:"min_savings"`
	// Workers bounds concurrent deflation in batch passes; 0 means NumCPU
	Workers int `yaml:"workers" json:"workers" mapstructure:"workers"`
}

// CompressionConfig names a codec and level.
type CompressionConfig struct {
	Algorithm string `yaml:"algorithm" json:"algorithm" mapstructure:"algorithm"`
	Level     string `yaml:"level" json:"level" mapstructure:"level"`
}

// LoggingConfig configures the global zap logger.
type LoggingConfig struct {
	Level       string `yaml:"level" json:"level" mapstructure:"level"`
	Encoding    string `yaml:"encoding" json:"encoding" mapstructure:"encoding"`
	Development bool   `yaml:"development" json:"development" mapstructure:"development"`
}

// MetricsConfig toggles Prometheus recording.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
}

// Default returns a configuration for standard 16x256x16 chunks of 4-bit
// arrays, compacted by collapsing uniform rows.
func Default() *Config {
	d := blockdata.DefaultDimensions
	return &Config{
		Chunk: ChunkConfig{
			SizeX:          d.SizeX,
			SizeY:          d.SizeY,
			SizeZ:          d.SizeZ,
			DefaultVariant: string(blockdata.DenseTag(blockdata.Width4)),
		},
		Deflate: DeflateConfig{
			Strategy: StrategyRows,
			Compression: CompressionConfig{
				Algorithm: string(compression.LZ4),
				Level:     compression.Default.String(),
			},
			MinRowRatio: 0.25,
			MinSavings:  0.5,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate checks every section and returns the first problem found as a
// config error naming the offending field.
func (c *Config) Validate() error {
	if err := c.Chunk.Dimensions().Validate(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid chunk dimensions").
			WithDetail("field", "chunk")
	}
	if c.Chunk.DefaultVariant == "" {
		return invalid("chunk.default_variant", "must not be empty", c.Chunk.DefaultVariant)
	}

	switch c.Deflate.Strategy {
	case StrategyNone, StrategyRows, StrategyCompressed:
	default:
		return invalid("deflate.strategy", "must be none, rows or compressed", c.Deflate.Strategy)
	}
	if _, err := c.Deflate.CompressionSettings(); err != nil {
		return err
	}
	if c.Deflate.MinRowRatio < 0 || c.Deflate.MinRowRatio > 1 {
		return invalid("deflate.min_row_ratio", "must lie in [0, 1]", c.Deflate.MinRowRatio)
	}
	if c.Deflate.MinSavings < 0 || c.Deflate.MinSavings >= 1 {
		return invalid("deflate.min_savings", "must lie in [0, 1)", c.Deflate.MinSavings)
	}
	if c.Deflate.Workers < 0 {
		return invalid("deflate.workers", "cannot be negative", c.Deflate.Workers)
	}

	switch c.Logging.Encoding {
	case "json", "console":
	default:
		return invalid("logging.encoding", "must be json or console", c.Logging.Encoding)
	}
	return nil
}

// CompressionSettings parses the codec section.
func (d *DeflateConfig) CompressionSettings() (*compression.Config, error) {
	alg, err := compression.ParseAlgorithm(d.Compression.Algorithm)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid deflate.compression.algorithm")
	}
	level, err := compression.ParseLevel(d.Compression.Level)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid deflate.compression.level")
	}
	return &compression.Config{Algorithm: alg, Level: level}, nil
}

// GetWorkers returns the number of deflation workers, at least 1.
func (d *DeflateConfig) GetWorkers() int {
	if d.Workers <= 0 {
		return runtime.NumCPU()
	}
	return d.Workers
}

func invalid(field, msg string, value interface{}) error {
	return errors.New(errors.ErrorTypeConfig, field+" "+msg).
		WithDetail("field", field).
		WithDetail("value", value)
}
