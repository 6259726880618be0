package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ajitpratap0/voxpack/pkg/blockdata"
	"github.com/ajitpratap0/voxpack/pkg/config"
	"github.com/ajitpratap0/voxpack/pkg/logger"
	"github.com/ajitpratap0/voxpack/pkg/metrics"
)

// envPrefix scopes environment overrides, e.g. VOXPACK_DEFLATE_STRATEGY.
const envPrefix = "VOXPACK"

// flagKeys maps command flags onto configuration keys.
var flagKeys = map[string]string{
	"log-level": "logging.level",
	"strategy":  "deflate.strategy",
	"algorithm": "deflate.compression.algorithm",
	"level":     "deflate.compression.level",
	"workers":   "deflate.workers",
}

// loadSettings builds the effective configuration: defaults, then the
// --config file, then VOXPACK_* variables, then explicitly set flags.
func loadSettings(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		loaded, err := config.LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}
	overlay(v, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// overlay copies every key viper has a value for into cfg.
func overlay(v *viper.Viper, cfg *config.Config) {
	strs := map[string]*string{
		"chunk.default_variant":         &cfg.Chunk.DefaultVariant,
		"deflate.strategy":              &cfg.Deflate.Strategy,
		"deflate.compression.algorithm": &cfg.Deflate.Compression.Algorithm,
		"deflate.compression.level":     &cfg.Deflate.Compression.Level,
		"logging.level":                 &cfg.Logging.Level,
		"logging.encoding":              &cfg.Logging.Encoding,
	}
	for key, dst := range strs {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}

	ints := map[string]*int{
		"chunk.size_x":    &cfg.Chunk.SizeX,
		"chunk.size_y":    &cfg.Chunk.SizeY,
		"chunk.size_z":    &cfg.Chunk.SizeZ,
		"deflate.workers": &cfg.Deflate.Workers,
	}
	for key, dst := range ints {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}

	floats := map[string]*float64{
		"deflate.min_row_ratio": &cfg.Deflate.MinRowRatio,
		"deflate.min_savings":   &cfg.Deflate.MinSavings,
	}
	for key, dst := range floats {
		if v.IsSet(key) {
			*dst = v.GetFloat64(key)
		}
	}

	bools := map[string]*bool{
		"logging.development": &cfg.Logging.Development,
		"metrics.enabled":     &cfg.Metrics.Enabled,
	}
	for key, dst := range bools {
		if v.IsSet(key) {
			*dst = v.GetBool(key)
		}
	}
}

// applyAmbient installs the configured logger and metrics switch. Logs go
// to stderr so reports on stdout stay machine readable.
func applyAmbient(cfg *config.Config) error {
	l, err := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Encoding:    cfg.Logging.Encoding,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		return err
	}
	logger.Replace(l)
	metrics.SetEnabled(cfg.Metrics.Enabled)
	return nil
}

// setup is the common prologue of every command that does work.
func setup(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}
	if !blockdata.DefaultRegistry().Has(blockdata.Tag(cfg.Chunk.DefaultVariant)) {
		return nil, unknownDefaultVariant(cfg.Chunk.DefaultVariant)
	}
	if err := applyAmbient(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
