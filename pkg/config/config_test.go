package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/voxpack/pkg/blockdata"
	"github.com/ajitpratap0/voxpack/pkg/compression"
	"github.com/ajitpratap0/voxpack/pkg/errors"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, blockdata.DefaultDimensions, cfg.Chunk.Dimensions())
	assert.Equal(t, "dense4", cfg.Chunk.DefaultVariant)

	cc, err := cfg.Deflate.CompressionSettings()
	require.NoError(t, err)
	assert.Equal(t, compression.LZ4, cc.Algorithm)
	assert.Equal(t, compression.Default, cc.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"zero size", func(c *Config) { c.Chunk.SizeY = 0 }, "chunk"},
		{"no variant", func(c *Config) { c.Chunk.DefaultVariant = "" }, "chunk.default_variant"},
		{"bad strategy", func(c *Config) { c.Deflate.Strategy = "squash" }, "deflate.strategy"},
		{"bad ratio", func(c *Config) { c.Deflate.MinRowRatio = 1.5 }, "deflate.min_row_ratio"},
		{"bad savings", func(c *Config) { c.Deflate.MinSavings = 1 }, "deflate.min_savings"},
		{"negative workers", func(c *Config) { c.Deflate.Workers = -1 }, "deflate.workers"},
		{"bad encoding", func(c *Config) { c.Logging.Encoding = "xml" }, "logging.encoding"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

			var se *errors.Error
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.field, se.Details["field"])
		})
	}
}

func TestValidateCompression(t *testing.T) {
	cfg := Default()
	cfg.Deflate.Compression.Algorithm = "rar"
	assert.True(t, errors.IsType(cfg.Validate(), errors.ErrorTypeConfig))

	cfg = Default()
	cfg.Deflate.Compression.Level = "ludicrous"
	assert.True(t, errors.IsType(cfg.Validate(), errors.ErrorTypeConfig))
}

func TestGetWorkers(t *testing.T) {
	d := DeflateConfig{}
	assert.GreaterOrEqual(t, d.GetWorkers(), 1)
	d.Workers = 3
	assert.Equal(t, 3, d.GetWorkers())
}

func TestLoadFileWithEnvSubstitution(t *testing.T) {
	t.Setenv("VOXPACK_TEST_ALG", "zstd")

	path := filepath.Join(t.TempDir(), "voxpack.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
chunk:
  size_y: 128
  default_variant: dense8
deflate:
  strategy: compressed
  compression:
    algorithm: ${VOXPACK_TEST_ALG}
    level: best
`), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, blockdata.NewDimensions(16, 128, 16), cfg.Chunk.Dimensions())
	assert.Equal(t, "dense8", cfg.Chunk.DefaultVariant)
	assert.Equal(t, StrategyCompressed, cfg.Deflate.Strategy)
	assert.Equal(t, "zstd", cfg.Deflate.Compression.Algorithm)
	assert.Equal(t, 0.25, cfg.Deflate.MinRowRatio)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("chunk: [1, 2"), 0o600))
	_, err = LoadFile(bad)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	invalidCfg := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalidCfg, []byte("deflate:\n  strategy: squash\n"), 0o600))
	_, err = LoadFile(invalidCfg)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Default()
	cfg.Deflate.Workers = 2
	require.NoError(t, Save(path, cfg))

	got, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("VOXPACK_A", "1")
	t.Setenv("VOXPACK_LOOP", "${VOXPACK_A}")

	assert.Equal(t, "x=1 y=", substituteEnvVars("x=${VOXPACK_A} y=${VOXPACK_UNSET_FOR_TEST}"))
	assert.Equal(t, "${VOXPACK_A}", substituteEnvVars("${VOXPACK_LOOP}"))
	assert.Equal(t, "open ${brace", substituteEnvVars("open ${brace"))
}
