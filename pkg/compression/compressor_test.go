package compression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/voxpack/pkg/errors"
)

// chunkLike resembles a packed 4-bit light buffer: long uniform runs with
// a noisy band in the middle.
func chunkLike(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		switch {
		case i < n/3:
			data[i] = 0xFF
		case i < 2*n/3:
			data[i] = byte(i*31 + i>>3)
		}
	}
	return data
}

func TestCompressorsRoundTrip(t *testing.T) {
	original := chunkLike(32 * 1024)

	for _, alg := range Algorithms() {
		for _, level := range []Level{Fastest, Default, Better, Best} {
			t.Run(string(alg)+"/"+level.String(), func(t *testing.T) {
				c, err := NewCompressor(&Config{Algorithm: alg, Level: level})
				require.NoError(t, err)
				assert.Equal(t, alg, c.Algorithm())
				assert.Equal(t, level, c.Level())

				compressed, err := c.Compress(original)
				require.NoError(t, err)
				if alg != None {
					assert.Less(t, len(compressed), len(original))
				}

				got, err := c.Decompress(compressed)
				require.NoError(t, err)
				assert.Equal(t, original, got)

				got, err = c.DecompressLimit(compressed, len(original))
				require.NoError(t, err)
				assert.Equal(t, original, got)
			})
		}
	}
}

func TestDecompressLimit(t *testing.T) {
	original := chunkLike(4096)

	for _, alg := range Algorithms() {
		t.Run(string(alg), func(t *testing.T) {
			c, err := NewCompressor(&Config{Algorithm: alg, Level: Default})
			require.NoError(t, err)

			compressed, err := c.Compress(original)
			require.NoError(t, err)

			_, err = c.DecompressLimit(compressed, len(original)-1)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeData))
		})
	}
}

func TestDecompressCorruptInput(t *testing.T) {
	garbage := []byte("definitely not a compressed voxel buffer")

	for _, alg := range Algorithms() {
		// Raw deflate has no header to reject.
		if alg == None || alg == Deflate {
			continue
		}
		t.Run(string(alg), func(t *testing.T) {
			c, err := NewCompressor(&Config{Algorithm: alg, Level: Default})
			require.NoError(t, err)

			_, err = c.Decompress(garbage)
			assert.Error(t, err)
		})
	}
}

func TestNoneCompressorCopies(t *testing.T) {
	c, err := NewCompressor(&Config{Algorithm: None})
	require.NoError(t, err)

	in := []byte{1, 2, 3}
	out, err := c.Compress(in)
	require.NoError(t, err)
	out[0] = 9
	assert.Equal(t, byte(1), in[0])
}

func TestNewCompressorRejectsUnknown(t *testing.T) {
	_, err := NewCompressor(&Config{Algorithm: "brotli"})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	c, err := NewCompressor(nil)
	require.NoError(t, err)
	assert.Equal(t, LZ4, c.Algorithm())
}

func TestParseAlgorithm(t *testing.T) {
	a, err := ParseAlgorithm(" ZSTD ")
	require.NoError(t, err)
	assert.Equal(t, Zstd, a)

	_, err = ParseAlgorithm("rar")
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{in: "", want: Default},
		{in: "fastest", want: Fastest},
		{in: "Best", want: Best},
		{in: "7", want: Better},
		{in: "3", wantErr: true},
		{in: "ultra", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
	assert.Equal(t, "level3", Level(3).String())
}

func TestAlgorithmIDs(t *testing.T) {
	seen := map[byte]bool{}
	for _, a := range Algorithms() {
		id, err := a.ID()
		require.NoError(t, err)
		assert.False(t, seen[id], "duplicate id for %s", a)
		seen[id] = true

		back, err := AlgorithmFromID(id)
		require.NoError(t, err)
		assert.Equal(t, a, back)
	}

	_, err := AlgorithmFromID(200)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
	_, err = Algorithm("rar").ID()
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestCompressorPool(t *testing.T) {
	_, err := NewCompressorPool(&Config{Algorithm: "rar"})
	require.Error(t, err)

	cp, err := NewCompressorPool(&Config{Algorithm: Zstd, Level: Best})
	require.NoError(t, err)
	assert.Equal(t, Zstd, cp.Config().Algorithm)

	original := chunkLike(16 * 1024)
	compressed, err := cp.Compress(original)
	require.NoError(t, err)

	got, err := cp.DecompressLimit(compressed, len(original))
	require.NoError(t, err)
	assert.Equal(t, original, got)

	got, err = cp.Decompress(compressed)
	require.NoError(t, err)
	assert.Equal(t, original, got)
}

func BenchmarkCompress(b *testing.B) {
	data := chunkLike(65536)
	for _, alg := range Algorithms() {
		c, err := NewCompressor(&Config{Algorithm: alg, Level: Default})
		if err != nil {
			b.Fatal(err)
		}
		b.Run(string(alg), func(b *testing.B) {
			b.SetBytes(int64(len(data)))
			for i := 0; i < b.N; i++ {
				if _, err := c.Compress(data); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkDecompressLimit(b *testing.B) {
	data := chunkLike(65536)
	for _, alg := range Algorithms() {
		c, err := NewCompressor(&Config{Algorithm: alg, Level: Default})
		if err != nil {
			b.Fatal(err)
		}
		compressed, err := c.Compress(data)
		if err != nil {
			b.Fatal(err)
		}
		b.Run(string(alg), func(b *testing.B) {
			b.SetBytes(int64(len(data)))
			for i := 0; i < b.N; i++ {
				if _, err := c.DecompressLimit(compressed, len(data)); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
