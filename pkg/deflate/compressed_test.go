package deflate

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/voxpack/pkg/blockdata"
	"github.com/ajitpratap0/voxpack/pkg/compression"
	"github.com/ajitpratap0/voxpack/pkg/errors"
)

func lz4Codec(t testing.TB) *compression.CompressorPool {
	t.Helper()
	c, err := compression.NewCompressorPool(&compression.Config{Algorithm: compression.LZ4, Level: compression.Default})
	require.NoError(t, err)
	return c
}

func TestCompressRoundTrip(t *testing.T) {
	for _, alg := range compression.Algorithms() {
		t.Run(string(alg), func(t *testing.T) {
			codec, err := compression.NewCompressorPool(&compression.Config{Algorithm: alg, Level: compression.Default})
			require.NoError(t, err)

			dense := terrain(blockdata.Width4)
			c, err := Compress(dense.View(), codec)
			require.NoError(t, err)
			assert.Equal(t, CompressedTag(blockdata.Width4), c.Tag())
			assert.Equal(t, alg, c.Algorithm())
			assert.False(t, c.Inflated())
			assert.Positive(t, c.PayloadSize())

			assertSameContents(t, dense, c)
			assert.True(t, c.Inflated())
			assert.Zero(t, c.PayloadSize())
		})
	}
}

func TestCompressedArrayWritesAfterInflate(t *testing.T) {
	dense := terrain(blockdata.Width8)
	c, err := Compress(dense.View(), lz4Codec(t))
	require.NoError(t, err)

	assert.Equal(t, 255, c.Set(3, 1, 3, 42))
	assert.Equal(t, 42, c.Get(3, 1, 3))
	assert.True(t, c.CompareAndSet(3, 1, 3, 43, 42))
	assert.False(t, c.CompareAndSet(3, 1, 3, 44, 42))
	assert.Equal(t, 43, c.Get(3, 1, 3))

	// The source buffer is untouched.
	assert.Equal(t, 255, dense.Get(3, 1, 3))
}

func TestCompressedArrayChecksumMismatch(t *testing.T) {
	c, err := Compress(terrain(blockdata.Width4).View(), lz4Codec(t))
	require.NoError(t, err)
	c.checksum ^= 1

	_, err = c.Inflate()
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
	assert.False(t, c.Inflated())

	assert.Panics(t, func() { c.Get(0, 0, 0) })
}

func TestCompressedArrayCorruptPayload(t *testing.T) {
	c, err := Compress(terrain(blockdata.Width4).View(), lz4Codec(t))
	require.NoError(t, err)
	c.payload = append([]byte(nil), c.payload[:len(c.payload)/2]...)

	_, err = c.Inflate()
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}

func TestCompressedArrayConcurrentReaders(t *testing.T) {
	dense := terrain(blockdata.Width2)
	c, err := Compress(dense.View(), lz4Codec(t))
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.Get(i, 0, i)
		}(i)
	}
	wg.Wait()
	for i, v := range results {
		assert.Equal(t, dense.Get(i, 0, i), v)
	}
}

func TestCompressedArrayCopy(t *testing.T) {
	c, err := Compress(terrain(blockdata.Width4).View(), lz4Codec(t))
	require.NoError(t, err)

	cold := c.Copy().(*CompressedArray)
	assert.False(t, cold.Inflated())

	c.Set(0, 10, 0, 5)
	warm := c.Copy().(*CompressedArray)
	assert.True(t, warm.Inflated())
	warm.Set(0, 10, 0, 6)

	assert.Equal(t, 5, c.Get(0, 10, 0))
	assert.Equal(t, 6, warm.Get(0, 10, 0))
	assert.Equal(t, 0, cold.Get(0, 10, 0))
}

func TestCompressedArrayDeflate(t *testing.T) {
	c, err := Compress(terrain(blockdata.Width4).View(), lz4Codec(t))
	require.NoError(t, err)

	assert.Same(t, c, c.Deflate(NewRowDeflator()))
	assert.False(t, c.Inflated())

	c.Get(0, 0, 0)
	out := c.Deflate(NewRowDeflator())
	require.IsType(t, &SparseArray{}, out)
	assertSameContents(t, c, out)
}

func TestCompressingDeflator(t *testing.T) {
	d, err := NewCompressingDeflator(&compression.Config{Algorithm: compression.Zstd, Level: compression.Better})
	require.NoError(t, err)
	assert.Equal(t, compression.Zstd, d.Codec().Config().Algorithm)

	dense := terrain(blockdata.Width4)
	out := dense.Deflate(d)
	require.IsType(t, &CompressedArray{}, out)
	assert.Less(t, out.EstimatedMemoryConsumptionInBytes(), dense.EstimatedMemoryConsumptionInBytes())
	assertSameContents(t, dense, out)

	// Incompressible buffers stay dense.
	noise := blockdata.NewDenseArray(blockdata.Width8, terrainDims)
	seed := uint32(2463534242)
	for i := range noise.Data() {
		seed ^= seed << 13
		seed ^= seed >> 17
		seed ^= seed << 5
		noise.Data()[i] = byte(seed)
	}
	assert.Same(t, noise, noise.Deflate(d))

	_, err = NewCompressingDeflator(&compression.Config{Algorithm: "rar"})
	assert.Error(t, err)
}
