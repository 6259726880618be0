package pool

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolReusesAndResets(t *testing.T) {
	resets := 0
	p := New(
		func() *bytes.Buffer { return new(bytes.Buffer) },
		func(b *bytes.Buffer) { resets++; b.Reset() },
	)

	b := p.Get()
	b.WriteString("row")
	p.Put(b)
	assert.Equal(t, 1, resets)
	assert.Zero(t, b.Len())

	allocated, inUse, _, misses := p.Stats()
	assert.Equal(t, int64(1), allocated)
	assert.Equal(t, int64(0), inUse)
	assert.Equal(t, int64(1), misses)
}

func TestPoolConcurrentUse(t *testing.T) {
	p := New(func() []byte { return make([]byte, 16) }, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b := p.Get()
				b[0] = byte(j)
				p.Put(b)
			}
		}()
	}
	wg.Wait()

	_, inUse, hits, misses := p.Stats()
	assert.Equal(t, int64(0), inUse)
	assert.LessOrEqual(t, hits+misses, int64(800))
	assert.Positive(t, misses)
}

func TestBufferPoolBuckets(t *testing.T) {
	bp := NewBufferPool()

	tests := []struct {
		size    int
		wantCap int
	}{
		{size: 1, wantCap: 64},
		{size: 64, wantCap: 64},
		{size: 65, wantCap: 512},
		{size: 16384, wantCap: 16384},
		{size: 131072, wantCap: 131072},
		{size: 5 << 20, wantCap: 5 << 20},
	}
	for _, tt := range tests {
		b := bp.Get(tt.size)
		assert.Len(t, b, tt.size)
		assert.Equal(t, tt.wantCap, cap(b), "size %d", tt.size)
		bp.Put(b)
	}
}

func TestGetPutBuffer(t *testing.T) {
	b := GetBuffer()
	require.NotNil(t, b)
	assert.Zero(t, b.Len())
	b.WriteString("dense4")
	PutBuffer(b)

	big := GetBuffer()
	big.Grow(maxPooledBuffer + 1)
	PutBuffer(big)
	PutBuffer(nil)

	stats := GetGlobalStats()
	assert.Contains(t, stats, "bytes_buffer")
	assert.Contains(t, stats, "slice_4096")
}
