// Package pool provides typed object pooling for voxpack's cold paths:
// compression scratch buffers and the byte slices that dense rows are
// rebuilt into while deflating.
//
// Example usage:
//
//	buf := pool.GetBuffer()
//	defer pool.PutBuffer(buf)
//	enc.Reset(buf)
//
//	// Using custom pools
//	rows := pool.New(
//	    func() []int { return make([]int, 0, 256) },
//	    nil,
//	)
package pool

import (
	"bytes"
	"strconv"
	"sync"
	"sync/atomic"
)

// Pool represents a generic object pool with type safety.
// It wraps sync.Pool with statistics tracking and an optional reset hook.
// The pool is safe for concurrent use.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T)
	stats struct {
		allocated int64
		inUse     int64
		hits      int64
		misses    int64
	}
}

// New creates a new typed pool. The new function is called when the pool
// is empty; reset, if non-nil, runs on every object handed to Put.
func New[T any](new func() T, reset func(T)) *Pool[T] {
	p := &Pool[T]{reset: reset}
	p.pool.New = func() interface{} {
		atomic.AddInt64(&p.stats.allocated, 1)
		atomic.AddInt64(&p.stats.misses, 1)
		return new()
	}
	return p
}

// Get retrieves an object from the pool, allocating one if it is empty.
func (p *Pool[T]) Get() T {
	atomic.AddInt64(&p.stats.inUse, 1)
	before := atomic.LoadInt64(&p.stats.misses)
	obj := p.pool.Get().(T)
	if atomic.LoadInt64(&p.stats.misses) == before {
		atomic.AddInt64(&p.stats.hits, 1)
	}
	return obj
}

// Put returns an object to the pool for reuse.
func (p *Pool[T]) Put(obj T) {
	if p.reset != nil {
		p.reset(obj)
	}
	atomic.AddInt64(&p.stats.inUse, -1)
	p.pool.Put(obj)
}

// Stats returns allocation count, objects currently checked out, and the
// number of Gets served from the pool versus freshly allocated. Hits and
// misses are approximate under concurrent use.
func (p *Pool[T]) Stats() (allocated, inUse, hits, misses int64) {
	return atomic.LoadInt64(&p.stats.allocated),
		atomic.LoadInt64(&p.stats.inUse),
		atomic.LoadInt64(&p.stats.hits),
		atomic.LoadInt64(&p.stats.misses)
}

// maxPooledBuffer keeps one oversized payload from pinning memory.
const maxPooledBuffer = 4 << 20

var (
	// BytesBufferPool holds scratch buffers for encoders and decoders.
	BytesBufferPool = New(
		func() *bytes.Buffer { return new(bytes.Buffer) },
		func(b *bytes.Buffer) { b.Reset() },
	)

	// GlobalBufferPool serves fixed-size byte slices.
	GlobalBufferPool = NewBufferPool()
)

// GetBuffer returns an empty bytes.Buffer.
func GetBuffer() *bytes.Buffer { return BytesBufferPool.Get() }

// PutBuffer recycles b. Buffers that grew past maxPooledBuffer are dropped.
func PutBuffer(b *bytes.Buffer) {
	if b == nil || b.Cap() > maxPooledBuffer {
		return
	}
	BytesBufferPool.Put(b)
}

// BufferPool manages byte slices in size-based buckets. Sizes follow the
// buffers voxpack actually allocates: packed rows of a standard chunk at
// the low end, whole 16-bit chunk buffers at the high end.
type BufferPool struct {
	pools []*Pool[[]byte]
	sizes []int
}

// NewBufferPool creates a buffer pool with buckets from 64B to 4MB.
func NewBufferPool() *BufferPool {
	sizes := []int{
		64,      // 1-bit row of a 16x16 plane
		512,     // 16-bit row
		4096,    // 1-bit chunk
		16384,   // 4-bit chunk
		65536,   // 8-bit chunk
		131072,  // 16-bit chunk
		1048576, // 1MB
		4194304, // 4MB
	}

	pools := make([]*Pool[[]byte], len(sizes))
	for i, size := range sizes {
		size := size
		pools[i] = New(func() []byte { return make([]byte, size) }, nil)
	}
	return &BufferPool{pools: pools, sizes: sizes}
}

// Get returns a slice of length size. Its capacity is the bucket size, or
// exactly size when no bucket is large enough.
func (p *BufferPool) Get(size int) []byte {
	for i, s := range p.sizes {
		if s >= size {
			buf := p.pools[i].Get()
			return buf[:size]
		}
	}
	return make([]byte, size)
}

// Put returns buf to the bucket matching its capacity. Buffers of any
// other capacity are left to the garbage collector.
func (p *BufferPool) Put(buf []byte) {
	size := cap(buf)
	for i, s := range p.sizes {
		if s == size {
			p.pools[i].Put(buf[:size])
			return
		}
	}
}

// Stats represents pool statistics for monitoring.
type Stats struct {
	Allocated int64
	InUse     int64
	Hits      int64
	Misses    int64
}

// GetGlobalStats returns statistics for the shared pools, keyed by name.
func GetGlobalStats() map[string]Stats {
	out := make(map[string]Stats, 1+len(GlobalBufferPool.sizes))
	a, u, h, m := BytesBufferPool.Stats()
	out["bytes_buffer"] = Stats{Allocated: a, InUse: u, Hits: h, Misses: m}
	for i, size := range GlobalBufferPool.sizes {
		a, u, h, m := GlobalBufferPool.pools[i].Stats()
		out["slice_"+strconv.Itoa(size)] = Stats{Allocated: a, InUse: u, Hits: h, Misses: m}
	}
	return out
}
