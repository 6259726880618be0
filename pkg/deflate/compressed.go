package deflate

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/ajitpratap0/voxpack/pkg/blockdata"
	"github.com/ajitpratap0/voxpack/pkg/compression"
	"github.com/ajitpratap0/voxpack/pkg/errors"
	"github.com/ajitpratap0/voxpack/pkg/logger"
	"github.com/ajitpratap0/voxpack/pkg/metrics"
)

const compressedOverhead = 96

var inflationMetrics = metrics.NewCollector("compressed_array")

// CompressedTag returns the tag of the compressed variant for w, e.g.
// "compressed4".
func CompressedTag(w blockdata.Width) blockdata.Tag {
	return blockdata.Tag("compressed" + strconv.Itoa(w.Bits()))
}

// CompressedArray holds a compressed copy of a dense buffer and expands it
// into a DenseArray the first time any element is read or written. From
// then on it behaves exactly like the DenseArray and the compressed payload
// is released.
//
// Inflation verifies an xxhash64 checksum of the raw buffer. Get, Set and
// CompareAndSet panic with a data error if the payload is corrupt; call
// Inflate first to handle that case as an error. Concurrent readers are
// safe during inflation; writers follow the DenseArray rules.
type CompressedArray struct {
	width     blockdata.Width
	dims      blockdata.Dimensions
	codec     *compression.CompressorPool
	checksum  uint64
	payload   []byte
	mu        sync.Mutex
	dense     atomic.Pointer[blockdata.DenseArray]
	inflateMu sync.Mutex
}

// Compress builds a CompressedArray from v's buffer using codec.
func Compress(v blockdata.DenseView, codec *compression.CompressorPool) (*CompressedArray, error) {
	payload, err := codec.Compress(v.Data)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to compress dense buffer").
			WithDetail("algorithm", string(codec.Config().Algorithm))
	}
	return &CompressedArray{
		width:    v.Width,
		dims:     v.Dims,
		codec:    codec,
		checksum: xxhash.Sum64(v.Data),
		payload:  payload,
	}, nil
}

// Algorithm returns the codec the payload was written with.
func (c *CompressedArray) Algorithm() compression.Algorithm { return c.codec.Config().Algorithm }

// Checksum returns the xxhash64 of the uncompressed buffer.
func (c *CompressedArray) Checksum() uint64 { return c.checksum }

// Inflated reports whether the array has been expanded.
func (c *CompressedArray) Inflated() bool { return c.dense.Load() != nil }

// PayloadSize returns the compressed size, or 0 once inflated.
func (c *CompressedArray) PayloadSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.payload)
}

// Inflate expands the payload, verifying its size and checksum, and returns
// the DenseArray that backs the receiver from now on.
func (c *CompressedArray) Inflate() (*blockdata.DenseArray, error) {
	if d := c.dense.Load(); d != nil {
		return d, nil
	}
	c.inflateMu.Lock()
	defer c.inflateMu.Unlock()
	if d := c.dense.Load(); d != nil {
		return d, nil
	}

	c.mu.Lock()
	payload := c.payload
	c.mu.Unlock()

	d, err := c.decode(payload)
	inflationMetrics.Inflation(string(c.Algorithm()), err)
	if err != nil {
		logger.Get().Warn("compressed array failed to inflate",
			zap.String("component", "compressed_array"),
			zap.String("variant", string(c.Tag())),
			zap.String("dimensions", c.dims.String()),
			zap.Error(err))
		return nil, err
	}

	c.dense.Store(d)
	c.mu.Lock()
	c.payload = nil
	c.mu.Unlock()
	return d, nil
}

func (c *CompressedArray) decode(payload []byte) (*blockdata.DenseArray, error) {
	size := blockdata.NewLayout(c.width, c.dims).BufferSize()
	raw, err := c.codec.DecompressLimit(payload, size)
	if err != nil {
		return nil, err
	}
	if sum := xxhash.Sum64(raw); sum != c.checksum {
		return nil, errors.New(errors.ErrorTypeData, "compressed array checksum mismatch").
			WithDetail("expected", c.checksum).
			WithDetail("actual", sum)
	}
	return blockdata.NewDenseArrayFromData(c.width, c.dims, raw)
}

func (c *CompressedArray) mustInflate() *blockdata.DenseArray {
	d, err := c.Inflate()
	if err != nil {
		panic(err)
	}
	return d
}

func (c *CompressedArray) Get(x, y, z int) int { return c.mustInflate().Get(x, y, z) }

func (c *CompressedArray) Set(x, y, z, value int) int {
	return c.mustInflate().Set(x, y, z, value)
}

func (c *CompressedArray) CompareAndSet(x, y, z, value, expected int) bool {
	return c.mustInflate().CompareAndSet(x, y, z, value, expected)
}

func (c *CompressedArray) ElementSizeInBits() int           { return c.width.Bits() }
func (c *CompressedArray) Width() blockdata.Width           { return c.width }
func (c *CompressedArray) Dimensions() blockdata.Dimensions { return c.dims }
func (c *CompressedArray) Tag() blockdata.Tag               { return CompressedTag(c.width) }

// Deflate keeps a cold array as it is. Once inflated, the dense contents
// are offered to d.
func (c *CompressedArray) Deflate(d blockdata.Deflator) blockdata.Array {
	dense := c.dense.Load()
	if d == nil || dense == nil {
		return c
	}
	if r := d.DeflateDense(dense.View()); r != nil {
		return r
	}
	return c
}

// Copy returns an independent array. A cold array shares nothing mutable
// with its copy, so the payload itself is reused.
func (c *CompressedArray) Copy() blockdata.Array {
	if d := c.dense.Load(); d != nil {
		cp := &CompressedArray{width: c.width, dims: c.dims, codec: c.codec, checksum: c.checksum}
		cp.dense.Store(d.Copy().(*blockdata.DenseArray))
		return cp
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return &CompressedArray{
		width:    c.width,
		dims:     c.dims,
		codec:    c.codec,
		checksum: c.checksum,
		payload:  c.payload,
	}
}

func (c *CompressedArray) EstimatedMemoryConsumptionInBytes() int {
	if d := c.dense.Load(); d != nil {
		return compressedOverhead + d.EstimatedMemoryConsumptionInBytes()
	}
	return compressedOverhead + c.PayloadSize()
}

// payloadForWrite returns the compressed bytes and checksum to persist,
// recompressing if the array has been inflated since.
func (c *CompressedArray) payloadForWrite() ([]byte, uint64, error) {
	if d := c.dense.Load(); d != nil {
		payload, err := c.codec.Compress(d.Data())
		if err != nil {
			return nil, 0, errors.Wrap(err, errors.ErrorTypeData, "failed to compress dense buffer")
		}
		return payload, xxhash.Sum64(d.Data()), nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.payload, c.checksum, nil
}

func (c *CompressedArray) String() string {
	state := "cold"
	if c.Inflated() {
		state = "inflated"
	}
	return fmt.Sprintf("CompressedArray(%s, %s, %s, %s)", c.width, c.dims, c.Algorithm(), state)
}

// CompressingDeflator compresses whole dense buffers into CompressedArrays.
// It declines when compression does not save at least MinSavings of the
// dense estimate.
type CompressingDeflator struct {
	codec      *compression.CompressorPool
	MinSavings float64
	logger     *zap.Logger
}

// NewCompressingDeflator builds a deflator around a pool for cfg.
func NewCompressingDeflator(cfg *compression.Config) (*CompressingDeflator, error) {
	codec, err := compression.NewCompressorPool(cfg)
	if err != nil {
		return nil, err
	}
	return &CompressingDeflator{
		codec:      codec,
		MinSavings: 0.5,
		logger:     logger.Get().With(zap.String("component", "compressing_deflator")),
	}, nil
}

// Codec returns the pool the deflator compresses with.
func (d *CompressingDeflator) Codec() *compression.CompressorPool { return d.codec }

// DeflateDense implements blockdata.Deflator.
func (d *CompressingDeflator) DeflateDense(v blockdata.DenseView) blockdata.Array {
	c, err := Compress(v, d.codec)
	if err != nil {
		d.logger.Warn("compression failed, keeping dense array",
			zap.String("dimensions", v.Dims.String()),
			zap.Error(err))
		return nil
	}
	dense := blockdata.EstimateDenseBytes(len(v.Data))
	if float64(c.EstimatedMemoryConsumptionInBytes()) > float64(dense)*(1-d.MinSavings) {
		return nil
	}
	return c
}
