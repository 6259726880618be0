// Package compression provides the codecs used to keep cold voxel arrays
// small: their packed buffers are compressed whole and inflated again on
// first access.
//
// # Overview
//
// The compression package provides:
//   - Multiple compression algorithms (Gzip, Snappy, LZ4, Zstd, S2, Deflate)
//   - Configurable compression levels (Fastest, Default, Better, Best)
//   - Pooling of encoder state and scratch buffers
//   - Bounded decompression for payloads whose size is known in advance
//
// # Algorithm Selection
//
// Packed voxel buffers are dominated by long runs (air, stone, full light),
// so every algorithm here compresses them well. The choice is mostly about
// inflation latency:
//   - LZ4, Snappy/S2: fastest to inflate, good for arrays that warm up again
//   - Zstd: best ratio, for arrays that are unlikely to be touched
//   - Gzip/Deflate: compatibility with external tooling
//
// # Basic Usage
//
//	comp, err := compression.NewCompressor(&compression.Config{
//	    Algorithm: compression.LZ4,
//	    Level:     compression.Default,
//	})
//
//	compressed, err := comp.Compress(arr.Data())
//	data, err := comp.DecompressLimit(compressed, len(arr.Data()))
package compression

import (
	"bytes"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/ajitpratap0/voxpack/pkg/errors"
	"github.com/ajitpratap0/voxpack/pkg/pool"
)

// Algorithm represents a compression algorithm.
type Algorithm string

const (
	// None represents no compression
	None Algorithm = "none"
	// Gzip represents gzip compression
	Gzip Algorithm = "gzip"
	// Snappy represents snappy compression
	Snappy Algorithm = "snappy"
	// LZ4 represents lz4 frame compression
	LZ4 Algorithm = "lz4"
	// Zstd represents zstandard compression
	Zstd Algorithm = "zstd"
	// S2 represents s2 compression (Snappy compatible)
	S2 Algorithm = "s2"
	// Deflate represents raw deflate compression
	Deflate Algorithm = "deflate"
)

// algorithmIDs are the one-byte codes written into serialized payloads.
// Codes are persisted and must never be reused.
var algorithmIDs = map[Algorithm]byte{
	None:    0,
	Gzip:    1,
	Snappy:  2,
	LZ4:     3,
	Zstd:    4,
	S2:      5,
	Deflate: 6,
}

// Algorithms lists every supported algorithm in name order.
func Algorithms() []Algorithm {
	out := make([]Algorithm, 0, len(algorithmIDs))
	for a := range algorithmIDs {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseAlgorithm accepts an algorithm name in any case.
func ParseAlgorithm(s string) (Algorithm, error) {
	a := Algorithm(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := algorithmIDs[a]; !ok {
		return "", errors.New(errors.ErrorTypeConfig, "unsupported compression algorithm").
			WithDetail("algorithm", s)
	}
	return a, nil
}

// ID returns the persisted code of a.
func (a Algorithm) ID() (byte, error) {
	id, ok := algorithmIDs[a]
	if !ok {
		return 0, errors.New(errors.ErrorTypeConfig, "unsupported compression algorithm").
			WithDetail("algorithm", string(a))
	}
	return id, nil
}

// AlgorithmFromID is the inverse of Algorithm.ID.
func AlgorithmFromID(id byte) (Algorithm, error) {
	for a, v := range algorithmIDs {
		if v == id {
			return a, nil
		}
	}
	return "", errors.New(errors.ErrorTypeData, "unknown compression algorithm code").
		WithDetail("code", int(id))
}

// Level represents compression level, controlling the trade-off between
// compression speed and compression ratio.
type Level int

const (
	// Fastest prioritizes speed over compression ratio.
	Fastest Level = 1
	// Default balances speed and compression.
	Default Level = 5
	// Better improves compression at cost of speed.
	Better Level = 7
	// Best maximizes compression ratio.
	Best Level = 9
)

var levelNames = map[Level]string{
	Fastest: "fastest",
	Default: "default",
	Better:  "better",
	Best:    "best",
}

func (l Level) String() string {
	if n, ok := levelNames[l]; ok {
		return n
	}
	return "level" + strconv.Itoa(int(l))
}

// ParseLevel accepts a level name ("fastest", "default", "better", "best")
// or its numeric value.
func ParseLevel(s string) (Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Default, nil
	}
	for l, n := range levelNames {
		if n == s {
			return l, nil
		}
	}
	if n, err := strconv.Atoi(s); err == nil {
		if _, ok := levelNames[Level(n)]; ok {
			return Level(n), nil
		}
	}
	return 0, errors.New(errors.ErrorTypeConfig, "unsupported compression level").
		WithDetail("level", s)
}

// Compressor provides compression and decompression functionality.
// All implementations are safe for concurrent use.
type Compressor interface {
	// Compress compresses data and returns the compressed bytes.
	// The input data is not modified.
	Compress(data []byte) ([]byte, error)

	// Decompress decompresses data and returns the original bytes.
	Decompress(data []byte) ([]byte, error)

	// DecompressLimit is Decompress that fails with a data error instead
	// of producing more than max bytes.
	DecompressLimit(data []byte, max int) ([]byte, error)

	// Algorithm returns the compression algorithm used.
	Algorithm() Algorithm

	// Level returns the compression level configured.
	Level() Level
}

// Config represents compressor configuration.
type Config struct {
	Algorithm Algorithm `yaml:"algorithm" json:"algorithm"`
	Level     Level     `yaml:"level" json:"level"`
}

// DefaultConfig returns LZ4 at the default level.
func DefaultConfig() *Config {
	return &Config{
		Algorithm: LZ4,
		Level:     Default,
	}
}

// NewCompressor creates a new compressor based on the provided configuration.
// If config is nil, default configuration is used.
func NewCompressor(config *Config) (Compressor, error) {
	if config == nil {
		config = DefaultConfig()
	}
	base := baseCompressor{algorithm: config.Algorithm, level: config.Level}

	switch config.Algorithm {
	case None:
		return &noneCompressor{base}, nil
	case Gzip:
		return newGzipCompressor(base)
	case Snappy:
		return &snappyCompressor{base}, nil
	case LZ4:
		return &lz4Compressor{baseCompressor: base, compressionLevel: mapLZ4Level(config.Level)}, nil
	case Zstd:
		return newZstdCompressor(base)
	case S2:
		return &s2Compressor{base}, nil
	case Deflate:
		return &deflateCompressor{baseCompressor: base, flateLevel: mapDeflateLevel(config.Level)}, nil
	default:
		return nil, errors.New(errors.ErrorTypeConfig, "unsupported compression algorithm").
			WithDetail("algorithm", string(config.Algorithm))
	}
}

// CompressorPool hands out compressors of one configuration.
// CompressorPool is safe for concurrent use.
type CompressorPool struct {
	pool   *pool.Pool[Compressor]
	config Config
}

// NewCompressorPool validates config by building one compressor and returns
// a pool seeded with it.
func NewCompressorPool(config *Config) (*CompressorPool, error) {
	if config == nil {
		config = DefaultConfig()
	}
	first, err := NewCompressor(config)
	if err != nil {
		return nil, err
	}
	cfg := *config
	cp := &CompressorPool{config: cfg}
	cp.pool = pool.New(func() Compressor {
		c, _ := NewCompressor(&cfg)
		return c
	}, nil)
	cp.pool.Put(first)
	return cp, nil
}

// Config returns the pool's configuration.
func (cp *CompressorPool) Config() Config { return cp.config }

// Get gets a compressor from pool
func (cp *CompressorPool) Get() Compressor {
	return cp.pool.Get()
}

// Put returns compressor to pool
func (cp *CompressorPool) Put(c Compressor) {
	cp.pool.Put(c)
}

// Compress compresses data using a pooled compressor
func (cp *CompressorPool) Compress(data []byte) ([]byte, error) {
	c := cp.Get()
	defer cp.Put(c)
	return c.Compress(data)
}

// Decompress decompresses data using a pooled compressor
func (cp *CompressorPool) Decompress(data []byte) ([]byte, error) {
	c := cp.Get()
	defer cp.Put(c)
	return c.Decompress(data)
}

// DecompressLimit decompresses data using a pooled compressor
func (cp *CompressorPool) DecompressLimit(data []byte, max int) ([]byte, error) {
	c := cp.Get()
	defer cp.Put(c)
	return c.DecompressLimit(data, max)
}

// Base compressor implementation
type baseCompressor struct {
	algorithm Algorithm
	level     Level
}

// Algorithm returns the compression algorithm
func (bc *baseCompressor) Algorithm() Algorithm {
	return bc.algorithm
}

// Level returns the compression level
func (bc *baseCompressor) Level() Level {
	return bc.level
}

func (bc *baseCompressor) corrupt(err error) error {
	return errors.Wrap(err, errors.ErrorTypeData, "corrupt compressed payload").
		WithDetail("algorithm", string(bc.algorithm))
}

// readLimited drains r into a fresh slice. A negative max means unbounded.
func (bc *baseCompressor) readLimited(r io.Reader, max int) ([]byte, error) {
	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)

	src := r
	if max >= 0 {
		src = io.LimitReader(r, int64(max)+1)
	}
	if _, err := buf.ReadFrom(src); err != nil {
		return nil, bc.corrupt(err)
	}
	if max >= 0 && buf.Len() > max {
		return nil, bc.tooLarge(max)
	}
	return copyOut(buf), nil
}

func (bc *baseCompressor) tooLarge(max int) error {
	return errors.New(errors.ErrorTypeData, "decompressed payload exceeds limit").
		WithDetail("algorithm", string(bc.algorithm)).
		WithDetail("max", max)
}

// compressWith runs data through the writer open builds over a pooled buffer.
func compressWith(data []byte, open func(io.Writer) (io.WriteCloser, error)) ([]byte, error) {
	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)

	w, err := open(buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return copyOut(buf), nil
}

func copyOut(buf *bytes.Buffer) []byte {
	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result
}

// None compressor (no compression)
type noneCompressor struct {
	baseCompressor
}

func (nc *noneCompressor) Compress(data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (nc *noneCompressor) Decompress(data []byte) ([]byte, error) {
	return nc.DecompressLimit(data, -1)
}

func (nc *noneCompressor) DecompressLimit(data []byte, max int) ([]byte, error) {
	if max >= 0 && len(data) > max {
		return nil, nc.tooLarge(max)
	}
	return nc.Compress(data)
}

// Gzip compressor
type gzipCompressor struct {
	baseCompressor
	writerPool sync.Pool
	readerPool sync.Pool
}

func newGzipCompressor(base baseCompressor) (*gzipCompressor, error) {
	level := mapGzipLevel(base.level)
	if _, err := gzip.NewWriterLevel(io.Discard, level); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid gzip level")
	}

	gc := &gzipCompressor{baseCompressor: base}
	gc.writerPool.New = func() interface{} {
		w, _ := gzip.NewWriterLevel(nil, level)
		return w
	}
	gc.readerPool.New = func() interface{} {
		return new(gzip.Reader)
	}
	return gc, nil
}

func (gc *gzipCompressor) Compress(data []byte) ([]byte, error) {
	w := gc.writerPool.Get().(*gzip.Writer)
	defer gc.writerPool.Put(w)

	return compressWith(data, func(dst io.Writer) (io.WriteCloser, error) {
		w.Reset(dst)
		return w, nil
	})
}

func (gc *gzipCompressor) Decompress(data []byte) ([]byte, error) {
	return gc.DecompressLimit(data, -1)
}

func (gc *gzipCompressor) DecompressLimit(data []byte, max int) ([]byte, error) {
	r := gc.readerPool.Get().(*gzip.Reader)
	defer gc.readerPool.Put(r)

	if err := r.Reset(bytes.NewReader(data)); err != nil {
		return nil, gc.corrupt(err)
	}
	return gc.readLimited(r, max)
}

// Snappy compressor
type snappyCompressor struct {
	baseCompressor
}

func (sc *snappyCompressor) Compress(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

func (sc *snappyCompressor) Decompress(data []byte) ([]byte, error) {
	return sc.DecompressLimit(data, -1)
}

func (sc *snappyCompressor) DecompressLimit(data []byte, max int) ([]byte, error) {
	n, err := snappy.DecodedLen(data)
	if err != nil {
		return nil, sc.corrupt(err)
	}
	if max >= 0 && n > max {
		return nil, sc.tooLarge(max)
	}
	out, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, sc.corrupt(err)
	}
	return out, nil
}

// LZ4 compressor
type lz4Compressor struct {
	baseCompressor
	compressionLevel lz4.CompressionLevel
}

func (lc *lz4Compressor) newWriter(dst io.Writer) (io.WriteCloser, error) {
	w := lz4.NewWriter(dst)
	if err := w.Apply(lz4.CompressionLevelOption(lc.compressionLevel)); err != nil {
		return nil, err
	}
	return w, nil
}

func (lc *lz4Compressor) Compress(data []byte) ([]byte, error) {
	return compressWith(data, lc.newWriter)
}

func (lc *lz4Compressor) Decompress(data []byte) ([]byte, error) {
	return lc.DecompressLimit(data, -1)
}

func (lc *lz4Compressor) DecompressLimit(data []byte, max int) ([]byte, error) {
	return lc.readLimited(lz4.NewReader(bytes.NewReader(data)), max)
}

// Zstd compressor
type zstdCompressor struct {
	baseCompressor
	encoderPool sync.Pool
	decoderPool sync.Pool
}

func newZstdCompressor(base baseCompressor) (*zstdCompressor, error) {
	level := mapZstdLevel(base.level)

	zc := &zstdCompressor{baseCompressor: base}
	zc.encoderPool.New = func() interface{} {
		enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
		return enc
	}
	zc.decoderPool.New = func() interface{} {
		dec, _ := zstd.NewReader(nil)
		return dec
	}
	return zc, nil
}

func (zc *zstdCompressor) Compress(data []byte) ([]byte, error) {
	enc := zc.encoderPool.Get().(*zstd.Encoder)
	defer zc.encoderPool.Put(enc)

	return enc.EncodeAll(data, nil), nil
}

func (zc *zstdCompressor) Decompress(data []byte) ([]byte, error) {
	dec := zc.decoderPool.Get().(*zstd.Decoder)
	defer zc.decoderPool.Put(dec)

	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, zc.corrupt(err)
	}
	return out, nil
}

func (zc *zstdCompressor) DecompressLimit(data []byte, max int) ([]byte, error) {
	if max < 0 {
		return zc.Decompress(data)
	}
	dec := zc.decoderPool.Get().(*zstd.Decoder)
	defer zc.decoderPool.Put(dec)

	if err := dec.Reset(bytes.NewReader(data)); err != nil {
		return nil, zc.corrupt(err)
	}
	return zc.readLimited(dec, max)
}

// S2 compressor (Snappy-compatible but better compression)
type s2Compressor struct {
	baseCompressor
}

func (sc *s2Compressor) Compress(data []byte) ([]byte, error) {
	if sc.level >= Better {
		return s2.EncodeBetter(nil, data), nil
	}
	return s2.Encode(nil, data), nil
}

func (sc *s2Compressor) Decompress(data []byte) ([]byte, error) {
	return sc.DecompressLimit(data, -1)
}

func (sc *s2Compressor) DecompressLimit(data []byte, max int) ([]byte, error) {
	n, err := s2.DecodedLen(data)
	if err != nil {
		return nil, sc.corrupt(err)
	}
	if max >= 0 && n > max {
		return nil, sc.tooLarge(max)
	}
	out, err := s2.Decode(nil, data)
	if err != nil {
		return nil, sc.corrupt(err)
	}
	return out, nil
}

// Deflate compressor
type deflateCompressor struct {
	baseCompressor
	flateLevel int
}

func (dc *deflateCompressor) newWriter(dst io.Writer) (io.WriteCloser, error) {
	return flate.NewWriter(dst, dc.flateLevel)
}

func (dc *deflateCompressor) Compress(data []byte) ([]byte, error) {
	return compressWith(data, dc.newWriter)
}

func (dc *deflateCompressor) Decompress(data []byte) ([]byte, error) {
	return dc.DecompressLimit(data, -1)
}

func (dc *deflateCompressor) DecompressLimit(data []byte, max int) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()
	return dc.readLimited(r, max)
}

// Helper functions to map compression levels

func mapGzipLevel(level Level) int {
	switch level {
	case Fastest:
		return gzip.BestSpeed
	case Best:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}

func mapLZ4Level(level Level) lz4.CompressionLevel {
	switch level {
	case Fastest:
		return lz4.Fast
	case Better:
		return lz4.Level7
	case Best:
		return lz4.Level9
	default:
		return lz4.Level5
	}
}

func mapZstdLevel(level Level) zstd.EncoderLevel {
	switch level {
	case Fastest:
		return zstd.SpeedFastest
	case Better:
		return zstd.SpeedBetterCompression
	case Best:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}

func mapDeflateLevel(level Level) int {
	switch level {
	case Fastest:
		return flate.BestSpeed
	case Best:
		return flate.BestCompression
	default:
		return flate.DefaultCompression
	}
}
