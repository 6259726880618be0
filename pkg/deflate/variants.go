package deflate

import (
	"io"
	"sync"

	"github.com/ajitpratap0/voxpack/pkg/blockdata"
	"github.com/ajitpratap0/voxpack/pkg/compression"
	"github.com/ajitpratap0/voxpack/pkg/errors"
)

// uniformMarker flags a dense row in the sparse encoding.
const uniformMarker = -1

func init() {
	r := blockdata.DefaultRegistry()
	for _, w := range blockdata.Widths {
		r.MustRegister(NewSparseFactory(w))
		r.MustRegister(NewCompressedFactory(w, compression.LZ4))
	}
}

var (
	codecsMu sync.Mutex
	codecs   = map[compression.Algorithm]*compression.CompressorPool{}
)

// codecFor returns the shared default-level pool for alg.
func codecFor(alg compression.Algorithm) (*compression.CompressorPool, error) {
	codecsMu.Lock()
	defer codecsMu.Unlock()
	if p, ok := codecs[alg]; ok {
		return p, nil
	}
	p, err := compression.NewCompressorPool(&compression.Config{Algorithm: alg, Level: compression.Default})
	if err != nil {
		return nil, err
	}
	codecs[alg] = p
	return p, nil
}

func foreignArray(handler, array blockdata.Tag) error {
	return errors.New(errors.ErrorTypeValidation, "array does not belong to this handler").
		WithDetail("handler", string(handler)).
		WithDetail("array", string(array))
}

// SparseFactory builds SparseArrays of one width.
type SparseFactory struct {
	width blockdata.Width
}

// NewSparseFactory returns the factory for the sparse variant of width w.
func NewSparseFactory(w blockdata.Width) *SparseFactory { return &SparseFactory{width: w} }

func (f *SparseFactory) Tag() blockdata.Tag { return SparseTag(f.width) }

func (f *SparseFactory) Create() blockdata.Array {
	s, err := NewSparseArray(f.width, blockdata.DefaultDimensions)
	if err != nil {
		panic(err)
	}
	return s
}

func (f *SparseFactory) CreateSized(d blockdata.Dimensions) (blockdata.Array, error) {
	s, err := NewSparseArray(f.width, d)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (f *SparseFactory) CreateSerializationHandler() blockdata.SerializationHandler {
	return &SparseHandler{width: f.width}
}

// SparseHandler persists SparseArrays row by row: each row is an int32
// fill value, or uniformMarker followed by the row's packed bytes.
type SparseHandler struct {
	width blockdata.Width
}

func (h *SparseHandler) CanHandle(tag blockdata.Tag) bool { return tag == SparseTag(h.width) }

// CreateArray builds a SparseArray from a dense buffer, collapsing every
// uniform row regardless of how few there are.
func (h *SparseHandler) CreateArray(d blockdata.Dimensions, data []byte) (blockdata.Array, error) {
	if data == nil {
		s, err := NewSparseArray(h.width, d)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	dense, err := blockdata.NewDenseArrayFromData(h.width, d, data)
	if err != nil {
		return nil, err
	}
	return FromDense(dense.View()), nil
}

func (h *SparseHandler) Serialize(a blockdata.Array, w io.Writer) error {
	s, ok := a.(*SparseArray)
	if !ok || s.width != h.width {
		return foreignArray(SparseTag(h.width), a.Tag())
	}
	if err := blockdata.WriteDimensions(w, s.dims); err != nil {
		return err
	}
	for y, row := range s.rows {
		if row == nil {
			if err := blockdata.WriteInts(w, s.fill[y]); err != nil {
				return err
			}
			continue
		}
		if err := blockdata.WriteInts(w, uniformMarker); err != nil {
			return err
		}
		if err := blockdata.WriteBlob(w, row.Data()); err != nil {
			return err
		}
	}
	return nil
}

func (h *SparseHandler) Deserialize(r io.Reader) (blockdata.Array, error) {
	d, err := blockdata.ReadDimensions(r)
	if err != nil {
		return nil, err
	}
	s, err := NewSparseArray(h.width, d)
	if err != nil {
		return nil, err
	}
	rowSize := blockdata.NewLayout(h.width, s.rowDims).RowSize()
	for y := 0; y < d.SizeY; y++ {
		v, err := blockdata.ReadInts(r, 1)
		if err != nil {
			return nil, err
		}
		if v[0] != uniformMarker {
			if err := blockdata.CheckValue(h.width.Bits(), v[0]); err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeData, "corrupt sparse row").
					WithDetail("row", y)
			}
			s.fill[y] = v[0]
			continue
		}
		data, err := blockdata.ReadBlob(r, rowSize)
		if err != nil {
			return nil, err
		}
		if s.rows[y], err = blockdata.NewDenseArrayFromData(h.width, s.rowDims, data); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// CompressedFactory builds CompressedArrays of one width with one codec.
type CompressedFactory struct {
	width     blockdata.Width
	algorithm compression.Algorithm
}

// NewCompressedFactory returns the factory for the compressed variant of
// width w. Arrays it creates are compressed with alg.
func NewCompressedFactory(w blockdata.Width, alg compression.Algorithm) *CompressedFactory {
	return &CompressedFactory{width: w, algorithm: alg}
}

func (f *CompressedFactory) Tag() blockdata.Tag { return CompressedTag(f.width) }

func (f *CompressedFactory) Create() blockdata.Array {
	a, err := f.CreateSized(blockdata.DefaultDimensions)
	if err != nil {
		panic(err)
	}
	return a
}

func (f *CompressedFactory) CreateSized(d blockdata.Dimensions) (blockdata.Array, error) {
	return f.CreateSerializationHandler().CreateArray(d, nil)
}

func (f *CompressedFactory) CreateSerializationHandler() blockdata.SerializationHandler {
	return &CompressedHandler{width: f.width, algorithm: f.algorithm}
}

// CompressedHandler persists CompressedArrays without inflating them: the
// dimension header, the algorithm code, the checksum as two int32 halves
// and the length-prefixed payload.
type CompressedHandler struct {
	width     blockdata.Width
	algorithm compression.Algorithm
}

func (h *CompressedHandler) CanHandle(tag blockdata.Tag) bool {
	return tag == CompressedTag(h.width)
}

// CreateArray compresses a raw dense buffer.
func (h *CompressedHandler) CreateArray(d blockdata.Dimensions, data []byte) (blockdata.Array, error) {
	dense, err := blockdata.NewDenseArrayFromData(h.width, d, data)
	if err != nil {
		return nil, err
	}
	codec, err := codecFor(h.algorithm)
	if err != nil {
		return nil, err
	}
	c, err := Compress(dense.View(), codec)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (h *CompressedHandler) Serialize(a blockdata.Array, w io.Writer) error {
	c, ok := a.(*CompressedArray)
	if !ok || c.width != h.width {
		return foreignArray(CompressedTag(h.width), a.Tag())
	}
	id, err := c.Algorithm().ID()
	if err != nil {
		return err
	}
	payload, sum, err := c.payloadForWrite()
	if err != nil {
		return err
	}
	if err := blockdata.WriteDimensions(w, c.dims); err != nil {
		return err
	}
	if err := blockdata.WriteInts(w, int(id), int(uint32(sum>>32)), int(uint32(sum))); err != nil {
		return err
	}
	return blockdata.WriteBlob(w, payload)
}

func (h *CompressedHandler) Deserialize(r io.Reader) (blockdata.Array, error) {
	d, err := blockdata.ReadDimensions(r)
	if err != nil {
		return nil, err
	}
	hdr, err := blockdata.ReadInts(r, 3)
	if err != nil {
		return nil, err
	}
	if hdr[0] < 0 || hdr[0] > 255 {
		return nil, errors.New(errors.ErrorTypeData, "corrupt compression header").
			WithDetail("code", hdr[0])
	}
	alg, err := compression.AlgorithmFromID(byte(hdr[0]))
	if err != nil {
		return nil, err
	}
	codec, err := codecFor(alg)
	if err != nil {
		return nil, err
	}
	raw := blockdata.NewLayout(h.width, d).BufferSize()
	payload, err := blockdata.ReadBlobMax(r, maxPayload(raw))
	if err != nil {
		return nil, err
	}
	return &CompressedArray{
		width:    h.width,
		dims:     d,
		codec:    codec,
		checksum: uint64(uint32(hdr[1]))<<32 | uint64(uint32(hdr[2])),
		payload:  payload,
	}, nil
}

// maxPayload bounds the compressed size accepted for a raw buffer of n
// bytes. Every supported codec stays well below it on incompressible input.
func maxPayload(n int) int { return n + n/2 + 1024 }
