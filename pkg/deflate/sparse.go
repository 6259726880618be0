package deflate

import (
	"fmt"
	"strconv"

	"github.com/ajitpratap0/voxpack/pkg/blockdata"
	"github.com/ajitpratap0/voxpack/pkg/errors"
	"github.com/ajitpratap0/voxpack/pkg/pool"
)

const (
	sparseOverhead = 96
	// rowOverhead approximates a row DenseArray's struct and headers.
	rowOverhead = 64
)

// SparseTag returns the tag of the sparse variant for w, e.g. "sparse4".
func SparseTag(w blockdata.Width) blockdata.Tag {
	return blockdata.Tag("sparse" + strconv.Itoa(w.Bits()))
}

// SparseArray keeps each Y row of a volume either as a single fill value,
// when every voxel of the row holds it, or as a packed dense row. Writing a
// different value into a uniform row expands that row only.
//
// Like DenseArray it is not safe for concurrent writers.
type SparseArray struct {
	width   blockdata.Width
	dims    blockdata.Dimensions
	rowDims blockdata.Dimensions
	fill    []int
	rows    []*blockdata.DenseArray
}

// NewSparseArray returns an array whose rows are all uniform zero.
func NewSparseArray(w blockdata.Width, d blockdata.Dimensions) (*SparseArray, error) {
	if !w.Valid() {
		return nil, errors.New(errors.ErrorTypeValidation, "unsupported element width").
			WithDetail("bits", int(w))
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &SparseArray{
		width:   w,
		dims:    d,
		rowDims: blockdata.NewDimensions(d.SizeX, 1, d.SizeZ),
		fill:    make([]int, d.SizeY),
		rows:    make([]*blockdata.DenseArray, d.SizeY),
	}, nil
}

// FromDense collapses every uniform row of v. Non-uniform rows are copied,
// so the result never aliases v.
func FromDense(v blockdata.DenseView) *SparseArray {
	s := &SparseArray{
		width:   v.Width,
		dims:    v.Dims,
		rowDims: blockdata.NewDimensions(v.Dims.SizeX, 1, v.Dims.SizeZ),
		fill:    make([]int, v.Dims.SizeY),
		rows:    make([]*blockdata.DenseArray, v.Dims.SizeY),
	}
	for y := 0; y < v.Dims.SizeY; y++ {
		if val, ok := v.UniformRow(y); ok {
			s.fill[y] = val
			continue
		}
		s.rows[y] = s.denseRow(v.Row(y))
	}
	return s
}

func (s *SparseArray) denseRow(src []byte) *blockdata.DenseArray {
	data := make([]byte, len(src))
	copy(data, src)
	row, err := blockdata.NewDenseArrayFromData(s.width, s.rowDims, data)
	if err != nil {
		panic(err)
	}
	return row
}

func (s *SparseArray) Get(x, y, z int) int {
	if blockdata.ChecksEnabled {
		blockdata.MustContain(s.dims, x, y, z)
	}
	if row := s.rows[y]; row != nil {
		return row.Get(x, 0, z)
	}
	return s.fill[y]
}

func (s *SparseArray) Set(x, y, z, value int) int {
	if blockdata.ChecksEnabled {
		blockdata.MustContain(s.dims, x, y, z)
		blockdata.MustFit(s.width.Bits(), value)
	}
	row := s.rows[y]
	if row == nil {
		// Compare against the truncated value so uniform rows behave
		// exactly like a dense row would.
		if value&s.width.Max() == s.fill[y] {
			return s.fill[y]
		}
		row = s.expand(y)
	}
	return row.Set(x, 0, z, value)
}

func (s *SparseArray) CompareAndSet(x, y, z, value, expected int) bool {
	if blockdata.ChecksEnabled {
		blockdata.MustContain(s.dims, x, y, z)
		blockdata.MustFit(s.width.Bits(), value, expected)
	}
	if s.Get(x, y, z) != expected {
		return false
	}
	s.Set(x, y, z, value)
	return true
}

// expand replaces uniform row y with a dense row holding its fill value.
func (s *SparseArray) expand(y int) *blockdata.DenseArray {
	row := blockdata.NewDenseArray(s.width, s.rowDims)
	if v := s.fill[y]; v != 0 {
		for z := 0; z < s.dims.SizeZ; z++ {
			for x := 0; x < s.dims.SizeX; x++ {
				row.Set(x, 0, z, v)
			}
		}
	}
	s.rows[y] = row
	s.fill[y] = 0
	return row
}

func (s *SparseArray) ElementSizeInBits() int           { return s.width.Bits() }
func (s *SparseArray) Width() blockdata.Width           { return s.width }
func (s *SparseArray) Dimensions() blockdata.Dimensions { return s.dims }
func (s *SparseArray) Tag() blockdata.Tag               { return SparseTag(s.width) }

// UniformRows counts rows held as a single fill value.
func (s *SparseArray) UniformRows() int {
	n := 0
	for _, r := range s.rows {
		if r == nil {
			n++
		}
	}
	return n
}

// Row reports the fill value of row y, or false if the row is dense.
func (s *SparseArray) Row(y int) (int, bool) {
	if s.rows[y] != nil {
		return 0, false
	}
	return s.fill[y], true
}

// Inflate rebuilds the equivalent DenseArray.
func (s *SparseArray) Inflate() *blockdata.DenseArray {
	return s.inflateInto(make([]byte, blockdata.NewLayout(s.width, s.dims).BufferSize()))
}

// inflateInto decodes the array into buf, which must have the dense buffer
// size, and wraps it without copying.
func (s *SparseArray) inflateInto(buf []byte) *blockdata.DenseArray {
	clear(buf)
	dense, err := blockdata.NewDenseArrayFromData(s.width, s.dims, buf)
	if err != nil {
		panic(err)
	}
	rowSize := dense.RowSize()
	data := dense.Data()
	for y := 0; y < s.dims.SizeY; y++ {
		if row := s.rows[y]; row != nil {
			copy(data[y*rowSize:(y+1)*rowSize], row.Data())
			continue
		}
		if v := s.fill[y]; v != 0 {
			for z := 0; z < s.dims.SizeZ; z++ {
				for x := 0; x < s.dims.SizeX; x++ {
					dense.Set(x, y, z, v)
				}
			}
		}
	}
	return dense
}

// Deflate offers the inflated contents to d. A nil d, or d declining,
// keeps the receiver. The inflated buffer is scratch from the shared
// buffer pool and is recycled once d returns.
func (s *SparseArray) Deflate(d blockdata.Deflator) blockdata.Array {
	if d == nil {
		return s
	}
	buf := pool.GlobalBufferPool.Get(blockdata.NewLayout(s.width, s.dims).BufferSize())
	defer pool.GlobalBufferPool.Put(buf)

	if r := d.DeflateDense(s.inflateInto(buf).View()); r != nil {
		return r
	}
	return s
}

func (s *SparseArray) Copy() blockdata.Array {
	c := &SparseArray{
		width:   s.width,
		dims:    s.dims,
		rowDims: s.rowDims,
		fill:    append([]int(nil), s.fill...),
		rows:    make([]*blockdata.DenseArray, len(s.rows)),
	}
	for y, r := range s.rows {
		if r != nil {
			c.rows[y] = r.Copy().(*blockdata.DenseArray)
		}
	}
	return c
}

func (s *SparseArray) EstimatedMemoryConsumptionInBytes() int {
	return sparseEstimate(s.dims.SizeY, s.dims.SizeY-s.UniformRows(), blockdata.NewLayout(s.width, s.rowDims).RowSize())
}

func sparseEstimate(rows, denseRows, rowSize int) int {
	return sparseOverhead + rows*16 + denseRows*(rowOverhead+rowSize)
}

func (s *SparseArray) String() string {
	return fmt.Sprintf("SparseArray(%s, %s, %d/%d uniform rows)", s.width, s.dims, s.UniformRows(), s.dims.SizeY)
}
