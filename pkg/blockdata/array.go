package blockdata

import (
	"fmt"

	"github.com/ajitpratap0/voxpack/pkg/errors"
)

// Array is the contract every per-voxel attribute store honors, dense or
// deflated. Implementations are not safe for concurrent use.
type Array interface {
	// Get returns the value at (x, y, z).
	Get(x, y, z int) int
	// Set stores value at (x, y, z) and returns the value it replaced.
	Set(x, y, z, value int) int
	// CompareAndSet stores value only if the current value equals expected.
	// It is a plain conditional update, not an atomic instruction.
	CompareAndSet(x, y, z, value, expected int) bool
	// ElementSizeInBits returns the width of one element.
	ElementSizeInBits() int
	// Dimensions returns the fixed extent of the array.
	Dimensions() Dimensions
	// Tag names the variant for registry dispatch.
	Tag() Tag
	// Deflate offers the array to d and returns d's replacement, or the
	// receiver when d declines.
	Deflate(d Deflator) Array
	// Copy returns an independent array with the same contents.
	Copy() Array
	// EstimatedMemoryConsumptionInBytes approximates the retained heap size.
	EstimatedMemoryConsumptionInBytes() int
}

// denseOverhead approximates the struct and slice headers of a DenseArray.
const denseOverhead = 64

// DenseArray stores every element of a volume in a packed byte buffer.
//
// Get, Set and CompareAndSet do no validation unless the package is built
// with the voxpack_checks tag: out of range coordinates are undefined
// behaviour and out of range values are truncated to the element width,
// which for packed widths still leaves neighbouring lanes untouched. Use the
// package level Get, Set and CompareAndSet helpers for validated access.
//
// For widths below 8 bits several voxels share one byte, and Set and
// CompareAndSet rewrite the whole byte. Two goroutines updating different
// voxels of the same byte can therefore lose one of the writes, even when
// both use CompareAndSet. Callers sharing an array must coordinate.
type DenseArray struct {
	layout Layout
	data   []byte
}

// NewDenseArray returns a zero-filled array. It panics on an unsupported
// width or invalid dimensions; use NewDenseArrayFromData for input that
// comes from outside the process.
func NewDenseArray(w Width, d Dimensions) *DenseArray {
	if !w.Valid() {
		panic(fmt.Sprintf("blockdata: unsupported width %d", w))
	}
	if err := d.Validate(); err != nil {
		panic(err)
	}
	l := NewLayout(w, d)
	return &DenseArray{layout: l, data: make([]byte, l.BufferSize())}
}

// NewDenseArrayFromData wraps data, which becomes owned by the array. A nil
// data yields a zero-filled array. Any other length than the layout's buffer
// size fails with InvalidBufferSize.
func NewDenseArrayFromData(w Width, d Dimensions, data []byte) (*DenseArray, error) {
	if !w.Valid() {
		return nil, errors.New(errors.ErrorTypeValidation, "unsupported element width").
			WithDetail("bits", int(w))
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	l := NewLayout(w, d)
	if data == nil {
		return &DenseArray{layout: l, data: make([]byte, l.BufferSize())}, nil
	}
	if len(data) != l.BufferSize() {
		return nil, errors.New(errors.ErrorTypeInvalidBufferSize, "buffer length does not match dimensions").
			WithDetail("expected", l.BufferSize()).
			WithDetail("actual", len(data)).
			WithDetail("dimensions", d.String()).
			WithDetail("bits", w.Bits())
	}
	return &DenseArray{layout: l, data: data}, nil
}

// Get returns the value at (x, y, z).
func (a *DenseArray) Get(x, y, z int) int {
	if ChecksEnabled {
		MustContain(a.layout.dims, x, y, z)
	}
	i, lane := a.layout.Locate(x, y, z)
	return a.load(i, lane)
}

// Set stores value at (x, y, z) and returns the previous value.
func (a *DenseArray) Set(x, y, z, value int) int {
	if ChecksEnabled {
		MustContain(a.layout.dims, x, y, z)
		MustFit(a.layout.width.Bits(), value)
	}
	i, lane := a.layout.Locate(x, y, z)
	old := a.load(i, lane)
	a.store(i, lane, value)
	return old
}

// CompareAndSet stores value if the current value equals expected and
// reports whether it did. See the type comment for the shared byte caveat.
func (a *DenseArray) CompareAndSet(x, y, z, value, expected int) bool {
	if ChecksEnabled {
		MustContain(a.layout.dims, x, y, z)
		MustFit(a.layout.width.Bits(), value, expected)
	}
	i, lane := a.layout.Locate(x, y, z)
	if a.load(i, lane) != expected {
		return false
	}
	a.store(i, lane, value)
	return true
}

func (a *DenseArray) load(i, lane int) int {
	switch a.layout.width {
	case Width16:
		return int(a.data[i])<<8 | int(a.data[i+1])
	case Width8:
		return int(a.data[i])
	}
	return a.layout.width.decode(a.data[i], lane)
}

func (a *DenseArray) store(i, lane, v int) {
	switch a.layout.width {
	case Width16:
		a.data[i] = byte(v >> 8)
		a.data[i+1] = byte(v)
	case Width8:
		a.data[i] = byte(v)
	default:
		a.data[i] = a.layout.width.encode(a.data[i], lane, v)
	}
}

func (a *DenseArray) ElementSizeInBits() int { return a.layout.width.Bits() }
func (a *DenseArray) Width() Width           { return a.layout.width }
func (a *DenseArray) Dimensions() Dimensions { return a.layout.dims }
func (a *DenseArray) SizeX() int             { return a.layout.dims.SizeX }
func (a *DenseArray) SizeY() int             { return a.layout.dims.SizeY }
func (a *DenseArray) SizeZ() int             { return a.layout.dims.SizeZ }
func (a *DenseArray) RowSize() int           { return a.layout.rowSize }
func (a *DenseArray) Layout() Layout         { return a.layout }

// Tag returns the dense tag for the array's width.
func (a *DenseArray) Tag() Tag { return DenseTag(a.layout.width) }

// Contains reports whether (x, y, z) is inside the array.
func (a *DenseArray) Contains(x, y, z int) bool { return a.layout.dims.Contains(x, y, z) }

// Data exposes the backing buffer. Callers must treat it as read-only.
func (a *DenseArray) Data() []byte { return a.data }

// Deflate hands d a read-only view of the buffer. A nil result from d keeps
// the receiver.
func (a *DenseArray) Deflate(d Deflator) Array {
	if d == nil {
		return a
	}
	if r := d.DeflateDense(a.View()); r != nil {
		return r
	}
	return a
}

// View describes the buffer for a Deflator.
func (a *DenseArray) View() DenseView {
	return DenseView{
		Data:    a.data,
		RowSize: a.layout.rowSize,
		Width:   a.layout.width,
		Dims:    a.layout.dims,
	}
}

// Copy returns a DenseArray with its own buffer.
func (a *DenseArray) Copy() Array {
	data := make([]byte, len(a.data))
	copy(data, a.data)
	return &DenseArray{layout: a.layout, data: data}
}

func (a *DenseArray) EstimatedMemoryConsumptionInBytes() int {
	return EstimateDenseBytes(len(a.data))
}

// EstimateDenseBytes is the estimate a DenseArray with a buffer of bufLen
// bytes reports, for deflators comparing against it before building anything.
func EstimateDenseBytes(bufLen int) int { return denseOverhead + bufLen }

func (a *DenseArray) String() string {
	return fmt.Sprintf("DenseArray(%s, %s)", a.layout.width, a.layout.dims)
}
