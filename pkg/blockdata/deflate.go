package blockdata

// DenseView is the read-only description of a DenseArray handed to a
// Deflator. Data aliases the array's buffer; a Deflator must copy anything
// it keeps and must never write to it.
type DenseView struct {
	Data    []byte
	RowSize int
	Width   Width
	Dims    Dimensions
}

// Deflator is implemented by compaction passes. DeflateDense returns an
// Array over the same dimensions that honors the Get/Set contract, or nil to
// leave the dense array in place.
type Deflator interface {
	DeflateDense(v DenseView) Array
}

// DeflatorFunc adapts a function to the Deflator interface.
type DeflatorFunc func(v DenseView) Array

// DeflateDense calls f(v).
func (f DeflatorFunc) DeflateDense(v DenseView) Array { return f(v) }

// Layout rebuilds the address calculator for the view.
func (v DenseView) Layout() Layout { return NewLayout(v.Width, v.Dims) }

// Row returns the packed bytes of row y.
func (v DenseView) Row(y int) []byte {
	return v.Data[y*v.RowSize : (y+1)*v.RowSize : (y+1)*v.RowSize]
}

// Get decodes one element from the view.
func (v DenseView) Get(x, y, z int) int {
	a := DenseArray{layout: v.Layout(), data: v.Data}
	return a.Get(x, y, z)
}

// UniformRow reports whether every element of row y holds the same value,
// and that value. Padding lanes past PlaneCount are ignored.
func (v DenseView) UniformRow(y int) (int, bool) {
	l := v.Layout()
	a := DenseArray{layout: l, data: v.Data}
	first := a.Get(0, y, 0)
	for z := 0; z < v.Dims.SizeZ; z++ {
		for x := 0; x < v.Dims.SizeX; x++ {
			if a.Get(x, y, z) != first {
				return 0, false
			}
		}
	}
	return first, true
}
