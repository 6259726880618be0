package deflate

import (
	"github.com/ajitpratap0/voxpack/pkg/blockdata"
)

// DefaultMinRowRatio is the share of uniform rows RowDeflator requires by
// default. Terrain chunks are mostly air above and stone below, so a
// quarter is met by nearly every generated chunk.
const DefaultMinRowRatio = 0.25

// RowDeflator collapses uniform Y rows into a SparseArray. It declines when
// fewer than MinRowRatio of the rows are uniform, or when the sparse form
// would not be smaller than the dense one.
type RowDeflator struct {
	MinRowRatio float64
}

// NewRowDeflator returns a RowDeflator with DefaultMinRowRatio.
func NewRowDeflator() *RowDeflator {
	return &RowDeflator{MinRowRatio: DefaultMinRowRatio}
}

// DeflateDense implements blockdata.Deflator.
func (d *RowDeflator) DeflateDense(v blockdata.DenseView) blockdata.Array {
	uniform := 0
	for y := 0; y < v.Dims.SizeY; y++ {
		if _, ok := v.UniformRow(y); ok {
			uniform++
		}
	}
	if float64(uniform) < d.MinRowRatio*float64(v.Dims.SizeY) || uniform == 0 {
		return nil
	}
	sparse := sparseEstimate(v.Dims.SizeY, v.Dims.SizeY-uniform, v.RowSize)
	if sparse >= blockdata.EstimateDenseBytes(len(v.Data)) {
		return nil
	}
	return FromDense(v)
}
