package blockdata

// Layout maps voxel coordinates to buffer positions for one width and size.
//
// Each Y-row holds PlaneCount elements in RowSize bytes. For packed widths
// the plane index range is split into LanesPerByte contiguous runs of
// RowSize slots; run k lives in lane k of every byte of the row. With 4 bits
// the first half of a row is the high nibbles and the second half the low
// nibbles. 16-bit elements are stored big-endian.
type Layout struct {
	dims       Dimensions
	width      Width
	planeCount int
	rowSize    int
}

// NewLayout precomputes the row geometry.
func NewLayout(w Width, d Dimensions) Layout {
	pc := d.PlaneCount()
	return Layout{
		dims:       d,
		width:      w,
		planeCount: pc,
		rowSize:    w.RowSize(pc),
	}
}

func (l Layout) Dimensions() Dimensions { return l.dims }
func (l Layout) Width() Width           { return l.width }
func (l Layout) PlaneCount() int        { return l.planeCount }
func (l Layout) RowSize() int           { return l.rowSize }

// BufferSize is the exact buffer length an array with this layout owns.
func (l Layout) BufferSize() int { return l.rowSize * l.dims.SizeY }

// PlaneIndex returns the position of (x, z) inside a row.
func (l Layout) PlaneIndex(x, z int) int { return z*l.dims.SizeX + x }

// RowOffset returns the first byte of row y.
func (l Layout) RowOffset(y int) int { return y * l.rowSize }

// Locate returns the byte index and lane of (x, y, z). Lane is always 0 for
// unpacked widths; for 16 bits the index is the high byte.
func (l Layout) Locate(x, y, z int) (index, lane int) {
	p := l.PlaneIndex(x, z)
	row := l.RowOffset(y)
	switch l.width {
	case Width16:
		return row + 2*p, 0
	case Width8:
		return row + p, 0
	}
	lane = p / l.rowSize
	return row + p - lane*l.rowSize, lane
}
