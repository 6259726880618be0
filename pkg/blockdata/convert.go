package blockdata

import (
	"github.com/ajitpratap0/voxpack/pkg/errors"
	"github.com/ajitpratap0/voxpack/pkg/metrics"
)

var convertMetrics = metrics.NewCollector("convert")

// Convert re-packs src into a new DenseArray of width w with the same
// dimensions. It fails with ValueOutOfRange on the first element that does
// not fit w, so demotion never silently truncates.
func Convert(src Array, w Width) (*DenseArray, error) {
	if src == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "nil source array")
	}
	if !w.Valid() {
		return nil, errors.New(errors.ErrorTypeValidation, "unsupported element width").
			WithDetail("bits", int(w))
	}
	d := src.Dimensions()
	dst := NewDenseArray(w, d)

	if s, ok := src.(*DenseArray); ok && s.layout.width == w {
		copy(dst.data, s.data)
		convertMetrics.ArrayCreated(string(DenseTag(w)), metrics.PathConvert)
		return dst, nil
	}

	narrowing := src.ElementSizeInBits() > w.Bits()
	for y := 0; y < d.SizeY; y++ {
		for z := 0; z < d.SizeZ; z++ {
			for x := 0; x < d.SizeX; x++ {
				v := src.Get(x, y, z)
				if narrowing && !w.Fits(v) {
					return nil, errors.New(errors.ErrorTypeValueOutOfRange, "element does not fit target width").
						WithDetail("x", x).
						WithDetail("y", y).
						WithDetail("z", z).
						WithDetail("value", v).
						WithDetail("bits", w.Bits())
				}
				i, lane := dst.layout.Locate(x, y, z)
				dst.store(i, lane, v)
			}
		}
	}
	convertMetrics.ArrayCreated(string(DenseTag(w)), metrics.PathConvert)
	return dst, nil
}
