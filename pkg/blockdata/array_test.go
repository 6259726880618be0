package blockdata

import (
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/voxpack/pkg/errors"
	"github.com/ajitpratap0/voxpack/pkg/metrics"
)

var smallDims = Dimensions{SizeX: 5, SizeY: 3, SizeZ: 3}

// pattern is a deterministic per-voxel value that fits w.
func pattern(w Width, x, y, z int) int {
	return (x*7 + y*13 + z*31 + x*y*z) % (w.Max() + 1)
}

func fill(a Array, w Width) {
	d := a.Dimensions()
	for y := 0; y < d.SizeY; y++ {
		for z := 0; z < d.SizeZ; z++ {
			for x := 0; x < d.SizeX; x++ {
				a.Set(x, y, z, pattern(w, x, y, z))
			}
		}
	}
}

func assertPattern(t *testing.T, a Array, w Width) {
	t.Helper()
	d := a.Dimensions()
	for y := 0; y < d.SizeY; y++ {
		for z := 0; z < d.SizeZ; z++ {
			for x := 0; x < d.SizeX; x++ {
				require.Equal(t, pattern(w, x, y, z), a.Get(x, y, z), "(%d,%d,%d)", x, y, z)
			}
		}
	}
}

func TestNewDenseArrayIsZeroFilled(t *testing.T) {
	for _, w := range Widths {
		a := NewDenseArray(w, smallDims)
		assert.Len(t, a.Data(), NewLayout(w, smallDims).BufferSize())
		assert.Equal(t, w.Bits(), a.ElementSizeInBits())
		assert.Equal(t, 0, a.Get(4, 2, 2))
	}
}

func TestDenseArrayRoundTrip(t *testing.T) {
	for _, w := range Widths {
		t.Run(w.String(), func(t *testing.T) {
			a := NewDenseArray(w, smallDims)
			fill(a, w)
			assertPattern(t, a, w)
		})
	}
}

func TestDenseArrayAllValuesRoundTrip(t *testing.T) {
	for _, w := range Widths {
		t.Run(w.String(), func(t *testing.T) {
			a := NewDenseArray(w, Dimensions{SizeX: 3, SizeY: 2, SizeZ: 3})
			step := 1
			if w == Width16 {
				step = 257
			}
			for v := 0; v <= w.Max(); v += step {
				a.Set(2, 1, 1, v)
				require.Equal(t, v, a.Get(2, 1, 1))
			}
			a.Set(0, 0, 0, w.Max())
			assert.Equal(t, w.Max(), a.Get(0, 0, 0))
			a.Set(0, 0, 0, 0)
			assert.Equal(t, 0, a.Get(0, 0, 0))
		})
	}
}

func TestDenseArraySetReturnsPrevious(t *testing.T) {
	for _, w := range Widths {
		t.Run(w.String(), func(t *testing.T) {
			a := NewDenseArray(w, smallDims)
			assert.Equal(t, 0, a.Set(1, 1, 1, 1))
			assert.Equal(t, 1, a.Set(1, 1, 1, w.Max()))
			assert.Equal(t, w.Max(), a.Set(1, 1, 1, 0))
			assert.Equal(t, 0, a.Get(1, 1, 1))
		})
	}
}

func TestDenseArrayCompareAndSet(t *testing.T) {
	for _, w := range Widths {
		t.Run(w.String(), func(t *testing.T) {
			a := NewDenseArray(w, smallDims)
			a.Set(3, 2, 1, 1)

			assert.False(t, a.CompareAndSet(3, 2, 1, w.Max(), 0))
			assert.Equal(t, 1, a.Get(3, 2, 1))

			assert.True(t, a.CompareAndSet(3, 2, 1, w.Max(), 1))
			assert.Equal(t, w.Max(), a.Get(3, 2, 1))

			assert.True(t, a.CompareAndSet(3, 2, 1, w.Max(), w.Max()))
			assert.Equal(t, w.Max(), a.Get(3, 2, 1))
		})
	}
}

func TestDenseArrayLaneIndependence(t *testing.T) {
	for _, w := range []Width{Width1, Width2, Width4} {
		t.Run(w.String(), func(t *testing.T) {
			d := Dimensions{SizeX: 8, SizeY: 1, SizeZ: 1}
			a := NewDenseArray(w, d)
			l := a.Layout()

			// Collect every voxel sharing byte 0 and give each a distinct value.
			var sharing []int
			for x := 0; x < d.SizeX; x++ {
				if i, _ := l.Locate(x, 0, 0); i == 0 {
					sharing = append(sharing, x)
				}
			}
			require.Len(t, sharing, w.LanesPerByte())

			for n, x := range sharing {
				a.Set(x, 0, 0, (n+1)%(w.Max()+1))
			}
			for n, x := range sharing {
				assert.Equal(t, (n+1)%(w.Max()+1), a.Get(x, 0, 0), "x=%d", x)
			}
		})
	}
}

func TestDenseArrayFourBitScenario(t *testing.T) {
	a := NewDenseArray(Width4, Dimensions{SizeX: 4, SizeY: 1, SizeZ: 1})

	a.Set(0, 0, 0, 5)
	a.Set(2, 0, 0, 9)

	assert.Equal(t, 5, a.Get(0, 0, 0))
	assert.Equal(t, 9, a.Get(2, 0, 0))
	assert.Equal(t, byte(5<<4|9), a.Data()[0])
	assert.Equal(t, byte(0), a.Data()[1])
}

func TestDenseArraySixteenBitIsBigEndian(t *testing.T) {
	a := NewDenseArray(Width16, Dimensions{SizeX: 2, SizeY: 1, SizeZ: 1})
	a.Set(1, 0, 0, 0xBEEF)
	assert.Equal(t, []byte{0, 0, 0xBE, 0xEF}, a.Data())
}

func TestDenseArrayOneBitLayout(t *testing.T) {
	a := NewDenseArray(Width1, Dimensions{SizeX: 16, SizeY: 1, SizeZ: 1})
	a.Set(0, 0, 0, 1)  // lane 0 of byte 0
	a.Set(3, 0, 0, 1)  // lane 1 of byte 1
	a.Set(15, 0, 0, 1) // lane 7 of byte 1
	assert.Equal(t, []byte{0x80, 0x41}, a.Data())
}

func TestNewDenseArrayFromData(t *testing.T) {
	d := Dimensions{SizeX: 4, SizeY: 2, SizeZ: 4}

	a, err := NewDenseArrayFromData(Width4, d, nil)
	require.NoError(t, err)
	assert.Len(t, a.Data(), 16)

	data := make([]byte, 16)
	data[0] = 0xA7
	a, err = NewDenseArrayFromData(Width4, d, data)
	require.NoError(t, err)
	assert.Equal(t, 0xA, a.Get(0, 0, 0))
	assert.Equal(t, 0x7, a.Get(0, 0, 2))

	for _, n := range []int{0, 15, 17} {
		_, err = NewDenseArrayFromData(Width4, d, make([]byte, n))
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidBufferSize), "len %d", n)
	}

	_, err = NewDenseArrayFromData(Width(3), d, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	_, err = NewDenseArrayFromData(Width4, Dimensions{SizeX: 0, SizeY: 1, SizeZ: 1}, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestNewDenseArrayPanicsOnBadWidth(t *testing.T) {
	assert.Panics(t, func() { NewDenseArray(Width(5), smallDims) })
}

func TestDenseArrayCopyIsIndependent(t *testing.T) {
	a := NewDenseArray(Width2, smallDims)
	fill(a, Width2)
	c := a.Copy()
	assertPattern(t, c, Width2)

	c.Set(0, 0, 0, 3)
	a.Set(0, 0, 0, 1)
	assert.Equal(t, 3, c.Get(0, 0, 0))
	assert.Equal(t, 1, a.Get(0, 0, 0))
	assert.Equal(t, a.EstimatedMemoryConsumptionInBytes(), c.EstimatedMemoryConsumptionInBytes())
}

func TestCheckedHelpers(t *testing.T) {
	for _, w := range Widths {
		t.Run(w.String(), func(t *testing.T) {
			a := NewDenseArray(w, smallDims)

			_, err := Set(a, 0, 0, 0, w.Max()+1)
			assert.True(t, errors.IsType(err, errors.ErrorTypeValueOutOfRange))
			_, err = Set(a, 0, 0, 0, -1)
			assert.True(t, errors.IsType(err, errors.ErrorTypeValueOutOfRange))

			prev, err := Set(a, 0, 0, 0, w.Max())
			require.NoError(t, err)
			assert.Equal(t, 0, prev)

			v, err := Get(a, 0, 0, 0)
			require.NoError(t, err)
			assert.Equal(t, w.Max(), v)

			_, err = Get(a, 5, 0, 0)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeIndexOutOfRange))
			var se *errors.Error
			require.ErrorAs(t, err, &se)
			assert.Equal(t, 5, se.Details["x"])
			assert.Equal(t, smallDims.String(), se.Details["dimensions"])

			_, err = Get(a, 0, -1, 0)
			assert.True(t, errors.IsType(err, errors.ErrorTypeIndexOutOfRange))

			_, err = CompareAndSet(a, 0, 0, 0, 0, w.Max()+1)
			require.ErrorAs(t, err, &se)
			assert.Equal(t, errors.ErrorTypeValueOutOfRange, se.Type)
			assert.Equal(t, "expected", se.Details["argument"])

			ok, err := CompareAndSet(a, 0, 0, 0, 0, w.Max())
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestConvertPreservesValues(t *testing.T) {
	for _, from := range Widths {
		for _, to := range Widths {
			if to < from {
				continue
			}
			t.Run(fmt.Sprintf("%s->%s", from, to), func(t *testing.T) {
				src := NewDenseArray(from, smallDims)
				fill(src, from)

				up, err := Convert(src, to)
				require.NoError(t, err)
				assert.Equal(t, to.Bits(), up.ElementSizeInBits())
				assertPattern(t, up, from)

				down, err := Convert(up, from)
				require.NoError(t, err)
				assert.Equal(t, src.Data(), down.Data())
			})
		}
	}
}

func TestConvertRejectsValuesThatDoNotFit(t *testing.T) {
	src := NewDenseArray(Width8, smallDims)
	src.Set(2, 1, 0, 16)

	_, err := Convert(src, Width4)
	require.Error(t, err)
	var se *errors.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, errors.ErrorTypeValueOutOfRange, se.Type)
	assert.Equal(t, 2, se.Details["x"])
	assert.Equal(t, 16, se.Details["value"])

	src.Set(2, 1, 0, 15)
	_, err = Convert(src, Width4)
	assert.NoError(t, err)
}

func TestConvertSameWidthCopies(t *testing.T) {
	src := NewDenseArray(Width4, smallDims)
	fill(src, Width4)
	dst, err := Convert(src, Width4)
	require.NoError(t, err)
	dst.Set(0, 0, 0, 15)
	assert.Equal(t, pattern(Width4, 0, 0, 0), src.Get(0, 0, 0))
}

func TestConvertRecordsCreation(t *testing.T) {
	created := func(tag string) float64 {
		return testutil.ToFloat64(metrics.ArraysCreated.WithLabelValues(tag, metrics.PathConvert))
	}
	wide, narrow := created("dense16"), created("dense2")

	src := NewDenseArray(Width4, smallDims)
	src.Set(0, 0, 0, 9)
	_, err := Convert(src, Width16)
	require.NoError(t, err)
	_, err = Convert(src, Width2)
	require.Error(t, err)

	assert.Equal(t, wide+1, created("dense16"))
	assert.Equal(t, narrow, created("dense2"))
}

type recordingDeflator struct {
	view    DenseView
	calls   int
	replace Array
}

func (r *recordingDeflator) DeflateDense(v DenseView) Array {
	r.calls++
	r.view = v
	return r.replace
}

func TestDenseArrayDeflate(t *testing.T) {
	a := NewDenseArray(Width4, smallDims)
	fill(a, Width4)

	declining := &recordingDeflator{}
	assert.Same(t, a, a.Deflate(declining))
	assert.Equal(t, 1, declining.calls)
	assert.Equal(t, a.RowSize(), declining.view.RowSize)
	assert.Equal(t, Width4, declining.view.Width)
	assert.Equal(t, smallDims, declining.view.Dims)
	assert.Equal(t, a.Data(), declining.view.Data)

	repl := NewDenseArray(Width8, smallDims)
	replacing := &recordingDeflator{replace: repl}
	assert.Same(t, repl, a.Deflate(replacing))

	assert.Same(t, a, a.Deflate(nil))
}

func TestDenseViewHelpers(t *testing.T) {
	a := NewDenseArray(Width2, smallDims)
	for z := 0; z < smallDims.SizeZ; z++ {
		for x := 0; x < smallDims.SizeX; x++ {
			a.Set(x, 1, z, 3)
		}
	}
	a.Set(4, 2, 2, 1)

	v := a.View()
	val, ok := v.UniformRow(0)
	assert.True(t, ok)
	assert.Equal(t, 0, val)

	val, ok = v.UniformRow(1)
	assert.True(t, ok)
	assert.Equal(t, 3, val)

	_, ok = v.UniformRow(2)
	assert.False(t, ok)

	assert.Equal(t, 1, v.Get(4, 2, 2))
	assert.Len(t, v.Row(1), a.RowSize())
}

func TestDeflatorFunc(t *testing.T) {
	a := NewDenseArray(Width1, smallDims)
	called := false
	got := a.Deflate(DeflatorFunc(func(v DenseView) Array {
		called = true
		return nil
	}))
	assert.True(t, called)
	assert.Same(t, a, got)
}

func BenchmarkDenseArrayGet(b *testing.B) {
	for _, w := range Widths {
		b.Run(w.String(), func(b *testing.B) {
			a := NewDenseArray(w, DefaultDimensions)
			b.ResetTimer()
			sum := 0
			for i := 0; i < b.N; i++ {
				sum += a.Get(i&15, (i>>4)&255, (i>>12)&15)
			}
			_ = sum
		})
	}
}

func BenchmarkDenseArraySet(b *testing.B) {
	for _, w := range Widths {
		b.Run(w.String(), func(b *testing.B) {
			a := NewDenseArray(w, DefaultDimensions)
			mask := w.Max()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				a.Set(i&15, (i>>4)&255, (i>>12)&15, i&mask)
			}
		})
	}
}
