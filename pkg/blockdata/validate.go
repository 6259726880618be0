package blockdata

import (
	"github.com/ajitpratap0/voxpack/pkg/errors"
)

// CheckIndex returns an IndexOutOfRange error if (x, y, z) lies outside d.
func CheckIndex(d Dimensions, x, y, z int) error {
	if d.Contains(x, y, z) {
		return nil
	}
	return errors.New(errors.ErrorTypeIndexOutOfRange, "coordinate outside array").
		WithDetail("x", x).
		WithDetail("y", y).
		WithDetail("z", z).
		WithDetail("dimensions", d.String())
}

// CheckValue returns a ValueOutOfRange error if v does not fit in bits bits.
func CheckValue(bits, v int) error {
	if e := valueError(bits, v); e != nil {
		return e
	}
	return nil
}

func valueError(bits, v int) *errors.Error {
	if v >= 0 && v <= 1<<bits-1 {
		return nil
	}
	return errors.New(errors.ErrorTypeValueOutOfRange, "value does not fit element width").
		WithDetail("value", v).
		WithDetail("bits", bits).
		WithDetail("max", 1<<bits-1)
}

// MustContain panics with an IndexOutOfRange error. Implementations call it
// only when ChecksEnabled is set.
func MustContain(d Dimensions, x, y, z int) {
	if err := CheckIndex(d, x, y, z); err != nil {
		panic(err)
	}
}

// MustFit panics with a ValueOutOfRange error. Implementations call it only
// when ChecksEnabled is set.
func MustFit(bits int, values ...int) {
	for _, v := range values {
		if err := CheckValue(bits, v); err != nil {
			panic(err)
		}
	}
}

// Get reads a voxel after validating the coordinate.
func Get(a Array, x, y, z int) (int, error) {
	if err := CheckIndex(a.Dimensions(), x, y, z); err != nil {
		return 0, err
	}
	return a.Get(x, y, z), nil
}

// Set writes a voxel after validating the coordinate and value.
func Set(a Array, x, y, z, value int) (int, error) {
	if err := CheckIndex(a.Dimensions(), x, y, z); err != nil {
		return 0, err
	}
	if err := CheckValue(a.ElementSizeInBits(), value); err != nil {
		return 0, err
	}
	return a.Set(x, y, z, value), nil
}

// CompareAndSet runs a conditional update after validating coordinate,
// value and expected value.
func CompareAndSet(a Array, x, y, z, value, expected int) (bool, error) {
	if err := CheckIndex(a.Dimensions(), x, y, z); err != nil {
		return false, err
	}
	bits := a.ElementSizeInBits()
	if err := CheckValue(bits, value); err != nil {
		return false, err
	}
	if e := valueError(bits, expected); e != nil {
		return false, e.WithDetail("argument", "expected")
	}
	return a.CompareAndSet(x, y, z, value, expected), nil
}
