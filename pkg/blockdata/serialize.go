package blockdata

import (
	"encoding/binary"
	"io"

	"github.com/ajitpratap0/voxpack/pkg/errors"
	"github.com/ajitpratap0/voxpack/pkg/pool"
)

// Serialization helpers shared by variant handlers. All integers are
// big-endian int32.

// WriteDimensions writes sizeX, sizeY, sizeZ.
func WriteDimensions(w io.Writer, d Dimensions) error {
	return WriteInts(w, d.SizeX, d.SizeY, d.SizeZ)
}

// ReadDimensions reads and validates what WriteDimensions wrote.
func ReadDimensions(r io.Reader) (Dimensions, error) {
	v, err := ReadInts(r, 3)
	if err != nil {
		return Dimensions{}, err
	}
	d := Dimensions{SizeX: v[0], SizeY: v[1], SizeZ: v[2]}
	if err := d.Validate(); err != nil {
		return Dimensions{}, errors.Wrap(err, errors.ErrorTypeData, "corrupt dimension header")
	}
	return d, nil
}

// WriteInts writes each value as an int32.
func WriteInts(w io.Writer, values ...int) error {
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.BigEndian.PutUint32(buf[4*i:], uint32(int32(v)))
	}
	if _, err := w.Write(buf); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to write header")
	}
	return nil
}

// ReadInts reads n int32 values.
func ReadInts(r io.Reader, n int) ([]int, error) {
	buf := make([]byte, 4*n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to read header")
	}
	out := make([]int, n)
	for i := range out {
		out[i] = int(int32(binary.BigEndian.Uint32(buf[4*i:])))
	}
	return out, nil
}

// WriteBlob writes a length-prefixed byte slice.
func WriteBlob(w io.Writer, data []byte) error {
	if err := WriteInts(w, len(data)); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to write payload")
	}
	return nil
}

// ReadBlob reads a length-prefixed byte slice whose length must be expected.
// Memory grows with the bytes actually read, so a header claiming a huge
// payload over a short input fails without allocating the claimed size.
func ReadBlob(r io.Reader, expected int) ([]byte, error) {
	n, err := ReadInts(r, 1)
	if err != nil {
		return nil, err
	}
	if n[0] != expected {
		return nil, errors.New(errors.ErrorTypeInvalidBufferSize, "payload length does not match dimensions").
			WithDetail("expected", expected).
			WithDetail("actual", n[0])
	}
	return readPayload(r, expected)
}

// ReadBlobMax reads a length-prefixed byte slice of at most max bytes.
func ReadBlobMax(r io.Reader, max int) ([]byte, error) {
	n, err := ReadInts(r, 1)
	if err != nil {
		return nil, err
	}
	if n[0] < 0 || n[0] > max {
		return nil, errors.New(errors.ErrorTypeInvalidBufferSize, "payload length out of bounds").
			WithDetail("max", max).
			WithDetail("actual", n[0])
	}
	return readPayload(r, n[0])
}

func readPayload(r io.Reader, n int) ([]byte, error) {
	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)

	if _, err := io.CopyN(buf, r, int64(n)); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "truncated payload").
			WithDetail("expected", n).
			WithDetail("actual", buf.Len())
	}
	data := make([]byte, n)
	copy(data, buf.Bytes())
	return data, nil
}
