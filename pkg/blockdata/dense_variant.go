package blockdata

import (
	"io"
	"strconv"

	"github.com/ajitpratap0/voxpack/pkg/errors"
)

// DenseTag returns the tag of the dense variant for w, e.g. "dense4".
func DenseTag(w Width) Tag { return Tag("dense" + strconv.Itoa(w.Bits())) }

// DenseFactory builds DenseArrays of one width.
type DenseFactory struct {
	width Width
}

// NewDenseFactory returns the factory for the dense variant of width w.
func NewDenseFactory(w Width) *DenseFactory { return &DenseFactory{width: w} }

func (f *DenseFactory) Tag() Tag { return DenseTag(f.width) }

func (f *DenseFactory) Create() Array { return NewDenseArray(f.width, DefaultDimensions) }

func (f *DenseFactory) CreateSized(d Dimensions) (Array, error) {
	return NewDenseArrayFromData(f.width, d, nil)
}

func (f *DenseFactory) CreateSerializationHandler() SerializationHandler {
	return &DenseHandler{width: f.width}
}

// DenseHandler rehydrates DenseArrays of one width. The byte layout is the
// dimension header followed by a length-prefixed copy of the buffer.
type DenseHandler struct {
	width Width
}

func (h *DenseHandler) CanHandle(tag Tag) bool { return tag == DenseTag(h.width) }

func (h *DenseHandler) CreateArray(d Dimensions, data []byte) (Array, error) {
	a, err := NewDenseArrayFromData(h.width, d, data)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (h *DenseHandler) Serialize(a Array, w io.Writer) error {
	da, ok := a.(*DenseArray)
	if !ok || da.layout.width != h.width {
		return errors.New(errors.ErrorTypeValidation, "array does not belong to this handler").
			WithDetail("handler", string(DenseTag(h.width))).
			WithDetail("array", string(a.Tag()))
	}
	if err := WriteDimensions(w, da.layout.dims); err != nil {
		return err
	}
	return WriteBlob(w, da.data)
}

func (h *DenseHandler) Deserialize(r io.Reader) (Array, error) {
	d, err := ReadDimensions(r)
	if err != nil {
		return nil, err
	}
	data, err := ReadBlob(r, NewLayout(h.width, d).BufferSize())
	if err != nil {
		return nil, err
	}
	return h.CreateArray(d, data)
}
