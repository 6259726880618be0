package blockdata

import (
	"strconv"
	"strings"

	"github.com/ajitpratap0/voxpack/pkg/errors"
)

// Width is the number of bits used per element. It doubles as the packing
// strategy: sub-byte widths share a byte between 8/bits lanes, wider ones
// occupy whole bytes.
type Width uint8

const (
	Width1  Width = 1
	Width2  Width = 2
	Width4  Width = 4
	Width8  Width = 8
	Width16 Width = 16
)

// Widths lists every supported width, narrowest first.
var Widths = []Width{Width1, Width2, Width4, Width8, Width16}

// Valid reports whether w is a supported width.
func (w Width) Valid() bool {
	switch w {
	case Width1, Width2, Width4, Width8, Width16:
		return true
	}
	return false
}

// Bits returns the element size in bits.
func (w Width) Bits() int { return int(w) }

// Max returns the largest storable value, 2^bits - 1.
func (w Width) Max() int { return 1<<w - 1 }

// Packed reports whether several elements share one byte.
func (w Width) Packed() bool { return w < Width8 }

// LanesPerByte returns how many elements share a byte (1 for 8 and 16 bits).
func (w Width) LanesPerByte() int {
	if !w.Packed() {
		return 1
	}
	return 8 / int(w)
}

// RowSize returns the bytes needed for planeCount elements.
func (w Width) RowSize(planeCount int) int {
	return (planeCount*int(w) + 7) / 8
}

// Fits reports whether v is storable at this width.
func (w Width) Fits(v int) bool { return v >= 0 && v <= w.Max() }

func (w Width) String() string { return strconv.Itoa(int(w)) + "bit" }

// ParseWidth accepts "4" or "4bit".
func ParseWidth(s string) (Width, error) {
	n, err := strconv.Atoi(strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "bit"))
	if err != nil || n < 0 || n > 255 || !Width(n).Valid() {
		return 0, errors.New(errors.ErrorTypeValidation, "unsupported element width").
			WithDetail("input", s)
	}
	return Width(n), nil
}

// Lane 0 holds the most significant bits of the byte.
func (w Width) shift(lane int) uint {
	return uint(8 - int(w)*(lane+1))
}

// decode extracts lane from b. Only valid for packed widths.
func (w Width) decode(b byte, lane int) int {
	return int(b>>w.shift(lane)) & w.Max()
}

// encode replaces lane in b with v, leaving the other lanes untouched.
// Bits of v above the width are dropped.
func (w Width) encode(b byte, lane int, v int) byte {
	s := w.shift(lane)
	m := byte(w.Max()) << s
	return b&^m | byte(v)<<s&m
}
