// Package blockdata stores one small integer attribute per voxel of a chunk.
//
// A DenseArray packs elements of 1, 2, 4, 8 or 16 bits into a byte buffer
// ordered by Y row, then Z, then X. Narrow widths split every row into
// 8/bits lanes: the first rowSize voxels of a row live in the most
// significant bits of the row's bytes, the next rowSize in the bits below
// them, and so on. 16-bit elements are big-endian.
//
// # Basic Usage
//
//	light := blockdata.NewDenseArray(blockdata.Width4, blockdata.DefaultDimensions)
//	light.Set(3, 64, 7, 15)
//	level := light.Get(3, 64, 7)
//
// The methods on Array do no validation unless the binary is built with
// the voxpack_checks tag. The package level Get, Set and CompareAndSet
// functions always validate and return structured errors from
// pkg/errors.
//
// # Variants
//
// Every variant is identified by a Tag. The Registry maps tags to
// factories and serialization handlers so that chunk persistence can
// rebuild arrays without knowing their concrete types:
//
//	arr, err := blockdata.DefaultRegistry().CreateArray("dense4", dims, data)
//
// Arrays can be offered to a Deflator, which may return a smaller
// representation of the same contents. See package deflate.
package blockdata
