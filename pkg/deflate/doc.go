// Package deflate provides compact representations for voxel arrays that
// are no longer being edited, and the passes that produce them.
//
// Two variants are registered with blockdata.DefaultRegistry on import:
//
//   - sparseN: a SparseArray keeps every uniform Y row as a single value.
//     RowDeflator produces it.
//   - compressedN: a CompressedArray holds the whole packed buffer
//     compressed and inflates it on first access. CompressingDeflator
//     produces it.
//
// Both honor the blockdata.Array contract, so callers keep using the
// returned array exactly as they used the dense one.
//
// # Basic Usage
//
//	pass, err := deflate.NewPassFromConfig(cfg)
//	...
//	chunk.light = pass.Run(chunk.light)
package deflate
