// Package voxpack stores small per-voxel integer attributes (light levels,
// flags, metadata nibbles) for fixed-size chunks of a voxel world.
//
// Values live in bit-packed arrays of 1, 2, 4, 8 or 16 bits per element.
// Idle arrays can be deflated into cheaper variants, either by collapsing
// rows that hold a single value or by compressing the whole buffer, and
// every variant is persisted and rebuilt by tag through a registry.
//
// # Packages
//
//   - pkg/blockdata: dense packed arrays, validation, width conversion and
//     the variant registry
//   - pkg/deflate: sparse and compressed variants and deflation passes
//   - pkg/compression: the codec family used by compressed arrays
//   - pkg/config: YAML configuration with environment overrides
//   - pkg/logger, pkg/metrics, pkg/errors, pkg/pool: ambient support
//
// # Quick Start
//
//	arr := blockdata.NewDenseArray(blockdata.Width4, blockdata.DefaultDimensions)
//	arr.Set(3, 70, 9, 15)
//
//	pass, _ := deflate.NewPassFromConfig(config.Default())
//	arr2 := pass.Run(arr)
//
//	var buf bytes.Buffer
//	_ = blockdata.DefaultRegistry().Serialize(arr2, &buf)
//
// The voxpack command in cmd/voxpack inspects variants and measures
// throughput from the command line.
package voxpack
