//go:build !voxpack_checks

package blockdata

// ChecksEnabled turns on bounds and range assertions in Get, Set and
// CompareAndSet. Build with -tags voxpack_checks to enable them.
const ChecksEnabled = false
