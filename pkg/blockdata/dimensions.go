package blockdata

import (
	"fmt"

	"github.com/ajitpratap0/voxpack/pkg/errors"
)

// MaxSize bounds each axis so buffer lengths stay well inside int range.
const MaxSize = 1 << 12

// DefaultDimensions is the size of a standard chunk.
var DefaultDimensions = Dimensions{SizeX: 16, SizeY: 256, SizeZ: 16}

// Dimensions is the fixed extent of an array.
type Dimensions struct {
	SizeX int `yaml:"size_x" json:"size_x"`
	SizeY int `yaml:"size_y" json:"size_y"`
	SizeZ int `yaml:"size_z" json:"size_z"`
}

// NewDimensions is shorthand for a Dimensions literal.
func NewDimensions(sizeX, sizeY, sizeZ int) Dimensions {
	return Dimensions{SizeX: sizeX, SizeY: sizeY, SizeZ: sizeZ}
}

// PlaneCount is the number of voxels in one XZ plane (one Y-row).
func (d Dimensions) PlaneCount() int { return d.SizeX * d.SizeZ }

// Volume is the total number of voxels.
func (d Dimensions) Volume() int { return d.SizeX * d.SizeY * d.SizeZ }

// Contains reports whether (x, y, z) addresses a voxel inside d.
func (d Dimensions) Contains(x, y, z int) bool {
	return x >= 0 && x < d.SizeX && y >= 0 && y < d.SizeY && z >= 0 && z < d.SizeZ
}

// Validate checks every axis lies in [1, MaxSize].
func (d Dimensions) Validate() error {
	if d.SizeX < 1 || d.SizeY < 1 || d.SizeZ < 1 ||
		d.SizeX > MaxSize || d.SizeY > MaxSize || d.SizeZ > MaxSize {
		return errors.New(errors.ErrorTypeValidation, "dimensions must lie in [1, MaxSize]").
			WithDetail("dimensions", d.String()).
			WithDetail("max", MaxSize)
	}
	return nil
}

func (d Dimensions) String() string {
	return fmt.Sprintf("%dx%dx%d", d.SizeX, d.SizeY, d.SizeZ)
}

// ParseDimensions parses "XxYxZ", e.g. "16x256x16".
func ParseDimensions(s string) (Dimensions, error) {
	var d Dimensions
	if _, err := fmt.Sscanf(s, "%dx%dx%d", &d.SizeX, &d.SizeY, &d.SizeZ); err != nil {
		return Dimensions{}, errors.Wrap(err, errors.ErrorTypeValidation, "cannot parse dimensions").
			WithDetail("input", s)
	}
	if err := d.Validate(); err != nil {
		return Dimensions{}, err
	}
	return d, nil
}
