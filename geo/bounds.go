package geo

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidBounds is returned when min >= max on either axis.
	ErrInvalidBounds = errors.New("invalid bounds: min must be less than max on both axes")
	// ErrInvalidCount is returned when the requested candidate count is not positive.
	ErrInvalidCount = errors.New("invalid count: must be positive")
)

// Bounds is a geographic bounding box in decimal degrees.
type Bounds struct {
	MinLat float64 `json:"min_lat" yaml:"min_lat"`
	MaxLat float64 `json:"max_lat" yaml:"max_lat"`
	MinLon float64 `json:"min_lon" yaml:"min_lon"`
	MaxLon float64 `json:"max_lon" yaml:"max_lon"`
}

// Validate checks that the box is non-degenerate.
func (b Bounds) Validate() error {
	if b.MinLat >= b.MaxLat || b.MinLon >= b.MaxLon {
		return fmt.Errorf("%w: got lat [%f, %f], lon [%f, %f]",
			ErrInvalidBounds, b.MinLat, b.MaxLat, b.MinLon, b.MaxLon)
	}
	return nil
}

// Contains reports whether the coordinate lies inside the box, boundary included.
func (b Bounds) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}
