package geo

import (
	"fmt"
	"math"
)

// Candidate is a coordinate proposed for evaluation as a facility site.
type Candidate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// GenerateCandidates lays out a near-square grid of candidate coordinates
// strictly inside bounds. The grid has ceil(sqrt(count)) points per axis,
// spaced over gridSize+1 divisions so no candidate ever sits on the boundary.
// Output is row-major (south to north, west to east within a row) and
// deterministic: identical inputs always yield the identical sequence.
//
// The result may exceed count because the grid is square; callers accept the
// extra coverage rather than truncating, which would bias toward one edge.
func GenerateCandidates(bounds Bounds, count int) ([]Candidate, error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCount, count)
	}
	if err := bounds.Validate(); err != nil {
		return nil, err
	}

	gridSize := int(math.Ceil(math.Sqrt(float64(count))))
	latStep := (bounds.MaxLat - bounds.MinLat) / float64(gridSize+1)
	lonStep := (bounds.MaxLon - bounds.MinLon) / float64(gridSize+1)

	candidates := make([]Candidate, 0, gridSize*gridSize)
	for i := 1; i <= gridSize; i++ {
		for j := 1; j <= gridSize; j++ {
			candidates = append(candidates, Candidate{
				Lat: bounds.MinLat + float64(i)*latStep,
				Lon: bounds.MinLon + float64(j)*lonStep,
			})
		}
	}
	return candidates, nil
}
