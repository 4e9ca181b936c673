package ml

import (
	"errors"
	"fmt"
	"math"
)

// ErrFeatureDimension is returned when a feature vector does not match the
// 12 values the model expects. Mismatches are hard errors, never padded or
// truncated.
var ErrFeatureDimension = errors.New("feature vector dimension mismatch")

// FeatureCount is the fixed length of a remote-sensing feature vector.
const FeatureCount = 12

// FeatureNames returns the ordered names of the 12 features every vector
// must carry: band mean/std pairs, vegetation index, built-up index and
// brightness statistics. The order is part of the model contract.
func FeatureNames() []string {
	return []string{
		"R_mean", "R_std",
		"G_mean", "G_std",
		"B_mean", "B_std",
		"NDVI_mean", "NDVI_std",
		"Built_mean", "Built_std",
		"Brightness_mean", "Brightness_std",
	}
}

// ValidateVector checks length and that every value is a finite real.
func ValidateVector(vector []float64) error {
	if len(vector) != FeatureCount {
		return fmt.Errorf("%w: expected %d features, got %d", ErrFeatureDimension, FeatureCount, len(vector))
	}
	for i, v := range vector {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: feature %q is not finite", ErrFeatureDimension, FeatureNames()[i])
		}
	}
	return nil
}
