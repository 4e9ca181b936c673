package ml

import (
	"errors"
	"fmt"
	"math"
)

// Scaler standardizes feature vectors to zero mean and unit variance.
// It is fitted on the training split only and persisted together with the
// forest it was paired with; the two are never swapped independently.
type Scaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// Fit computes per-feature mean and standard deviation.
func (s *Scaler) Fit(features [][]float64) error {
	if len(features) == 0 {
		return errors.New("features is empty")
	}
	dims := len(features[0])
	s.Mean = make([]float64, dims)
	s.Std = make([]float64, dims)

	for _, row := range features {
		if len(row) != dims {
			return fmt.Errorf("inconsistent feature row length: expected %d, got %d", dims, len(row))
		}
		for i, v := range row {
			s.Mean[i] += v
		}
	}
	n := float64(len(features))
	for i := range s.Mean {
		s.Mean[i] /= n
	}
	for _, row := range features {
		for i, v := range row {
			diff := v - s.Mean[i]
			s.Std[i] += diff * diff
		}
	}
	for i := range s.Std {
		s.Std[i] = math.Sqrt(s.Std[i] / n)
		// Constant features scale to zero offset instead of dividing by zero.
		if s.Std[i] == 0 {
			s.Std[i] = 1
		}
	}
	return nil
}

// Transform standardizes a single vector.
func (s *Scaler) Transform(vector []float64) ([]float64, error) {
	if len(s.Mean) == 0 {
		return nil, errors.New("scaler not fitted")
	}
	if len(vector) != len(s.Mean) {
		return nil, fmt.Errorf("%w: scaler expects %d features, got %d", ErrFeatureDimension, len(s.Mean), len(vector))
	}
	scaled := make([]float64, len(vector))
	for i, v := range vector {
		scaled[i] = (v - s.Mean[i]) / s.Std[i]
	}
	return scaled, nil
}

// TransformAll standardizes a batch of vectors.
func (s *Scaler) TransformAll(features [][]float64) ([][]float64, error) {
	scaled := make([][]float64, len(features))
	for i, row := range features {
		out, err := s.Transform(row)
		if err != nil {
			return nil, err
		}
		scaled[i] = out
	}
	return scaled, nil
}
