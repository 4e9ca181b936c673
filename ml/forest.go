package ml

import (
	"errors"
	"fmt"
	"math/rand"
)

// DecisionBoundary is the fixed probability cutoff separating label 0 from
// label 1. It is a property of the classifier, not a per-request knob; the
// stricter acceptance threshold applied during selection lives in the engine.
const DecisionBoundary = 0.5

// ForestConfig controls offline training. Defaults follow the production
// training job: 200 trees, depth capped at 15, fixed seed so a rerun on the
// same dataset reproduces the same forest.
type ForestConfig struct {
	Trees    int
	MaxDepth int
	Seed     int64
}

// DefaultForestConfig returns the training defaults.
func DefaultForestConfig() ForestConfig {
	return ForestConfig{Trees: 200, MaxDepth: 15, Seed: 42}
}

// Forest is a bagged ensemble of decision trees. Inference is read-only and
// safe for concurrent use.
type Forest struct {
	Trees []DecisionTree `json:"trees"`
}

// TrainForest fits cfg.Trees trees, each on a bootstrap resample of the
// training set, with class-balanced sample weights to counter the imbalance
// between built-up and non-built-up patches.
func TrainForest(features [][]float64, labels []int, cfg ForestConfig) (*Forest, error) {
	if len(features) == 0 || len(labels) == 0 {
		return nil, errors.New("features or labels empty")
	}
	if len(features) != len(labels) {
		return nil, errors.New("features and labels size mismatch")
	}
	if cfg.Trees <= 0 {
		cfg.Trees = 200
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 15
	}

	weights, err := balancedWeights(labels)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	forest := &Forest{Trees: make([]DecisionTree, cfg.Trees)}
	n := len(features)

	for t := 0; t < cfg.Trees; t++ {
		sampleX := make([][]float64, n)
		sampleY := make([]int, n)
		sampleW := make([]float64, n)
		for i := 0; i < n; i++ {
			j := rng.Intn(n)
			sampleX[i] = features[j]
			sampleY[i] = labels[j]
			sampleW[i] = weights[j]
		}
		if err := forest.Trees[t].Train(sampleX, sampleY, sampleW, cfg.MaxDepth); err != nil {
			return nil, fmt.Errorf("training tree %d: %w", t, err)
		}
	}
	return forest, nil
}

// PredictProba averages the leaf probabilities across all trees. Identical
// input always yields identical output; there is no randomness at inference.
func (f *Forest) PredictProba(features []float64) (float64, error) {
	if f == nil || len(f.Trees) == 0 {
		return 0, errors.New("forest not trained")
	}
	var sum float64
	for i := range f.Trees {
		p, err := f.Trees[i].PredictProba(features)
		if err != nil {
			return 0, err
		}
		sum += p
	}
	return sum / float64(len(f.Trees)), nil
}

// balancedWeights assigns each sample n/(2*count(class)) so both classes
// contribute equal total weight.
func balancedWeights(labels []int) ([]float64, error) {
	var positive, negative int
	for _, label := range labels {
		switch label {
		case 0:
			negative++
		case 1:
			positive++
		default:
			return nil, fmt.Errorf("unexpected label %d: want 0 or 1", label)
		}
	}
	if positive == 0 || negative == 0 {
		// Single-class dataset; uniform weights keep training well defined.
		uniform := make([]float64, len(labels))
		for i := range uniform {
			uniform[i] = 1
		}
		return uniform, nil
	}

	n := float64(len(labels))
	posWeight := n / (2 * float64(positive))
	negWeight := n / (2 * float64(negative))
	weights := make([]float64, len(labels))
	for i, label := range labels {
		if label == 1 {
			weights[i] = posWeight
		} else {
			weights[i] = negWeight
		}
	}
	return weights, nil
}
