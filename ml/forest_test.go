package ml

import (
	"math"
	"testing"
)

// syntheticDataset builds a separable dataset: built-up samples have a high
// built-up index and brightness, non-built samples high NDVI.
func syntheticDataset(perClass int) ([][]float64, []int) {
	features := make([][]float64, 0, perClass*2)
	labels := make([]int, 0, perClass*2)
	for i := 0; i < perClass; i++ {
		jitter := float64(i) * 0.001
		built := []float64{
			0.30 + jitter, 0.05, 0.28, 0.05, 0.25, 0.04,
			0.10 + jitter, 0.02, 0.45 + jitter, 0.05, 0.40, 0.03,
		}
		nonBuilt := []float64{
			0.12 + jitter, 0.03, 0.18, 0.04, 0.10, 0.02,
			0.70 + jitter, 0.05, 0.05 + jitter, 0.02, 0.15, 0.02,
		}
		features = append(features, built, nonBuilt)
		labels = append(labels, 1, 0)
	}
	return features, labels
}

func TestTrainForestSeparatesClasses(t *testing.T) {
	features, labels := syntheticDataset(30)

	cfg := ForestConfig{Trees: 25, MaxDepth: 5, Seed: 42}
	forest, err := TrainForest(features, labels, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pBuilt, err := forest.PredictProba(features[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pNonBuilt, err := forest.PredictProba(features[1])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pBuilt <= pNonBuilt {
		t.Fatalf("expected built-up probability %f > non-built %f", pBuilt, pNonBuilt)
	}
	if pBuilt < 0 || pBuilt > 1 || pNonBuilt < 0 || pNonBuilt > 1 {
		t.Fatalf("probabilities out of range: %f, %f", pBuilt, pNonBuilt)
	}
}

func TestTrainForestDeterministicWithSeed(t *testing.T) {
	features, labels := syntheticDataset(20)
	cfg := ForestConfig{Trees: 10, MaxDepth: 4, Seed: 7}

	first, err := TrainForest(features, labels, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := TrainForest(features, labels, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	probe := features[0]
	p1, err := first.PredictProba(probe)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p2, err := second.PredictProba(probe)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p1 != p2 {
		t.Fatalf("same seed produced different forests: %f vs %f", p1, p2)
	}
}

func TestPredictProbaDeterministic(t *testing.T) {
	features, labels := syntheticDataset(20)
	forest, err := TrainForest(features, labels, ForestConfig{Trees: 10, MaxDepth: 4, Seed: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	probe := features[2]
	first, err := forest.PredictProba(probe)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := forest.PredictProba(probe)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if again != first {
			t.Fatalf("inference not deterministic: %f vs %f", again, first)
		}
	}
}

func TestBalancedWeights(t *testing.T) {
	labels := []int{1, 0, 0, 0}
	weights, err := balancedWeights(labels)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var positive, negative float64
	for i, label := range labels {
		if label == 1 {
			positive += weights[i]
		} else {
			negative += weights[i]
		}
	}
	if math.Abs(positive-negative) > 1e-9 {
		t.Fatalf("expected equal class weight totals, got %f and %f", positive, negative)
	}

	if _, err := balancedWeights([]int{0, 2}); err == nil {
		t.Fatal("expected error for non-binary label")
	}
}

func TestTrainForestEmptyInput(t *testing.T) {
	if _, err := TrainForest(nil, nil, DefaultForestConfig()); err == nil {
		t.Fatal("expected error for empty dataset")
	}
}
