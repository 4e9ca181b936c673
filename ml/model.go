package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrModelNotLoaded is returned when no usable model artifact is available.
// It is fatal to the classifier pathway but not to the process: the
// generator-only pathway keeps working.
var ErrModelNotLoaded = errors.New("model not loaded")

// Model bundles the fitted forest and the fitted scaler as one inseparable
// artifact. The scaler's parameters are meaningless without the exact forest
// they were paired with at training time, so the two are only ever persisted
// and loaded together. Loaded once at startup, immutable afterwards.
type Model struct {
	Version         string    `json:"version"`
	Accuracy        float64   `json:"accuracy"`
	TrainedAt       time.Time `json:"trained_at"`
	FeatureNames    []string  `json:"feature_names"`
	TrainingSamples int       `json:"training_samples"`
	TestSamples     int       `json:"test_samples"`
	Scaler          *Scaler   `json:"scaler"`
	Forest          *Forest   `json:"forest"`
}

// Predict maps a raw feature vector to a binary label and the probability of
// the positive (built-up) class. The label is derived by thresholding the
// probability at the fixed DecisionBoundary.
func (m *Model) Predict(vector []float64) (int, float64, error) {
	if m == nil || m.Scaler == nil || m.Forest == nil {
		return 0, 0, ErrModelNotLoaded
	}
	if len(vector) != len(m.FeatureNames) {
		return 0, 0, fmt.Errorf("%w: model expects %d features, got %d",
			ErrFeatureDimension, len(m.FeatureNames), len(vector))
	}
	if err := ValidateVector(vector); err != nil {
		return 0, 0, err
	}

	scaled, err := m.Scaler.Transform(vector)
	if err != nil {
		return 0, 0, err
	}
	probability, err := m.Forest.PredictProba(scaled)
	if err != nil {
		return 0, 0, err
	}
	label := 0
	if probability >= DecisionBoundary {
		label = 1
	}
	return label, probability, nil
}

// Save writes the artifact atomically: a temp file in the target directory
// renamed into place, so a crashed writer never leaves a torn artifact.
func (m *Model) Save(path string) error {
	if m.Scaler == nil || m.Forest == nil {
		return errors.New("model incomplete: scaler and forest are required")
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".model-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// LoadModel reads and validates an artifact. Absence or corruption is a
// ModelNotLoaded condition, not a process-fatal error.
func LoadModel(path string) (*Model, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrModelNotLoaded, path, err)
	}
	var model Model
	if err := json.Unmarshal(payload, &model); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrModelNotLoaded, path, err)
	}
	if model.Scaler == nil || model.Forest == nil || len(model.Forest.Trees) == 0 {
		return nil, fmt.Errorf("%w: artifact %s is incomplete", ErrModelNotLoaded, path)
	}
	if len(model.FeatureNames) != FeatureCount {
		return nil, fmt.Errorf("%w: artifact %s expects %d features, this service serves %d",
			ErrModelNotLoaded, path, len(model.FeatureNames), FeatureCount)
	}
	return &model, nil
}

// ConfidenceBucket maps a probability to the qualitative level reported
// alongside predictions.
func ConfidenceBucket(probability float64) string {
	switch {
	case probability > 0.8:
		return "high"
	case probability > 0.5:
		return "medium"
	default:
		return "low"
	}
}
