package ml

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeDatasetCSV(t *testing.T, rows []string, header bool) string {
	t.Helper()
	var sb strings.Builder
	if header {
		sb.WriteString(strings.Join(FeatureNames(), ","))
		sb.WriteString(",label\n")
	}
	for _, row := range rows {
		sb.WriteString(row)
		sb.WriteString("\n")
	}
	path := filepath.Join(t.TempDir(), "dataset.csv")
	if err := os.WriteFile(path, []byte(sb.String()), 0o600); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return path
}

func datasetRow(fill float64, label int) string {
	values := make([]string, FeatureCount)
	for i := range values {
		values[i] = fmt.Sprintf("%f", fill+float64(i)*0.01)
	}
	return strings.Join(values, ",") + fmt.Sprintf(",%d", label)
}

func TestLoadLabeledCSV(t *testing.T) {
	path := writeDatasetCSV(t, []string{
		datasetRow(0.1, 0),
		datasetRow(0.8, 1),
	}, true)

	features, labels, err := LoadLabeledCSV(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(features) != 2 || len(labels) != 2 {
		t.Fatalf("expected 2 samples, got %d features and %d labels", len(features), len(labels))
	}
	if labels[0] != 0 || labels[1] != 1 {
		t.Fatalf("unexpected labels: %v", labels)
	}
	if len(features[0]) != FeatureCount {
		t.Fatalf("expected %d features per row, got %d", FeatureCount, len(features[0]))
	}
}

func TestLoadLabeledCSVNoHeader(t *testing.T) {
	path := writeDatasetCSV(t, []string{datasetRow(0.5, 1)}, false)

	features, labels, err := LoadLabeledCSV(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(features) != 1 || labels[0] != 1 {
		t.Fatalf("unexpected dataset: %d rows, labels %v", len(features), labels)
	}
}

func TestLoadLabeledCSVBadLabel(t *testing.T) {
	path := writeDatasetCSV(t, []string{datasetRow(0.5, 3)}, false)
	if _, _, err := LoadLabeledCSV(path); err == nil {
		t.Fatal("expected error for non-binary label")
	}
}

func TestSplitDataset(t *testing.T) {
	features, labels := syntheticDataset(25)

	trainX, trainY, testX, testY := SplitDataset(features, labels, 0.2)
	if len(trainX) != len(trainY) || len(testX) != len(testY) {
		t.Fatal("feature and label splits out of sync")
	}
	if len(trainX)+len(testX) != len(features) {
		t.Fatalf("split lost samples: %d + %d != %d", len(trainX), len(testX), len(features))
	}
	if len(testX) == 0 {
		t.Fatal("expected non-empty test split")
	}
}

func TestEvaluate(t *testing.T) {
	model := trainTestModel(t)
	features, labels := syntheticDataset(10)

	accuracy, precision, recall := Evaluate(model, features, labels)
	if accuracy < 0.9 {
		t.Fatalf("expected high accuracy on separable data, got %f", accuracy)
	}
	if precision == 0 || recall == 0 {
		t.Fatalf("expected non-zero precision/recall, got %f/%f", precision, recall)
	}
}
