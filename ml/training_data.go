package ml

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
)

// LoadLabeledCSV reads a training dataset: one row per sample, the 12
// feature columns in canonical order followed by a 0/1 label column.
// A header row matching the first feature name is skipped.
func LoadLabeledCSV(path string) ([][]float64, []int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, errors.New("dataset is empty")
	}
	if records[0][0] == FeatureNames()[0] {
		records = records[1:]
	}

	features := make([][]float64, 0, len(records))
	labels := make([]int, 0, len(records))
	for line, record := range records {
		if len(record) != FeatureCount+1 {
			return nil, nil, fmt.Errorf("row %d: expected %d columns, got %d", line+1, FeatureCount+1, len(record))
		}
		vector := make([]float64, FeatureCount)
		for i := 0; i < FeatureCount; i++ {
			v, err := strconv.ParseFloat(record[i], 64)
			if err != nil {
				return nil, nil, fmt.Errorf("row %d column %d: %w", line+1, i+1, err)
			}
			vector[i] = v
		}
		label, err := strconv.Atoi(record[FeatureCount])
		if err != nil || (label != 0 && label != 1) {
			return nil, nil, fmt.Errorf("row %d: label must be 0 or 1, got %q", line+1, record[FeatureCount])
		}
		if err := ValidateVector(vector); err != nil {
			return nil, nil, fmt.Errorf("row %d: %w", line+1, err)
		}
		features = append(features, vector)
		labels = append(labels, label)
	}
	return features, labels, nil
}

// SplitDataset performs a sequential train/test split. The dataset is
// expected to be pre-shuffled by the patch extraction step.
func SplitDataset(features [][]float64, labels []int, testRatio float64) (trainX [][]float64, trainY []int, testX [][]float64, testY []int) {
	if testRatio <= 0 || testRatio >= 1 {
		testRatio = 0.2
	}
	split := int(float64(len(features)) * (1 - testRatio))
	for i := range features {
		if i < split {
			trainX = append(trainX, features[i])
			trainY = append(trainY, labels[i])
		} else {
			testX = append(testX, features[i])
			testY = append(testY, labels[i])
		}
	}
	return trainX, trainY, testX, testY
}

// Evaluate runs the model over a holdout set and reports accuracy, precision
// and recall on the positive class.
func Evaluate(model *Model, testX [][]float64, testY []int) (accuracy, precision, recall float64) {
	if len(testX) == 0 {
		return 0, 0, 0
	}

	var correct, truePositive, predictedPositive, actualPositive int
	for i, vector := range testX {
		label, _, err := model.Predict(vector)
		if err != nil {
			continue
		}
		if label == testY[i] {
			correct++
		}
		if label == 1 {
			predictedPositive++
		}
		if testY[i] == 1 {
			actualPositive++
			if label == 1 {
				truePositive++
			}
		}
	}

	accuracy = float64(correct) / float64(len(testX))
	if predictedPositive > 0 {
		precision = float64(truePositive) / float64(predictedPositive)
	}
	if actualPositive > 0 {
		recall = float64(truePositive) / float64(actualPositive)
	}
	return accuracy, precision, recall
}
