// Command train_model fits the suitability classifier on a labeled feature
// CSV and writes the model artifact the service loads at startup.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"healthaccess/db"
	"healthaccess/ml"
)

func main() {
	dataPath := flag.String("data", "", "labeled feature CSV (12 feature columns + 0/1 label)")
	modelPath := flag.String("model_path", "./models/suitability.json", "model artifact output path")
	dbPath := flag.String("db", "", "optional SQLite database for the training log")
	version := flag.String("version", "1.0.0", "model version to embed in the artifact")
	trees := flag.Int("trees", 200, "number of trees in the forest")
	maxDepth := flag.Int("max_depth", 15, "max tree depth")
	seed := flag.Int64("seed", 42, "bootstrap sampling seed")
	testRatio := flag.Float64("test_ratio", 0.2, "holdout fraction")
	flag.Parse()

	if *dataPath == "" {
		log.Fatal("data is required")
	}

	features, labels, err := ml.LoadLabeledCSV(*dataPath)
	if err != nil {
		log.Fatalf("failed to load training data: %v", err)
	}
	log.Printf("loaded %d samples from %s", len(features), *dataPath)

	trainX, trainY, testX, testY := ml.SplitDataset(features, labels, *testRatio)
	if len(trainX) == 0 || len(testX) == 0 {
		log.Fatalf("dataset too small to split: %d samples", len(features))
	}

	// The scaler is fitted on the training split only so holdout metrics
	// are not contaminated.
	scaler := &ml.Scaler{}
	if err := scaler.Fit(trainX); err != nil {
		log.Fatalf("failed to fit scaler: %v", err)
	}
	scaledTrain, err := scaler.TransformAll(trainX)
	if err != nil {
		log.Fatalf("failed to scale training data: %v", err)
	}

	cfg := ml.ForestConfig{Trees: *trees, MaxDepth: *maxDepth, Seed: *seed}
	forest, err := ml.TrainForest(scaledTrain, trainY, cfg)
	if err != nil {
		log.Fatalf("failed to train forest: %v", err)
	}

	model := &ml.Model{
		Version:         *version,
		TrainedAt:       time.Now().UTC(),
		FeatureNames:    ml.FeatureNames(),
		TrainingSamples: len(trainX),
		TestSamples:     len(testX),
		Scaler:          scaler,
		Forest:          forest,
	}

	accuracy, precision, recall := ml.Evaluate(model, testX, testY)
	model.Accuracy = accuracy
	log.Printf("accuracy=%.3f precision=%.3f recall=%.3f", accuracy, precision, recall)

	if err := model.Save(*modelPath); err != nil {
		log.Fatalf("failed to save model: %v", err)
	}
	fmt.Printf("model %s saved to %s\n", *version, *modelPath)

	if *dbPath != "" {
		if err := logTrainingRun(*dbPath, model, precision, recall); err != nil {
			log.Printf("failed to record training run: %v", err)
		}
	}
}

func logTrainingRun(path string, model *ml.Model, precision, recall float64) error {
	store, err := db.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	return store.SaveTrainingRun(context.Background(), db.TrainingRun{
		ModelVersion:    model.Version,
		Accuracy:        model.Accuracy,
		Precision:       precision,
		Recall:          recall,
		TrainingSamples: model.TrainingSamples,
		TestSamples:     model.TestSamples,
		TrainedAt:       model.TrainedAt,
	})
}
