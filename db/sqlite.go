// Package db persists recommendations and training runs to SQLite for
// auditing.
package db

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"healthaccess/engine"
)

// Store wraps the SQLite handle.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path and applies
// the schema.
func Open(path string) (*Store, error) {
	database, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	query := `
    CREATE TABLE IF NOT EXISTS recommendations (
        id TEXT PRIMARY KEY,
        district TEXT NOT NULL,
        pathway TEXT NOT NULL,
        population INTEGER,
        avg_travel_time REAL,
        target_travel_time REAL,
        facility_count INTEGER,
        min_lat REAL,
        max_lat REAL,
        min_lon REAL,
        max_lon REAL,
        generated_at DATETIME NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );
    CREATE TABLE IF NOT EXISTS recommendation_sites (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        recommendation_id TEXT NOT NULL,
        position INTEGER NOT NULL,
        lat REAL NOT NULL,
        lon REAL NOT NULL,
        facility_type TEXT,
        justification TEXT,
        estimated_impact TEXT,
        probability REAL,
        confidence TEXT,
        UNIQUE(recommendation_id, position)
    );
    CREATE TABLE IF NOT EXISTS training_log (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        model_version TEXT NOT NULL,
        accuracy REAL,
        precision REAL,
        recall REAL,
        training_samples INTEGER,
        test_samples INTEGER,
        trained_at DATETIME NOT NULL
    );
    `
	if _, err := database.Exec(query); err != nil {
		database.Close()
		return nil, err
	}
	return &Store{db: database}, nil
}

// Close releases the underlying handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRecommendation writes the recommendation and its sites in one
// transaction.
func (s *Store) SaveRecommendation(ctx context.Context, summary engine.AccessibilitySummary, rec *engine.Recommendation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
        INSERT INTO recommendations (
            id, district, pathway, population, avg_travel_time, target_travel_time,
            facility_count, min_lat, max_lat, min_lon, max_lon, generated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.District, rec.Pathway, summary.Population, summary.AvgTravelTime,
		summary.TargetTravelTime, summary.FacilityCount,
		summary.Bounds.MinLat, summary.Bounds.MaxLat, summary.Bounds.MinLon, summary.Bounds.MaxLon,
		rec.GeneratedAt)
	if err != nil {
		tx.Rollback()
		return err
	}

	for i, site := range rec.Sites {
		var probability sql.NullFloat64
		if site.Probability != nil {
			probability = sql.NullFloat64{Float64: *site.Probability, Valid: true}
		}
		_, err = tx.ExecContext(ctx, `
            INSERT INTO recommendation_sites (
                recommendation_id, position, lat, lon, facility_type,
                justification, estimated_impact, probability, confidence
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, i, site.Lat, site.Lon, site.FacilityType,
			site.Justification, site.EstimatedImpact, probability, site.Confidence)
		if err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// ListRecommendations returns the most recent recommendations for a
// district, sites included, newest first.
func (s *Store) ListRecommendations(ctx context.Context, district string, limit int) ([]engine.Recommendation, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, district, pathway, generated_at
        FROM recommendations
        WHERE district = ?
        ORDER BY generated_at DESC
        LIMIT ?`, district, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recs := make([]engine.Recommendation, 0)
	for rows.Next() {
		var rec engine.Recommendation
		if err := rows.Scan(&rec.ID, &rec.District, &rec.Pathway, &rec.GeneratedAt); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range recs {
		sites, err := s.loadSites(ctx, recs[i].ID)
		if err != nil {
			return nil, err
		}
		recs[i].Sites = sites
	}
	return recs, nil
}

func (s *Store) loadSites(ctx context.Context, recommendationID string) ([]engine.Site, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT lat, lon, facility_type, justification, estimated_impact, probability, confidence
        FROM recommendation_sites
        WHERE recommendation_id = ?
        ORDER BY position`, recommendationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sites []engine.Site
	for rows.Next() {
		var site engine.Site
		var probability sql.NullFloat64
		var confidence sql.NullString
		if err := rows.Scan(&site.Lat, &site.Lon, &site.FacilityType, &site.Justification,
			&site.EstimatedImpact, &probability, &confidence); err != nil {
			return nil, err
		}
		if probability.Valid {
			p := probability.Float64
			site.Probability = &p
		}
		if confidence.Valid {
			site.Confidence = confidence.String
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

// TrainingRun is one row of the training audit log.
type TrainingRun struct {
	ModelVersion    string    `json:"model_version"`
	Accuracy        float64   `json:"accuracy"`
	Precision       float64   `json:"precision"`
	Recall          float64   `json:"recall"`
	TrainingSamples int       `json:"training_samples"`
	TestSamples     int       `json:"test_samples"`
	TrainedAt       time.Time `json:"trained_at"`
}

// SaveTrainingRun appends a training run to the audit log.
func (s *Store) SaveTrainingRun(ctx context.Context, run TrainingRun) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO training_log (
            model_version, accuracy, precision, recall, training_samples, test_samples, trained_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ModelVersion, run.Accuracy, run.Precision, run.Recall,
		run.TrainingSamples, run.TestSamples, run.TrainedAt)
	return err
}

// ListTrainingRuns returns the training log, newest first.
func (s *Store) ListTrainingRuns(ctx context.Context) ([]TrainingRun, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT model_version, accuracy, precision, recall, training_samples, test_samples, trained_at
        FROM training_log
        ORDER BY trained_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]TrainingRun, 0)
	for rows.Next() {
		var run TrainingRun
		if err := rows.Scan(&run.ModelVersion, &run.Accuracy, &run.Precision, &run.Recall,
			&run.TrainingSamples, &run.TestSamples, &run.TrainedAt); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
