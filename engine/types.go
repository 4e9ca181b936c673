// Package engine contains the recommendation core: candidate scoring and
// selection over the classifier, the generator fallback, and the
// orchestrator that ties the two pathways together.
package engine

import (
	"fmt"
	"time"

	"healthaccess/geo"
)

// Pathway tags identify which mechanism produced a Recommendation.
const (
	PathwayClassifier                   = "classifier"
	PathwayGenerator                    = "generator"
	PathwayGeneratorAfterClassifierFail = "generator-after-classifier-failure"
)

// AccessibilitySummary describes a district's accessibility deficit. It is
// produced upstream and consumed read-only; the bounding box is the domain
// over which candidates are generated.
type AccessibilitySummary struct {
	District         string     `json:"district"`
	Population       int        `json:"population"`
	AvgTravelTime    float64    `json:"avg_travel_time_min"`
	TargetTravelTime float64    `json:"target_travel_time_min"`
	FacilityCount    int        `json:"facility_count"`
	Bounds           geo.Bounds `json:"bounds"`
}

// Validate checks the fields this core depends on.
func (s AccessibilitySummary) Validate() error {
	if s.District == "" {
		return fmt.Errorf("district is required")
	}
	return s.Bounds.Validate()
}

// ScoredCandidate is a candidate after classification.
type ScoredCandidate struct {
	Candidate   geo.Candidate `json:"candidate"`
	Label       int           `json:"label"`
	Probability float64       `json:"probability"`
	Confidence  string        `json:"confidence"`
}

// Site is one proposed facility location in the final output. Probability
// and Confidence are set only on the classifier pathway.
type Site struct {
	Lat             float64  `json:"lat"`
	Lon             float64  `json:"lon"`
	FacilityType    string   `json:"facility_type"`
	Justification   string   `json:"justification"`
	EstimatedImpact string   `json:"estimated_impact"`
	Probability     *float64 `json:"probability,omitempty"`
	Confidence      string   `json:"confidence,omitempty"`
}

// Recommendation is the uniform output of either pathway. It is never empty
// on success; an empty result is a failure, not a valid Recommendation.
type Recommendation struct {
	ID          string    `json:"id"`
	District    string    `json:"district"`
	Pathway     string    `json:"pathway"`
	GeneratedAt time.Time `json:"generated_at"`
	Sites       []Site    `json:"sites"`
}
