package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"healthaccess/geo"
	"healthaccess/llm"
	"healthaccess/ml"
)

// FeatureProvider supplies the 12-feature satellite vector for a coordinate.
type FeatureProvider interface {
	ExtractFeatures(ctx context.Context, lat, lon float64, dateStart, dateEnd string) ([]float64, error)
}

// Classifier predicts built-up suitability for a raw feature vector.
type Classifier interface {
	Predict(vector []float64) (label int, probability float64, err error)
}

// Generator proposes sites when the classifier pathway cannot.
type Generator interface {
	ProposeSites(ctx context.Context, req llm.ProposalRequest) (*llm.Proposal, error)
}

// Store records finished recommendations for audit. Persistence failures are
// logged, never surfaced to the caller.
type Store interface {
	SaveRecommendation(ctx context.Context, summary AccessibilitySummary, rec *Recommendation) error
}

// Config controls scoring, selection, and the pathway choice.
type Config struct {
	ClassifierEnabled   bool    `yaml:"classifier_enabled"`
	AcceptanceThreshold float64 `yaml:"acceptance_threshold"`
	TopN                int     `yaml:"top_n"`
	CandidateCount      int     `yaml:"candidate_count"`
	MaxConcurrent       int     `yaml:"max_concurrent"`
	DateStart           string  `yaml:"date_start"`
	DateEnd             string  `yaml:"date_end"`
}

func (c Config) withDefaults() Config {
	if c.AcceptanceThreshold <= 0 {
		c.AcceptanceThreshold = 0.6
	}
	if c.TopN <= 0 {
		c.TopN = 3
	}
	if c.CandidateCount <= 0 {
		c.CandidateCount = 20
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 8
	}
	return c
}

// Engine runs the two recommendation pathways and persists the outcome.
type Engine struct {
	cfg        Config
	provider   FeatureProvider
	classifier Classifier
	generator  Generator
	store      Store
	logger     *zap.Logger
}

// New assembles an Engine. classifier and store may be nil: a nil classifier
// behaves like an unloaded model, a nil store disables auditing.
func New(cfg Config, provider FeatureProvider, classifier Classifier, generator Generator, store Store, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:        cfg.withDefaults(),
		provider:   provider,
		classifier: classifier,
		generator:  generator,
		store:      store,
		logger:     logger,
	}
}

// Recommend produces facility site recommendations for one district. The
// classifier pathway runs first when enabled; any failure there falls back
// to the generator. Only when both pathways fail does the call error, and
// the error reports both causes.
func (e *Engine) Recommend(ctx context.Context, summary AccessibilitySummary) (*Recommendation, error) {
	if err := summary.Validate(); err != nil {
		return nil, err
	}

	var classifierErr error
	if e.cfg.ClassifierEnabled {
		rec, err := e.classifierPathway(ctx, summary)
		if err == nil {
			e.persist(ctx, summary, rec)
			return rec, nil
		}
		classifierErr = err
		if errors.Is(err, ErrNoSuitableCandidates) {
			e.logger.Info("classifier found no suitable candidates, falling back to generator",
				zap.String("district", summary.District))
		} else {
			e.logger.Warn("classifier pathway failed, falling back to generator",
				zap.String("district", summary.District),
				zap.Error(err))
		}
	}

	rec, err := e.generatorPathway(ctx, summary)
	if err != nil {
		if classifierErr != nil {
			return nil, fmt.Errorf("both pathways failed: classifier: %v; generator: %w", classifierErr, err)
		}
		return nil, fmt.Errorf("generator pathway: %w", err)
	}
	if classifierErr != nil {
		rec.Pathway = PathwayGeneratorAfterClassifierFail
	}
	e.persist(ctx, summary, rec)
	return rec, nil
}

func (e *Engine) classifierPathway(ctx context.Context, summary AccessibilitySummary) (*Recommendation, error) {
	if e.provider == nil {
		return nil, fmt.Errorf("no feature provider configured")
	}
	if e.classifier == nil {
		return nil, ml.ErrModelNotLoaded
	}

	candidates, err := geo.GenerateCandidates(summary.Bounds, e.cfg.CandidateCount)
	if err != nil {
		return nil, err
	}
	scored, err := e.scoreCandidates(ctx, candidates)
	if err != nil {
		return nil, err
	}

	facilityType := deriveFacilityType(summary)
	impact := estimateImpact(summary, len(scored))
	sites := make([]Site, len(scored))
	for i, sc := range scored {
		p := sc.Probability
		sites[i] = Site{
			Lat:          sc.Candidate.Lat,
			Lon:          sc.Candidate.Lon,
			FacilityType: facilityType,
			Justification: fmt.Sprintf("Satellite imagery shows a built-up, populated area at this location (suitability %.2f, %s confidence)",
				sc.Probability, sc.Confidence),
			EstimatedImpact: impact,
			Probability:     &p,
			Confidence:      sc.Confidence,
		}
	}
	return e.newRecommendation(summary, PathwayClassifier, sites), nil
}

func (e *Engine) generatorPathway(ctx context.Context, summary AccessibilitySummary) (*Recommendation, error) {
	if e.generator == nil {
		return nil, fmt.Errorf("%w: no generator configured", llm.ErrGeneratorUnavailable)
	}

	proposal, err := e.generator.ProposeSites(ctx, llm.ProposalRequest{
		District:         summary.District,
		Population:       summary.Population,
		AvgTravelTime:    summary.AvgTravelTime,
		TargetTravelTime: summary.TargetTravelTime,
		FacilityCount:    summary.FacilityCount,
		Bounds:           summary.Bounds,
		Count:            e.cfg.TopN,
	})
	if err != nil {
		return nil, err
	}

	sites := make([]Site, len(proposal.Sites))
	for i, ps := range proposal.Sites {
		sites[i] = Site{
			Lat:             ps.Latitude,
			Lon:             ps.Longitude,
			FacilityType:    ps.FacilityType,
			Justification:   ps.Justification,
			EstimatedImpact: ps.Impact,
		}
	}
	return e.newRecommendation(summary, PathwayGenerator, sites), nil
}

func (e *Engine) newRecommendation(summary AccessibilitySummary, pathway string, sites []Site) *Recommendation {
	return &Recommendation{
		ID:          uuid.NewString(),
		District:    summary.District,
		Pathway:     pathway,
		GeneratedAt: time.Now().UTC(),
		Sites:       sites,
	}
}

// persist writes the recommendation to the audit store. Failures must not
// cost the caller a recommendation that was already produced.
func (e *Engine) persist(ctx context.Context, summary AccessibilitySummary, rec *Recommendation) {
	if e.store == nil {
		return
	}
	if err := e.store.SaveRecommendation(ctx, summary, rec); err != nil {
		e.logger.Error("failed to persist recommendation",
			zap.String("id", rec.ID),
			zap.String("district", rec.District),
			zap.Error(err))
	}
}

// deriveFacilityType sizes the proposed facility by how far the district is
// from its travel-time target. Districts with no facility at all always get
// the largest tier.
func deriveFacilityType(summary AccessibilitySummary) string {
	gap := summary.AvgTravelTime - summary.TargetTravelTime
	switch {
	case summary.FacilityCount == 0 || gap >= 30:
		return "District Hospital"
	case gap >= 15:
		return "Health Center"
	default:
		return "Health Post"
	}
}

func estimateImpact(summary AccessibilitySummary, siteCount int) string {
	gap := summary.AvgTravelTime - summary.TargetTravelTime
	if gap < 0 {
		gap = 0
	}
	served := summary.Population
	if siteCount > 1 {
		served = summary.Population / siteCount
	}
	return fmt.Sprintf("Serves roughly %d residents and targets a %.0f minute travel-time reduction", served, gap)
}
