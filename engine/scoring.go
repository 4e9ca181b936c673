package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"healthaccess/geo"
	"healthaccess/ml"
)

// ErrNoSuitableCandidates is returned by the classifier pathway when no
// candidate survives filtering. It signals the orchestrator to fall back to
// the generator, not an operational fault.
var ErrNoSuitableCandidates = errors.New("no suitable candidates above acceptance threshold")

// scoreCandidates fans feature extraction and classification out over the
// candidate grid with bounded concurrency. Per-candidate extraction and
// dimension failures skip that candidate; a classifier that reports its
// model missing aborts the whole pathway.
func (e *Engine) scoreCandidates(ctx context.Context, candidates []geo.Candidate) ([]ScoredCandidate, error) {
	scored := make([]*ScoredCandidate, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxConcurrent)
	for i, cand := range candidates {
		i, cand := i, cand
		g.Go(func() error {
			vector, err := e.provider.ExtractFeatures(gctx, cand.Lat, cand.Lon, e.cfg.DateStart, e.cfg.DateEnd)
			if err != nil {
				e.logger.Debug("feature extraction failed, skipping candidate",
					zap.Float64("lat", cand.Lat),
					zap.Float64("lon", cand.Lon),
					zap.Error(err))
				return nil
			}

			label, prob, err := e.classifier.Predict(vector)
			if err != nil {
				if errors.Is(err, ml.ErrModelNotLoaded) {
					return err
				}
				// Dimension or vector problems are upstream data faults
				// scoped to this candidate, not a classifier outage.
				e.logger.Warn("classification failed, skipping candidate",
					zap.Float64("lat", cand.Lat),
					zap.Float64("lon", cand.Lon),
					zap.Error(err))
				return nil
			}

			scored[i] = &ScoredCandidate{
				Candidate:   cand,
				Label:       label,
				Probability: prob,
				Confidence:  ml.ConfidenceBucket(prob),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Keep positives above the acceptance threshold, in generation order so
	// the stable sort breaks probability ties deterministically.
	survivors := make([]ScoredCandidate, 0, len(candidates))
	for _, sc := range scored {
		if sc == nil {
			continue
		}
		if sc.Label == 1 && sc.Probability > e.cfg.AcceptanceThreshold {
			survivors = append(survivors, *sc)
		}
	}
	if len(survivors) == 0 {
		return nil, fmt.Errorf("%w: %d candidates evaluated", ErrNoSuitableCandidates, len(candidates))
	}

	sort.SliceStable(survivors, func(i, j int) bool {
		return survivors[i].Probability > survivors[j].Probability
	})
	if len(survivors) > e.cfg.TopN {
		survivors = survivors[:e.cfg.TopN]
	}
	return survivors, nil
}
