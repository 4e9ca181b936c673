package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"healthaccess/db"
	"healthaccess/engine"
	"healthaccess/geo"
	"healthaccess/llm"
	"healthaccess/ml"
)

// Recommender produces recommendations for a district summary.
type Recommender interface {
	Recommend(ctx context.Context, summary engine.AccessibilitySummary) (*engine.Recommendation, error)
}

// AuditReader reads back persisted recommendations and training runs.
type AuditReader interface {
	ListRecommendations(ctx context.Context, district string, limit int) ([]engine.Recommendation, error)
	ListTrainingRuns(ctx context.Context) ([]db.TrainingRun, error)
}

// API bundles the handler dependencies.
type API struct {
	recommender Recommender
	model       *ml.Model
	audit       AuditReader
	logger      *zap.Logger
}

// NewAPI builds the handler set. model and audit may be nil.
func NewAPI(recommender Recommender, model *ml.Model, audit AuditReader, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{recommender: recommender, model: model, audit: audit, logger: logger}
}

// Register attaches all routes to mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/recommend", a.handleRecommend)
	mux.HandleFunc("GET /api/health", a.handleHealth)
	mux.HandleFunc("GET /api/model/info", a.handleModelInfo)
	mux.HandleFunc("GET /api/recommendations/{district}", a.handleListRecommendations)
	mux.HandleFunc("GET /api/training/runs", a.handleTrainingRuns)
}

func (a *API) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var summary engine.AccessibilitySummary
	if err := json.NewDecoder(r.Body).Decode(&summary); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := summary.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := a.recommender.Recommend(r.Context(), summary)
	if err != nil {
		switch {
		case errors.Is(err, geo.ErrInvalidBounds), errors.Is(err, geo.ErrInvalidCount):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, llm.ErrGeneratorUnavailable):
			writeError(w, http.StatusBadGateway, err.Error())
		case errors.Is(err, llm.ErrUnparsableResponse):
			writeError(w, http.StatusBadGateway, err.Error())
		default:
			a.logger.Error("recommendation failed",
				zap.String("district", summary.District),
				zap.Error(err))
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"model_loaded": a.model != nil,
	})
}

func (a *API) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	if a.model == nil {
		writeError(w, http.StatusNotFound, "no model loaded")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"version":          a.model.Version,
		"accuracy":         a.model.Accuracy,
		"trained_at":       a.model.TrainedAt,
		"feature_names":    a.model.FeatureNames,
		"training_samples": a.model.TrainingSamples,
		"test_samples":     a.model.TestSamples,
	})
}

func (a *API) handleListRecommendations(w http.ResponseWriter, r *http.Request) {
	if a.audit == nil {
		writeError(w, http.StatusNotFound, "audit store not configured")
		return
	}
	district := r.PathValue("district")
	if district == "" {
		writeError(w, http.StatusBadRequest, "district is required")
		return
	}

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			limit = l
		}
	}

	recs, err := a.audit.ListRecommendations(r.Context(), district, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"district": district,
		"data":     recs,
	})
}

func (a *API) handleTrainingRuns(w http.ResponseWriter, r *http.Request) {
	if a.audit == nil {
		writeError(w, http.StatusNotFound, "audit store not configured")
		return
	}
	runs, err := a.audit.ListTrainingRuns(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": runs})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
