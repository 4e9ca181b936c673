package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"healthaccess/db"
	"healthaccess/engine"
	"healthaccess/geo"
	"healthaccess/llm"
	"healthaccess/ml"
)

type fakeRecommender struct {
	rec *engine.Recommendation
	err error
}

func (f *fakeRecommender) Recommend(_ context.Context, summary engine.AccessibilitySummary) (*engine.Recommendation, error) {
	if f.err != nil {
		return nil, f.err
	}
	rec := *f.rec
	rec.District = summary.District
	return &rec, nil
}

type fakeAudit struct {
	recs []engine.Recommendation
	runs []db.TrainingRun
}

func (f *fakeAudit) ListRecommendations(_ context.Context, district string, _ int) ([]engine.Recommendation, error) {
	var out []engine.Recommendation
	for _, rec := range f.recs {
		if rec.District == district {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeAudit) ListTrainingRuns(_ context.Context) ([]db.TrainingRun, error) {
	return f.runs, nil
}

func validSummaryBody() *bytes.Buffer {
	body, _ := json.Marshal(engine.AccessibilitySummary{
		District:         "Gicumbi",
		Population:       120000,
		AvgTravelTime:    55,
		TargetTravelTime: 30,
		FacilityCount:    2,
		Bounds:           geo.Bounds{MinLat: -2, MaxLat: -1.8, MinLon: 30, MaxLon: 30.2},
	})
	return bytes.NewBuffer(body)
}

func testRecommendation() *engine.Recommendation {
	return &engine.Recommendation{
		ID:          "rec-1",
		Pathway:     engine.PathwayClassifier,
		GeneratedAt: time.Now().UTC(),
		Sites:       []engine.Site{{Lat: -1.9, Lon: 30.1, FacilityType: "Health Center"}},
	}
}

func newTestMux(recommender Recommender, model *ml.Model, audit AuditReader) *http.ServeMux {
	mux := http.NewServeMux()
	NewAPI(recommender, model, audit, nil).Register(mux)
	return mux
}

func TestHandleRecommend(t *testing.T) {
	mux := newTestMux(&fakeRecommender{rec: testRecommendation()}, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/recommend", validSummaryBody())
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var rec engine.Recommendation
	if err := json.NewDecoder(w.Body).Decode(&rec); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if rec.District != "Gicumbi" || len(rec.Sites) != 1 {
		t.Fatalf("unexpected recommendation: %+v", rec)
	}
}

func TestHandleRecommendBadRequests(t *testing.T) {
	mux := newTestMux(&fakeRecommender{rec: testRecommendation()}, nil, nil)

	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{"district":`},
		{"missing district", `{"bounds":{"min_lat":0,"max_lat":1,"min_lon":0,"max_lon":1}}`},
		{"inverted bounds", `{"district":"X","bounds":{"min_lat":1,"max_lat":0,"min_lon":0,"max_lon":1}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/recommend", strings.NewReader(tc.body))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
		})
	}
}

func TestHandleRecommendUpstreamFailure(t *testing.T) {
	mux := newTestMux(&fakeRecommender{err: fmt.Errorf("generator pathway: %w", llm.ErrGeneratorUnavailable)}, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/recommend", validSummaryBody())
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	mux := newTestMux(&fakeRecommender{rec: testRecommendation()}, &ml.Model{Version: "1.0.0"}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var payload map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["status"] != "ok" || payload["model_loaded"] != true {
		t.Fatalf("unexpected health payload: %v", payload)
	}
}

func TestHandleModelInfo(t *testing.T) {
	model := &ml.Model{
		Version:         "1.2.0",
		Accuracy:        0.91,
		FeatureNames:    ml.FeatureNames(),
		TrainingSamples: 800,
		TestSamples:     200,
	}
	mux := newTestMux(&fakeRecommender{rec: testRecommendation()}, model, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/model/info", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var payload map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["version"] != "1.2.0" {
		t.Fatalf("unexpected model info: %v", payload)
	}
	names, ok := payload["feature_names"].([]interface{})
	if !ok || len(names) != ml.FeatureCount {
		t.Fatalf("expected %d feature names, got %v", ml.FeatureCount, payload["feature_names"])
	}
}

func TestHandleModelInfoWithoutModel(t *testing.T) {
	mux := newTestMux(&fakeRecommender{rec: testRecommendation()}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/model/info", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestHandleListRecommendations(t *testing.T) {
	audit := &fakeAudit{recs: []engine.Recommendation{
		{ID: "a", District: "Gicumbi", Pathway: engine.PathwayClassifier},
		{ID: "b", District: "Nyagatare", Pathway: engine.PathwayGenerator},
	}}
	mux := newTestMux(&fakeRecommender{rec: testRecommendation()}, nil, audit)

	req := httptest.NewRequest(http.MethodGet, "/api/recommendations/Gicumbi", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var payload struct {
		District string                  `json:"district"`
		Data     []engine.Recommendation `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.District != "Gicumbi" || len(payload.Data) != 1 || payload.Data[0].ID != "a" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestHandleTrainingRuns(t *testing.T) {
	audit := &fakeAudit{runs: []db.TrainingRun{{ModelVersion: "1.0.0", Accuracy: 0.9}}}
	mux := newTestMux(&fakeRecommender{rec: testRecommendation()}, nil, audit)

	req := httptest.NewRequest(http.MethodGet, "/api/training/runs", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var payload struct {
		Data []db.TrainingRun `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Data) != 1 || payload.Data[0].ModelVersion != "1.0.0" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}
