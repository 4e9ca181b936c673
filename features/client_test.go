package features

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"healthaccess/ml"
)

func testVector(fill float64) []float64 {
	vector := make([]float64, ml.FeatureCount)
	for i := range vector {
		vector[i] = fill
	}
	return vector
}

func TestClientExtractFeatures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req extractRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("invalid request body: %v", err)
		}
		if req.Latitude != -1.9 || req.DateStart != "2025-01-01" {
			t.Fatalf("unexpected request: %+v", req)
		}
		json.NewEncoder(w).Encode(extractResponse{Features: testVector(0.4)})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	vector, err := client.ExtractFeatures(context.Background(), -1.9, 30.1, "2025-01-01", "2025-09-30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vector) != ml.FeatureCount {
		t.Fatalf("expected %d features, got %d", ml.FeatureCount, len(vector))
	}
}

func TestClientRejectsPartialVector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(extractResponse{Features: []float64{1, 2, 3}})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	if _, err := client.ExtractFeatures(context.Background(), 0, 0, "2025-01-01", "2025-02-01"); err == nil {
		t.Fatal("expected error for partial vector")
	}
}

func TestClientUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(extractResponse{Error: "no imagery for requested window"})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	if _, err := client.ExtractFeatures(context.Background(), 0, 0, "2025-01-01", "2025-02-01"); err == nil {
		t.Fatal("expected error for upstream failure")
	}
}

type countingProvider struct {
	calls  atomic.Int64
	vector []float64
}

func (p *countingProvider) ExtractFeatures(ctx context.Context, lat, lon float64, dateStart, dateEnd string) ([]float64, error) {
	p.calls.Add(1)
	return p.vector, nil
}

func TestCachedProviderHitsCache(t *testing.T) {
	inner := &countingProvider{vector: testVector(0.2)}
	cached, err := NewCachedProvider(inner, 16)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := cached.ExtractFeatures(ctx, -1.9, 30.1, "2025-01-01", "2025-09-30"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if got := inner.calls.Load(); got != 1 {
		t.Fatalf("expected 1 upstream call, got %d", got)
	}

	// Different coordinate misses.
	if _, err := cached.ExtractFeatures(ctx, -1.8, 30.1, "2025-01-01", "2025-09-30"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := inner.calls.Load(); got != 2 {
		t.Fatalf("expected 2 upstream calls, got %d", got)
	}
}
