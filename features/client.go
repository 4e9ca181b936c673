// Package features is the boundary to the remote-sensing feature extraction
// service: a coordinate and a date window in, a fixed-length feature vector
// out.
package features

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"healthaccess/ml"
)

// Provider converts a coordinate plus imagery date window into the 12-value
// feature vector the classifier consumes. Implementations must return the
// full vector or fail explicitly, never a partial one.
type Provider interface {
	ExtractFeatures(ctx context.Context, lat, lon float64, dateStart, dateEnd string) ([]float64, error)
}

// Client calls the extraction service over HTTP. Imagery fetches are slow,
// so the default timeout is generous.
type Client struct {
	endpoint string
	client   *http.Client
}

// NewClient builds a Client for the given endpoint.
func NewClient(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type extractRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	DateStart string  `json:"date_start"`
	DateEnd   string  `json:"date_end"`
}

type extractResponse struct {
	Features []float64 `json:"features"`
	Error    string    `json:"error,omitempty"`
}

// ExtractFeatures requests the feature vector for one coordinate.
func (c *Client) ExtractFeatures(ctx context.Context, lat, lon float64, dateStart, dateEnd string) ([]float64, error) {
	body, err := json.Marshal(extractRequest{
		Latitude:  lat,
		Longitude: lon,
		DateStart: dateStart,
		DateEnd:   dateEnd,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling extraction request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating extraction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feature extraction request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr extractResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("feature extraction service: %s", apiErr.Error)
		}
		return nil, fmt.Errorf("feature extraction service returned status %d", resp.StatusCode)
	}

	var payload extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding extraction response: %w", err)
	}
	if err := ml.ValidateVector(payload.Features); err != nil {
		return nil, fmt.Errorf("extraction service returned invalid vector: %w", err)
	}
	return payload.Features, nil
}
