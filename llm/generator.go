// Package llm is the generator-based fallback pathway: it asks a
// text-generation backend for candidate facility sites when the classifier
// pathway is unavailable or produced nothing usable.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"healthaccess/geo"
)

// ErrGeneratorUnavailable is returned when the backend call fails or times
// out. There is no further fallback behind this pathway.
var ErrGeneratorUnavailable = errors.New("generator backend unavailable")

// ProposalRequest carries the accessibility deficit the generator should
// propose sites for.
type ProposalRequest struct {
	District         string
	Population       int
	AvgTravelTime    float64
	TargetTravelTime float64
	FacilityCount    int
	Bounds           geo.Bounds
	Count            int
}

// ProposedSite is one generator-proposed location.
type ProposedSite struct {
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	FacilityType  string  `json:"facility_type"`
	Justification string  `json:"justification"`
	Impact        string  `json:"estimated_impact"`
}

// Proposal is the parsed, bounds-validated generator output.
type Proposal struct {
	Sites []ProposedSite
}

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	apiKey      string
	model       string
	baseURL     string
	client      *http.Client
	maxTokens   int
	temperature float64
}

// NewClient builds a generator client. baseURL allows pointing at any
// OpenAI-compatible backend.
func NewClient(baseURL, apiKey, model string, timeout time.Duration, maxTokens int) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if model == "" {
		model = "gpt-3.5-turbo"
	}
	return &Client{
		apiKey:      apiKey,
		model:       model,
		baseURL:     baseURL,
		client:      &http.Client{Timeout: timeout},
		maxTokens:   maxTokens,
		temperature: 0.7,
	}
}

// ProposeSites asks the backend for req.Count candidate sites inside the
// bounding box and parses the reply. Entries with coordinates outside the
// box are dropped as per-entry validation failures, never clamped; if no
// valid entry remains the whole response counts as unparsable.
func (c *Client) ProposeSites(ctx context.Context, req ProposalRequest) (*Proposal, error) {
	if c == nil || c.client == nil {
		return nil, fmt.Errorf("%w: client not configured", ErrGeneratorUnavailable)
	}
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: api key is required", ErrGeneratorUnavailable)
	}
	if req.Count <= 0 {
		req.Count = 3
	}

	raw, err := c.complete(ctx, buildPrompt(req))
	if err != nil {
		return nil, err
	}
	return ParseProposal(raw, req.Bounds)
}

func buildPrompt(req ProposalRequest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `You are a healthcare infrastructure planner. Propose exactly %d candidate sites for new healthcare facilities in the district below.

District: %s
Population: %d
Current average travel time to care: %.0f minutes
Target travel time: %.0f minutes
Existing facilities: %d

Every proposed coordinate MUST lie inside this bounding box:
latitude between %.6f and %.6f, longitude between %.6f and %.6f.

Respond with a JSON object of this exact shape:
{
  "sites": [
    {
      "latitude": 0.0,
      "longitude": 0.0,
      "facility_type": "Health Center|Health Post|District Hospital",
      "justification": "one sentence",
      "estimated_impact": "one sentence"
    }
  ]
}
`,
		req.Count, req.District, req.Population, req.AvgTravelTime, req.TargetTravelTime,
		req.FacilityCount,
		req.Bounds.MinLat, req.Bounds.MaxLat, req.Bounds.MinLon, req.Bounds.MaxLon)
	return sb.String()
}

// ParseProposal extracts the first JSON object from raw text and validates
// each proposed site against bounds.
func ParseProposal(raw string, bounds geo.Bounds) (*Proposal, error) {
	object, err := ExtractJSONObject(raw)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Sites []ProposedSite `json:"sites"`
	}
	if err := json.Unmarshal([]byte(object), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparsableResponse, err)
	}

	valid := make([]ProposedSite, 0, len(payload.Sites))
	for _, site := range payload.Sites {
		if !bounds.Contains(site.Latitude, site.Longitude) {
			// Out-of-bounds coordinates indicate a broken upstream
			// response for that entry; dropped, not clamped.
			continue
		}
		valid = append(valid, site)
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("%w: no site inside the requested bounding box", ErrUnparsableResponse)
	}
	return &Proposal{Sites: valid}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are an expert healthcare infrastructure planner."},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneratorUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr chatErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error.Message != "" {
			return "", fmt.Errorf("%w: %s", ErrGeneratorUnavailable, apiErr.Error.Message)
		}
		return "", fmt.Errorf("%w: status %d", ErrGeneratorUnavailable, resp.StatusCode)
	}

	var payload chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneratorUnavailable, err)
	}
	if len(payload.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrGeneratorUnavailable)
	}
	return payload.Choices[0].Message.Content, nil
}
