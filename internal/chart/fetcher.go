package chart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrStatsUnavailable is returned when the stats collaborator cannot be
// reached or answers with a non-success status.
var ErrStatsUnavailable = errors.New("stats unavailable")

// Fetcher retrieves per-book word counts.
type Fetcher interface {
	Fetch(ctx context.Context, version, mode string, words []string) ([]Row, error)
}

// StatsClient reads word counts from the stats collaborator's
// GET <base>/wordcounts endpoint.
type StatsClient struct {
	baseURL string
	http    *http.Client
}

// NewStatsClient creates a client for the stats service rooted at baseURL
// (for example "http://localhost:5000/api/stats").
func NewStatsClient(baseURL string, timeout time.Duration) *StatsClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &StatsClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Fetch returns one row per book. An empty word list returns nothing without
// a network call.
func (c *StatsClient) Fetch(ctx context.Context, version, mode string, words []string) ([]Row, error) {
	if len(words) == 0 {
		return nil, nil
	}

	query := url.Values{}
	query.Set("version", version)
	query.Set("mode", mode)
	query.Set("words", strings.Join(words, ","))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/wordcounts?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build wordcounts request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStatsUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrStatsUnavailable, resp.StatusCode)
	}

	var body struct {
		Data []Row `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode wordcounts: %v", ErrStatsUnavailable, err)
	}
	return body.Data, nil
}
