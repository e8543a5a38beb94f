// Package tavily implements the web search capability against the Tavily
// HTTP API. A missing key or a failed search yields an empty result so the
// pipeline continues without web context.
package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/policypal/palgraph/internal/logging"
	"github.com/policypal/palgraph/pkg/ports"
)

const defaultBaseURL = "https://api.tavily.com"

// Client implements ports.WebSearcher.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// New creates a Client. An empty apiKey is allowed; Search then returns
// empty results without calling out.
func New(apiKey, baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}
}

type searchRequest struct {
	APIKey         string `json:"api_key"`
	Query          string `json:"query"`
	SearchDepth    string `json:"search_depth"`
	Topic          string `json:"topic"`
	MaxResults     int    `json:"max_results"`
	IncludeAnswer  bool   `json:"include_answer"`
	IncludeRawHTML bool   `json:"include_raw_content"`
}

type searchResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// Search performs a basic-depth search. All failure modes degrade to an
// empty slice with a warning; the error return stays nil.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]ports.WebResult, error) {
	if c.apiKey == "" {
		c.logger.Warn("web search key not set, skipping", "query", truncate(query, 80))
		return []ports.WebResult{}, nil
	}
	if maxResults <= 0 {
		maxResults = 5
	}

	results, err := c.search(ctx, query, maxResults)
	if err != nil {
		c.logger.Warn("web search failed", "query", truncate(query, 80), "err", err)
		return []ports.WebResult{}, nil
	}

	topScore := 0.0
	if len(results) > 0 {
		topScore = results[0].Score
	}
	c.logger.Info("web search", "query", truncate(query, 60), "results", len(results), "top_score", topScore)
	return results, nil
}

func (c *Client) search(ctx context.Context, query string, maxResults int) ([]ports.WebResult, error) {
	payload, err := json.Marshal(searchRequest{
		APIKey:      c.apiKey,
		Query:       query,
		SearchDepth: "basic",
		Topic:       "general",
		MaxResults:  maxResults,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search request failed: %s", resp.Status)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	results := make([]ports.WebResult, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		results = append(results, ports.WebResult{
			Title:   r.Title,
			URL:     r.URL,
			Content: r.Content,
			Score:   r.Score,
		})
	}
	return results, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
