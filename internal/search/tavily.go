package search

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ItsAditya-xyz/gladiusAgent/internal/core/domain"
	"github.com/ItsAditya-xyz/gladiusAgent/internal/core/ports"
)

const defaultEndpoint = "https://api.tavily.com/search"

// TavilyClient wraps the Tavily search API. Failures come back inside the
// response payload rather than as errors, so the model always sees a result.
type TavilyClient struct {
	APIKey     string
	Endpoint   string
	HTTPClient *http.Client
	log        *zap.Logger
}

func NewTavilyClient(apiKey string, log *zap.Logger) *TavilyClient {
	return &TavilyClient{
		APIKey:     apiKey,
		Endpoint:   defaultEndpoint,
		HTTPClient: &http.Client{Timeout: 20 * time.Second},
		log:        log,
	}
}

var _ ports.Searcher = (*TavilyClient)(nil)

func (c *TavilyClient) Search(ctx context.Context, q domain.SearchQuery) domain.SearchResponse {
	if c.APIKey == "" {
		return domain.SearchResponse{Success: false, Error: "missing TAVILY_API_KEY env var"}
	}
	if q.MaxResults < 1 {
		q.MaxResults = 6
	}
	if q.Depth == "" {
		q.Depth = "basic"
	}

	payload := map[string]any{
		"api_key":        c.APIKey,
		"query":          q.Query,
		"max_results":    q.MaxResults,
		"search_depth":   q.Depth,
		"include_answer": q.IncludeAnswer,
	}
	if len(q.IncludeDomains) > 0 {
		payload["include_domains"] = q.IncludeDomains
	}
	if len(q.ExcludeDomains) > 0 {
		payload["exclude_domains"] = q.ExcludeDomains
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return domain.SearchResponse{Success: false, Error: err.Error()}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.SearchResponse{Success: false, Error: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return domain.SearchResponse{Success: false, Error: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Warn("tavily search failed", zap.Int("status", resp.StatusCode), zap.String("query", q.Query))
		return domain.SearchResponse{Success: false, Error: "HTTP " + resp.Status}
	}

	var data struct {
		Query   string `json:"query"`
		Answer  string `json:"answer"`
		Results []struct {
			Title   string  `json:"title"`
			URL     string  `json:"url"`
			Content string  `json:"content"`
			Score   float64 `json:"score"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return domain.SearchResponse{Success: false, Error: err.Error()}
	}

	out := domain.SearchResponse{Success: true, Query: data.Query, Answer: data.Answer}
	if out.Query == "" {
		out.Query = q.Query
	}
	for i, it := range data.Results {
		if i >= q.MaxResults {
			break
		}
		snippet := it.Content
		if len(snippet) > 500 {
			snippet = snippet[:500]
		}
		out.Results = append(out.Results, domain.SearchResult{
			Title:   it.Title,
			URL:     it.URL,
			Snippet: snippet,
			Score:   it.Score,
		})
	}
	return out
}
