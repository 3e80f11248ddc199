package searxng

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/anirudh9911/AI-Chatbot/internal/model"
	"github.com/anirudh9911/AI-Chatbot/internal/search"
)

const providerName = "searxng"

// Provider queries a SearXNG instance through its JSON API.
type Provider struct {
	baseURL  string
	username string
	password string
	client   search.HTTPClient
}

type searxngResponse struct {
	Results []searxngResult `json:"results"`
}

type searxngResult struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	URL     string `json:"url"`
	Engine  string `json:"engine"`
}

// New validates baseURL and returns a provider. Basic auth is sent when both
// username and password are set.
func New(baseURL, username, password string, client search.HTTPClient) (*Provider, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("invalid SearXNG base URL %q", baseURL)
	}
	return &Provider{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		username: username,
		password: password,
		client:   client,
	}, nil
}

func (p *Provider) Name() string { return providerName }

// Search runs a general-category search and returns at most limit results.
func (p *Provider) Search(ctx context.Context, query string, limit int) ([]model.SearchResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("categories", "general")
	params.Set("pageno", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if p.username != "" && p.password != "" {
		req.SetBasicAuth(p.username, p.password)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "AI-Chatbot/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("Failed to close SearXNG response body", "error", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("SearXNG API error: status %d", resp.StatusCode)
	}

	var parsed searxngResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	results := make([]model.SearchResult, 0, min(limit, len(parsed.Results)))
	for _, r := range parsed.Results {
		if len(results) >= limit {
			break
		}
		if r.URL == "" {
			continue
		}
		res := model.SearchResult{URL: model.String(r.URL)}
		if title := strings.TrimSpace(r.Title); title != "" {
			res.Title = model.String(title)
		}
		if content := strings.TrimSpace(r.Content); content != "" {
			res.Set("description", content)
		}
		if r.Engine != "" {
			res.Set("engine", r.Engine)
		}
		res.Set("provider", providerName)
		res.Set("position", json.Number(strconv.Itoa(len(results)+1)))
		results = append(results, res)
	}

	slog.Debug("SearXNG search completed", "query", query, "result_count", len(results))
	return results, nil
}
