package duckduckgo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/anirudh9911/AI-Chatbot/internal/model"
	"github.com/anirudh9911/AI-Chatbot/internal/search"
)

const (
	providerName = "duckduckgo"
	// DefaultEndpoint is the JavaScript-free results page.
	DefaultEndpoint = "https://html.duckduckgo.com/html"
)

var whitespace = regexp.MustCompile(`\s+`)

// Provider scrapes the DuckDuckGo HTML results page. It needs no API key.
type Provider struct {
	endpoint string
	client   search.HTTPClient
}

// New returns a provider posting to endpoint, or DefaultEndpoint when empty.
func New(client search.HTTPClient, endpoint string) *Provider {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Provider{endpoint: endpoint, client: client}
}

func (p *Provider) Name() string { return providerName }

// Search returns at most limit organic results; ads are skipped and redirect
// links are unwrapped to the target URL.
func (p *Provider) Search(ctx context.Context, query string, limit int) ([]model.SearchResult, error) {
	form := url.Values{}
	form.Set("q", query)
	form.Set("b", "")
	form.Set("kl", "")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; AI-Chatbot/1.0)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("Failed to close DuckDuckGo response body", "error", err)
		}
	}()

	// DuckDuckGo answers 202 when it rate limits a client.
	if resp.StatusCode == http.StatusAccepted {
		return nil, fmt.Errorf("rate limit exceeded: DuckDuckGo, please wait before retrying")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("DuckDuckGo search error: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML response: %w", err)
	}

	var results []model.SearchResult
	doc.Find(".result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if len(results) >= limit {
			return false
		}

		link := s.Find(".result__title a").First()
		if link.Length() == 0 {
			return true
		}
		title := cleanText(link.Text())
		href, ok := link.Attr("href")
		if !ok || title == "" || strings.Contains(href, "y.js") {
			return true
		}

		res := model.NewSearchResult(title, unwrapRedirect(href))
		if snippet := cleanText(s.Find(".result__snippet").First().Text()); snippet != "" {
			res.Set("description", snippet)
		}
		res.Set("provider", providerName)
		res.Set("position", json.Number(strconv.Itoa(len(results)+1)))
		results = append(results, res)
		return true
	})

	slog.Debug("DuckDuckGo search completed", "query", query, "result_count", len(results))
	return results, nil
}

// unwrapRedirect turns //duckduckgo.com/l/?uddg=<target>&... into <target>.
func unwrapRedirect(href string) string {
	_, target, found := strings.Cut(href, "uddg=")
	if !found {
		return href
	}
	target, _, _ = strings.Cut(target, "&")
	decoded, err := url.QueryUnescape(target)
	if err != nil {
		return href
	}
	return decoded
}

func cleanText(text string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
}
