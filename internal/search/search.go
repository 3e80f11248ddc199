// Package search runs web searches for assistant replies and records their
// progress as model.SearchInfo.
package search

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/anirudh9911/AI-Chatbot/internal/model"
)

// Provider is a web search backend.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]model.SearchResult, error)
}

// HTTPClient is the subset of *http.Client the providers need.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// RateLimitedHTTPClient waits for a token before every request so upstream
// search engines are not hammered by a busy chat.
type RateLimitedHTTPClient struct {
	client  *http.Client
	limiter *rate.Limiter
}

// NewRateLimitedHTTPClient allows rps requests per second with a burst of 1.
func NewRateLimitedHTTPClient(rps float64) *RateLimitedHTTPClient {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	return &RateLimitedHTTPClient{
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Do waits on the limiter using the request context, then sends the request.
func (c *RateLimitedHTTPClient) Do(req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return c.client.Do(req)
}
