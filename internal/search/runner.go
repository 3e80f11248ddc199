package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anirudh9911/AI-Chatbot/internal/metrics"
	"github.com/anirudh9911/AI-Chatbot/internal/model"
)

// Runner drives one search through its stages: started, then cached or
// fetching, then done or failed.
type Runner struct {
	provider Provider
	cache    Cache
	limit    int
	ttl      time.Duration
}

// NewRunner returns a Runner. cache may be nil.
func NewRunner(provider Provider, cache Cache, limit int, ttl time.Duration) *Runner {
	if limit <= 0 {
		limit = 5
	}
	return &Runner{provider: provider, cache: cache, limit: limit, ttl: ttl}
}

// Run searches for query and returns the final search info. A limit of zero
// or less uses the runner's default. onProgress, when not nil, receives a copy
// of the search info after every stage.
func (r *Runner) Run(ctx context.Context, query string, limit int, onProgress func(model.SearchInfo)) model.SearchInfo {
	if limit <= 0 {
		limit = r.limit
	}
	start := time.Now()
	name := r.provider.Name()
	info := model.NewSearchInfo(query)
	stage := func(label string) {
		info.AddStage(label)
		if onProgress != nil {
			onProgress(info.Clone())
		}
	}

	stage(model.StageStarted)

	key := CacheKey(name, query, limit)
	results, cached := r.lookup(ctx, key)
	outcome := metrics.SearchOutcomeCached
	if cached {
		stage(model.StageCached)
	} else {
		stage(model.StageFetching)
		var err error
		results, err = r.provider.Search(ctx, query, limit)
		if err != nil {
			slog.Warn("Web search failed", "provider", name, "query", query, "error", err)
			metrics.ObserveSearch(name, metrics.SearchOutcomeError, time.Since(start))
			info.Error = model.String(err.Error())
			stage(model.StageFailed)
			return info
		}
		r.store(ctx, key, results)
		outcome = metrics.SearchOutcomeOK
	}

	for _, res := range results {
		appendResult(&info, res)
	}
	metrics.ObserveSearch(name, outcome, time.Since(start))
	slog.Debug("Web search finished", "provider", name, "query", query, "results", len(info.URLs), "cached", cached)
	stage(model.StageDone)
	return info
}

func (r *Runner) lookup(ctx context.Context, key string) ([]model.SearchResult, bool) {
	if r.cache == nil {
		return nil, false
	}
	results, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("Search cache lookup failed, searching upstream", "key", key, "error", err)
		return nil, false
	}
	return results, ok
}

func (r *Runner) store(ctx context.Context, key string, results []model.SearchResult) {
	if r.cache == nil || len(results) == 0 {
		return
	}
	if err := r.cache.Set(ctx, key, results, r.ttl); err != nil {
		slog.Warn("Failed to cache search results", "key", key, "error", err)
	}
}

// appendResult keeps titled results as records and reduces untitled ones to
// their locator. Results with neither are dropped.
func appendResult(info *model.SearchInfo, res model.SearchResult) {
	switch {
	case res.Title != nil && *res.Title != "":
		info.AddResult(res)
	case res.URL != nil && *res.URL != "":
		info.AddURL(*res.URL)
	}
}

// ContextPrompt renders a finished search as a system prompt for the model.
func ContextPrompt(info model.SearchInfo) string {
	if info.Failed() {
		return fmt.Sprintf("A web search for %q failed (%s). Answer from your own knowledge and mention that live search results were unavailable.", info.Query, *info.Error)
	}
	if len(info.URLs) == 0 {
		return fmt.Sprintf("A web search for %q returned no results. Answer from your own knowledge.", info.Query)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Web search results for %q:\n", info.Query)
	for i, entry := range info.URLs {
		fmt.Fprintf(&b, "\n[%d] ", i+1)
		if entry.IsResult() {
			if entry.Result.Title != nil {
				b.WriteString(*entry.Result.Title)
			}
			if href := entry.Href(); href != "" {
				fmt.Fprintf(&b, "\nURL: %s", href)
			}
			if desc, ok := entry.Result.Extra["description"].(string); ok && desc != "" {
				fmt.Fprintf(&b, "\n%s", desc)
			}
		} else {
			b.WriteString(entry.Text)
		}
		b.WriteString("\n")
	}
	b.WriteString("\nUse these results when they are relevant and cite the URLs you rely on.")
	return b.String()
}
