package duckduckgo_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anirudh9911/AI-Chatbot/internal/search/duckduckgo"
)

const resultsPage = `<html><body>
<div class="result results_links web-result">
  <h2 class="result__title"><a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2F&amp;rut=abc">The Go
     Programming Language</a></h2>
  <a class="result__snippet" href="#">Go is an open source   programming language.</a>
</div>
<div class="result result--ad">
  <h2 class="result__title"><a href="https://duckduckgo.com/y.js?ad_provider=x">Sponsored</a></h2>
</div>
<div class="result">
  <h2 class="result__title"><a href="https://pkg.go.dev/">Go Packages</a></h2>
</div>
<div class="result">
  <h2 class="result__title"><a href="https://go.dev/tour">A Tour of Go</a></h2>
</div>
</body></html>`

func TestProvider_Search(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "golang", r.PostForm.Get("q"))
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(resultsPage))
		}))
		defer server.Close()

		p := duckduckgo.New(server.Client(), server.URL)
		assert.Equal(t, "duckduckgo", p.Name())

		results, err := p.Search(context.Background(), "golang", 2)
		require.NoError(t, err)
		require.Len(t, results, 2)

		assert.Equal(t, "The Go Programming Language", *results[0].Title)
		assert.Equal(t, "https://go.dev/", *results[0].URL)
		assert.Equal(t, "Go is an open source programming language.", results[0].Extra["description"])
		assert.Equal(t, json.Number("1"), results[0].Extra["position"])

		assert.Equal(t, "Go Packages", *results[1].Title)
		assert.Equal(t, "https://pkg.go.dev/", *results[1].URL)
		_, hasDescription := results[1].Extra["description"]
		assert.False(t, hasDescription)
	})

	t.Run("Failure - rate limited", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		}))
		defer server.Close()

		_, err := duckduckgo.New(server.Client(), server.URL).Search(context.Background(), "golang", 5)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rate limit")
	})

	t.Run("Failure - server error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		_, err := duckduckgo.New(server.Client(), server.URL).Search(context.Background(), "golang", 5)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 500")
	})
}
