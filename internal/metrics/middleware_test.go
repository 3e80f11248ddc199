package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/chats/{chatID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/chats/{chatID}", "404"))

	req := httptest.NewRequest(http.MethodGet, "/chats/abc-123", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/chats/{chatID}", "404"))
	assert.Equal(t, before+1, after)
}

func TestStatusWriter_ForwardsFlush(t *testing.T) {
	rr := httptest.NewRecorder()
	w := &statusWriter{ResponseWriter: rr, status: http.StatusOK}

	var flusher http.Flusher = w
	_, _ = w.Write([]byte("data: x\n\n"))
	flusher.Flush()

	assert.True(t, rr.Flushed)
	assert.Equal(t, http.StatusOK, w.status)
}

func TestObserveSearch(t *testing.T) {
	before := testutil.ToFloat64(searchRequestsTotal.WithLabelValues("duckduckgo", SearchOutcomeCached))
	ObserveSearch("duckduckgo", SearchOutcomeCached, 10*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(searchRequestsTotal.WithLabelValues("duckduckgo", SearchOutcomeCached)))
}
