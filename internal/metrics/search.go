package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Search outcomes.
const (
	SearchOutcomeOK     = "ok"
	SearchOutcomeCached = "cached"
	SearchOutcomeError  = "error"
)

var (
	searchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Total number of web searches by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	searchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Web search duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider"},
	)
)

// ObserveSearch records one finished search.
func ObserveSearch(provider, outcome string, d time.Duration) {
	searchRequestsTotal.WithLabelValues(provider, outcome).Inc()
	searchDuration.WithLabelValues(provider).Observe(d.Seconds())
}
