// Package metrics exposes Prometheus collectors for the cache layer service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	sitemapFetchesTotal        *prometheus.CounterVec
	sitemapEntriesResolved     prometheus.Histogram
	importOutcomesTotal        *prometheus.CounterVec
	pageEventsPublishedTotal   *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 30},
			},
			[]string{"method", "route"},
		)

		sitemapFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitemap_fetches_total",
				Help: "Total number of sitemap documents fetched, labeled by result.",
			},
			[]string{"result"},
		)

		sitemapEntriesResolved = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sitemap_entries_resolved",
				Help:    "Histogram of URL counts produced per sitemap resolution.",
				Buckets: []float64{10, 50, 100, 500, 1000, 5000, 10000},
			},
		)

		importOutcomesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "import_outcomes_total",
				Help: "Total number of per-URL import outcomes, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		pageEventsPublishedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "page_events_published_total",
				Help: "Total number of page events published, labeled by status.",
			},
			[]string{"status"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveSitemapFetch records the result of one sitemap document fetch.
// Result is "ok", "http_error", "timeout", "connection" or "invalid".
func ObserveSitemapFetch(result string) {
	sitemapFetchesTotal.WithLabelValues(result).Inc()
}

// ObserveResolution records how many URLs one resolution produced.
func ObserveResolution(entries int) {
	sitemapEntriesResolved.Observe(float64(entries))
}

// ObserveImportOutcome adds n to the per-URL outcome counter.
func ObserveImportOutcome(outcome string, n int) {
	if n > 0 {
		importOutcomesTotal.WithLabelValues(outcome).Add(float64(n))
	}
}

// ObservePageEvent increments the publish counter with "ok" or "error".
func ObservePageEvent(status string) {
	pageEventsPublishedTotal.WithLabelValues(status).Inc()
}
