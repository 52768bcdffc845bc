// Package metrics exposes Prometheus collectors for the ingestion service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	crawlPagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsloom_crawl_pages_total",
			Help: "Total listing pages parsed, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	crawlCommentFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsloom_crawl_comment_fetches_total",
			Help: "Total per-article comment thread fetches, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	ingestRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsloom_ingest_rows_total",
			Help: "Rows handled by ingestion, labeled by entity and disposition.",
		},
		[]string{"entity", "disposition"},
	)

	ingestBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsloom_ingest_batches_total",
			Help: "Ingestion batches processed, labeled by status.",
		},
		[]string{"status"},
	)

	sideEffectFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsloom_side_effect_failures_total",
			Help: "Failed post-insert side effects, labeled by kind (cache, index).",
		},
		[]string{"kind"},
	)

	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsloom_cache_lookups_total",
			Help: "Cache-aside lookups, labeled by result (hit, miss).",
		},
		[]string{"result"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsloom_http_requests_total",
			Help: "Total HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "newsloom_http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)
)

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCrawlPage counts one listing-page parse pass.
func ObserveCrawlPage(outcome string) {
	crawlPagesTotal.WithLabelValues(outcome).Inc()
}

// ObserveCommentFetch counts one comment thread sub-fetch.
func ObserveCommentFetch(outcome string) {
	crawlCommentFetchesTotal.WithLabelValues(outcome).Inc()
}

// ObserveIngestRows adds to the per-entity row counter.
// Disposition is "created" or "existing".
func ObserveIngestRows(entity, disposition string, n int) {
	if n > 0 {
		ingestRowsTotal.WithLabelValues(entity, disposition).Add(float64(n))
	}
}

// ObserveIngestBatch counts a finished ingestion batch.
func ObserveIngestBatch(status string) {
	ingestBatchesTotal.WithLabelValues(status).Inc()
}

// ObserveSideEffectFailure counts a failed cache or index side effect.
func ObserveSideEffectFailure(kind string) {
	sideEffectFailuresTotal.WithLabelValues(kind).Inc()
}

// ObserveCacheLookup counts a cache-aside lookup result.
func ObserveCacheLookup(result string) {
	cacheLookupsTotal.WithLabelValues(result).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
