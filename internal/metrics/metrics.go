// Package metrics exposes Prometheus collectors for the crawler.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Posting outcome labels.
const (
	StatusAccepted  = "accepted"
	StatusRejected  = "rejected"
	StatusDiscarded = "discarded"
	StatusFailed    = "failed"
)

var (
	postingsTotal              *prometheus.CounterVec
	discoveredLinksTotal       *prometheus.CounterVec
	activeWorkers              prometheus.Gauge
	haltsTotal                 *prometheus.CounterVec
	candidatesCancelledTotal   prometheus.Counter
	fetchDurationSeconds       *prometheus.HistogramVec
	sinkErrorsTotal            prometheus.Counter
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		postingsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobcrawler_postings_total",
				Help: "Total number of processed postings, labeled by site and outcome.",
			},
			[]string{"site", "status"},
		)

		discoveredLinksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobcrawler_discovered_links_total",
				Help: "Total number of candidate job links found by discovery, labeled by site.",
			},
			[]string{"site"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "jobcrawler_active_workers",
				Help: "Number of workers currently processing a candidate.",
			},
		)

		haltsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobcrawler_halts_total",
				Help: "Total number of runs halted early by the stopping policy, labeled by mode.",
			},
			[]string{"mode"},
		)

		candidatesCancelledTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "jobcrawler_candidates_cancelled_total",
				Help: "Total number of queued candidates cancelled before dispatch.",
			},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jobcrawler_fetch_duration_seconds",
				Help:    "Histogram of per-candidate fetch latencies, labeled by site.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"site"},
		)

		sinkErrorsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "jobcrawler_sink_errors_total",
				Help: "Total number of accepted postings the result sink failed to store.",
			},
		)

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
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePosting counts one processed candidate by outcome.
func ObservePosting(rawURL, status string) {
	Init()
	postingsTotal.WithLabelValues(SanitizeSite(rawURL), status).Inc()
}

// ObserveDiscovery counts the candidates produced for a site root.
func ObserveDiscovery(siteRoot string, links int) {
	Init()
	discoveredLinksTotal.WithLabelValues(SanitizeSite(siteRoot)).Add(float64(links))
}

// ObserveFetch records how long a single fetch took.
func ObserveFetch(rawURL string, duration time.Duration) {
	Init()
	fetchDurationSeconds.WithLabelValues(SanitizeSite(rawURL)).Observe(duration.Seconds())
}

// ObserveHalt counts a run stopped by the policy and the candidates it cancelled.
func ObserveHalt(mode string, cancelled int) {
	Init()
	haltsTotal.WithLabelValues(mode).Inc()
	if cancelled > 0 {
		candidatesCancelledTotal.Add(float64(cancelled))
	}
}

// ObserveSinkError counts a failed store of an accepted posting.
func ObserveSinkError() {
	Init()
	sinkErrorsTotal.Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	activeWorkers.Dec()
}
