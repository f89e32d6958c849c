// Package metrics exposes Prometheus collectors for the bulletin service.
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

var (
	crawlerFragmentsTotal         *prometheus.CounterVec
	pdfDownloadAttemptsTotal      *prometheus.CounterVec
	bulletinBatchesTotal          *prometheus.CounterVec
	bulletinVisitedURLs           prometheus.Histogram
	bulletinCorpusChars           prometheus.Histogram
	summarizerRequestsTotal       *prometheus.CounterVec
	httpRequestsTotal             *prometheus.CounterVec
	httpRequestDurationSeconds    *prometheus.HistogramVec
	crawlerRateLimitDelaysSeconds *prometheus.HistogramVec
	crawlerRobotsFallbackTotal    *prometheus.CounterVec
	crawlerRendersTotal           *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlerFragmentsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_fragments_total",
				Help: "Total number of crawl fragments produced, labeled by site and kind.",
			},
			[]string{"site", "kind"},
		)

		pdfDownloadAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_pdf_download_attempts_total",
				Help: "PDF download attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		bulletinBatchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bulletin_batches_total",
				Help: "Total number of bulletin batches, labeled by status.",
			},
			[]string{"status"},
		)

		bulletinVisitedURLs = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "bulletin_visited_urls",
				Help:    "Distinct URLs visited per batch.",
				Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
			},
		)

		bulletinCorpusChars = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "bulletin_corpus_chars",
				Help:    "Size of the aggregated corpus handed to the summarizer.",
				Buckets: prometheus.LinearBuckets(0, 2000, 8),
			},
		)

		summarizerRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "summarizer_requests_total",
				Help: "Summarizer calls, labeled by status.",
			},
			[]string{"status"},
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
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 60},
			},
			[]string{"method", "route"},
		)

		crawlerRobotsFallbackTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_robots_fallback_total",
				Help: "robots.txt probes that timed out and fell back to allow-all.",
			},
			[]string{"site"},
		)

		crawlerRendersTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_renders_total",
				Help: "Pages served in auto render mode, labeled by the renderer that produced them.",
			},
			[]string{"renderer"},
		)

		crawlerRateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crawler_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
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
	Init()
	return promhttp.Handler()
}

// ObserveFragment counts one crawl fragment of the given kind.
func ObserveFragment(site, kind string) {
	Init()
	crawlerFragmentsTotal.WithLabelValues(SanitizeSite(site), kind).Inc()
}

// ObservePDFAttempt counts one PDF download attempt.
func ObservePDFAttempt(outcome string) {
	Init()
	pdfDownloadAttemptsTotal.WithLabelValues(outcome).Inc()
}

// ObserveBatch records the outcome and size of a finished batch.
func ObserveBatch(status string, visited, corpusChars int) {
	Init()
	bulletinBatchesTotal.WithLabelValues(status).Inc()
	if visited >= 0 {
		bulletinVisitedURLs.Observe(float64(visited))
	}
	if corpusChars >= 0 {
		bulletinCorpusChars.Observe(float64(corpusChars))
	}
}

// ObserveSummarizer counts a summarizer call.
func ObserveSummarizer(status string) {
	Init()
	summarizerRequestsTotal.WithLabelValues(status).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRobotsFallback counts robots.txt probes answered with the allow-all fallback.
func ObserveRobotsFallback(host string) {
	Init()
	crawlerRobotsFallbackTotal.WithLabelValues(SanitizeSite(host)).Inc()
}

// ObserveRender counts a page produced by the static or headless renderer.
func ObserveRender(renderer string) {
	Init()
	crawlerRendersTotal.WithLabelValues(renderer).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	crawlerRateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}
