// file: internal/metrics/metrics.go
// version: 1.0.0
// guid: 5a1d8e2f-7c3b-4d9a-b6e0-f4a2c8d1b375

package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	metadataFetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bookloft",
		Name:      "metadata_fetches_total",
		Help:      "Total metadata fetches by provider and outcome (found, not_found, error)",
	}, []string{"provider", "outcome"})
	metadataFetchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "bookloft",
		Name:      "metadata_fetch_duration_seconds",
		Help:      "Histogram of metadata fetch durations by provider",
		Buckets:   prometheus.ExponentialBuckets(0.05, 1.6, 10),
	}, []string{"provider"})

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bookloft",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests handled by method, route and status",
	}, []string{"method", "route", "status"})
	httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "bookloft",
		Name:      "http_request_duration_seconds",
		Help:      "Histogram of HTTP request latency by route",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	booksGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "bookloft",
		Name:      "books_total",
		Help:      "Current total number of books across all users",
	})
)

// Register initializes metrics with the global Prometheus registry (idempotent)
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(metadataFetches, metadataFetchDuration,
			httpRequests, httpRequestDuration, booksGauge)
	})
}

// ObserveFetch records one metadata fetch attempt.
func ObserveFetch(provider, outcome string, d time.Duration) {
	metadataFetches.WithLabelValues(provider, outcome).Inc()
	metadataFetchDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// ObserveRequest records one handled HTTP request.
func ObserveRequest(method, route string, status int, d time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(route).Observe(d.Seconds())
}

// SetBooks updates the library-size gauge.
func SetBooks(count int) { booksGauge.Set(float64(count)) }
