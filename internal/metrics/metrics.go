// Package metrics exposes the service's Prometheus instrumentation.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// Streaming
	StreamResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_stream_responses_total",
			Help: "Media responses by status code",
		},
		[]string{"status"},
	)

	StreamBytesServed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_stream_bytes_total",
			Help: "Audio and image bytes written to clients",
		},
	)

	StreamAborts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_stream_aborts_total",
			Help: "Streams that ended before the planned length",
		},
		[]string{"cause"}, // "client", "source"
	)

	ActiveStreams = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_active_streams",
			Help: "Streams currently copying bytes",
		},
	)

	// Library
	PlaysRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "library_plays_recorded_total",
			Help: "Play events accepted",
		},
	)

	LibraryMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "library_mutations_total",
			Help: "Library mutations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// Stats cache
	StatsCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stats_cache_hits_total",
			Help: "Stats responses served from redis",
		},
	)

	StatsCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stats_cache_misses_total",
			Help: "Stats responses computed from the repository",
		},
	)
)

func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	APIRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}

func RecordStream(status int, written int64) {
	StreamResponses.WithLabelValues(strconv.Itoa(status)).Inc()
	if written > 0 {
		StreamBytesServed.Add(float64(written))
	}
}

// RecordMutation counts a mutation as "ok" or by its failure code.
func RecordMutation(operation, outcome string) {
	LibraryMutations.WithLabelValues(operation, outcome).Inc()
}
