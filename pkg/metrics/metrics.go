// Package metrics holds the Prometheus collectors shared by the cache and
// server binaries. Collectors are registered with the default registry and
// exposed by promhttp.Handler() on each binary's /metrics route.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "blockcache"

var (
	// RefreshTotal counts per-pool refresh outcomes: "ok" or "error".
	RefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "refresh_total",
		Help:      "Per-pool cache refresh attempts by result.",
	}, []string{"result"})

	// RefreshDuration observes the wall time of one full refresh round.
	RefreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "refresh_duration_seconds",
		Help:      "Duration of one refresh round over all registered pools.",
		Buckets:   prometheus.DefBuckets,
	})

	// CacheLookups counts peer-cache endpoint lookups: "hit" or "not_found".
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_lookups_total",
		Help:      "Peer-cache lookups by result.",
	}, []string{"result"})

	// ReadThrough counts public volume answers by the source that served them.
	ReadThrough = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "readthrough_total",
		Help:      "Public volume answers by serving source (peer, origin, error).",
	}, []string{"source"})

	// PeerFailures counts peer-cache failures by reason: "unreachable",
	// "status" (non-2xx) or "malformed".
	PeerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "peer_failures_total",
		Help:      "Peer-cache call failures by reason (unreachable, status, malformed).",
	}, []string{"reason"})

	// IngestedEvents counts synthetic events durably inserted.
	IngestedEvents = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingested_events_total",
		Help:      "Synthetic events inserted into the origin store.",
	})

	// OriginQueryDuration observes origin store calls by operation.
	OriginQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "origin_query_duration_seconds",
		Help:      "Origin store call latency by operation (aggregate, insert).",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"op"})
)

// Handler returns the /metrics handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
