package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DevicesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drivemap_devices_created_total",
			Help: "Total number of hard drives registered",
		},
		[]string{"facility"},
	)

	StatusUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drivemap_status_updates_total",
			Help: "Total number of drive status updates",
		},
		[]string{"status"},
	)

	EventsBroadcast = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drivemap_events_broadcast_total",
			Help: "Total number of change events broadcast to subscribers",
		},
		[]string{"type"},
	)

	SubscribersConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "drivemap_subscribers_connected",
			Help: "Number of currently connected event subscribers",
		},
	)

	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "drivemap_query_duration_seconds",
			Help:    "Time taken to answer inventory queries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query"},
	)

	EmbeddingRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drivemap_embedding_requests_total",
			Help: "Total number of embedding generation requests",
		},
		[]string{"outcome"},
	)

	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drivemap_cache_errors_total",
			Help: "Total number of cache operation failures",
		},
		[]string{"cache", "operation"},
	)
)
