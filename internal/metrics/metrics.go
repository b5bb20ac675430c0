// Package metrics holds the Prometheus collectors of the service.
// They are registered on the default registry and exposed through promhttp on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ResolutionsTotal counts gate decisions by outcome ("resolved" or the denial reason) and entry point.
	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkgate_resolutions_total",
			Help: "Total number of link resolutions by outcome",
		},
		[]string{"entry", "outcome"},
	)

	RecorderTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkgate_recorder_tasks_total",
			Help: "Access recorder tasks by result",
		},
		[]string{"result"},
	)

	// RecorderDroppedTotal counts tasks rejected because the queue was full or the recorder stopped.
	RecorderDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "linkgate_recorder_dropped_total",
			Help: "Access recorder tasks dropped before processing",
		},
	)

	RecorderQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "linkgate_recorder_queue_depth",
			Help: "Tasks waiting in the access recorder queue",
		},
	)

	EventsFlushedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "linkgate_access_events_flushed_total",
			Help: "Access events written to the analytics sink",
		},
	)

	EventsLostTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "linkgate_access_events_lost_total",
			Help: "Access events dropped after a failed flush",
		},
	)

	GeoLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkgate_geo_lookups_total",
			Help: "Geolocation lookups by result",
		},
		[]string{"result"},
	)

	// GeoBreakerState is 0 closed, 1 half-open, 2 open.
	GeoBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "linkgate_geo_breaker_state",
			Help: "State of the geolocation circuit breaker",
		},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkgate_http_requests_total",
			Help: "HTTP requests by method, route pattern and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "linkgate_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "route"},
	)
)
