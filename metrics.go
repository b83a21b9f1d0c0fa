package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API requests
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "libp_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"server", "method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "libp_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"server", "method", "route"},
	)

	httpRequestsInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "libp_http_requests_in_flight",
			Help: "Current number of HTTP requests being processed",
		},
		[]string{"server"},
	)

	panicRecoveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "libp_panic_recoveries_total",
			Help: "Total number of panics recovered in HTTP handlers",
		},
		[]string{"server"},
	)

	// Gateway
	rateLimitRejects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "libp_gateway_rate_limit_rejects_total",
			Help: "Total number of requests rejected due to rate limiting",
		},
	)

	bulkheadRejects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "libp_gateway_bulkhead_rejects_total",
			Help: "Total number of requests rejected because the bulkhead was full",
		},
	)

	upstreamRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "libp_gateway_upstream_retries_total",
			Help: "Total number of retried upstream calls",
		},
	)

	fallbacksServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "libp_gateway_fallbacks_total",
			Help: "Total number of requests served by the fallback handler",
		},
		[]string{"reason"},
	)

	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "libp_gateway_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Workers
	outboxPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "libp_outbox_published_total",
			Help: "Total number of outbox events published to the events queue",
		},
	)

	outboxFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "libp_outbox_publish_failures_total",
			Help: "Total number of failed outbox event publications",
		},
	)

	notificationsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "libp_notifications_processed_total",
			Help: "Total number of notifications processed by channel and final status",
		},
		[]string{"channel", "status"},
	)
)
