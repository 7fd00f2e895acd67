package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vanish_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vanish_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	SessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vanish_sessions_created_total",
			Help: "Total chat sessions created",
		},
	)

	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vanish_messages_sent_total",
			Help: "Total messages sent",
		},
		[]string{"content_type"},
	)

	MessagesPurged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vanish_messages_purged_total",
			Help: "Total messages physically deleted",
		},
		[]string{"reason"}, // "burn", "sweep", "lazy_expiry", "soft_delete"
	)

	SweepRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vanish_sweep_runs_total",
			Help: "Total sweeper runs",
		},
		[]string{"outcome"}, // "ok", "skipped", "error"
	)

	MediaDeleteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vanish_media_delete_failures_total",
			Help: "Total failed media blob deletions",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vanish_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)
)
