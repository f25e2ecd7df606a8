package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bloodbridge_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// RequestTransitions counts blood request status changes by target status.
	RequestTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bloodbridge_blood_request_transitions_total",
			Help: "Blood request status transitions",
		},
		[]string{"status"},
	)

	// DonorDecisions counts donor offer decisions by outcome.
	DonorDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bloodbridge_donor_decisions_total",
			Help: "Donor offer decisions",
		},
		[]string{"status"},
	)

	// NotificationsDelivered counts notification inserts by kind and result (created|failed|requeued|dropped).
	NotificationsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bloodbridge_notifications_total",
			Help: "Notification deliveries by type and result",
		},
		[]string{"type", "result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bloodbridge_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
