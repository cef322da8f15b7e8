package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AttendanceSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tertab_attendance_submissions_total",
			Help: "Institution attendance records created, by type and initial status",
		},
		[]string{"type", "status"},
	)

	VerificationOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tertab_verification_outcomes_total",
			Help: "Verification token issue and consume outcomes",
		},
		[]string{"operation", "outcome"},
	)

	ReferenceTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tertab_reference_transitions_total",
			Help: "Reference lifecycle transitions",
		},
		[]string{"to"},
	)

	DisputeEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tertab_dispute_events_total",
			Help: "Dispute lifecycle events",
		},
		[]string{"event"},
	)

	AttachmentResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tertab_attachment_results_total",
			Help: "Per-file document attachment results",
		},
		[]string{"type", "result"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tertab_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)
)
