package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EligibilityChecks  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carpool", Name: "eligibility_checks_total", Help: "Total eligibility filter invocations"})
	CandidatesRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "carpool", Name: "candidates_rejected_total", Help: "Malformed driver records excluded by the eligibility filter"},
		[]string{"reason"},
	)
	EligibleDrivers = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "carpool",
		Name:      "eligible_drivers",
		Help:      "Eligible drivers returned per passenger request",
		Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
	})
	EstimatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "carpool", Name: "fare_estimates_total", Help: "Fare estimates by outcome"},
		[]string{"outcome"},
	)
	FuelPrice = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "carpool", Name: "fuel_price_per_liter", Help: "Current administered fuel price"})
	PresenceTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "carpool", Name: "presence_updates_total", Help: "Driver presence updates by liveness"},
		[]string{"live"},
	)
	RideTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "carpool", Name: "ride_transitions_total", Help: "Ride request status transitions"},
		[]string{"status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "carpool", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "carpool",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
