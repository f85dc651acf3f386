package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RidesCreatedTotal    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "taxi_backend", Name: "rides_created_total", Help: "Total rides requested"})
	RidesCompletedTotal  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "taxi_backend", Name: "rides_completed_total", Help: "Total rides completed"})
	SeatBookingsTotal    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "taxi_backend", Name: "seat_bookings_total", Help: "Total shared ride seats booked"})
	SeatConflictsTotal   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "taxi_backend", Name: "seat_booking_conflicts_total", Help: "Seat bookings retried after a revision conflict"})
	CascadeFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "taxi_backend", Name: "cascade_failures_total", Help: "Best effort cleanup steps that failed"})
	PaymentsTotal        = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "taxi_backend", Name: "payments_total", Help: "Payment operations by outcome"},
		[]string{"status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "taxi_backend", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "taxi_backend",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
