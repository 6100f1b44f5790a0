package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "treks_requests_total",
			Help: "Total number of requests",
		},
		[]string{"route", "code", "method"},
	)

	DBTxDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "treks_db_tx_seconds",
			Help:    "Duration of DB transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	SeatsReserved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "treks_seats_reserved_total",
			Help: "Seats reserved by successful bookings",
		},
	)

	SeatsReleased = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "treks_seats_released_total",
			Help: "Seats released by cancellations",
		},
	)

	CapacityRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "treks_capacity_rejections_total",
			Help: "Seat reservations refused because the trek is full",
		},
	)

	InconsistentReleases = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "treks_inconsistent_releases_total",
			Help: "Seat releases that would have driven the participant counter negative",
		},
	)

	NotifierPublishFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "treks_notifier_publish_failures_total",
			Help: "Events that could not be handed to the broker",
		},
		[]string{"event"},
	)

	RateLimitExceeded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "treks_rate_limit_exceeded_total",
			Help: "Total rate limit exceeded",
		},
	)

	IdempotentReplays = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "treks_idempotent_replays_total",
			Help: "Responses served from the idempotency store",
		},
	)
)

var registerOnce sync.Once

func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestsTotal,
			DBTxDuration,
			SeatsReserved,
			SeatsReleased,
			CapacityRejections,
			InconsistentReleases,
			NotifierPublishFailures,
			RateLimitExceeded,
			IdempotentReplays,
		)
	})
}
