package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "booking_service",
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome.",
		},
		[]string{"outcome"},
	)

	cancellations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "booking_service",
			Name:      "appointments_cancelled_total",
			Help:      "Appointments cancelled.",
		},
	)

	slotQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "booking_service",
			Name:      "slot_queries_total",
			Help:      "Available-slot queries by outcome.",
		},
		[]string{"outcome"},
	)

	generatedSlots = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "booking_service",
			Name:      "generated_slots",
			Help:      "Number of open slots returned per query.",
			Buckets:   []float64{0, 1, 4, 8, 16, 32, 64, 96},
		},
	)

	bookingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "booking_service",
			Name:      "booking_duration_seconds",
			Help:      "Time spent validating and committing a booking.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	outboxPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "booking_service",
			Name:      "outbox_published_total",
			Help:      "Outbox events relayed to Kafka by event type.",
		},
		[]string{"event_type"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(bookings, cancellations, slotQueries, generatedSlots, bookingDuration, outboxPublished)
	})
}

// ObserveBooking records one booking attempt. outcome is "booked" or an error kind.
func ObserveBooking(outcome string, elapsed time.Duration) {
	bookings.WithLabelValues(outcome).Inc()
	bookingDuration.Observe(elapsed.Seconds())
}

func IncCancelled() {
	cancellations.Inc()
}

func ObserveSlotQuery(outcome string, slots int) {
	slotQueries.WithLabelValues(outcome).Inc()
	if outcome == "ok" {
		generatedSlots.Observe(float64(slots))
	}
}

func IncOutboxPublished(eventType string) {
	outboxPublished.WithLabelValues(eventType).Inc()
}
