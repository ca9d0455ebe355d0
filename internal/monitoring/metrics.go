package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	bookingsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "starbook_bookings_created_total",
			Help: "Total bookings created",
		},
	)

	paymentConfirmations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "starbook_payment_confirmations_total",
			Help: "Payment confirmation attempts by outcome",
		},
		[]string{"outcome"},
	)

	oversellRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "starbook_oversell_rejections_total",
			Help: "Confirmations rejected because inventory ran out",
		},
	)

	ticketsIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "starbook_tickets_issued_total",
			Help: "Total tickets issued",
		},
	)

	bookingsCancelled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "starbook_bookings_cancelled_total",
			Help: "Bookings cancelled by prior status",
		},
		[]string{"from_status"},
	)

	gatewayLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "starbook_gateway_charge_seconds",
			Help:    "Payment gateway charge latency",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)
)

func TrackBookingCreated() {
	bookingsCreated.Inc()
}

// TrackPaymentConfirmation records the outcome of a confirmation attempt:
// "confirmed", "duplicate", "insufficient", "mismatch" or "error".
func TrackPaymentConfirmation(outcome string) {
	paymentConfirmations.WithLabelValues(outcome).Inc()
}

func TrackOversellRejection() {
	oversellRejections.Inc()
}

func TrackTicketsIssued(n int) {
	ticketsIssued.Add(float64(n))
}

func TrackBookingCancelled(fromStatus string) {
	bookingsCancelled.WithLabelValues(fromStatus).Inc()
}

func TrackGatewayCharge(d time.Duration) {
	gatewayLatency.Observe(d.Seconds())
}
