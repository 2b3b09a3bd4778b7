// Package metrics holds the service's Prometheus collectors. A nil *Metrics
// is valid and records nothing, so metrics stay optional in tests and tools.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	bookings         *prometheus.CounterVec
	degradedSlots    prometheus.Counter
	syncTaskAttempts *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dental_api_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dental_api_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dental_api_bookings_total",
			Help: "Booking attempts by outcome (booked, replayed, conflict, error).",
		}, []string{"outcome"}),
		degradedSlots: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dental_api_degraded_slot_results_total",
			Help: "Slot computations that fell back to internal records only.",
		}),
		syncTaskAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dental_api_calendar_sync_attempts_total",
			Help: "Calendar mirror retry attempts by outcome (done, failed).",
		}, []string{"outcome"}),
	}

	reg.MustRegister(m.httpRequests, m.httpDuration, m.bookings, m.degradedSlots, m.syncTaskAttempts)
	return m
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) BookingOutcome(outcome string) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(outcome).Inc()
}

func (m *Metrics) DegradedSlotResult() {
	if m == nil {
		return
	}
	m.degradedSlots.Inc()
}

func (m *Metrics) SyncAttempt(outcome string) {
	if m == nil {
		return
	}
	m.syncTaskAttempts.WithLabelValues(outcome).Inc()
}
