package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Booking group outcomes
const (
	OutcomeCreated  = "created"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Metrics holds the Prometheus collectors of the booking service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	HTTPRequests        *prometheus.CounterVec
	HTTPDuration        *prometheus.HistogramVec
	BookingGroups       *prometheus.CounterVec
	SlotConflicts       prometheus.Counter
	StatusTransitions   *prometheus.CounterVec
	RefundDecisions     *prometheus.CounterVec
	RefundedAmountTotal prometheus.Counter
	RateLimited         prometheus.Counter
}

// New registers the collectors on reg under namespace
func New(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		BookingGroups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_groups_total",
			Help:      "Booking group creation attempts by session type and outcome.",
		}, []string{"session_type", "outcome"}),
		SlotConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_reservation_conflicts_total",
			Help:      "Reservations lost to a concurrent booking of the same slot.",
		}),
		StatusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_status_transitions_total",
			Help:      "Booking status changes by target status.",
		}, []string{"to"}),
		RefundDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refund_decisions_total",
			Help:      "Refund requests by decision.",
		}, []string{"decision"}),
		RefundedAmountTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refunded_amount_won_total",
			Help:      "Sum of approved refund amounts.",
		}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_requests_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
	}

	reg.MustRegister(
		m.HTTPRequests,
		m.HTTPDuration,
		m.BookingGroups,
		m.SlotConflicts,
		m.StatusTransitions,
		m.RefundDecisions,
		m.RefundedAmountTotal,
		m.RateLimited,
	)
	return m
}

// BookingGroup counts one creation attempt
func (m *Metrics) BookingGroup(sessionType, outcome string) {
	if m == nil {
		return
	}
	m.BookingGroups.WithLabelValues(sessionType, outcome).Inc()
}

// SlotConflict counts a reservation lost to the conditional update
func (m *Metrics) SlotConflict() {
	if m == nil {
		return
	}
	m.SlotConflicts.Inc()
}

// Transition counts bookings moved into status `to`
func (m *Metrics) Transition(to string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.StatusTransitions.WithLabelValues(to).Add(float64(n))
}

// RefundDecision counts a refund request outcome; amount is added for approvals
func (m *Metrics) RefundDecision(decision string, amount int64) {
	if m == nil {
		return
	}
	m.RefundDecisions.WithLabelValues(decision).Inc()
	if amount > 0 {
		m.RefundedAmountTotal.Add(float64(amount))
	}
}

// Limited counts a request rejected by the rate limiter
func (m *Metrics) Limited() {
	if m == nil {
		return
	}
	m.RateLimited.Inc()
}

// ObserveRequest records one served HTTP request
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
