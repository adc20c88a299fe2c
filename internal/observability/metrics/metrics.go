package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the reservation flows.
type BookingMetrics struct {
	reserveTotal      *prometheus.CounterVec
	paymentTotal      *prometheus.CounterVec
	approvalTotal     *prometheus.CounterVec
	schemaDriftTotal  *prometheus.CounterVec
	notifyFailedTotal prometheus.Counter
	bookingLatency    prometheus.Histogram
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		reserveTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "slot_reserve_total",
			Help:      "Conditional slot reserve attempts by outcome",
		}, []string{"outcome"}),
		paymentTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "payment_outcome_total",
			Help:      "Payment provider outcomes",
		}, []string{"status"}),
		approvalTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "approval_decision_total",
			Help:      "Staff decisions applied to booking requests",
		}, []string{"status"}),
		schemaDriftTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "schema_drift_retry_total",
			Help:      "Writes retried after an unknown-column error",
		}, []string{"table"}),
		notifyFailedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "notification_failure_total",
			Help:      "Best-effort notifications that failed to send",
		}),
		bookingLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "process_booking_seconds",
			Help:      "Latency of the patient booking flow",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.reserveTotal, m.paymentTotal, m.approvalTotal, m.schemaDriftTotal, m.notifyFailedTotal, m.bookingLatency)
	return m
}

// ObserveReserve records a conditional reserve outcome: reserved, conflict or error.
func (m *BookingMetrics) ObserveReserve(outcome string) {
	if m == nil {
		return
	}
	m.reserveTotal.WithLabelValues(outcome).Inc()
}

// ObservePayment records a mapped provider status.
func (m *BookingMetrics) ObservePayment(status string) {
	if m == nil {
		return
	}
	m.paymentTotal.WithLabelValues(status).Inc()
}

// ObserveApproval records a staff decision by terminal status.
func (m *BookingMetrics) ObserveApproval(status string) {
	if m == nil {
		return
	}
	m.approvalTotal.WithLabelValues(status).Inc()
}

// ObserveSchemaDrift records a reduced-payload retry against a table.
func (m *BookingMetrics) ObserveSchemaDrift(table string) {
	if m == nil {
		return
	}
	m.schemaDriftTotal.WithLabelValues(table).Inc()
}

// ObserveNotificationFailure counts a failed best-effort notification.
func (m *BookingMetrics) ObserveNotificationFailure() {
	if m == nil {
		return
	}
	m.notifyFailedTotal.Inc()
}

// ObserveBookingLatency records one patient booking flow duration.
func (m *BookingMetrics) ObserveBookingLatency(seconds float64) {
	if m == nil {
		return
	}
	m.bookingLatency.Observe(seconds)
}
