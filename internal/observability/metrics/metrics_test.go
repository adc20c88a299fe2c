package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestBookingMetricsRegisterAndCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)

	m.ObserveReserve("reserved")
	m.ObserveReserve("conflict")
	m.ObserveReserve("conflict")
	m.ObservePayment("paid")
	m.ObserveApproval("approved")
	m.ObserveSchemaDrift("booking_requests")
	m.ObserveNotificationFailure()
	m.ObserveBookingLatency(0.25)

	if got := testutil.ToFloat64(m.reserveTotal.WithLabelValues("conflict")); got != 2 {
		t.Errorf("expected 2 conflicts, got %v", got)
	}
	if got := testutil.ToFloat64(m.paymentTotal.WithLabelValues("paid")); got != 1 {
		t.Errorf("expected 1 paid outcome, got %v", got)
	}
	if got := testutil.ToFloat64(m.approvalTotal.WithLabelValues("approved")); got != 1 {
		t.Errorf("expected 1 approval, got %v", got)
	}
	if got := testutil.ToFloat64(m.notifyFailedTotal); got != 1 {
		t.Errorf("expected 1 notification failure, got %v", got)
	}
}

func TestNilReceiverIsSafe(t *testing.T) {
	var m *BookingMetrics
	m.ObserveReserve("reserved")
	m.ObservePayment("failed")
	m.ObserveApproval("declined")
	m.ObserveSchemaDrift("appointments")
	m.ObserveNotificationFailure()
	m.ObserveBookingLatency(1)
}
