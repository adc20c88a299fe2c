package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type recordingEmailSender struct {
	mu     sync.Mutex
	sent   []EmailMessage
	failTo map[string]bool
}

func (r *recordingEmailSender) Send(ctx context.Context, msg EmailMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	if r.failTo[msg.To] {
		return errors.New("smtp unavailable")
	}
	return nil
}

type recordingSMSSender struct {
	mu   sync.Mutex
	sent []string
	fail bool
}

func (r *recordingSMSSender) SendSMS(ctx context.Context, to, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, to)
	if r.fail {
		return errors.New("sms gateway timeout")
	}
	return nil
}

func TestDispatchAllChannelsSettle(t *testing.T) {
	email := &recordingEmailSender{}
	sms := &recordingSMSSender{}
	d := NewDispatcher(email, sms, []string{"desk@clinic.test"}, []string{"+447700900000"}, nil, nil)

	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	amount := int64(5000)
	warning := d.Dispatch(context.Background(), Event{
		Type:             EventPaymentSucceeded,
		PatientName:      "Sam",
		PatientEmail:     "sam@x.com",
		SlotID:           "S1",
		SlotStart:        &start,
		AmountMinorUnits: &amount,
	})

	if warning != "" {
		t.Errorf("expected no warning, got %q", warning)
	}
	// Staff recipient plus the patient.
	if len(email.sent) != 2 {
		t.Errorf("expected 2 emails, got %d", len(email.sent))
	}
	if len(sms.sent) != 1 {
		t.Errorf("expected 1 SMS, got %d", len(sms.sent))
	}
}

func TestDispatchFailureProducesWarningOnly(t *testing.T) {
	email := &recordingEmailSender{failTo: map[string]bool{"desk@clinic.test": true}}
	sms := &recordingSMSSender{fail: true}
	d := NewDispatcher(email, sms, []string{"desk@clinic.test"}, []string{"+447700900000"}, nil, nil)

	warning := d.Dispatch(context.Background(), Event{
		Type:        EventStatusUpdated,
		PatientName: "Sam",
		Status:      "approved",
	})

	if !strings.Contains(warning, "2 notification(s) failed") {
		t.Errorf("expected advisory warning, got %q", warning)
	}
}

func TestDispatchWithNoSendersIsNoop(t *testing.T) {
	d := NewDispatcher(nil, nil, nil, nil, nil, nil)
	if warning := d.Dispatch(context.Background(), Event{Type: EventPaymentFailed}); warning != "" {
		t.Errorf("expected empty warning, got %q", warning)
	}
}

func TestComposeMentionsAmountAndReference(t *testing.T) {
	d := NewDispatcher(nil, nil, nil, nil, nil, nil)
	amount := int64(4500)
	subject, body := d.compose(Event{
		Type:             EventPaymentSucceeded,
		PatientName:      "Sam",
		SlotID:           "S1",
		AmountMinorUnits: &amount,
		Currency:         "GBP",
		Reference:        "ref-42",
	})
	if !strings.Contains(subject, "Payment received") {
		t.Errorf("unexpected subject %q", subject)
	}
	if !strings.Contains(body, "GBP 45.00") || !strings.Contains(body, "ref-42") {
		t.Errorf("unexpected body %q", body)
	}
}
