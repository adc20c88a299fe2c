package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/harborclinic/booking-platform/internal/observability/metrics"
	"github.com/harborclinic/booking-platform/pkg/logging"
)

// Dispatcher fans notifications out to staff and patients. Every send for a
// single event runs concurrently and is awaited with a settle-don't-fail
// policy: individual failures are logged and folded into an advisory warning,
// never into a primary-operation error.
type Dispatcher struct {
	email           EmailSender
	sms             SMSSender
	emailRecipients []string
	smsRecipients   []string
	metrics         *metrics.BookingMetrics
	logger          *logging.Logger
}

// NewDispatcher creates a notification dispatcher. Either sender may be nil;
// the corresponding channel is skipped.
func NewDispatcher(email EmailSender, sms SMSSender, emailRecipients, smsRecipients []string, m *metrics.BookingMetrics, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{
		email:           email,
		sms:             sms,
		emailRecipients: emailRecipients,
		smsRecipients:   smsRecipients,
		metrics:         m,
		logger:          logger,
	}
}

type sendOutcome struct {
	channel string
	target  string
	err     error
}

// Dispatch sends every notification for the event and returns advisory
// warning text when any channel failed, or "" when all settled cleanly.
func (d *Dispatcher) Dispatch(ctx context.Context, evt Event) string {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	subject, body := d.compose(evt)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes []sendOutcome
	)
	record := func(o sendOutcome) {
		mu.Lock()
		outcomes = append(outcomes, o)
		mu.Unlock()
	}

	if d.email != nil {
		targets := d.emailRecipients
		if evt.PatientEmail != "" {
			targets = append(append([]string{}, targets...), evt.PatientEmail)
		}
		for _, to := range targets {
			wg.Add(1)
			go func(to string) {
				defer wg.Done()
				err := d.email.Send(ctx, EmailMessage{To: to, Subject: subject, Body: body})
				record(sendOutcome{channel: "email", target: to, err: err})
			}(to)
		}
	}
	if d.sms != nil {
		for _, to := range d.smsRecipients {
			wg.Add(1)
			go func(to string) {
				defer wg.Done()
				err := d.sms.SendSMS(ctx, to, subject)
				record(sendOutcome{channel: "sms", target: to, err: err})
			}(to)
		}
	}
	wg.Wait()

	failed := 0
	for _, o := range outcomes {
		if o.err != nil {
			failed++
			d.metrics.ObserveNotificationFailure()
			d.logger.Error("notification send failed",
				"channel", o.channel, "target", o.target, "event", string(evt.Type), "error", o.err)
		}
	}
	if failed == 0 {
		return ""
	}
	return fmt.Sprintf("%d notification(s) failed to send", failed)
}

// compose renders the subject line and body for one event.
func (d *Dispatcher) compose(evt Event) (string, string) {
	name := evt.PatientName
	if name == "" {
		name = "A patient"
	}
	when := ""
	if evt.SlotStart != nil {
		when = evt.SlotStart.Format("Monday, January 2 at 3:04 PM")
	}
	amount := ""
	if evt.AmountMinorUnits != nil {
		currency := evt.Currency
		if currency == "" {
			currency = "GBP"
		}
		amount = fmt.Sprintf("%s %.2f", currency, float64(*evt.AmountMinorUnits)/100)
	}

	var subject, body string
	switch evt.Type {
	case EventPaymentSucceeded:
		subject = fmt.Sprintf("Payment received - %s", name)
		body = fmt.Sprintf("%s paid %s for slot %s", name, amount, evt.SlotID)
	case EventPaymentPending:
		subject = fmt.Sprintf("Payment pending - %s", name)
		body = fmt.Sprintf("%s started a payment for slot %s; awaiting provider confirmation.", name, evt.SlotID)
	case EventPaymentFailed:
		subject = fmt.Sprintf("Payment failed - %s", name)
		body = fmt.Sprintf("%s attempted to book slot %s but the payment failed.", name, evt.SlotID)
	case EventAppointmentCreated:
		subject = fmt.Sprintf("Appointment booked - %s", name)
		body = fmt.Sprintf("%s has an appointment", name)
		if when != "" {
			body += " on " + when
		}
	case EventBookingRequestProcessed, EventStatusUpdated:
		subject = fmt.Sprintf("Booking request %s - %s", evt.Status, name)
		body = fmt.Sprintf("The booking request from %s is now %s.", name, evt.Status)
	default:
		subject = fmt.Sprintf("Booking update - %s", name)
		body = fmt.Sprintf("Booking update for %s.", name)
	}

	if evt.PatientPhone != "" {
		body += fmt.Sprintf("\nPhone: %s", evt.PatientPhone)
	}
	if evt.Reference != "" {
		body += fmt.Sprintf("\nPayment reference: %s", evt.Reference)
	}
	if when != "" && evt.Type != EventAppointmentCreated {
		body += fmt.Sprintf("\nSlot time: %s", when)
	}
	if evt.Detail != "" {
		body += "\n" + evt.Detail
	}
	return subject, body
}
