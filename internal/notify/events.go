package notify

import "time"

// EventType identifies which terminal outcome a notification describes.
type EventType string

const (
	EventAppointmentCreated      EventType = "appointment_created"
	EventBookingRequestProcessed EventType = "booking_request_processed"
	EventStatusUpdated           EventType = "status_updated"
	EventPaymentSucceeded        EventType = "payment_succeeded"
	EventPaymentPending          EventType = "payment_pending"
	EventPaymentFailed           EventType = "payment_failed"
)

// Event is the snapshot handed to the dispatcher for one outcome.
type Event struct {
	Type             EventType
	RequestID        string
	PatientName      string
	PatientEmail     string
	PatientPhone     string
	SlotID           string
	SlotStart        *time.Time
	AmountMinorUnits *int64
	Currency         string
	Status           string
	Reference        string
	Detail           string
	OccurredAt       time.Time
}
