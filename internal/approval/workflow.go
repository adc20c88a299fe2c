package approval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/harborclinic/booking-platform/internal/appointments"
	"github.com/harborclinic/booking-platform/internal/intake"
	"github.com/harborclinic/booking-platform/internal/notify"
	"github.com/harborclinic/booking-platform/internal/observability/metrics"
	"github.com/harborclinic/booking-platform/internal/schema"
	"github.com/harborclinic/booking-platform/pkg/logging"
)

var tracer = otel.Tracer("clinic.internal.approval")

// DefaultDurationMinutes applies when a request carries no usable duration.
const DefaultDurationMinutes = 60

var (
	// ErrMissingStartTime aborts an approval whose slot start time cannot
	// be determined from the request record. No appointment is created.
	ErrMissingStartTime = errors.New("missing slot start time")

	// ErrDecisionInProgress means another staff member holds the decision
	// lock for this request.
	ErrDecisionInProgress = errors.New("another decision for this request is in progress")

	// ErrInvalidStatus rejects decision targets outside the known set.
	ErrInvalidStatus = errors.New("invalid decision status")
)

// startKeys extends the slot-table start candidates with the names intake
// channels use on the request record itself.
var startKeys = append([]string{"slot_start_time", "appointment_time", "preferred_time"}, schema.StartCandidates...)

var slotRefKeys = []string{"slot_id", "slot_reference", "slot_uuid", "slot"}

// RequestStore loads and mutates booking request records.
type RequestStore interface {
	Get(ctx context.Context, id string) (intake.Record, error)
	UpdateFields(ctx context.Context, id string, fields intake.Record) error
}

// AppointmentStore persists confirmed appointments.
type AppointmentStore interface {
	Insert(ctx context.Context, appt *appointments.Appointment) (string, error)
	Delete(ctx context.Context, id string) error
}

// SlotReserver commits the underlying slot when a request is approved.
type SlotReserver interface {
	Reserve(ctx context.Context, slotRef string) error
}

// Notifier fans out the decision outcome. The returned string is an advisory
// warning, empty when every channel delivered.
type Notifier interface {
	Dispatch(ctx context.Context, evt notify.Event) string
}

// Outcome describes a completed staff decision.
type Outcome struct {
	RequestID     string `json:"request_id"`
	Status        string `json:"status"`
	AppointmentID string `json:"appointment_id,omitempty"`
	Warning       string `json:"warning,omitempty"`
}

// Workflow applies staff decisions to booking requests.
type Workflow struct {
	requests     RequestStore
	appointments AppointmentStore
	slots        SlotReserver
	notifier     Notifier
	lock         *RequestLock
	metrics      *metrics.BookingMetrics
	logger       *logging.Logger
}

func NewWorkflow(requests RequestStore, appts AppointmentStore, slots SlotReserver, notifier Notifier, lock *RequestLock, m *metrics.BookingMetrics, logger *logging.Logger) *Workflow {
	if logger == nil {
		logger = logging.Default()
	}
	return &Workflow{
		requests:     requests,
		appointments: appts,
		slots:        slots,
		notifier:     notifier,
		lock:         lock,
		metrics:      m,
		logger:       logger,
	}
}

// HandleApproval loads the request and applies the decision. The per-request
// lock keeps two staff members from racing the same request; a terminal
// request is rejected before any side effect.
func (w *Workflow) HandleApproval(ctx context.Context, requestID, nextStatus string) (*Outcome, error) {
	ctx, span := tracer.Start(ctx, "approval.handle")
	defer span.End()
	span.SetAttributes(attribute.String("request.id", requestID), attribute.String("request.next_status", nextStatus))

	if !ValidNextStatus(nextStatus) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, nextStatus)
	}

	release, acquired := w.lock.Acquire(ctx, requestID)
	if !acquired {
		return nil, ErrDecisionInProgress
	}
	defer release()

	rec, err := w.requests.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !IsPending(rec) {
		return nil, fmt.Errorf("%w: current status %q", ErrNotPending, DerivedStatus(rec))
	}

	if nextStatus == StatusDeclined {
		return w.decline(ctx, requestID, rec)
	}
	return w.approve(ctx, requestID, rec, nextStatus)
}

// decline updates the status fields only. No appointment or slot side effects.
func (w *Workflow) decline(ctx context.Context, requestID string, rec intake.Record) (*Outcome, error) {
	fields, err := statusFields(rec, StatusDeclined, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if err := w.requests.UpdateFields(ctx, requestID, fields); err != nil {
		return nil, fmt.Errorf("approval: decline request %s: %w", requestID, err)
	}
	w.metrics.ObserveApproval(StatusDeclined)

	outcome := &Outcome{RequestID: requestID, Status: StatusDeclined}
	outcome.Warning = w.dispatch(ctx, rec, notify.EventStatusUpdated, StatusDeclined, requestID)
	w.logger.Info("booking request declined", "request_id", requestID)
	return outcome, nil
}

func (w *Workflow) approve(ctx context.Context, requestID string, rec intake.Record, nextStatus string) (*Outcome, error) {
	now := time.Now().UTC()

	start, ok := startTime(rec)
	if !ok {
		return nil, ErrMissingStartTime
	}
	duration := durationMinutes(rec)

	appt := &appointments.Appointment{
		SlotID:           firstValue(rec, slotRefKeys...),
		FirstName:        firstValue(rec, "first_name", "name", "given_name"),
		Surname:          firstValue(rec, "surname", "last_name", "family_name"),
		Email:            firstValue(rec, "email", "email_address"),
		Phone:            firstValue(rec, "phone", "phone_number", "mobile"),
		StartAt:          start,
		EndAt:            start.Add(time.Duration(duration) * time.Minute),
		Location:         firstValue(rec, "location", "site", "clinic"),
		Notes:            firstValue(rec, "notes", "message", "comments"),
		BookingRequestID: requestID,
		Source:           appointments.SourceBookingRequest,
	}
	appointmentID, err := w.appointments.Insert(ctx, appt)
	if err != nil {
		return nil, fmt.Errorf("approval: create appointment for request %s: %w", requestID, err)
	}

	var warning string
	if slotRef := appt.SlotID; slotRef != "" && w.slots != nil {
		if err := w.slots.Reserve(ctx, slotRef); err != nil {
			// The patient payment path usually booked the slot
			// already, so a sweep that lands nowhere is expected.
			w.logger.Warn("slot reserve sweep found nothing to update",
				"request_id", requestID, "slot_ref", slotRef, "error", err)
			if !errors.Is(err, ErrSlotNotReserved) {
				warning = "appointment created, but the slot update failed"
			}
		}
	}

	fields, err := statusFields(rec, nextStatus, now)
	if err == nil {
		err = w.requests.UpdateFields(ctx, requestID, fields)
	}
	if err != nil {
		// Compensation: the request never reached a terminal status, so
		// the appointment must not survive.
		if delErr := w.appointments.Delete(ctx, appointmentID); delErr != nil {
			w.logger.Error("compensation delete failed, orphaned appointment",
				"appointment_id", appointmentID, "request_id", requestID, "error", delErr)
		}
		return nil, fmt.Errorf("approval: update request %s status: %w", requestID, err)
	}
	w.metrics.ObserveApproval(nextStatus)

	outcome := &Outcome{RequestID: requestID, Status: nextStatus, AppointmentID: appointmentID}
	notifyWarning := w.dispatch(ctx, rec, notify.EventAppointmentCreated, nextStatus, requestID)
	outcome.Warning = joinWarnings(warning, notifyWarning)
	w.logger.Info("booking request approved", "request_id", requestID, "status", nextStatus, "appointment_id", appointmentID)
	return outcome, nil
}

func (w *Workflow) dispatch(ctx context.Context, rec intake.Record, eventType notify.EventType, status, requestID string) string {
	if w.notifier == nil {
		return ""
	}
	start, _ := startTime(rec)
	var startPtr *time.Time
	if !start.IsZero() {
		startPtr = &start
	}
	return w.notifier.Dispatch(ctx, notify.Event{
		Type:         eventType,
		RequestID:    requestID,
		PatientName:  strings.TrimSpace(firstValue(rec, "first_name", "name") + " " + firstValue(rec, "surname", "last_name")),
		PatientEmail: firstValue(rec, "email", "email_address"),
		PatientPhone: firstValue(rec, "phone", "phone_number", "mobile"),
		SlotID:       firstValue(rec, slotRefKeys...),
		SlotStart:    startPtr,
		Status:       status,
	})
}

func joinWarnings(parts ...string) string {
	joined := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			joined = append(joined, p)
		}
	}
	return strings.Join(joined, "; ")
}

// firstValue returns the first non-empty string value among the given keys.
func firstValue(rec intake.Record, keys ...string) string {
	for _, key := range keys {
		if value, ok := rec[key]; ok && !isEmpty(value) {
			return strings.TrimSpace(asString(value))
		}
	}
	return ""
}

// startTime derives the slot start from the request record.
func startTime(rec intake.Record) (time.Time, bool) {
	for _, key := range startKeys {
		value, ok := rec[key]
		if !ok || isEmpty(value) {
			continue
		}
		switch t := value.(type) {
		case time.Time:
			return t, true
		case *time.Time:
			if t != nil {
				return *t, true
			}
		case string:
			for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
				if parsed, err := time.Parse(layout, strings.TrimSpace(t)); err == nil {
					return parsed, true
				}
			}
		}
	}
	return time.Time{}, false
}

func durationMinutes(rec intake.Record) int {
	for _, key := range schema.DurationCandidates {
		value, ok := rec[key]
		if !ok {
			continue
		}
		switch d := value.(type) {
		case int:
			if d > 0 {
				return d
			}
		case int32:
			if d > 0 {
				return int(d)
			}
		case int64:
			if d > 0 {
				return int(d)
			}
		case float64:
			if d > 0 {
				return int(d)
			}
		}
	}
	return DefaultDurationMinutes
}
