package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/harborclinic/booking-platform/internal/intake"
	"github.com/harborclinic/booking-platform/internal/notify"
	"github.com/harborclinic/booking-platform/internal/observability/metrics"
	"github.com/harborclinic/booking-platform/internal/schema"
	"github.com/harborclinic/booking-platform/internal/slots"
	"github.com/harborclinic/booking-platform/pkg/logging"
)

var paymentsTracer = otel.Tracer("clinic.internal.payments")

// ErrSlotLost marks the post-payment inconsistency: money moved but the
// conditional slot commit affected zero rows. Distinct from ordinary failure
// because it needs manual intervention.
var ErrSlotLost = errors.New("payment succeeded but the slot could not be secured")

// Patient carries the identity fields required to take a booking.
type Patient struct {
	FirstName string `json:"first_name"`
	Surname   string `json:"surname,omitempty"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// Validate enforces the required patient fields.
func (p Patient) Validate() error {
	var missing []string
	if strings.TrimSpace(p.FirstName) == "" {
		missing = append(missing, "first_name")
	}
	if strings.TrimSpace(p.Email) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(p.Phone) == "" {
		missing = append(missing, "phone")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required patient fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// BookingInput is one patient booking attempt.
type BookingInput struct {
	SlotID   string
	Source   schema.Source
	Patient  Patient
	Notes    string
	Metadata map[string]any
	Payment  map[string]any
}

// PaymentInfo is the mapped provider outcome surfaced to the caller.
type PaymentInfo struct {
	Status      Status     `json:"status"`
	Reference   string     `json:"reference,omitempty"`
	ReceiptURL  string     `json:"receipt_url,omitempty"`
	CheckoutURL string     `json:"checkout_url,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// Confirmation is returned for fully committed bookings.
type Confirmation struct {
	Slot      *slots.Slot  `json:"slot"`
	BookingID string       `json:"booking"`
	Payment   *PaymentInfo `json:"payment"`
}

// Result is the outcome of one booking attempt, ready for the HTTP layer.
type Result struct {
	HTTPStatus   int
	Success      bool
	Message      string
	Payment      *PaymentInfo
	Confirmation *Confirmation
	Warning      string
}

// SlotStore is the slot repository surface the orchestrator needs.
type SlotStore interface {
	Resolve(ctx context.Context, source schema.Source) (*slots.Adapter, error)
	Get(ctx context.Context, a *slots.Adapter, slotID string) (*slots.Slot, error)
	Reserve(ctx context.Context, a *slots.Adapter, slotID string) error
}

// RequestStore persists booking requests.
type RequestStore interface {
	Insert(ctx context.Context, rec intake.Record) (string, error)
}

// Notifier dispatches best-effort notifications and returns advisory warning text.
type Notifier interface {
	Dispatch(ctx context.Context, evt notify.Event) string
}

// Orchestrator runs the patient booking flow end to end.
type Orchestrator struct {
	slots    SlotStore
	requests RequestStore
	provider Provider
	notifier Notifier
	metrics  *metrics.BookingMetrics
	logger   *logging.Logger
}

// NewOrchestrator wires the booking flow.
func NewOrchestrator(slotStore SlotStore, requests RequestStore, provider Provider, notifier Notifier, m *metrics.BookingMetrics, logger *logging.Logger) *Orchestrator {
	if slotStore == nil || requests == nil || provider == nil {
		panic("payments: slot store, request store and provider required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Orchestrator{
		slots:    slotStore,
		requests: requests,
		provider: provider,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
	}
}

// ProcessBooking validates, charges, records intent and commits the slot.
// Known outcomes (validation, not found, conflict, declined, slot lost) come
// back as a Result; only unexpected infrastructure failures return an error.
func (o *Orchestrator) ProcessBooking(ctx context.Context, input BookingInput) (*Result, error) {
	started := time.Now()
	defer func() {
		o.metrics.ObserveBookingLatency(time.Since(started).Seconds())
	}()

	ctx, span := paymentsTracer.Start(ctx, "payments.process_booking")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinic.slot_id", input.SlotID),
		attribute.String("clinic.slot_source", input.Source.Label()),
	)

	if err := input.Patient.Validate(); err != nil {
		return &Result{HTTPStatus: http.StatusBadRequest, Message: err.Error()}, nil
	}
	if strings.TrimSpace(input.SlotID) == "" {
		return &Result{HTTPStatus: http.StatusBadRequest, Message: "slot_id is required"}, nil
	}

	adapter, err := o.slots.Resolve(ctx, input.Source)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("resolve slot source: %w", err)
	}
	slot, err := o.slots.Get(ctx, adapter, input.SlotID)
	if errors.Is(err, slots.ErrSlotNotFound) {
		return &Result{HTTPStatus: http.StatusNotFound, Message: "slot not found"}, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("load slot: %w", err)
	}
	if slot.IsBooked {
		return &Result{HTTPStatus: http.StatusConflict, Message: "slot is no longer available"}, nil
	}

	charge := ChargeRequest{
		AmountMinorUnits: chargeAmount(slot),
		Currency:         slot.Currency,
		Description:      fmt.Sprintf("Appointment slot %s", slot.ID),
		Patient:          input.Patient,
		SlotID:           slot.ID,
		Metadata:         input.Metadata,
		Payload:          input.Payment,
	}
	providerResult, err := o.provider.Charge(ctx, charge)
	if err != nil {
		// A provider we could not reach is a declined payment, not a crash:
		// the booking record is still persisted for audit.
		o.logger.Error("payment provider call failed", "error", err, "slot_id", slot.ID)
		span.RecordError(err)
		providerResult = &ProviderResult{Status: "failed", Raw: map[string]any{"error": err.Error()}}
	}
	status := MapProviderStatus(providerResult.Status)
	o.metrics.ObservePayment(string(status))

	payment := &PaymentInfo{
		Status:      status,
		Reference:   providerResult.Reference,
		ReceiptURL:  providerResult.ReceiptURL,
		CheckoutURL: providerResult.CheckoutURL,
		ExpiresAt:   providerResult.ExpiresAt,
	}

	bookingID, err := o.requests.Insert(ctx, o.bookingRecord(input, slot, payment, providerResult))
	if err != nil {
		// Without a persisted record of intent there is nothing safe to
		// commit: stop before touching the slot.
		span.RecordError(err)
		return nil, fmt.Errorf("record booking request: %w", err)
	}

	if status == StatusPaid {
		switch err := o.slots.Reserve(ctx, adapter, slot.ID); {
		case errors.Is(err, slots.ErrAlreadyBooked):
			o.metrics.ObserveReserve("conflict")
			o.logger.Error("slot lost after successful payment",
				"slot_id", slot.ID, "booking_id", bookingID, "payment_reference", payment.Reference)
			span.RecordError(ErrSlotLost)
			result := &Result{
				HTTPStatus: http.StatusInternalServerError,
				Message:    "payment succeeded but the slot could not be secured; manual intervention required",
				Payment:    payment,
			}
			result.Warning = o.dispatch(ctx, input, slot, payment, bookingID)
			return result, nil
		case err != nil:
			o.metrics.ObserveReserve("error")
			span.RecordError(err)
			return nil, fmt.Errorf("commit slot: %w", err)
		default:
			o.metrics.ObserveReserve("reserved")
			slot.IsBooked = true
		}
	}

	result := &Result{Payment: payment}
	switch status {
	case StatusPaid:
		result.HTTPStatus = http.StatusOK
		result.Success = true
		result.Message = "booking confirmed"
		result.Confirmation = &Confirmation{Slot: slot, BookingID: bookingID, Payment: payment}
	case StatusPending:
		result.HTTPStatus = http.StatusAccepted
		result.Message = "payment pending provider confirmation"
	default:
		result.HTTPStatus = http.StatusPaymentRequired
		result.Message = "payment failed"
	}
	result.Warning = o.dispatch(ctx, input, slot, payment, bookingID)
	return result, nil
}

// bookingRecord builds the enriched intake payload.
func (o *Orchestrator) bookingRecord(input BookingInput, slot *slots.Slot, payment *PaymentInfo, providerResult *ProviderResult) intake.Record {
	rec := intake.Record{
		"slot_id":        slot.ID,
		"slot_table":     input.Source.Label(),
		"first_name":     input.Patient.FirstName,
		"email":          input.Patient.Email,
		"phone":          input.Patient.Phone,
		"status":         "pending",
		"payment_status": string(payment.Status),
	}
	if input.Patient.Surname != "" {
		rec["surname"] = input.Patient.Surname
	}
	if input.Notes != "" {
		rec["notes"] = input.Notes
	}
	if payment.Reference != "" {
		rec["payment_reference"] = payment.Reference
	}
	if providerResult != nil && len(providerResult.Raw) > 0 {
		if raw, err := json.Marshal(providerResult.Raw); err == nil {
			rec["provider_response"] = string(raw)
		}
	}
	return rec
}

// dispatch fires payment notifications; the warning never changes the outcome.
func (o *Orchestrator) dispatch(ctx context.Context, input BookingInput, slot *slots.Slot, payment *PaymentInfo, bookingID string) string {
	if o.notifier == nil {
		return ""
	}
	eventType := notify.EventPaymentFailed
	switch payment.Status {
	case StatusPaid:
		eventType = notify.EventPaymentSucceeded
	case StatusPending:
		eventType = notify.EventPaymentPending
	}
	amount := chargeAmount(slot)
	return o.notifier.Dispatch(ctx, notify.Event{
		Type:             eventType,
		PatientName:      strings.TrimSpace(input.Patient.FirstName + " " + input.Patient.Surname),
		PatientEmail:     input.Patient.Email,
		PatientPhone:     input.Patient.Phone,
		SlotID:           slot.ID,
		SlotStart:        slot.StartAt,
		AmountMinorUnits: &amount,
		Currency:         slot.Currency,
		Status:           string(payment.Status),
		Reference:        payment.Reference,
		Detail:           fmt.Sprintf("Booking request %s", bookingID),
	})
}

// chargeAmount prefers the deposit when the slot defines one, otherwise the
// full price. Slots without either charge nothing but still flow through the
// provider for a reference.
func chargeAmount(slot *slots.Slot) int64 {
	if slot.DepositMinorUnits != nil && *slot.DepositMinorUnits > 0 {
		return *slot.DepositMinorUnits
	}
	if slot.PriceMinorUnits != nil {
		return *slot.PriceMinorUnits
	}
	return 0
}
