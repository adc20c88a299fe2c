package payments

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/harborclinic/booking-platform/internal/schema"
	"github.com/harborclinic/booking-platform/pkg/logging"
)

// BookingHandler exposes the patient payment entry point.
type BookingHandler struct {
	orchestrator *Orchestrator
	sources      []schema.Source
	logger       *logging.Logger
}

// NewBookingHandler creates the handler. sources supplies the default slot
// source when the request does not name a table.
func NewBookingHandler(orchestrator *Orchestrator, sources []schema.Source, logger *logging.Logger) *BookingHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &BookingHandler{orchestrator: orchestrator, sources: sources, logger: logger}
}

type bookingRequest struct {
	SlotID     string         `json:"slot_id"`
	SlotTable  string         `json:"slot_table,omitempty"`
	SlotSchema string         `json:"slot_schema,omitempty"`
	Patient    Patient        `json:"patient"`
	Notes      string         `json:"notes,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Payment    map[string]any `json:"payment,omitempty"`
}

type bookingResponse struct {
	Success      bool          `json:"success"`
	Message      string        `json:"message"`
	Payment      *PaymentInfo  `json:"payment,omitempty"`
	Confirmation *Confirmation `json:"confirmation,omitempty"`
	Warning      string        `json:"warning,omitempty"`
}

// CreateBooking handles POST /bookings.
func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req bookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode booking request", "error", err)
		writeJSON(w, http.StatusBadRequest, bookingResponse{Message: "invalid request body"})
		return
	}

	result, err := h.orchestrator.ProcessBooking(r.Context(), BookingInput{
		SlotID:   req.SlotID,
		Source:   h.resolveSource(req),
		Patient:  req.Patient,
		Notes:    req.Notes,
		Metadata: req.Metadata,
		Payment:  req.Payment,
	})
	if err != nil {
		h.logger.Error("booking flow failed", "error", err, "slot_id", req.SlotID)
		writeJSON(w, http.StatusInternalServerError, bookingResponse{Message: "internal error processing booking"})
		return
	}

	writeJSON(w, result.HTTPStatus, bookingResponse{
		Success:      result.Success,
		Message:      result.Message,
		Payment:      result.Payment,
		Confirmation: result.Confirmation,
		Warning:      result.Warning,
	})
}

// resolveSource picks the request's table or falls back to the first
// configured source.
func (h *BookingHandler) resolveSource(req bookingRequest) schema.Source {
	if table := strings.TrimSpace(req.SlotTable); table != "" {
		return schema.Source{
			Schema:       strings.TrimSpace(req.SlotSchema),
			Table:        table,
			FilterColumn: "start_time",
		}
	}
	if len(h.sources) > 0 {
		return h.sources[0]
	}
	return schema.ParseSources("")[0]
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
