package approval

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/harborclinic/booking-platform/internal/intake"
	"github.com/harborclinic/booking-platform/pkg/logging"
)

// Handler exposes the staff decision endpoint.
type Handler struct {
	workflow *Workflow
	logger   *logging.Logger
}

func NewHandler(workflow *Workflow, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{workflow: workflow, logger: logger}
}

type decisionRequest struct {
	Status string `json:"status"`
}

type decisionResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	RequestID     string `json:"request_id,omitempty"`
	Status        string `json:"status,omitempty"`
	AppointmentID string `json:"appointment_id,omitempty"`
	Warning       string `json:"warning,omitempty"`
}

// Decide handles POST /admin/requests/{id}/decision.
func (h *Handler) Decide(w http.ResponseWriter, r *http.Request) {
	requestID := strings.TrimSpace(chi.URLParam(r, "id"))
	if requestID == "" {
		writeJSON(w, http.StatusBadRequest, decisionResponse{Message: "missing request id"})
		return
	}

	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, decisionResponse{Message: "invalid request body"})
		return
	}
	next := strings.ToLower(strings.TrimSpace(req.Status))

	outcome, err := h.workflow.HandleApproval(r.Context(), requestID, next)
	if err != nil {
		h.writeError(w, requestID, next, err)
		return
	}

	writeJSON(w, http.StatusOK, decisionResponse{
		Success:       true,
		Message:       "booking request " + outcome.Status,
		RequestID:     outcome.RequestID,
		Status:        outcome.Status,
		AppointmentID: outcome.AppointmentID,
		Warning:       outcome.Warning,
	})
}

func (h *Handler) writeError(w http.ResponseWriter, requestID, next string, err error) {
	switch {
	case errors.Is(err, ErrInvalidStatus):
		writeJSON(w, http.StatusBadRequest, decisionResponse{Message: err.Error()})
	case errors.Is(err, intake.ErrRequestNotFound):
		writeJSON(w, http.StatusNotFound, decisionResponse{Message: "booking request not found"})
	case errors.Is(err, ErrNotPending), errors.Is(err, ErrDecisionInProgress):
		writeJSON(w, http.StatusConflict, decisionResponse{Message: err.Error()})
	case errors.Is(err, ErrMissingStartTime):
		writeJSON(w, http.StatusUnprocessableEntity, decisionResponse{Message: err.Error()})
	default:
		h.logger.Error("approval failed", "request_id", requestID, "status", next, "error", err)
		writeJSON(w, http.StatusInternalServerError, decisionResponse{Message: "internal error applying decision"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
