package slots

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/harborclinic/booking-platform/internal/schema"
	"github.com/harborclinic/booking-platform/pkg/logging"
)

// AdminHandler exposes staff slot management: list, create, update, delete
// and release. All routes sit behind admin auth.
type AdminHandler struct {
	repo    *Repository
	sources []schema.Source
	logger  *logging.Logger
}

func NewAdminHandler(repo *Repository, sources []schema.Source, logger *logging.Logger) *AdminHandler {
	if logger == nil {
		logger = logging.Default()
	}
	if len(sources) == 0 {
		sources = schema.ParseSources("")
	}
	return &AdminHandler{repo: repo, sources: sources, logger: logger}
}

type slotPayload struct {
	ID                string     `json:"id,omitempty"`
	StartAt           *time.Time `json:"start_at,omitempty"`
	DurationMinutes   *int       `json:"duration_minutes,omitempty"`
	Location          *string    `json:"location,omitempty"`
	PriceMinorUnits   *int64     `json:"price_minor_units,omitempty"`
	Currency          string     `json:"currency,omitempty"`
	DepositMinorUnits *int64     `json:"deposit_minor_units,omitempty"`
	PaymentLink       *string    `json:"payment_link,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// List handles GET /admin/slots. Only upcoming slots are returned unless
// include_past is set.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	adapter, err := h.resolve(r)
	if err != nil {
		h.writeError(w, "", err)
		return
	}

	since := time.Now().UTC()
	if r.URL.Query().Get("include_past") == "true" {
		since = time.Time{}
	}
	list, err := h.repo.List(r.Context(), adapter, since)
	if err != nil {
		h.writeError(w, "", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"source": adapter.Source.Label(),
		"slots":  list,
	})
}

// Create handles POST /admin/slots.
func (h *AdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	adapter, err := h.resolve(r)
	if err != nil {
		h.writeError(w, "", err)
		return
	}

	var payload slotPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if payload.StartAt == nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "start_at is required"})
		return
	}
	duration := 0
	if payload.DurationMinutes != nil {
		duration = *payload.DurationMinutes
	}
	if duration <= 0 {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "duration_minutes must be positive"})
		return
	}

	slot := NewSlot{
		ID:                payload.ID,
		StartAt:           *payload.StartAt,
		DurationMinutes:   duration,
		Currency:          payload.Currency,
		PriceMinorUnits:   payload.PriceMinorUnits,
		DepositMinorUnits: payload.DepositMinorUnits,
	}
	if payload.Location != nil {
		slot.Location = *payload.Location
	}
	if payload.PaymentLink != nil {
		slot.PaymentLink = *payload.PaymentLink
	}

	id, err := h.repo.Create(r.Context(), adapter, slot)
	if err != nil {
		h.writeError(w, "", err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"id": id})
}

// Update handles PATCH /admin/slots/{id}.
func (h *AdminHandler) Update(w http.ResponseWriter, r *http.Request) {
	adapter, slotID, err := h.resolveWithID(r)
	if err != nil {
		h.writeError(w, slotID, err)
		return
	}

	var payload slotPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	changes := Changes{
		StartAt:           payload.StartAt,
		DurationMinutes:   payload.DurationMinutes,
		Location:          payload.Location,
		PriceMinorUnits:   payload.PriceMinorUnits,
		DepositMinorUnits: payload.DepositMinorUnits,
		PaymentLink:       payload.PaymentLink,
	}
	if err := h.repo.Update(r.Context(), adapter, slotID, changes); err != nil {
		h.writeError(w, slotID, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"id": slotID})
}

// Delete handles DELETE /admin/slots/{id}.
func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	adapter, slotID, err := h.resolveWithID(r)
	if err != nil {
		h.writeError(w, slotID, err)
		return
	}
	if err := h.repo.Delete(r.Context(), adapter, slotID); err != nil {
		h.writeError(w, slotID, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Release handles POST /admin/slots/{id}/release. It flips the booked flag
// back to false so a slot freed by a cancellation can be sold again.
func (h *AdminHandler) Release(w http.ResponseWriter, r *http.Request) {
	adapter, slotID, err := h.resolveWithID(r)
	if err != nil {
		h.writeError(w, slotID, err)
		return
	}
	if err := h.repo.Release(r.Context(), adapter, slotID); err != nil {
		h.writeError(w, slotID, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"id": slotID, "is_booked": false})
}

// resolve picks the source from the ?source= query or the first configured
// one, then derives its adapter.
func (h *AdminHandler) resolve(r *http.Request) (*Adapter, error) {
	source := h.sources[0]
	if label := strings.TrimSpace(r.URL.Query().Get("source")); label != "" {
		found := false
		for _, s := range h.sources {
			if s.Label() == label || s.Table == label {
				source = s
				found = true
				break
			}
		}
		if !found {
			return nil, errUnknownSource
		}
	}
	return h.repo.Resolve(r.Context(), source)
}

func (h *AdminHandler) resolveWithID(r *http.Request) (*Adapter, string, error) {
	slotID := strings.TrimSpace(chi.URLParam(r, "id"))
	if slotID == "" {
		return nil, "", errMissingSlotID
	}
	adapter, err := h.resolve(r)
	return adapter, slotID, err
}

var (
	errUnknownSource = errors.New("unknown slot source")
	errMissingSlotID = errors.New("missing slot id")
)

func (h *AdminHandler) writeError(w http.ResponseWriter, slotID string, err error) {
	switch {
	case errors.Is(err, errMissingSlotID), errors.Is(err, errUnknownSource):
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, ErrSlotNotFound):
		respondJSON(w, http.StatusNotFound, errorResponse{Error: "slot not found"})
	default:
		h.logger.Error("slot admin operation failed", "slot_id", slotID, "error", err)
		respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
