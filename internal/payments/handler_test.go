package payments

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/harborclinic/booking-platform/internal/schema"
)

func newTestHandler(t *testing.T, slotStore *stubSlotStore) *BookingHandler {
	t.Helper()
	o := NewOrchestrator(slotStore, &stubRequestStore{}, NewOfflineProvider(nil), &stubNotifier{}, nil, nil)
	return NewBookingHandler(o, schema.ParseSources(""), nil)
}

func TestCreateBookingSuccess(t *testing.T) {
	h := newTestHandler(t, &stubSlotStore{slot: availableSlot()})

	body := `{"slot_id":"S1","patient":{"first_name":"Sam","email":"sam@x.com","phone":"0123"}}`
	req := httptest.NewRequest(http.MethodPost, "/bookings", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.CreateBooking(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp bookingResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success {
		t.Errorf("expected success, got %+v", resp)
	}
	if resp.Payment == nil || resp.Payment.Status != StatusPaid {
		t.Errorf("expected paid payment info, got %+v", resp.Payment)
	}
	if resp.Confirmation == nil || resp.Confirmation.Slot == nil {
		t.Error("expected confirmation with slot details")
	}
}

func TestCreateBookingMalformedBody(t *testing.T) {
	h := newTestHandler(t, &stubSlotStore{slot: availableSlot()})

	req := httptest.NewRequest(http.MethodPost, "/bookings", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.CreateBooking(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestCreateBookingMissingPatientFields(t *testing.T) {
	h := newTestHandler(t, &stubSlotStore{slot: availableSlot()})

	body := `{"slot_id":"S1","patient":{"first_name":"Sam"}}`
	req := httptest.NewRequest(http.MethodPost, "/bookings", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.CreateBooking(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestCreateBookingConflict(t *testing.T) {
	slot := availableSlot()
	slot.IsBooked = true
	h := newTestHandler(t, &stubSlotStore{slot: slot})

	body := `{"slot_id":"S1","patient":{"first_name":"Sam","email":"sam@x.com","phone":"0123"}}`
	req := httptest.NewRequest(http.MethodPost, "/bookings", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.CreateBooking(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Errorf("expected JSON content type, got %q", rec.Header().Get("Content-Type"))
	}
}

func TestResolveSourcePrefersRequestTable(t *testing.T) {
	h := newTestHandler(t, &stubSlotStore{slot: availableSlot()})

	src := h.resolveSource(bookingRequest{SlotTable: "clinic_slots", SlotSchema: "public"})
	if src.Table != "clinic_slots" || src.Schema != "public" {
		t.Errorf("unexpected source %+v", src)
	}

	src = h.resolveSource(bookingRequest{})
	if src.Table != "appointment_slots" {
		t.Errorf("expected default source, got %+v", src)
	}
}
