package slots

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/harborclinic/booking-platform/internal/schema"
)

func newAdminServer(t *testing.T) (*httptest.Server, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	t.Cleanup(mock.Close)

	repo := NewRepository(mock, 25, "GBP", nil, nil)
	h := NewAdminHandler(repo, schema.ParseSources("appointment_slots"), nil)

	r := chi.NewRouter()
	r.Get("/admin/slots", h.List)
	r.Post("/admin/slots", h.Create)
	r.Patch("/admin/slots/{id}", h.Update)
	r.Delete("/admin/slots/{id}", h.Delete)
	r.Post("/admin/slots/{id}/release", h.Release)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, mock
}

func expectSample(mock pgxmock.PgxPoolIface) {
	rows := pgxmock.NewRows([]string{"id", "start_time", "is_booked", "duration_minutes", "price_cents", "currency"}).
		AddRow("S1", time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC), false, 30, int64(5000), "GBP")
	mock.ExpectQuery(`SELECT \* FROM "appointment_slots" LIMIT 25`).WillReturnRows(rows)
}

func TestAdminListSlots(t *testing.T) {
	srv, mock := newAdminServer(t)

	expectSample(mock)
	listRows := pgxmock.NewRows([]string{"id", "start_time", "is_booked", "duration_minutes", "price_cents", "currency"}).
		AddRow("S1", time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC), false, 30, int64(5000), "GBP").
		AddRow("S2", time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC), true, 30, int64(5000), "GBP")
	mock.ExpectQuery(`SELECT \* FROM "appointment_slots" WHERE "start_time" >= \$1 ORDER BY "start_time"`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(listRows)

	resp, err := http.Get(srv.URL + "/admin/slots")
	if err != nil {
		t.Fatalf("list slots: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var decoded struct {
		Source string `json:"source"`
		Slots  []Slot `json:"slots"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded.Slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(decoded.Slots))
	}
	if !decoded.Slots[1].IsBooked {
		t.Error("second slot should be booked")
	}
}

func TestAdminCreateSlot(t *testing.T) {
	srv, mock := newAdminServer(t)

	expectSample(mock)
	// Create binds id, start, booked flag, duration, currency, and price for
	// the sampled schema; pgxmock needs the exact arity to match.
	mock.ExpectExec(`INSERT INTO "appointment_slots"`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	body := `{"id":"S9","start_at":"2025-06-03T10:00:00Z","duration_minutes":45,"price_minor_units":7500}`
	resp, err := http.Post(srv.URL+"/admin/slots", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("create slot: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var decoded map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded["id"] != "S9" {
		t.Errorf("expected id S9, got %q", decoded["id"])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAdminCreateSlotRejectsMissingStart(t *testing.T) {
	srv, mock := newAdminServer(t)
	expectSample(mock)

	body := `{"duration_minutes":45}`
	resp, err := http.Post(srv.URL+"/admin/slots", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("create slot: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestAdminReleaseSlot(t *testing.T) {
	srv, mock := newAdminServer(t)

	expectSample(mock)
	mock.ExpectExec(`UPDATE "appointment_slots" SET "is_booked" = false WHERE "id" = \$1`).
		WithArgs("S1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	resp, err := http.Post(srv.URL+"/admin/slots/S1/release", "application/json", nil)
	if err != nil {
		t.Fatalf("release slot: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestAdminDeleteSlotNotFound(t *testing.T) {
	srv, mock := newAdminServer(t)

	expectSample(mock)
	mock.ExpectExec(`DELETE FROM "appointment_slots" WHERE "id" = \$1`).
		WithArgs("S404").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/admin/slots/S404", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete slot: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestAdminUnknownSource(t *testing.T) {
	srv, _ := newAdminServer(t)

	resp, err := http.Get(srv.URL + "/admin/slots?source=not_a_table")
	if err != nil {
		t.Fatalf("list slots: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}
