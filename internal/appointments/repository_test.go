package appointments

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/harborclinic/booking-platform/internal/observability/metrics"
)

// anyArgs builds n wildcard matchers: pgxmock matches argument lists exactly,
// so every expectation must carry the arity of the statement it stubs.
func anyArgs(n int) []interface{} {
	args := make([]interface{}, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func testAppointment() *Appointment {
	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	return &Appointment{
		FirstName: "Sam",
		Surname:   "Porter",
		Email:     "sam@x.com",
		StartAt:   start,
		EndAt:     start.Add(time.Hour),
		Notes:     "first visit",
		Source:    SourceBookingRequest,
	}
}

func TestInsertDropsUnknownOptionalColumns(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	reg := prometheus.NewRegistry()
	repo := NewRepository(mock, "", metrics.NewBookingMetrics(reg), nil)

	mock.ExpectExec(`INSERT INTO "appointments"`).
		WithArgs(anyArgs(9)...).
		WillReturnError(&pgconn.PgError{Code: "42703", ColumnName: "notes"})
	mock.ExpectExec(`INSERT INTO "appointments"`).
		WithArgs(anyArgs(8)...).
		WillReturnError(&pgconn.PgError{Code: "42703", Message: `column "surname" of relation "appointments" does not exist`})
	mock.ExpectExec(`INSERT INTO "appointments"`).
		WithArgs(anyArgs(7)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, err := repo.Insert(context.Background(), testAppointment())
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if id == "" {
		t.Fatal("expected generated appointment id")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}

	// One increment per dropped column.
	expected := `
		# HELP clinic_booking_schema_drift_retry_total Writes retried after an unknown-column error
		# TYPE clinic_booking_schema_drift_retry_total counter
		clinic_booking_schema_drift_retry_total{table="appointments"} 2
	`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "clinic_booking_schema_drift_retry_total"); err != nil {
		t.Errorf("drift retry counter: %v", err)
	}
}

func TestInsertRequiredColumnMissingIsFatal(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := NewRepository(mock, "", nil, nil)

	// start_time is not optional, so the loop must not strip it.
	mock.ExpectExec(`INSERT INTO "appointments"`).
		WithArgs(anyArgs(9)...).
		WillReturnError(&pgconn.PgError{Code: "42703", ColumnName: "start_time"})

	if _, err := repo.Insert(context.Background(), testAppointment()); err == nil {
		t.Fatal("expected fatal error for missing required column")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unexpected retry: %v", err)
	}
}

func TestInsertRepeatedRejectionTerminates(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := NewRepository(mock, "", nil, nil)

	// Postgres keeps naming a column we already dropped: the loop must stop
	// instead of spinning.
	mock.ExpectExec(`INSERT INTO "appointments"`).
		WithArgs(anyArgs(9)...).
		WillReturnError(&pgconn.PgError{Code: "42703", ColumnName: "notes"})
	mock.ExpectExec(`INSERT INTO "appointments"`).
		WithArgs(anyArgs(8)...).
		WillReturnError(&pgconn.PgError{Code: "42703", ColumnName: "notes"})

	if _, err := repo.Insert(context.Background(), testAppointment()); err == nil {
		t.Fatal("expected termination with error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteMissingRowIsNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := NewRepository(mock, "", nil, nil)

	mock.ExpectExec(`DELETE FROM "appointments" WHERE id = \$1`).
		WithArgs("A1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	if err := repo.Delete(context.Background(), "A1"); !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("expected ErrAppointmentNotFound, got %v", err)
	}
}
