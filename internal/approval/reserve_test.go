package approval

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/harborclinic/booking-platform/internal/schema"
)

func undefinedColumn(name string) *pgconn.PgError {
	return &pgconn.PgError{Code: "42703", Message: `column "` + name + `" does not exist`, ColumnName: name}
}

func TestSlotCommitterFirstCandidateWins(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	committer := NewSlotCommitter(mock, schema.ParseSources("appointment_slots"), nil)

	mock.ExpectExec(`UPDATE "appointment_slots" SET "is_booked" = true WHERE "id"::text = \$1 AND "is_booked" = false`).
		WithArgs("S1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := committer.Reserve(context.Background(), "S1"); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSlotCommitterWalksCandidatesOnUnknownColumn(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	committer := NewSlotCommitter(mock, schema.ParseSources("appointment_slots"), nil)

	// The table has neither "is_booked" nor an "id" column; the sweep must
	// keep walking until the booked/slot_id pair lands.
	for _, match := range schema.MatchCandidates {
		mock.ExpectExec(`UPDATE "appointment_slots" SET "is_booked" = true WHERE "` + match + `"::text = \$1 AND "is_booked" = false`).
			WithArgs("S1").
			WillReturnError(undefinedColumn("is_booked"))
	}
	mock.ExpectExec(`UPDATE "appointment_slots" SET "booked" = true WHERE "id"::text = \$1 AND "booked" = false`).
		WithArgs("S1").
		WillReturnError(undefinedColumn("id"))
	mock.ExpectExec(`UPDATE "appointment_slots" SET "booked" = true WHERE "slot_id"::text = \$1 AND "booked" = false`).
		WithArgs("S1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := committer.Reserve(context.Background(), "S1"); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSlotCommitterZeroRowsEverywhere(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	committer := NewSlotCommitter(mock, schema.ParseSources("appointment_slots"), nil)

	for range schema.BookedCandidates {
		for range schema.MatchCandidates {
			mock.ExpectExec(`UPDATE "appointment_slots" SET`).
				WithArgs("S1").
				WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		}
	}

	if err := committer.Reserve(context.Background(), "S1"); !errors.Is(err, ErrSlotNotReserved) {
		t.Fatalf("expected ErrSlotNotReserved, got %v", err)
	}
}

func TestSlotCommitterSurfacesNonDriftError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	committer := NewSlotCommitter(mock, schema.ParseSources("appointment_slots"), nil)

	boom := errors.New("connection reset")
	for range schema.BookedCandidates {
		for range schema.MatchCandidates {
			mock.ExpectExec(`UPDATE "appointment_slots" SET`).
				WithArgs("S1").
				WillReturnError(boom)
		}
	}

	if err := committer.Reserve(context.Background(), "S1"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped connection error, got %v", err)
	}
}
