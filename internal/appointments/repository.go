// Package appointments persists confirmed clinic visits. Appointment tables
// vary in which optional columns they carry, so inserts shed unknown optional
// columns one at a time instead of failing outright.
package appointments

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/harborclinic/booking-platform/internal/observability/metrics"
	"github.com/harborclinic/booking-platform/internal/pgerr"
	"github.com/harborclinic/booking-platform/pkg/logging"
)

// DefaultTable is the appointments table when none is configured.
const DefaultTable = "appointments"

// ErrAppointmentNotFound is returned when no row matches the id.
var ErrAppointmentNotFound = errors.New("appointment not found")

// optionalColumns may legitimately be absent from a deployment's table and
// are dropped from the payload when Postgres rejects them. The loop over
// these is what bounds the retry: each failure removes one column, so at most
// len(optionalColumns) extra attempts happen.
var optionalColumns = map[string]bool{
	"slot_id":            true,
	"surname":            true,
	"email":              true,
	"phone":              true,
	"location":           true,
	"notes":              true,
	"booking_request_id": true,
	"source":             true,
}

var undefinedColumnName = regexp.MustCompile(`column "([^"]+)"`)

// Querier is the pgx subset the repository needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository writes appointment rows.
type Repository struct {
	db      Querier
	table   string
	metrics *metrics.BookingMetrics
	logger  *logging.Logger
}

// NewRepository creates an appointments repository.
func NewRepository(db Querier, table string, m *metrics.BookingMetrics, logger *logging.Logger) *Repository {
	if db == nil {
		panic("appointments: querier required")
	}
	if table == "" {
		table = DefaultTable
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Repository{db: db, table: table, metrics: m, logger: logger}
}

// Insert persists an appointment, pruning empty optional fields up front and
// dropping any optional column the table rejects. Returns the stored id.
func (r *Repository) Insert(ctx context.Context, appt *Appointment) (string, error) {
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	payload := r.payload(appt)

	for {
		err := r.exec(ctx, payload)
		if err == nil {
			return appt.ID, nil
		}
		if !pgerr.UndefinedColumn(err) {
			return "", fmt.Errorf("appointments: insert: %w", err)
		}
		column := offendingColumn(err)
		if column == "" || !optionalColumns[column] {
			return "", fmt.Errorf("appointments: insert: %w", err)
		}
		if _, present := payload[column]; !present {
			// Already dropped; nothing left to shed for this error.
			return "", fmt.Errorf("appointments: insert: %w", err)
		}
		r.logger.Warn("appointment table lacks optional column, dropping and retrying",
			"table", r.table, "column", column)
		r.metrics.ObserveSchemaDrift(r.table)
		delete(payload, column)
	}
}

// Delete removes an appointment. Used as the compensating action when a later
// step of the same approval fails.
func (r *Repository) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", pgx.Identifier{r.table}.Sanitize())
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("appointments: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

// payload builds the insert map, omitting empty optional values.
func (r *Repository) payload(appt *Appointment) map[string]any {
	out := map[string]any{
		"id":         appt.ID,
		"first_name": appt.FirstName,
		"start_time": appt.StartAt,
		"end_time":   appt.EndAt,
		"created_at": time.Now().UTC(),
	}
	if appt.CreatedAt != nil {
		out["created_at"] = *appt.CreatedAt
	}
	put := func(key, value string) {
		if strings.TrimSpace(value) != "" {
			out[key] = value
		}
	}
	put("slot_id", appt.SlotID)
	put("surname", appt.Surname)
	put("email", appt.Email)
	put("phone", appt.Phone)
	put("location", appt.Location)
	put("notes", appt.Notes)
	put("booking_request_id", appt.BookingRequestID)
	put("source", appt.Source)
	return out
}

func (r *Repository) exec(ctx context.Context, payload map[string]any) error {
	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	cols := make([]string, 0, len(keys))
	params := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for i, key := range keys {
		cols = append(cols, pgx.Identifier{key}.Sanitize())
		params = append(params, fmt.Sprintf("$%d", i+1))
		args = append(args, payload[key])
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		pgx.Identifier{r.table}.Sanitize(), strings.Join(cols, ", "), strings.Join(params, ", "))
	_, err := r.db.Exec(ctx, query, args...)
	return err
}

// offendingColumn extracts the column name from an undefined-column error.
func offendingColumn(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.ColumnName != "" {
		return pgErr.ColumnName
	}
	if match := undefinedColumnName.FindStringSubmatch(err.Error()); len(match) == 2 {
		return match[1]
	}
	return ""
}
