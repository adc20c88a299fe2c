// Package intake persists a patient's reservation intent. Booking request
// tables drift between deployments, so writes tolerate unknown columns by
// retrying once with a reduced payload.
package intake

import (
	"context"
	"errors"
	"fmt"
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

// DefaultTable is the booking request table when none is configured.
const DefaultTable = "booking_requests"

// ErrRequestNotFound is returned when no booking request matches the id.
var ErrRequestNotFound = errors.New("booking request not found")

// Record is a drift-tolerant booking request payload: the record's own keys
// determine which physical columns are written or inspected.
type Record map[string]any

// requiredKeys is the minimal field set every booking request table is
// expected to carry. The insert fallback reduces the payload to these.
var requiredKeys = map[string]bool{
	"id":         true,
	"slot_id":    true,
	"slot_table": true,
	"first_name": true,
	"email":      true,
	"phone":      true,
	"status":     true,
	"created_at": true,
}

// Querier is the pgx subset the repository needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository writes and reads booking request rows.
type Repository struct {
	db      Querier
	table   string
	metrics *metrics.BookingMetrics
	logger  *logging.Logger
}

// NewRepository creates an intake repository.
func NewRepository(db Querier, table string, m *metrics.BookingMetrics, logger *logging.Logger) *Repository {
	if db == nil {
		panic("intake: querier required")
	}
	if table == "" {
		table = DefaultTable
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Repository{db: db, table: table, metrics: m, logger: logger}
}

// Insert persists the enriched record. If the insert fails because the table
// lacks some of the enriched columns, it retries exactly once with the
// required-fields-only subset. Both attempts failing is fatal to the caller.
// Returns the request id.
func (r *Repository) Insert(ctx context.Context, rec Record) (string, error) {
	if rec == nil {
		rec = Record{}
	}
	id, _ := rec["id"].(string)
	if id == "" {
		id = uuid.NewString()
		rec["id"] = id
	}
	if _, ok := rec["created_at"]; !ok {
		rec["created_at"] = time.Now().UTC()
	}

	err := r.exec(ctx, rec)
	if err == nil {
		return id, nil
	}
	if !pgerr.UndefinedColumn(err) {
		return "", fmt.Errorf("intake: insert: %w", err)
	}

	r.logger.Warn("booking request insert hit unknown column, retrying with minimal payload",
		"table", r.table, "request_id", id, "error", err)
	r.metrics.ObserveSchemaDrift(r.table)
	if err := r.exec(ctx, r.minimal(rec)); err != nil {
		return "", fmt.Errorf("intake: fallback insert: %w", err)
	}
	return id, nil
}

// minimal reduces a record to the supported required-field subset.
func (r *Repository) minimal(rec Record) Record {
	out := Record{}
	for key, value := range rec {
		if requiredKeys[key] {
			out[key] = value
		}
	}
	return out
}

func (r *Repository) exec(ctx context.Context, rec Record) error {
	keys := make([]string, 0, len(rec))
	for key := range rec {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	cols := make([]string, 0, len(keys))
	params := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for i, key := range keys {
		cols = append(cols, pgx.Identifier{key}.Sanitize())
		params = append(params, fmt.Sprintf("$%d", i+1))
		args = append(args, rec[key])
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		pgx.Identifier{r.table}.Sanitize(), strings.Join(cols, ", "), strings.Join(params, ", "))
	_, err := r.db.Exec(ctx, query, args...)
	return err
}

// Get loads a booking request row as a raw record.
func (r *Repository) Get(ctx context.Context, id string) (Record, error) {
	query := fmt.Sprintf("SELECT * FROM %s WHERE id = $1 LIMIT 1", pgx.Identifier{r.table}.Sanitize())
	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("intake: get: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("intake: get: %w", err)
		}
		return nil, ErrRequestNotFound
	}
	values, err := rows.Values()
	if err != nil {
		return nil, fmt.Errorf("intake: get: %w", err)
	}
	rec := make(Record, len(values))
	for i, fd := range fields {
		if i < len(values) {
			rec[fd.Name] = values[i]
		}
	}
	return rec, rows.Err()
}

// UpdateFields writes the given fields on one booking request row. Used by
// the approval workflow for status and timestamp columns.
func (r *Repository) UpdateFields(ctx context.Context, id string, fields Record) error {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	sets := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys)+1)
	for i, key := range keys {
		sets = append(sets, fmt.Sprintf("%s = $%d", pgx.Identifier{key}.Sanitize(), i+1))
		args = append(args, fields[key])
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d",
		pgx.Identifier{r.table}.Sanitize(), strings.Join(sets, ", "), len(args))
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("intake: update fields: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRequestNotFound
	}
	return nil
}
