package slots

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/harborclinic/booking-platform/internal/observability/metrics"
	"github.com/harborclinic/booking-platform/internal/pgerr"
	"github.com/harborclinic/booking-platform/internal/schema"
	"github.com/harborclinic/booking-platform/pkg/logging"
)

var (
	// ErrSlotNotFound is returned when no row matches the slot id.
	ErrSlotNotFound = errors.New("slot not found")
	// ErrAlreadyBooked is returned when the conditional reserve affected zero rows.
	ErrAlreadyBooked = errors.New("slot already booked")
)

// Querier is the subset of pgxpool used by the repository. pgxmock satisfies
// it in tests.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Adapter binds a slot source to the column map and primary key resolved for
// it. Resolved once, reused for every operation against the source.
type Adapter struct {
	Source     schema.Source
	Columns    *schema.ColumnMap
	PrimaryKey string
}

// Repository reads and writes slot rows through resolved sources.
type Repository struct {
	db              Querier
	sampleLimit     int
	defaultCurrency string
	metrics         *metrics.BookingMetrics
	logger          *logging.Logger
}

// NewRepository creates a slot repository.
func NewRepository(db Querier, sampleLimit int, defaultCurrency string, m *metrics.BookingMetrics, logger *logging.Logger) *Repository {
	if db == nil {
		panic("slots: querier required")
	}
	if sampleLimit <= 0 {
		sampleLimit = 25
	}
	if defaultCurrency == "" {
		defaultCurrency = "GBP"
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Repository{db: db, sampleLimit: sampleLimit, defaultCurrency: defaultCurrency, metrics: m, logger: logger}
}

// Resolve samples a batch of rows from the source and derives its adapter.
// Sources whose table is missing entirely surface the underlying error.
func (r *Repository) Resolve(ctx context.Context, source schema.Source) (*Adapter, error) {
	query := fmt.Sprintf("SELECT * FROM %s LIMIT %d", source.Qualified(), r.sampleLimit)
	sample, err := r.collectRows(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("slots: sample %s: %w", source.Label(), err)
	}
	return &Adapter{
		Source:     source,
		Columns:    schema.BuildColumnMap(sample),
		PrimaryKey: schema.DetectPrimaryKey(sample),
	}, nil
}

// List returns normalized future slots from the source. When the source
// declares a filter column the select is constrained to start_at >= now; if
// that column turns out not to exist the query is retried once unfiltered.
func (r *Repository) List(ctx context.Context, a *Adapter, now time.Time) ([]Slot, error) {
	var (
		rows []map[string]any
		err  error
	)
	if col := a.Source.FilterColumn; col != "" {
		query := fmt.Sprintf("SELECT * FROM %s WHERE %s >= $1 ORDER BY %s",
			a.Source.Qualified(), pgx.Identifier{col}.Sanitize(), pgx.Identifier{col}.Sanitize())
		rows, err = r.collectRows(ctx, query, now)
		if pgerr.UndefinedColumn(err) {
			r.logger.Warn("slot filter column missing, retrying unfiltered",
				"source", a.Source.Label(), "column", col)
			r.metrics.ObserveSchemaDrift(a.Source.Table)
			rows, err = r.collectRows(ctx, fmt.Sprintf("SELECT * FROM %s", a.Source.Qualified()))
		}
	} else {
		rows, err = r.collectRows(ctx, fmt.Sprintf("SELECT * FROM %s", a.Source.Qualified()))
	}
	if err != nil {
		return nil, fmt.Errorf("slots: list %s: %w", a.Source.Label(), err)
	}

	out := make([]Slot, 0, len(rows))
	for _, row := range rows {
		out = append(out, slotFromRow(row, a.Columns, a.PrimaryKey, r.defaultCurrency))
	}
	return out, nil
}

// Get loads a single slot by id.
func (r *Repository) Get(ctx context.Context, a *Adapter, slotID string) (*Slot, error) {
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = $1 LIMIT 1",
		a.Source.Qualified(), pgx.Identifier{a.PrimaryKey}.Sanitize())
	rows, err := r.collectRows(ctx, query, slotID)
	if err != nil {
		return nil, fmt.Errorf("slots: get %s: %w", a.Source.Label(), err)
	}
	if len(rows) == 0 {
		return nil, ErrSlotNotFound
	}
	slot := slotFromRow(rows[0], a.Columns, a.PrimaryKey, r.defaultCurrency)
	return &slot, nil
}

// Reserve flips the booked flag false→true with a single conditional update.
// Zero rows affected means the slot was already taken: that result is the
// system's only mutual-exclusion signal, so callers must treat it as a lost
// race, never retry blindly.
func (r *Repository) Reserve(ctx context.Context, a *Adapter, slotID string) error {
	booked := pgx.Identifier{a.Columns.BookedColumn()}.Sanitize()
	query := fmt.Sprintf("UPDATE %s SET %s = true WHERE %s = $1 AND %s = false",
		a.Source.Qualified(), booked, pgx.Identifier{a.PrimaryKey}.Sanitize(), booked)

	tag, err := r.db.Exec(ctx, query, slotID)
	if err != nil {
		return fmt.Errorf("slots: reserve %s: %w", a.Source.Label(), err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyBooked
	}
	r.logger.Info("slot reserved", "source", a.Source.Label(), "slot_id", slotID)
	return nil
}

// Release clears the booked flag. Administrative, not concurrency-critical.
func (r *Repository) Release(ctx context.Context, a *Adapter, slotID string) error {
	booked := pgx.Identifier{a.Columns.BookedColumn()}.Sanitize()
	query := fmt.Sprintf("UPDATE %s SET %s = false WHERE %s = $1",
		a.Source.Qualified(), booked, pgx.Identifier{a.PrimaryKey}.Sanitize())
	tag, err := r.db.Exec(ctx, query, slotID)
	if err != nil {
		return fmt.Errorf("slots: release %s: %w", a.Source.Label(), err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

// Changes carries the staff-editable slot fields. Nil pointers are left
// untouched.
// NewSlot is the payload for creating a slot through the admin surface.
type NewSlot struct {
	ID                string
	StartAt           time.Time
	DurationMinutes   int
	Location          string
	PriceMinorUnits   *int64
	Currency          string
	DepositMinorUnits *int64
	PaymentLink       string
}

// Create inserts a slot row using the first physical column the map knows for
// each field. The booked flag always starts false.
func (r *Repository) Create(ctx context.Context, a *Adapter, slot NewSlot) (string, error) {
	if slot.StartAt.IsZero() {
		return "", fmt.Errorf("slots: create: start time required")
	}
	if slot.DurationMinutes <= 0 {
		return "", fmt.Errorf("slots: create: duration must be positive")
	}
	if slot.ID == "" {
		slot.ID = uuid.New().String()
	}
	if slot.Currency == "" {
		slot.Currency = r.defaultCurrency
	}

	var (
		columns []string
		args    []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		columns = append(columns, pgx.Identifier{column}.Sanitize())
	}
	add(a.PrimaryKey, slot.ID)
	add(a.Columns.StartColumn(), slot.StartAt)
	add(a.Columns.BookedColumn(), false)
	if col := schema.First(a.Columns.Duration); col != "" {
		add(col, slot.DurationMinutes)
	}
	if col := schema.First(a.Columns.Location); col != "" && slot.Location != "" {
		add(col, slot.Location)
	}
	if col := schema.First(a.Columns.Currency); col != "" {
		add(col, slot.Currency)
	}
	if col := schema.First(a.Columns.PaymentLink); col != "" && slot.PaymentLink != "" {
		add(col, slot.PaymentLink)
	}
	if slot.PriceMinorUnits != nil {
		for _, col := range a.Columns.PriceCents {
			add(col, *slot.PriceMinorUnits)
		}
		for _, col := range a.Columns.PriceDecimal {
			add(col, float64(*slot.PriceMinorUnits)/100)
		}
	}
	if slot.DepositMinorUnits != nil {
		for _, col := range a.Columns.Deposit {
			if minorUnitColumn(col) {
				add(col, *slot.DepositMinorUnits)
			} else {
				add(col, float64(*slot.DepositMinorUnits)/100)
			}
		}
	}

	placeholders := make([]string, len(args))
	for i := range args {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		a.Source.Qualified(), strings.Join(columns, ", "), strings.Join(placeholders, ", "))
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return "", fmt.Errorf("slots: create in %s: %w", a.Source.Label(), err)
	}
	r.logger.Info("slot created", "source", a.Source.Label(), "slot_id", slot.ID)
	return slot.ID, nil
}

// Changes carries administrative field updates. Nil means leave unchanged.
type Changes struct {
	StartAt           *time.Time
	DurationMinutes   *int
	Location          *string
	PriceMinorUnits   *int64
	DepositMinorUnits *int64
	PaymentLink       *string
}

// Update applies administrative changes. Money is written to every physical
// money column the map says exists, so a table carrying both a cents and a
// decimal column stays internally consistent.
func (r *Repository) Update(ctx context.Context, a *Adapter, slotID string, changes Changes) error {
	var (
		sets []string
		args []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", pgx.Identifier{column}.Sanitize(), len(args)))
	}

	if changes.StartAt != nil {
		add(a.Columns.StartColumn(), *changes.StartAt)
	}
	if changes.DurationMinutes != nil {
		if col := schema.First(a.Columns.Duration); col != "" {
			add(col, *changes.DurationMinutes)
		}
	}
	if changes.Location != nil {
		if col := schema.First(a.Columns.Location); col != "" {
			add(col, *changes.Location)
		}
	}
	if changes.PaymentLink != nil {
		if col := schema.First(a.Columns.PaymentLink); col != "" {
			add(col, *changes.PaymentLink)
		}
	}
	if changes.PriceMinorUnits != nil {
		for _, col := range a.Columns.PriceCents {
			add(col, *changes.PriceMinorUnits)
		}
		for _, col := range a.Columns.PriceDecimal {
			add(col, float64(*changes.PriceMinorUnits)/100)
		}
	}
	if changes.DepositMinorUnits != nil {
		for _, col := range a.Columns.Deposit {
			if minorUnitColumn(col) {
				add(col, *changes.DepositMinorUnits)
			} else {
				add(col, float64(*changes.DepositMinorUnits)/100)
			}
		}
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, slotID)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d",
		a.Source.Qualified(), strings.Join(sets, ", "), pgx.Identifier{a.PrimaryKey}.Sanitize(), len(args))
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("slots: update %s: %w", a.Source.Label(), err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

// Delete removes a slot row.
func (r *Repository) Delete(ctx context.Context, a *Adapter, slotID string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = $1",
		a.Source.Qualified(), pgx.Identifier{a.PrimaryKey}.Sanitize())
	tag, err := r.db.Exec(ctx, query, slotID)
	if err != nil {
		return fmt.Errorf("slots: delete %s: %w", a.Source.Label(), err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

// collectRows runs a query and materializes each row as a column→value map.
func (r *Repository) collectRows(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []map[string]any
	fields := rows.FieldDescriptions()
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]any, len(values))
		for i, fd := range fields {
			if i < len(values) {
				row[fd.Name] = values[i]
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
