package slots

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/harborclinic/booking-platform/internal/schema"
)

// Slot is the canonical shape of a bookable time window, whatever the
// physical table called its columns.
type Slot struct {
	ID                string     `json:"id"`
	StartAt           *time.Time `json:"start_at,omitempty"`
	DurationMinutes   int        `json:"duration_minutes"`
	Location          string     `json:"location,omitempty"`
	PriceMinorUnits   *int64     `json:"price_minor_units,omitempty"`
	Currency          string     `json:"currency"`
	DepositMinorUnits *int64     `json:"deposit_minor_units,omitempty"`
	PaymentLink       string     `json:"payment_link,omitempty"`
	IsBooked          bool       `json:"is_booked"`
}

// slotFromRow normalizes one raw row through the column map.
func slotFromRow(row map[string]any, m *schema.ColumnMap, primaryKey, defaultCurrency string) Slot {
	slot := Slot{Currency: defaultCurrency}

	if v, ok := row[primaryKey]; ok {
		slot.ID = asString(v)
	}
	for _, col := range m.Start {
		if t, ok := asTime(row[col]); ok {
			slot.StartAt = &t
			break
		}
	}
	for _, col := range m.Duration {
		if n, ok := asInt64(row[col]); ok && n > 0 {
			slot.DurationMinutes = int(n)
			break
		}
	}
	for _, col := range m.Location {
		if s := asString(row[col]); s != "" {
			slot.Location = s
			break
		}
	}
	for _, col := range m.Currency {
		if s := asString(row[col]); s != "" {
			slot.Currency = strings.ToUpper(s)
			break
		}
	}
	for _, col := range m.PaymentLink {
		if s := asString(row[col]); s != "" {
			slot.PaymentLink = s
			break
		}
	}
	// Money may live in integer minor-unit columns or decimal major-unit
	// columns depending on the table; whichever is present wins, minor units
	// first.
	for _, col := range m.PriceCents {
		if n, ok := asInt64(row[col]); ok {
			slot.PriceMinorUnits = &n
			break
		}
	}
	if slot.PriceMinorUnits == nil {
		for _, col := range m.PriceDecimal {
			if f, ok := asFloat64(row[col]); ok {
				n := int64(math.Round(f * 100))
				slot.PriceMinorUnits = &n
				break
			}
		}
	}
	for _, col := range m.Deposit {
		if minorUnitColumn(col) {
			if n, ok := asInt64(row[col]); ok {
				slot.DepositMinorUnits = &n
				break
			}
		} else if f, ok := asFloat64(row[col]); ok {
			n := int64(math.Round(f * 100))
			slot.DepositMinorUnits = &n
			break
		}
	}
	for _, col := range m.Booked {
		if b, ok := asBool(row[col]); ok {
			slot.IsBooked = b
			break
		}
	}
	return slot
}

// minorUnitColumn reports whether a money column stores integer minor units.
func minorUnitColumn(name string) bool {
	return strings.Contains(name, "cents") || strings.Contains(name, "minor") || strings.Contains(name, "pence")
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case []byte:
		return strings.TrimSpace(string(s))
	case nil:
		return ""
	}
	return ""
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t != nil {
			return *t, true
		}
	case string:
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int:
		return int64(n), true
	case float64:
		if n == math.Trunc(n) {
			return int64(n), true
		}
	case pgtype.Numeric:
		// pgx scans NUMERIC columns as pgtype.Numeric; Int64Value rejects
		// fractional values, matching the float64 branch above.
		if i, err := n.Int64Value(); err == nil && i.Valid {
			return i.Int64, true
		}
	case string:
		if parsed, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64); err == nil {
			return parsed, true
		}
	}
	return 0, false
}

func asFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case int:
		return float64(n), true
	case pgtype.Numeric:
		if f, err := n.Float64Value(); err == nil && f.Valid {
			return f.Float64, true
		}
	case string:
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return parsed, true
		}
	}
	return 0, false
}

func asBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "t", "yes", "1":
			return true, true
		case "false", "f", "no", "0", "":
			return false, true
		}
	case int64:
		return b != 0, true
	case int:
		return b != 0, true
	}
	return false, false
}
