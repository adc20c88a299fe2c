// Package approval implements the staff decision flow that turns a pending
// booking request into a confirmed appointment, or declines it. The request
// records it operates on come from external intake channels, so column names
// are discovered from the record itself rather than assumed.
package approval

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harborclinic/booking-platform/internal/intake"
)

// Terminal statuses a staff decision can move a request to.
const (
	StatusApproved  = "approved"
	StatusDeclined  = "declined"
	StatusConverted = "converted"
)

// StatusCandidates is the ordered list of column names that may hold a
// request's status. The first one present on the record wins.
var StatusCandidates = []string{"status", "state", "booking_status", "approval_status", "request_status", "decision"}

// terminalTimestamps maps each terminal status to the timestamp column that
// marks it.
var terminalTimestamps = map[string]string{
	StatusApproved:  "approved_at",
	StatusDeclined:  "declined_at",
	StatusConverted: "converted_at",
}

var pendingValues = map[string]bool{
	"":                 true,
	"pending":          true,
	"new":              true,
	"awaiting":         true,
	"awaiting_payment": true,
}

// ErrNoStatusColumn is returned when a request record carries none of the
// known status columns. The update fails closed rather than silently no-oping.
var ErrNoStatusColumn = errors.New("cannot update status: no status column on booking request")

// ErrNotPending rejects decisions on requests that already reached a terminal
// status.
var ErrNotPending = errors.New("booking request is not pending")

// ValidNextStatus reports whether a staff decision target is one we accept.
func ValidNextStatus(next string) bool {
	switch next {
	case StatusApproved, StatusDeclined, StatusConverted:
		return true
	}
	return false
}

// StatusColumn returns the first status candidate present on the record.
func StatusColumn(rec intake.Record) (string, bool) {
	for _, candidate := range StatusCandidates {
		if _, ok := rec[candidate]; ok {
			return candidate, true
		}
	}
	return "", false
}

// DerivedStatus reads the request's current status, falling back to the
// terminal timestamp columns when no status column exists.
func DerivedStatus(rec intake.Record) string {
	if col, ok := StatusColumn(rec); ok {
		return strings.ToLower(strings.TrimSpace(asString(rec[col])))
	}
	for status, column := range terminalTimestamps {
		if value, ok := rec[column]; ok && !isEmpty(value) {
			return status
		}
	}
	return ""
}

// IsPending reports whether the request is still open for a staff decision.
func IsPending(rec intake.Record) bool {
	return pendingValues[DerivedStatus(rec)]
}

// statusFields builds the update payload for a decision: the discovered
// status column plus whichever timestamp columns the record carries, set or
// cleared to agree with the new status.
func statusFields(rec intake.Record, next string, now time.Time) (intake.Record, error) {
	column, ok := StatusColumn(rec)
	if !ok {
		return nil, ErrNoStatusColumn
	}
	fields := intake.Record{column: next}
	for status, tsColumn := range terminalTimestamps {
		if _, present := rec[tsColumn]; !present {
			continue
		}
		if status == next {
			fields[tsColumn] = now
		} else {
			fields[tsColumn] = nil
		}
	}
	for _, tsColumn := range []string{"processed_at", "updated_at"} {
		if _, present := rec[tsColumn]; present {
			fields[tsColumn] = now
		}
	}
	return fields, nil
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", s)
	}
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case time.Time:
		return t.IsZero()
	case *time.Time:
		return t == nil || t.IsZero()
	}
	return false
}
