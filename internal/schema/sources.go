// Package schema resolves which physical tables hold bookable slots and how
// their columns map onto the canonical slot shape. Deployments migrate between
// table layouts faster than releases ship, so the resolver adapts at runtime
// instead of assuming one schema.
package schema

import (
	"strings"

	"github.com/jackc/pgx/v5"
)

// Source identifies one physical table that may hold slot rows. Multiple
// sources are tried independently; there is no cross-source consistency.
type Source struct {
	Schema       string
	Table        string
	FilterColumn string
}

// defaultSources is used when no SLOT_SOURCES configuration is provided.
var defaultSources = []Source{
	{Table: "appointment_slots", FilterColumn: "start_time"},
	{Table: "slots", FilterColumn: "start_time"},
	{Table: "available_slots", FilterColumn: "start_time"},
	{Table: "booking_slots", FilterColumn: "start_time"},
}

// ParseSources turns a comma-separated configuration string of
// "schema:table", "schema.table" or bare "table" entries into an ordered
// source list. An empty string yields the default list.
func ParseSources(cfg string) []Source {
	cfg = strings.TrimSpace(cfg)
	if cfg == "" {
		out := make([]Source, len(defaultSources))
		copy(out, defaultSources)
		return out
	}

	var out []Source
	for _, entry := range strings.Split(cfg, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		src := Source{FilterColumn: "start_time"}
		switch {
		case strings.Contains(entry, ":"):
			parts := strings.SplitN(entry, ":", 2)
			src.Schema = strings.TrimSpace(parts[0])
			src.Table = strings.TrimSpace(parts[1])
		case strings.Contains(entry, "."):
			parts := strings.SplitN(entry, ".", 2)
			src.Schema = strings.TrimSpace(parts[0])
			src.Table = strings.TrimSpace(parts[1])
		default:
			src.Table = entry
		}
		if src.Table == "" {
			continue
		}
		out = append(out, src)
	}
	if len(out) == 0 {
		out = make([]Source, len(defaultSources))
		copy(out, defaultSources)
	}
	return out
}

// Qualified returns the quoted relation identifier for use in SQL.
func (s Source) Qualified() string {
	if s.Schema != "" {
		return pgx.Identifier{s.Schema, s.Table}.Sanitize()
	}
	return pgx.Identifier{s.Table}.Sanitize()
}

// Label returns a human-readable source name for logs.
func (s Source) Label() string {
	if s.Schema != "" {
		return s.Schema + "." + s.Table
	}
	return s.Table
}
