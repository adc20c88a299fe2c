package approval

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/harborclinic/booking-platform/internal/pgerr"
	"github.com/harborclinic/booking-platform/internal/schema"
	"github.com/harborclinic/booking-platform/pkg/logging"
)

// Querier is the subset of pgxpool.Pool the committer needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// ErrSlotNotReserved means no configured source accepted the conditional
// booked-flag update for the referenced slot.
var ErrSlotNotReserved = errors.New("slot could not be reserved in any configured source")

// SlotCommitter flips a slot's booked flag without knowing up front which
// table, booked column, or key column the slot lives behind. It walks every
// configured source and every plausible column pair until one conditional
// update lands.
type SlotCommitter struct {
	db      Querier
	sources []schema.Source
	logger  *logging.Logger
}

func NewSlotCommitter(db Querier, sources []schema.Source, logger *logging.Logger) *SlotCommitter {
	if logger == nil {
		logger = logging.Default()
	}
	if len(sources) == 0 {
		sources = schema.ParseSources("")
	}
	return &SlotCommitter{db: db, sources: sources, logger: logger}
}

// Reserve attempts the conditional booked-flag update for slotRef across all
// sources. An unknown-column error means the candidate pair does not exist on
// that table and the next one is tried. The first update that affects a row
// wins.
func (c *SlotCommitter) Reserve(ctx context.Context, slotRef string) error {
	var lastErr error
	for _, source := range c.sources {
		for _, bookedCol := range schema.BookedCandidates {
			for _, matchCol := range schema.MatchCandidates {
				booked := pgx.Identifier{bookedCol}.Sanitize()
				query := fmt.Sprintf("UPDATE %s SET %s = true WHERE %s::text = $1 AND %s = false",
					source.Qualified(), booked, pgx.Identifier{matchCol}.Sanitize(), booked)

				tag, err := c.db.Exec(ctx, query, slotRef)
				if err != nil {
					if pgerr.UndefinedColumn(err) {
						continue
					}
					lastErr = err
					continue
				}
				if tag.RowsAffected() > 0 {
					c.logger.Info("slot reserved via approval",
						"source", source.Label(), "booked_column", bookedCol, "match_column", matchCol, "slot_ref", slotRef)
					return nil
				}
			}
		}
	}
	if lastErr != nil {
		return fmt.Errorf("approval: reserve slot %s: %w", slotRef, lastErr)
	}
	return ErrSlotNotReserved
}
