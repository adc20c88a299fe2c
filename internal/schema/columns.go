package schema

// Candidate column names per canonical slot field. Order matters: the first
// candidate is the optimistic default when no sample rows exist, and callers
// that probe column-by-column walk these lists front to back.
var (
	StartCandidates        = []string{"start_time", "start_at", "starts_at", "slot_start", "begins_at", "datetime", "date_time"}
	DurationCandidates     = []string{"duration_minutes", "duration_mins", "duration", "length_minutes", "slot_length"}
	LocationCandidates     = []string{"location", "site", "clinic", "room", "branch"}
	PriceCentsCandidates   = []string{"price_cents", "price_minor_units", "amount_cents", "fee_cents", "price_pence"}
	PriceDecimalCandidates = []string{"price", "amount", "fee", "cost"}
	DepositCandidates      = []string{"deposit_cents", "deposit_minor_units", "deposit_amount", "deposit"}
	PaymentLinkCandidates  = []string{"payment_link", "payment_url", "checkout_url", "stripe_link"}
	BookedCandidates       = []string{"is_booked", "booked", "is_reserved", "reserved", "is_taken", "taken"}
	CurrencyCandidates     = []string{"currency", "currency_code"}

	// PrimaryKeyCandidates is the ordered list scanned by DetectPrimaryKey.
	PrimaryKeyCandidates = []string{"id", "slot_id", "uuid", "slug", "reference"}

	// MatchCandidates are the columns a slot reference may be matched against
	// when the exact key column of a table is unknown.
	MatchCandidates = []string{"id", "slot_id", "uuid", "reference"}
)

// ColumnMap records, per canonical field, which physical column names are
// actually present on a source table.
type ColumnMap struct {
	Start        []string
	Duration     []string
	Location     []string
	PriceCents   []string
	PriceDecimal []string
	Deposit      []string
	PaymentLink  []string
	Booked       []string
	Currency     []string
}

// BuildColumnMap derives a column map from a sampled batch of rows. A column
// is considered present when any sampled row carries the key. With no sample
// rows the map falls back to the first candidate for every field.
func BuildColumnMap(sample []map[string]any) *ColumnMap {
	if len(sample) == 0 {
		return &ColumnMap{
			Start:        StartCandidates[:1],
			Duration:     DurationCandidates[:1],
			Location:     LocationCandidates[:1],
			PriceCents:   PriceCentsCandidates[:1],
			PriceDecimal: PriceDecimalCandidates[:1],
			Deposit:      DepositCandidates[:1],
			PaymentLink:  PaymentLinkCandidates[:1],
			Booked:       BookedCandidates[:1],
			Currency:     CurrencyCandidates[:1],
		}
	}

	present := map[string]bool{}
	for _, row := range sample {
		for key := range row {
			present[key] = true
		}
	}

	pick := func(candidates []string) []string {
		var found []string
		for _, c := range candidates {
			if present[c] {
				found = append(found, c)
			}
		}
		return found
	}

	return &ColumnMap{
		Start:        pick(StartCandidates),
		Duration:     pick(DurationCandidates),
		Location:     pick(LocationCandidates),
		PriceCents:   pick(PriceCentsCandidates),
		PriceDecimal: pick(PriceDecimalCandidates),
		Deposit:      pick(DepositCandidates),
		PaymentLink:  pick(PaymentLinkCandidates),
		Booked:       pick(BookedCandidates),
		Currency:     pick(CurrencyCandidates),
	}
}

// First returns the first entry of a candidate set, or "" when none matched.
func First(columns []string) string {
	if len(columns) == 0 {
		return ""
	}
	return columns[0]
}

// BookedColumn returns the authoritative booked-flag column for writes.
func (m *ColumnMap) BookedColumn() string {
	if col := First(m.Booked); col != "" {
		return col
	}
	return BookedCandidates[0]
}

// StartColumn returns the authoritative start-time column.
func (m *ColumnMap) StartColumn() string {
	if col := First(m.Start); col != "" {
		return col
	}
	return StartCandidates[0]
}

// DetectPrimaryKey scans the fixed key-name candidates and returns the first
// one present in any sampled row, defaulting to "id".
func DetectPrimaryKey(sample []map[string]any) string {
	for _, candidate := range PrimaryKeyCandidates {
		for _, row := range sample {
			if _, ok := row[candidate]; ok {
				return candidate
			}
		}
	}
	return "id"
}
