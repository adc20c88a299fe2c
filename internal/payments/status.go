package payments

import "strings"

// Status is the mapped payment outcome.
type Status string

const (
	StatusPaid    Status = "paid"
	StatusPending Status = "pending"
	StatusFailed  Status = "failed"
)

// MapProviderStatus folds the provider's status vocabulary onto ours,
// case-insensitively. Anything unrecognized is a failure.
func MapProviderStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "paid", "succeeded", "success":
		return StatusPaid
	case "pending", "requires_action", "requires_payment_method":
		return StatusPending
	default:
		return StatusFailed
	}
}
