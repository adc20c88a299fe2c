package payments

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/harborclinic/booking-platform/pkg/logging"
)

// OfflineProvider is the stand-in used when no payment endpoint is
// configured: every charge resolves to a paid outcome with a synthetic
// reference so staging and offline environments can exercise the full flow.
//
// This MUST be gated by configuration (ALLOW_OFFLINE_PAYMENTS) and should
// never be enabled in production.
type OfflineProvider struct {
	logger *logging.Logger
}

// NewOfflineProvider creates the offline stand-in.
func NewOfflineProvider(logger *logging.Logger) *OfflineProvider {
	if logger == nil {
		logger = logging.Default()
	}
	return &OfflineProvider{logger: logger}
}

func (p *OfflineProvider) Name() string { return "offline" }

// Charge synthesizes a paid outcome.
func (p *OfflineProvider) Charge(ctx context.Context, req ChargeRequest) (*ProviderResult, error) {
	_ = ctx
	reference := fmt.Sprintf("offline-%s", uuid.NewString())
	p.logger.Info("offline payment synthesized",
		"slot_id", req.SlotID, "amount_minor_units", req.AmountMinorUnits, "reference", reference)
	return &ProviderResult{
		Status:    "paid",
		Reference: reference,
		Raw: map[string]any{
			"status":    "paid",
			"reference": reference,
			"provider":  "offline",
		},
	}, nil
}

var (
	_ Provider = (*HTTPProvider)(nil)
	_ Provider = (*OfflineProvider)(nil)
)
