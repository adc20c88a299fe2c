// Package payments drives the patient booking flow: charge the provider,
// record the reservation intent, and commit the slot with the one conditional
// write the whole system leans on.
package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/harborclinic/booking-platform/pkg/logging"
)

// ChargeRequest is what the provider needs to take a payment.
type ChargeRequest struct {
	AmountMinorUnits int64
	Currency         string
	Description      string
	Patient          Patient
	SlotID           string
	Metadata         map[string]any
	Payload          map[string]any
}

// ProviderResult is the provider's verdict plus whatever extras it returned.
type ProviderResult struct {
	Status      string
	Reference   string
	ReceiptURL  string
	CheckoutURL string
	ExpiresAt   *time.Time
	Raw         map[string]any
}

// Provider is the external payment collaborator.
type Provider interface {
	Name() string
	Charge(ctx context.Context, req ChargeRequest) (*ProviderResult, error)
}

// HTTPProvider charges through a JSON-over-HTTP payment endpoint.
type HTTPProvider struct {
	endpoint string
	apiKey   string
	client   *http.Client
	logger   *logging.Logger
}

// NewHTTPProvider creates a provider client for the configured endpoint.
func NewHTTPProvider(endpoint, apiKey string, timeout time.Duration, logger *logging.Logger) *HTTPProvider {
	if logger == nil {
		logger = logging.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPProvider{
		endpoint: strings.TrimSpace(endpoint),
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

func (p *HTTPProvider) Name() string { return "http" }

// Charge posts the charge request and decodes the provider's response. A non-2xx
// response is still decoded when possible: a declined charge is an outcome, not
// a transport failure.
func (p *HTTPProvider) Charge(ctx context.Context, req ChargeRequest) (*ProviderResult, error) {
	if p.endpoint == "" {
		return nil, fmt.Errorf("payments: provider endpoint not configured")
	}

	body := map[string]any{
		"amount":      req.AmountMinorUnits,
		"currency":    req.Currency,
		"description": req.Description,
		"reference":   req.SlotID,
		"customer": map[string]any{
			"first_name": req.Patient.FirstName,
			"surname":    req.Patient.Surname,
			"email":      req.Patient.Email,
			"phone":      req.Patient.Phone,
		},
	}
	if len(req.Metadata) > 0 {
		body["metadata"] = req.Metadata
	}
	if len(req.Payload) > 0 {
		body["payment"] = req.Payload
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("payments: encode charge: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("payments: build charge request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("payments: provider call: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("payments: read provider response: %w", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("payments: provider returned status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("payments: decode provider response: %w", err)
	}

	result := &ProviderResult{Raw: decoded}
	result.Status = stringField(decoded, "status")
	if result.Status == "" && resp.StatusCode >= 300 {
		result.Status = "failed"
	}
	result.Reference = firstStringField(decoded, "reference", "id", "payment_id", "transaction_id")
	result.ReceiptURL = stringField(decoded, "receipt_url")
	result.CheckoutURL = firstStringField(decoded, "checkout_url", "payment_url")
	if expires := firstStringField(decoded, "expires_at", "expiry"); expires != "" {
		if t, err := time.Parse(time.RFC3339, expires); err == nil {
			result.ExpiresAt = &t
		}
	}
	return result, nil
}

func stringField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func firstStringField(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := stringField(m, key); s != "" {
			return s
		}
	}
	return ""
}
