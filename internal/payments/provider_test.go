package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPProviderCharge(t *testing.T) {
	var received map[string]any
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&received)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":      "succeeded",
			"id":          "ch_123",
			"receipt_url": "https://pay.example/r/ch_123",
		})
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "sk_test", 5*time.Second, nil)
	result, err := p.Charge(context.Background(), ChargeRequest{
		AmountMinorUnits: 5000,
		Currency:         "GBP",
		SlotID:           "S1",
		Patient:          Patient{FirstName: "Sam", Email: "sam@x.com", Phone: "0123"},
	})
	if err != nil {
		t.Fatalf("charge failed: %v", err)
	}
	if result.Status != "succeeded" || result.Reference != "ch_123" {
		t.Errorf("unexpected result %+v", result)
	}
	if result.ReceiptURL != "https://pay.example/r/ch_123" {
		t.Errorf("unexpected receipt url %q", result.ReceiptURL)
	}
	if gotAuth != "Bearer sk_test" {
		t.Errorf("expected bearer auth, got %q", gotAuth)
	}
	if received["amount"] != float64(5000) || received["currency"] != "GBP" {
		t.Errorf("unexpected charge body %+v", received)
	}
}

func TestHTTPProviderDeclineIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "declined", "id": "ch_456"})
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "", time.Second, nil)
	result, err := p.Charge(context.Background(), ChargeRequest{AmountMinorUnits: 100, Currency: "GBP"})
	if err != nil {
		t.Fatalf("declined charge should decode, got error: %v", err)
	}
	if result.Status != "declined" {
		t.Errorf("expected declined status, got %q", result.Status)
	}
}

func TestHTTPProviderNonJSONErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway timeout", http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "", time.Second, nil)
	if _, err := p.Charge(context.Background(), ChargeRequest{}); err == nil {
		t.Fatal("expected error for undecodable failure response")
	}
}

func TestHTTPProviderStatusFallbackOnErrorCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "card_expired"})
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "", time.Second, nil)
	result, err := p.Charge(context.Background(), ChargeRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != "failed" {
		t.Errorf("expected failed fallback status, got %q", result.Status)
	}
}

func TestHTTPProviderMissingEndpoint(t *testing.T) {
	p := NewHTTPProvider("", "", time.Second, nil)
	if _, err := p.Charge(context.Background(), ChargeRequest{}); err == nil {
		t.Fatal("expected error when endpoint is unset")
	}
}

func TestOfflineProviderAlwaysPaid(t *testing.T) {
	p := NewOfflineProvider(nil)
	result, err := p.Charge(context.Background(), ChargeRequest{AmountMinorUnits: 2500, Currency: "GBP"})
	if err != nil {
		t.Fatalf("offline charge failed: %v", err)
	}
	if MapProviderStatus(result.Status) != StatusPaid {
		t.Errorf("expected paid status, got %q", result.Status)
	}
	if result.Reference == "" {
		t.Error("expected a generated reference")
	}
}
