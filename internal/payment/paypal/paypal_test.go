package paypal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newGatewayServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/oauth2/token" {
			user, pass, ok := r.BasicAuth()
			if !ok || user != "client-1" || pass != "secret-1" {
				t.Fatalf("unexpected basic auth: %s/%s", user, pass)
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"access_token": "token-1"})
			return
		}
		if r.Header.Get("Authorization") != "Bearer token-1" {
			t.Fatalf("missing bearer token")
		}
		handler(w, r)
	}))
}

func testConfig(baseURL string) *Config {
	cfg, err := ParseConfig(map[string]interface{}{
		"client_id":     "client-1",
		"client_secret": "secret-1",
		"base_url":      baseURL,
		"webhook_id":    "wh-1",
		"currency":      "usd",
	})
	if err != nil {
		panic(err)
	}
	return cfg
}

func TestParseConfigDefaults(t *testing.T) {
	cfg := testConfig("https://api-m.sandbox.paypal.com")
	if cfg.Currency != "USD" {
		t.Fatalf("expected USD, got %s", cfg.Currency)
	}
	if cfg.UserAction != "PAY_NOW" || cfg.ShippingPreference != "NO_SHIPPING" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("validate config failed: %v", err)
	}
}

func TestValidateConfigRejectsBadCurrency(t *testing.T) {
	cfg, err := ParseConfig(map[string]interface{}{
		"client_id":     "client-1",
		"client_secret": "secret-1",
		"currency":      "US",
	})
	if err != nil {
		t.Fatalf("parse config failed: %v", err)
	}
	if err := ValidateConfig(cfg); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected config invalid, got %v", err)
	}
}

func TestCreateOrder(t *testing.T) {
	server := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/checkout/orders" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		var payload map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload failed: %v", err)
		}
		units := payload["purchase_units"].([]interface{})
		unit := units[0].(map[string]interface{})
		if unit["invoice_id"] != "P260209120000000001ABCDE" {
			t.Fatalf("unexpected invoice_id: %v", unit["invoice_id"])
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "PPORDER-1",
			"status": "CREATED",
			"links": []map[string]interface{}{
				{"rel": "self", "href": "https://api.paypal.example/self"},
				{"rel": "approve", "href": "https://www.paypal.example/approve/PPORDER-1"},
			},
		})
	})
	defer server.Close()

	cfg := testConfig(server.URL)
	result, err := CreateOrder(context.Background(), cfg, CreateInput{
		TradeNo:     "P260209120000000001ABCDE",
		Amount:      "100.00",
		Description: "测试订单",
		ReturnURL:   "https://pay.example.com/return/P260209120000000001ABCDE",
		CancelURL:   "https://pay.example.com/return/P260209120000000001ABCDE",
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	if result.OrderID != "PPORDER-1" {
		t.Fatalf("unexpected order id: %s", result.OrderID)
	}
	if result.ApprovalURL != "https://www.paypal.example/approve/PPORDER-1" {
		t.Fatalf("unexpected approval url: %s", result.ApprovalURL)
	}
}

func TestCaptureOrder(t *testing.T) {
	server := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/checkout/orders/PPORDER-2/capture" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "PPORDER-2",
			"status": "COMPLETED",
			"purchase_units": []map[string]interface{}{
				{
					"payments": map[string]interface{}{
						"captures": []map[string]interface{}{
							{
								"id":          "CAPTURE-2",
								"status":      "COMPLETED",
								"invoice_id":  "P260209120000000002ABCDE",
								"amount":      map[string]string{"value": "100.00", "currency_code": "USD"},
								"create_time": "2026-02-09T04:30:45Z",
							},
						},
					},
				},
			},
		})
	})
	defer server.Close()

	cfg := testConfig(server.URL)
	result, err := CaptureOrder(context.Background(), cfg, "PPORDER-2")
	if err != nil {
		t.Fatalf("capture order failed: %v", err)
	}
	if result.CaptureID != "CAPTURE-2" || result.Status != "COMPLETED" {
		t.Fatalf("unexpected capture result: %+v", result)
	}
	if result.InvoiceID != "P260209120000000002ABCDE" {
		t.Fatalf("unexpected invoice id: %s", result.InvoiceID)
	}
	if result.PaidAt == nil {
		t.Fatalf("expected paid time")
	}
}

func TestRefundCapture(t *testing.T) {
	server := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/payments/captures/CAPTURE-3/refund" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		var payload map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload failed: %v", err)
		}
		amount := payload["amount"].(map[string]interface{})
		if amount["value"] != "40.00" || amount["currency_code"] != "USD" {
			t.Fatalf("unexpected amount: %v", amount)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "REFUND-3",
			"status": "COMPLETED",
		})
	})
	defer server.Close()

	cfg := testConfig(server.URL)
	result, err := RefundCapture(context.Background(), cfg, RefundInput{
		CaptureID: "CAPTURE-3",
		Amount:    "40.00",
		InvoiceID: "R26ABCDEFGHIJ1234",
	})
	if err != nil {
		t.Fatalf("refund failed: %v", err)
	}
	if !result.Completed || result.RefundID != "REFUND-3" {
		t.Fatalf("unexpected refund result: %+v", result)
	}
}

func TestParseWebhookEventCapture(t *testing.T) {
	body := []byte(`{
		"id": "WH-1",
		"event_type": "payment.capture.completed",
		"create_time": "2026-02-09T04:31:00Z",
		"resource": {
			"id": "CAPTURE-4",
			"status": "COMPLETED",
			"invoice_id": "P260209120000000004ABCDE",
			"amount": {"value": "100.00", "currency_code": "USD"},
			"create_time": "2026-02-09T04:30:45Z",
			"supplementary_data": {"related_ids": {"order_id": "PPORDER-4"}}
		}
	}`)
	event, err := ParseWebhookEvent(body)
	if err != nil {
		t.Fatalf("parse webhook failed: %v", err)
	}
	if event.EventType != "PAYMENT.CAPTURE.COMPLETED" {
		t.Fatalf("unexpected event type: %s", event.EventType)
	}
	if event.InvoiceID() != "P260209120000000004ABCDE" {
		t.Fatalf("unexpected invoice id: %s", event.InvoiceID())
	}
	if event.CaptureID() != "CAPTURE-4" {
		t.Fatalf("unexpected capture id: %s", event.CaptureID())
	}
	if event.RelatedOrderID() != "PPORDER-4" {
		t.Fatalf("unexpected related order id: %s", event.RelatedOrderID())
	}
	value, currency := event.CaptureAmount()
	if value != "100.00" || currency != "USD" {
		t.Fatalf("unexpected amount: %s %s", value, currency)
	}
	if event.PaidAt() == nil {
		t.Fatalf("expected paid time")
	}
}

func TestParseWebhookEventApprovedOrder(t *testing.T) {
	body := []byte(`{
		"id": "WH-2",
		"event_type": "CHECKOUT.ORDER.APPROVED",
		"resource": {
			"id": "PPORDER-5",
			"status": "APPROVED",
			"purchase_units": [{"invoice_id": "P260209120000000005ABCDE"}],
			"payer": {"email_address": "buyer@example.com"}
		}
	}`)
	event, err := ParseWebhookEvent(body)
	if err != nil {
		t.Fatalf("parse webhook failed: %v", err)
	}
	if event.RelatedOrderID() != "PPORDER-5" {
		t.Fatalf("unexpected related order id: %s", event.RelatedOrderID())
	}
	if event.InvoiceID() != "P260209120000000005ABCDE" {
		t.Fatalf("unexpected invoice id: %s", event.InvoiceID())
	}
	if event.PayerEmail() != "buyer@example.com" {
		t.Fatalf("unexpected payer email: %s", event.PayerEmail())
	}
	if event.ResourceStatus() != "APPROVED" {
		t.Fatalf("unexpected status: %s", event.ResourceStatus())
	}
}

func TestParseWebhookEventRejectsMissingType(t *testing.T) {
	if _, err := ParseWebhookEvent([]byte(`{"id":"WH-3"}`)); !errors.Is(err, ErrResponseInvalid) {
		t.Fatalf("expected response invalid, got %v", err)
	}
}
