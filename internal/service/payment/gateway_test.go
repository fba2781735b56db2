package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGatewayRefundFullAmount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/refunds" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}

		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		// Полный возврат не передаёт сумму: её определяет шлюз.
		if _, present := req["amount_minor"]; present {
			t.Error("full refund must omit amount_minor")
		}
		if req["payment_reference"] != "pay-1" {
			t.Errorf("unexpected reference %v", req["payment_reference"])
		}

		_, _ = w.Write([]byte(`{"refund_reference": "rf-42", "status": "success", "amount_minor": 45000}`))
	}))
	defer srv.Close()

	client := NewGatewayClient(srv.URL, "key")
	result, err := client.Refund(context.Background(), "pay-1", nil, "seller declined")
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if result.RefundReference != "rf-42" || result.AmountMinor != 45000 {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(result.Raw) == 0 {
		t.Fatal("raw gateway response must be captured")
	}
}

func TestGatewayRefundFailureKeepsRawBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error": "already refunded"}`))
	}))
	defer srv.Close()

	client := NewGatewayClient(srv.URL, "key")
	result, err := client.Refund(context.Background(), "pay-2", nil, "")
	if err == nil {
		t.Fatal("expected error on gateway failure")
	}
	if string(result.Raw) != `{"error": "already refunded"}` {
		t.Fatalf("raw body must survive failures, got %q", result.Raw)
	}
}

func TestGatewayRefundNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"refund_reference": "rf-43", "status": "pending_review", "amount_minor": 0}`))
	}))
	defer srv.Close()

	client := NewGatewayClient(srv.URL, "key")
	result, err := client.Refund(context.Background(), "pay-3", nil, "")
	if err == nil {
		t.Fatal("expected error for non-success status")
	}
	if result.Status != "pending_review" {
		t.Fatalf("status must be surfaced, got %q", result.Status)
	}
}
