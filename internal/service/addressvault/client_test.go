package addressvault

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientDecrypt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/addresses/decrypt" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer vault-token" {
			t.Errorf("unexpected auth header %q", got)
		}

		var req decryptRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Table != "users" || req.TargetID != "seller-1" || req.AddressType != "pickup" {
			t.Errorf("unexpected request %+v", req)
		}

		_ = json.NewEncoder(w).Encode(decryptResponse{
			Street:       "12 Jorissen St",
			Suburb:       "Braamfontein",
			City:         "Johannesburg",
			Province:     "Gauteng",
			PostalCode:   "2001",
			ContactName:  "T Mokoena",
			ContactPhone: "+27110000000",
		})
	}))
	defer srv.Close()

	client := New(srv.URL, "vault-token")
	addr, err := client.Decrypt(context.Background(), "users", "seller-1", "pickup")
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if addr.City != "Johannesburg" || addr.PostalCode != "2001" {
		t.Fatalf("unexpected address %+v", addr)
	}
	if !addr.Complete() {
		t.Fatal("decrypted address must be complete")
	}
}

func TestClientDecryptHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := New(srv.URL, "bad-token")
	if _, err := client.Decrypt(context.Background(), "users", "seller-1", "pickup"); err == nil {
		t.Fatal("expected error on non-2xx response")
	}
}
