package fastway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mzansimarket/fulfillment/internal/domain"
)

func TestGetQuotes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/quote" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("from_postcode") != "2001" || q.Get("to_postcode") != "8001" {
			t.Errorf("unexpected postcodes %v", q)
		}
		if q.Get("weight_kg") != "2.40" {
			t.Errorf("unexpected weight %q", q.Get("weight_kg"))
		}

		_, _ = w.Write([]byte(`{
			"services": [
				{"code": "PARCEL", "description": "Parcel", "price_cents": 9900, "eta_days": 4}
			]
		}`))
	}))
	defer srv.Close()

	client := New(srv.URL, "key")
	quotes, err := client.GetQuotes(context.Background(),
		domain.Address{PostalCode: "2001"},
		domain.Address{PostalCode: "8001"},
		[]domain.Parcel{domain.BookParcel("a"), domain.BookParcel("b")},
	)
	if err != nil {
		t.Fatalf("get quotes: %v", err)
	}
	if len(quotes) != 1 {
		t.Fatalf("expected 1 quote, got %d", len(quotes))
	}
	if quotes[0].ProviderID != "fastway" || quotes[0].CostMinor != 9900 {
		t.Fatalf("unexpected quote %+v", quotes[0])
	}
}

func TestGetQuotesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := New(srv.URL, "key")
	if _, err := client.GetQuotes(context.Background(), domain.Address{}, domain.Address{}, nil); err == nil {
		t.Fatal("expected error on http failure")
	}
}

func TestBookShipment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/consignments" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "key" {
			t.Errorf("missing api key header")
		}
		_, _ = w.Write([]byte(`{"consignment_id": "cn-5", "tracking": "FW9001", "label_url": "https://labels/cn-5.pdf"}`))
	}))
	defer srv.Close()

	client := New(srv.URL, "key")
	booking, err := client.BookShipment(context.Background(), domain.BookingRequest{
		Quote:     domain.ShippingQuote{ProviderID: "fastway", ServiceCode: "PARCEL"},
		Reference: "ord-9",
		Parcels:   []domain.Parcel{domain.BookParcel("a")},
	})
	if err != nil {
		t.Fatalf("book shipment: %v", err)
	}
	if booking.TrackingNumber != "FW9001" || booking.BookingID != "cn-5" {
		t.Fatalf("unexpected booking %+v", booking)
	}
}
