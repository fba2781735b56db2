package courierguy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mzansimarket/fulfillment/internal/domain"
)

func testAddresses() (domain.Address, domain.Address) {
	origin := domain.Address{
		Street: "12 Jorissen St", City: "Johannesburg", Province: "Gauteng", PostalCode: "2001",
	}
	destination := domain.Address{
		Street: "4 Long St", City: "Cape Town", Province: "Western Cape", PostalCode: "8001",
	}
	return origin, destination
}

func TestGetQuotesNormalization(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/rates" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req ratesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Parcels) != 1 || req.Parcels[0].WeightKG != domain.BookProfileWeightKG {
			t.Errorf("unexpected parcels %+v", req.Parcels)
		}

		// Тарифы в рандах; нормализация обязана перевести в центы.
		_, _ = w.Write([]byte(`{
			"rates": [
				{"service_level": {"code": "ECO", "name": "Economy"}, "rate": 105.50, "delivery_days": 3},
				{"service_level": {"code": "ONX", "name": "Overnight"}, "rate": 189.00, "delivery_days": 1}
			]
		}`))
	}))
	defer srv.Close()

	client := New(srv.URL, "key")
	origin, destination := testAddresses()

	quotes, err := client.GetQuotes(context.Background(), origin, destination, []domain.Parcel{domain.BookParcel("item-1")})
	if err != nil {
		t.Fatalf("get quotes: %v", err)
	}
	if len(quotes) != 2 {
		t.Fatalf("expected 2 quotes, got %d", len(quotes))
	}
	if quotes[0].CostMinor != 10550 {
		t.Fatalf("rate must be converted to minor units, got %d", quotes[0].CostMinor)
	}
	if quotes[0].ProviderID != "courierguy" || quotes[0].ServiceCode != "ECO" {
		t.Fatalf("unexpected quote %+v", quotes[0])
	}
}

func TestBookShipment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/shipments" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req shipmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.ServiceLevelCode != "ECO" || req.CustomerRef != "ord-1" {
			t.Errorf("unexpected request %+v", req)
		}

		_, _ = w.Write([]byte(`{"id": "shp-77", "tracking_reference": "TCG00123", "waybill_url": "https://waybills/shp-77.pdf"}`))
	}))
	defer srv.Close()

	client := New(srv.URL, "key")
	origin, destination := testAddresses()

	booking, err := client.BookShipment(context.Background(), domain.BookingRequest{
		Quote:       domain.ShippingQuote{ProviderID: "courierguy", ServiceCode: "ECO", CostMinor: 10550},
		Origin:      origin,
		Destination: destination,
		Parcels:     []domain.Parcel{domain.BookParcel("item-1")},
		Reference:   "ord-1",
	})
	if err != nil {
		t.Fatalf("book shipment: %v", err)
	}
	if booking.TrackingNumber != "TCG00123" || booking.BookingID != "shp-77" {
		t.Fatalf("unexpected booking %+v", booking)
	}
	if booking.BookedAt.IsZero() {
		t.Fatal("booked_at must be set")
	}
}

func TestBookShipmentWithoutTracking(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id": "shp-78"}`))
	}))
	defer srv.Close()

	client := New(srv.URL, "key")
	origin, destination := testAddresses()

	_, err := client.BookShipment(context.Background(), domain.BookingRequest{
		Quote:       domain.ShippingQuote{ServiceCode: "ECO"},
		Origin:      origin,
		Destination: destination,
		Reference:   "ord-2",
	})
	if err == nil {
		t.Fatal("expected error for shipment without tracking reference")
	}
}
