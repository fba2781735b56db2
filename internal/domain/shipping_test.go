package domain

import "testing"

func TestCheapestQuote_PicksLowestCost(t *testing.T) {
	quotes := []ShippingQuote{
		{ProviderID: "courierguy", ServiceCode: "ECO", CostMinor: 140},
		{ProviderID: "fastway", ServiceCode: "STD", CostMinor: 105},
		{ProviderID: "courierguy", ServiceCode: "OVN", CostMinor: 180},
	}

	best, ok := CheapestQuote(quotes)
	if !ok {
		t.Fatal("expected a quote to be selected")
	}
	if best.CostMinor != 105 || best.ProviderID != "fastway" {
		t.Fatalf("expected fastway/105, got %s/%d", best.ProviderID, best.CostMinor)
	}
}

func TestCheapestQuote_TieKeepsFirstSeen(t *testing.T) {
	quotes := []ShippingQuote{
		{ProviderID: "courierguy", ServiceCode: "ECO", CostMinor: 105},
		{ProviderID: "fastway", ServiceCode: "STD", CostMinor: 105},
	}

	best, _ := CheapestQuote(quotes)
	if best.ProviderID != "courierguy" {
		t.Fatalf("tie must keep first-seen provider, got %s", best.ProviderID)
	}
}

func TestCheapestQuote_Empty(t *testing.T) {
	if _, ok := CheapestQuote(nil); ok {
		t.Fatal("empty quote list must not select anything")
	}
}

func TestAddressComplete(t *testing.T) {
	addr := Address{Street: "12 Jorissen St", City: "Johannesburg", Province: "Gauteng", PostalCode: "2001"}
	if !addr.Complete() {
		t.Fatal("expected address to be complete")
	}

	addr.PostalCode = ""
	if addr.Complete() {
		t.Fatal("address without postal code must be incomplete")
	}
}

func TestBookParcelDefaults(t *testing.T) {
	p := BookParcel("item-1")
	if p.WeightKG != BookProfileWeightKG || p.LengthCM != BookProfileLengthCM {
		t.Fatalf("unexpected book profile: %+v", p)
	}
	if p.Reference != "item-1" {
		t.Fatalf("reference not propagated: %+v", p)
	}
}
