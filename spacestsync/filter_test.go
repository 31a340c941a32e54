package spacestsync

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func marketListing(price string, lat, lng float64) *ExternalListing {
	return &ExternalListing{
		Code:      "TEST-1",
		Price:     json.Number(price),
		Latitude:  lat,
		Longitude: lng,
	}
}

func TestAdmitPriceBandIsClosed(t *testing.T) {
	rules := MarketRules{
		MinPrice: decimal.NewFromInt(300),
		MaxPrice: decimal.NewFromInt(1200),
		Area:     milanArea,
	}
	// Duomo, safely inside the box.
	lat, lng := 45.464, 9.19

	for _, price := range []string{"300", "300.00", "1200", "750.50"} {
		if ok, reason := rules.Admit(marketListing(price, lat, lng)); !ok {
			t.Fatalf("price %s should be admitted, rejected with %q", price, reason)
		}
	}
	for _, price := range []string{"299.99", "1200.01", "0", "5000"} {
		ok, reason := rules.Admit(marketListing(price, lat, lng))
		if ok {
			t.Fatalf("price %s should be rejected", price)
		}
		if !strings.Contains(reason, "band") {
			t.Fatalf("rejection reason should name the price band, got %q", reason)
		}
	}
}

func TestAdmitGeography(t *testing.T) {
	rules := DefaultMarketRules()

	cases := []struct {
		name  string
		lat   float64
		lng   float64
		admit bool
	}{
		{"central Milan", 45.464, 9.19, true},
		{"box corner", 45.35, 9.00, true},
		{"Rome", 41.9028, 12.4964, false},
		{"Monza, just north of the box", 45.58, 9.41, false},
		{"missing coordinates", 0, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, reason := rules.Admit(marketListing("800", tc.lat, tc.lng))
			if ok != tc.admit {
				t.Fatalf("Admit(%v, %v) = %v (%s), want %v", tc.lat, tc.lng, ok, reason, tc.admit)
			}
		})
	}
}

func TestAdmitZeroCoordinatesNeverPassEvenIfBoxCoversOrigin(t *testing.T) {
	rules := MarketRules{
		MinPrice: decimal.NewFromInt(300),
		MaxPrice: decimal.NewFromInt(1200),
		Area:     BoundingBox{MinLat: -10, MaxLat: 50, MinLng: -10, MaxLng: 10},
	}
	ok, reason := rules.Admit(marketListing("800", 0, 0))
	if ok {
		t.Fatal("(0, 0) must always be treated as missing coordinates")
	}
	if reason != "coordinates missing" {
		t.Fatalf("reason = %q, want coordinates missing", reason)
	}
}

func TestDefaultMarketRulesEnvOverride(t *testing.T) {
	t.Setenv("IMPORT_MIN_PRICE", "450")
	t.Setenv("IMPORT_MAX_PRICE", "999.99")

	rules := DefaultMarketRules()
	if !rules.MinPrice.Equal(decimal.NewFromInt(450)) {
		t.Fatalf("MinPrice = %s, want 450", rules.MinPrice)
	}
	if !rules.MaxPrice.Equal(decimal.RequireFromString("999.99")) {
		t.Fatalf("MaxPrice = %s, want 999.99", rules.MaxPrice)
	}
}
