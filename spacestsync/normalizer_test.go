package spacestsync

import (
	"encoding/json"
	"testing"

	"github.com/Teodorcosmovici/Flat2study-GitHub-sub000/models"
	"github.com/shopspring/decimal"
)

func TestNormalizeFillsDefaults(t *testing.T) {
	ext := &ExternalListing{
		Code:  "SP-100",
		Price: json.Number("650"),
	}
	cls := Classification{Type: models.PropertyTypeStudio, MappedCategory: models.CategoryMonolocale}

	listing := Normalize(ext, 7, cls)

	if listing.AgencyId != 7 {
		t.Fatalf("AgencyId = %d, want 7", listing.AgencyId)
	}
	if listing.Title != "Monolocale in Milano" {
		t.Fatalf("synthesized title = %q", listing.Title)
	}
	if listing.City != "Milano" || listing.Country != "IT" {
		t.Fatalf("city/country defaults wrong: %q/%q", listing.City, listing.Country)
	}
	if listing.Bedrooms != 0 {
		t.Fatalf("studio without declared bedrooms should default to 0, got %d", listing.Bedrooms)
	}
	if listing.BillsIncluded == nil || *listing.BillsIncluded {
		t.Fatal("bills should default to not included")
	}
	if listing.Furnished == nil || !*listing.Furnished {
		t.Fatal("furnished should default to true for the student market")
	}
	if !listing.Deposit.Equal(decimal.Zero) {
		t.Fatalf("deposit should default to 0, got %s", listing.Deposit)
	}
	if listing.Status != models.ListingStatusPending {
		t.Fatalf("imported listings must start pending, got %s", listing.Status)
	}
	if listing.ExternalSource == nil || *listing.ExternalSource != models.ExternalSourceSpacest {
		t.Fatal("external source not set")
	}
	if listing.ExternalListingId == nil || *listing.ExternalListingId != "SP-100" {
		t.Fatal("external listing id not set")
	}
	if listing.LastSyncedAt == nil {
		t.Fatal("last synced timestamp not set")
	}
	if string(listing.AmenitiesJSON) != "[]" || string(listing.ImagesJSON) != "[]" {
		t.Fatalf("empty media should marshal to [], got %s / %s", listing.AmenitiesJSON, listing.ImagesJSON)
	}
}

func TestNormalizeTitleFallbackWithoutCategory(t *testing.T) {
	ext := &ExternalListing{Code: "SP-110", Price: json.Number("2000")}
	cls := Classification{Type: models.PropertyTypeUnknown}

	listing := Normalize(ext, 1, cls)
	if listing.Title != "Alloggio in Milano" {
		t.Fatalf("unclassified title fallback = %q", listing.Title)
	}
}

func TestNormalizeNonStudioBedroomDefault(t *testing.T) {
	ext := &ExternalListing{Code: "SP-101", Price: json.Number("500")}
	cls := Classification{Type: models.PropertyTypeSingleRoom, MappedCategory: models.CategoryStanza}

	listing := Normalize(ext, 1, cls)
	if listing.Bedrooms != 1 {
		t.Fatalf("non-studio without declared bedrooms should default to 1, got %d", listing.Bedrooms)
	}
}

func TestNormalizeKeepsSourceValues(t *testing.T) {
	two := 2
	falseVal := false
	ext := &ExternalListing{
		Code:          "SP-102",
		Title:         "Bright flat near Bocconi",
		Description:   "  Two bedrooms, renovated.  ",
		Price:         json.Number("1100.50"),
		Deposit:       json.Number("2200"),
		Bedrooms:      &two,
		Bathrooms:     2,
		Address:       "Via Sarfatti 25",
		City:          "milan",
		Latitude:      45.45,
		Longitude:     9.19,
		Furnished:     &falseVal,
		Amenities:     []string{"wifi", "dishwasher"},
		Photos:        []string{"https://img.example/1.jpg"},
		AvailableFrom: "2026-10-01",
	}
	cls := Classification{Type: models.PropertyTypeMultiBedroomApartment, MappedCategory: models.CategoryBilocale}

	listing := Normalize(ext, 3, cls)

	if listing.Title != "Bright flat near Bocconi" {
		t.Fatalf("title overwritten: %q", listing.Title)
	}
	if listing.Description != "Two bedrooms, renovated." {
		t.Fatalf("description not trimmed: %q", listing.Description)
	}
	if listing.City != "Milano" {
		t.Fatalf("city should canonicalize to Milano, got %q", listing.City)
	}
	if !listing.MonthlyRent.Equal(decimal.RequireFromString("1100.50")) {
		t.Fatalf("rent = %s", listing.MonthlyRent)
	}
	if !listing.Deposit.Equal(decimal.NewFromInt(2200)) {
		t.Fatalf("deposit = %s", listing.Deposit)
	}
	if listing.Bedrooms != 2 || listing.Bathrooms != 2 {
		t.Fatalf("rooms = %d/%d", listing.Bedrooms, listing.Bathrooms)
	}
	if listing.Furnished == nil || *listing.Furnished {
		t.Fatal("explicit furnished=false must survive")
	}
	if listing.AvailableFrom == nil || listing.AvailableFrom.Format("2006-01-02") != "2026-10-01" {
		t.Fatalf("available from = %v", listing.AvailableFrom)
	}

	var images []string
	if err := json.Unmarshal(listing.ImagesJSON, &images); err != nil || len(images) != 1 {
		t.Fatalf("images json = %s (%v)", listing.ImagesJSON, err)
	}
}

func TestExternalListingAliases(t *testing.T) {
	raw := []byte(`{
		"id": "ALT-1",
		"type": "Studio",
		"name": "Cosy studio",
		"monthly_price": 700,
		"rooms": 1,
		"lat": 45.47,
		"lng": 9.18,
		"photos": ["https://img.example/a.jpg"]
	}`)
	var ext ExternalListing
	if err := json.Unmarshal(raw, &ext); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if ext.ExternalID() != "ALT-1" {
		t.Fatalf("ExternalID = %q", ext.ExternalID())
	}
	if ext.CategoryLabel() != "Studio" {
		t.Fatalf("CategoryLabel = %q", ext.CategoryLabel())
	}
	if ext.DisplayTitle() != "Cosy studio" {
		t.Fatalf("DisplayTitle = %q", ext.DisplayTitle())
	}
	if !ext.MonthlyRent().Equal(decimal.NewFromInt(700)) {
		t.Fatalf("MonthlyRent = %s", ext.MonthlyRent())
	}
	if n, ok := ext.BedroomCount(); !ok || n != 1 {
		t.Fatalf("BedroomCount = %d, %v", n, ok)
	}
	if lat, lng := ext.Coordinates(); lat != 45.47 || lng != 9.18 {
		t.Fatalf("Coordinates = %v, %v", lat, lng)
	}
	if imgs := ext.ImageURLs(); len(imgs) != 1 {
		t.Fatalf("ImageURLs = %v", imgs)
	}
}

func TestOccupiedRangesDropsMalformed(t *testing.T) {
	ext := &ExternalListing{OccupiedPeriods: []OccupiedPeriod{
		{From: "2026-09-01", To: "2026-09-15"},
		{From: "not-a-date", To: "2026-09-20"},
		{From: "2026-10-10", To: "2026-10-01"},
	}}

	ranges := ext.OccupiedRanges()
	if len(ranges) != 1 {
		t.Fatalf("expected 1 valid range, got %d", len(ranges))
	}
	if ranges[0].From.Format("2006-01-02") != "2026-09-01" {
		t.Fatalf("range start = %v", ranges[0].From)
	}
}
