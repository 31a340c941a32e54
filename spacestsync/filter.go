package spacestsync

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
)

// BoundingBox is an axis-aligned geographic box in WGS84 degrees.
type BoundingBox struct {
	MinLat float64
	MaxLat float64
	MinLng float64
	MaxLng float64
}

func (b BoundingBox) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// MarketRules are the admission rules for the student-rental market we serve:
// a closed monthly-rent band and the service area. Listings outside either
// are skipped, never stored.
type MarketRules struct {
	MinPrice decimal.Decimal
	MaxPrice decimal.Decimal
	Area     BoundingBox
}

// milanArea covers the Milan urban area where the platform operates.
var milanArea = BoundingBox{
	MinLat: 45.35,
	MaxLat: 45.62,
	MinLng: 9.00,
	MaxLng: 9.35,
}

// DefaultMarketRules returns the standard [300, 1200] EUR/month band over the
// Milan area. Both band edges can be overridden from the environment.
func DefaultMarketRules() MarketRules {
	return MarketRules{
		MinPrice: decimalEnv("IMPORT_MIN_PRICE", decimal.NewFromInt(300)),
		MaxPrice: decimalEnv("IMPORT_MAX_PRICE", decimal.NewFromInt(1200)),
		Area:     milanArea,
	}
}

// Admit reports whether the listing is in-market, and a reason when it is not.
// Coordinates equal to (0, 0) are treated as missing: that point is in the
// Gulf of Guinea, not on any listing.
func (r MarketRules) Admit(l *ExternalListing) (bool, string) {
	rent := l.MonthlyRent()
	if rent.LessThan(r.MinPrice) || rent.GreaterThan(r.MaxPrice) {
		return false, fmt.Sprintf("monthly rent %s outside band [%s, %s]",
			rent.StringFixed(2), r.MinPrice.StringFixed(2), r.MaxPrice.StringFixed(2))
	}

	lat, lng := l.Coordinates()
	if lat == 0 && lng == 0 {
		return false, "coordinates missing"
	}
	if !r.Area.Contains(lat, lng) {
		return false, fmt.Sprintf("coordinates (%.5f, %.5f) outside service area", lat, lng)
	}
	return true, ""
}

func decimalEnv(key string, fallback decimal.Decimal) decimal.Decimal {
	if raw := os.Getenv(key); raw != "" {
		if d, err := decimal.NewFromString(raw); err == nil {
			return d
		}
	}
	return fallback
}
