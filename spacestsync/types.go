package spacestsync

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/Teodorcosmovici/Flat2study-GitHub-sub000/models"
	"github.com/shopspring/decimal"
)

// ExternalListing is the untrusted listing payload as it arrives from
// Spacest, either as structured feed JSON or assembled by the HTML scraper.
// Field names vary between feed versions, so several carry aliases; the
// accessor methods below pick the first usable value.
type ExternalListing struct {
	Code        string `json:"code"`
	ID          string `json:"id"`
	Category    string `json:"category"`
	TypeLabel   string `json:"type"`
	Title       string `json:"title"`
	Name        string `json:"name"`
	Description string `json:"description"`

	Price        json.Number `json:"price"`
	MonthlyPrice json.Number `json:"monthly_price"`
	Deposit      json.Number `json:"deposit"`

	// Zero means "unknown", not "studio"; absence is kept distinct via the
	// pointer so the normalizer can apply its defaulting rules.
	Bedrooms  *int `json:"bedrooms"`
	Rooms     *int `json:"rooms"`
	Bathrooms int  `json:"bathrooms"`

	Address string `json:"address"`
	City    string `json:"city"`
	Country string `json:"country"`

	Latitude  float64 `json:"latitude"`
	Lat       float64 `json:"lat"`
	Longitude float64 `json:"longitude"`
	Lng       float64 `json:"lng"`

	Amenities []string `json:"amenities"`
	Images    []string `json:"images"`
	Photos    []string `json:"photos"`

	AvailableFrom   string           `json:"available_from"`
	Furnished       *bool            `json:"furnished"`
	BillsIncluded   *bool            `json:"bills_included"`
	OccupiedPeriods []OccupiedPeriod `json:"occupied_periods"`
}

type OccupiedPeriod struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ExternalID returns the source's stable listing identifier, the natural key
// for dedup and reconciliation.
func (l *ExternalListing) ExternalID() string {
	if code := strings.TrimSpace(l.Code); code != "" {
		return code
	}
	return strings.TrimSpace(l.ID)
}

func (l *ExternalListing) CategoryLabel() string {
	if cat := strings.TrimSpace(l.Category); cat != "" {
		return cat
	}
	return strings.TrimSpace(l.TypeLabel)
}

func (l *ExternalListing) DisplayTitle() string {
	if t := strings.TrimSpace(l.Title); t != "" {
		return t
	}
	return strings.TrimSpace(l.Name)
}

func (l *ExternalListing) MonthlyRent() decimal.Decimal {
	if d := decimalFromNumber(l.Price); !d.IsZero() {
		return d
	}
	return decimalFromNumber(l.MonthlyPrice)
}

func (l *ExternalListing) DepositAmount() decimal.Decimal {
	return decimalFromNumber(l.Deposit)
}

// BedroomCount returns the declared bedroom count and whether the source
// supplied one at all.
func (l *ExternalListing) BedroomCount() (int, bool) {
	if l.Bedrooms != nil {
		return *l.Bedrooms, true
	}
	if l.Rooms != nil {
		return *l.Rooms, true
	}
	return 0, false
}

func (l *ExternalListing) Coordinates() (float64, float64) {
	lat, lng := l.Latitude, l.Longitude
	if lat == 0 {
		lat = l.Lat
	}
	if lng == 0 {
		lng = l.Lng
	}
	return lat, lng
}

func (l *ExternalListing) ImageURLs() []string {
	if len(l.Images) > 0 {
		return l.Images
	}
	return l.Photos
}

// OccupiedRanges parses the source's occupied periods; malformed entries are
// dropped rather than failing the listing.
func (l *ExternalListing) OccupiedRanges() []models.DateRange {
	var ranges []models.DateRange
	for _, p := range l.OccupiedPeriods {
		from, okFrom := parseFeedDate(p.From)
		to, okTo := parseFeedDate(p.To)
		if !okFrom || !okTo || to.Before(from) {
			continue
		}
		ranges = append(ranges, models.DateRange{From: from, To: to})
	}
	return ranges
}

func decimalFromNumber(num json.Number) decimal.Decimal {
	if num.String() == "" {
		return decimal.Zero
	}
	if d, err := decimal.NewFromString(num.String()); err == nil {
		return d
	}
	return decimal.Zero
}

func parseFeedDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ImportRequest is the direct-import body: the caller supplies the listing
// array itself.
type ImportRequest struct {
	Listings []ExternalListing `json:"listings" binding:"required"`
}

// ImportSummary is returned to the caller after every run. Partial failures
// never fail the response; they show up in the counters and the bounded
// error sample.
type ImportSummary struct {
	Success  bool     `json:"success"`
	Imported int      `json:"imported"`
	Updated  int      `json:"updated"`
	Removed  int      `json:"removed"`
	Skipped  int      `json:"skipped"`
	Total    int      `json:"total"`
	Errors   []string `json:"errors,omitempty"`
}

type TriggerAsyncRequest struct {
	Mode string `json:"mode" binding:"required,oneof=feed scrape"`
}

type RunHistoryResponse struct {
	Items []RunResponse `json:"items"`
}

type RunResponse struct {
	ID          uint    `json:"id"`
	Status      string  `json:"status"`
	TriggeredBy string  `json:"triggeredBy"`
	StartedAt   *string `json:"startedAt"`
	FinishedAt  *string `json:"finishedAt"`
	DurationMs  int64   `json:"durationMs"`
	Imported    int     `json:"imported"`
	Updated     int     `json:"updated"`
	Removed     int     `json:"removed"`
	Skipped     int     `json:"skipped"`
	Total       int     `json:"total"`
	ErrorCount  int     `json:"errorCount"`
}

type RunDetailResponse struct {
	RunResponse
	Errors []RunErrorResponse `json:"errors"`
}

type RunErrorResponse struct {
	ID         uint   `json:"id"`
	ExternalId string `json:"externalId"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Retryable  bool   `json:"retryable"`
}

type PubSubPushEnvelope struct {
	Message struct {
		Data []byte `json:"data"`
		ID   string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

type ImportRunMessage struct {
	RunId  uint   `json:"run_id"`
	Source string `json:"source"`
	Mode   string `json:"mode"`
}
