package spacestsync

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Teodorcosmovici/Flat2study-GitHub-sub000/models"
	"github.com/Teodorcosmovici/Flat2study-GitHub-sub000/utils"
)

// cityNames maps lowercase city mentions in the feed to the canonical name
// we store. The service area is Milan, so this is deliberately short.
var cityNames = map[string]string{
	"milan":  "Milano",
	"milano": "Milano",
}

const defaultCity = "Milano"

// Normalize converts a validated external listing into our internal Listing
// shape. It assumes the classifier and market filter already admitted the
// listing; it only fills fields and applies defaults for what the source
// omits.
func Normalize(ext *ExternalListing, agencyId int, cls Classification) *models.Listing {
	city := resolveCity(ext)
	title := ext.DisplayTitle()
	if title == "" {
		// Unclassified listings kept via IMPORT_KEEP_UNCLASSIFIED have no
		// mapped category, so fall back to a generic label.
		label := cls.MappedCategory
		if label == "" {
			label = "alloggio"
		}
		title = fmt.Sprintf("%s in %s", capitalize(label), city)
	}

	bedrooms, declared := ext.BedroomCount()
	if !declared {
		// A studio is zero bedrooms by definition; anything else gets at
		// least one so the UI never shows an empty room count.
		if cls.Type == models.PropertyTypeStudio {
			bedrooms = 0
		} else {
			bedrooms = 1
		}
	}

	billsIncluded := ext.BillsIncluded
	if billsIncluded == nil {
		billsIncluded = utils.NewFalse()
	}
	furnished := ext.Furnished
	if furnished == nil {
		furnished = utils.NewTrue()
	}

	country := strings.TrimSpace(ext.Country)
	if country == "" {
		country = utils.CountryCode
	}

	lat, lng := ext.Coordinates()

	listing := &models.Listing{
		AgencyId:          agencyId,
		Title:             title,
		Description:       strings.TrimSpace(ext.Description),
		PropertyType:      cls.Type,
		MappedCategory:    cls.MappedCategory,
		MonthlyRent:       ext.MonthlyRent(),
		Deposit:           ext.DepositAmount(),
		BillsIncluded:     billsIncluded,
		Furnished:         furnished,
		Bedrooms:          bedrooms,
		Bathrooms:         ext.Bathrooms,
		Address:           strings.TrimSpace(ext.Address),
		City:              city,
		Country:           country,
		Latitude:          lat,
		Longitude:         lng,
		AmenitiesJSON:     marshalStrings(ext.Amenities),
		ImagesJSON:        marshalStrings(ext.ImageURLs()),
		Status:            models.ListingStatusPending,
		ExternalSource:    strPtr(models.ExternalSourceSpacest),
		ExternalListingId: strPtr(ext.ExternalID()),
	}

	if from, ok := parseFeedDate(ext.AvailableFrom); ok {
		listing.AvailableFrom = &from
	}
	now := time.Now()
	listing.LastSyncedAt = &now

	return listing
}

func resolveCity(ext *ExternalListing) string {
	if canonical, ok := cityNames[strings.ToLower(strings.TrimSpace(ext.City))]; ok {
		return canonical
	}
	address := strings.ToLower(ext.Address)
	for mention, canonical := range cityNames {
		if strings.Contains(address, mention) {
			return canonical
		}
	}
	return defaultCity
}

func marshalStrings(values []string) []byte {
	if len(values) == 0 {
		return []byte("[]")
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return []byte("[]")
	}
	return raw
}

func strPtr(s string) *string {
	return &s
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
