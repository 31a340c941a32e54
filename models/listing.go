package models

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PropertyType is the marketplace taxonomy a listing is classified into.
type PropertyType string

const (
	PropertyTypeSingleRoom            PropertyType = "single_room"
	PropertyTypeStudio                PropertyType = "studio"
	PropertyTypeMultiBedroomApartment PropertyType = "multi_bedroom_apartment"
	PropertyTypeUnknown               PropertyType = "unknown"
)

// Locale-specific mapped category codes shown in the Italian market UI.
const (
	CategoryStanza       = "stanza"
	CategoryMonolocale   = "monolocale"
	CategoryBilocale     = "bilocale"
	CategoryTrilocale    = "trilocale"
	CategoryAppartamento = "appartamento"
)

type ListingStatus string

const (
	ListingStatusPending   ListingStatus = "pending"
	ListingStatusApproved  ListingStatus = "approved"
	ListingStatusRejected  ListingStatus = "rejected"
	ListingStatusPublished ListingStatus = "published"
)

const (
	ExternalSourceSpacest = "spacest"
)

// Listing is the canonical listing record shared with the marketplace UI.
// Rows created by the import pipeline carry (external_source,
// external_listing_id) as their natural key; rows created through the UI
// wizard leave both NULL. The pair is unique per source so re-imports
// update in place instead of duplicating.
type Listing struct {
	ID                int             `gorm:"primary_key" json:"id"`
	AgencyId          int             `gorm:"index;not null" json:"agency_id"`
	Title             string          `gorm:"size:255;not null" json:"title"`
	Description       string          `gorm:"type:text" json:"description"`
	PropertyType      PropertyType    `gorm:"type:enum('single_room','studio','multi_bedroom_apartment','unknown');not null;default:'unknown'" json:"property_type"`
	MappedCategory    string          `gorm:"size:40" json:"mapped_category"`
	MonthlyRent       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"monthly_rent"`
	Deposit           decimal.Decimal `gorm:"type:decimal(10,2);default:0" json:"deposit"`
	BillsIncluded     *bool           `gorm:"not null;default:false" json:"bills_included"`
	Furnished         *bool           `gorm:"not null;default:true" json:"furnished"`
	Bedrooms          int             `gorm:"default:0" json:"bedrooms"`
	Bathrooms         int             `gorm:"default:0" json:"bathrooms"`
	Address           string          `gorm:"size:255" json:"address"`
	City              string          `gorm:"size:100" json:"city"`
	Country           string          `gorm:"size:100" json:"country"`
	Latitude          float64         `json:"latitude"`
	Longitude         float64         `json:"longitude"`
	AmenitiesJSON     []byte          `gorm:"type:json" json:"amenities"`
	ImagesJSON        []byte          `gorm:"type:json" json:"images"`
	AvailableFrom     *time.Time      `json:"available_from"`
	Status            ListingStatus   `gorm:"type:enum('pending','approved','rejected','published');not null;default:'pending'" json:"status"`
	ExternalSource    *string         `gorm:"uniqueIndex:idx_listing_external,priority:1;size:50" json:"external_source"`
	ExternalListingId *string         `gorm:"uniqueIndex:idx_listing_external,priority:2;size:128" json:"external_listing_id"`
	LastSyncedAt      *time.Time      `json:"last_synced_at"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// FindListingByExternalKey returns the imported listing with the given
// natural key, or nil when none exists.
func FindListingByExternalKey(ctx context.Context, db *gorm.DB, source string, externalID string) (*Listing, error) {
	var listing Listing
	err := db.WithContext(ctx).
		Where("external_source = ? AND external_listing_id = ?", source, externalID).
		Take(&listing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &listing, nil
}

// ListPendingImportedListings returns pipeline-created listings still waiting
// for admin review, newest first.
func ListPendingImportedListings(ctx context.Context, db *gorm.DB, source string, limit int) ([]Listing, error) {
	var listings []Listing
	q := db.WithContext(ctx).
		Where("external_source = ? AND status = ?", source, ListingStatusPending).
		Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&listings).Error; err != nil {
		return nil, err
	}
	return listings, nil
}
