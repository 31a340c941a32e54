package models

import (
	"context"
	"time"

	"gorm.io/gorm"
)

const (
	// CalendarWindowDays is the dense forward window expanded for every
	// imported listing.
	CalendarWindowDays = 365

	// CalendarBatchSize bounds a single insert payload; the full window is
	// written in fixed-size batches.
	CalendarBatchSize = 90
)

// ListingAvailabilityDay is one cell of a listing's availability calendar.
// Dates inside a source-supplied occupied period are written with
// available=false; every other date in the window is available.
type ListingAvailabilityDay struct {
	ID        int       `gorm:"primary_key" json:"id"`
	ListingId int       `gorm:"uniqueIndex:idx_listing_day,priority:1;not null" json:"listing_id"`
	Date      time.Time `gorm:"uniqueIndex:idx_listing_day,priority:2;type:date;not null" json:"date"`
	Available *bool     `gorm:"not null;default:true" json:"available"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// DateRange is a closed interval of calendar days.
type DateRange struct {
	From time.Time
	To   time.Time
}

func (r DateRange) contains(day time.Time) bool {
	return !day.Before(truncateToDay(r.From)) && !day.After(truncateToDay(r.To))
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ReplaceListingCalendar rewrites the availability window for a listing from
// the source's occupied periods.
func ReplaceListingCalendar(ctx context.Context, db *gorm.DB, listingID int, occupied []DateRange) error {
	if err := db.WithContext(ctx).
		Where("listing_id = ?", listingID).
		Delete(&ListingAvailabilityDay{}).Error; err != nil {
		return err
	}

	start := truncateToDay(time.Now().UTC())
	days := make([]ListingAvailabilityDay, 0, CalendarWindowDays)
	for i := 0; i < CalendarWindowDays; i++ {
		day := start.AddDate(0, 0, i)
		available := true
		for _, r := range occupied {
			if r.contains(day) {
				available = false
				break
			}
		}
		a := available
		days = append(days, ListingAvailabilityDay{
			ListingId: listingID,
			Date:      day,
			Available: &a,
		})
	}

	return db.WithContext(ctx).CreateInBatches(days, CalendarBatchSize).Error
}

// DropListingCalendars removes calendars for listings deleted by
// reconciliation.
func DropListingCalendars(ctx context.Context, db *gorm.DB, listingIDs []int) error {
	if len(listingIDs) == 0 {
		return nil
	}
	return db.WithContext(ctx).
		Where("listing_id IN ?", listingIDs).
		Delete(&ListingAvailabilityDay{}).Error
}
