package spacestsync

import (
	"context"

	"github.com/Teodorcosmovici/Flat2study-GitHub-sub000/models"
	"gorm.io/gorm"
)

// reconcile removes listings of the given source whose external ID is absent
// from the set the current run successfully processed. The feed is the source
// of truth: a listing the source stopped publishing comes off the platform,
// calendar included. Scoping is by source alone, not owner: the owning agency
// can change between runs and stale rows under a previous owner must still be
// swept.
//
// Callers must only pass IDs whose listings were fully persisted this run, so
// a transient per-item failure never deletes an existing listing.
func reconcile(ctx context.Context, db *gorm.DB, source string, seen map[string]struct{}) (int, error) {
	var existing []models.Listing
	err := db.WithContext(ctx).
		Select("id", "external_listing_id").
		Where("external_source = ?", source).
		Find(&existing).Error
	if err != nil {
		return 0, err
	}

	var staleIDs []int
	for _, listing := range existing {
		if listing.ExternalListingId == nil {
			continue
		}
		if _, present := seen[*listing.ExternalListingId]; !present {
			staleIDs = append(staleIDs, listing.ID)
		}
	}
	if len(staleIDs) == 0 {
		return 0, nil
	}

	if err := models.DropListingCalendars(ctx, db, staleIDs); err != nil {
		return 0, err
	}
	if err := db.WithContext(ctx).Where("id IN ?", staleIDs).Delete(&models.Listing{}).Error; err != nil {
		return 0, err
	}
	return len(staleIDs), nil
}
