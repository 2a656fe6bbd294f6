package migrations

import (
	"github.com/cardex/market-api/internal/types"
	"gorm.io/gorm"
)

// AddActiveIndex creates the active-listing index table and backfills it from
// any listings that are still open, so databases created before the index
// existed come up consistent.
func AddActiveIndex(db *gorm.DB) error {
	if err := db.AutoMigrate(&types.ActiveListing{}); err != nil {
		return err
	}

	// On a fresh database the listings table is created after the numbered
	// migrations run, so there is nothing to backfill yet
	if !db.Migrator().HasTable(&types.MarketListing{}) {
		return nil
	}

	var listings []types.MarketListing
	if err := db.Where("sold = ? AND deleted = ?", false, false).Find(&listings).Error; err != nil {
		return err
	}

	for _, listing := range listings {
		var count int64
		if err := db.Model(&types.ActiveListing{}).
			Where("asset_id = ?", listing.AssetID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		if err := db.Create(&types.ActiveListing{AssetID: listing.AssetID}).Error; err != nil {
			return err
		}
	}
	return nil
}
