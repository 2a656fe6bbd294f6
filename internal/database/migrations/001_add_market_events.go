package migrations

import (
	"github.com/cardex/market-api/internal/types"
	"gorm.io/gorm"
)

func AddMarketEvents(db *gorm.DB) error {
	if err := db.AutoMigrate(&types.MarketEvent{}); err != nil {
		return err
	}

	// Event queries filter by asset and order by time
	if err := db.Exec(
		"CREATE INDEX IF NOT EXISTS idx_market_events_asset_id ON market_events(asset_id)",
	).Error; err != nil {
		return err
	}
	return db.Exec(
		"CREATE INDEX IF NOT EXISTS idx_market_events_created_at ON market_events(created_at)",
	).Error
}
