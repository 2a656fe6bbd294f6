package database

import (
	"path/filepath"
	"testing"

	"github.com/cardex/market-api/internal/access"
	"github.com/cardex/market-api/internal/config"
	"github.com/cardex/market-api/internal/ledger"
	"github.com/cardex/market-api/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func testMarketConfig() config.MarketConfig {
	return config.MarketConfig{
		FeePercentage:  5,
		MinFee:         1,
		MaxFee:         70,
		FlatServiceFee: 10,
		FeeReceiverA:   "recv-a",
		FeeReceiverB:   "recv-b",
		SeedAdmin:      "admin",
	}
}

func TestNewDatabaseFreshFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "market.db")

	db, err := NewDatabase(path)
	require.NoError(t, err)

	// Every table the services depend on exists after first boot
	for _, model := range []interface{}{
		&types.MarketListing{},
		&types.ActiveListing{},
		&types.MarketState{},
		&types.MarketEvent{},
		&access.RoleAssignment{},
		&ledger.Asset{},
		&ledger.CurrencyAccount{},
		&ledger.CurrencyAllowance{},
		&ledger.ServiceCreditAccount{},
	} {
		assert.True(t, db.Migrator().HasTable(model), "missing table for %T", model)
	}
}

func TestNewDatabaseReopensExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "market.db")

	_, err := NewDatabase(path)
	require.NoError(t, err)

	// A second boot over the same file reruns the migrations cleanly
	_, err = NewDatabase(path)
	require.NoError(t, err)
}

func TestActiveIndexBackfill(t *testing.T) {
	path := filepath.Join(t.TempDir(), "market.db")

	// A pre-index database: listings exist, no active index table yet
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&types.MarketListing{}))
	require.NoError(t, db.Create(&types.MarketListing{AssetID: 1, Seller: "a", Price: 100}).Error)
	require.NoError(t, db.Create(&types.MarketListing{AssetID: 2, Seller: "a", Price: 100, Sold: true}).Error)
	require.NoError(t, db.Create(&types.MarketListing{AssetID: 3, Seller: "a", Price: 100, Deleted: true}).Error)

	db, err = NewDatabase(path)
	require.NoError(t, err)

	// Only the open listing was backfilled
	var ids []int64
	require.NoError(t, db.Model(&types.ActiveListing{}).
		Order("asset_id ASC").Pluck("asset_id", &ids).Error)
	assert.Equal(t, []int64{1}, ids)
}

func TestSeedMarketState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "market.db")
	db, err := NewDatabase(path)
	require.NoError(t, err)

	state, err := SeedMarketState(db, testMarketConfig(), "v1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), state.FeePercentage)
	assert.Equal(t, "v1", state.EngineVersion)

	// An existing row wins over configuration on later boots
	require.NoError(t, db.Model(state).Update("fee_percentage", 9).Error)

	reloaded, err := SeedMarketState(db, testMarketConfig(), "v1")
	require.NoError(t, err)
	assert.Equal(t, int64(9), reloaded.FeePercentage)

	var count int64
	require.NoError(t, db.Model(&types.MarketState{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
