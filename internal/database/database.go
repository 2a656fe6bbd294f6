package database

import (
	"errors"
	"fmt"

	"github.com/cardex/market-api/internal/access"
	"github.com/cardex/market-api/internal/config"
	"github.com/cardex/market-api/internal/database/migrations"
	"github.com/cardex/market-api/internal/ledger"
	"github.com/cardex/market-api/internal/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDatabase initializes and returns a new GORM DB connection
func NewDatabase(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := migrations.AddMarketEvents(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := migrations.AddActiveIndex(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Auto-migrate other schemas
	err = db.AutoMigrate(
		&types.MarketListing{},
		&types.MarketState{},
		&access.RoleAssignment{},
		&ledger.Asset{},
		&ledger.CurrencyAccount{},
		&ledger.CurrencyAllowance{},
		&ledger.ServiceCreditAccount{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}

// SeedMarketState creates the singleton settings row on first boot. An
// existing row wins: restarts and engine swaps never reset fees or the pause
// flag from configuration.
func SeedMarketState(db *gorm.DB, cfg config.MarketConfig, engineVersion string) (*types.MarketState, error) {
	var state types.MarketState
	err := db.First(&state).Error
	if err == nil {
		return &state, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	state = types.MarketState{
		Paused:         false,
		FeePercentage:  cfg.FeePercentage,
		MinFee:         cfg.MinFee,
		MaxFee:         cfg.MaxFee,
		FlatServiceFee: cfg.FlatServiceFee,
		FeeReceiverA:   cfg.FeeReceiverA,
		FeeReceiverB:   cfg.FeeReceiverB,
		EngineVersion:  engineVersion,
	}
	if err := db.Create(&state).Error; err != nil {
		return nil, err
	}
	return &state, nil
}
