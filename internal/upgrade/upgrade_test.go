package upgrade

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/cardex/market-api/internal/access"
	"github.com/cardex/market-api/internal/fees"
	"github.com/cardex/market-api/internal/ledger"
	"github.com/cardex/market-api/internal/listings"
	"github.com/cardex/market-api/internal/market"
	"github.com/cardex/market-api/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	testOperator = "market-operator"
	testAdmin    = "admin"
	flatFee      = 10
)

var testDBCounter int64

type testStack struct {
	upgrades *Service
	access   *access.Service
	registry *ledger.Registry
	currency *ledger.Currency
	db       *gorm.DB
}

func setupTestStack(t *testing.T) *testStack {
	t.Helper()

	dsn := fmt.Sprintf("file:upgrade_test_%d?mode=memory&cache=shared",
		atomic.AddInt64(&testDBCounter, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&types.MarketListing{},
		&types.ActiveListing{},
		&types.MarketState{},
		&types.MarketEvent{},
		&access.RoleAssignment{},
		&ledger.Asset{},
		&ledger.CurrencyAccount{},
		&ledger.CurrencyAllowance{},
		&ledger.ServiceCreditAccount{},
	))

	require.NoError(t, db.Create(&types.MarketState{
		FeePercentage:  5,
		MinFee:         1,
		MaxFee:         70,
		FlatServiceFee: flatFee,
		FeeReceiverA:   "recv-a",
		FeeReceiverB:   "recv-b",
		EngineVersion:  "v1",
	}).Error)

	accessService := access.NewService(db)
	require.NoError(t, accessService.Bootstrap(testAdmin))

	registry := ledger.NewRegistry(db)
	currency := ledger.NewCurrency(db, testOperator)

	deps := market.Deps{
		DB:       db,
		Store:    listings.NewStore(db),
		Fees:     fees.NewService(db, accessService),
		Access:   accessService,
		Assets:   registry,
		Currency: currency,
		Operator: testOperator,
	}

	upgrades := NewService(db, accessService)
	upgrades.Register("v1", func() market.Engine { return market.NewService(deps, "v1") })
	upgrades.Register("v2", func() market.Engine { return market.NewService(deps, "v2") })
	require.NoError(t, upgrades.Activate("v1"))

	return &testStack{
		upgrades: upgrades,
		access:   accessService,
		registry: registry,
		currency: currency,
		db:       db,
	}
}

func (s *testStack) listAsset(t *testing.T, seller string, assetID, price int64) {
	t.Helper()
	require.NoError(t, s.registry.Mint(assetID, seller))
	require.NoError(t, s.registry.Approve(seller, testOperator, assetID))
	require.NoError(t, s.currency.DepositServiceCredits(seller, 1000))

	_, err := s.upgrades.Current().CreateOffer(seller, types.CreateOfferRequest{
		AssetID:        assetID,
		Price:          price,
		ServicePayment: flatFee,
	})
	require.NoError(t, err)
}

func TestActivateUnknownVersion(t *testing.T) {
	s := setupTestStack(t)

	assert.ErrorIs(t, s.upgrades.Activate("v9"), types.ErrUnknownVersion)
	assert.Equal(t, "v1", s.upgrades.ActiveVersion())
}

func TestSwitchRequiresUpgraderRole(t *testing.T) {
	s := setupTestStack(t)

	assert.ErrorIs(t, s.upgrades.Switch("stranger", "v2"), types.ErrUnauthorized)
	assert.Equal(t, "v1", s.upgrades.ActiveVersion())
}

func TestSwitchValidation(t *testing.T) {
	s := setupTestStack(t)

	assert.ErrorIs(t, s.upgrades.Switch(testAdmin, "v9"), types.ErrUnknownVersion)
	assert.ErrorIs(t, s.upgrades.Switch(testAdmin, "v1"), types.ErrVersionAlreadyLive)
}

func TestSwitchPreservesState(t *testing.T) {
	s := setupTestStack(t)

	s.listAsset(t, "seller", 1, 1000)
	s.listAsset(t, "seller", 2, 2000)
	require.NoError(t, s.upgrades.Current().RetireOffer("seller", 2, flatFee))

	before, err := s.upgrades.Current().ListActive()
	require.NoError(t, err)

	require.NoError(t, s.upgrades.Switch(testAdmin, "v2"))
	assert.Equal(t, "v2", s.upgrades.ActiveVersion())

	// The active index, listings and fee policy are byte-identical across
	// the swap
	after, err := s.upgrades.Current().ListActive()
	require.NoError(t, err)
	assert.Equal(t, before, after)

	listing, err := s.upgrades.Current().GetListing(2)
	require.NoError(t, err)
	assert.True(t, listing.Deleted)

	quote, err := s.upgrades.Current().Quote(1)
	require.NoError(t, err)
	assert.Equal(t, int64(1050), quote.Total)

	// The new engine keeps operating on the same storage
	require.NoError(t, s.upgrades.Current().ReOffer("seller", 2, flatFee))
	after, err = s.upgrades.Current().ListActive()
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, after)
}

func TestSwitchKeepsOldEngineWhenPersistFails(t *testing.T) {
	s := setupTestStack(t)

	// Force the transaction to fail at the event insert
	require.NoError(t, s.db.Migrator().DropTable(&types.MarketEvent{}))

	err := s.upgrades.Switch(testAdmin, "v2")
	require.Error(t, err)

	// The old engine stays live and the stored version still matches it,
	// so a restart comes back up on the same version
	assert.Equal(t, "v1", s.upgrades.ActiveVersion())

	var state types.MarketState
	require.NoError(t, s.db.First(&state).Error)
	assert.Equal(t, "v1", state.EngineVersion)
}

func TestSwitchPersistsVersionAndEvent(t *testing.T) {
	s := setupTestStack(t)

	require.NoError(t, s.upgrades.Switch(testAdmin, "v2"))

	var state types.MarketState
	require.NoError(t, s.db.First(&state).Error)
	assert.Equal(t, "v2", state.EngineVersion)

	var events []types.MarketEvent
	require.NoError(t, s.db.Where("type = ?", types.EventEngineUpgraded).Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, testAdmin, events[0].Actor)
}
