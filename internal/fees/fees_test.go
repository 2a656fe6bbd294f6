package fees

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/cardex/market-api/internal/access"
	"github.com/cardex/market-api/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var testDBCounter int64

func setupTestService(t *testing.T) (*Service, *access.Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:fees_test_%d?mode=memory&cache=shared",
		atomic.AddInt64(&testDBCounter, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&types.MarketState{},
		&types.MarketEvent{},
		&access.RoleAssignment{},
	))

	require.NoError(t, db.Create(&types.MarketState{
		FeePercentage:  5,
		MinFee:         1,
		MaxFee:         70,
		FlatServiceFee: 10,
		FeeReceiverA:   "recv-a",
		FeeReceiverB:   "recv-b",
		EngineVersion:  "v1",
	}).Error)

	accessService := access.NewService(db)
	require.NoError(t, accessService.Bootstrap("admin"))

	return NewService(db, accessService), accessService, db
}

func TestQuoteTotal(t *testing.T) {
	service, _, _ := setupTestService(t)

	tests := []struct {
		name      string
		price     int64
		feeAmount int64
		total     int64
	}{
		{"even price", 1000, 50, 1050},
		{"fee floors down", 999, 49, 1048},
		{"small price floors to zero fee", 19, 0, 19},
		{"single unit", 1, 0, 1},
		{"large price", 2_000_000, 100_000, 2_100_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quote, err := service.QuoteTotal(tt.price)
			require.NoError(t, err)
			assert.Equal(t, tt.price, quote.Price)
			assert.Equal(t, tt.feeAmount, quote.FeeAmount)
			assert.Equal(t, tt.total, quote.Total)
		})
	}
}

func TestQuoteTotalTracksPercentageChanges(t *testing.T) {
	service, _, _ := setupTestService(t)

	require.NoError(t, service.SetPercentage("admin", 10))

	quote, err := service.QuoteTotal(1000)
	require.NoError(t, err)
	assert.Equal(t, int64(100), quote.FeeAmount)
	assert.Equal(t, int64(1100), quote.Total)
}

func TestSplitFee(t *testing.T) {
	tests := []struct {
		fee    int64
		shareA int64
		shareB int64
	}{
		{0, 0, 0},
		{1, 1, 0},
		{50, 25, 25},
		{51, 26, 25},
	}

	for _, tt := range tests {
		shareA, shareB := SplitFee(tt.fee)
		assert.Equal(t, tt.shareA, shareA, "fee %d", tt.fee)
		assert.Equal(t, tt.shareB, shareB, "fee %d", tt.fee)
		assert.Equal(t, tt.fee, shareA+shareB, "shares must sum to fee %d", tt.fee)
	}
}

func TestSetPercentageBounds(t *testing.T) {
	service, _, _ := setupTestService(t)

	assert.ErrorIs(t, service.SetPercentage("admin", 0), types.ErrFeeOutOfBounds)
	assert.ErrorIs(t, service.SetPercentage("admin", 71), types.ErrFeeOutOfBounds)

	// Both bounds are inclusive
	require.NoError(t, service.SetPercentage("admin", 1))
	require.NoError(t, service.SetPercentage("admin", 70))

	percentage, err := service.Percentage()
	require.NoError(t, err)
	assert.Equal(t, int64(70), percentage)
}

func TestSetPercentageRequiresAdmin(t *testing.T) {
	service, _, _ := setupTestService(t)

	err := service.SetPercentage("stranger", 10)
	assert.ErrorIs(t, err, types.ErrUnauthorized)

	// The failed attempt must not touch the stored percentage
	percentage, err := service.Percentage()
	require.NoError(t, err)
	assert.Equal(t, int64(5), percentage)
}

func TestSetPercentageRecordsEvent(t *testing.T) {
	service, _, db := setupTestService(t)

	require.NoError(t, service.SetPercentage("admin", 7))

	var events []types.MarketEvent
	require.NoError(t, db.Where("type = ?", types.EventFeePercentageChanged).Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, "admin", events[0].Actor)
	assert.Equal(t, int64(7), events[0].Price)
}

func TestFlatServiceFeeAndReceivers(t *testing.T) {
	service, _, _ := setupTestService(t)

	fee, err := service.FlatServiceFee()
	require.NoError(t, err)
	assert.Equal(t, int64(10), fee)

	receiverA, receiverB, err := service.Receivers()
	require.NoError(t, err)
	assert.Equal(t, "recv-a", receiverA)
	assert.Equal(t, "recv-b", receiverB)
}
