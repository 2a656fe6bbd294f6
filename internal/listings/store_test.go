package listings

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/cardex/market-api/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var testDBCounter int64

func setupTestStore(t *testing.T) (*Store, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:listings_test_%d?mode=memory&cache=shared",
		atomic.AddInt64(&testDBCounter, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&types.MarketListing{},
		&types.ActiveListing{},
	))

	return NewStore(db), db
}

func insertListing(t *testing.T, store *Store, db *gorm.DB, assetID int64) *types.MarketListing {
	t.Helper()
	listing := &types.MarketListing{
		AssetID: assetID,
		Seller:  "seller",
		Price:   1000,
	}
	require.NoError(t, store.Insert(db, listing))
	return listing
}

func TestInsertAndGet(t *testing.T) {
	store, db := setupTestStore(t)

	insertListing(t, store, db, 42)

	listing, err := store.Get(42)
	require.NoError(t, err)
	assert.Equal(t, "seller", listing.Seller)
	assert.Equal(t, int64(1000), listing.Price)
	assert.False(t, listing.Sold)
	assert.False(t, listing.Deleted)

	ids, err := store.ActiveIDs()
	require.NoError(t, err)
	assert.Equal(t, []int64{42}, ids)
}

func TestInsertDuplicateAsset(t *testing.T) {
	store, db := setupTestStore(t)

	insertListing(t, store, db, 42)

	err := store.Insert(db, &types.MarketListing{AssetID: 42, Seller: "other", Price: 1})
	assert.ErrorIs(t, err, types.ErrDuplicateAsset)

	// The duplicate attempt must not add an index row
	ids, err := store.ActiveIDs()
	require.NoError(t, err)
	assert.Equal(t, []int64{42}, ids)
}

func TestGetMissingListing(t *testing.T) {
	store, _ := setupTestStore(t)

	_, err := store.Get(99)
	assert.ErrorIs(t, err, types.ErrListingNotFound)
}

func TestAssetIDZeroIsValid(t *testing.T) {
	store, db := setupTestStore(t)

	insertListing(t, store, db, 0)

	listing, err := store.Get(0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), listing.AssetID)

	ids, err := store.ActiveIDs()
	require.NoError(t, err)
	assert.Equal(t, []int64{0}, ids)

	require.NoError(t, store.MarkSold(db, listing))
	ids, err = store.ActiveIDs()
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestMarkSoldRemovesFromIndex(t *testing.T) {
	store, db := setupTestStore(t)

	listing := insertListing(t, store, db, 1)
	insertListing(t, store, db, 2)

	require.NoError(t, store.MarkSold(db, listing))

	stored, err := store.Get(1)
	require.NoError(t, err)
	assert.True(t, stored.Sold)

	ids, err := store.ActiveIDs()
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, ids)

	// The sold listing stays fully queryable
	all, err := store.AllDetailed()
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSetRetiredRoundTrip(t *testing.T) {
	store, db := setupTestStore(t)

	listing := insertListing(t, store, db, 7)

	require.NoError(t, store.SetRetired(db, listing, true))
	ids, err := store.ActiveIDs()
	require.NoError(t, err)
	assert.Empty(t, ids)

	stored, err := store.Get(7)
	require.NoError(t, err)
	assert.True(t, stored.Deleted)

	require.NoError(t, store.SetRetired(db, stored, false))
	ids, err = store.ActiveIDs()
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, ids)

	// No duplicate index rows after the round trip
	var count int64
	require.NoError(t, db.Model(&types.ActiveListing{}).
		Where("asset_id = ?", int64(7)).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestActiveIDsOrdered(t *testing.T) {
	store, db := setupTestStore(t)

	for _, id := range []int64{30, 10, 20} {
		insertListing(t, store, db, id)
	}

	ids, err := store.ActiveIDs()
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 20, 30}, ids)
}
