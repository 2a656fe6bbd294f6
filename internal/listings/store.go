package listings

import (
	"errors"

	"github.com/cardex/market-api/internal/types"
	"gorm.io/gorm"
)

// Store is the authoritative table of market listings plus the active
// membership index. Index rows are maintained in the same transaction as
// every sold/deleted flip so the two can never diverge.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Insert creates a new listing and its active index row
func (s *Store) Insert(tx *gorm.DB, listing *types.MarketListing) error {
	var count int64
	if err := tx.Model(&types.MarketListing{}).
		Where("asset_id = ?", listing.AssetID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return types.ErrDuplicateAsset
	}

	if err := tx.Create(listing).Error; err != nil {
		return err
	}

	return tx.Create(&types.ActiveListing{AssetID: listing.AssetID}).Error
}

// Get retrieves a listing by asset id
func (s *Store) Get(assetID int64) (*types.MarketListing, error) {
	var listing types.MarketListing
	if err := s.db.Where("asset_id = ?", assetID).First(&listing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrListingNotFound
		}
		return nil, err
	}
	return &listing, nil
}

// Save persists field mutations that do not change active membership
func (s *Store) Save(tx *gorm.DB, listing *types.MarketListing) error {
	return tx.Save(listing).Error
}

// MarkSold sets the terminal sold flag and removes the index row
func (s *Store) MarkSold(tx *gorm.DB, listing *types.MarketListing) error {
	listing.Sold = true
	if err := tx.Save(listing).Error; err != nil {
		return err
	}
	return s.removeFromIndex(tx, listing.AssetID)
}

// SetRetired flips the soft-retirement flag and keeps the index in step:
// retiring removes the row, restoring re-adds it.
func (s *Store) SetRetired(tx *gorm.DB, listing *types.MarketListing, retired bool) error {
	listing.Deleted = retired
	if err := tx.Save(listing).Error; err != nil {
		return err
	}
	if retired {
		return s.removeFromIndex(tx, listing.AssetID)
	}
	return s.addToIndex(tx, listing.AssetID)
}

// ActiveIDs returns the asset ids currently eligible for purchase,
// ordered ascending, no duplicates.
func (s *Store) ActiveIDs() ([]int64, error) {
	var ids []int64
	if err := s.db.Model(&types.ActiveListing{}).
		Order("asset_id ASC").
		Pluck("asset_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// AllDetailed returns full records for every listing ever created
func (s *Store) AllDetailed() ([]types.MarketListing, error) {
	var all []types.MarketListing
	if err := s.db.Order("asset_id ASC").Find(&all).Error; err != nil {
		return nil, err
	}
	return all, nil
}

func (s *Store) addToIndex(tx *gorm.DB, assetID int64) error {
	var count int64
	if err := tx.Model(&types.ActiveListing{}).
		Where("asset_id = ?", assetID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return tx.Create(&types.ActiveListing{AssetID: assetID}).Error
}

func (s *Store) removeFromIndex(tx *gorm.DB, assetID int64) error {
	return tx.Unscoped().
		Where("asset_id = ?", assetID).
		Delete(&types.ActiveListing{}).Error
}
