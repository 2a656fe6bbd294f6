package ledger

import (
	"errors"

	"github.com/cardex/market-api/internal/types"
	"gorm.io/gorm"
)

// Asset is one uniquely-identified, non-fungible asset. Approved holds at
// most one operator identity with a standing transfer authorization; it is
// cleared on every transfer, matching registry semantics.
type Asset struct {
	gorm.Model
	AssetID  int64  `gorm:"uniqueIndex" json:"asset_id"`
	Owner    string `json:"owner"`
	Approved string `json:"approved"`
}

// Registry is a gorm-backed asset ownership registry. In a deployment this
// would sit behind an RPC boundary; the engine only consumes the
// AssetRegistry interface either way.
type Registry struct {
	db *gorm.DB
}

func NewRegistry(db *gorm.DB) *Registry {
	return &Registry{db: db}
}

// Mint registers a new asset under the given owner
func (r *Registry) Mint(assetID int64, owner string) error {
	var count int64
	if err := r.db.Model(&Asset{}).Where("asset_id = ?", assetID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return errors.New("asset already minted")
	}
	return r.db.Create(&Asset{AssetID: assetID, Owner: owner}).Error
}

// Approve grants an operator a standing transfer authorization for one
// asset. Only the current owner may approve.
func (r *Registry) Approve(caller, operator string, assetID int64) error {
	asset, err := r.get(r.db, assetID)
	if err != nil {
		return err
	}
	if asset.Owner != caller {
		return types.ErrNotAssetOwner
	}
	asset.Approved = operator
	return r.db.Save(asset).Error
}

func (r *Registry) OwnerOf(assetID int64) (string, error) {
	asset, err := r.get(r.db, assetID)
	if err != nil {
		return "", err
	}
	return asset.Owner, nil
}

func (r *Registry) IsApproved(operator string, assetID int64) (bool, error) {
	asset, err := r.get(r.db, assetID)
	if err != nil {
		return false, err
	}
	return asset.Approved == operator, nil
}

// Transfer moves ownership from -> to and clears the standing approval.
// Fails unless the from identity is the current owner.
func (r *Registry) Transfer(tx *gorm.DB, from, to string, assetID int64) error {
	asset, err := r.get(tx, assetID)
	if err != nil {
		return err
	}
	if asset.Owner != from {
		return types.ErrNotAssetOwner
	}
	asset.Owner = to
	asset.Approved = ""
	return tx.Save(asset).Error
}

func (r *Registry) get(db *gorm.DB, assetID int64) (*Asset, error) {
	var asset Asset
	if err := db.Where("asset_id = ?", assetID).First(&asset).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrAssetNotFound
		}
		return nil, err
	}
	return &asset, nil
}
