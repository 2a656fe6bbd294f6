package access

import (
	"errors"

	"github.com/cardex/market-api/internal/types"
	"gorm.io/gorm"
)

// RoleAssignment maps one role name to one principal identity. A principal
// may hold any number of roles.
type RoleAssignment struct {
	gorm.Model
	Role      string `gorm:"uniqueIndex:idx_role_principal" json:"role"`
	Principal string `gorm:"uniqueIndex:idx_role_principal" json:"principal"`
}

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) HasRole(role, principal string) (bool, error) {
	var count int64
	err := d.db.Model(&RoleAssignment{}).
		Where("role = ? AND principal = ?", role, principal).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (d *Database) GrantRole(role, principal string) error {
	held, err := d.HasRole(role, principal)
	if err != nil {
		return err
	}
	if held {
		return nil
	}
	return d.db.Create(&RoleAssignment{Role: role, Principal: principal}).Error
}

func (d *Database) RevokeRole(role, principal string) error {
	return d.db.Unscoped().
		Where("role = ? AND principal = ?", role, principal).
		Delete(&RoleAssignment{}).Error
}

func (d *Database) CountRoles() (int64, error) {
	var count int64
	err := d.db.Model(&RoleAssignment{}).Count(&count).Error
	return count, err
}

// GetMarketState returns the singleton settings row
func (d *Database) GetMarketState() (*types.MarketState, error) {
	var state types.MarketState
	if err := d.db.First(&state).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("market state not initialized")
		}
		return nil, err
	}
	return &state, nil
}
