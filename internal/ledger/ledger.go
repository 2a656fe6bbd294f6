// Package ledger holds the two external collaborators the market engine
// settles against: the asset ownership registry and the fungible currency
// ledger. The engine never custodies assets or funds; it triggers
// pre-authorized transfers at sale time (pull-payment).
package ledger

import "gorm.io/gorm"

// AssetRegistry is the external ownership registry consumed by the engine.
// Transfer participates in the caller's transaction so a failed sale rolls
// every side effect back together.
type AssetRegistry interface {
	OwnerOf(assetID int64) (string, error)
	IsApproved(operator string, assetID int64) (bool, error)
	Transfer(tx *gorm.DB, from, to string, assetID int64) error
}

// CurrencyLedger is the external fungible ledger. TransferFrom moves funds
// on behalf of the payer, subject to a prior allowance granted to the
// market operator. DebitServiceFee charges the distinct service-credit
// currency that pays the flat per-operation fee.
type CurrencyLedger interface {
	BalanceOf(principal string) (int64, error)
	Allowance(owner, spender string) (int64, error)
	TransferFrom(tx *gorm.DB, payer, payee string, amount int64) error
	ServiceCreditBalance(principal string) (int64, error)
	DebitServiceFee(tx *gorm.DB, payer string, amount int64) error
}
