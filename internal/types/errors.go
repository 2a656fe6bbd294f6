package types

import "errors"

// Domain failure taxonomy. Every error is surfaced synchronously to the
// caller with a stable code (see pkg/response); nothing is retried
// internally and no operation partially applies state on failure.
var (
	// Authorization
	ErrUnauthorized = errors.New("caller does not hold the required role")
	ErrNotSeller    = errors.New("caller is not the seller")

	// Listing store
	ErrListingNotFound = errors.New("listing not found")
	ErrDuplicateAsset  = errors.New("asset is already listed")

	// Listing state
	ErrAlreadySold    = errors.New("listing has already been sold")
	ErrAlreadyRetired = errors.New("listing is already retired")
	ErrAlreadyActive  = errors.New("listing is already active")
	ErrOfferExpired   = errors.New("offer has expired")

	// Purchase validation
	ErrInvalidPrice           = errors.New("price must be greater than zero")
	ErrRestrictedBuyer        = errors.New("listing has a restricted buyer")
	ErrUnderPayment           = errors.New("amount sent is below the asking total")
	ErrOverPayment            = errors.New("amount sent exceeds the asking total")
	ErrInsufficientServiceFee = errors.New("service fee payment is below the required flat fee")

	// Pause gate
	ErrSystemPaused  = errors.New("market is paused")
	ErrAlreadyPaused = errors.New("market is already paused")
	ErrNotPaused     = errors.New("market is not paused")

	// Fee policy
	ErrFeeOutOfBounds = errors.New("fee percentage outside configured bounds")

	// Asset registry
	ErrAssetNotFound        = errors.New("asset not found")
	ErrNotAssetOwner        = errors.New("caller is not the asset owner")
	ErrNotApprovedForMarket = errors.New("market is not approved to transfer this asset")

	// Currency ledger
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")

	// Upgrade authorization
	ErrUnknownVersion     = errors.New("unknown engine version")
	ErrVersionAlreadyLive = errors.New("engine version is already active")
)
