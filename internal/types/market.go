package types

import (
	"time"

	"gorm.io/gorm"
)

// Role names understood by the access control registry
const (
	RoleAdmin    = "ADMIN"
	RolePauser   = "PAUSER"
	RoleUpgrader = "UPGRADER"
)

// OpenBuyer marks a listing as purchasable by anyone
const OpenBuyer = ""

// MarketListing is one offer to sell an asset at a fixed price.
// Listings are never removed from storage: sold and deleted are logical
// states, so every listing ever created stays queryable.
type MarketListing struct {
	gorm.Model      `json:"-"`
	AssetID         int64     `gorm:"uniqueIndex" json:"asset_id"`
	Seller          string    `json:"seller"`
	Price           int64     `json:"price"`  // smallest currency unit, > 0
	Expiry          int64     `json:"expiry"` // unix seconds, 0 = no expiry
	RestrictedBuyer string    `json:"restricted_buyer"`
	Sold            bool      `json:"sold"`    // terminal, set exactly once
	Deleted         bool      `json:"deleted"` // soft retirement, toggleable
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ActiveListing is the membership index of purchasable listings.
// A row exists exactly when the listing is neither sold nor deleted.
// Asset id 0 is a valid id here; absence is expressed by row absence,
// never by a sentinel value.
type ActiveListing struct {
	gorm.Model `json:"-"`
	AssetID    int64 `gorm:"uniqueIndex" json:"asset_id"`
}

// MarketState is the singleton settings row shared by the pause gate and
// the fee policy. It lives in storage so an engine swap leaves it intact.
type MarketState struct {
	gorm.Model     `json:"-"`
	Paused         bool   `json:"paused"`
	FeePercentage  int64  `json:"fee_percentage"`
	MinFee         int64  `json:"min_fee"`
	MaxFee         int64  `json:"max_fee"`
	FlatServiceFee int64  `json:"flat_service_fee"` // paid in service credits
	FeeReceiverA   string `json:"fee_receiver_a"`
	FeeReceiverB   string `json:"fee_receiver_b"`
	EngineVersion  string `json:"engine_version"`
}

// Market event types
const (
	EventListingCreated       = "LISTING_CREATED"
	EventListingChanged       = "LISTING_CHANGED"
	EventListingRetired       = "LISTING_RETIRED"
	EventListingRestored      = "LISTING_RESTORED"
	EventListingSold          = "LISTING_SOLD"
	EventListingReturned      = "LISTING_RETURNED"
	EventMarketPaused         = "MARKET_PAUSED"
	EventMarketUnpaused       = "MARKET_UNPAUSED"
	EventFeePercentageChanged = "FEE_PERCENTAGE_CHANGED"
	EventEngineUpgraded       = "ENGINE_UPGRADED"
)

// MarketEvent is the append-only feed consumed by off-process indexers.
type MarketEvent struct {
	gorm.Model `json:"-"`
	EventID    string    `gorm:"uniqueIndex" json:"event_id"`
	Type       string    `json:"type"`
	AssetID    int64     `json:"asset_id"`
	Actor      string    `json:"actor"`
	Price      int64     `json:"price,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
