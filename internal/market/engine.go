package market

import "github.com/cardex/market-api/internal/types"

// Engine is the trading state machine contract. Implementations are
// stateless logic over shared storage: swapping the active implementation
// must leave every listing, role assignment and fee setting bit-identical.
type Engine interface {
	Version() string

	CreateOffer(caller string, req types.CreateOfferRequest) (*types.MarketListing, error)
	ChangeOffer(caller string, assetID int64, req types.ChangeOfferRequest) (*types.MarketListing, error)
	RetireOffer(caller string, assetID, servicePayment int64) error
	ReOffer(caller string, assetID, servicePayment int64) error
	SellOffer(caller string, assetID, amountSent, servicePayment int64) (*types.MarketListing, error)
	ReturnCard(caller string, assetID, servicePayment int64) error

	Quote(assetID int64) (*types.QuoteResponse, error)
	ListActive() ([]int64, error)
	ListAllDetailed() ([]types.MarketListing, error)
	GetListing(assetID int64) (*types.MarketListing, error)
	Events(limit int) ([]types.MarketEvent, error)
}

// EngineSource yields the currently active engine. The upgrade service
// satisfies this so HTTP handlers always dispatch to the live version.
type EngineSource interface {
	Current() Engine
}
