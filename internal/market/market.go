package market

import (
	"sync"
	"time"

	"github.com/cardex/market-api/internal/access"
	"github.com/cardex/market-api/internal/fees"
	"github.com/cardex/market-api/internal/ledger"
	"github.com/cardex/market-api/internal/listings"
	"github.com/cardex/market-api/internal/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Service is the trading engine. All validation is front-loaded; the
// mutation plus every ledger transfer then runs in one gorm transaction so
// a failed transfer leaves no listing-state change behind.
type Service struct {
	db       *gorm.DB
	store    *listings.Store
	fees     *fees.Service
	access   *access.Service
	assets   ledger.AssetRegistry
	currency ledger.CurrencyLedger
	operator string
	version  string

	// Serializes mutating operations; the check-then-act sequences below
	// assume no interleaving on the same asset id.
	mu sync.Mutex
}

// Deps bundles the collaborators the engine operates over. Every field
// references shared storage, which is what makes engine swaps state-free.
type Deps struct {
	DB       *gorm.DB
	Store    *listings.Store
	Fees     *fees.Service
	Access   *access.Service
	Assets   ledger.AssetRegistry
	Currency ledger.CurrencyLedger
	Operator string
}

func NewService(deps Deps, version string) *Service {
	return &Service{
		db:       deps.DB,
		store:    deps.Store,
		fees:     deps.Fees,
		access:   deps.Access,
		assets:   deps.Assets,
		currency: deps.Currency,
		operator: deps.Operator,
		version:  version,
	}
}

func (s *Service) Version() string {
	return s.version
}

// CreateOffer lists an asset for sale. The caller must own the asset and
// the market must already hold a standing transfer approval for it.
func (s *Service) CreateOffer(caller string, req types.CreateOfferRequest) (*types.MarketListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := log.With().
		Int64("asset_id", req.AssetID).
		Str("caller", caller).
		Str("service", "market").
		Logger()

	serviceFee, err := s.checkMutationPreconditions(req.ServicePayment)
	if err != nil {
		return nil, err
	}

	if req.Price <= 0 {
		return nil, types.ErrInvalidPrice
	}

	owner, err := s.assets.OwnerOf(req.AssetID)
	if err != nil {
		return nil, err
	}
	if owner != caller {
		return nil, types.ErrNotAssetOwner
	}

	approved, err := s.assets.IsApproved(s.operator, req.AssetID)
	if err != nil {
		return nil, err
	}
	if !approved {
		return nil, types.ErrNotApprovedForMarket
	}

	listing := &types.MarketListing{
		AssetID:         req.AssetID,
		Seller:          caller,
		Price:           req.Price,
		Expiry:          req.Expiry,
		RestrictedBuyer: req.RestrictedBuyer,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.currency.DebitServiceFee(tx, caller, serviceFee); err != nil {
			return err
		}
		if err := s.store.Insert(tx, listing); err != nil {
			return err
		}
		return s.recordEvent(tx, types.EventListingCreated, req.AssetID, caller, req.Price)
	})
	if err != nil {
		return nil, err
	}

	logger.Info().
		Int64("price", req.Price).
		Int64("expiry", req.Expiry).
		Str("restricted_buyer", req.RestrictedBuyer).
		Msg("listing created")

	return listing, nil
}

// ChangeOffer mutates price, expiry and buyer restriction in place.
// Seller-only; sold and deleted flags are never touched here.
func (s *Service) ChangeOffer(caller string, assetID int64, req types.ChangeOfferRequest) (*types.MarketListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	serviceFee, err := s.checkMutationPreconditions(req.ServicePayment)
	if err != nil {
		return nil, err
	}

	if req.Price <= 0 {
		return nil, types.ErrInvalidPrice
	}

	listing, err := s.store.Get(assetID)
	if err != nil {
		return nil, err
	}
	if listing.Seller != caller {
		return nil, types.ErrNotSeller
	}
	if listing.Sold {
		return nil, types.ErrAlreadySold
	}

	listing.Price = req.Price
	listing.Expiry = req.Expiry
	listing.RestrictedBuyer = req.RestrictedBuyer

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.currency.DebitServiceFee(tx, caller, serviceFee); err != nil {
			return err
		}
		if err := s.store.Save(tx, listing); err != nil {
			return err
		}
		return s.recordEvent(tx, types.EventListingChanged, assetID, caller, req.Price)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Int64("asset_id", assetID).
		Int64("price", req.Price).
		Str("caller", caller).
		Str("service", "market").
		Msg("listing changed")

	return listing, nil
}

// RetireOffer soft-deletes a listing and drops it from the active index.
// Seller-only; retiring an already-retired listing fails.
func (s *Service) RetireOffer(caller string, assetID, servicePayment int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	serviceFee, err := s.checkMutationPreconditions(servicePayment)
	if err != nil {
		return err
	}

	listing, err := s.store.Get(assetID)
	if err != nil {
		return err
	}
	if listing.Seller != caller {
		return types.ErrNotSeller
	}
	if listing.Sold {
		return types.ErrAlreadySold
	}
	if listing.Deleted {
		return types.ErrAlreadyRetired
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.currency.DebitServiceFee(tx, caller, serviceFee); err != nil {
			return err
		}
		if err := s.store.SetRetired(tx, listing, true); err != nil {
			return err
		}
		return s.recordEvent(tx, types.EventListingRetired, assetID, caller, listing.Price)
	})
	if err != nil {
		return err
	}

	log.Info().
		Int64("asset_id", assetID).
		Str("caller", caller).
		Str("service", "market").
		Msg("listing retired")

	return nil
}

// ReOffer restores a retired listing to the active index with every other
// field unchanged. Seller-only.
func (s *Service) ReOffer(caller string, assetID, servicePayment int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	serviceFee, err := s.checkMutationPreconditions(servicePayment)
	if err != nil {
		return err
	}

	listing, err := s.store.Get(assetID)
	if err != nil {
		return err
	}
	if listing.Seller != caller {
		return types.ErrNotSeller
	}
	if listing.Sold {
		return types.ErrAlreadySold
	}
	if !listing.Deleted {
		return types.ErrAlreadyActive
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.currency.DebitServiceFee(tx, caller, serviceFee); err != nil {
			return err
		}
		if err := s.store.SetRetired(tx, listing, false); err != nil {
			return err
		}
		return s.recordEvent(tx, types.EventListingRestored, assetID, caller, listing.Price)
	})
	if err != nil {
		return err
	}

	log.Info().
		Int64("asset_id", assetID).
		Str("caller", caller).
		Str("service", "market").
		Msg("listing restored")

	return nil
}

// SellOffer completes a purchase. The amount sent must equal the quoted
// total exactly; the price payment, the fee split, the asset move and the
// sold flip all commit or all roll back together.
func (s *Service) SellOffer(caller string, assetID, amountSent, servicePayment int64) (*types.MarketListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := log.With().
		Int64("asset_id", assetID).
		Str("buyer", caller).
		Str("service", "market").
		Logger()

	serviceFee, err := s.checkMutationPreconditions(servicePayment)
	if err != nil {
		return nil, err
	}

	listing, err := s.store.Get(assetID)
	if err != nil {
		return nil, err
	}
	if listing.Sold {
		return nil, types.ErrAlreadySold
	}
	if listing.Deleted {
		return nil, types.ErrAlreadyRetired
	}
	if listing.Expiry != 0 && time.Now().Unix() > listing.Expiry {
		return nil, types.ErrOfferExpired
	}
	if listing.RestrictedBuyer != types.OpenBuyer && caller != listing.RestrictedBuyer {
		return nil, types.ErrRestrictedBuyer
	}

	quote, err := s.fees.QuoteTotal(listing.Price)
	if err != nil {
		return nil, err
	}
	if amountSent < quote.Total {
		return nil, types.ErrUnderPayment
	}
	if amountSent > quote.Total {
		return nil, types.ErrOverPayment
	}

	// The seller's approval must still stand at sale time
	approved, err := s.assets.IsApproved(s.operator, assetID)
	if err != nil {
		return nil, err
	}
	if !approved {
		return nil, types.ErrNotApprovedForMarket
	}

	receiverA, receiverB, err := s.fees.Receivers()
	if err != nil {
		return nil, err
	}
	shareA, shareB := fees.SplitFee(quote.FeeAmount)

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.currency.DebitServiceFee(tx, caller, serviceFee); err != nil {
			return err
		}
		if err := s.currency.TransferFrom(tx, caller, listing.Seller, listing.Price); err != nil {
			return err
		}
		if err := s.currency.TransferFrom(tx, caller, receiverA, shareA); err != nil {
			return err
		}
		if err := s.currency.TransferFrom(tx, caller, receiverB, shareB); err != nil {
			return err
		}
		if err := s.assets.Transfer(tx, listing.Seller, caller, assetID); err != nil {
			return err
		}
		if err := s.store.MarkSold(tx, listing); err != nil {
			return err
		}
		return s.recordEvent(tx, types.EventListingSold, assetID, caller, listing.Price)
	})
	if err != nil {
		logger.Error().Err(err).Msg("sale failed, all transfers rolled back")
		return nil, err
	}

	logger.Info().
		Int64("price", listing.Price).
		Int64("fee_amount", quote.FeeAmount).
		Str("seller", listing.Seller).
		Msg("listing sold")

	return listing, nil
}

// ReturnCard is the administrative override: it reconciles asset custody
// back to the seller and retires the listing. ADMIN-only; a seller-held
// asset makes the custody step a no-op.
func (s *Service) ReturnCard(caller string, assetID, servicePayment int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	serviceFee, err := s.checkMutationPreconditions(servicePayment)
	if err != nil {
		return err
	}

	if !s.access.HasRole(types.RoleAdmin, caller) {
		return types.ErrUnauthorized
	}

	listing, err := s.store.Get(assetID)
	if err != nil {
		return err
	}
	if listing.Sold {
		return types.ErrAlreadySold
	}

	owner, err := s.assets.OwnerOf(assetID)
	if err != nil {
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.currency.DebitServiceFee(tx, caller, serviceFee); err != nil {
			return err
		}
		if owner != listing.Seller {
			if err := s.assets.Transfer(tx, owner, listing.Seller, assetID); err != nil {
				return err
			}
		}
		if !listing.Deleted {
			if err := s.store.SetRetired(tx, listing, true); err != nil {
				return err
			}
		}
		return s.recordEvent(tx, types.EventListingReturned, assetID, caller, listing.Price)
	})
	if err != nil {
		return err
	}

	log.Info().
		Int64("asset_id", assetID).
		Str("caller", caller).
		Str("seller", listing.Seller).
		Str("service", "market").
		Msg("listing returned to seller")

	return nil
}

// Quote returns the exact total a buyer must send for a listing
func (s *Service) Quote(assetID int64) (*types.QuoteResponse, error) {
	listing, err := s.store.Get(assetID)
	if err != nil {
		return nil, err
	}
	quote, err := s.fees.QuoteTotal(listing.Price)
	if err != nil {
		return nil, err
	}
	return &types.QuoteResponse{
		AssetID:   assetID,
		Price:     quote.Price,
		FeeAmount: quote.FeeAmount,
		Total:     quote.Total,
	}, nil
}

// ListActive returns the active index: exactly the not-sold, not-deleted
// asset ids. Queries skip the pause gate.
func (s *Service) ListActive() ([]int64, error) {
	return s.store.ActiveIDs()
}

// ListAllDetailed returns full records for every listing ever created
func (s *Service) ListAllDetailed() ([]types.MarketListing, error) {
	return s.store.AllDetailed()
}

// GetListing returns one listing by asset id
func (s *Service) GetListing(assetID int64) (*types.MarketListing, error) {
	return s.store.Get(assetID)
}

// checkMutationPreconditions runs the checks shared by every mutating
// operation: the pause gate first, unconditionally, then the flat service
// fee threshold. Returns the configured fee to debit.
func (s *Service) checkMutationPreconditions(servicePayment int64) (int64, error) {
	paused, err := s.access.IsPaused()
	if err != nil {
		return 0, err
	}
	if paused {
		return 0, types.ErrSystemPaused
	}

	serviceFee, err := s.fees.FlatServiceFee()
	if err != nil {
		return 0, err
	}
	if servicePayment < serviceFee {
		return 0, types.ErrInsufficientServiceFee
	}
	return serviceFee, nil
}

func (s *Service) recordEvent(tx *gorm.DB, eventType string, assetID int64, actor string, price int64) error {
	return tx.Create(&types.MarketEvent{
		EventID:   uuid.New().String(),
		Type:      eventType,
		AssetID:   assetID,
		Actor:     actor,
		Price:     price,
		CreatedAt: time.Now(),
	}).Error
}

// Events returns the persisted market event feed, newest first
func (s *Service) Events(limit int) ([]types.MarketEvent, error) {
	var events []types.MarketEvent
	q := s.db.Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
