package market

import (
	"context"
	"time"

	"github.com/cardex/market-api/internal/listings"
	"github.com/rs/zerolog/log"
)

// Sweeper periodically reports listings that are still in the active index
// but past their expiry. Expiry is enforced purely as data at sale time, so
// the sweeper never mutates state; it gives operators visibility into
// stock that can no longer sell.
type Sweeper struct {
	store    *listings.Store
	interval time.Duration
}

func NewSweeper(store *listings.Store, interval time.Duration) *Sweeper {
	return &Sweeper{store: store, interval: interval}
}

// Start runs the sweep loop until the context is cancelled
func (s *Sweeper) Start(ctx context.Context) {
	logger := log.With().Str("component", "expiry_sweeper").Logger()
	logger.Info().Dur("interval", s.interval).Msg("starting expiry sweeper")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down expiry sweeper")
			return
		case <-ticker.C:
			if err := s.sweep(); err != nil {
				logger.Error().Err(err).Msg("expiry sweep failed")
			}
		}
	}
}

func (s *Sweeper) sweep() error {
	logger := log.With().Str("component", "expiry_sweeper").Logger()

	all, err := s.store.AllDetailed()
	if err != nil {
		return err
	}

	now := time.Now().Unix()
	expired := 0
	for _, listing := range all {
		if listing.Sold || listing.Deleted {
			continue
		}
		if listing.Expiry != 0 && now > listing.Expiry {
			expired++
			logger.Warn().
				Int64("asset_id", listing.AssetID).
				Str("seller", listing.Seller).
				Int64("expiry", listing.Expiry).
				Msg("active listing past expiry, unsellable until changed")
		}
	}

	logger.Debug().Int("expired_active", expired).Msg("expiry sweep complete")
	return nil
}
