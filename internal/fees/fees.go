package fees

import (
	"time"

	"github.com/cardex/market-api/internal/access"
	"github.com/cardex/market-api/internal/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Service is the fee policy: the percentage trade fee, its configurable
// bounds, the flat per-operation service fee, and the two receivers the
// percentage fee is split between.
type Service struct {
	db     *gorm.DB
	access *access.Service
}

func NewService(gormDB *gorm.DB, accessService *access.Service) *Service {
	return &Service{db: gormDB, access: accessService}
}

// Quote holds the exact amounts for one sale
type Quote struct {
	Price     int64
	FeeAmount int64
	Total     int64
}

// QuoteTotal computes what the buyer must send for a given price.
// feeAmount = floor(price * percentage / 100); integer division already
// floors for non-negative operands, and both are validated non-negative.
// The buyer payment must match Total exactly.
func (s *Service) QuoteTotal(price int64) (*Quote, error) {
	state, err := s.state()
	if err != nil {
		return nil, err
	}

	feeAmount := price * state.FeePercentage / 100
	return &Quote{
		Price:     price,
		FeeAmount: feeAmount,
		Total:     price + feeAmount,
	}, nil
}

// SplitFee divides the percentage fee between the two receivers. Receiver A
// takes the odd unit so the shares always sum to the fee.
func SplitFee(feeAmount int64) (shareA, shareB int64) {
	shareB = feeAmount / 2
	shareA = feeAmount - shareB
	return shareA, shareB
}

// SetPercentage updates the percentage trade fee. ADMIN role required and
// the value must fall within the configured bounds.
func (s *Service) SetPercentage(caller string, value int64) error {
	if !s.access.HasRole(types.RoleAdmin, caller) {
		return types.ErrUnauthorized
	}

	state, err := s.state()
	if err != nil {
		return err
	}
	if value < state.MinFee || value > state.MaxFee {
		return types.ErrFeeOutOfBounds
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		state.FeePercentage = value
		if err := tx.Save(state).Error; err != nil {
			return err
		}
		return tx.Create(&types.MarketEvent{
			EventID:   uuid.New().String(),
			Type:      types.EventFeePercentageChanged,
			Actor:     caller,
			Price:     value,
			CreatedAt: time.Now(),
		}).Error
	})
	if err != nil {
		return err
	}

	log.Info().Int64("percentage", value).Str("caller", caller).
		Msg("fee percentage updated")
	return nil
}

// Percentage returns the current percentage trade fee
func (s *Service) Percentage() (int64, error) {
	state, err := s.state()
	if err != nil {
		return 0, err
	}
	return state.FeePercentage, nil
}

// FlatServiceFee returns the fixed service-credit charge applied to every
// mutating listing operation
func (s *Service) FlatServiceFee() (int64, error) {
	state, err := s.state()
	if err != nil {
		return 0, err
	}
	return state.FlatServiceFee, nil
}

// Receivers returns the two identities the percentage fee is split between
func (s *Service) Receivers() (string, string, error) {
	state, err := s.state()
	if err != nil {
		return "", "", err
	}
	return state.FeeReceiverA, state.FeeReceiverB, nil
}

func (s *Service) state() (*types.MarketState, error) {
	var state types.MarketState
	if err := s.db.First(&state).Error; err != nil {
		return nil, err
	}
	return &state, nil
}
