package access

import (
	"time"

	"github.com/cardex/market-api/internal/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Service is the access control registry and the pause gate. Role
// assignments and the pause flag are persisted so they survive an engine
// swap unchanged.
type Service struct {
	db *Database
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{db: NewDatabase(gormDB)}
}

// HasRole answers whether the principal holds the named role
func (s *Service) HasRole(role, principal string) bool {
	held, err := s.db.HasRole(role, principal)
	if err != nil {
		log.Error().Err(err).Str("role", role).Str("principal", principal).
			Msg("role lookup failed")
		return false
	}
	return held
}

// GrantRole assigns a role to a principal. Only ADMIN holders may grant.
func (s *Service) GrantRole(caller, role, principal string) error {
	if !s.HasRole(types.RoleAdmin, caller) {
		return types.ErrUnauthorized
	}
	if err := s.db.GrantRole(role, principal); err != nil {
		return err
	}
	log.Info().Str("role", role).Str("principal", principal).Str("granted_by", caller).
		Msg("role granted")
	return nil
}

// RevokeRole removes a role from a principal. Only ADMIN holders may revoke.
func (s *Service) RevokeRole(caller, role, principal string) error {
	if !s.HasRole(types.RoleAdmin, caller) {
		return types.ErrUnauthorized
	}
	if err := s.db.RevokeRole(role, principal); err != nil {
		return err
	}
	log.Info().Str("role", role).Str("principal", principal).Str("revoked_by", caller).
		Msg("role revoked")
	return nil
}

// Bootstrap seeds the deploying principal into the admin, pauser and
// upgrader roles on first boot. A no-op once any role assignment exists.
func (s *Service) Bootstrap(seedAdmin string) error {
	count, err := s.db.CountRoles()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	for _, role := range []string{types.RoleAdmin, types.RolePauser, types.RoleUpgrader} {
		if err := s.db.GrantRole(role, seedAdmin); err != nil {
			return err
		}
	}

	log.Info().Str("principal", seedAdmin).Msg("seeded initial role assignments")
	return nil
}

// IsPaused reports the current pause gate state
func (s *Service) IsPaused() (bool, error) {
	state, err := s.db.GetMarketState()
	if err != nil {
		return false, err
	}
	return state.Paused, nil
}

// Pause stops all mutating market operations. PAUSER role required.
func (s *Service) Pause(caller string) error {
	return s.setPaused(caller, true)
}

// Unpause resumes mutating market operations. PAUSER role required.
func (s *Service) Unpause(caller string) error {
	return s.setPaused(caller, false)
}

func (s *Service) setPaused(caller string, paused bool) error {
	if !s.HasRole(types.RolePauser, caller) {
		return types.ErrUnauthorized
	}

	state, err := s.db.GetMarketState()
	if err != nil {
		return err
	}
	if state.Paused == paused {
		if paused {
			return types.ErrAlreadyPaused
		}
		return types.ErrNotPaused
	}

	eventType := types.EventMarketUnpaused
	if paused {
		eventType = types.EventMarketPaused
	}

	err = s.db.db.Transaction(func(tx *gorm.DB) error {
		state.Paused = paused
		if err := tx.Save(state).Error; err != nil {
			return err
		}
		return tx.Create(&types.MarketEvent{
			EventID:   uuid.New().String(),
			Type:      eventType,
			Actor:     caller,
			CreatedAt: time.Now(),
		}).Error
	})
	if err != nil {
		return err
	}

	log.Info().Bool("paused", paused).Str("caller", caller).Msg("pause gate toggled")
	return nil
}
