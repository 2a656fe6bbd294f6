// Package upgrade gates the swap of the active trading engine
// implementation. Engines are stateless logic over shared storage, so a
// swap replaces only the logic: listings, fee policy, roles and the pause
// flag are byte-identical before and after.
package upgrade

import (
	"sync"
	"time"

	"github.com/cardex/market-api/internal/access"
	"github.com/cardex/market-api/internal/market"
	"github.com/cardex/market-api/internal/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Factory builds an engine implementation over the shared storage
type Factory func() market.Engine

// Service holds the registered engine versions and the currently active
// one. Switching is UPGRADER-gated and atomic with respect to dispatch.
type Service struct {
	db       *gorm.DB
	access   *access.Service
	registry map[string]Factory

	mu      sync.RWMutex
	current market.Engine
}

func NewService(db *gorm.DB, accessService *access.Service) *Service {
	return &Service{
		db:       db,
		access:   accessService,
		registry: make(map[string]Factory),
	}
}

// Register adds an engine version to the registry
func (s *Service) Register(version string, factory Factory) {
	s.registry[version] = factory
}

// Activate installs a version without authorization checks. Used once at
// boot to bring up the persisted engine version.
func (s *Service) Activate(version string) error {
	factory, ok := s.registry[version]
	if !ok {
		return types.ErrUnknownVersion
	}

	s.mu.Lock()
	s.current = factory()
	s.mu.Unlock()

	return s.db.Model(&types.MarketState{}).
		Where("1 = 1").
		Update("engine_version", version).Error
}

// Current returns the active engine. Handlers call this per request.
func (s *Service) Current() market.Engine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// ActiveVersion returns the active engine's version string
func (s *Service) ActiveVersion() string {
	return s.Current().Version()
}

// Switch replaces the active engine implementation. UPGRADER role
// required; the requested version must be registered and different from
// the running one.
func (s *Service) Switch(caller, version string) error {
	if !s.access.HasRole(types.RoleUpgrader, caller) {
		return types.ErrUnauthorized
	}

	factory, ok := s.registry[version]
	if !ok {
		return types.ErrUnknownVersion
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil && s.current.Version() == version {
		return types.ErrVersionAlreadyLive
	}

	// Persist first: if the write fails the running engine is untouched and
	// a restart comes back up on the version that is actually stored.
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&types.MarketState{}).
			Where("1 = 1").
			Update("engine_version", version).Error; err != nil {
			return err
		}
		return tx.Create(&types.MarketEvent{
			EventID:   uuid.New().String(),
			Type:      types.EventEngineUpgraded,
			Actor:     caller,
			CreatedAt: time.Now(),
		}).Error
	})
	if err != nil {
		return err
	}

	s.current = factory()

	log.Info().Str("version", version).Str("caller", caller).
		Msg("engine implementation switched")
	return nil
}
