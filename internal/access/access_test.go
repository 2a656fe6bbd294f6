package access

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/cardex/market-api/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var testDBCounter int64

func setupTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:access_test_%d?mode=memory&cache=shared",
		atomic.AddInt64(&testDBCounter, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&types.MarketState{},
		&types.MarketEvent{},
		&RoleAssignment{},
	))

	require.NoError(t, db.Create(&types.MarketState{
		FeePercentage:  5,
		MinFee:         1,
		MaxFee:         70,
		FlatServiceFee: 10,
		FeeReceiverA:   "recv-a",
		FeeReceiverB:   "recv-b",
		EngineVersion:  "v1",
	}).Error)

	service := NewService(db)
	require.NoError(t, service.Bootstrap("admin"))

	return service, db
}

func TestBootstrapSeedsAllRoles(t *testing.T) {
	service, _ := setupTestService(t)

	assert.True(t, service.HasRole(types.RoleAdmin, "admin"))
	assert.True(t, service.HasRole(types.RolePauser, "admin"))
	assert.True(t, service.HasRole(types.RoleUpgrader, "admin"))
}

func TestBootstrapIsIdempotent(t *testing.T) {
	service, _ := setupTestService(t)

	// A second bootstrap with a different principal must be a no-op
	require.NoError(t, service.Bootstrap("other"))
	assert.False(t, service.HasRole(types.RoleAdmin, "other"))
}

func TestGrantAndRevokeRole(t *testing.T) {
	service, _ := setupTestService(t)

	require.NoError(t, service.GrantRole("admin", types.RolePauser, "ops"))
	assert.True(t, service.HasRole(types.RolePauser, "ops"))

	// Holding PAUSER does not imply the other roles
	assert.False(t, service.HasRole(types.RoleAdmin, "ops"))

	require.NoError(t, service.RevokeRole("admin", types.RolePauser, "ops"))
	assert.False(t, service.HasRole(types.RolePauser, "ops"))
}

func TestGrantRoleRequiresAdmin(t *testing.T) {
	service, _ := setupTestService(t)

	err := service.GrantRole("stranger", types.RolePauser, "ops")
	assert.ErrorIs(t, err, types.ErrUnauthorized)
	assert.False(t, service.HasRole(types.RolePauser, "ops"))

	err = service.RevokeRole("stranger", types.RoleAdmin, "admin")
	assert.ErrorIs(t, err, types.ErrUnauthorized)
	assert.True(t, service.HasRole(types.RoleAdmin, "admin"))
}

func TestPauseRequiresPauserRole(t *testing.T) {
	service, _ := setupTestService(t)

	assert.ErrorIs(t, service.Pause("stranger"), types.ErrUnauthorized)

	paused, err := service.IsPaused()
	require.NoError(t, err)
	assert.False(t, paused)
}

func TestPauseUnpauseRoundTrip(t *testing.T) {
	service, db := setupTestService(t)

	require.NoError(t, service.Pause("admin"))
	paused, err := service.IsPaused()
	require.NoError(t, err)
	assert.True(t, paused)

	// Pausing twice is an error
	assert.ErrorIs(t, service.Pause("admin"), types.ErrAlreadyPaused)

	require.NoError(t, service.Unpause("admin"))
	paused, err = service.IsPaused()
	require.NoError(t, err)
	assert.False(t, paused)

	assert.ErrorIs(t, service.Unpause("admin"), types.ErrNotPaused)

	var events []types.MarketEvent
	require.NoError(t, db.Order("id ASC").Find(&events).Error)
	require.Len(t, events, 2)
	assert.Equal(t, types.EventMarketPaused, events[0].Type)
	assert.Equal(t, types.EventMarketUnpaused, events[1].Type)
}

func TestDedicatedPauserCanToggle(t *testing.T) {
	service, _ := setupTestService(t)

	require.NoError(t, service.GrantRole("admin", types.RolePauser, "ops"))
	require.NoError(t, service.Pause("ops"))

	// ADMIN without PAUSER cannot unpause
	require.NoError(t, service.RevokeRole("admin", types.RolePauser, "admin"))
	assert.ErrorIs(t, service.Unpause("admin"), types.ErrUnauthorized)

	require.NoError(t, service.Unpause("ops"))
}
