package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "market.db", cfg.Database.Path)
	assert.Equal(t, int64(5), cfg.Market.FeePercentage)
	assert.Equal(t, int64(1), cfg.Market.MinFee)
	assert.Equal(t, int64(70), cfg.Market.MaxFee)
	assert.Equal(t, int64(1200), cfg.Market.FlatServiceFee)
	assert.Equal(t, "fee-receiver-a", cfg.Market.FeeReceiverA)
	assert.Equal(t, "fee-receiver-b", cfg.Market.FeeReceiverB)
	assert.Equal(t, "market-admin", cfg.Market.SeedAdmin)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "market.yaml")
	content := []byte(`
server:
  port: "9090"
market:
  fee_percentage: 10
  min_fee: 2
  max_fee: 50
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, int64(10), cfg.Market.FeePercentage)
	assert.Equal(t, int64(2), cfg.Market.MinFee)
	assert.Equal(t, int64(50), cfg.Market.MaxFee)
	// Unset keys fall back to defaults
	assert.Equal(t, int64(1200), cfg.Market.FlatServiceFee)
}

func TestLoadRejectsInvalidBounds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "market.yaml")
	content := []byte(`
market:
  min_fee: 50
  max_fee: 10
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsPercentageOutsideBounds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "market.yaml")
	content := []byte(`
market:
  fee_percentage: 80
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load("/nonexistent/market.yaml")
	assert.Error(t, err)
}
