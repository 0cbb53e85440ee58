package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 60*time.Second, cfg.Strategy.RefreshInterval)
	assert.Equal(t, 600*time.Second, cfg.Strategy.SkipCooldown)
	assert.Equal(t, 3, cfg.Strategy.MinProfitPerItem)
	assert.InDelta(t, 0.0005, cfg.Strategy.MinROI, 1e-12)
	assert.Equal(t, 50, cfg.Strategy.MinTotalVolume)
	assert.InDelta(t, 0.02, cfg.Strategy.MarketTaxRate, 1e-12)
	assert.Equal(t, 2*time.Hour, cfg.Strategy.PriceMemoryTTL)
	assert.Equal(t, 10*time.Second, cfg.Feed.Timeout)
	assert.Equal(t, []string{"stdout"}, cfg.Logging.OutputPaths)
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "未找到配置文件")
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
strategy:
  refresh_interval: 30s
  min_profit_per_item: 5
database:
  in_memory: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("FLIPS_STRATEGY_MIN_ROI", "0.01")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Strategy.RefreshInterval)
	assert.Equal(t, 5, cfg.Strategy.MinProfitPerItem)
	assert.InDelta(t, 0.01, cfg.Strategy.MinROI, 1e-12)
	assert.True(t, cfg.Database.InMemory)
}

func TestValidate_AggregatesErrors(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Strategy.RefreshInterval = 0
	cfg.Strategy.MarketTaxRate = 1.5
	cfg.Server.Addr = ""

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "strategy.refresh_interval")
	assert.Contains(t, err.Error(), "strategy.market_tax_rate")
	assert.Contains(t, err.Error(), "server.addr")
}
