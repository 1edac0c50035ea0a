package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoad_FromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yaml")
	yaml := `
environment: PRODUCTION
providers:
  - name: binance-main
    exchange: binance
    market_type: spot
    testnet: false
    credential:
      api_key: key123
      api_secret: secret456
risk_default:
  max_leverage: 5
  max_position_size_percent: "20"
  max_open_positions: 10
  max_daily_loss_percent: "5"
  max_drawdown_percent: "15"
  order_throttle: 10
  order_burst: 5
eventbus:
  buffer_size: 512
  fanout_workers: 8
worker_pool:
  queue_depth: 128
reconcile:
  interval_seconds: 30
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, EnvProduction, cfg.Environment)
	require.Len(t, cfg.Providers, 1)
	require.Equal(t, "binance-main", cfg.Providers[0].Name)
	require.Equal(t, 512, cfg.Eventbus.BufferSize)
	require.Equal(t, 8, cfg.Eventbus.FanoutWorkers)

	limits := cfg.RiskDefault.ToLimits()
	require.Equal(t, 5, limits.MaxLeverage)
	require.Equal(t, 10, limits.MaxOpenPositions)
}

func TestLoad_RejectsUnknownEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte("environment: sandbox\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_RejectsDuplicateProviderNames(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yaml")
	yaml := `
environment: development
providers:
  - name: dup
    exchange: binance
    market_type: spot
    credential: {api_key: a, api_secret: b}
  - name: dup
    exchange: bybit
    market_type: linear
    credential: {api_key: a, api_secret: b}
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadOrDefault_FallsBackWhenMissing(t *testing.T) {
	cfg, found, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.False(t, found)
	require.Equal(t, EnvDevelopment, cfg.Environment)
}
