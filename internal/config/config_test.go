package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  env: prod\n"))
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.App.Env)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, ":9980", cfg.App.HTTPAddr)
	assert.Equal(t, "data/stock", cfg.Data.Root)
	assert.Equal(t, "data/rules.db", cfg.Rules.DBPath)
	assert.Equal(t, 1000, cfg.Backtest.DefaultShares)
	assert.Equal(t, 0.001425, cfg.Backtest.FeeRate)
	assert.Equal(t, 20.0, cfg.Backtest.MinFee)
	assert.Equal(t, 0.003, cfg.Backtest.TaxRate)
}

func TestLoad_Override(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
app:
  http_addr: ":8080"
backtest:
  default_shares: 2000
  fee_rate: 0.001
`))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.App.HTTPAddr)
	assert.Equal(t, 2000, cfg.Backtest.DefaultShares)
	assert.Equal(t, 0.001, cfg.Backtest.FeeRate)
}

func TestLoad_RejectsBadRates(t *testing.T) {
	_, err := Load(writeConfig(t, "backtest:\n  fee_rate: 1.5\n"))
	require.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)

	_, err = Load(" ")
	require.Error(t, err)
}
