package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/tripsplit/internal/money"
	"github.com/mmynk/tripsplit/internal/settlement"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"TRIPSPLIT_CONFIG", "PORT", "DB_PATH", "LOG_LEVEL", "SETTLEMENT_STRATEGY"} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFileAndEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "tripsplit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 9090
db_path: /tmp/trips.db
settlement:
  strategy: greedy
  rounding_mode: roundHalfEven
  remainder_target: payer
currencies:
  HUF: 0
  XTS: 4
`), 0o600))
	t.Setenv("TRIPSPLIT_CONFIG", path)
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("PORT", "7070")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Port)
	assert.Equal(t, "/tmp/trips.db", cfg.DBPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, settlement.StrategyGreedy, cfg.Settlement.Strategy)
	assert.Equal(t, money.RoundHalfEven, cfg.Settlement.RoundingMode)
	assert.Equal(t, money.Payer, cfg.Settlement.RemainderTarget)
	assert.Equal(t, map[string]int32{"HUF": 0, "XTS": 4}, cfg.Currencies)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		file string
	}{
		{name: "bad port", env: map[string]string{"PORT": "eighty"}},
		{name: "unknown strategy", env: map[string]string{"SETTLEMENT_STRATEGY": "optimal"}},
		{name: "missing file", env: map[string]string{"TRIPSPLIT_CONFIG": "/does/not/exist.yaml"}},
		{name: "unknown rounding mode", file: "settlement:\n  rounding_mode: bankers\n"},
		{name: "negative places", file: "currencies:\n  USD: -2\n"},
		{name: "malformed yaml", file: "port: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			if tt.file != "" {
				path := filepath.Join(t.TempDir(), "c.yaml")
				require.NoError(t, os.WriteFile(path, []byte(tt.file), 0o600))
				t.Setenv("TRIPSPLIT_CONFIG", path)
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
