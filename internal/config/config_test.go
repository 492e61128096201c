package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("COMMISSION_RATE", "")
	t.Setenv("STATS_CACHE_TTL_SECONDS", "")
	t.Setenv("SEED_DEMO", "")
	t.Setenv("LOG_LEVEL", "")

	cfg := Load()
	assert.Equal(t, "0.1", cfg.CommissionRate.String())
	assert.Equal(t, 30, cfg.StatsCacheTTLSeconds)
	assert.True(t, cfg.SeedDemo, "in-memory only deployments seed demo data by default")
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFallsBackOnInvalidCommissionRate(t *testing.T) {
	t.Setenv("COMMISSION_RATE", "1.5")
	assert.Equal(t, "0.1", Load().CommissionRate.String())

	t.Setenv("COMMISSION_RATE", "0.25")
	assert.Equal(t, "0.25", Load().CommissionRate.String())
}

func TestLoadDisablesSeedWithDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/stockledger")
	t.Setenv("SEED_DEMO", "")

	assert.False(t, Load().SeedDemo)
}
