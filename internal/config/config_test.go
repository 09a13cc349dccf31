package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gachabot/internal/economy"
	"gachabot/internal/game"
)

func TestLoadBotDefaults(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "tok")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("GACHABOT_PAYOUTS", "")
	t.Setenv("GACHABOT_UPGRADE_COSTS", "")

	cfg, err := LoadBotFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "tok", cfg.DiscordToken)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, game.DefaultPrefix, cfg.Game.Prefix)
	assert.Equal(t, economy.DefaultPayouts, cfg.Game.Rules.Payouts)
	assert.Equal(t, 10*time.Second, cfg.SweepEvery)
}

func TestLoadBotRequiresToken(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "")
	_, err := LoadBotFromEnv()
	require.Error(t, err)
}

func TestLoadBotOverrides(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "tok")
	t.Setenv("GACHABOT_PREFIX", "g!")
	t.Setenv("GACHABOT_ADMINS", " 1, 2 ,,3")
	t.Setenv("GACHABOT_TRADE_TIMEOUT", "90s")
	t.Setenv("GACHABOT_HISTORY_SIZE", "not-a-number")
	t.Setenv("GACHABOT_PAYOUTS", "1,2,3,4,5,6")
	t.Setenv("GACHABOT_UPGRADE_COSTS", "2, 4, 8, 16")
	t.Setenv("OTEL_ENABLED", "true")

	cfg, err := LoadBotFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "g!", cfg.Game.Prefix)
	assert.Equal(t, []string{"1", "2", "3"}, cfg.Game.Admins)
	assert.Equal(t, 90*time.Second, cfg.Game.TradeTimeout)
	assert.Equal(t, game.DefaultHistorySize, cfg.Game.HistorySize)
	assert.Equal(t, [6]int64{1, 2, 3, 4, 5, 6}, cfg.Game.Rules.Payouts)
	assert.Equal(t, int64(16), cfg.Game.Rules.UpgradeCosts[economy.RarityEpic])
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "gachabot", cfg.Metrics.ServiceName)

	// package defaults stay untouched
	cost, _ := economy.UpgradeCost(economy.RarityEpic)
	assert.Equal(t, int64(20), cost)
}

func TestLoadBotRejectsMalformedTables(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "tok")
	for _, raw := range []string{"1,2,3", "1,2,3,4,5,x", "1,2,3,4,5,-6"} {
		t.Setenv("GACHABOT_PAYOUTS", raw)
		_, err := LoadBotFromEnv()
		require.Error(t, err, raw)
	}
}

func TestLoadAPI(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://x")
	t.Setenv("GACHABOT_ADMIN_TOKEN", "")
	_, err := LoadAPIFromEnv()
	require.Error(t, err)

	t.Setenv("GACHABOT_ADMIN_TOKEN", "secret")
	t.Setenv("PORT", "9090")
	cfg, err := LoadAPIFromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "secret", cfg.AdminToken)
}

func TestLoadCLI(t *testing.T) {
	t.Setenv("GACHACTL_API_BASE_URL", "http://api.test/")
	cfg := LoadCLIFromEnv()
	assert.Equal(t, "http://api.test", cfg.APIBaseURL)
}
