package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"gachabot/internal/economy"
	"gachabot/internal/game"
	"gachabot/internal/metrics"
)

type BotConfig struct {
	DiscordToken string
	DatabaseURL  string
	MaxConns     int32
	SweepEvery   time.Duration
	Game         game.Config
	Metrics      metrics.Config
}

type APIConfig struct {
	Addr        string
	DatabaseURL string
	MaxConns    int32
	AdminToken  string
	Game        game.Config
	Metrics     metrics.Config
}

type CLIConfig struct {
	APIBaseURL string
	AdminToken string
}

// loadDotenv reads .env from the working directory when present. Variables
// already set in the environment win.
func loadDotenv() {
	_ = godotenv.Load()
}

func LoadBotFromEnv() (BotConfig, error) {
	loadDotenv()
	gc, err := loadGame()
	if err != nil {
		return BotConfig{}, err
	}
	cfg := BotConfig{
		DiscordToken: strings.TrimSpace(os.Getenv("DISCORD_TOKEN")),
		DatabaseURL:  strings.TrimSpace(os.Getenv("DATABASE_URL")),
		MaxConns:     int32(envIntDefault("GACHABOT_DB_MAX_CONNS", 10)),
		SweepEvery:   envDurationDefault("GACHABOT_SWEEP_EVERY", 10*time.Second),
		Game:         gc,
		Metrics:      loadMetrics("gachabot"),
	}
	if cfg.DiscordToken == "" {
		return cfg, fmt.Errorf("DISCORD_TOKEN is required")
	}
	return cfg, nil
}

func LoadAPIFromEnv() (APIConfig, error) {
	loadDotenv()
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("GACHABOT_API_ADDR", ":8080")
	}
	gc, err := loadGame()
	if err != nil {
		return APIConfig{}, err
	}
	cfg := APIConfig{
		Addr:        addr,
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		MaxConns:    int32(envIntDefault("GACHABOT_DB_MAX_CONNS", 10)),
		AdminToken:  strings.TrimSpace(os.Getenv("GACHABOT_ADMIN_TOKEN")),
		Game:        gc,
		Metrics:     loadMetrics("gachabot-api"),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.AdminToken == "" {
		return cfg, fmt.Errorf("GACHABOT_ADMIN_TOKEN is required")
	}
	return cfg, nil
}

func LoadCLIFromEnv() CLIConfig {
	loadDotenv()
	return CLIConfig{
		APIBaseURL: strings.TrimRight(envDefault("GACHACTL_API_BASE_URL", "http://localhost:8080"), "/"),
		AdminToken: strings.TrimSpace(os.Getenv("GACHABOT_ADMIN_TOKEN")),
	}
}

func loadGame() (game.Config, error) {
	cfg := game.DefaultConfig()
	cfg.Prefix = envDefault("GACHABOT_PREFIX", cfg.Prefix)
	cfg.CurrencyName = envDefault("GACHABOT_CURRENCY", cfg.CurrencyName)
	cfg.Admins = envList("GACHABOT_ADMINS")
	cfg.DropTimeout = envDurationDefault("GACHABOT_DROP_TIMEOUT", cfg.DropTimeout)
	cfg.TradeTimeout = envDurationDefault("GACHABOT_TRADE_TIMEOUT", cfg.TradeTimeout)
	cfg.RemovalTimeout = envDurationDefault("GACHABOT_REMOVAL_TIMEOUT", cfg.RemovalTimeout)
	cfg.GiftTimeout = envDurationDefault("GACHABOT_GIFT_TIMEOUT", cfg.GiftTimeout)
	cfg.UpgradeTimeout = envDurationDefault("GACHABOT_UPGRADE_TIMEOUT", cfg.UpgradeTimeout)
	cfg.HistorySize = envIntDefault("GACHABOT_HISTORY_SIZE", cfg.HistorySize)

	if raw := strings.TrimSpace(os.Getenv("GACHABOT_PAYOUTS")); raw != "" {
		vals, err := parseInts(raw, len(cfg.Rules.Payouts))
		if err != nil {
			return cfg, fmt.Errorf("GACHABOT_PAYOUTS: %w", err)
		}
		copy(cfg.Rules.Payouts[:], vals)
	}
	if raw := strings.TrimSpace(os.Getenv("GACHABOT_UPGRADE_COSTS")); raw != "" {
		vals, err := parseInts(raw, 4)
		if err != nil {
			return cfg, fmt.Errorf("GACHABOT_UPGRADE_COSTS: %w", err)
		}
		for i, v := range vals {
			cfg.Rules.UpgradeCosts[economy.Rarity(i)] = v
		}
	}
	return cfg, nil
}

func loadMetrics(service string) metrics.Config {
	return metrics.Config{
		Enabled:     envBoolDefault("OTEL_ENABLED", false),
		Endpoint:    strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		Insecure:    envBoolDefault("OTEL_INSECURE", false),
		ServiceName: envDefault("OTEL_SERVICE_NAME", service),
	}
}

// parseInts reads exactly n comma separated non-negative integers.
func parseInts(raw string, n int) ([]int64, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("want %d comma separated values, got %d", n, len(parts))
	}
	out := make([]int64, n)
	for i, p := range parts {
		v, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, err
		}
		if v < 0 {
			return nil, fmt.Errorf("value %d must not be negative", v)
		}
		out[i] = v
	}
	return out, nil
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envList(key string) []string {
	var out []string
	for _, p := range strings.Split(os.Getenv(key), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envIntDefault(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBoolDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
