package game

import (
	"errors"
	"time"

	"gachabot/internal/command"
	"gachabot/internal/economy"
	"gachabot/internal/inventory"
)

const (
	DefaultPrefix         = "w."
	DefaultCurrencyName   = "credits"
	DefaultDropTimeout    = 10 * time.Minute
	DefaultTradeTimeout   = 60 * time.Second
	DefaultConfirmTimeout = 15 * time.Second
	DefaultHistorySize    = 500

	maxDropAttempts = 5
)

// Config carries the externally tunable constants of the game.
type Config struct {
	Prefix         string
	CurrencyName   string
	Admins         []string
	DropTimeout    time.Duration
	TradeTimeout   time.Duration
	RemovalTimeout time.Duration
	GiftTimeout    time.Duration
	UpgradeTimeout time.Duration
	HistorySize    int
	Rules          economy.Rules
}

func DefaultConfig() Config {
	return Config{
		Prefix:         DefaultPrefix,
		CurrencyName:   DefaultCurrencyName,
		DropTimeout:    DefaultDropTimeout,
		TradeTimeout:   DefaultTradeTimeout,
		RemovalTimeout: DefaultConfirmTimeout,
		GiftTimeout:    DefaultConfirmTimeout,
		UpgradeTimeout: DefaultConfirmTimeout,
		HistorySize:    DefaultHistorySize,
		Rules:          economy.DefaultRules(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Prefix == "" {
		c.Prefix = d.Prefix
	}
	if c.CurrencyName == "" {
		c.CurrencyName = d.CurrencyName
	}
	if c.DropTimeout <= 0 {
		c.DropTimeout = d.DropTimeout
	}
	if c.TradeTimeout <= 0 {
		c.TradeTimeout = d.TradeTimeout
	}
	if c.RemovalTimeout <= 0 {
		c.RemovalTimeout = d.RemovalTimeout
	}
	if c.GiftTimeout <= 0 {
		c.GiftTimeout = d.GiftTimeout
	}
	if c.UpgradeTimeout <= 0 {
		c.UpgradeTimeout = d.UpgradeTimeout
	}
	if c.HistorySize <= 0 {
		c.HistorySize = d.HistorySize
	}
	if c.Rules.UpgradeCosts == nil {
		c.Rules = d.Rules
	}
	return c
}

func (c Config) IsAdmin(userID string) bool {
	for _, id := range c.Admins {
		if id == userID {
			return true
		}
	}
	return false
}

// Store-level sentinels are re-exported so callers only need this package.
var (
	ErrBadUsage           = command.ErrBadUsage
	ErrUnknownFlag        = command.ErrUnknownFlag
	ErrItemNotFound       = inventory.ErrItemNotFound
	ErrInsufficientFunds  = inventory.ErrInsufficientFunds
	ErrInsufficientParts  = inventory.ErrInsufficientParts
	ErrNotUpgradable      = inventory.ErrNotUpgradable
	ErrAlreadyClaimed     = inventory.ErrAlreadyClaimed
	ErrConcurrentMutation = inventory.ErrConcurrentMutation
	ErrCharacterNotFound  = inventory.ErrCharacterNotFound
)

var (
	ErrNotTrading        = errors.New("you are not in a trade")
	ErrSelfTrade         = errors.New("you cannot trade with yourself")
	ErrAlreadyInOffer    = errors.New("that waifu is already in your offer")
	ErrNotInOffer        = errors.New("that waifu is not in your offer")
	ErrInvalidPrice      = errors.New("roll price out of range")
	ErrSeriesNotFound    = errors.New("series not found")
	ErrNoAssignedChannel = errors.New("no drop channel assigned")
	ErrLockConflict      = errors.New("already removing or trading")
	ErrTimeout           = errors.New("timed out waiting for a reply")
	ErrCancelled         = errors.New("cancelled")
	ErrFavoriteProtected = errors.New("waifu is a favorite")
	ErrAllFavorites      = errors.New("all matching waifus are favorites")
	ErrNoMatches         = errors.New("no waifus match that criteria")
	ErrSelfGift          = errors.New("you cannot gift yourself")
	ErrForbidden         = errors.New("not allowed")
	ErrDropPending       = errors.New("a drop is already being created")
	ErrDropUnavailable   = errors.New("could not create a drop")
)
