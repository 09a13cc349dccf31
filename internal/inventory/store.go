// Package inventory is the durable side of the game: balances, owned waifu
// instances, per-user flow locks, guild drop state and the read-only
// character catalogue.
package inventory

import (
	"context"
	"errors"
	"time"

	"gachabot/internal/economy"
)

var (
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientParts  = errors.New("insufficient upgrade parts")
	ErrItemNotFound       = errors.New("waifu not found")
	ErrNotOwner           = errors.New("waifu is not owned by that user")
	ErrCharacterNotFound  = errors.New("character not found")
	ErrShowNotFound       = errors.New("series not found")
	ErrNoDroppable        = errors.New("no droppable characters left")
	ErrLocked             = errors.New("user is locked by another flow")
	ErrAlreadyClaimed     = errors.New("daily already claimed")
	ErrNotUpgradable      = errors.New("waifu cannot be upgraded further")
	ErrTxConflict         = errors.New("transaction conflict, please retry")
	ErrInvalidAmount      = errors.New("amount must be > 0")
	ErrConcurrentMutation = errors.New("trade items or funds changed before settlement")
)

type LockKind string

const (
	LockTrading  LockKind = "trading"
	LockRemoving LockKind = "removing"
)

type ImageVariant string

const (
	VariantNormal  ImageVariant = "normal"
	VariantMirror  ImageVariant = "mirror"
	VariantFlipped ImageVariant = "flipped"
)

type Balance struct {
	UserID         string `json:"user_id"`
	Currency       int64  `json:"currency"`
	Upgrades       int64  `json:"upgrades"`
	TradingLocked  bool   `json:"trading_locked"`
	RemovingLocked bool   `json:"removing_locked"`
}

// Item is an owned waifu instance. Index is the 1-based position in the
// owner's inventory ordered by acquisition.
type Item struct {
	ID          int64          `json:"id"`
	UserID      string         `json:"user_id"`
	Index       int            `json:"index"`
	CharacterID int64          `json:"character_id"`
	ImageID     int64          `json:"image_id"`
	ImageURL    string         `json:"image_url"`
	Name        string         `json:"name"`
	Rarity      economy.Rarity `json:"rarity"`
	Favorite    bool           `json:"favorite"`
	AcquiredAt  time.Time      `json:"acquired_at"`
}

type Show struct {
	ID      int64  `json:"id"`
	EnTitle string `json:"en_title"`
	JaTitle string `json:"ja_title"`
	IsManga bool   `json:"is_manga"`
}

type Image struct {
	ID          int64  `json:"id"`
	CharacterID int64  `json:"character_id"`
	NormalURL   string `json:"normal_url"`
	MirrorURL   string `json:"mirror_url"`
	FlippedURL  string `json:"flipped_url"`
	Droppable   bool   `json:"droppable"`
}

func (i Image) URL(v ImageVariant) string {
	switch v {
	case VariantMirror:
		if i.MirrorURL != "" {
			return i.MirrorURL
		}
	case VariantFlipped:
		if i.FlippedURL != "" {
			return i.FlippedURL
		}
	}
	return i.NormalURL
}

type Character struct {
	ID        int64   `json:"id"`
	EnName    string  `json:"en_name"`
	JaName    string  `json:"ja_name"`
	AltName   string  `json:"alt_name"`
	Droppable bool    `json:"droppable"`
	ShowIDs   []int64 `json:"show_ids"`
	Shows     []Show  `json:"shows,omitempty"`
	Images    []Image `json:"images,omitempty"`
}

func (c Character) InShow(showID int64) bool {
	for _, id := range c.ShowIDs {
		if id == showID {
			return true
		}
	}
	return false
}

// NewItem describes an instance about to be created.
type NewItem struct {
	UserID      string
	CharacterID int64
	ImageID     int64
	Rarity      economy.Rarity
}

// TradeSide is one participant's contribution to a settlement.
type TradeSide struct {
	UserID   string
	ItemIDs  []int64
	Currency int64
}

type Settlement struct {
	A TradeSide
	B TradeSide
}

// Store is the inventory collaborator. Every method is individually atomic;
// SettleTrade, Transfer and UpgradeItem are atomic across all rows they touch.
type Store interface {
	Balance(ctx context.Context, userID string) (Balance, error)
	Debit(ctx context.Context, userID string, amount int64) error
	Credit(ctx context.Context, userID string, amount int64) error
	SetCurrency(ctx context.Context, userID string, amount int64) error
	Transfer(ctx context.Context, fromUserID, toUserID string, amount int64) error
	AddUpgrades(ctx context.Context, userID string, amount int64) error
	ClaimDaily(ctx context.Context, userID string, amount int64, now time.Time) (Balance, error)

	Items(ctx context.Context, userID string) ([]Item, error)
	ItemAt(ctx context.Context, userID string, index int) (Item, error)
	ItemOwnedBy(ctx context.Context, itemID int64, userID string) (bool, error)
	AddItem(ctx context.Context, in NewItem) (Item, error)
	DeleteItem(ctx context.Context, itemID int64) error
	SetFavorite(ctx context.Context, itemID int64, favorite bool) error
	UpgradeItem(ctx context.Context, userID string, itemID int64, cost int64) (Item, error)
	SettleTrade(ctx context.Context, s Settlement) error

	TryLock(ctx context.Context, userID string, kind LockKind) error
	LockPair(ctx context.Context, a, b string, kind LockKind) error
	SetLock(ctx context.Context, userID string, kind LockKind, locked bool) error
	Lock(ctx context.Context, userID string, kind LockKind) (bool, error)
	ResetLocks(ctx context.Context) error

	Character(ctx context.Context, id int64) (Character, error)
	RandomDroppable(ctx context.Context, exclude []int64) (int64, error)
	DroppableImages(ctx context.Context, characterID int64) ([]Image, error)
	SearchCharacters(ctx context.Context, query string, limit int) ([]Character, error)
	Show(ctx context.Context, id int64) (Show, error)
	ShowsLike(ctx context.Context, query string) ([]Show, error)

	AssignChannel(ctx context.Context, guildID, channelID string) error
	AssignedChannel(ctx context.Context, guildID string) (string, error)
	History(ctx context.Context, guildID string) ([]int64, error)
	SaveHistory(ctx context.Context, guildID string, history []int64) error
}
