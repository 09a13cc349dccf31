package game

import (
	"time"

	"gachabot/internal/economy"
	"gachabot/internal/inventory"
)

type DropView struct {
	ID          string         `json:"id"`
	GuildID     string         `json:"guild_id"`
	ChannelID   string         `json:"channel_id"`
	CharacterID int64          `json:"character_id"`
	Name        string         `json:"name"`
	Hint        string         `json:"hint"`
	ImageURL    string         `json:"image_url"`
	Rarity      economy.Rarity `json:"rarity"`
	CreatedAt   time.Time      `json:"created_at"`
	ExpiresAt   time.Time      `json:"expires_at"`
}

// Claim is what the winner of a drop received.
type Claim struct {
	Drop         DropView       `json:"drop"`
	UserID       string         `json:"user_id"`
	Item         inventory.Item `json:"item"`
	Bonus        int64          `json:"bonus"`
	UpgradeParts int64          `json:"upgrade_parts"`
}

type RollResult struct {
	Item      inventory.Item      `json:"item"`
	Character inventory.Character `json:"character"`
	Price     int64               `json:"price"`
	Balance   int64               `json:"balance"`
}

type OfferedItem struct {
	ItemID int64          `json:"item_id"`
	Index  int            `json:"index"`
	Name   string         `json:"name"`
	Rarity economy.Rarity `json:"rarity"`
}

type OfferView struct {
	UserID    string        `json:"user_id"`
	Items     []OfferedItem `json:"items"`
	Currency  int64         `json:"currency"`
	Confirmed bool          `json:"confirmed"`
}

type TradeView struct {
	ID           string       `json:"id"`
	ChannelID    string       `json:"channel_id"`
	Offers       [2]OfferView `json:"offers"`
	State        TradeState   `json:"state"`
	LastActivity time.Time    `json:"last_activity"`
}

// Offer returns the offer made by userID.
func (v TradeView) Offer(userID string) (OfferView, bool) {
	for _, o := range v.Offers {
		if o.UserID == userID {
			return o, true
		}
	}
	return OfferView{}, false
}

type TradeResult struct {
	View  TradeView  `json:"view"`
	State TradeState `json:"state"`
}

// RemovalReport describes a removal batch. A non-nil Failed means the batch
// stopped there and that item was kept. A non-nil Unpaid is the last entry of
// Removed: it was deleted but its payout could not be credited. Payout only
// counts what was actually credited.
type RemovalReport struct {
	Requested        []inventory.Item `json:"requested"`
	Removed          []inventory.Item `json:"removed"`
	Payout           int64            `json:"payout"`
	Failed           *inventory.Item  `json:"failed,omitempty"`
	Unpaid           *inventory.Item  `json:"unpaid,omitempty"`
	FailErr          error            `json:"-"`
	IgnoredFavorites []inventory.Item `json:"ignored_favorites,omitempty"`
}

func (r RemovalReport) Partial() bool {
	return r.Failed != nil || r.Unpaid != nil
}

type WagerResult struct {
	Won     bool  `json:"won"`
	Amount  int64 `json:"amount"`
	Balance int64 `json:"balance"`
}
