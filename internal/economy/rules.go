package economy

import (
	"fmt"
	"math/rand"
)

type Rarity int

const (
	RarityCommon Rarity = iota
	RarityUncommon
	RarityRare
	RarityEpic
	RarityLegendary
	RarityUltra
)

const MaxRarity = RarityUltra

const (
	MinRollPrice     = int64(100)
	MaxRollPrice     = int64(15_000)
	DefaultRollPrice = MinRollPrice

	DailyCurrency = int64(500)

	DropBonusMin = int64(50)
	DropBonusMax = int64(125)

	// One in UpgradePartOdds claimed drops also yields an upgrade part.
	UpgradePartOdds = 10
)

// Thresholds bucket a draw in [0, ceiling) into a tier, highest tier first.
var rarityThresholds = []struct {
	below  float64
	rarity Rarity
}{
	{0.001, RarityUltra},
	{0.005, RarityLegendary},
	{0.015, RarityEpic},
	{0.075, RarityRare},
	{0.25, RarityUncommon},
}

var DefaultPayouts = [6]int64{25, 75, 250, 1250, 3750, 18750}

var DefaultUpgradeCosts = map[Rarity]int64{
	RarityCommon:   1,
	RarityUncommon: 5,
	RarityRare:     10,
	RarityEpic:     20,
}

func (r Rarity) Valid() bool {
	return r >= RarityCommon && r <= MaxRarity
}

// Stars is the 1-based star count shown to players.
func (r Rarity) Stars() int {
	return int(r) + 1
}

func (r Rarity) String() string {
	if !r.Valid() {
		return fmt.Sprintf("rarity(%d)", int(r))
	}
	out := make([]rune, 0, 5)
	for i := 0; i < 5; i++ {
		if i < r.Stars() {
			out = append(out, '★')
		} else {
			out = append(out, '☆')
		}
	}
	if r == RarityUltra {
		return "✪" + string(out)
	}
	return string(out)
}

// ClampPrice caps a roll price at MaxRollPrice.
func ClampPrice(price int64) int64 {
	if price > MaxRollPrice {
		return MaxRollPrice
	}
	return price
}

// CeilingForPrice is the upper bound of the uniform draw used by
// RarityForPrice. Spending more lowers the ceiling, which concentrates the
// draw in the rare buckets.
func CeilingForPrice(price int64) float64 {
	if price < MinRollPrice {
		return 1.0
	}
	p := float64(ClampPrice(price))
	switch {
	case p > 5000:
		return (0.005-0.015)/(15000-5000)*p + 0.02
	case p > 1000:
		return (0.015-0.075)/(5000-1000)*p + 0.09
	case p > 300:
		return (0.075-0.25)/(1000-300)*p + 0.325
	default:
		return (0.25-0.75)/(300-100)*p + 1
	}
}

// RarityForDraw buckets a draw into a tier.
func RarityForDraw(x float64) Rarity {
	for _, t := range rarityThresholds {
		if x < t.below {
			return t.rarity
		}
	}
	return RarityCommon
}

// RarityForPrice draws a rarity for a roll at the given price and returns the
// clamped price actually charged.
func RarityForPrice(rng *rand.Rand, price int64) (Rarity, int64) {
	ceiling := CeilingForPrice(price)
	return RarityForDraw(rng.Float64() * ceiling), ClampPrice(price)
}

// Rules holds the configurable payout and upgrade tables.
type Rules struct {
	Payouts      [6]int64
	UpgradeCosts map[Rarity]int64
}

func DefaultRules() Rules {
	costs := make(map[Rarity]int64, len(DefaultUpgradeCosts))
	for k, v := range DefaultUpgradeCosts {
		costs[k] = v
	}
	return Rules{Payouts: DefaultPayouts, UpgradeCosts: costs}
}

// PayoutForRarity is the currency paid for removing an item of that rarity:
// a quarter of the price that guarantees the tier.
func (r Rules) PayoutForRarity(rarity Rarity) int64 {
	if !rarity.Valid() {
		return 0
	}
	return r.Payouts[rarity]
}

// UpgradeCost returns the parts needed to raise rarity by one, or false when
// the tier cannot be upgraded.
func (r Rules) UpgradeCost(rarity Rarity) (int64, bool) {
	cost, ok := r.UpgradeCosts[rarity]
	return cost, ok
}

func PayoutForRarity(rarity Rarity) int64 {
	return DefaultRules().PayoutForRarity(rarity)
}

func UpgradeCost(rarity Rarity) (int64, bool) {
	cost, ok := DefaultUpgradeCosts[rarity]
	return cost, ok
}

// DropChance is the per-message probability of a random drop in a guild of
// the given size.
func DropChance(memberCount int) float64 {
	denom := float64(memberCount) * 0.25
	if denom < 100 {
		denom = 100
	}
	return 10.0 / denom
}

// DropBonus draws the currency bonus granted with a claimed drop.
func DropBonus(rng *rand.Rand) int64 {
	return DropBonusMin + rng.Int63n(DropBonusMax-DropBonusMin+1)
}
