package economy

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCeilingForPrice(t *testing.T) {
	tests := []struct {
		price int64
		want  float64
	}{
		{price: 0, want: 1.0},
		{price: 99, want: 1.0},
		{price: 100, want: 0.75},
		{price: 300, want: 0.25},
		{price: 1000, want: 0.075},
		{price: 5000, want: 0.015},
		{price: 15000, want: 0.005},
		{price: 50000, want: 0.005},
	}
	for _, tc := range tests {
		got := CeilingForPrice(tc.price)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("price=%d got=%f want=%f", tc.price, got, tc.want)
		}
	}
}

func TestCeilingIsContinuousAcrossBands(t *testing.T) {
	for _, edge := range []int64{300, 1000, 5000} {
		below := CeilingForPrice(edge)
		above := CeilingForPrice(edge + 1)
		if math.Abs(below-above) > 0.001 {
			t.Fatalf("discontinuity at %d: %f vs %f", edge, below, above)
		}
	}
}

func TestRarityForDraw(t *testing.T) {
	tests := []struct {
		x    float64
		want Rarity
	}{
		{0, RarityUltra},
		{0.0009, RarityUltra},
		{0.001, RarityLegendary},
		{0.0049, RarityLegendary},
		{0.005, RarityEpic},
		{0.0149, RarityEpic},
		{0.015, RarityRare},
		{0.0749, RarityRare},
		{0.075, RarityUncommon},
		{0.2499, RarityUncommon},
		{0.25, RarityCommon},
		{0.99, RarityCommon},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, RarityForDraw(tc.x), "x=%f", tc.x)
	}
}

func TestRarityForPriceClampsPrice(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	_, price := RarityForPrice(rng, 20000)
	assert.Equal(t, MaxRollPrice, price)
	_, price = RarityForPrice(rng, 500)
	assert.Equal(t, int64(500), price)
}

func TestMaxPriceNeverRollsCommon(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 5000; i++ {
		r, _ := RarityForPrice(rng, MaxRollPrice)
		require.GreaterOrEqual(t, int(r), int(RarityEpic))
	}
}

func highTierMass(rng *rand.Rand, price int64, trials int) float64 {
	hits := 0
	for i := 0; i < trials; i++ {
		r, _ := RarityForPrice(rng, price)
		if r >= RarityEpic {
			hits++
		}
	}
	return float64(hits) / float64(trials)
}

func TestRarityMonotonicInPrice(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	prices := []int64{100, 300, 1000, 5000, 15000}
	const trials = 20000
	prev := -1.0
	for _, p := range prices {
		mass := highTierMass(rng, p, trials)
		// allow sampling noise between adjacent low-price bands
		assert.GreaterOrEqual(t, mass+0.005, prev, "price=%d", p)
		prev = mass
	}
}

func TestUltraRateHigherWhenSpendingMore(t *testing.T) {
	rng := rand.New(rand.NewSource(2024))
	const trials = 10000
	rate := func(price int64) float64 {
		hits := 0
		for i := 0; i < trials; i++ {
			r, _ := RarityForPrice(rng, price)
			if r == RarityUltra {
				hits++
			}
		}
		return float64(hits) / trials
	}
	low := rate(100)
	high := rate(5000)
	// expected ~0.0013 at 100 and ~0.067 at 5000
	assert.Greater(t, high-low, 0.03)
}

func TestPayoutForRarity(t *testing.T) {
	want := []int64{25, 75, 250, 1250, 3750, 18750}
	for r, p := range want {
		assert.Equal(t, p, PayoutForRarity(Rarity(r)))
	}
	assert.Zero(t, PayoutForRarity(Rarity(9)))
}

func TestUpgradeCost(t *testing.T) {
	tests := []struct {
		rarity Rarity
		cost   int64
		ok     bool
	}{
		{RarityCommon, 1, true},
		{RarityUncommon, 5, true},
		{RarityRare, 10, true},
		{RarityEpic, 20, true},
		{RarityLegendary, 0, false},
		{RarityUltra, 0, false},
	}
	for _, tc := range tests {
		cost, ok := UpgradeCost(tc.rarity)
		assert.Equal(t, tc.ok, ok, "rarity=%d", tc.rarity)
		assert.Equal(t, tc.cost, cost, "rarity=%d", tc.rarity)
	}
}

func TestRulesAreIndependentCopies(t *testing.T) {
	r := DefaultRules()
	r.UpgradeCosts[RarityCommon] = 99
	cost, _ := UpgradeCost(RarityCommon)
	assert.Equal(t, int64(1), cost)
}

func TestDropChance(t *testing.T) {
	assert.InDelta(t, 0.1, DropChance(10), 1e-9)
	assert.InDelta(t, 0.1, DropChance(400), 1e-9)
	assert.InDelta(t, 0.01, DropChance(4000), 1e-9)
}

func TestDropBonusRange(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 2000; i++ {
		b := DropBonus(rng)
		require.GreaterOrEqual(t, b, DropBonusMin)
		require.LessOrEqual(t, b, DropBonusMax)
	}
}

func TestRarityString(t *testing.T) {
	assert.Equal(t, "★☆☆☆☆", RarityCommon.String())
	assert.Equal(t, "★★★★★", RarityLegendary.String())
	assert.Equal(t, "✪★★★★★", RarityUltra.String())
}
