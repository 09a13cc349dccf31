package inventory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gachabot/internal/economy"
)

func seeded() *MemoryStore {
	m := NewMemoryStore()
	m.AddShow(Show{ID: 1, EnTitle: "Frieren", JaTitle: "Sousou no Frieren"})
	m.AddCharacter(Character{ID: 1, EnName: "Frieren", Droppable: true, ShowIDs: []int64{1}},
		Image{ID: 11, NormalURL: "n/1", Droppable: true})
	m.AddCharacter(Character{ID: 2, EnName: "Fern", Droppable: true, ShowIDs: []int64{1}},
		Image{ID: 21, NormalURL: "n/2", Droppable: false})
	m.AddCharacter(Character{ID: 3, EnName: "Stark", Droppable: false, ShowIDs: []int64{1}},
		Image{ID: 31, NormalURL: "n/3", Droppable: true})
	return m
}

func TestMemoryBalanceOps(t *testing.T) {
	ctx := context.Background()
	m := seeded()

	require.ErrorIs(t, m.Debit(ctx, "a", 1), ErrInsufficientFunds)
	require.ErrorIs(t, m.Credit(ctx, "a", 0), ErrInvalidAmount)
	require.NoError(t, m.Credit(ctx, "a", 100))
	require.NoError(t, m.Debit(ctx, "a", 40))
	require.ErrorIs(t, m.Transfer(ctx, "a", "b", 61), ErrInsufficientFunds)
	require.NoError(t, m.Transfer(ctx, "a", "b", 60))

	a, _ := m.Balance(ctx, "a")
	b, _ := m.Balance(ctx, "b")
	assert.Zero(t, a.Currency)
	assert.Equal(t, int64(60), b.Currency)
}

func TestMemoryDebitNeverOverdraws(t *testing.T) {
	ctx := context.Background()
	m := seeded()
	require.NoError(t, m.SetCurrency(ctx, "a", 50))

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.Debit(ctx, "a", 10) == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 5, ok)
	b, _ := m.Balance(ctx, "a")
	assert.Zero(t, b.Currency)
}

func TestMemoryClaimDaily(t *testing.T) {
	ctx := context.Background()
	m := seeded()
	day := time.Date(2026, 1, 2, 23, 0, 0, 0, time.UTC)

	b, err := m.ClaimDaily(ctx, "a", 500, day)
	require.NoError(t, err)
	assert.Equal(t, int64(500), b.Currency)

	_, err = m.ClaimDaily(ctx, "a", 500, day.Add(30*time.Minute))
	require.ErrorIs(t, err, ErrAlreadyClaimed)

	b, err = m.ClaimDaily(ctx, "a", 500, day.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1000), b.Currency)
}

func TestMemoryItemIndicesFollowAcquisition(t *testing.T) {
	ctx := context.Background()
	m := seeded()

	_, err := m.AddItem(ctx, NewItem{UserID: "a", CharacterID: 99})
	require.ErrorIs(t, err, ErrCharacterNotFound)

	first, err := m.AddItem(ctx, NewItem{UserID: "a", CharacterID: 1, ImageID: 11})
	require.NoError(t, err)
	second, err := m.AddItem(ctx, NewItem{UserID: "a", CharacterID: 2, ImageID: 21, Rarity: economy.RarityRare})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Index)
	assert.Equal(t, 2, second.Index)
	assert.Equal(t, "Frieren", first.Name)
	assert.Equal(t, "n/1", first.ImageURL)

	require.NoError(t, m.DeleteItem(ctx, first.ID))
	require.ErrorIs(t, m.DeleteItem(ctx, first.ID), ErrItemNotFound)

	got, err := m.ItemAt(ctx, "a", 1)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
	assert.Equal(t, 1, got.Index)

	_, err = m.ItemAt(ctx, "a", 2)
	require.ErrorIs(t, err, ErrItemNotFound)
}

func TestMemoryUpgradeItem(t *testing.T) {
	ctx := context.Background()
	m := seeded()
	it, err := m.AddItem(ctx, NewItem{UserID: "a", CharacterID: 1, ImageID: 11, Rarity: economy.RarityEpic})
	require.NoError(t, err)

	_, err = m.UpgradeItem(ctx, "a", it.ID, 20)
	require.ErrorIs(t, err, ErrInsufficientParts)
	_, err = m.UpgradeItem(ctx, "b", it.ID, 0)
	require.ErrorIs(t, err, ErrItemNotFound)

	require.NoError(t, m.AddUpgrades(ctx, "a", 20))
	up, err := m.UpgradeItem(ctx, "a", it.ID, 20)
	require.NoError(t, err)
	assert.Equal(t, economy.RarityLegendary, up.Rarity)

	_, err = m.UpgradeItem(ctx, "a", it.ID, 0)
	require.ErrorIs(t, err, ErrNotUpgradable)
}

func TestMemorySettleTrade(t *testing.T) {
	ctx := context.Background()
	m := seeded()
	require.NoError(t, m.SetCurrency(ctx, "a", 100))
	require.NoError(t, m.SetCurrency(ctx, "b", 10))
	ai, _ := m.AddItem(ctx, NewItem{UserID: "a", CharacterID: 1, ImageID: 11})
	bi, _ := m.AddItem(ctx, NewItem{UserID: "b", CharacterID: 2, ImageID: 21})

	t.Run("rejects unowned item", func(t *testing.T) {
		err := m.SettleTrade(ctx, Settlement{
			A: TradeSide{UserID: "a", ItemIDs: []int64{bi.ID}},
			B: TradeSide{UserID: "b"},
		})
		require.ErrorIs(t, err, ErrConcurrentMutation)
	})

	t.Run("rejects unaffordable currency", func(t *testing.T) {
		err := m.SettleTrade(ctx, Settlement{
			A: TradeSide{UserID: "a"},
			B: TradeSide{UserID: "b", Currency: 11},
		})
		require.ErrorIs(t, err, ErrInsufficientFunds)
	})

	err := m.SettleTrade(ctx, Settlement{
		A: TradeSide{UserID: "a", ItemIDs: []int64{ai.ID}, Currency: 30},
		B: TradeSide{UserID: "b", ItemIDs: []int64{bi.ID}},
	})
	require.NoError(t, err)

	a, _ := m.Balance(ctx, "a")
	b, _ := m.Balance(ctx, "b")
	assert.Equal(t, int64(70), a.Currency)
	assert.Equal(t, int64(40), b.Currency)

	aItems, _ := m.Items(ctx, "a")
	bItems, _ := m.Items(ctx, "b")
	require.Len(t, aItems, 1)
	require.Len(t, bItems, 1)
	assert.Equal(t, int64(2), aItems[0].CharacterID)
	assert.Equal(t, int64(1), bItems[0].CharacterID)
}

func TestMemoryLocks(t *testing.T) {
	ctx := context.Background()
	m := seeded()

	require.NoError(t, m.TryLock(ctx, "a", LockRemoving))
	require.ErrorIs(t, m.TryLock(ctx, "a", LockTrading), ErrLocked)
	require.ErrorIs(t, m.LockPair(ctx, "a", "b", LockTrading), ErrLocked)

	locked, _ := m.Lock(ctx, "b", LockTrading)
	assert.False(t, locked, "failed pair lock must not lock either side")

	require.NoError(t, m.ResetLocks(ctx))
	require.NoError(t, m.LockPair(ctx, "a", "b", LockTrading))
	locked, _ = m.Lock(ctx, "b", LockTrading)
	assert.True(t, locked)

	require.NoError(t, m.SetLock(ctx, "b", LockTrading, false))
	locked, _ = m.Lock(ctx, "b", LockTrading)
	assert.False(t, locked)
}

func TestMemoryCatalogue(t *testing.T) {
	ctx := context.Background()
	m := seeded()

	for i := 0; i < 20; i++ {
		id, err := m.RandomDroppable(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(1), id, "only Frieren has a droppable image and flag")
	}
	_, err := m.RandomDroppable(ctx, []int64{1})
	require.ErrorIs(t, err, ErrNoDroppable)

	c, err := m.Character(ctx, 1)
	require.NoError(t, err)
	require.Len(t, c.Shows, 1)
	require.Len(t, c.Images, 1)
	assert.Equal(t, int64(1), c.Images[0].CharacterID)

	found, err := m.SearchCharacters(ctx, "fer", 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Fern", found[0].EnName)

	shows, err := m.ShowsLike(ctx, "sousou")
	require.NoError(t, err)
	assert.Len(t, shows, 1)

	_, err = m.Show(ctx, 9)
	require.ErrorIs(t, err, ErrShowNotFound)
}

func TestMemoryGuildState(t *testing.T) {
	ctx := context.Background()
	m := seeded()

	ch, err := m.AssignedChannel(ctx, "g")
	require.NoError(t, err)
	assert.Empty(t, ch)

	require.NoError(t, m.AssignChannel(ctx, "g", "c"))
	ch, _ = m.AssignedChannel(ctx, "g")
	assert.Equal(t, "c", ch)

	hist := []int64{1, 2}
	require.NoError(t, m.SaveHistory(ctx, "g", hist))
	hist[0] = 9
	got, _ := m.History(ctx, "g")
	assert.Equal(t, []int64{1, 2}, got)
}

func TestImageURLFallsBackToNormal(t *testing.T) {
	img := Image{NormalURL: "n", MirrorURL: "m"}
	assert.Equal(t, "m", img.URL(VariantMirror))
	assert.Equal(t, "n", img.URL(VariantFlipped))
	assert.Equal(t, "n", img.URL(VariantNormal))
}
