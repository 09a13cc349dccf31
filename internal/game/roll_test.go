package game

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gachabot/internal/command"
	"gachabot/internal/economy"
	"gachabot/internal/inventory"
)

func TestRollRejectsPriceOutOfRange(t *testing.T) {
	f := newFixture(t, Config{}, nil)
	f.fund(t, alice, 100_000)
	for _, price := range []int64{0, 99, economy.MaxRollPrice + 1} {
		_, err := f.svc.Roll(context.Background(), alice, command.RollArgs{Price: price})
		require.ErrorIs(t, err, ErrInvalidPrice, "price=%d", price)
	}
	assert.Equal(t, int64(100_000), f.balance(t, alice).Currency)
}

func TestRollDebitsAndAddsItem(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{}, nil)
	f.fund(t, alice, 350)

	res, err := f.svc.Roll(ctx, alice, command.RollArgs{Price: 300})
	require.NoError(t, err)
	assert.Equal(t, int64(300), res.Price)
	assert.Equal(t, int64(50), res.Balance)
	assert.Equal(t, res.Character.ID, res.Item.CharacterID)
	assert.Len(t, f.items(t, alice), 1)

	_, err = f.svc.Roll(ctx, alice, command.RollArgs{Price: 100})
	require.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, int64(50), f.balance(t, alice).Currency)
	assert.Len(t, f.items(t, alice), 1)
}

func TestRollRefundsWhenItemCannotBeCreated(t *testing.T) {
	f := newFixture(t, Config{}, func(s inventory.Store) inventory.Store {
		return &faultyStore{Store: s, addItemErr: errStoreDown}
	})
	f.fund(t, alice, 1000)

	_, err := f.svc.Roll(context.Background(), alice, command.RollArgs{Price: 1000})
	require.ErrorIs(t, err, errStoreDown)
	assert.Equal(t, int64(1000), f.balance(t, alice).Currency)
	assert.Empty(t, f.items(t, alice))
}
