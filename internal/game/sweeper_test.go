package game

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweeperExpiresIdleTrades(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{TradeTimeout: time.Minute}, nil)

	_, err := f.svc.Trades.Start(ctx, alice, bob, testChannel)
	require.NoError(t, err)

	sw, err := NewSweeper(f.svc.Trades, 10*time.Millisecond, nil)
	require.NoError(t, err)
	sw.Start()
	defer func() { assert.NoError(t, sw.Shutdown()) }()

	f.clock.Advance(2 * time.Minute)
	assert.Eventually(t, func() bool {
		return f.svc.Trades.Len() == 0
	}, 2*time.Second, 10*time.Millisecond)
	assertUnlocked(t, f, alice, bob)
}
