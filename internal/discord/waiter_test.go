package discord

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gachabot/internal/economy"
	"gachabot/internal/game"
	"gachabot/internal/inventory"
)

func fromUser(userID string) func(game.Reply) bool {
	return func(r game.Reply) bool { return r.UserID == userID }
}

func TestFeedWithoutWaiters(t *testing.T) {
	w := NewWaiter(&fakeTransport{})
	assert.False(t, w.Feed(game.Reply{UserID: alice, Content: "yes"}))
}

func TestAwaitReplyDeliversToMatchingWaiterOnly(t *testing.T) {
	w := NewWaiter(&fakeTransport{})

	got := make(chan game.Reply, 2)
	for _, u := range []string{alice, bob} {
		u := u
		go func() {
			r, err := w.AwaitReply(context.Background(), fromUser(u), time.Second)
			if err == nil {
				got <- r
			}
		}()
	}
	require.Eventually(t, func() bool { return w.Pending() == 2 }, time.Second, time.Millisecond)

	assert.True(t, w.Feed(game.Reply{UserID: bob, Content: "no"}))
	select {
	case r := <-got:
		assert.Equal(t, bob, r.UserID)
	case <-time.After(time.Second):
		t.Fatal("reply not delivered")
	}
	assert.Equal(t, 1, w.Pending())

	assert.False(t, w.Feed(game.Reply{UserID: bob, Content: "again"}))
	assert.True(t, w.Feed(game.Reply{UserID: alice, Content: "yes"}))
	r := <-got
	assert.Equal(t, "yes", r.Content)
	assert.Equal(t, 0, w.Pending())
}

func TestAwaitReplyTimesOut(t *testing.T) {
	w := NewWaiter(&fakeTransport{})
	_, err := w.AwaitReply(context.Background(), fromUser(alice), 10*time.Millisecond)
	assert.ErrorIs(t, err, game.ErrTimeout)
	assert.Equal(t, 0, w.Pending())
}

func TestAwaitReplyHonoursContext(t *testing.T) {
	w := NewWaiter(&fakeTransport{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := w.AwaitReply(ctx, fromUser(alice), 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, w.Pending())
}

func TestEmbedTruncatesLongBodies(t *testing.T) {
	e := Embed(game.Result{Kind: game.ResultOK, Title: "t", Body: strings.Repeat("あ", maxDescription+10)})
	assert.Equal(t, maxDescription, len([]rune(e.Description)))
	assert.True(t, strings.HasSuffix(e.Description, "…"))
	assert.Nil(t, e.Image)
}

func TestInventoryListIsCapped(t *testing.T) {
	items := make([]inventory.Item, maxListed+5)
	for i := range items {
		items[i] = inventory.Item{Index: i + 1, Name: "Fern", Rarity: economy.RarityCommon}
	}
	res := inventoryResult(alice, items)
	assert.Contains(t, res.Title, "25")
	assert.NotContains(t, res.Body, "`#21`")
}

func TestAnnouncerPostsToDropChannel(t *testing.T) {
	tr := &fakeTransport{}
	a := NewAnnouncer(tr, game.Config{}, nil)

	a.AnnounceDropTimeout(context.Background(), game.DropView{ChannelID: "c9", Name: "Levi Ackerman"})
	a.AnnounceDropTimeout(context.Background(), game.DropView{Name: "nowhere"})

	require.Len(t, tr.sent, 1)
	assert.Equal(t, "c9", tr.sent[0].channelID)
	assert.Equal(t, "The waifu got away", tr.sent[0].embed.Title)
	assert.Contains(t, tr.sent[0].embed.Description, "Levi Ackerman")
}

func TestReplyDeliveredBeforeGiveUpIsNotLost(t *testing.T) {
	w := NewWaiter(&fakeTransport{})
	p := w.register(fromUser(alice))
	require.True(t, w.Feed(game.Reply{UserID: alice, Content: "yes"}))

	// the context is already done, yet the delivered reply must still win
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r, err := w.wait(ctx, p, 0)
	require.NoError(t, err)
	assert.Equal(t, "yes", r.Content)
	assert.Equal(t, 0, w.Pending())
}

func TestFinishedWaiterDoesNotConsumeReplies(t *testing.T) {
	w := NewWaiter(&fakeTransport{})
	p := w.register(fromUser(alice))

	_, err := w.giveUp(p, game.ErrTimeout)
	assert.ErrorIs(t, err, game.ErrTimeout)

	assert.False(t, w.Feed(game.Reply{UserID: alice, Content: "yes"}))
	assert.Equal(t, 0, w.Pending())
	assert.Empty(t, p.ch)
}

func TestRemovalResultReportsUnpaidItem(t *testing.T) {
	unpaid := inventory.Item{Index: 2, Name: "Mikasa Ackerman", Rarity: economy.RarityEpic}
	res := removalResult(game.RemovalReport{
		Removed: []inventory.Item{{Index: 1, Name: "Levi Ackerman"}, unpaid},
		Payout:  250,
		Unpaid:  &unpaid,
	}, "credits")
	assert.Equal(t, "Removal Incomplete", res.Title)
	assert.Contains(t, res.Body, "Removed 2 waifu(s) for **250** credits.")
	assert.Contains(t, res.Body, "`#2` Mikasa Ackerman was removed but could not be paid out")
}
