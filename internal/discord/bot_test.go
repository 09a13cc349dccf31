package discord

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gachabot/internal/economy"
	"gachabot/internal/game"
	"gachabot/internal/inventory"
)

const (
	guild   = "g1"
	channel = "c1"
	admin   = "900"
	alice   = "100"
	bob     = "200"
)

type sentEmbed struct {
	channelID string
	embed     *discordgo.MessageEmbed
}

type fakeTransport struct {
	mu    sync.Mutex
	sent  []sentEmbed
	perms int64
}

func (f *fakeTransport) ChannelMessageSendEmbed(channelID string, e *discordgo.MessageEmbed, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentEmbed{channelID: channelID, embed: e})
	return &discordgo.Message{ChannelID: channelID}, nil
}

func (f *fakeTransport) UserChannelPermissions(_, _ string, _ ...discordgo.RequestOption) (int64, error) {
	return f.perms, nil
}

func (f *fakeTransport) titles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, s := range f.sent {
		out = append(out, s.embed.Title)
	}
	return out
}

func (f *fakeTransport) last(t *testing.T) sentEmbed {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1]
}

type allReachable struct{}

func (allReachable) Reachable(context.Context, string) bool { return true }

type harness struct {
	bot *Bot
	tr  *fakeTransport
	mem *inventory.MemoryStore
	svc *game.Service
}

func newHarness(t *testing.T, assign bool) harness {
	t.Helper()
	mem := inventory.NewMemoryStore()
	mem.AddShow(inventory.Show{ID: 1, EnTitle: "Attack on Titan"})
	mem.AddCharacter(inventory.Character{ID: 1, EnName: "Levi Ackerman", Droppable: true, ShowIDs: []int64{1}},
		inventory.Image{ID: 10, NormalURL: "https://img.test/levi", MirrorURL: "https://img.test/levi-m", Droppable: true})
	if assign {
		require.NoError(t, mem.AssignChannel(context.Background(), guild, channel))
	}

	tr := &fakeTransport{}
	cfg := game.Config{Admins: []string{admin}, RemovalTimeout: 5 * time.Second}
	svc := game.NewService(mem, cfg, nil,
		game.WithSeed(1),
		game.WithURLChecker(allReachable{}),
		game.WithDropAnnouncer(NewAnnouncer(tr, cfg, nil)),
	)
	bot := NewBot(svc, tr, NewWaiter(tr), nil)
	return harness{bot: bot, tr: tr, mem: mem, svc: svc}
}

func (h harness) say(userID, content string) {
	h.bot.HandleMessage(context.Background(), Message{
		GuildID: guild, ChannelID: channel, AuthorID: userID, Content: content, MemberCount: 50,
	})
}

func TestCommandsOnlyRunInAssignedChannel(t *testing.T) {
	h := newHarness(t, false)

	h.say(alice, "w.daily")
	assert.Empty(t, h.tr.titles())

	h.say(alice, "w.ping")
	assert.Equal(t, "Pong! 🏓", h.tr.last(t).embed.Title)

	h.say(alice, "w.assign")
	assert.Equal(t, "Invalid Command", h.tr.last(t).embed.Title)

	h.tr.perms = discordgo.PermissionManageChannels
	h.say(alice, "w.assign")
	assert.Equal(t, "Channel Assigned!", h.tr.last(t).embed.Title)

	h.say(alice, "W.Daily")
	assert.Equal(t, "Daily Claimed!", h.tr.last(t).embed.Title)
	b, _ := h.mem.Balance(context.Background(), alice)
	assert.Equal(t, economy.DailyCurrency, b.Currency)
}

func TestBotIgnoresBotsAndUnknownVerbs(t *testing.T) {
	h := newHarness(t, true)
	h.bot.HandleMessage(context.Background(), Message{GuildID: guild, ChannelID: channel, AuthorID: "1", AuthorBot: true, Content: "w.ping"})
	h.say(alice, "w.nosuchthing")
	assert.Empty(t, h.tr.titles())
}

func TestParseErrorsAreReported(t *testing.T) {
	h := newHarness(t, true)
	h.say(alice, `w.waifus -n "levi`)
	assert.Equal(t, "Invalid Command", h.tr.last(t).embed.Title)

	h.say(alice, "w.waifus -zz 1")
	assert.Equal(t, "Invalid Command", h.tr.last(t).embed.Title)
}

func TestRollCommand(t *testing.T) {
	h := newHarness(t, true)
	require.NoError(t, h.mem.SetCurrency(context.Background(), alice, 500))

	h.say(alice, "w.roll 300")
	got := h.tr.last(t).embed
	assert.True(t, strings.HasPrefix(got.Title, "Levi Ackerman"), got.Title)
	assert.Contains(t, got.Description, "Balance: **200** credits")

	h.say(alice, "w.roll 300")
	assert.Equal(t, "Insufficient Funds", h.tr.last(t).embed.Title)
}

func TestForcedDropAndClaim(t *testing.T) {
	h := newHarness(t, true)

	h.say(alice, "w.drop")
	assert.Equal(t, "Invalid Command", h.tr.last(t).embed.Title)

	h.say(admin, "w.drop")
	drop := h.tr.last(t).embed
	assert.Equal(t, "A waifu appeared!", drop.Title)
	assert.Contains(t, drop.Description, "`L. A.`")
	require.NotNil(t, drop.Image)

	h.say(bob, "levi")
	h.say(alice, "ackerman LEVI")
	claim := h.tr.last(t).embed
	assert.Equal(t, "Waifu Claimed!", claim.Title)
	assert.Contains(t, claim.Description, "<@"+alice+">")

	items, err := h.mem.Items(context.Background(), alice)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	_, active := h.svc.Drops.Active(guild)
	assert.False(t, active)
}

func TestRemovalWaitsForConfirmation(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	_, err := h.mem.AddItem(ctx, inventory.NewItem{UserID: alice, CharacterID: 1, ImageID: 10, Rarity: economy.RarityRare})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.say(alice, "w.remove 1")
	}()
	require.Eventually(t, func() bool { return h.bot.waiter.Pending() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "Waifu Removal Confirmation", h.tr.last(t).embed.Title)

	// another user's reply is not consumed by the waiting removal
	h.say(bob, "yes")
	assert.Equal(t, 1, h.bot.waiter.Pending())

	h.say(alice, "yes")
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("removal did not finish")
	}
	assert.Equal(t, "Waifus Removed", h.tr.last(t).embed.Title)

	b, _ := h.mem.Balance(ctx, alice)
	assert.Equal(t, economy.PayoutForRarity(economy.RarityRare), b.Currency)
	locked, _ := h.mem.Lock(ctx, alice, inventory.LockRemoving)
	assert.False(t, locked)
}

func TestTradeCommands(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	require.NoError(t, h.mem.SetCurrency(ctx, bob, 100))
	_, err := h.mem.AddItem(ctx, inventory.NewItem{UserID: alice, CharacterID: 1, ImageID: 10})
	require.NoError(t, err)

	h.say(alice, "w.trade <@"+bob+">")
	assert.Equal(t, "Trade Offer", h.tr.last(t).embed.Title)
	h.say(alice, "w.trade add 1")
	h.say(bob, "w.trade credits 60")
	h.say(alice, "w.trade confirm")
	h.say(bob, "w.trade confirm")
	assert.Equal(t, "Trade Complete!", h.tr.last(t).embed.Title)

	a, _ := h.mem.Balance(ctx, alice)
	assert.Equal(t, int64(60), a.Currency)
	bobItems, _ := h.mem.Items(ctx, bob)
	assert.Len(t, bobItems, 1)

	h.say(alice, "w.trade confirm")
	assert.Equal(t, "Invalid Command", h.tr.last(t).embed.Title)
}
