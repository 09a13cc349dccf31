// Package discord adapts the game service to a discordgo session: it routes
// prefixed commands, feeds replies to waiting flows and turns ordinary guild
// chatter into drop guesses and drop triggers.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"gachabot/internal/command"
	"gachabot/internal/game"
)

// Transport is the part of *discordgo.Session the bot needs.
type Transport interface {
	Sender
	UserChannelPermissions(userID, channelID string, fetchOptions ...discordgo.RequestOption) (int64, error)
}

// Message is the transport-neutral view of an inbound chat message.
type Message struct {
	GuildID     string
	ChannelID   string
	AuthorID    string
	AuthorBot   bool
	Content     string
	MemberCount int
}

type handlerFunc func(ctx context.Context, m Message, inv command.Invocation) (game.Result, error)

type route struct {
	fn handlerFunc
	// anywhere lets the command run outside the assigned channel.
	anywhere bool
}

type Bot struct {
	svc    *game.Service
	tr     Transport
	waiter *Waiter
	cfg    game.Config
	log    *slog.Logger
	routes map[string]route

	// HandlerTimeout bounds one command including any confirmation wait.
	HandlerTimeout time.Duration
}

func NewBot(svc *game.Service, tr Transport, waiter *Waiter, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bot{
		svc:            svc,
		tr:             tr,
		waiter:         waiter,
		cfg:            svc.Config(),
		log:            logger,
		HandlerTimeout: 2 * time.Minute,
	}
	b.routes = map[string]route{
		"ping":       {fn: b.handlePing, anywhere: true},
		"help":       {fn: b.handleHelp, anywhere: true},
		"assign":     {fn: b.handleAssign, anywhere: true},
		"drop":       {fn: b.handleDrop},
		"waifus":     {fn: b.handleWaifus},
		"list":       {fn: b.handleWaifus},
		"inspect":    {fn: b.handleInspect},
		"search":     {fn: b.handleSearch},
		"series":     {fn: b.handleSeries},
		"roll":       {fn: b.handleRoll},
		"trade":      {fn: b.handleTrade},
		"remove":     {fn: b.handleRemove},
		"trash":      {fn: b.handleRemove},
		"daily":      {fn: b.handleDaily},
		"balance":    {fn: b.handleBalance},
		"bal":        {fn: b.handleBalance},
		"gift":       {fn: b.handleGift},
		"wager":      {fn: b.handleWager},
		"upgrade":    {fn: b.handleUpgrade},
		"fav":        {fn: b.favoriteHandler(true)},
		"favorite":   {fn: b.favoriteHandler(true)},
		"unfav":      {fn: b.favoriteHandler(false)},
		"unfavorite": {fn: b.favoriteHandler(false)},
		"setmoney":   {fn: b.handleSetMoney},
	}
	return b
}

// Attach registers the bot on a session.
func (b *Bot) Attach(s *discordgo.Session) {
	s.AddHandler(b.onMessageCreate)
}

func (b *Bot) onMessageCreate(s *discordgo.Session, mc *discordgo.MessageCreate) {
	if mc.Author == nil {
		return
	}
	if s.State != nil && s.State.User != nil && mc.Author.ID == s.State.User.ID {
		return
	}
	m := Message{
		GuildID:   mc.GuildID,
		ChannelID: mc.ChannelID,
		AuthorID:  mc.Author.ID,
		AuthorBot: mc.Author.Bot,
		Content:   mc.Content,
	}
	if m.GuildID != "" && s.State != nil {
		if g, err := s.State.Guild(m.GuildID); err == nil {
			m.MemberCount = g.MemberCount
		}
	}
	b.HandleMessage(context.Background(), m)
}

// HandleMessage processes one inbound message. It blocks while a command
// waits for a confirmation, so the transport must deliver messages
// concurrently.
func (b *Bot) HandleMessage(ctx context.Context, m Message) {
	if m.AuthorBot || m.AuthorID == "" || m.GuildID == "" {
		return
	}
	if b.waiter.Feed(game.Reply{UserID: m.AuthorID, ChannelID: m.ChannelID, Content: m.Content}) {
		return
	}

	inv, ok, err := command.Parse(b.cfg.Prefix, m.Content)
	if !ok {
		b.onChatter(ctx, m)
		return
	}
	r, found := b.routes[inv.Verb]
	if !found {
		return
	}
	if !r.anywhere {
		assigned, aerr := b.svc.Store().AssignedChannel(ctx, m.GuildID)
		if aerr != nil {
			b.log.Error("assigned channel lookup failed", "guild_id", m.GuildID, "err", aerr)
			return
		}
		if assigned != m.ChannelID {
			return
		}
	}
	if err != nil {
		b.reply(ctx, m.ChannelID, game.ErrorResult(err))
		return
	}

	hctx, cancel := context.WithTimeout(ctx, b.HandlerTimeout)
	defer cancel()
	res, err := r.fn(hctx, m, inv)
	if err != nil {
		if game.Classify(err) == game.ResultFailure {
			b.log.Error("command failed", "verb", inv.Verb, "user_id", m.AuthorID, "guild_id", m.GuildID, "err", err)
		}
		res = game.ErrorResult(err)
	}
	if res.Title == "" && res.Body == "" {
		return
	}
	b.reply(ctx, m.ChannelID, res)
}

// onChatter treats a non-command message as a guess at the live drop, and
// otherwise as a chance to start one.
func (b *Bot) onChatter(ctx context.Context, m Message) {
	claim, err := b.svc.Drops.Guess(ctx, m.GuildID, m.ChannelID, m.AuthorID, m.Content)
	if err != nil {
		b.log.Error("drop claim failed", "guild_id", m.GuildID, "user_id", m.AuthorID, "err", err)
		b.reply(ctx, m.ChannelID, game.ErrorResult(err))
		return
	}
	if claim != nil {
		b.reply(ctx, m.ChannelID, claimResult(*claim, b.cfg.CurrencyName))
		return
	}
	view, err := b.svc.Drops.MaybeDrop(ctx, m.GuildID, m.MemberCount)
	if err != nil {
		b.log.Error("drop failed", "guild_id", m.GuildID, "err", err)
		return
	}
	if view != nil {
		b.reply(ctx, view.ChannelID, dropResult(*view, b.cfg.Prefix))
	}
}

func (b *Bot) reply(ctx context.Context, channelID string, r game.Result) {
	if _, err := b.tr.ChannelMessageSendEmbed(channelID, Embed(r), discordgo.WithContext(ctx)); err != nil {
		b.log.Error("send failed", "channel_id", channelID, "title", r.Title, "err", err)
	}
}

func (b *Bot) handlePing(context.Context, Message, command.Invocation) (game.Result, error) {
	return game.OK("Pong! 🏓", ""), nil
}

func (b *Bot) handleHelp(_ context.Context, _ Message, _ command.Invocation) (game.Result, error) {
	p := b.cfg.Prefix
	lines := []string{
		fmt.Sprintf("**%swaifus** [user] [filters]: list a collection. Filters: `-n name` `-r stars` `-s series id` `-sn series name` `-f`", p),
		fmt.Sprintf("**%sinspect** <number>: show one waifu", p),
		fmt.Sprintf("**%ssearch** <name>: find characters", p),
		fmt.Sprintf("**%sseries** <name>: find series", p),
		fmt.Sprintf("**%sroll** [price]: spend %s on a random waifu (100-15000)", p, b.cfg.CurrencyName),
		fmt.Sprintf("**%strade** <user>: start a trade, then `add`, `remove`, `%s`, `confirm`, `cancel`", p, b.cfg.CurrencyName),
		fmt.Sprintf("**%sremove** <numbers | filters> [-y] [-force]: trade waifus in for %s", p, b.cfg.CurrencyName),
		fmt.Sprintf("**%sdaily**, **%sbalance**, **%sgift** <user> <amount>, **%swager** <amount>", p, p, p, p),
		fmt.Sprintf("**%supgrade** <number>, **%sfav** / **%sunfav** <numbers>", p, p, p),
		fmt.Sprintf("**%sassign**: drop waifus in this channel (administrators)", p),
	}
	return game.OK("Bot Help", strings.Join(lines, "\n")), nil
}

func (b *Bot) handleAssign(ctx context.Context, m Message, _ command.Invocation) (game.Result, error) {
	if !b.cfg.IsAdmin(m.AuthorID) {
		perms, err := b.tr.UserChannelPermissions(m.AuthorID, m.ChannelID, discordgo.WithContext(ctx))
		if err != nil {
			return game.Result{}, err
		}
		if perms&(discordgo.PermissionAdministrator|discordgo.PermissionManageChannels) == 0 {
			return game.Result{}, fmt.Errorf("%w: assigning needs the Manage Channels permission", game.ErrForbidden)
		}
	}
	if err := b.svc.AssignChannel(ctx, m.GuildID, m.ChannelID); err != nil {
		return game.Result{}, err
	}
	return game.OK("Channel Assigned!", fmt.Sprintf("Waifus will drop in <#%s>.", m.ChannelID)), nil
}

func (b *Bot) handleDrop(ctx context.Context, m Message, _ command.Invocation) (game.Result, error) {
	if !b.cfg.IsAdmin(m.AuthorID) {
		return game.Result{}, game.ErrForbidden
	}
	view, err := b.svc.Drops.Force(ctx, m.GuildID)
	if err != nil {
		return game.Result{}, err
	}
	return dropResult(view, b.cfg.Prefix), nil
}

func (b *Bot) handleWaifus(ctx context.Context, m Message, inv command.Invocation) (game.Result, error) {
	userID, args := m.AuthorID, inv.Args
	if len(args) > 0 {
		if target, ok := command.ParseMention(args[0]); ok && !strings.HasPrefix(args[0], "-") {
			userID, args = target, args[1:]
		}
	}
	spec, err := command.ParseFilter(args)
	if err != nil {
		return game.Result{}, err
	}
	items, err := b.svc.Inventory(ctx, userID, spec)
	if err != nil {
		return game.Result{}, err
	}
	return inventoryResult(userID, items), nil
}

func (b *Bot) handleInspect(ctx context.Context, m Message, inv command.Invocation) (game.Result, error) {
	userID, args := m.AuthorID, inv.Args
	if len(args) == 2 {
		target, ok := command.ParseMention(args[1])
		if !ok {
			return game.Result{}, fmt.Errorf("%w: inspect <number> [user]", game.ErrBadUsage)
		}
		userID, args = target, args[:1]
	}
	indices, err := command.ParseIndexList(args)
	if err != nil {
		return game.Result{}, err
	}
	if len(indices) != 1 {
		return game.Result{}, fmt.Errorf("%w: inspect <number> [user]", game.ErrBadUsage)
	}
	it, err := b.svc.Item(ctx, userID, indices[0])
	if err != nil {
		return game.Result{}, err
	}
	ch, err := b.svc.Character(ctx, it.CharacterID)
	if err != nil {
		return game.Result{}, err
	}
	return itemResult(it, ch), nil
}

func (b *Bot) handleSearch(ctx context.Context, _ Message, inv command.Invocation) (game.Result, error) {
	chars, err := b.svc.SearchCharacters(ctx, inv.Rest, 15)
	if err != nil {
		return game.Result{}, err
	}
	return charactersResult(chars), nil
}

func (b *Bot) handleSeries(ctx context.Context, _ Message, inv command.Invocation) (game.Result, error) {
	if len([]rune(inv.Rest)) < 3 {
		return game.Result{}, fmt.Errorf("%w: the search query must be 3 or more letters", game.ErrBadUsage)
	}
	shows, err := b.svc.ShowsLike(ctx, inv.Rest)
	if err != nil {
		return game.Result{}, err
	}
	return showsResult(shows), nil
}

func (b *Bot) handleRoll(ctx context.Context, m Message, inv command.Invocation) (game.Result, error) {
	args, err := command.ParseRoll(inv.Args)
	if err != nil {
		return game.Result{}, err
	}
	res, err := b.svc.Roll(ctx, m.AuthorID, args)
	if err != nil {
		return game.Result{}, err
	}
	return rollResult(m.AuthorID, res, b.cfg.CurrencyName), nil
}

func (b *Bot) handleTrade(ctx context.Context, m Message, inv command.Invocation) (game.Result, error) {
	cmd, err := command.ParseTrade(inv.Args, b.cfg.CurrencyName)
	if err != nil {
		return game.Result{}, err
	}
	if cmd.Kind == command.TradeStart {
		view, err := b.svc.Trades.Start(ctx, m.AuthorID, cmd.Target, m.ChannelID)
		if err != nil {
			return game.Result{}, err
		}
		return tradeResult(view, b.cfg.CurrencyName, b.cfg.Prefix), nil
	}
	res, err := b.svc.Trades.Apply(ctx, m.AuthorID, cmd)
	// an idle trade that just expired is reported as timed out, not as an error
	if err != nil && !errors.Is(err, game.ErrTimeout) {
		return game.Result{}, err
	}
	return tradeResult(res.View, b.cfg.CurrencyName, b.cfg.Prefix), nil
}

func (b *Bot) handleRemove(ctx context.Context, m Message, inv command.Invocation) (game.Result, error) {
	args, err := command.ParseRemove(inv.Args)
	if err != nil {
		return game.Result{}, err
	}
	report, err := b.svc.Remove(ctx, m.AuthorID, m.ChannelID, args, b.waiter)
	if err != nil {
		return game.Result{}, err
	}
	if report.Partial() {
		b.log.Warn("partial removal", "user_id", m.AuthorID, "removed", len(report.Removed), "err", report.FailErr)
	}
	return removalResult(report, b.cfg.CurrencyName), nil
}

func (b *Bot) handleDaily(ctx context.Context, m Message, _ command.Invocation) (game.Result, error) {
	bal, err := b.svc.Daily(ctx, m.AuthorID)
	if err != nil {
		return game.Result{}, err
	}
	return game.OK("Daily Claimed!", fmt.Sprintf("You now have **%d** %s. Come back tomorrow.", bal.Currency, b.cfg.CurrencyName)), nil
}

func (b *Bot) handleBalance(ctx context.Context, m Message, inv command.Invocation) (game.Result, error) {
	userID := m.AuthorID
	if len(inv.Args) == 1 {
		target, ok := command.ParseMention(inv.Args[0])
		if !ok {
			return game.Result{}, fmt.Errorf("%w: balance [user]", game.ErrBadUsage)
		}
		userID = target
	}
	bal, err := b.svc.Balance(ctx, userID)
	if err != nil {
		return game.Result{}, err
	}
	return balanceResult(userID, bal, b.cfg.CurrencyName), nil
}

func (b *Bot) handleGift(ctx context.Context, m Message, inv command.Invocation) (game.Result, error) {
	args, err := command.ParseGift(inv.Args)
	if err != nil {
		return game.Result{}, err
	}
	bal, err := b.svc.Gift(ctx, m.AuthorID, m.ChannelID, args, b.waiter)
	if err != nil {
		return game.Result{}, err
	}
	return game.OK("Gift Sent!", fmt.Sprintf("%s sent **%d** %s to %s. You have **%d** left.",
		mention(m.AuthorID), args.Amount, b.cfg.CurrencyName, mention(args.Target), bal.Currency)), nil
}

func (b *Bot) handleWager(ctx context.Context, m Message, inv command.Invocation) (game.Result, error) {
	amount, err := command.ParseWager(inv.Args)
	if err != nil {
		return game.Result{}, err
	}
	res, err := b.svc.Wager(ctx, m.AuthorID, amount)
	if err != nil {
		return game.Result{}, err
	}
	title := "You lost!"
	if res.Won {
		title = "You won!"
	}
	return game.OK(title, fmt.Sprintf("Balance: **%d** %s", res.Balance, b.cfg.CurrencyName)), nil
}

func (b *Bot) handleUpgrade(ctx context.Context, m Message, inv command.Invocation) (game.Result, error) {
	args, err := command.ParseUpgrade(inv.Args)
	if err != nil {
		return game.Result{}, err
	}
	it, err := b.svc.Upgrade(ctx, m.AuthorID, m.ChannelID, args, b.waiter)
	if err != nil {
		return game.Result{}, err
	}
	res := game.OK("Upgrade Complete!", itemLine(it))
	res.Image = it.ImageURL
	return res, nil
}

func (b *Bot) favoriteHandler(favorite bool) handlerFunc {
	return func(ctx context.Context, m Message, inv command.Invocation) (game.Result, error) {
		indices, err := command.ParseIndexList(inv.Args)
		if err != nil {
			return game.Result{}, err
		}
		items, err := b.svc.SetFavorite(ctx, m.AuthorID, indices, favorite)
		if err != nil {
			return game.Result{}, err
		}
		title := "Favorites Added"
		if !favorite {
			title = "Favorites Removed"
		}
		return game.OK(title, itemList(items)), nil
	}
}

func (b *Bot) handleSetMoney(ctx context.Context, m Message, inv command.Invocation) (game.Result, error) {
	args, err := command.ParseSetMoney(inv.Args)
	if err != nil {
		return game.Result{}, err
	}
	if err := b.svc.SetMoney(ctx, m.AuthorID, args); err != nil {
		return game.Result{}, err
	}
	return game.OK("Balance Set", fmt.Sprintf("%s now has **%d** %s.",
		mention(args.Target), args.Amount, b.cfg.CurrencyName)), nil
}
