package discord

import (
	"context"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"gachabot/internal/game"
)

// Announcer posts drop and trade timeouts to the channel they happened in.
type Announcer struct {
	sender   Sender
	log      *slog.Logger
	currency string
	prefix   string
}

func NewAnnouncer(sender Sender, cfg game.Config, logger *slog.Logger) *Announcer {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Announcer{sender: sender, log: logger, currency: cfg.CurrencyName, prefix: cfg.Prefix}
	if a.currency == "" {
		a.currency = game.DefaultCurrencyName
	}
	if a.prefix == "" {
		a.prefix = game.DefaultPrefix
	}
	return a
}

func (a *Announcer) AnnounceDropTimeout(ctx context.Context, d game.DropView) {
	a.post(ctx, d.ChannelID, dropTimeoutResult(d))
}

func (a *Announcer) AnnounceTradeTimeout(ctx context.Context, v game.TradeView) {
	a.post(ctx, v.ChannelID, tradeResult(v, a.currency, a.prefix))
}

func (a *Announcer) post(ctx context.Context, channelID string, r game.Result) {
	if channelID == "" {
		return
	}
	if _, err := a.sender.ChannelMessageSendEmbed(channelID, Embed(r), discordgo.WithContext(ctx)); err != nil {
		a.log.Error("announce failed", "channel_id", channelID, "title", r.Title, "err", err)
	}
}

var (
	_ game.DropAnnouncer  = (*Announcer)(nil)
	_ game.TradeAnnouncer = (*Announcer)(nil)
)
