package discord

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"gachabot/internal/game"
)

// Sender is the part of *discordgo.Session used to post replies.
type Sender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type pendingReply struct {
	match func(game.Reply) bool
	ch    chan game.Reply
	// done is set under Waiter.mu once the reply was delivered or the wait
	// gave up. Feed never hands a message to a finished waiter.
	done bool
}

// Waiter implements game.Prompter on top of the message stream. Each inbound
// message is offered to the oldest matching waiter first and is consumed by
// at most one of them.
type Waiter struct {
	sender Sender

	mu      sync.Mutex
	pending []*pendingReply
}

func NewWaiter(sender Sender) *Waiter {
	return &Waiter{sender: sender}
}

func (w *Waiter) Send(ctx context.Context, channelID string, r game.Result) error {
	_, err := w.sender.ChannelMessageSendEmbed(channelID, Embed(r), discordgo.WithContext(ctx))
	return err
}

func (w *Waiter) AwaitReply(ctx context.Context, match func(game.Reply) bool, timeout time.Duration) (game.Reply, error) {
	return w.wait(ctx, w.register(match), timeout)
}

func (w *Waiter) register(match func(game.Reply) bool) *pendingReply {
	p := &pendingReply{match: match, ch: make(chan game.Reply, 1)}
	w.mu.Lock()
	w.pending = append(w.pending, p)
	w.mu.Unlock()
	return p
}

func (w *Waiter) wait(ctx context.Context, p *pendingReply, timeout time.Duration) (game.Reply, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}
	select {
	case r := <-p.ch:
		return r, nil
	case <-expired:
		return w.giveUp(p, game.ErrTimeout)
	case <-ctx.Done():
		return w.giveUp(p, ctx.Err())
	}
}

// giveUp finishes p. A reply that Feed delivered before the lock was taken
// still wins over the timeout.
func (w *Waiter) giveUp(p *pendingReply, err error) (game.Reply, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if p.done {
		return <-p.ch, nil
	}
	p.done = true
	w.removeLocked(p)
	return game.Reply{}, err
}

// Feed hands r to the first waiter that accepts it and reports whether one
// did.
func (w *Waiter) Feed(r game.Reply) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, p := range w.pending {
		if p.done || !p.match(r) {
			continue
		}
		p.done = true
		w.removeLocked(p)
		p.ch <- r
		return true
	}
	return false
}

// Pending is the number of registered waiters.
func (w *Waiter) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

func (w *Waiter) removeLocked(p *pendingReply) {
	for i, q := range w.pending {
		if q == p {
			w.pending = append(w.pending[:i], w.pending[i+1:]...)
			return
		}
	}
}

var _ game.Prompter = (*Waiter)(nil)
