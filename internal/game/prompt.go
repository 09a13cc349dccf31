package game

import (
	"context"
	"strings"
	"time"
)

// Reply is an inbound chat message seen while a flow is waiting.
type Reply struct {
	UserID    string
	ChannelID string
	Content   string
}

// Prompter is the slice of the chat transport the engines may use: show a
// message, then wait for the next message accepted by match. AwaitReply
// returns ErrTimeout when nothing matches before the deadline.
type Prompter interface {
	Send(ctx context.Context, channelID string, r Result) error
	AwaitReply(ctx context.Context, match func(Reply) bool, timeout time.Duration) (Reply, error)
}

// confirm shows summary and waits for the same user to answer in the same
// channel. Only a literal "yes" confirms.
func confirm(ctx context.Context, p Prompter, userID, channelID string, summary Result, timeout time.Duration) error {
	if p == nil {
		return ErrCancelled
	}
	if err := p.Send(ctx, channelID, summary); err != nil {
		return err
	}
	reply, err := p.AwaitReply(ctx, func(r Reply) bool {
		return r.UserID == userID && r.ChannelID == channelID
	}, timeout)
	if err != nil {
		return err
	}
	if !strings.EqualFold(strings.TrimSpace(reply.Content), "yes") {
		return ErrCancelled
	}
	return nil
}
