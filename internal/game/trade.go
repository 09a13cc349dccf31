package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"gachabot/internal/command"
	"gachabot/internal/inventory"
)

type TradeState int

const (
	TradeOpen TradeState = iota
	TradeConfirming
	TradeSettled
	TradeCancelled
	TradeTimedOut
)

func (s TradeState) String() string {
	switch s {
	case TradeOpen:
		return "open"
	case TradeConfirming:
		return "confirming"
	case TradeSettled:
		return "settled"
	case TradeCancelled:
		return "cancelled"
	case TradeTimedOut:
		return "timed_out"
	}
	return "unknown"
}

func (s TradeState) Terminal() bool {
	return s >= TradeSettled
}

// TradeAnnouncer is told when the sweeper expires an idle trade.
type TradeAnnouncer interface {
	AnnounceTradeTimeout(ctx context.Context, v TradeView)
}

type offer struct {
	userID    string
	items     []OfferedItem
	currency  int64
	confirmed bool
}

func (o *offer) indexOf(itemID int64) int {
	for i, it := range o.items {
		if it.ItemID == itemID {
			return i
		}
	}
	return -1
}

func (o *offer) itemIDs() []int64 {
	out := make([]int64, 0, len(o.items))
	for _, it := range o.items {
		out = append(out, it.ItemID)
	}
	return out
}

type tradeSession struct {
	id           string
	channelID    string
	offers       [2]*offer
	lastActivity time.Time
	state        TradeState
}

func (t *tradeSession) offerOf(userID string) *offer {
	for _, o := range t.offers {
		if o.userID == userID {
			return o
		}
	}
	return nil
}

func (t *tradeSession) resetConfirmations() {
	t.offers[0].confirmed = false
	t.offers[1].confirmed = false
	t.state = TradeOpen
}

func (t *tradeSession) view() TradeView {
	v := TradeView{
		ID:           t.id,
		ChannelID:    t.channelID,
		State:        t.state,
		LastActivity: t.lastActivity,
	}
	for i, o := range t.offers {
		v.Offers[i] = OfferView{
			UserID:    o.userID,
			Items:     append([]OfferedItem(nil), o.items...),
			Currency:  o.currency,
			Confirmed: o.confirmed,
		}
	}
	return v
}

// Trades is the registry of live trade sessions, keyed by both participants.
// All session state is guarded by mu.
type Trades struct {
	svc       *Service
	announcer TradeAnnouncer

	mu     sync.Mutex
	byUser map[string]*tradeSession
}

// Start opens a trade between a and b and takes the trading lock of both.
func (t *Trades) Start(ctx context.Context, a, b, channelID string) (TradeView, error) {
	if a == b {
		return TradeView{}, ErrSelfTrade
	}
	s := t.svc

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, u := range []string{a, b} {
		if sess, expired := t.lookupLocked(ctx, u); sess != nil && !expired {
			return TradeView{}, fmt.Errorf("%w: %s is already trading", ErrLockConflict, u)
		}
	}
	if err := s.store.LockPair(ctx, a, b, inventory.LockTrading); err != nil {
		if errors.Is(err, inventory.ErrLocked) {
			return TradeView{}, ErrLockConflict
		}
		return TradeView{}, err
	}

	sess := &tradeSession{
		id:           uuid.NewString(),
		channelID:    channelID,
		offers:       [2]*offer{{userID: a}, {userID: b}},
		lastActivity: s.now(),
		state:        TradeOpen,
	}
	t.byUser[a] = sess
	t.byUser[b] = sess
	s.log.Info("trade started", "trade_id", sess.id, "user_a", a, "user_b", b)
	return sess.view(), nil
}

// Involving returns the live trade of userID.
func (t *Trades) Involving(ctx context.Context, userID string) (TradeView, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	sess, expired := t.lookupLocked(ctx, userID)
	if sess == nil || expired {
		return TradeView{}, false
	}
	return sess.view(), true
}

// lookupLocked finds the session of userID and expires it when idle for
// longer than the trade timeout. expired reports that it just timed out.
func (t *Trades) lookupLocked(ctx context.Context, userID string) (*tradeSession, bool) {
	sess := t.byUser[userID]
	if sess == nil {
		return nil, false
	}
	if t.svc.now().Sub(sess.lastActivity) > t.svc.cfg.TradeTimeout {
		t.finishLocked(ctx, sess, TradeTimedOut)
		return sess, true
	}
	return sess, false
}

// Apply runs one sub-command from userID against their live trade.
func (t *Trades) Apply(ctx context.Context, userID string, cmd command.TradeCommand) (TradeResult, error) {
	if cmd.Kind == command.TradeStart {
		return TradeResult{}, fmt.Errorf("%w: already addressed a trade partner", ErrBadUsage)
	}
	s := t.svc

	t.mu.Lock()
	defer t.mu.Unlock()

	sess, expired := t.lookupLocked(ctx, userID)
	if sess == nil {
		return TradeResult{}, ErrNotTrading
	}
	if expired {
		return TradeResult{View: sess.view(), State: sess.state}, ErrTimeout
	}
	o := sess.offerOf(userID)

	switch cmd.Kind {
	case command.TradeAdd:
		item, err := s.store.ItemAt(ctx, userID, cmd.Index)
		if err != nil {
			if errors.Is(err, inventory.ErrItemNotFound) {
				return TradeResult{}, wrapIndex(ErrItemNotFound, cmd.Index)
			}
			return TradeResult{}, err
		}
		if o.indexOf(item.ID) >= 0 {
			return TradeResult{}, wrapIndex(ErrAlreadyInOffer, cmd.Index)
		}
		o.items = append(o.items, OfferedItem{ItemID: item.ID, Index: cmd.Index, Name: item.Name, Rarity: item.Rarity})
		sess.resetConfirmations()

	case command.TradeRemove:
		pos := -1
		for i, it := range o.items {
			if it.Index == cmd.Index {
				pos = i
				break
			}
		}
		if pos < 0 {
			return TradeResult{}, wrapIndex(ErrNotInOffer, cmd.Index)
		}
		o.items = append(o.items[:pos], o.items[pos+1:]...)
		sess.resetConfirmations()

	case command.TradeCurrency:
		if cmd.Amount < 0 {
			return TradeResult{}, fmt.Errorf("%w: amount must not be negative", ErrBadUsage)
		}
		bal, err := s.store.Balance(ctx, userID)
		if err != nil {
			return TradeResult{}, err
		}
		if cmd.Amount > bal.Currency {
			return TradeResult{}, ErrInsufficientFunds
		}
		o.currency = cmd.Amount
		sess.resetConfirmations()

	case command.TradeConfirm:
		o.confirmed = true
		sess.state = TradeConfirming
		if sess.offers[0].confirmed && sess.offers[1].confirmed {
			sess.lastActivity = s.now()
			err := t.settleLocked(ctx, sess)
			return TradeResult{View: sess.view(), State: sess.state}, err
		}

	case command.TradeCancel:
		t.finishLocked(ctx, sess, TradeCancelled)
		return TradeResult{View: sess.view(), State: sess.state}, nil

	default:
		return TradeResult{}, fmt.Errorf("%w: unknown trade sub-command", ErrBadUsage)
	}

	sess.lastActivity = s.now()
	return TradeResult{View: sess.view(), State: sess.state}, nil
}

// settleLocked re-checks both offers against the store and applies them in a
// single store call. The session ends and both locks are released whatever
// the outcome.
func (t *Trades) settleLocked(ctx context.Context, sess *tradeSession) (err error) {
	s := t.svc
	defer func() {
		if err != nil {
			t.finishLocked(ctx, sess, TradeCancelled)
			s.log.Warn("trade settlement failed", "trade_id", sess.id, "err", err)
			return
		}
		t.finishLocked(ctx, sess, TradeSettled)
	}()

	for _, o := range sess.offers {
		for _, it := range o.items {
			owned, err := s.store.ItemOwnedBy(ctx, it.ItemID, o.userID)
			if err != nil {
				return err
			}
			if !owned {
				return fmt.Errorf("%w: %s no longer owns %s", ErrConcurrentMutation, o.userID, it.Name)
			}
		}
		if o.currency > 0 {
			bal, err := s.store.Balance(ctx, o.userID)
			if err != nil {
				return err
			}
			if bal.Currency < o.currency {
				return fmt.Errorf("%w: %s can no longer afford %d", ErrInsufficientFunds, o.userID, o.currency)
			}
		}
	}

	a, b := sess.offers[0], sess.offers[1]
	return s.store.SettleTrade(ctx, inventory.Settlement{
		A: inventory.TradeSide{UserID: a.userID, ItemIDs: a.itemIDs(), Currency: a.currency},
		B: inventory.TradeSide{UserID: b.userID, ItemIDs: b.itemIDs(), Currency: b.currency},
	})
}

// finishLocked moves a session to a terminal state, drops it from the
// registry and releases both trading locks.
func (t *Trades) finishLocked(ctx context.Context, sess *tradeSession, state TradeState) {
	if sess.state.Terminal() {
		return
	}
	sess.state = state
	for _, o := range sess.offers {
		if t.byUser[o.userID] == sess {
			delete(t.byUser, o.userID)
		}
		t.svc.releaseLock(ctx, o.userID, inventory.LockTrading)
	}
	t.svc.metrics.RecordTrade(ctx, state.String())
	t.svc.log.Info("trade finished", "trade_id", sess.id, "state", state.String())
}

// Sweep expires every trade idle for longer than the trade timeout and
// returns how many it expired.
func (t *Trades) Sweep(ctx context.Context) int {
	t.mu.Lock()
	var expired []TradeView
	now := t.svc.now()
	for _, sess := range t.byUser {
		if sess.state.Terminal() || now.Sub(sess.lastActivity) <= t.svc.cfg.TradeTimeout {
			continue
		}
		t.finishLocked(ctx, sess, TradeTimedOut)
		expired = append(expired, sess.view())
	}
	t.mu.Unlock()

	if t.announcer != nil {
		for _, v := range expired {
			t.announcer.AnnounceTradeTimeout(ctx, v)
		}
	}
	return len(expired)
}

// Len is the number of live sessions.
func (t *Trades) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	seen := make(map[*tradeSession]bool)
	for _, sess := range t.byUser {
		seen[sess] = true
	}
	return len(seen)
}
