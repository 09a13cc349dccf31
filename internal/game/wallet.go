package game

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gachabot/internal/command"
	"gachabot/internal/economy"
	"gachabot/internal/inventory"
)

func (s *Service) Balance(ctx context.Context, userID string) (inventory.Balance, error) {
	return s.store.Balance(ctx, userID)
}

// Daily grants the daily currency once per local calendar day.
func (s *Service) Daily(ctx context.Context, userID string) (inventory.Balance, error) {
	bal, err := s.store.ClaimDaily(ctx, userID, economy.DailyCurrency, s.now())
	if err != nil {
		return bal, err
	}
	s.metrics.RecordCurrency(ctx, "daily", economy.DailyCurrency)
	return bal, nil
}

// Gift moves currency between users after the sender confirms.
func (s *Service) Gift(ctx context.Context, fromUserID, channelID string, args command.GiftArgs, prompt Prompter) (inventory.Balance, error) {
	if fromUserID == args.Target {
		return inventory.Balance{}, ErrSelfGift
	}
	bal, err := s.store.Balance(ctx, fromUserID)
	if err != nil {
		return inventory.Balance{}, err
	}
	if bal.Currency < args.Amount {
		return bal, ErrInsufficientFunds
	}
	if !args.Yes {
		summary := Result{
			Kind:  ResultOK,
			Title: "Gift Confirmation",
			Body: fmt.Sprintf("You are about to gift **%d** %s to <@%s>.\nRespond with `yes` to confirm.",
				args.Amount, s.cfg.CurrencyName, args.Target),
		}
		if err := confirm(ctx, prompt, fromUserID, channelID, summary, s.cfg.GiftTimeout); err != nil {
			return bal, err
		}
	}
	if err := s.store.Transfer(ctx, fromUserID, args.Target, args.Amount); err != nil {
		return bal, err
	}
	s.metrics.RecordCurrency(ctx, "gift", args.Amount)
	s.log.Info("gift", "from", fromUserID, "to", args.Target, "amount", args.Amount)
	return s.store.Balance(ctx, fromUserID)
}

// Wager doubles or loses amount on a coin flip.
func (s *Service) Wager(ctx context.Context, userID string, amount int64) (WagerResult, error) {
	if amount <= 0 {
		return WagerResult{}, fmt.Errorf("%w: amount must be > 0", ErrBadUsage)
	}
	bal, err := s.store.Balance(ctx, userID)
	if err != nil {
		return WagerResult{}, err
	}
	if bal.Currency < amount {
		return WagerResult{}, ErrInsufficientFunds
	}
	res := WagerResult{Amount: amount, Won: s.nextFloat() < 0.5}
	if res.Won {
		err = s.store.Credit(ctx, userID, amount)
		s.metrics.RecordCurrency(ctx, "wager_won", amount)
	} else {
		err = s.store.Debit(ctx, userID, amount)
		s.metrics.RecordCurrency(ctx, "wager_lost", amount)
	}
	if err != nil {
		return WagerResult{}, err
	}
	bal, err = s.store.Balance(ctx, userID)
	if err != nil {
		return WagerResult{}, err
	}
	res.Balance = bal.Currency
	return res, nil
}

// Upgrade spends upgrade parts to raise an item's rarity by one tier.
func (s *Service) Upgrade(ctx context.Context, userID, channelID string, args command.UpgradeArgs, prompt Prompter) (inventory.Item, error) {
	it, err := s.store.ItemAt(ctx, userID, args.Index)
	if errors.Is(err, inventory.ErrItemNotFound) {
		return inventory.Item{}, wrapIndex(ErrItemNotFound, args.Index)
	}
	if err != nil {
		return inventory.Item{}, err
	}
	cost, ok := s.cfg.Rules.UpgradeCost(it.Rarity)
	if !ok {
		return it, ErrNotUpgradable
	}
	bal, err := s.store.Balance(ctx, userID)
	if err != nil {
		return it, err
	}
	if bal.Upgrades < cost {
		return it, fmt.Errorf("%w: need %d, have %d", ErrInsufficientParts, cost, bal.Upgrades)
	}
	if !args.Yes {
		summary := Result{
			Kind:  ResultOK,
			Title: "Upgrade Confirmation",
			Body: fmt.Sprintf("Upgrade %s from %s to %s for **%d** upgrade parts?\nRespond with `yes` to confirm.",
				it.Name, it.Rarity, it.Rarity+1, cost),
			Image: it.ImageURL,
		}
		if err := confirm(ctx, prompt, userID, channelID, summary, s.cfg.UpgradeTimeout); err != nil {
			return it, err
		}
	}
	upgraded, err := s.store.UpgradeItem(ctx, userID, it.ID, cost)
	if err != nil {
		return it, err
	}
	s.log.Info("upgrade", "user_id", userID, "item_id", it.ID, "rarity", int(upgraded.Rarity))
	return upgraded, nil
}

// Item returns the item at a 1-based inventory index.
func (s *Service) Item(ctx context.Context, userID string, index int) (inventory.Item, error) {
	it, err := s.store.ItemAt(ctx, userID, index)
	if errors.Is(err, inventory.ErrItemNotFound) {
		return inventory.Item{}, wrapIndex(ErrItemNotFound, index)
	}
	return it, err
}

// SetFavorite marks or unmarks items. All indices are resolved before any
// item changes.
func (s *Service) SetFavorite(ctx context.Context, userID string, indices []int, favorite bool) ([]inventory.Item, error) {
	items := make([]inventory.Item, 0, len(indices))
	for _, idx := range indices {
		it, err := s.store.ItemAt(ctx, userID, idx)
		if errors.Is(err, inventory.ErrItemNotFound) {
			return nil, wrapIndex(ErrItemNotFound, idx)
		}
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	for i := range items {
		if err := s.store.SetFavorite(ctx, items[i].ID, favorite); err != nil {
			return nil, err
		}
		items[i].Favorite = favorite
	}
	return items, nil
}

// SetMoney overwrites a balance. Only configured bot admins may use it.
func (s *Service) SetMoney(ctx context.Context, actorID string, args command.SetMoneyArgs) error {
	if !s.cfg.IsAdmin(actorID) {
		return ErrForbidden
	}
	return s.SetCurrency(ctx, args.Target, args.Amount)
}

// SetCurrency is the unchecked balance override used by the admin API.
func (s *Service) SetCurrency(ctx context.Context, userID string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("%w: amount must not be negative", ErrBadUsage)
	}
	if err := s.store.SetCurrency(ctx, userID, amount); err != nil {
		return err
	}
	s.log.Info("currency set", "user_id", userID, "amount", amount)
	return nil
}

func (s *Service) AssignChannel(ctx context.Context, guildID, channelID string) error {
	if guildID == "" || channelID == "" {
		return fmt.Errorf("%w: guild and channel are required", ErrBadUsage)
	}
	return s.store.AssignChannel(ctx, guildID, channelID)
}

// Inventory lists a user's items matching spec, keeping their 1-based indices.
func (s *Service) Inventory(ctx context.Context, userID string, spec command.FilterSpec) ([]inventory.Item, error) {
	f, err := s.CompileFilter(ctx, spec)
	if err != nil {
		return nil, err
	}
	items, err := s.store.Items(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.applyFilter(ctx, f, items)
}

// SearchCharacters looks the query up as typed and with its words reversed,
// so "ackerman levi" finds "Levi Ackerman".
func (s *Service) SearchCharacters(ctx context.Context, query string, limit int) ([]inventory.Character, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: search needs a name", ErrBadUsage)
	}
	queries := []string{query}
	if words := strings.Fields(query); len(words) > 1 {
		rev := make([]string, len(words))
		for i, w := range words {
			rev[len(words)-1-i] = w
		}
		queries = append(queries, strings.Join(rev, " "))
	}

	seen := make(map[int64]bool)
	var out []inventory.Character
	for _, q := range queries {
		found, err := s.store.SearchCharacters(ctx, q, limit)
		if err != nil {
			return nil, err
		}
		for _, c := range found {
			if !seen[c.ID] {
				seen[c.ID] = true
				out = append(out, c)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Service) Character(ctx context.Context, id int64) (inventory.Character, error) {
	return s.store.Character(ctx, id)
}

func (s *Service) ShowsLike(ctx context.Context, query string) ([]inventory.Show, error) {
	return s.store.ShowsLike(ctx, query)
}
