package game

import (
	"context"
	"fmt"
	mathrand "math/rand"

	"gachabot/internal/command"
	"gachabot/internal/economy"
	"gachabot/internal/inventory"
)

// Roll spends args.Price on one draw. The price is debited before the draw and
// refunded if the item cannot be created.
func (s *Service) Roll(ctx context.Context, userID string, args command.RollArgs) (RollResult, error) {
	price := args.Price
	if price < economy.MinRollPrice || price > economy.MaxRollPrice {
		return RollResult{}, fmt.Errorf("%w: price must be between %d and %d", ErrInvalidPrice, economy.MinRollPrice, economy.MaxRollPrice)
	}
	if err := s.store.Debit(ctx, userID, price); err != nil {
		return RollResult{}, err
	}

	res, err := s.rollItem(ctx, userID, price)
	if err != nil {
		if rerr := s.store.Credit(context.WithoutCancel(ctx), userID, price); rerr != nil {
			s.log.Error("roll refund failed", "user_id", userID, "price", price, "err", rerr)
		}
		return RollResult{}, err
	}

	bal, err := s.store.Balance(ctx, userID)
	if err != nil {
		return RollResult{}, err
	}
	res.Balance = bal.Currency

	s.metrics.RecordRoll(ctx, int(res.Item.Rarity))
	s.metrics.RecordCurrency(ctx, "roll", price)
	s.log.Info("roll", "user_id", userID, "price", price, "item_id", res.Item.ID, "rarity", int(res.Item.Rarity))
	return res, nil
}

func (s *Service) rollItem(ctx context.Context, userID string, price int64) (RollResult, error) {
	out, err := s.selectOutcome(ctx, nil)
	if err != nil {
		return RollResult{}, err
	}
	var rarity economy.Rarity
	s.withRand(func(r *mathrand.Rand) {
		rarity, price = economy.RarityForPrice(r, price)
	})
	item, err := s.store.AddItem(ctx, inventory.NewItem{
		UserID:      userID,
		CharacterID: out.character.ID,
		ImageID:     out.image.ID,
		Rarity:      rarity,
	})
	if err != nil {
		return RollResult{}, err
	}
	return RollResult{Item: item, Character: out.character, Price: price}, nil
}
