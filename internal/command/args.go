package command

import (
	"fmt"

	"gachabot/internal/economy"
)

// RemoveArgs addresses items either by inventory numbers or by a filter,
// never both.
type RemoveArgs struct {
	Indices []int
	Filter  FilterSpec
	Yes     bool
	Force   bool
}

func (r RemoveArgs) ByIndex() bool {
	return len(r.Indices) > 0
}

// ParseRemove treats an argument list made only of integers as inventory
// numbers and anything else as a filter.
func ParseRemove(args []string) (RemoveArgs, error) {
	var out RemoveArgs
	args, out.Yes = takeFlag(args, "-y")
	args, out.Force = takeFlag(args, "-force")
	if len(args) == 0 {
		return RemoveArgs{}, fmt.Errorf("%w: remove needs inventory numbers or a filter", ErrBadUsage)
	}

	allInts := true
	for _, a := range args {
		if !isInt(a) {
			allInts = false
			break
		}
	}
	if allInts {
		indices, err := ParseIndexList(args)
		if err != nil {
			return RemoveArgs{}, err
		}
		out.Indices = indices
		return out, nil
	}

	filter, err := ParseFilter(args)
	if err != nil {
		return RemoveArgs{}, err
	}
	if filter.Empty() {
		return RemoveArgs{}, fmt.Errorf("%w: empty filter", ErrBadUsage)
	}
	out.Filter = filter
	return out, nil
}

// ParseIndexList parses one or more 1-based inventory numbers, dropping
// duplicates while keeping order.
func ParseIndexList(args []string) ([]int, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: expected inventory numbers", ErrBadUsage)
	}
	seen := make(map[int]bool, len(args))
	out := make([]int, 0, len(args))
	for _, a := range args {
		idx, err := parseIndex(a)
		if err != nil {
			return nil, err
		}
		if seen[idx] {
			continue
		}
		seen[idx] = true
		out = append(out, idx)
	}
	return out, nil
}

type RollArgs struct {
	Price int64
}

func ParseRoll(args []string) (RollArgs, error) {
	switch len(args) {
	case 0:
		return RollArgs{Price: economy.DefaultRollPrice}, nil
	case 1:
		price, err := ParseAmount(args[0])
		if err != nil {
			return RollArgs{}, err
		}
		return RollArgs{Price: price}, nil
	}
	return RollArgs{}, fmt.Errorf("%w: roll [price]", ErrBadUsage)
}

type GiftArgs struct {
	Target string
	Amount int64
	Yes    bool
}

// ParseGift accepts "<user> <amount> [-y]".
func ParseGift(args []string) (GiftArgs, error) {
	var out GiftArgs
	args, out.Yes = takeFlag(args, "-y")
	if len(args) != 2 {
		return GiftArgs{}, fmt.Errorf("%w: gift <user> <amount>", ErrBadUsage)
	}
	target, ok := ParseMention(args[0])
	if !ok {
		return GiftArgs{}, fmt.Errorf("%w: %q is not a user", ErrBadUsage, args[0])
	}
	amount, err := ParseAmount(args[1])
	if err != nil {
		return GiftArgs{}, err
	}
	if amount == 0 {
		return GiftArgs{}, fmt.Errorf("%w: amount must be > 0", ErrBadUsage)
	}
	out.Target = target
	out.Amount = amount
	return out, nil
}

type UpgradeArgs struct {
	Index int
	Yes   bool
}

func ParseUpgrade(args []string) (UpgradeArgs, error) {
	var out UpgradeArgs
	args, out.Yes = takeFlag(args, "-y")
	if len(args) != 1 {
		return UpgradeArgs{}, fmt.Errorf("%w: upgrade <inventory number>", ErrBadUsage)
	}
	idx, err := parseIndex(args[0])
	if err != nil {
		return UpgradeArgs{}, err
	}
	out.Index = idx
	return out, nil
}

// SetMoneyArgs is the bot-admin balance override.
type SetMoneyArgs struct {
	Target string
	Amount int64
}

func ParseSetMoney(args []string) (SetMoneyArgs, error) {
	if len(args) != 2 {
		return SetMoneyArgs{}, fmt.Errorf("%w: setmoney <user> <amount>", ErrBadUsage)
	}
	target, ok := ParseMention(args[0])
	if !ok {
		return SetMoneyArgs{}, fmt.Errorf("%w: %q is not a user", ErrBadUsage, args[0])
	}
	amount, err := ParseAmount(args[1])
	if err != nil {
		return SetMoneyArgs{}, err
	}
	return SetMoneyArgs{Target: target, Amount: amount}, nil
}

// ParseWager accepts a single positive amount.
func ParseWager(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("%w: wager <amount>", ErrBadUsage)
	}
	amount, err := ParseAmount(args[0])
	if err != nil {
		return 0, err
	}
	if amount == 0 {
		return 0, fmt.Errorf("%w: amount must be > 0", ErrBadUsage)
	}
	return amount, nil
}
