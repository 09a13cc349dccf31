package command

import (
	"fmt"
	"strings"
)

type TradeKind int

const (
	TradeStart TradeKind = iota + 1
	TradeAdd
	TradeRemove
	TradeCurrency
	TradeConfirm
	TradeCancel
)

func (k TradeKind) String() string {
	switch k {
	case TradeStart:
		return "start"
	case TradeAdd:
		return "add"
	case TradeRemove:
		return "remove"
	case TradeCurrency:
		return "currency"
	case TradeConfirm:
		return "confirm"
	case TradeCancel:
		return "cancel"
	}
	return "unknown"
}

// TradeCommand is one trade sub-action. Target is set for Start, Index for
// Add and Remove, Amount for Currency.
type TradeCommand struct {
	Kind   TradeKind
	Target string
	Index  int
	Amount int64
}

// ParseTrade parses the arguments of the trade verb. currencyName is the
// configured currency word accepted as the set-currency sub-command.
func ParseTrade(args []string, currencyName string) (TradeCommand, error) {
	if len(args) == 0 {
		return TradeCommand{}, fmt.Errorf("%w: trade needs a sub-command", ErrBadUsage)
	}
	sub := strings.ToLower(args[0])
	rest := args[1:]

	switch {
	case sub == "add" || sub == "remove":
		if len(rest) != 1 {
			return TradeCommand{}, fmt.Errorf("%w: trade %s <inventory number>", ErrBadUsage, sub)
		}
		idx, err := parseIndex(rest[0])
		if err != nil {
			return TradeCommand{}, err
		}
		kind := TradeAdd
		if sub == "remove" {
			kind = TradeRemove
		}
		return TradeCommand{Kind: kind, Index: idx}, nil

	case sub == "confirm" || sub == "cancel":
		if len(rest) != 0 {
			return TradeCommand{}, fmt.Errorf("%w: trade %s takes no arguments", ErrBadUsage, sub)
		}
		if sub == "confirm" {
			return TradeCommand{Kind: TradeConfirm}, nil
		}
		return TradeCommand{Kind: TradeCancel}, nil

	case currencyName != "" && strings.EqualFold(sub, currencyName):
		if len(rest) != 1 {
			return TradeCommand{}, fmt.Errorf("%w: trade %s <amount>", ErrBadUsage, currencyName)
		}
		amount, err := ParseAmount(rest[0])
		if err != nil {
			return TradeCommand{}, err
		}
		return TradeCommand{Kind: TradeCurrency, Amount: amount}, nil
	}

	if target, ok := ParseMention(args[0]); ok && len(rest) == 0 {
		return TradeCommand{Kind: TradeStart, Target: target}, nil
	}
	return TradeCommand{}, fmt.Errorf("%w: unknown trade sub-command %q", ErrBadUsage, args[0])
}
