package game

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gachabot/internal/command"
	"gachabot/internal/inventory"
)

// Predicate keeps or drops an item given its resolved character.
type Predicate func(item inventory.Item, ch inventory.Character) bool

// Filter is a compiled FilterSpec; all predicates must hold.
type Filter struct {
	preds []Predicate
}

func (f Filter) Empty() bool {
	return len(f.preds) == 0
}

func (f Filter) Match(item inventory.Item, ch inventory.Character) bool {
	for _, p := range f.preds {
		if !p(item, ch) {
			return false
		}
	}
	return true
}

// CompileFilter resolves series references against the catalogue.
func (s *Service) CompileFilter(ctx context.Context, spec command.FilterSpec) (Filter, error) {
	var f Filter

	for _, name := range spec.Names {
		q := normalizeToken(name)
		raw := name
		if q == "" {
			continue
		}
		f.preds = append(f.preds, func(_ inventory.Item, ch inventory.Character) bool {
			return strings.Contains(normalizeToken(ch.EnName), q) ||
				(ch.JaName != "" && strings.Contains(ch.JaName, raw))
		})
	}

	for _, r := range spec.Rarity {
		f.preds = append(f.preds, func(item inventory.Item, _ inventory.Character) bool {
			return item.Rarity == r
		})
	}

	for _, id := range spec.SeriesIDs {
		show, err := s.store.Show(ctx, id)
		if errors.Is(err, inventory.ErrShowNotFound) {
			return Filter{}, fmt.Errorf("%w: %d", ErrSeriesNotFound, id)
		}
		if err != nil {
			return Filter{}, err
		}
		f.preds = append(f.preds, func(_ inventory.Item, ch inventory.Character) bool {
			return ch.InShow(show.ID)
		})
	}

	for _, name := range spec.SeriesNames {
		shows, err := s.store.ShowsLike(ctx, name)
		if err != nil {
			return Filter{}, err
		}
		if len(shows) == 0 {
			return Filter{}, fmt.Errorf("%w: %q", ErrSeriesNotFound, name)
		}
		f.preds = append(f.preds, func(_ inventory.Item, ch inventory.Character) bool {
			for _, sh := range shows {
				if ch.InShow(sh.ID) {
					return true
				}
			}
			return false
		})
	}

	if spec.FavoritesOnly {
		f.preds = append(f.preds, func(item inventory.Item, _ inventory.Character) bool {
			return item.Favorite
		})
	}
	return f, nil
}

// applyFilter returns the items of items that match f, resolving each
// distinct character once.
func (s *Service) applyFilter(ctx context.Context, f Filter, items []inventory.Item) ([]inventory.Item, error) {
	if f.Empty() {
		return items, nil
	}
	chars := make(map[int64]inventory.Character)
	var out []inventory.Item
	for _, it := range items {
		ch, ok := chars[it.CharacterID]
		if !ok {
			var err error
			ch, err = s.store.Character(ctx, it.CharacterID)
			if err != nil {
				return nil, err
			}
			chars[it.CharacterID] = ch
		}
		if f.Match(it, ch) {
			out = append(out, it)
		}
	}
	return out, nil
}
