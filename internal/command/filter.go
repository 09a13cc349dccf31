package command

import (
	"fmt"
	"strconv"
	"strings"

	"gachabot/internal/economy"
)

// FilterSpec selects inventory items. Every populated field is a predicate and
// all predicates must hold.
type FilterSpec struct {
	Names         []string
	Rarity        []economy.Rarity
	SeriesIDs     []int64
	SeriesNames   []string
	FavoritesOnly bool
}

func (f FilterSpec) Empty() bool {
	return len(f.Names) == 0 && len(f.Rarity) == 0 && len(f.SeriesIDs) == 0 &&
		len(f.SeriesNames) == 0 && !f.FavoritesOnly
}

// ParseFilter reads bare words and -n as name tokens, -r as 1-based stars,
// -s as a series id, -sn as a series name and -f as favorites only.
func ParseFilter(args []string) (FilterSpec, error) {
	var spec FilterSpec
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") || isInt(arg) {
			spec.Names = append(spec.Names, strings.Fields(arg)...)
			continue
		}

		flag := strings.TrimLeft(arg, "-")
		switch flag {
		case "f", "fav", "favs", "favorite", "favorites", "favourite", "favourites":
			spec.FavoritesOnly = true
			continue
		case "n", "name", "r", "rarity", "s", "series", "sn", "seriesname":
		default:
			return FilterSpec{}, fmt.Errorf("%w %s", ErrUnknownFlag, arg)
		}

		if i+1 >= len(args) {
			return FilterSpec{}, fmt.Errorf("%w: %s needs a value", ErrBadUsage, arg)
		}
		i++
		val := args[i]

		switch flag {
		case "n", "name":
			spec.Names = append(spec.Names, strings.Fields(val)...)
		case "r", "rarity":
			stars, err := strconv.Atoi(val)
			r := economy.Rarity(stars - 1)
			if err != nil || !r.Valid() {
				return FilterSpec{}, fmt.Errorf("%w: rarity must be 1-%d", ErrBadUsage, economy.MaxRarity.Stars())
			}
			spec.Rarity = append(spec.Rarity, r)
		case "s", "series":
			id, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return FilterSpec{}, fmt.Errorf("%w: series id must be a number", ErrBadUsage)
			}
			spec.SeriesIDs = append(spec.SeriesIDs, id)
		case "sn", "seriesname":
			spec.SeriesNames = append(spec.SeriesNames, val)
		}
	}
	return spec, nil
}
