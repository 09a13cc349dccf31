package discord

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"gachabot/internal/game"
	"gachabot/internal/inventory"
)

const (
	maxDescription = 4096
	maxListed      = 20

	colorOK      = 0xF47FFF
	colorWarn    = 0xFEE75C
	colorError   = 0xED4245
	colorNeutral = 0x99AAB5
)

func kindColor(k game.ResultKind) int {
	switch k {
	case game.ResultOK:
		return colorOK
	case game.ResultTimeout:
		return colorNeutral
	case game.ResultUserError, game.ResultNotFound, game.ResultAffordability, game.ResultLockConflict:
		return colorWarn
	}
	return colorError
}

// Embed renders a result as a Discord embed.
func Embed(r game.Result) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Title:       r.Title,
		Description: truncate(r.Body, maxDescription),
		Color:       kindColor(r.Kind),
	}
	if r.Image != "" {
		e.Image = &discordgo.MessageEmbedImage{URL: r.Image}
	}
	return e
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}

func mention(userID string) string {
	return "<@" + userID + ">"
}

func itemLine(it inventory.Item) string {
	fav := ""
	if it.Favorite {
		fav = " ♥"
	}
	return fmt.Sprintf("`#%d` %s %s%s", it.Index, it.Name, it.Rarity, fav)
}

func itemList(items []inventory.Item) string {
	var b strings.Builder
	for i, it := range items {
		if i == maxListed {
			fmt.Fprintf(&b, "…and %d more", len(items)-maxListed)
			break
		}
		b.WriteString(itemLine(it))
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func dropResult(v game.DropView, prefix string) game.Result {
	return game.Result{
		Kind:  game.ResultOK,
		Title: "A waifu appeared!",
		Body: fmt.Sprintf("Rarity: %s\nHint: `%s`\nType her name to claim her. Use `%shelp` for more.",
			v.Rarity, v.Hint, prefix),
		Image: v.ImageURL,
	}
}

func dropTimeoutResult(v game.DropView) game.Result {
	return game.Result{
		Kind:  game.ResultTimeout,
		Title: "The waifu got away",
		Body:  fmt.Sprintf("Nobody guessed in time. It was **%s** %s.", v.Name, v.Rarity),
		Image: v.ImageURL,
	}
}

func claimResult(c game.Claim, currency string) game.Result {
	body := fmt.Sprintf("%s claimed **%s** %s as `#%d` and earned **%d** %s.",
		mention(c.UserID), c.Drop.Name, c.Drop.Rarity, c.Item.Index, c.Bonus, currency)
	if c.UpgradeParts > 0 {
		body += fmt.Sprintf("\nThey also found %d upgrade part.", c.UpgradeParts)
	}
	return game.Result{Kind: game.ResultOK, Title: "Waifu Claimed!", Body: body, Image: c.Drop.ImageURL}
}

func rollResult(userID string, r game.RollResult, currency string) game.Result {
	return game.Result{
		Kind:  game.ResultOK,
		Title: fmt.Sprintf("%s %s", r.Character.EnName, r.Item.Rarity),
		Body: fmt.Sprintf("%s rolled for **%d** %s and got `#%d`.\nBalance: **%d** %s",
			mention(userID), r.Price, currency, r.Item.Index, r.Balance, currency),
		Image: r.Item.ImageURL,
	}
}

func offerBlock(o game.OfferView, currency string) string {
	var b strings.Builder
	check := "❌"
	if o.Confirmed {
		check = "✅"
	}
	fmt.Fprintf(&b, "%s %s offers:\n", check, mention(o.UserID))
	for _, it := range o.Items {
		fmt.Fprintf(&b, "`#%d` %s %s\n", it.Index, it.Name, it.Rarity)
	}
	if o.Currency > 0 {
		fmt.Fprintf(&b, "**%d** %s\n", o.Currency, currency)
	}
	if len(o.Items) == 0 && o.Currency == 0 {
		b.WriteString("nothing yet\n")
	}
	return b.String()
}

func tradeResult(v game.TradeView, currency, prefix string) game.Result {
	title := "Trade Offer"
	footer := fmt.Sprintf("\nUse `%strade add|remove <number>`, `%strade %s <amount>`, `%strade confirm` or `%strade cancel`.",
		prefix, prefix, currency, prefix, prefix)
	switch v.State {
	case game.TradeSettled:
		title, footer = "Trade Complete!", ""
	case game.TradeCancelled:
		title, footer = "Trade Cancelled", ""
	case game.TradeTimedOut:
		title, footer = "Trade Timed Out", ""
	}
	body := offerBlock(v.Offers[0], currency) + "\n" + offerBlock(v.Offers[1], currency) + footer
	return game.Result{Kind: game.ResultOK, Title: title, Body: body}
}

func removalResult(r game.RemovalReport, currency string) game.Result {
	var b strings.Builder
	fmt.Fprintf(&b, "Removed %d waifu(s) for **%d** %s.", len(r.Removed), r.Payout, currency)
	if r.Unpaid != nil {
		fmt.Fprintf(&b, "\n`#%d` %s was removed but could not be paid out, and everything after it was kept. Ask an admin to fix your balance.", r.Unpaid.Index, r.Unpaid.Name)
	}
	if r.Failed != nil {
		fmt.Fprintf(&b, "\nStopped at `#%d` %s; it and everything after it were kept.", r.Failed.Index, r.Failed.Name)
	}
	if r.Partial() {
		return game.Result{Kind: game.ResultFailure, Title: "Removal Incomplete", Body: b.String()}
	}
	return game.Result{Kind: game.ResultOK, Title: "Waifus Removed", Body: b.String()}
}

func inventoryResult(userID string, items []inventory.Item) game.Result {
	if len(items) == 0 {
		return game.Result{Kind: game.ResultOK, Title: "Waifus", Body: mention(userID) + " has no matching waifus."}
	}
	return game.Result{
		Kind:  game.ResultOK,
		Title: fmt.Sprintf("Waifus (%d)", len(items)),
		Body:  mention(userID) + "\n" + itemList(items),
	}
}

func itemResult(it inventory.Item, ch inventory.Character) game.Result {
	var shows []string
	for _, s := range ch.Shows {
		shows = append(shows, s.EnTitle)
	}
	body := fmt.Sprintf("Rarity: %s\nOwner: %s", it.Rarity, mention(it.UserID))
	if ch.JaName != "" {
		body += "\nJapanese name: " + ch.JaName
	}
	if len(shows) > 0 {
		body += "\nFrom: " + strings.Join(shows, ", ")
	}
	return game.Result{Kind: game.ResultOK, Title: fmt.Sprintf("#%d %s", it.Index, it.Name), Body: body, Image: it.ImageURL}
}

func charactersResult(chars []inventory.Character) game.Result {
	if len(chars) == 0 {
		return game.Result{Kind: game.ResultNotFound, Title: "404 Character not Found", Body: "No characters match that name."}
	}
	var b strings.Builder
	for _, c := range chars {
		fmt.Fprintf(&b, "`%d` %s", c.ID, c.EnName)
		if c.AltName != "" {
			fmt.Fprintf(&b, " (%s)", c.AltName)
		}
		b.WriteByte('\n')
	}
	return game.Result{Kind: game.ResultOK, Title: "Characters", Body: b.String()}
}

func showsResult(shows []inventory.Show) game.Result {
	if len(shows) == 0 {
		return game.Result{Kind: game.ResultNotFound, Title: "404 Series not Found", Body: "No series match that name."}
	}
	var b strings.Builder
	for _, s := range shows {
		kind := "anime"
		if s.IsManga {
			kind = "manga"
		}
		fmt.Fprintf(&b, "`%d` %s (%s)\n", s.ID, s.EnTitle, kind)
	}
	return game.Result{Kind: game.ResultOK, Title: "Series", Body: b.String()}
}

func balanceResult(userID string, b inventory.Balance, currency string) game.Result {
	return game.Result{
		Kind:  game.ResultOK,
		Title: "Balance",
		Body:  fmt.Sprintf("%s has **%d** %s and **%d** upgrade parts.", mention(userID), b.Currency, currency, b.Upgrades),
	}
}
