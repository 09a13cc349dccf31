package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"gachabot/internal/economy"
	"gachabot/internal/inventory"

	"github.com/fatih/color"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)
)

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func promptOptional(label string) (string, error) {
	fmt.Printf("%s: ", label)
	text, err := stdinReader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func promptConfirm(label string) (bool, error) {
	text, err := promptOptional(label + " (yes/no)")
	if err != nil {
		return false, err
	}
	return strings.EqualFold(text, "yes"), nil
}

func rarityColor(r economy.Rarity) *color.Color {
	switch {
	case r >= economy.RarityLegendary:
		return color.New(color.FgMagenta, color.Bold)
	case r >= economy.RarityRare:
		return accent
	}
	return neutral
}

func renderCharacters(chars []inventory.Character) {
	accent.Println("\n== CHARACTERS ==")
	if len(chars) == 0 {
		printInfo("No characters match.")
		return
	}
	fmt.Printf("%-8s %-32s %-24s %s\n", "ID", "NAME", "JAPANESE", "DROPS")
	for _, c := range chars {
		drops := danger.Sprint("no")
		if c.Droppable {
			drops = success.Sprint("yes")
		}
		fmt.Printf("%-8d %-32s %-24s %s\n", c.ID, truncate(c.EnName, 32), truncate(c.JaName, 24), drops)
	}
	fmt.Println()
}

func renderCharacter(c inventory.Character) {
	accent.Printf("\n== %s ==\n", strings.ToUpper(c.EnName))
	fmt.Printf("ID:        %d\n", c.ID)
	if c.JaName != "" {
		fmt.Printf("Japanese:  %s\n", c.JaName)
	}
	if c.AltName != "" {
		fmt.Printf("Also:      %s\n", c.AltName)
	}
	for _, s := range c.Shows {
		kind := "anime"
		if s.IsManga {
			kind = "manga"
		}
		fmt.Printf("Series:    %s (%s, #%d)\n", s.EnTitle, kind, s.ID)
	}
	for _, img := range c.Images {
		mark := ""
		if !img.Droppable {
			mark = warn.Sprint(" (not droppable)")
		}
		fmt.Printf("Image %-4d %s%s\n", img.ID, img.NormalURL, mark)
	}
	fmt.Println()
}

func renderBalance(b inventory.Balance) {
	accent.Printf("\n== BALANCE %s ==\n", b.UserID)
	fmt.Printf("Currency:       %s\n", comma(b.Currency))
	fmt.Printf("Upgrade parts:  %d\n", b.Upgrades)
	fmt.Printf("Trading lock:   %s\n", lockText(b.TradingLocked))
	fmt.Printf("Removing lock:  %s\n", lockText(b.RemovingLocked))
	fmt.Println()
}

func lockText(locked bool) string {
	if locked {
		return warn.Sprint("held")
	}
	return success.Sprint("free")
}

func renderItems(userID string, items []inventory.Item) {
	accent.Printf("\n== WAIFUS %s (%d) ==\n", userID, len(items))
	if len(items) == 0 {
		printInfo("No matching waifus.")
		return
	}
	fmt.Printf("%-6s %-32s %-8s %s\n", "#", "NAME", "RARITY", "FAV")
	for _, it := range items {
		fav := ""
		if it.Favorite {
			fav = danger.Sprint("♥")
		}
		fmt.Printf("%-6d %-32s %s %s\n", it.Index, truncate(it.Name, 32), rarityColor(it.Rarity).Sprint(it.Rarity.String()), fav)
	}
	fmt.Println()
}

func comma(v int64) string {
	sign := ""
	if v < 0 {
		sign, v = "-", -v
	}
	s := fmt.Sprintf("%d", v)
	if len(s) <= 3 {
		return sign + s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return sign + b.String()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
