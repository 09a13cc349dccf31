package game

import (
	"sort"
	"strings"
	"unicode"

	"github.com/gosimple/unidecode"
	"golang.org/x/text/cases"
)

// romanization collapses long vowels. Each pair runs over the output of the
// previous one, so "oou" ends up as "o".
var romanization = []struct{ from, to string }{
	{"oo", "o"},
	{"ou", "o"},
	{"uu", "u"},
	{"ii", "i"},
}

var folder = cases.Fold()

// normalizeToken transliterates to ASCII, folds case, keeps only letters and
// digits and collapses long-vowel spellings.
func normalizeToken(s string) string {
	s = folder.String(unidecode.Unidecode(s))
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
	for _, r := range romanization {
		s = strings.ReplaceAll(s, r.from, r.to)
	}
	return s
}

// NameTokens is the sorted, normalized token list of a name. Two names match
// when their token lists are equal, regardless of word order.
func NameTokens(name string) []string {
	fields := strings.Fields(name)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if tok := normalizeToken(f); tok != "" {
			out = append(out, tok)
		}
	}
	sort.Strings(out)
	return out
}

// NamesMatch reports whether guess names any of the candidates.
func NamesMatch(guess string, candidates ...string) bool {
	g := NameTokens(guess)
	if len(g) == 0 {
		return false
	}
	for _, c := range candidates {
		if equalTokens(g, NameTokens(c)) {
			return true
		}
	}
	return false
}

func equalTokens(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Initials renders the drop hint, "Levi Ackerman" -> "L. A.".
func Initials(name string) string {
	fields := strings.Fields(name)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		r := []rune(f)
		parts = append(parts, string(r[0])+".")
	}
	return strings.Join(parts, " ")
}
