// Package command turns raw chat text into typed, validated argument structs.
// The game engines only ever see the structs produced here.
package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

var (
	ErrBadUsage    = errors.New("bad usage")
	ErrUnknownFlag = errors.New("unknown flag")
)

// Invocation is a prefixed chat message split into its verb and arguments.
type Invocation struct {
	Verb string
	Args []string
	// Rest is everything after the verb, untokenized.
	Rest string
}

// Parse splits a prefixed message. ok is false when content does not start
// with prefix.
func Parse(prefix, content string) (Invocation, bool, error) {
	content = strings.TrimSpace(content)
	if prefix == "" || len(content) < len(prefix) || !strings.EqualFold(content[:len(prefix)], prefix) {
		return Invocation{}, false, nil
	}
	body := strings.TrimLeftFunc(content[len(prefix):], unicode.IsSpace)
	if body == "" {
		return Invocation{}, false, nil
	}
	verb, rest, _ := strings.Cut(body, " ")
	args, err := Tokenize(rest)
	if err != nil {
		return Invocation{}, true, err
	}
	return Invocation{
		Verb: strings.ToLower(verb),
		Args: args,
		Rest: strings.TrimSpace(rest),
	}, true, nil
}

// Tokenize splits on whitespace, keeping single or double quoted segments
// together.
func Tokenize(s string) ([]string, error) {
	var (
		out     []string
		cur     strings.Builder
		quote   rune
		inToken bool
	)
	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
				continue
			}
			cur.WriteRune(r)
		case r == '"' || r == '\'':
			quote = r
			inToken = true
		case unicode.IsSpace(r):
			if inToken {
				out = append(out, cur.String())
				cur.Reset()
				inToken = false
			}
		default:
			cur.WriteRune(r)
			inToken = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("%w: unterminated quote", ErrBadUsage)
	}
	if inToken {
		out = append(out, cur.String())
	}
	return out, nil
}

// ParseMention accepts <@id>, <@!id> or a bare numeric id.
func ParseMention(tok string) (string, bool) {
	tok = strings.TrimSpace(tok)
	if strings.HasPrefix(tok, "<@") && strings.HasSuffix(tok, ">") {
		tok = strings.TrimPrefix(strings.TrimSuffix(tok[2:], ">"), "!")
	}
	if tok == "" {
		return "", false
	}
	for _, r := range tok {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return tok, true
}

func isInt(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}

func parseIndex(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %q is not an inventory number", ErrBadUsage, s)
	}
	return n, nil
}

// ParseAmount parses a non-negative currency amount.
func ParseAmount(s string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q is not an amount", ErrBadUsage, s)
	}
	return n, nil
}

// takeFlag removes every occurrence of flag from args.
func takeFlag(args []string, flag string) ([]string, bool) {
	out := args[:0:0]
	found := false
	for _, a := range args {
		if a == flag {
			found = true
			continue
		}
		out = append(out, a)
	}
	return out, found
}
