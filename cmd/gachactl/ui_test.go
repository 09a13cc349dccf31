package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComma(t *testing.T) {
	cases := map[int64]string{
		0:         "0",
		999:       "999",
		1000:      "1,000",
		18750:     "18,750",
		1234567:   "1,234,567",
		-25000:    "-25,000",
		100000000: "100,000,000",
	}
	for in, want := range cases {
		assert.Equal(t, want, comma(in), "comma(%d)", in)
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "Levi", truncate("  Levi  ", 10))
	assert.Equal(t, "Levi Ac...", truncate("Levi Ackerman", 10))
	assert.Equal(t, "フリー", truncate("フリーレン", 3))
}
