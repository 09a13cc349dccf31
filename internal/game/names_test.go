package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNamesMatch(t *testing.T) {
	tests := []struct {
		guess string
		name  string
		want  bool
	}{
		{"Levi Ackerman", "Levi Ackerman", true},
		{"ackerman levi", "Levi Ackerman", true},
		{"LEVI ACKERMAN", "Levi Ackerman", true},
		{"  levi   ackerman! ", "Levi Ackerman", true},
		{"Levi", "Levi Ackerman", false},
		{"Levi Ackerman Kun", "Levi Ackerman", false},
		{"Kyoko Sakura", "Kyouko Sakura", true},
		{"ryuko matoi", "Ryuuko Matoi", true},
		{"shoyo hinata", "Shōyō Hinata", true},
		{"Ouchi", "Oouchi", true},
		{"shouta", "Shoouta", true},
		{"Oouchi", "Ouchi", true},
		{"", "", false},
		{"!!!", "", false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, NamesMatch(tc.guess, tc.name), "guess=%q name=%q", tc.guess, tc.name)
	}
}

func TestNamesMatchAnyCandidate(t *testing.T) {
	assert.True(t, NamesMatch("captain levi", "Levi Ackerman", "Captain Levi", "リヴァイ"))
	assert.True(t, NamesMatch("リヴァイ", "Levi Ackerman", "", "リヴァイ"))
	assert.False(t, NamesMatch("eren", "Levi Ackerman", "", "リヴァイ"))
}

func TestInitials(t *testing.T) {
	assert.Equal(t, "L. A.", Initials("Levi Ackerman"))
	assert.Equal(t, "A.", Initials("Anya"))
	assert.Equal(t, "", Initials("  "))
}

func TestHistoryEvictsOldestFirst(t *testing.T) {
	h := NewHistory([]int64{1, 2, 3, 4}, 3)
	assert.Equal(t, []int64{2, 3, 4}, h.IDs())

	h.Push(5)
	assert.Equal(t, 3, h.Len())
	assert.False(t, h.Contains(2))
	assert.True(t, h.Contains(5))
	assert.Equal(t, []int64{3, 4, 5}, h.IDs())
}
