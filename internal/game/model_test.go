package game

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"gachabot/internal/economy"
)

func TestConfigDefaults(t *testing.T) {
	cfg := Config{TradeTimeout: 5 * time.Second}.withDefaults()
	assert.Equal(t, 5*time.Second, cfg.TradeTimeout)
	assert.Equal(t, DefaultDropTimeout, cfg.DropTimeout)
	assert.Equal(t, DefaultConfirmTimeout, cfg.RemovalTimeout)
	assert.Equal(t, DefaultHistorySize, cfg.HistorySize)
	assert.Equal(t, "w.", cfg.Prefix)
	assert.Equal(t, economy.DefaultPayouts, cfg.Rules.Payouts)
}

func TestConfigIsAdmin(t *testing.T) {
	cfg := Config{Admins: []string{"1", "2"}}
	assert.True(t, cfg.IsAdmin("2"))
	assert.False(t, cfg.IsAdmin("3"))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want ResultKind
	}{
		{nil, ResultOK},
		{ErrBadUsage, ResultUserError},
		{fmt.Errorf("%w: add", ErrBadUsage), ResultUserError},
		{ErrFavoriteProtected, ResultUserError},
		{ErrLockConflict, ResultLockConflict},
		{ErrDropPending, ResultUserError},
		{ErrInsufficientFunds, ResultAffordability},
		{ErrInsufficientParts, ResultAffordability},
		{fmt.Errorf("%w: gone", ErrConcurrentMutation), ResultConcurrentMutation},
		{ErrTimeout, ResultTimeout},
		{ErrCancelled, ResultTimeout},
		{wrapIndex(ErrItemNotFound, 3), ResultNotFound},
		{ErrSeriesNotFound, ResultNotFound},
		{errors.New("connection reset"), ResultFailure},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Classify(tc.err), "err=%v", tc.err)
	}
}

func TestErrorResultHidesCollaboratorFailures(t *testing.T) {
	r := ErrorResult(errors.New("pq: connection refused"))
	assert.Equal(t, ResultFailure, r.Kind)
	assert.NotContains(t, r.Body, "connection refused")

	r = ErrorResult(ErrSeriesNotFound)
	assert.Equal(t, "404 Series not Found", r.Title)

	r = ErrorResult(ErrAllFavorites)
	assert.Equal(t, "Removal Blocked", r.Title)
}

func TestErrorResultForPendingDrop(t *testing.T) {
	r := ErrorResult(ErrDropPending)
	assert.Equal(t, ResultUserError, r.Kind)
	assert.Equal(t, "Drop In Progress", r.Title)
	assert.NotContains(t, r.Body, "removing or trading")
}
