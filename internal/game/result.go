package game

import (
	"errors"
	"fmt"
)

type ResultKind int

const (
	ResultOK ResultKind = iota
	ResultUserError
	ResultNotFound
	ResultLockConflict
	ResultAffordability
	ResultConcurrentMutation
	ResultTimeout
	ResultFailure
)

func (k ResultKind) String() string {
	switch k {
	case ResultOK:
		return "ok"
	case ResultUserError:
		return "user_error"
	case ResultNotFound:
		return "not_found"
	case ResultLockConflict:
		return "lock_conflict"
	case ResultAffordability:
		return "affordability"
	case ResultConcurrentMutation:
		return "concurrent_mutation"
	case ResultTimeout:
		return "timeout"
	}
	return "failure"
}

// Result is what a command handler hands back to the transport: a kind to
// switch on and the title/body/image of the reply.
type Result struct {
	Kind  ResultKind
	Title string
	Body  string
	Image string
}

func OK(title, body string) Result {
	return Result{Kind: ResultOK, Title: title, Body: body}
}

// Classify maps an error to the kind of reply it deserves. Unknown errors are
// collaborator failures.
func Classify(err error) ResultKind {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, ErrTimeout), errors.Is(err, ErrCancelled):
		return ResultTimeout
	case errors.Is(err, ErrLockConflict):
		return ResultLockConflict
	case errors.Is(err, ErrInsufficientFunds), errors.Is(err, ErrInsufficientParts):
		return ResultAffordability
	case errors.Is(err, ErrConcurrentMutation):
		return ResultConcurrentMutation
	case errors.Is(err, ErrItemNotFound), errors.Is(err, ErrSeriesNotFound),
		errors.Is(err, ErrCharacterNotFound), errors.Is(err, ErrNoMatches):
		return ResultNotFound
	case errors.Is(err, ErrBadUsage), errors.Is(err, ErrUnknownFlag),
		errors.Is(err, ErrNotTrading), errors.Is(err, ErrSelfTrade),
		errors.Is(err, ErrAlreadyInOffer), errors.Is(err, ErrNotInOffer),
		errors.Is(err, ErrInvalidPrice), errors.Is(err, ErrNotUpgradable),
		errors.Is(err, ErrNoAssignedChannel), errors.Is(err, ErrAlreadyClaimed),
		errors.Is(err, ErrFavoriteProtected), errors.Is(err, ErrAllFavorites),
		errors.Is(err, ErrSelfGift), errors.Is(err, ErrForbidden),
		errors.Is(err, ErrDropPending):
		return ResultUserError
	}
	return ResultFailure
}

// ErrorResult renders an error as a reply. Collaborator failures never leak
// their message.
func ErrorResult(err error) Result {
	kind := Classify(err)
	r := Result{Kind: kind, Body: capitalize(err.Error())}
	switch kind {
	case ResultTimeout:
		r.Title = "Cancelled"
	case ResultLockConflict:
		r.Title = "Something Went Wrong"
		r.Body = "Unable to perform action. Are you already removing or trading waifus?"
	case ResultAffordability:
		r.Title = "Insufficient Funds"
	case ResultConcurrentMutation:
		r.Title = "Trade Cancelled"
		r.Body = "Something in the trade changed before it could be completed. Nothing was exchanged."
	case ResultNotFound:
		r.Title = notFoundTitle(err)
	case ResultUserError:
		r.Title = "Invalid Command"
		switch {
		case errors.Is(err, ErrFavoriteProtected), errors.Is(err, ErrAllFavorites):
			r.Title = "Removal Blocked"
		case errors.Is(err, ErrDropPending):
			r.Title = "Drop In Progress"
			r.Body = "A waifu is already being dropped here. Try again in a moment."
		}
	default:
		r.Title = "Something Went Wrong"
		r.Body = "Something went wrong, please try again later."
	}
	return r
}

func notFoundTitle(err error) string {
	switch {
	case errors.Is(err, ErrSeriesNotFound):
		return "404 Series not Found"
	case errors.Is(err, ErrCharacterNotFound):
		return "404 Character not Found"
	}
	return "404 Waifu not Found"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}

func wrapIndex(err error, index int) error {
	return fmt.Errorf("%w: #%d", err, index)
}
