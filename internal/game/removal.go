package game

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gachabot/internal/command"
	"gachabot/internal/inventory"
)

// Remove liquidates items for currency. The removing lock is taken before any
// prompt and released on every path. Items are deleted one at a time; the
// first failure stops the batch and is reported in the returned report, not
// as an error.
func (s *Service) Remove(ctx context.Context, userID, channelID string, req command.RemoveArgs, prompt Prompter) (RemovalReport, error) {
	if err := s.store.TryLock(ctx, userID, inventory.LockRemoving); err != nil {
		if errors.Is(err, inventory.ErrLocked) {
			return RemovalReport{}, ErrLockConflict
		}
		return RemovalReport{}, err
	}
	defer s.releaseLock(ctx, userID, inventory.LockRemoving)

	report, err := s.selectForRemoval(ctx, userID, req)
	if err != nil {
		return report, err
	}

	if !req.Yes {
		timeout := s.cfg.RemovalTimeout
		if err := confirm(ctx, prompt, userID, channelID, s.removalSummary(report, timeout.String()), timeout); err != nil {
			return report, err
		}
	}

	rules := s.cfg.Rules
	for _, it := range report.Requested {
		if err := s.store.DeleteItem(ctx, it.ID); err != nil {
			failed := it
			report.Failed = &failed
			report.FailErr = err
			s.log.Warn("removal stopped", "user_id", userID, "item_id", it.ID, "removed", len(report.Removed), "err", err)
			break
		}
		report.Removed = append(report.Removed, it)
		payout := rules.PayoutForRarity(it.Rarity)
		if err := s.store.Credit(ctx, userID, payout); err != nil {
			unpaid := it
			report.Unpaid = &unpaid
			report.FailErr = fmt.Errorf("credit removal payout: %w", err)
			s.log.Error("removal payout failed", "user_id", userID, "item_id", it.ID, "payout", payout, "err", err)
			break
		}
		report.Payout += payout
	}

	s.metrics.RecordRemoval(ctx, len(report.Removed))
	s.metrics.RecordCurrency(ctx, "removal", report.Payout)
	s.log.Info("removal", "user_id", userID, "removed", len(report.Removed), "payout", report.Payout)
	return report, nil
}

func (s *Service) selectForRemoval(ctx context.Context, userID string, req command.RemoveArgs) (RemovalReport, error) {
	var report RemovalReport

	if req.ByIndex() {
		for _, idx := range req.Indices {
			it, err := s.store.ItemAt(ctx, userID, idx)
			if errors.Is(err, inventory.ErrItemNotFound) {
				return RemovalReport{}, wrapIndex(ErrItemNotFound, idx)
			}
			if err != nil {
				return RemovalReport{}, err
			}
			if it.Favorite {
				return RemovalReport{}, fmt.Errorf("%w: unfavorite #%d before removing it", ErrFavoriteProtected, idx)
			}
			report.Requested = append(report.Requested, it)
		}
		return report, nil
	}

	f, err := s.CompileFilter(ctx, req.Filter)
	if err != nil {
		return RemovalReport{}, err
	}
	items, err := s.store.Items(ctx, userID)
	if err != nil {
		return RemovalReport{}, err
	}
	matches, err := s.applyFilter(ctx, f, items)
	if err != nil {
		return RemovalReport{}, err
	}
	for _, it := range matches {
		if it.Favorite && !req.Force {
			report.IgnoredFavorites = append(report.IgnoredFavorites, it)
			continue
		}
		report.Requested = append(report.Requested, it)
	}
	if len(report.Requested) == 0 {
		if len(matches) > 0 {
			return report, ErrAllFavorites
		}
		return report, ErrNoMatches
	}
	return report, nil
}

func (s *Service) removalSummary(r RemovalReport, timeout string) Result {
	var b strings.Builder
	var total int64
	b.WriteString("You are about to remove:\n")
	for _, it := range r.Requested {
		fmt.Fprintf(&b, "#%d %s %s\n", it.Index, it.Name, it.Rarity)
		total += s.cfg.Rules.PayoutForRarity(it.Rarity)
	}
	fmt.Fprintf(&b, "\nRemoving will award you **%d** %s.", total, s.cfg.CurrencyName)
	if len(r.IgnoredFavorites) > 0 {
		b.WriteString("\n\nIgnored favorites (won't be removed):\n")
		for _, it := range r.IgnoredFavorites {
			fmt.Fprintf(&b, "#%d %s %s\n", it.Index, it.Name, it.Rarity)
		}
	}
	fmt.Fprintf(&b, "\nRespond with `yes` to confirm. Anything else or waiting %s cancels.", timeout)

	res := Result{Kind: ResultOK, Title: "Waifu Removal Confirmation", Body: b.String()}
	if len(r.Requested) == 1 {
		res.Image = r.Requested[0].ImageURL
	}
	return res
}
