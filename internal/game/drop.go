package game

import (
	"context"
	"errors"
	"fmt"
	mathrand "math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"gachabot/internal/economy"
	"gachabot/internal/inventory"
)

// URLChecker verifies that an image URL can be shown.
type URLChecker interface {
	Reachable(ctx context.Context, url string) bool
}

// HTTPChecker treats a 200 answer to HEAD as reachable.
type HTTPChecker struct {
	Client *http.Client
}

func (c HTTPChecker) Reachable(ctx context.Context, url string) bool {
	if url == "" {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// DropAnnouncer is told when a drop expires unclaimed so the answer can be
// revealed.
type DropAnnouncer interface {
	AnnounceDropTimeout(ctx context.Context, d DropView)
}

type dropSession struct {
	view      DropView
	character inventory.Character
	imageID   int64
	timer     *time.Timer
}

// Drops is the per-guild registry of live drops. A nil entry marks a guild
// whose drop is still being created.
type Drops struct {
	svc       *Service
	announcer DropAnnouncer

	mu     sync.Mutex
	active map[string]*dropSession
}

// MaybeDrop rolls the per-message drop chance for a guild and starts a drop
// when it hits. It returns nil when no drop was started.
func (d *Drops) MaybeDrop(ctx context.Context, guildID string, memberCount int) (*DropView, error) {
	d.mu.Lock()
	_, busy := d.active[guildID]
	d.mu.Unlock()
	if busy {
		return nil, nil
	}
	if d.svc.nextFloat() >= economy.DropChance(memberCount) {
		return nil, nil
	}
	view, err := d.start(ctx, guildID, false)
	if errors.Is(err, ErrDropPending) || errors.Is(err, ErrNoAssignedChannel) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// Force starts a drop now. A pending drop is timed out and announced first.
func (d *Drops) Force(ctx context.Context, guildID string) (DropView, error) {
	return d.start(ctx, guildID, true)
}

// Active returns the live drop of a guild.
func (d *Drops) Active(guildID string) (DropView, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sess := d.active[guildID]
	if sess == nil {
		return DropView{}, false
	}
	return sess.view, true
}

func (d *Drops) start(ctx context.Context, guildID string, force bool) (DropView, error) {
	s := d.svc
	channelID, err := s.store.AssignedChannel(ctx, guildID)
	if err != nil {
		return DropView{}, err
	}
	if channelID == "" {
		return DropView{}, ErrNoAssignedChannel
	}

	d.mu.Lock()
	old, exists := d.active[guildID]
	if exists && (old == nil || !force) {
		d.mu.Unlock()
		return DropView{}, ErrDropPending
	}
	if old != nil {
		old.timer.Stop()
	}
	d.active[guildID] = nil
	d.mu.Unlock()

	if old != nil {
		s.log.Info("drop superseded", "guild_id", guildID, "drop_id", old.view.ID)
		d.announceTimeout(ctx, old.view)
	}

	sess, err := d.create(ctx, guildID, channelID)
	if err != nil {
		d.mu.Lock()
		if cur, ok := d.active[guildID]; ok && cur == nil {
			delete(d.active, guildID)
		}
		d.mu.Unlock()
		return DropView{}, err
	}

	d.mu.Lock()
	d.active[guildID] = sess
	id := sess.view.ID
	sess.timer = time.AfterFunc(s.cfg.DropTimeout, func() {
		d.expire(guildID, id)
	})
	d.mu.Unlock()

	s.metrics.RecordDrop(ctx, "started")
	s.log.Info("drop started", "guild_id", guildID, "drop_id", id, "character_id", sess.view.CharacterID, "rarity", int(sess.view.Rarity))
	return sess.view, nil
}

func (d *Drops) expire(guildID, dropID string) {
	d.mu.Lock()
	cur := d.active[guildID]
	if cur == nil || cur.view.ID != dropID {
		d.mu.Unlock()
		return
	}
	delete(d.active, guildID)
	d.mu.Unlock()

	d.svc.log.Info("drop timed out", "guild_id", guildID, "drop_id", dropID)
	d.announceTimeout(context.Background(), cur.view)
}

func (d *Drops) announceTimeout(ctx context.Context, view DropView) {
	d.svc.metrics.RecordDrop(ctx, "timeout")
	if d.announcer != nil {
		d.announcer.AnnounceDropTimeout(ctx, view)
	}
}

func (d *Drops) create(ctx context.Context, guildID, channelID string) (*dropSession, error) {
	s := d.svc
	stored, err := s.store.History(ctx, guildID)
	if err != nil {
		return nil, err
	}
	history := NewHistory(stored, s.cfg.HistorySize)

	out, err := s.selectOutcome(ctx, history.IDs())
	if err != nil {
		return nil, err
	}

	var rarity economy.Rarity
	s.withRand(func(r *mathrand.Rand) {
		rarity, _ = economy.RarityForPrice(r, 0)
	})

	history.Push(out.character.ID)
	if err := s.store.SaveHistory(ctx, guildID, history.IDs()); err != nil {
		return nil, err
	}

	now := s.now()
	return &dropSession{
		view: DropView{
			ID:          uuid.NewString(),
			GuildID:     guildID,
			ChannelID:   channelID,
			CharacterID: out.character.ID,
			Name:        out.character.EnName,
			Hint:        Initials(out.character.EnName),
			ImageURL:    out.url,
			Rarity:      rarity,
			CreatedAt:   now,
			ExpiresAt:   now.Add(s.cfg.DropTimeout),
		},
		character: out.character,
		imageID:   out.image.ID,
	}, nil
}

// Guess checks text against the live drop of the guild. The session leaves
// the registry before anything is granted, so only one guess can win. A nil
// claim means the guess did not win anything.
func (d *Drops) Guess(ctx context.Context, guildID, channelID, userID, text string) (*Claim, error) {
	d.mu.Lock()
	sess := d.active[guildID]
	if sess == nil || sess.view.ChannelID != channelID {
		d.mu.Unlock()
		return nil, nil
	}
	ch := sess.character
	if !NamesMatch(text, ch.EnName, ch.AltName, ch.JaName) {
		d.mu.Unlock()
		return nil, nil
	}
	delete(d.active, guildID)
	sess.timer.Stop()
	d.mu.Unlock()

	return d.grant(ctx, sess, userID)
}

func (d *Drops) grant(ctx context.Context, sess *dropSession, userID string) (*Claim, error) {
	s := d.svc
	item, err := s.store.AddItem(ctx, inventory.NewItem{
		UserID:      userID,
		CharacterID: sess.view.CharacterID,
		ImageID:     sess.imageID,
		Rarity:      sess.view.Rarity,
	})
	if err != nil {
		return nil, fmt.Errorf("grant drop item: %w", err)
	}

	claim := &Claim{Drop: sess.view, UserID: userID, Item: item}
	s.withRand(func(r *mathrand.Rand) {
		claim.Bonus = economy.DropBonus(r)
		if r.Intn(economy.UpgradePartOdds) == 0 {
			claim.UpgradeParts = 1
		}
	})
	if err := s.store.Credit(ctx, userID, claim.Bonus); err != nil {
		return nil, fmt.Errorf("grant drop bonus: %w", err)
	}
	if claim.UpgradeParts > 0 {
		if err := s.store.AddUpgrades(ctx, userID, claim.UpgradeParts); err != nil {
			return nil, fmt.Errorf("grant upgrade part: %w", err)
		}
	}

	s.metrics.RecordDrop(ctx, "claimed")
	s.metrics.RecordCurrency(ctx, "drop", claim.Bonus)
	s.log.Info("drop claimed", "guild_id", sess.view.GuildID, "drop_id", sess.view.ID, "user_id", userID, "item_id", item.ID)
	return claim, nil
}

type outcome struct {
	character inventory.Character
	image     inventory.Image
	url       string
}

// pickVariant splits 47% normal, 47% mirror, 6% flipped.
func pickVariant(x float64) inventory.ImageVariant {
	switch {
	case x < 0.47:
		return inventory.VariantNormal
	case x < 0.94:
		return inventory.VariantMirror
	}
	return inventory.VariantFlipped
}

// selectOutcome draws a droppable character outside exclude and one of its
// images, retrying when no shown URL is reachable.
func (s *Service) selectOutcome(ctx context.Context, exclude []int64) (outcome, error) {
	for attempt := 0; attempt < maxDropAttempts; attempt++ {
		charID, err := s.store.RandomDroppable(ctx, exclude)
		if err != nil {
			return outcome{}, err
		}
		images, err := s.store.DroppableImages(ctx, charID)
		if err != nil {
			return outcome{}, err
		}
		if len(images) == 0 {
			continue
		}
		img := images[s.nextIntn(len(images))]
		variant := pickVariant(s.nextFloat())

		url := img.URL(variant)
		if !s.urls.Reachable(ctx, url) {
			if url == img.NormalURL || !s.urls.Reachable(ctx, img.NormalURL) {
				s.log.Warn("image unreachable, retrying", "character_id", charID, "image_id", img.ID)
				continue
			}
			url = img.NormalURL
		}

		ch, err := s.store.Character(ctx, charID)
		if err != nil {
			return outcome{}, err
		}
		return outcome{character: ch, image: img, url: url}, nil
	}
	return outcome{}, ErrDropUnavailable
}
