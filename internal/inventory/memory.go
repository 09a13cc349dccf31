package inventory

import (
	"context"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"gachabot/internal/economy"
)

type memUser struct {
	balance   Balance
	lastDaily time.Time
}

type memItem struct {
	id          int64
	userID      string
	characterID int64
	imageID     int64
	rarity      economy.Rarity
	favorite    bool
	acquiredAt  time.Time
}

type memGuild struct {
	channelID string
	history   []int64
}

// MemoryStore is a Store kept entirely in process memory. It backs local
// runs without DATABASE_URL and the engine tests.
type MemoryStore struct {
	mu         sync.Mutex
	rand       *rand.Rand
	users      map[string]*memUser
	items      []*memItem
	nextItemID int64
	characters map[int64]Character
	images     map[int64]Image
	shows      map[int64]Show
	guilds     map[string]*memGuild
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rand:       rand.New(rand.NewSource(time.Now().UnixNano())),
		users:      make(map[string]*memUser),
		characters: make(map[int64]Character),
		images:     make(map[int64]Image),
		shows:      make(map[int64]Show),
		guilds:     make(map[string]*memGuild),
	}
}

// AddShow registers a catalogue show.
func (m *MemoryStore) AddShow(s Show) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shows[s.ID] = s
}

// AddCharacter registers a catalogue character with its images.
func (m *MemoryStore) AddCharacter(c Character, images ...Image) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.Images = nil
	c.Shows = nil
	m.characters[c.ID] = c
	for _, img := range images {
		img.CharacterID = c.ID
		m.images[img.ID] = img
	}
}

func (m *MemoryStore) user(userID string) *memUser {
	u, ok := m.users[userID]
	if !ok {
		u = &memUser{balance: Balance{UserID: userID}}
		m.users[userID] = u
	}
	return u
}

func (m *MemoryStore) guild(guildID string) *memGuild {
	g, ok := m.guilds[guildID]
	if !ok {
		g = &memGuild{}
		m.guilds[guildID] = g
	}
	return g
}

func (m *MemoryStore) Balance(_ context.Context, userID string) (Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user(userID).balance, nil
}

func (m *MemoryStore) Debit(_ context.Context, userID string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.user(userID)
	if u.balance.Currency < amount {
		return ErrInsufficientFunds
	}
	u.balance.Currency -= amount
	return nil
}

func (m *MemoryStore) Credit(_ context.Context, userID string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user(userID).balance.Currency += amount
	return nil
}

func (m *MemoryStore) SetCurrency(_ context.Context, userID string, amount int64) error {
	if amount < 0 {
		return ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user(userID).balance.Currency = amount
	return nil
}

func (m *MemoryStore) Transfer(_ context.Context, fromUserID, toUserID string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	from := m.user(fromUserID)
	if from.balance.Currency < amount {
		return ErrInsufficientFunds
	}
	from.balance.Currency -= amount
	m.user(toUserID).balance.Currency += amount
	return nil
}

func (m *MemoryStore) AddUpgrades(_ context.Context, userID string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user(userID).balance.Upgrades += amount
	return nil
}

func (m *MemoryStore) ClaimDaily(_ context.Context, userID string, amount int64, now time.Time) (Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.user(userID)
	if !u.lastDaily.IsZero() && sameDay(u.lastDaily, now) {
		return u.balance, ErrAlreadyClaimed
	}
	u.lastDaily = now
	u.balance.Currency += amount
	return u.balance, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	return ay == by && am == bm && ad == bd
}

func (m *MemoryStore) itemView(it *memItem, index int) Item {
	out := Item{
		ID:          it.id,
		UserID:      it.userID,
		Index:       index,
		CharacterID: it.characterID,
		ImageID:     it.imageID,
		Rarity:      it.rarity,
		Favorite:    it.favorite,
		AcquiredAt:  it.acquiredAt,
	}
	if c, ok := m.characters[it.characterID]; ok {
		out.Name = c.EnName
	}
	if img, ok := m.images[it.imageID]; ok {
		out.ImageURL = img.NormalURL
	}
	return out
}

func (m *MemoryStore) ownedLocked(userID string) []Item {
	var out []Item
	for _, it := range m.items {
		if it.userID == userID {
			out = append(out, m.itemView(it, len(out)+1))
		}
	}
	return out
}

func (m *MemoryStore) Items(_ context.Context, userID string) ([]Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ownedLocked(userID), nil
}

func (m *MemoryStore) ItemAt(_ context.Context, userID string, index int) (Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	owned := m.ownedLocked(userID)
	if index < 1 || index > len(owned) {
		return Item{}, ErrItemNotFound
	}
	return owned[index-1], nil
}

func (m *MemoryStore) findLocked(itemID int64) (int, *memItem) {
	for i, it := range m.items {
		if it.id == itemID {
			return i, it
		}
	}
	return -1, nil
}

func (m *MemoryStore) ItemOwnedBy(_ context.Context, itemID int64, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, it := m.findLocked(itemID)
	return it != nil && it.userID == userID, nil
}

func (m *MemoryStore) addLocked(in NewItem) *memItem {
	m.nextItemID++
	it := &memItem{
		id:          m.nextItemID,
		userID:      in.UserID,
		characterID: in.CharacterID,
		imageID:     in.ImageID,
		rarity:      in.Rarity,
		acquiredAt:  time.Now(),
	}
	m.items = append(m.items, it)
	m.user(in.UserID)
	return it
}

func (m *MemoryStore) AddItem(_ context.Context, in NewItem) (Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.characters[in.CharacterID]; !ok {
		return Item{}, ErrCharacterNotFound
	}
	m.addLocked(in)
	owned := m.ownedLocked(in.UserID)
	return owned[len(owned)-1], nil
}

func (m *MemoryStore) DeleteItem(_ context.Context, itemID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, it := m.findLocked(itemID)
	if it == nil {
		return ErrItemNotFound
	}
	m.items = append(m.items[:i], m.items[i+1:]...)
	return nil
}

func (m *MemoryStore) SetFavorite(_ context.Context, itemID int64, favorite bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, it := m.findLocked(itemID)
	if it == nil {
		return ErrItemNotFound
	}
	it.favorite = favorite
	return nil
}

func (m *MemoryStore) UpgradeItem(_ context.Context, userID string, itemID int64, cost int64) (Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, it := m.findLocked(itemID)
	if it == nil || it.userID != userID {
		return Item{}, ErrItemNotFound
	}
	if it.rarity >= economy.RarityLegendary {
		return Item{}, ErrNotUpgradable
	}
	u := m.user(userID)
	if u.balance.Upgrades < cost {
		return Item{}, ErrInsufficientParts
	}
	u.balance.Upgrades -= cost
	it.rarity++
	for _, owned := range m.ownedLocked(userID) {
		if owned.ID == itemID {
			return owned, nil
		}
	}
	return Item{}, ErrItemNotFound
}

func (m *MemoryStore) SettleTrade(_ context.Context, s Settlement) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, side := range []TradeSide{s.A, s.B} {
		for _, id := range side.ItemIDs {
			_, it := m.findLocked(id)
			if it == nil || it.userID != side.UserID {
				return ErrConcurrentMutation
			}
		}
		if side.Currency < 0 {
			return ErrInvalidAmount
		}
		if m.user(side.UserID).balance.Currency < side.Currency {
			return ErrInsufficientFunds
		}
	}

	a, b := m.user(s.A.UserID), m.user(s.B.UserID)
	a.balance.Currency += s.B.Currency - s.A.Currency
	b.balance.Currency += s.A.Currency - s.B.Currency
	m.moveLocked(s.A.ItemIDs, s.B.UserID)
	m.moveLocked(s.B.ItemIDs, s.A.UserID)
	return nil
}

// moveLocked re-creates each item under the recipient so it lands at the end
// of their inventory.
func (m *MemoryStore) moveLocked(ids []int64, to string) {
	for _, id := range ids {
		i, it := m.findLocked(id)
		if it == nil {
			continue
		}
		m.items = append(m.items[:i], m.items[i+1:]...)
		m.addLocked(NewItem{UserID: to, CharacterID: it.characterID, ImageID: it.imageID, Rarity: it.rarity})
	}
}

func (m *MemoryStore) TryLock(_ context.Context, userID string, kind LockKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.user(userID)
	if u.balance.TradingLocked || u.balance.RemovingLocked {
		return ErrLocked
	}
	setLock(&u.balance, kind, true)
	return nil
}

func (m *MemoryStore) LockPair(_ context.Context, a, b string, kind LockKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ua, ub := m.user(a), m.user(b)
	if ua.balance.TradingLocked || ua.balance.RemovingLocked || ub.balance.TradingLocked || ub.balance.RemovingLocked {
		return ErrLocked
	}
	setLock(&ua.balance, kind, true)
	setLock(&ub.balance, kind, true)
	return nil
}

func (m *MemoryStore) SetLock(_ context.Context, userID string, kind LockKind, locked bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	setLock(&m.user(userID).balance, kind, locked)
	return nil
}

func (m *MemoryStore) Lock(_ context.Context, userID string, kind LockKind) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.user(userID).balance
	if kind == LockTrading {
		return b.TradingLocked, nil
	}
	return b.RemovingLocked, nil
}

func (m *MemoryStore) ResetLocks(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		u.balance.TradingLocked = false
		u.balance.RemovingLocked = false
	}
	return nil
}

func setLock(b *Balance, kind LockKind, locked bool) {
	switch kind {
	case LockTrading:
		b.TradingLocked = locked
	case LockRemoving:
		b.RemovingLocked = locked
	}
}

func (m *MemoryStore) characterLocked(c Character) Character {
	for _, id := range c.ShowIDs {
		if s, ok := m.shows[id]; ok {
			c.Shows = append(c.Shows, s)
		}
	}
	for _, img := range m.images {
		if img.CharacterID == c.ID {
			c.Images = append(c.Images, img)
		}
	}
	sort.Slice(c.Images, func(i, j int) bool { return c.Images[i].ID < c.Images[j].ID })
	return c
}

func (m *MemoryStore) Character(_ context.Context, id int64) (Character, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.characters[id]
	if !ok {
		return Character{}, ErrCharacterNotFound
	}
	return m.characterLocked(c), nil
}

func (m *MemoryStore) RandomDroppable(_ context.Context, exclude []int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	skip := make(map[int64]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}
	var pool []int64
	for id, c := range m.characters {
		if !c.Droppable {
			continue
		}
		if _, ok := skip[id]; ok {
			continue
		}
		if !m.hasDroppableImageLocked(id) {
			continue
		}
		pool = append(pool, id)
	}
	if len(pool) == 0 {
		return 0, ErrNoDroppable
	}
	sort.Slice(pool, func(i, j int) bool { return pool[i] < pool[j] })
	return pool[m.rand.Intn(len(pool))], nil
}

func (m *MemoryStore) hasDroppableImageLocked(characterID int64) bool {
	for _, img := range m.images {
		if img.CharacterID == characterID && img.Droppable {
			return true
		}
	}
	return false
}

func (m *MemoryStore) DroppableImages(_ context.Context, characterID int64) ([]Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Image
	for _, img := range m.images {
		if img.CharacterID == characterID && img.Droppable {
			out = append(out, img)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) SearchCharacters(_ context.Context, query string, limit int) ([]Character, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := strings.ToLower(strings.TrimSpace(query))
	var out []Character
	for _, c := range m.characters {
		if strings.Contains(strings.ToLower(c.EnName), q) ||
			strings.Contains(strings.ToLower(c.AltName), q) ||
			(c.JaName != "" && strings.Contains(c.JaName, query)) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) Show(_ context.Context, id int64) (Show, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shows[id]
	if !ok {
		return Show{}, ErrShowNotFound
	}
	return s, nil
}

func (m *MemoryStore) ShowsLike(_ context.Context, query string) ([]Show, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := strings.ToLower(strings.TrimSpace(query))
	var out []Show
	for _, s := range m.shows {
		if strings.Contains(strings.ToLower(s.EnTitle), q) || strings.Contains(strings.ToLower(s.JaTitle), q) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) AssignChannel(_ context.Context, guildID, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.guild(guildID).channelID = channelID
	return nil
}

func (m *MemoryStore) AssignedChannel(_ context.Context, guildID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.guild(guildID).channelID, nil
}

func (m *MemoryStore) History(_ context.Context, guildID string) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.guild(guildID).history...), nil
}

func (m *MemoryStore) SaveHistory(_ context.Context, guildID string, history []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.guild(guildID).history = append([]int64(nil), history...)
	return nil
}
