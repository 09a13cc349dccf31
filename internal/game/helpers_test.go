package game

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gachabot/internal/economy"
	"gachabot/internal/inventory"
)

const (
	testGuild   = "g1"
	testChannel = "c1"
	alice       = "100"
	bob         = "200"
	carol       = "300"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// stubChecker reports every URL reachable except those listed in down, or
// those containing downPart.
type stubChecker struct {
	down     map[string]bool
	downPart string
}

func (c stubChecker) Reachable(_ context.Context, url string) bool {
	if c.downPart != "" && strings.Contains(url, c.downPart) {
		return false
	}
	return !c.down[url]
}

// scriptedPrompter answers AwaitReply from a queue. An empty queue times out.
type scriptedPrompter struct {
	mu      sync.Mutex
	sent    []Result
	replies []Reply
	onAwait func()
}

func (p *scriptedPrompter) Send(_ context.Context, _ string, r Result) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, r)
	return nil
}

func (p *scriptedPrompter) AwaitReply(_ context.Context, match func(Reply) bool, _ time.Duration) (Reply, error) {
	if p.onAwait != nil {
		p.onAwait()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.replies) > 0 {
		r := p.replies[0]
		p.replies = p.replies[1:]
		if match(r) {
			return r, nil
		}
	}
	return Reply{}, ErrTimeout
}

func (p *scriptedPrompter) Sent() []Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Result(nil), p.sent...)
}

func answer(userID, content string) *scriptedPrompter {
	return &scriptedPrompter{replies: []Reply{{UserID: userID, ChannelID: testChannel, Content: content}}}
}

// faultyStore injects failures into selected store calls.
type faultyStore struct {
	inventory.Store

	mu           sync.Mutex
	deletes      int
	failDeleteAt int
	credits      int
	failCreditAt int
	settleErr    error
	addItemErr   error
}

var errStoreDown = errors.New("store unavailable")

func (f *faultyStore) DeleteItem(ctx context.Context, itemID int64) error {
	f.mu.Lock()
	f.deletes++
	n := f.deletes
	f.mu.Unlock()
	if f.failDeleteAt > 0 && n == f.failDeleteAt {
		return errStoreDown
	}
	return f.Store.DeleteItem(ctx, itemID)
}

func (f *faultyStore) Credit(ctx context.Context, userID string, amount int64) error {
	f.mu.Lock()
	f.credits++
	n := f.credits
	f.mu.Unlock()
	if f.failCreditAt > 0 && n == f.failCreditAt {
		return errStoreDown
	}
	return f.Store.Credit(ctx, userID, amount)
}

func (f *faultyStore) SettleTrade(ctx context.Context, s inventory.Settlement) error {
	if f.settleErr != nil {
		return f.settleErr
	}
	return f.Store.SettleTrade(ctx, s)
}

func (f *faultyStore) AddItem(ctx context.Context, in inventory.NewItem) (inventory.Item, error) {
	if f.addItemErr != nil {
		return inventory.Item{}, f.addItemErr
	}
	return f.Store.AddItem(ctx, in)
}

func seedCatalogue(m *inventory.MemoryStore) {
	m.AddShow(inventory.Show{ID: 1, EnTitle: "Attack on Titan", JaTitle: "Shingeki no Kyojin"})
	m.AddShow(inventory.Show{ID: 2, EnTitle: "Spy x Family"})

	add := func(id int64, en, ja, alt string, show int64, droppable bool) {
		m.AddCharacter(inventory.Character{
			ID: id, EnName: en, JaName: ja, AltName: alt, Droppable: droppable, ShowIDs: []int64{show},
		}, inventory.Image{
			ID:         id * 10,
			NormalURL:  "https://img.test/normal/" + en,
			MirrorURL:  "https://img.test/mirror/" + en,
			FlippedURL: "https://img.test/flipped/" + en,
			Droppable:  true,
		})
	}
	add(1, "Levi Ackerman", "リヴァイ", "Captain Levi", 1, true)
	add(2, "Eren Yeager", "エレン", "", 1, true)
	add(3, "Anya Forger", "アーニャ", "", 2, true)
	add(4, "Yor Forger", "ヨル", "Thorn Princess", 2, true)
	add(5, "Zeke Yeager", "", "", 1, false)
}

type fixture struct {
	svc   *Service
	mem   *inventory.MemoryStore
	clock *fakeClock
}

func newFixture(t *testing.T, cfg Config, wrap func(inventory.Store) inventory.Store, opts ...Option) fixture {
	t.Helper()
	mem := inventory.NewMemoryStore()
	seedCatalogue(mem)
	var store inventory.Store = mem
	if wrap != nil {
		store = wrap(mem)
	}
	clock := newFakeClock()
	base := []Option{WithClock(clock.Now), WithSeed(1), WithURLChecker(stubChecker{})}
	svc := NewService(store, cfg, nil, append(base, opts...)...)
	return fixture{svc: svc, mem: mem, clock: clock}
}

// give adds one item per rarity to userID, cycling through characters 1-4.
func (f fixture) give(t *testing.T, userID string, rarities ...economy.Rarity) []inventory.Item {
	t.Helper()
	out := make([]inventory.Item, 0, len(rarities))
	for i, r := range rarities {
		charID := int64(i%4 + 1)
		it, err := f.mem.AddItem(context.Background(), inventory.NewItem{
			UserID: userID, CharacterID: charID, ImageID: charID * 10, Rarity: r,
		})
		require.NoError(t, err)
		out = append(out, it)
	}
	return out
}

func (f fixture) fund(t *testing.T, userID string, amount int64) {
	t.Helper()
	require.NoError(t, f.mem.SetCurrency(context.Background(), userID, amount))
}

func (f fixture) balance(t *testing.T, userID string) inventory.Balance {
	t.Helper()
	b, err := f.mem.Balance(context.Background(), userID)
	require.NoError(t, err)
	return b
}

func (f fixture) items(t *testing.T, userID string) []inventory.Item {
	t.Helper()
	items, err := f.mem.Items(context.Background(), userID)
	require.NoError(t, err)
	return items
}
