package game

import (
	"context"
	"log/slog"
	mathrand "math/rand"
	"net/http"
	"sync"
	"time"

	"gachabot/internal/inventory"
	"gachabot/internal/metrics"
)

// Service is the root of the game. It owns the live trade and drop registries
// and talks to the inventory store for everything durable.
type Service struct {
	store   inventory.Store
	cfg     Config
	log     *slog.Logger
	metrics *metrics.Metrics
	urls    URLChecker
	now     func() time.Time

	mu   sync.Mutex
	rand *mathrand.Rand

	Trades *Trades
	Drops  *Drops
}

type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithURLChecker(c URLChecker) Option {
	return func(s *Service) { s.urls = c }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithSeed(seed int64) Option {
	return func(s *Service) { s.rand = mathrand.New(mathrand.NewSource(seed)) }
}

func WithDropAnnouncer(a DropAnnouncer) Option {
	return func(s *Service) { s.Drops.announcer = a }
}

func WithTradeAnnouncer(a TradeAnnouncer) Option {
	return func(s *Service) { s.Trades.announcer = a }
}

func NewService(store inventory.Store, cfg Config, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store: store,
		cfg:   cfg.withDefaults(),
		log:   logger,
		urls:  HTTPChecker{Client: &http.Client{Timeout: 5 * time.Second}},
		now:   time.Now,
		rand:  mathrand.New(mathrand.NewSource(time.Now().UnixNano())),
	}
	s.Trades = &Trades{svc: s, byUser: make(map[string]*tradeSession)}
	s.Drops = &Drops{svc: s, active: make(map[string]*dropSession)}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.Nop()
	}
	return s
}

func (s *Service) Config() Config {
	return s.cfg
}

func (s *Service) Store() inventory.Store {
	return s.store
}

// ResetLocks clears every flow lock. No trade or removal survives a restart,
// so any lock found at startup is stale.
func (s *Service) ResetLocks(ctx context.Context) error {
	if err := s.store.ResetLocks(ctx); err != nil {
		return err
	}
	s.log.Info("flow locks reset")
	return nil
}

func (s *Service) withRand(fn func(r *mathrand.Rand)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.rand)
}

func (s *Service) nextFloat() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rand.Float64()
}

func (s *Service) nextIntn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rand.Intn(n)
}

// releaseLock clears a flow lock even when ctx is already cancelled.
func (s *Service) releaseLock(ctx context.Context, userID string, kind inventory.LockKind) {
	if err := s.store.SetLock(context.WithoutCancel(ctx), userID, kind, false); err != nil {
		s.log.Error("release lock failed", "user_id", userID, "kind", string(kind), "err", err)
	}
}
