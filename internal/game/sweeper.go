package game

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Sweeper periodically expires idle trades so their locks do not outlive the
// trade timeout when nobody touches the session again.
type Sweeper struct {
	sched  gocron.Scheduler
	trades *Trades
	log    *slog.Logger
}

func NewSweeper(trades *Trades, every time.Duration, logger *slog.Logger) (*Sweeper, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if every <= 0 {
		every = 10 * time.Second
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	sw := &Sweeper{sched: sched, trades: trades, log: logger}
	_, err = sched.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(sw.run),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, err
	}
	return sw, nil
}

func (s *Sweeper) run() {
	if n := s.trades.Sweep(context.Background()); n > 0 {
		s.log.Info("expired idle trades", "count", n)
	}
}

func (s *Sweeper) Start() {
	s.sched.Start()
}

func (s *Sweeper) Shutdown() error {
	return s.sched.Shutdown()
}
