package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bwmarrin/discordgo"

	"gachabot/internal/config"
	"gachabot/internal/db"
	"gachabot/internal/discord"
	"gachabot/internal/game"
	"gachabot/internal/inventory"
	"gachabot/internal/metrics"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadBotFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	shutdownMeter, err := metrics.InitMeter(ctx, cfg.Metrics)
	if err != nil {
		logger.Error("metrics init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(context.Background()) }()
	m, err := metrics.New()
	if err != nil {
		logger.Error("metrics instruments failed", "err", err)
		os.Exit(1)
	}

	var store inventory.Store
	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg.DatabaseURL, cfg.MaxConns)
		if err != nil {
			logger.Error("db connect failed", "err", err)
			os.Exit(1)
		}
		defer pool.Close()
		if err := db.Migrate(ctx, pool); err != nil {
			logger.Error("db migrate failed", "err", err)
			os.Exit(1)
		}
		store = inventory.NewPostgresStore(pool, logger)
	} else {
		logger.Warn("DATABASE_URL not set, using an empty in-memory store")
		store = inventory.NewMemoryStore()
	}

	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		logger.Error("discord session failed", "err", err)
		os.Exit(1)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent

	announcer := discord.NewAnnouncer(session, cfg.Game, logger)
	svc := game.NewService(store, cfg.Game, logger,
		game.WithMetrics(m),
		game.WithDropAnnouncer(announcer),
		game.WithTradeAnnouncer(announcer),
	)
	// a previous crash may have left flows half done
	if err := svc.ResetLocks(ctx); err != nil {
		logger.Error("reset locks failed", "err", err)
		os.Exit(1)
	}

	bot := discord.NewBot(svc, session, discord.NewWaiter(session), logger)
	bot.Attach(session)

	sweeper, err := game.NewSweeper(svc.Trades, cfg.SweepEvery, logger)
	if err != nil {
		logger.Error("sweeper init failed", "err", err)
		os.Exit(1)
	}
	sweeper.Start()
	defer func() {
		if err := sweeper.Shutdown(); err != nil {
			logger.Warn("sweeper shutdown", "err", err)
		}
	}()

	session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		logger.Info("gachabot connected", "user", r.User.Username, "guilds", len(r.Guilds))
	})
	if err := session.Open(); err != nil {
		logger.Error("discord open failed", "err", err)
		os.Exit(1)
	}
	defer session.Close()

	logger.Info("gachabot running", "prefix", svc.Config().Prefix)
	<-ctx.Done()
	logger.Info("gachabot shutdown")
}
