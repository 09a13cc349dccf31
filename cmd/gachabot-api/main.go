package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gachabot/internal/api"
	"gachabot/internal/auth"
	"gachabot/internal/config"
	"gachabot/internal/db"
	"gachabot/internal/game"
	"gachabot/internal/inventory"
	"gachabot/internal/metrics"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadAPIFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
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

	gameSvc := game.NewService(inventory.NewPostgresStore(pool, logger), cfg.Game, logger, game.WithMetrics(m))
	server := api.New(cfg, logger, auth.NewAdminVerifier(cfg.AdminToken), gameSvc)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("gachabot api listening", "addr", cfg.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}
