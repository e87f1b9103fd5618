package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/terra-clan/riddle-engine/internal/api"
	"github.com/terra-clan/riddle-engine/internal/bot"
	"github.com/terra-clan/riddle-engine/internal/command"
	"github.com/terra-clan/riddle-engine/internal/config"
	"github.com/terra-clan/riddle-engine/internal/conversation"
	"github.com/terra-clan/riddle-engine/internal/directory"
	"github.com/terra-clan/riddle-engine/internal/gateway"
	"github.com/terra-clan/riddle-engine/internal/leaderboard"
	"github.com/terra-clan/riddle-engine/internal/progression"
	"github.com/terra-clan/riddle-engine/internal/repair"
	"github.com/terra-clan/riddle-engine/internal/solve"
	"github.com/terra-clan/riddle-engine/internal/texts"
	"github.com/terra-clan/riddle-engine/pkg/client"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.Info("starting riddle-engine",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"guild", cfg.Platform.GuildID,
	)

	// Load message templates
	tx := texts.Default()
	if cfg.Bot.TextsPath != "" {
		tx, err = texts.Load(cfg.Bot.TextsPath)
		if err != nil {
			slog.Error("failed to load texts", "error", err)
			os.Exit(1)
		}
	}

	// Platform directory, wrapped in the snapshot cache
	platform := client.NewClient(cfg.Platform.APIBaseURL, cfg.Platform.Token, cfg.Platform.GuildID)
	dir := directory.NewCached(platform, cfg.Cache.TTL)

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	self, err := dir.Self(initCtx)
	if err != nil {
		slog.Error("failed to reach platform", "error", err)
		os.Exit(1)
	}
	slog.Info("platform connected", "bot", self.Name, "id", self.ID)

	// Core engine wiring
	mgr := progression.NewManager(dir, tx, cfg.Bot.NotifyRoleID)
	board := leaderboard.NewRenderer(dir, mgr)
	waiter := conversation.NewWaiter(cfg.Bot.WaitTimeout)
	solver := solve.New(dir, mgr, waiter, board, tx, cfg.Bot.SolveDelay)
	fixer := repair.NewFixer(dir, mgr, cfg.Repair.Interval)

	engine := bot.New(dir, waiter, fixer, tx, cfg.Bot.Prefix, cfg.Bot.SettingsChannelID, cfg.Bot.NotifyRoleID)
	engine.SetDispatcher(command.NewDispatcher(
		cfg.Bot.Prefix, dir, mgr, board, solver, fixer, waiter, engine, tx,
	))

	if cfg.Bot.SettingsChannelID != "" {
		if err := engine.Restore(initCtx); err != nil {
			slog.Warn("failed to restore settings message", "error", err)
		}
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the repair sweep
	fixer.Start(ctx)

	// Start the gateway connection
	gw := gateway.New(cfg.Platform.GatewayURL, cfg.Platform.Token, engine)
	go func() {
		if err := gw.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("gateway terminated", "error", err)
			os.Exit(1)
		}
	}()

	// Setup HTTP server
	server := api.NewServer(cfg.Server, dir, mgr)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down gracefully...")

	// Cancel context to stop the gateway and background workers
	cancel()

	// Cancel pending conversations so waiting members get a clean stop
	waiter.Close()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("riddle-engine stopped")
}
