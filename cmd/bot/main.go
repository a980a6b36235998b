package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"investment-monitor-bot/internal/logger"
	"investment-monitor-bot/internal/trace"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	if err := initializeSystem(); err != nil {
		fmt.Fprintf(os.Stderr, "initialization failed: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Configuration errors are the one fatal failure class: exit before any
	// network call is attempted.
	cfg, err := loadConfig(ctx)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err)
		os.Exit(1)
	}
	logger.Info(ctx, "Investment Monitor Bot initializing", "config", cfg.String())

	compressOldLogs(ctx)

	mon, summarizer, notifier, err := initializeComponents(ctx, cfg)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to initialize components", err)
		os.Exit(1)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	// Startup notification is best effort.
	if err := notifier.SendStartup(ctx, cfg); err != nil {
		logger.Warn(ctx, "Startup notification failed", "error", err)
	}

	tick := time.NewTicker(cfg.Interval())
	defer tick.Stop()
	digestTick := time.NewTicker(60 * time.Second)
	defer digestTick.Stop()

	logger.Info(ctx, "Bot started - entering immortal loop", "interval", cfg.Interval().String())
	mon.RunOnce(ctx)

	for {
		select {
		case <-tick.C:
			mon.RunOnce(ctx)
		case <-digestTick.C:
			if summarizer.ShouldRunNow() {
				if p, err := summarizer.Run(ctx); err != nil {
					logger.Warn(ctx, "Daily digest failed", "error", err)
				} else if p != "" {
					logger.Info(ctx, "Daily digest written", "path", p)
				}
			}
		case <-sigc:
			logger.Info(ctx, "Shutting down...")
			stats := mon.Stats()
			logger.Info(ctx, "Final stats",
				"loops", stats.Loops,
				"items_fetched", stats.ItemsFetched,
				"items_judged", stats.ItemsJudged,
				"strong_buys", stats.StrongBuys,
				"errors", stats.Errors,
				"uptime", stats.Uptime(time.Now()).Round(time.Second).String(),
			)
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = trace.Shutdown(shutdownCtx)
			shutdownCancel()
			return
		case <-ctx.Done():
			return
		}
	}
}
