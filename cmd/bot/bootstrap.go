package main

import (
	"context"
	"fmt"
	"os"

	"investment-monitor-bot/internal/digest"
	"investment-monitor-bot/internal/fetcher"
	"investment-monitor-bot/internal/interfaces"
	"investment-monitor-bot/internal/judge/claude"
	"investment-monitor-bot/internal/judge/judgeobs"
	"investment-monitor-bot/internal/judge/noop"
	"investment-monitor-bot/internal/judgelog"
	"investment-monitor-bot/internal/logger"
	"investment-monitor-bot/internal/monitor"
	"investment-monitor-bot/internal/notifier"
	"investment-monitor-bot/internal/notifier/notifyobs"
	"investment-monitor-bot/internal/seen"
	"investment-monitor-bot/internal/store"
	"investment-monitor-bot/internal/trace"
)

// initializeSystem initializes the logger and tracer
func initializeSystem() error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}
	return nil
}

// loadConfig loads and returns the configuration
func loadConfig(ctx context.Context) (*store.Config, error) {
	cfg, err := store.LoadConfig()
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err)
		return nil, err
	}
	return cfg, nil
}

// compressOldLogs compresses old judgment log files if retention is configured
func compressOldLogs(ctx context.Context) {
	if v := os.Getenv("MONITOR_LOG_RETENTION_DAYS"); v != "" {
		var n int
		fmt.Sscanf(v, "%d", &n)
		if err := judgelog.CompressOlder(n); err != nil {
			logger.Warn(ctx, "Failed to compress old logs", "error", err)
		}
	}
}

// initializeJudge returns the LLM judge with observability. DRY_RUN mode
// never consults an API.
func initializeJudge(ctx context.Context, cfg *store.Config) interfaces.Judge {
	var j interfaces.Judge
	if cfg.Mode == "DRY_RUN" {
		j = noop.New()
		logger.Warn(ctx, "Running in DRY_RUN mode - using noop judge (always WAIT)")
	} else {
		j = claude.New(cfg)
		logger.Info(ctx, "Claude judge initialized", "model", cfg.ClaudeModel)
	}
	return judgeobs.Wrap(j)
}

// initializeComponents wires seen set, fetcher, judge, notifier, monitor,
// and digest summarizer together.
func initializeComponents(ctx context.Context, cfg *store.Config) (*monitor.Monitor, *digest.Summarizer, *notifier.Discord, error) {
	seenSet, err := seen.Load(cfg.SeenFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load seen file: %w", err)
	}
	logger.Info(ctx, "Seen set loaded", "ids", seenSet.Len(), "file", cfg.SeenFile)

	discord := notifier.NewDiscord(cfg)
	if cfg.Mode == "DRY_RUN" {
		logger.Warn(ctx, "DRY_RUN mode - Discord posts will be logged, not sent")
	}

	f := fetcher.New(cfg, seenSet)
	j := initializeJudge(ctx, cfg)
	n := notifyobs.Wrap(discord)

	mon := monitor.New(cfg, f, j, n, seenSet)
	summarizer := digest.NewSummarizer(cfg, n)

	return mon, summarizer, discord, nil
}
