// Package monitor drives the fetch → judge → notify pipeline. One RunOnce
// per tick; no failure inside an iteration may reach the caller. The process
// stops only on an operator signal.
package monitor

import (
	"context"
	"fmt"
	"time"

	"investment-monitor-bot/internal/interfaces"
	"investment-monitor-bot/internal/judgelog"
	"investment-monitor-bot/internal/logger"
	"investment-monitor-bot/internal/seen"
	"investment-monitor-bot/internal/store"
	"investment-monitor-bot/internal/trace"
	"investment-monitor-bot/internal/types"
)

// Pause between consecutive notifications, rate-limit protection.
const notifyPace = 2 * time.Second

type Monitor struct {
	cfg      *store.Config
	fetcher  interfaces.Fetcher
	judge    interfaces.Judge
	notifier interfaces.Notifier
	seen     *seen.Set
	stats    types.LoopStats

	// Overridable in tests.
	pace func(time.Duration)
}

func New(cfg *store.Config, f interfaces.Fetcher, j interfaces.Judge, n interfaces.Notifier, seenSet *seen.Set) *Monitor {
	return &Monitor{
		cfg:      cfg,
		fetcher:  f,
		judge:    j,
		notifier: n,
		seen:     seenSet,
		stats:    types.LoopStats{StartTime: time.Now()},
		pace:     time.Sleep,
	}
}

// Stats returns a copy of the loop counters.
func (m *Monitor) Stats() types.LoopStats {
	return m.stats
}

// RunOnce executes one loop iteration. It never returns an error and never
// panics out: every stage failure is logged, counted, and absorbed so the
// caller's loop always proceeds to the next tick.
func (m *Monitor) RunOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			m.stats.Errors++
			logger.Error(ctx, "CRITICAL LOOP ERROR: iteration panicked", "panic", fmt.Sprint(r))
			if m.notifier != nil {
				_ = m.notifier.SendMessage(ctx, "⚠️ **Error**\n```\n"+fmt.Sprint(r)+"\n```")
			}
		}
	}()

	ctx, span := trace.StartSpan(ctx, "monitor.RunOnce")
	defer span.End()

	m.stats.Loops++
	logger.Info(ctx, "Loop iteration started", "loop", m.stats.Loops)

	items, err := m.fetcher.FetchNewItems(ctx)
	if err != nil {
		m.stats.Errors++
		logger.ErrorWithErr(ctx, "Fetch failed", err)
		return
	}
	if len(items) == 0 {
		logger.Info(ctx, "No new matching news")
		m.logStats(ctx)
		return
	}

	m.stats.ItemsFetched += int64(len(items))
	logger.Info(ctx, "Found new items", "count", len(items))

	for i, item := range items {
		m.processItem(ctx, item, i+1, len(items))
		if i < len(items)-1 {
			m.pace(notifyPace)
		}
	}

	m.logStats(ctx)
}

// processItem judges and notifies a single item, recording it as seen only
// after the notification was accepted (or deliberately suppressed). A failed
// notification leaves the item unmarked; the next iteration is the retry.
func (m *Monitor) processItem(ctx context.Context, item types.NewsItem, idx, total int) {
	logger.Info(ctx, "Processing item", "progress", fmt.Sprintf("%d/%d", idx, total), "title", item.Title)

	judgment, err := m.judge.Judge(ctx, item)
	if err != nil {
		m.stats.Errors++
		logger.ErrorWithErr(ctx, "Judgment failed", err, "item_id", item.ID)
		return
	}
	m.stats.ItemsJudged++
	if judgment.Verdict == types.VerdictStrongBuy {
		m.stats.StrongBuys++
	}

	if err := judgelog.Append(judgelog.Entry{
		ID:        item.ID,
		Title:     item.Title,
		Link:      item.Link,
		Source:    item.Source,
		Verdict:   string(judgment.Verdict),
		Timeframe: string(judgment.Timeframe),
		Reason:    judgment.Reason,
		Category:  string(item.Category),
		Keywords:  item.MatchedKeywords,
	}); err != nil {
		logger.Warn(ctx, "Failed to append judgment log", "error", err)
	}

	// WAIT verdicts are noise; suppress the post but still mark the item as
	// handled so it is not re-judged next loop.
	if judgment.Verdict == types.VerdictWait {
		logger.Info(ctx, "Verdict=WAIT - notification suppressed", "item_id", item.ID)
		m.markSeen(ctx, item.ID)
		return
	}

	if err := m.notifier.Notify(ctx, judgment); err != nil {
		m.stats.Errors++
		logger.ErrorWithErr(ctx, "Notification failed - item left unmarked", err, "item_id", item.ID)
		return
	}

	m.markSeen(ctx, item.ID)
}

func (m *Monitor) markSeen(ctx context.Context, id string) {
	if err := m.seen.Add(id); err != nil {
		logger.Warn(ctx, "Failed to persist seen ID", "id", id, "error", err)
	}
}

func (m *Monitor) logStats(ctx context.Context) {
	logger.Info(ctx, "Loop stats",
		"loops", m.stats.Loops,
		"items_fetched", m.stats.ItemsFetched,
		"items_judged", m.stats.ItemsJudged,
		"strong_buys", m.stats.StrongBuys,
		"errors", m.stats.Errors,
		"uptime", m.stats.Uptime(time.Now()).Round(time.Second).String(),
		"seen", m.seen.Len(),
	)
}
