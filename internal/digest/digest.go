// Package digest aggregates a day's judgment log into a CSV summary and a
// Discord recap, posted once per day after the configured cut-off time.
package digest

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"investment-monitor-bot/internal/interfaces"
	"investment-monitor-bot/internal/judgelog"
	"investment-monitor-bot/internal/logger"
	"investment-monitor-bot/internal/store"
)

var jst = time.FixedZone("JST", 9*3600)

type aggRow struct {
	Verdict  string
	Count    int
	DayTrade int
	MidLong  int
}

// Summarizer writes the daily digest. ShouldRunNow gates it to once per day
// after the configured HH:MM (JST).
type Summarizer struct {
	notifier   interfaces.Notifier
	digestTime string
	now        func() time.Time
}

func NewSummarizer(cfg *store.Config, notifier interfaces.Notifier) *Summarizer {
	return &Summarizer{
		notifier:   notifier,
		digestTime: cfg.DigestTime,
		now:        func() time.Time { return time.Now().In(jst) },
	}
}

func logDir() string {
	if v := os.Getenv("MONITOR_LOG_DIR"); v != "" {
		return v
	}
	return "logs"
}

func csvPath(t time.Time) string {
	return filepath.Join(logDir(), "digest", t.Format("2006-01-02")+".csv")
}

// ShouldRunNow reports whether the cut-off time has passed and today's
// digest has not been written yet.
func (s *Summarizer) ShouldRunNow() bool {
	now := s.now()
	cutoff, err := time.Parse("15:04", s.digestTime)
	if err != nil {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), cutoff.Hour(), cutoff.Minute(), 0, 0, jst)
	if now.Before(today) {
		return false
	}
	_, err = os.Stat(csvPath(now))
	return os.IsNotExist(err)
}

// Run summarizes today's judgments to CSV and posts the recap. Returns the
// CSV path, or "" when there was nothing to summarize.
func (s *Summarizer) Run(ctx context.Context) (string, error) {
	now := s.now()
	entries, err := judgelog.ReadDay(now)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		// Still write an empty marker so ShouldRunNow stops firing today.
		return s.writeCSV(now, nil)
	}

	aggs := aggregate(entries)
	path, err := s.writeCSV(now, aggs)
	if err != nil {
		return "", err
	}

	if s.notifier != nil {
		if err := s.notifier.SendMessage(ctx, buildRecap(now, entries, aggs)); err != nil {
			logger.Warn(ctx, "Failed to post daily digest", "error", err)
		}
	}
	return path, nil
}

func aggregate(entries []judgelog.Entry) []aggRow {
	byVerdict := map[string]*aggRow{}
	for _, e := range entries {
		row := byVerdict[e.Verdict]
		if row == nil {
			row = &aggRow{Verdict: e.Verdict}
			byVerdict[e.Verdict] = row
		}
		row.Count++
		if e.Timeframe == "DAY_TRADE" {
			row.DayTrade++
		} else {
			row.MidLong++
		}
	}

	keys := make([]string, 0, len(byVerdict))
	for k := range byVerdict {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([]aggRow, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, *byVerdict[k])
	}
	return rows
}

func (s *Summarizer) writeCSV(t time.Time, rows []aggRow) (string, error) {
	outPath := csvPath(t)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer out.Close()

	w := csv.NewWriter(out)
	defer w.Flush()

	if err := w.Write([]string{"verdict", "count", "day_trade", "mid_long"}); err != nil {
		return "", err
	}
	for _, r := range rows {
		rec := []string{r.Verdict, strconv.Itoa(r.Count), strconv.Itoa(r.DayTrade), strconv.Itoa(r.MidLong)}
		if err := w.Write(rec); err != nil {
			return "", err
		}
	}
	return outPath, nil
}

func buildRecap(t time.Time, entries []judgelog.Entry, aggs []aggRow) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 **Daily Digest %s**\n", t.Format("2006-01-02"))
	fmt.Fprintf(&b, "Judgments today: %d\n", len(entries))
	for _, r := range aggs {
		fmt.Fprintf(&b, "- %s: %d (day trade %d / mid-long %d)\n", r.Verdict, r.Count, r.DayTrade, r.MidLong)
	}
	return b.String()
}
