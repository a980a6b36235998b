package types

import "time"

// Verdict is the investment judgment for a news item.
type Verdict string

const (
	VerdictStrongBuy Verdict = "STRONG_BUY"
	VerdictBuy       Verdict = "BUY"
	VerdictWait      Verdict = "WAIT"
	VerdictSell      Verdict = "SELL"
)

// Timeframe is the recommended holding window for a verdict.
type Timeframe string

const (
	TimeframeDayTrade Timeframe = "DAY_TRADE"
	TimeframeMidLong  Timeframe = "MID_LONG"
)

// Category classifies which keyword list matched an item.
type Category string

const (
	CategoryPortfolio   Category = "portfolio"
	CategoryOpportunity Category = "opportunity"
	CategoryUnknown     Category = "unknown"
)

// NewsItem is a single feed entry that passed keyword filtering.
// The ID is the entry GUID when present, otherwise the link URL.
type NewsItem struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Summary         string    `json:"summary"`
	Link            string    `json:"link"`
	Source          string    `json:"source"`
	Published       time.Time `json:"published"`
	Body            string    `json:"body,omitempty"`
	MatchedKeywords []string  `json:"matched_keywords,omitempty"`
	Category        Category  `json:"category"`
}

// Judgment is the model's verdict for one news item. Consumed once by the
// notifier, then discarded.
type Judgment struct {
	Verdict   Verdict   `json:"verdict"`
	Timeframe Timeframe `json:"timeframe"`
	Reason    string    `json:"reason"`
	Item      NewsItem  `json:"item"`
}

// LoopStats are the process-wide monitor counters. Mutated once per loop
// iteration, read only for logging.
type LoopStats struct {
	Loops        int64     `json:"loops"`
	ItemsFetched int64     `json:"items_fetched"`
	ItemsJudged  int64     `json:"items_judged"`
	StrongBuys   int64     `json:"strong_buys"`
	Errors       int64     `json:"errors"`
	StartTime    time.Time `json:"start_time"`
}

// Uptime reports how long the monitor has been running.
func (s LoopStats) Uptime(now time.Time) time.Duration {
	return now.Sub(s.StartTime)
}
