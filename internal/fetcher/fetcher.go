package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"investment-monitor-bot/internal/logger"
	"investment-monitor-bot/internal/seen"
	"investment-monitor-bot/internal/store"
	"investment-monitor-bot/internal/trace"
	"investment-monitor-bot/internal/types"
)

const (
	userAgent         = "InvestmentMonitorBot/2.0"
	maxEntriesPerFeed = 30
	maxSummaryRunes   = 500
	// Entries older than this are stale wire noise, not news.
	maxEntryAge = 24 * time.Hour
)

// Fetcher pulls entries from the configured RSS/Atom feeds, filters them by
// keyword and recency, and drops anything already seen. It records nothing
// in the SeenSet itself; membership is the monitor's job after a successful
// notification.
type Fetcher struct {
	cfg     *store.Config
	seen    *seen.Set
	parser  *gofeed.Parser
	client  *http.Client
	scraper *Scraper

	// Normalized titles handled this process lifetime, for near-duplicate
	// suppression across feeds. Not persisted.
	seenTitles map[string]struct{}

	// Overridable in tests.
	now func() time.Time
}

// New creates a fetcher bounded by the configured HTTP timeout.
func New(cfg *store.Config, seenSet *seen.Set) *Fetcher {
	return &Fetcher{
		cfg:        cfg,
		seen:       seenSet,
		parser:     gofeed.NewParser(),
		client:     &http.Client{Timeout: cfg.HTTPTimeout()},
		scraper:    NewScraper(cfg.HTTPTimeout()),
		seenTitles: make(map[string]struct{}),
		now:        time.Now,
	}
}

// FetchNewItems fetches every configured feed and returns the new,
// keyword-matching items in feed order. A failure on one feed is logged and
// skipped; it never aborts the remaining feeds.
func (f *Fetcher) FetchNewItems(ctx context.Context) ([]types.NewsItem, error) {
	ctx, span := trace.StartSpan(ctx, "fetcher.FetchNewItems")
	defer span.End()

	var all []types.NewsItem
	for _, feedURL := range f.cfg.Feeds {
		items, err := f.fetchFeed(ctx, feedURL)
		if err != nil {
			logger.ErrorWithErr(ctx, "Failed to fetch feed", err, "feed", feedURL)
			continue
		}
		logger.Debug(ctx, "Feed fetched", "feed", feedURL, "items", len(items))
		all = append(all, items...)
	}

	// Periodic cleanup so the seen file does not grow without bound.
	if err := f.seen.Trim(); err != nil {
		logger.Warn(ctx, "Failed to trim seen file", "error", err)
	}

	return all, nil
}

// fetchFeed fetches and filters a single feed.
func (f *Fetcher) fetchFeed(ctx context.Context, feedURL string) ([]types.NewsItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("feed http %d: %s", resp.StatusCode, feedURL)
	}

	feed, err := f.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	source := strings.TrimSpace(feed.Title)
	if source == "" {
		source = feedURL
	}

	entries := feed.Items
	if len(entries) > maxEntriesPerFeed {
		entries = entries[:maxEntriesPerFeed]
	}

	var items []types.NewsItem
	for _, entry := range entries {
		item, ok := f.buildItem(ctx, entry, source)
		if !ok {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// buildItem converts one feed entry into a NewsItem, applying the seen,
// recency, duplicate-title, and keyword gates in that order.
func (f *Fetcher) buildItem(ctx context.Context, entry *gofeed.Item, source string) (types.NewsItem, bool) {
	id := entry.GUID
	if id == "" {
		id = entry.Link
	}
	if id == "" || f.seen.Contains(id) {
		return types.NewsItem{}, false
	}

	if !f.isRecent(entry) {
		return types.NewsItem{}, false
	}

	title := strings.TrimSpace(entry.Title)
	if title == "" {
		title = "No title"
	}
	if f.isDuplicateTitle(title) {
		logger.Debug(ctx, "Duplicate title skipped", "title", title)
		return types.NewsItem{}, false
	}

	summary := entry.Description
	if summary == "" {
		summary = entry.Content
	}
	summary = truncateRunes(stripHTML(summary), maxSummaryRunes)

	matched := f.matchKeywords(title, summary)
	if len(f.cfg.Keywords()) > 0 && len(matched) == 0 {
		return types.NewsItem{}, false
	}

	var published time.Time
	if entry.PublishedParsed != nil {
		published = *entry.PublishedParsed
	} else if entry.UpdatedParsed != nil {
		published = *entry.UpdatedParsed
	}

	item := types.NewsItem{
		ID:              id,
		Title:           title,
		Summary:         summary,
		Link:            entry.Link,
		Source:          source,
		Published:       published,
		MatchedKeywords: matched,
		Category:        f.cfg.Classify(matched),
	}

	// Best effort: an empty body just means the prompt sees the summary only.
	if f.scraper != nil && entry.Link != "" {
		item.Body = f.scraper.FetchArticleBody(ctx, entry.Link)
	}

	return item, true
}

// isRecent passes entries published within maxEntryAge. Entries with no
// parseable timestamp pass, treated as new.
func (f *Fetcher) isRecent(entry *gofeed.Item) bool {
	ts := entry.PublishedParsed
	if ts == nil {
		ts = entry.UpdatedParsed
	}
	if ts == nil {
		return true
	}
	return f.now().Sub(*ts) <= maxEntryAge
}

// matchKeywords returns every configured keyword found in title+summary,
// case-insensitively. An empty keyword config matches everything.
func (f *Fetcher) matchKeywords(title, summary string) []string {
	keywords := f.cfg.Keywords()
	if len(keywords) == 0 {
		return nil
	}

	text := strings.ToLower(title + " " + summary)
	var matched []string
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(kw)) {
			matched = append(matched, kw)
		}
	}
	return matched
}

var (
	trailingSourceRe = regexp.MustCompile(`\s*[-|｜]\s*[^-|｜]+$`)
	trailingParenRe  = regexp.MustCompile(`\s*[（(][^）)]+[）)]\s*$`)
	titleNoiseRe     = regexp.MustCompile(`[\s　、。・！？!?,.\-:：【】「」『』]+`)
)

// normalizeTitle builds a comparison key: trailing source names and
// punctuation stripped, lowercased, first 40 runes.
func normalizeTitle(title string) string {
	t := trailingSourceRe.ReplaceAllString(title, "")
	t = trailingParenRe.ReplaceAllString(t, "")
	t = titleNoiseRe.ReplaceAllString(t, "")
	return truncateRunes(strings.ToLower(t), 40)
}

// isDuplicateTitle reports whether a near-identical title was already handled
// this process lifetime, and records it if not.
func (f *Fetcher) isDuplicateTitle(title string) bool {
	key := normalizeTitle(title)
	if key == "" {
		return false
	}
	if _, ok := f.seenTitles[key]; ok {
		return true
	}
	f.seenTitles[key] = struct{}{}
	return false
}

// stripHTML reduces a feed summary to plain text. On parse failure the raw
// string is returned; the filter still works on it.
func stripHTML(s string) string {
	if !strings.Contains(s, "<") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(doc.Text())
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
