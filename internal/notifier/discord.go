// Package notifier posts judgments to a Discord webhook as rich embeds.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"investment-monitor-bot/internal/logger"
	"investment-monitor-bot/internal/store"
	"investment-monitor-bot/internal/trace"
	"investment-monitor-bot/internal/types"
)

var (
	// ErrWebhookGone means Discord returned 404: the webhook was deleted or
	// the URL is wrong. A configuration problem, not a transient failure.
	ErrWebhookGone = errors.New("discord webhook not found (404)")
	// ErrRateLimited means Discord returned 429. The item is skipped, not
	// retried within the same loop iteration.
	ErrRateLimited = errors.New("discord rate limited (429)")
)

var jst = time.FixedZone("JST", 9*3600)

var verdictIcons = map[types.Verdict]string{
	types.VerdictStrongBuy: "🚀 STRONG BUY",
	types.VerdictBuy:       "🟢 BUY",
	types.VerdictWait:      "⏳ WAIT",
	types.VerdictSell:      "🔴 SELL",
}

var timeframeIcons = map[types.Timeframe]string{
	types.TimeframeDayTrade: "⚡️ [DAY TRADE]",
	types.TimeframeMidLong:  "🌱 [MID TERM]",
}

var verdictColors = map[types.Verdict]int{
	types.VerdictStrongBuy: 0xFF4500, // orange-red, urgent
	types.VerdictBuy:       0x00FF00,
	types.VerdictWait:      0xFFAA00,
	types.VerdictSell:      0xFF0000,
}

// Discord posts messages to a webhook URL. In DRY_RUN mode nothing is sent;
// payloads are logged instead.
type Discord struct {
	webhookURL string
	client     *http.Client
	dryRun     bool
}

func NewDiscord(cfg *store.Config) *Discord {
	return &Discord{
		webhookURL: cfg.DiscordWebhookURL,
		client:     &http.Client{Timeout: cfg.HTTPTimeout()},
		dryRun:     cfg.Mode == "DRY_RUN",
	}
}

// webhookPayload is the Discord webhook wire format.
type webhookPayload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []embed `json:"embeds,omitempty"`
}

type embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	URL         string       `json:"url,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []embedField `json:"fields,omitempty"`
	Footer      *embedFooter `json:"footer,omitempty"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type embedFooter struct {
	Text string `json:"text"`
}

// Notify posts one judgment as a rich embed. A nil return means Discord
// accepted the message and the caller may mark the item as seen.
func (d *Discord) Notify(ctx context.Context, j types.Judgment) error {
	ctx, span := trace.StartSpan(ctx, "notifier.Notify")
	defer span.End()

	return d.post(ctx, webhookPayload{Embeds: []embed{buildEmbed(j)}})
}

// SendMessage posts a plain text message.
func (d *Discord) SendMessage(ctx context.Context, content string) error {
	return d.post(ctx, webhookPayload{Content: content})
}

// SendStartup announces the monitor coming online.
func (d *Discord) SendStartup(ctx context.Context, cfg *store.Config) error {
	msg := fmt.Sprintf(
		"🤖 **Investment Monitor Bot Started**\n\n"+
			"🛡️ Portfolio: %s\n"+
			"💡 Opportunity: %s\n"+
			"⏱️ Interval: %ds\n"+
			"📡 RSS feeds: %d\n\n"+
			"🚀 Bot is now running!",
		previewKeywords(cfg.PortfolioKeywords),
		previewKeywords(cfg.OpportunityKeywords),
		cfg.IntervalSeconds,
		len(cfg.Feeds),
	)
	return d.SendMessage(ctx, msg)
}

// SendErrorAlert reports a loop-level failure to the channel.
func (d *Discord) SendErrorAlert(ctx context.Context, errMsg string) error {
	if len(errMsg) > 1000 {
		errMsg = errMsg[:1000]
	}
	return d.SendMessage(ctx, "⚠️ **Error**\n```\n"+errMsg+"\n```")
}

func buildEmbed(j types.Judgment) embed {
	item := j.Item

	catLabel := "💡 Opportunity"
	if item.Category == types.CategoryPortfolio {
		catLabel = "🛡️ Portfolio"
	}

	fields := []embedField{
		{Name: "Verdict", Value: "**" + string(j.Verdict) + "**", Inline: true},
		{Name: "Timeframe", Value: "**" + string(j.Timeframe) + "**", Inline: true},
		{Name: "Category", Value: catLabel, Inline: true},
		{Name: "📰 ニュース", Value: truncate(item.Title, 120), Inline: false},
	}

	if !item.Published.IsZero() {
		fields = append(fields, embedField{
			Name:   "📅 記事公開日時",
			Value:  item.Published.In(jst).Format("01/02 15:04 JST"),
			Inline: true,
		})
	}

	if j.Verdict == types.VerdictStrongBuy && j.Timeframe == types.TimeframeDayTrade {
		fields = append(fields, embedField{
			Name:   "⚠️ URGENT",
			Value:  "**→ 翌営業日の寄り付きをチェック！**",
			Inline: false,
		})
	}

	footer := "Powered by Claude"
	if len(item.MatchedKeywords) > 0 {
		footer = "Keywords: " + truncate(strings.Join(item.MatchedKeywords, ", "), 80) + " | " + footer
	}

	return embed{
		Title:       timeframeIcons[j.Timeframe] + " " + verdictIcons[j.Verdict],
		Description: j.Reason,
		URL:         item.Link,
		Color:       verdictColors[j.Verdict],
		Fields:      fields,
		Footer:      &embedFooter{Text: footer},
	}
}

// post sends the payload, mapping Discord's status codes onto the error
// taxonomy: 2xx success, 404 configuration error, 429 skip, anything else a
// transient failure.
func (d *Discord) post(ctx context.Context, payload webhookPayload) error {
	if d.dryRun {
		b, _ := json.Marshal(payload)
		logger.Info(ctx, "DRY_RUN: Discord post suppressed", "payload", string(b))
		return nil
	}

	bb, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(bb))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("discord webhook: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		logger.Debug(ctx, "Discord notification sent", "status", resp.StatusCode)
		return nil
	case resp.StatusCode == http.StatusNotFound:
		logger.Error(ctx, "Discord webhook returned 404 - the webhook URL is wrong or was deleted; check DISCORD_WEBHOOK_URL")
		return ErrWebhookGone
	case resp.StatusCode == http.StatusTooManyRequests:
		logger.Warn(ctx, "Discord rate limited - notification skipped")
		return ErrRateLimited
	default:
		return fmt.Errorf("discord http %d", resp.StatusCode)
	}
}

func previewKeywords(kws []string) string {
	if len(kws) > 5 {
		kws = kws[:5]
	}
	return strings.Join(kws, ", ") + "..."
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
