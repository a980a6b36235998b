// Package claude implements the Judge interface against the Anthropic Claude
// Messages API. Transport and parse failures never escalate: the judge falls
// back to a WAIT verdict with a rationale noting the failure.
package claude

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"investment-monitor-bot/internal/logger"
	"investment-monitor-bot/internal/store"
	"investment-monitor-bot/internal/trace"
	"investment-monitor-bot/internal/types"
)

const systemPrompt = `あなたはプロのトレーダー兼投資アナリストです。
日本株市場に精通しており、ニュースから瞬時に投資判断と最適な保有期間を判定できます。

必ず以下のJSON形式のみで回答してください。それ以外のテキストは一切出力しないでください。

{
  "verdict": "STRONG_BUY" | "BUY" | "WAIT" | "SELL",
  "timeframe": "DAY_TRADE" | "MID_LONG",
  "reason": "判断理由を1文で簡潔に（日本語）"
}

【verdict の判断基準】
- STRONG_BUY: 上方修正、サプライズ決算、大型提携など、株価に強烈なインパクトがあるもの
- BUY: 業績好調、増配、国策テーマなど、ポジティブだが緊急性は低いもの
- WAIT: 判断材料不足、中立的なニュース
- SELL: 業績悪化、不祥事、下方修正など、ネガティブなもの

【timeframe の判断基準】
- DAY_TRADE: 決算速報、上方修正、提携発表など瞬発力があるもの
- MID_LONG: 国策、新工場建設、技術革新、業績の安定的拡大など`

// Judge calls the Anthropic Claude Messages API and returns a types.Judgment.
type Judge struct {
	cfg      *store.Config
	endpoint string
	client   *http.Client
}

// New creates a Claude-backed judge bounded by the configured timeout.
func New(cfg *store.Config) *Judge {
	// default messages endpoint (public Anthropic)
	endpoint := "https://api.anthropic.com/v1/messages"
	// If you use a proxy/bedrock/vertex, set endpoint via CLAUDE_API_ENDPOINT env var
	if ep := os.Getenv("CLAUDE_API_ENDPOINT"); ep != "" {
		endpoint = ep
	}
	return &Judge{
		cfg:      cfg,
		endpoint: endpoint,
		client:   &http.Client{Timeout: cfg.ClaudeTimeout()},
	}
}

// Judge asks Claude for a verdict on item. The returned error is always nil:
// any transport, API, or parse failure yields the neutral fallback judgment.
func (j *Judge) Judge(ctx context.Context, item types.NewsItem) (types.Judgment, error) {
	ctx, span := trace.StartSpan(ctx, "claude.Judge")
	defer span.End()

	reqBody := map[string]any{
		"model":      j.cfg.ClaudeModel,
		"max_tokens": 300,
		"system":     systemPrompt,
		"messages": []map[string]string{
			{"role": "user", "content": buildPrompt(item)},
		},
	}
	bb, _ := json.Marshal(reqBody)

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.endpoint, bytes.NewReader(bb))
	if err != nil {
		return fallback(item, "request build failed: "+err.Error()), nil
	}
	req.Header.Set("x-api-key", j.cfg.AnthropicAPIKey)
	req.Header.Set("anthropic-version", "2023-06-01")
	req.Header.Set("Content-Type", "application/json")

	resp, err := j.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		logger.ErrorWithErr(ctx, "Claude API request failed", err, "title", item.Title, "latency_ms", latency.Milliseconds())
		return fallback(item, "claude call failed: "+err.Error()), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		apiErr := fmt.Errorf("claude http %d: %s", resp.StatusCode, string(body))
		logger.ErrorWithErr(ctx, "Claude API returned error status", apiErr, "title", item.Title)
		return fallback(item, fmt.Sprintf("claude http %d", resp.StatusCode)), nil
	}

	var r struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		logger.ErrorWithErr(ctx, "Failed to decode Claude response", err, "title", item.Title)
		return fallback(item, "undecodable claude response"), nil
	}
	if len(r.Content) == 0 {
		logger.Warn(ctx, "Claude response has no content blocks", "title", item.Title)
		return fallback(item, "empty claude response"), nil
	}

	jd := parseJudgment(ctx, r.Content[0].Text)
	jd.Item = item
	logger.Debug(ctx, "Claude judgment received",
		"title", item.Title,
		"verdict", string(jd.Verdict),
		"timeframe", string(jd.Timeframe),
		"latency_ms", latency.Milliseconds(),
	)
	return jd, nil
}

// buildPrompt embeds the item into the fixed instruction template. The body
// section is omitted when extraction came back empty.
func buildPrompt(item types.NewsItem) string {
	label := "【新規チャンス候補】"
	if item.Category == types.CategoryPortfolio {
		label = "【保有株関連ニュース】"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n【タイトル】\n%s\n\n【概要】\n%s\n", label, item.Title, item.Summary)
	if item.Body != "" {
		fmt.Fprintf(&b, "\n【本文】\n%s\n", item.Body)
	}
	if len(item.MatchedKeywords) > 0 {
		fmt.Fprintf(&b, "\n【マッチしたキーワード】\n%s\n", strings.Join(item.MatchedKeywords, ", "))
	}
	b.WriteString("\n上記ニュースを分析し、投資判断(verdict)と最適な保有期間(timeframe)をJSON形式で回答してください。")
	return b.String()
}

// wireJudgment is the JSON shape the model is asked for.
type wireJudgment struct {
	Verdict   string `json:"verdict"`
	Timeframe string `json:"timeframe"`
	Reason    string `json:"reason"`
}

// parseJudgment extracts a judgment from the model's text: JSON first
// (handling markdown fences), token scan as a fallback.
func parseJudgment(ctx context.Context, raw string) types.Judgment {
	t := strings.TrimSpace(stripFences(raw))

	if w, ok := tryUnmarshal(t); ok {
		return normalize(w)
	}

	// Search for first '{' and matching '}' (simple)
	start := strings.Index(t, "{")
	end := strings.LastIndex(t, "}")
	if start >= 0 && end > start {
		if w, ok := tryUnmarshal(t[start : end+1]); ok {
			return normalize(w)
		}
	}

	logger.Warn(ctx, "Unable to parse judgment JSON, scanning for verdict tokens", "text", truncate(t, 120))
	return scanJudgment(raw)
}

func tryUnmarshal(s string) (wireJudgment, bool) {
	if !strings.HasPrefix(strings.TrimSpace(s), "{") {
		return wireJudgment{}, false
	}
	var w wireJudgment
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &w); err != nil {
		return wireJudgment{}, false
	}
	if w.Verdict == "" {
		return wireJudgment{}, false
	}
	return w, true
}

// stripFences removes markdown code fences around the model output.
func stripFences(raw string) string {
	if !strings.Contains(raw, "```") {
		return raw
	}
	var kept []string
	inBlock := false
	for _, line := range strings.Split(raw, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inBlock = !inBlock
			continue
		}
		if inBlock {
			kept = append(kept, line)
		}
	}
	if len(kept) == 0 {
		return raw
	}
	return strings.Join(kept, "\n")
}

// scanJudgment is the last-resort parser: scan the text for verdict tokens.
// STRONG_BUY is checked first, then SELL before BUY so the BUY substring of
// STRONG_BUY cannot shadow a sell signal, then WAIT as the default.
func scanJudgment(raw string) types.Judgment {
	upper := strings.ToUpper(raw)

	verdict := types.VerdictWait
	switch {
	case strings.Contains(upper, "STRONG_BUY"):
		verdict = types.VerdictStrongBuy
	case strings.Contains(upper, "SELL"):
		verdict = types.VerdictSell
	case strings.Contains(upper, "BUY"):
		verdict = types.VerdictBuy
	}

	timeframe := types.TimeframeMidLong
	if strings.Contains(upper, "DAY_TRADE") {
		timeframe = types.TimeframeDayTrade
	}

	reason := truncate(strings.ReplaceAll(strings.TrimSpace(raw), "\n", " "), 150)
	if reason == "" {
		reason = "判定根拠をテキストから抽出できませんでした"
	}

	return types.Judgment{Verdict: verdict, Timeframe: timeframe, Reason: reason}
}

// normalize clamps wire values onto the known verdict and timeframe sets.
func normalize(w wireJudgment) types.Judgment {
	verdict := types.Verdict(strings.ToUpper(strings.TrimSpace(w.Verdict)))
	switch verdict {
	case types.VerdictStrongBuy, types.VerdictBuy, types.VerdictWait, types.VerdictSell:
	default:
		verdict = types.VerdictWait
	}

	timeframe := types.Timeframe(strings.ToUpper(strings.TrimSpace(w.Timeframe)))
	switch timeframe {
	case types.TimeframeDayTrade, types.TimeframeMidLong:
	default:
		timeframe = types.TimeframeMidLong
	}

	return types.Judgment{Verdict: verdict, Timeframe: timeframe, Reason: truncate(w.Reason, 200)}
}

// fallback is the neutral judgment used when the API cannot be consulted.
func fallback(item types.NewsItem, reason string) types.Judgment {
	return types.Judgment{
		Verdict:   types.VerdictWait,
		Timeframe: types.TimeframeMidLong,
		Reason:    reason,
		Item:      item,
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
