package store

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"investment-monitor-bot/internal/types"
)

// Config is the immutable process configuration. Built once at startup from
// environment variables plus an optional YAML file; never mutated afterwards.
type Config struct {
	Mode string // LIVE or DRY_RUN

	AnthropicAPIKey   string
	DiscordWebhookURL string

	IntervalSeconds    int
	ClaudeTimeoutSecs  int
	HTTPTimeoutSecs    int
	ClaudeModel        string

	Feeds               []string
	PortfolioKeywords   []string
	OpportunityKeywords []string

	SeenFile   string
	DigestTime string // HH:MM, JST
}

// fileConfig is the optional YAML overlay (monitor.yaml).
type fileConfig struct {
	Feeds    []string `yaml:"feeds"`
	Keywords struct {
		Portfolio   []string `yaml:"portfolio"`
		Opportunity []string `yaml:"opportunity"`
	} `yaml:"keywords"`
	DigestTime string `yaml:"digest_time"`
}

// Portfolio defense keywords: held positions and the macro themes that move
// them (semiconductors, defense, rates).
var defaultPortfolioKeywords = []string{
	"東京応化", "4186", "EUV", "フォトレジスト", "TSMC", "熊本工場", "JASM",
	"ラピダス", "2ナノ", "HBM", "SOX指数",
	"三菱重工", "7011", "川崎重工", "7012", "IHI",
	"防衛省", "防衛費", "防衛装備", "ミサイル", "反撃能力",
	"原発再稼働", "SMR", "水素", "H3ロケット", "JAXA", "円安",
	"三菱UFJ", "8306", "MUFG", "日銀", "金融政策決定会合",
	"利上げ", "YCC", "長期金利", "FRB", "増配", "自社株買い",
}

// Opportunity keywords: surprise events worth a fresh look.
var defaultOpportunityKeywords = []string{
	"上方修正", "最高益", "大幅増益", "増配", "株式分割",
	"ストップ高", "サプライズ", "レーティング引き上げ", "格上げ", "強気",
	"大量保有", "アクティビスト", "TOB", "MBO", "提携", "買収",
	"世界初", "画期的",
}

var defaultFeeds = []string{
	// Yahoo! Finance JP stock news
	"https://finance.yahoo.co.jp/rss/news?category=stock",
	// Nikkei earnings via Google News
	"https://news.google.com/rss/search?q=%E6%A0%AA%E5%BC%8F+%E6%B1%BA%E7%AE%97&hl=ja&gl=JP&ceid=JP:ja",
	// JP market materials via Google News
	"https://news.google.com/rss/search?q=%E6%97%A5%E6%9C%AC%E6%A0%AA+%E6%9D%90%E6%96%99&hl=ja&gl=JP&ceid=JP:ja",
}

const defaultClaudeModel = "claude-3-5-sonnet-latest"

// LoadConfig builds the configuration from the environment and, when present,
// the YAML file named by MONITOR_CONFIG (default monitor.yaml).
func LoadConfig() (*Config, error) {
	c := &Config{
		Mode:                strings.ToUpper(getEnv("MONITOR_MODE", "LIVE")),
		AnthropicAPIKey:     os.Getenv("ANTHROPIC_API_KEY"),
		DiscordWebhookURL:   os.Getenv("DISCORD_WEBHOOK_URL"),
		IntervalSeconds:     safeInt("INTERVAL_SECONDS", 60),
		ClaudeTimeoutSecs:   safeInt("CLAUDE_TIMEOUT", 10),
		HTTPTimeoutSecs:     safeInt("HTTP_TIMEOUT", 10),
		ClaudeModel:         getEnv("CLAUDE_MODEL", defaultClaudeModel),
		Feeds:               splitList(os.Getenv("RSS_FEEDS"), defaultFeeds),
		PortfolioKeywords:   keywordList("MONITOR_KEYWORDS", defaultPortfolioKeywords),
		OpportunityKeywords: keywordList("OPPORTUNITY_KEYWORDS", defaultOpportunityKeywords),
		SeenFile:            getEnv("LAST_SEEN_FILE", "last_seen.txt"),
		DigestTime:          getEnv("DIGEST_TIME", "15:30"),
	}

	if err := c.applyFile(getEnv("MONITOR_CONFIG", "monitor.yaml")); err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return c, nil
}

// applyFile overlays values from the optional YAML file. A missing file is
// not an error; a malformed one is.
func (c *Config) applyFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	if len(fc.Feeds) > 0 {
		c.Feeds = fc.Feeds
	}
	if fc.Keywords.Portfolio != nil {
		c.PortfolioKeywords = fc.Keywords.Portfolio
	}
	if fc.Keywords.Opportunity != nil {
		c.OpportunityKeywords = fc.Keywords.Opportunity
	}
	if fc.DigestTime != "" {
		c.DigestTime = fc.DigestTime
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Mode != "LIVE" && c.Mode != "DRY_RUN" {
		return fmt.Errorf("invalid mode '%s': must be 'LIVE' or 'DRY_RUN'", c.Mode)
	}
	if c.Mode == "LIVE" {
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is not set")
		}
		if c.DiscordWebhookURL == "" {
			return fmt.Errorf("DISCORD_WEBHOOK_URL is not set")
		}
	}
	if c.IntervalSeconds <= 0 {
		return fmt.Errorf("INTERVAL_SECONDS must be positive, got %d", c.IntervalSeconds)
	}
	if len(c.Feeds) == 0 {
		return fmt.Errorf("feed list cannot be empty")
	}
	if _, err := time.Parse("15:04", c.DigestTime); err != nil {
		return fmt.Errorf("invalid digest_time '%s': must be HH:MM", c.DigestTime)
	}
	return nil
}

// Keywords returns the combined keyword list, portfolio first. An empty
// result means every item passes the filter.
func (c *Config) Keywords() []string {
	all := make([]string, 0, len(c.PortfolioKeywords)+len(c.OpportunityKeywords))
	all = append(all, c.PortfolioKeywords...)
	all = append(all, c.OpportunityKeywords...)
	return all
}

// Classify reports which keyword list the matched keywords came from.
// Portfolio wins when both lists matched.
func (c *Config) Classify(matched []string) types.Category {
	text := strings.ToLower(strings.Join(matched, " "))
	for _, kw := range c.PortfolioKeywords {
		if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
			return types.CategoryPortfolio
		}
	}
	for _, kw := range c.OpportunityKeywords {
		if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
			return types.CategoryOpportunity
		}
	}
	return types.CategoryUnknown
}

// Interval is the loop sleep between iterations.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// ClaudeTimeout bounds a single Claude API call.
func (c *Config) ClaudeTimeout() time.Duration {
	return time.Duration(c.ClaudeTimeoutSecs) * time.Second
}

// HTTPTimeout bounds a single feed fetch or webhook post.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSecs) * time.Second
}

// String renders the configuration for logging with secrets masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config(mode=%s, interval=%ds, feeds=%d, portfolio=%d keywords, opportunity=%d keywords, model=%s, api_key=%s, webhook=%s)",
		c.Mode, c.IntervalSeconds, len(c.Feeds),
		len(c.PortfolioKeywords), len(c.OpportunityKeywords),
		c.ClaudeModel,
		maskSecret(c.AnthropicAPIKey),
		maskSecret(c.DiscordWebhookURL),
	)
}

// maskSecret keeps the first and last few characters of a secret so two
// configs can be told apart in logs without leaking the value.
func maskSecret(s string) string {
	if s == "" {
		return "NOT SET"
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// safeInt parses an integer env var, falling back to the default on absence
// or garbage rather than failing startup.
func safeInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// splitList parses a comma-separated env value, trimming blanks.
func splitList(v string, def []string) []string {
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

// keywordList is splitList with one difference: a variable explicitly set to
// an empty or all-blank value means "no keywords", i.e. match everything.
func keywordList(key string, def []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
