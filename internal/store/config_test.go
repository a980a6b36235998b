package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"investment-monitor-bot/internal/types"
)

func clearMonitorEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"MONITOR_MODE", "ANTHROPIC_API_KEY", "DISCORD_WEBHOOK_URL",
		"INTERVAL_SECONDS", "CLAUDE_TIMEOUT", "HTTP_TIMEOUT", "CLAUDE_MODEL",
		"RSS_FEEDS", "MONITOR_KEYWORDS", "OPPORTUNITY_KEYWORDS",
		"LAST_SEEN_FILE", "DIGEST_TIME", "MONITOR_CONFIG",
	} {
		old, ok := os.LookupEnv(k)
		os.Unsetenv(k)
		if ok {
			t.Cleanup(func() { os.Setenv(k, old) })
		}
	}
	// Point at a nonexistent YAML file so a monitor.yaml in the working
	// directory cannot leak into tests.
	t.Setenv("MONITOR_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
}

func TestLoadConfigDefaults(t *testing.T) {
	clearMonitorEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test-key-12345")
	t.Setenv("DISCORD_WEBHOOK_URL", "https://discord.com/api/webhooks/1/abc")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Mode != "LIVE" {
		t.Errorf("expected LIVE mode, got %s", cfg.Mode)
	}
	if cfg.IntervalSeconds != 60 {
		t.Errorf("expected interval 60, got %d", cfg.IntervalSeconds)
	}
	if cfg.ClaudeTimeoutSecs != 10 {
		t.Errorf("expected claude timeout 10, got %d", cfg.ClaudeTimeoutSecs)
	}
	if cfg.HTTPTimeoutSecs != 10 {
		t.Errorf("expected http timeout 10, got %d", cfg.HTTPTimeoutSecs)
	}
	if cfg.ClaudeModel != defaultClaudeModel {
		t.Errorf("expected default model, got %s", cfg.ClaudeModel)
	}
	if len(cfg.Feeds) != 3 {
		t.Errorf("expected 3 default feeds, got %d", len(cfg.Feeds))
	}
	if len(cfg.PortfolioKeywords) == 0 || len(cfg.OpportunityKeywords) == 0 {
		t.Error("expected built-in keyword defaults")
	}
	if cfg.SeenFile != "last_seen.txt" {
		t.Errorf("expected default seen file, got %s", cfg.SeenFile)
	}
}

func TestLoadConfigMissingSecrets(t *testing.T) {
	tests := []struct {
		name   string
		apiKey string
		hook   string
		want   string
	}{
		{"missing api key", "", "https://discord.com/api/webhooks/1/abc", "ANTHROPIC_API_KEY"},
		{"missing webhook", "sk-ant-test", "", "DISCORD_WEBHOOK_URL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearMonitorEnv(t)
			if tt.apiKey != "" {
				t.Setenv("ANTHROPIC_API_KEY", tt.apiKey)
			}
			if tt.hook != "" {
				t.Setenv("DISCORD_WEBHOOK_URL", tt.hook)
			}
			_, err := LoadConfig()
			if err == nil {
				t.Fatal("expected error for missing secret")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not name %s", err, tt.want)
			}
		})
	}
}

func TestLoadConfigDryRunRelaxesSecrets(t *testing.T) {
	clearMonitorEnv(t)
	t.Setenv("MONITOR_MODE", "DRY_RUN")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig in DRY_RUN: %v", err)
	}
	if cfg.Mode != "DRY_RUN" {
		t.Errorf("expected DRY_RUN, got %s", cfg.Mode)
	}
}

func TestLoadConfigInvalidInterval(t *testing.T) {
	clearMonitorEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
	t.Setenv("DISCORD_WEBHOOK_URL", "https://discord.com/api/webhooks/1/abc")
	t.Setenv("INTERVAL_SECONDS", "-5")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for negative interval")
	}
}

func TestSafeIntGarbageFallsBack(t *testing.T) {
	clearMonitorEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
	t.Setenv("DISCORD_WEBHOOK_URL", "https://discord.com/api/webhooks/1/abc")
	t.Setenv("INTERVAL_SECONDS", "not-a-number")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.IntervalSeconds != 60 {
		t.Errorf("expected fallback interval 60, got %d", cfg.IntervalSeconds)
	}
}

func TestEmptyKeywordEnvMeansMatchEverything(t *testing.T) {
	clearMonitorEnv(t)
	t.Setenv("MONITOR_MODE", "DRY_RUN")
	t.Setenv("MONITOR_KEYWORDS", "")
	t.Setenv("OPPORTUNITY_KEYWORDS", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(cfg.Keywords()) != 0 {
		t.Errorf("expected empty keyword list, got %v", cfg.Keywords())
	}
}

func TestKeywordEnvOverride(t *testing.T) {
	clearMonitorEnv(t)
	t.Setenv("MONITOR_MODE", "DRY_RUN")
	t.Setenv("MONITOR_KEYWORDS", "TSMC, 日銀 ,,EUV")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	want := []string{"TSMC", "日銀", "EUV"}
	if len(cfg.PortfolioKeywords) != len(want) {
		t.Fatalf("expected %d keywords, got %v", len(want), cfg.PortfolioKeywords)
	}
	for i, kw := range want {
		if cfg.PortfolioKeywords[i] != kw {
			t.Errorf("keyword %d: expected %q, got %q", i, kw, cfg.PortfolioKeywords[i])
		}
	}
}

func TestYAMLOverlay(t *testing.T) {
	clearMonitorEnv(t)
	t.Setenv("MONITOR_MODE", "DRY_RUN")

	dir := t.TempDir()
	path := filepath.Join(dir, "monitor.yaml")
	yaml := `feeds:
  - https://example.com/rss
keywords:
  portfolio: [alpha]
  opportunity: [beta, gamma]
digest_time: "16:00"
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MONITOR_CONFIG", path)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(cfg.Feeds) != 1 || cfg.Feeds[0] != "https://example.com/rss" {
		t.Errorf("expected yaml feed, got %v", cfg.Feeds)
	}
	if len(cfg.PortfolioKeywords) != 1 || cfg.PortfolioKeywords[0] != "alpha" {
		t.Errorf("expected yaml portfolio keywords, got %v", cfg.PortfolioKeywords)
	}
	if cfg.DigestTime != "16:00" {
		t.Errorf("expected digest time 16:00, got %s", cfg.DigestTime)
	}
}

func TestClassify(t *testing.T) {
	cfg := &Config{
		PortfolioKeywords:   []string{"TSMC", "日銀"},
		OpportunityKeywords: []string{"上方修正"},
	}

	tests := []struct {
		matched []string
		want    types.Category
	}{
		{[]string{"TSMC"}, types.CategoryPortfolio},
		{[]string{"上方修正"}, types.CategoryOpportunity},
		{[]string{"上方修正", "日銀"}, types.CategoryPortfolio},
		{[]string{"unrelated"}, types.CategoryUnknown},
		{nil, types.CategoryUnknown},
	}
	for _, tt := range tests {
		if got := cfg.Classify(tt.matched); got != tt.want {
			t.Errorf("Classify(%v) = %s, want %s", tt.matched, got, tt.want)
		}
	}
}

func TestStringMasksSecrets(t *testing.T) {
	cfg := &Config{
		Mode:              "LIVE",
		AnthropicAPIKey:   "sk-ant-api03-verysecretkey",
		DiscordWebhookURL: "https://discord.com/api/webhooks/123456/secret-token",
		IntervalSeconds:   60,
		ClaudeModel:       defaultClaudeModel,
	}

	s := cfg.String()
	if strings.Contains(s, "verysecretkey") || strings.Contains(s, "secret-token") {
		t.Errorf("config string leaks secrets: %s", s)
	}
	if !strings.Contains(s, "sk-a") {
		t.Errorf("config string should keep a secret prefix for identification: %s", s)
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "NOT SET"},
		{"short", "****"},
		{"sk-ant-api03-xyz", "sk-a...-xyz"},
	}
	for _, tt := range tests {
		if got := maskSecret(tt.in); got != tt.want {
			t.Errorf("maskSecret(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
