package judgelog

import (
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestAppendAndReadDay(t *testing.T) {
	t.Setenv("MONITOR_LOG_DIR", t.TempDir())

	entries := []Entry{
		{ID: "a", Title: "利上げ観測", Verdict: "BUY", Timeframe: "MID_LONG", Category: "portfolio", Keywords: []string{"日銀"}},
		{ID: "b", Title: "下方修正", Verdict: "SELL", Timeframe: "DAY_TRADE", Category: "opportunity"},
	}
	for _, e := range entries {
		if err := Append(e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := ReadDay(jstNow())
	if err != nil {
		t.Fatalf("ReadDay: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].ID != "a" || got[1].ID != "b" {
		t.Errorf("entries out of order: %v", got)
	}
	if got[0].Time == "" {
		t.Error("Append should stamp the entry")
	}
	if len(got[0].Keywords) != 1 || got[0].Keywords[0] != "日銀" {
		t.Errorf("keywords lost in roundtrip: %v", got[0].Keywords)
	}
}

func TestReadDayMissingFile(t *testing.T) {
	t.Setenv("MONITOR_LOG_DIR", t.TempDir())

	got, err := ReadDay(jstNow())
	if err != nil {
		t.Fatalf("ReadDay on missing file: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no entries, got %d", len(got))
	}
}

func TestReadDaySkipsCorruptLines(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MONITOR_LOG_DIR", dir)

	if err := Append(Entry{ID: "good", Verdict: "WAIT"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	p := dailyFilepath(jstNow())
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	f.WriteString("this is not json\n")
	f.Close()

	got, err := ReadDay(jstNow())
	if err != nil {
		t.Fatalf("ReadDay: %v", err)
	}
	if len(got) != 1 || got[0].ID != "good" {
		t.Errorf("expected only the valid entry, got %v", got)
	}
}

func TestCompressOlder(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MONITOR_LOG_DIR", dir)

	sub := filepath.Join(dir, "judgments")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	oldPath := filepath.Join(sub, "2026-01-01.txt")
	freshPath := filepath.Join(sub, "2026-08-25.txt")
	if err := os.WriteFile(oldPath, []byte(`{"ID":"old"}`+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(freshPath, []byte(`{"ID":"fresh"}`+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	stale := time.Now().AddDate(0, 0, -30)
	if err := os.Chtimes(oldPath, stale, stale); err != nil {
		t.Fatal(err)
	}

	if err := CompressOlder(7); err != nil {
		t.Fatalf("CompressOlder: %v", err)
	}

	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Error("old file should have been replaced by its gzip")
	}
	gz, err := os.Open(oldPath + ".gz")
	if err != nil {
		t.Fatalf("expected gzip file: %v", err)
	}
	defer gz.Close()
	if _, err := gzip.NewReader(gz); err != nil {
		t.Errorf("compressed file is not valid gzip: %v", err)
	}
	if _, err := os.Stat(freshPath); err != nil {
		t.Errorf("fresh file must survive compression: %v", err)
	}
}

func TestCompressOlderZeroRetentionIsNoop(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MONITOR_LOG_DIR", dir)

	p := filepath.Join(dir, "judgments", "2026-01-01.txt")
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte("x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	stale := time.Now().AddDate(0, 0, -365)
	if err := os.Chtimes(p, stale, stale); err != nil {
		t.Fatal(err)
	}

	if err := CompressOlder(0); err != nil {
		t.Fatalf("CompressOlder(0): %v", err)
	}
	if _, err := os.Stat(p); err != nil {
		t.Errorf("retention 0 must leave files alone: %v", err)
	}
}
