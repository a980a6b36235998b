package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestFetchArticleBodyFromArticleTag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
			<nav><p>navigation junk that is long enough to pass the filter</p></nav>
			<article>
				<p>東京応化工業は、通期の業績予想を上方修正すると発表した。</p>
				<p>short</p>
				<p>半導体向けフォトレジストの需要が想定を上回って推移している。</p>
			</article>
		</body></html>`)
	}))
	t.Cleanup(srv.Close)

	s := NewScraper(5 * time.Second)
	body := s.FetchArticleBody(context.Background(), srv.URL)

	if !strings.Contains(body, "上方修正") || !strings.Contains(body, "フォトレジスト") {
		t.Errorf("expected article paragraphs, got %q", body)
	}
	if strings.Contains(body, "short") {
		t.Errorf("paragraphs under the length floor should be dropped, got %q", body)
	}
}

func TestFetchArticleBodyFallsBackToWholePage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
			<div class="weird-layout">
				<p>記事コンテナのない古いサイトでも本文は抽出できるべきである。</p>
			</div>
		</body></html>`)
	}))
	t.Cleanup(srv.Close)

	s := NewScraper(5 * time.Second)
	body := s.FetchArticleBody(context.Background(), srv.URL)

	if !strings.Contains(body, "本文は抽出できる") {
		t.Errorf("expected whole-page fallback to find the paragraph, got %q", body)
	}
}

func TestFetchArticleBodyTruncates(t *testing.T) {
	long := strings.Repeat("あ", 3000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body><article><p>%s</p></article></body></html>`, long)
	}))
	t.Cleanup(srv.Close)

	s := NewScraper(5 * time.Second)
	body := s.FetchArticleBody(context.Background(), srv.URL)

	if got := len([]rune(body)); got > maxBodyRunes {
		t.Errorf("body should be capped at %d runes, got %d", maxBodyRunes, got)
	}
}

func TestFetchArticleBodyFailureYieldsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	s := NewScraper(5 * time.Second)
	if body := s.FetchArticleBody(context.Background(), srv.URL); body != "" {
		t.Errorf("expected empty body on HTTP failure, got %q", body)
	}
}
