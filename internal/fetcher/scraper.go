package fetcher

import (
	"context"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"investment-monitor-bot/internal/logger"
)

// Article body selectors, tried in order: the semantic article tag first,
// then the class names JP/EN news sites commonly use.
const articleSelectors = "article, div.article-body, div.article_body, div.articleBody, " +
	"div.entry-content, div.post-content, div.news-body, div.story-body, " +
	"div.newsDetail, div.content-main, div.main-content"

const maxBodyRunes = 2000

// Scraper fetches article pages and extracts body text for the judgment
// prompt.
type Scraper struct {
	timeout time.Duration
}

func NewScraper(timeout time.Duration) *Scraper {
	return &Scraper{timeout: timeout}
}

// FetchArticleBody visits articleURL and extracts up to maxBodyRunes of body
// text. Every failure path returns an empty string; the item is still judged
// on title and summary alone.
func (s *Scraper) FetchArticleBody(ctx context.Context, articleURL string) string {
	c := colly.NewCollector()
	c.SetRequestTimeout(s.timeout)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	})

	var body string

	c.OnHTML(articleSelectors, func(e *colly.HTMLElement) {
		if body != "" {
			return
		}
		paragraphs := []string{}
		e.ForEach("p", func(_ int, el *colly.HTMLElement) {
			text := strings.TrimSpace(el.Text)
			if len([]rune(text)) > 20 {
				paragraphs = append(paragraphs, text)
			}
		})
		body = strings.Join(paragraphs, "\n")
	})

	// Fallback: whole-page paragraphs when no article container matched.
	c.OnHTML("body", func(e *colly.HTMLElement) {
		if body != "" {
			return
		}
		paragraphs := []string{}
		e.ForEach("p", func(_ int, el *colly.HTMLElement) {
			text := strings.TrimSpace(el.Text)
			if len([]rune(text)) > 20 {
				paragraphs = append(paragraphs, text)
			}
		})
		body = strings.Join(paragraphs, "\n")
	})

	if err := c.Visit(articleURL); err != nil {
		logger.Debug(ctx, "Failed to fetch article body", "url", articleURL, "error", err)
		return ""
	}
	c.Wait()

	body = truncateRunes(body, maxBodyRunes)
	if body != "" {
		logger.Debug(ctx, "Article body extracted", "url", articleURL, "chars", len([]rune(body)))
	}
	return body
}
