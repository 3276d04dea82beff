package news

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"llm-fx-advisor/internal/logger"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Source is a page of headlines. URL may contain {query} (escaped search terms) or {symbol}.
type Source struct {
	Name      string
	URL       string
	Container string
	Title     string
}

// DefaultSources is used when news.sources is empty.
func DefaultSources() []Source {
	return []Source{
		{
			Name:      "GoogleNews",
			URL:       "https://news.google.com/search?q={query}&hl=en-US&gl=US&ceid=US:en",
			Container: "article",
			Title:     "h3, h4, a.JtKRv",
		},
	}
}

// Scraper collects headlines from every source in order until it has enough.
type Scraper struct {
	sources []Source
	timeout time.Duration
}

func NewScraper(sources []Source, timeout time.Duration) *Scraper {
	if len(sources) == 0 {
		sources = DefaultSources()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Scraper{sources: sources, timeout: timeout}
}

// Scrape returns up to limit distinct headlines. Failing sources are logged and skipped.
func (s *Scraper) Scrape(ctx context.Context, symbol string, limit int) []string {
	seen := make(map[string]bool)
	var out []string

	for _, src := range s.sources {
		if len(out) >= limit || ctx.Err() != nil {
			break
		}
		titles, err := s.scrapeSource(ctx, src, symbol, limit-len(out))
		if err != nil {
			logger.Warn(ctx, "Failed to scrape headlines", "source", src.Name, "symbol", symbol, "error", err)
			continue
		}
		for _, t := range titles {
			key := strings.ToLower(t)
			if seen[key] || len(out) >= limit {
				continue
			}
			seen[key] = true
			out = append(out, t)
		}
	}

	logger.Debug(ctx, "Headline scraping completed", "symbol", symbol, "headlines", len(out))
	return out
}

func (s *Scraper) scrapeSource(ctx context.Context, src Source, symbol string, limit int) ([]string, error) {
	target := sourceURL(src.URL, symbol)
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("bad source url %q: %w", target, err)
	}

	c := colly.NewCollector(
		colly.AllowedDomains(u.Hostname()),
		colly.MaxDepth(1),
	)
	c.SetRequestTimeout(s.timeout)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", userAgent)
	})

	var titles []string
	c.OnHTML("html", func(e *colly.HTMLElement) {
		titles = extractHeadlines(e.DOM, src, limit)
	})

	var visitErr error
	c.OnError(func(r *colly.Response, err error) {
		visitErr = fmt.Errorf("%s: HTTP %d: %w", src.Name, r.StatusCode, err)
	})

	if err := c.Visit(target); err != nil {
		return nil, err
	}
	c.Wait()
	if visitErr != nil {
		return nil, visitErr
	}
	return titles, nil
}

// extractHeadlines reads the first Title match of each Container, in document order.
func extractHeadlines(doc *goquery.Selection, src Source, limit int) []string {
	var out []string
	doc.Find(src.Container).EachWithBreak(func(_ int, item *goquery.Selection) bool {
		title := strings.Join(strings.Fields(item.Find(src.Title).First().Text()), " ")
		if title != "" {
			out = append(out, title)
		}
		return len(out) < limit
	})
	return out
}

// SearchTerms turns a pair like EURUSD into "EUR USD forex"; other symbols are used as-is.
func SearchTerms(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	s = strings.TrimSuffix(s, "=X")
	if len(s) == 6 && isLetters(s) {
		return s[:3] + " " + s[3:] + " forex"
	}
	return s
}

func sourceURL(tmpl, symbol string) string {
	r := strings.NewReplacer(
		"{query}", url.QueryEscape(SearchTerms(symbol)),
		"{symbol}", url.PathEscape(strings.ToLower(symbol)),
	)
	return r.Replace(tmpl)
}

func isLetters(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
