package impl

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/bakkerme/dealwatch/internal/sources/marketplace"
)

type Fetcher struct {
	client    *http.Client
	userAgent string
}

func NewFetcher(timeout time.Duration, userAgent string) *Fetcher {
	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// Fetch issues one GET for searchURL. There is no retry: a failed request
// fails the whole fetch.
func (f *Fetcher) Fetch(ctx context.Context, searchURL string, options marketplace.FetchOptions) ([]marketplace.Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	userAgent := options.UserAgent
	if userAgent == "" {
		userAgent = f.userAgent
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch search page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch search page: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse search page: %w", err)
	}
	return ParseItems(doc, options.Selectors), nil
}

// ParseItems walks every item node in document order.
func ParseItems(doc *goquery.Document, selectors marketplace.Selectors) []marketplace.Item {
	selectors = withDefaults(selectors)
	items := []marketplace.Item{}
	doc.Find(selectors.Item).Each(func(_ int, sel *goquery.Selection) {
		link, _ := sel.Find(selectors.Link).First().Attr("href")
		items = append(items, marketplace.Item{
			Title:     strings.TrimSpace(sel.Find(selectors.Title).First().Text()),
			Link:      strings.TrimSpace(link),
			PriceText: strings.TrimSpace(sel.Find(selectors.Price).First().Text()),
		})
	})
	return items
}

func withDefaults(s marketplace.Selectors) marketplace.Selectors {
	if s.Item == "" {
		s.Item = marketplace.DefaultSelectors.Item
	}
	if s.Title == "" {
		s.Title = marketplace.DefaultSelectors.Title
	}
	if s.Link == "" {
		s.Link = marketplace.DefaultSelectors.Link
	}
	if s.Price == "" {
		s.Price = marketplace.DefaultSelectors.Price
	}
	return s
}
