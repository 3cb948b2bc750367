package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/bakkerme/dealwatch/internal/config"
	"github.com/bakkerme/dealwatch/internal/core"
	"github.com/bakkerme/dealwatch/internal/sources/marketplace"
)

// HTMLProcessor scrapes one marketplace search-results page per fetch.
type HTMLProcessor struct {
	name       string
	sourceName string
	config     config.HTMLSource
	fetcher    marketplace.Fetcher
}

// Compile-time check that HTMLProcessor implements core.SourceProcessor.
var _ core.SourceProcessor = (*HTMLProcessor)(nil)

func NewHTMLProcessor(sourceName string, cfg *config.HTMLSource, fetcher marketplace.Fetcher) (*HTMLProcessor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("html source config is required")
	}
	p := &HTMLProcessor{
		name:       "html",
		sourceName: sourceName,
		config:     *cfg,
		fetcher:    fetcher,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *HTMLProcessor) Name() string {
	return p.name
}

func (p *HTMLProcessor) Validate() error {
	if p.config.URL == "" {
		return fmt.Errorf("html source url is required")
	}
	if _, err := url.Parse(p.config.URL); err != nil {
		return fmt.Errorf("invalid html source url: %w", err)
	}
	if p.fetcher == nil {
		return fmt.Errorf("marketplace fetcher is required")
	}
	return nil
}

func (p *HTMLProcessor) Fetch(ctx context.Context) ([]*core.ListingBlock, error) {
	logger := core.LoggerFromContext(ctx)
	items, err := p.fetcher.Fetch(ctx, p.config.URL, marketplace.FetchOptions{
		UserAgent: p.config.UserAgent,
		Selectors: p.selectors(),
	})
	if err != nil {
		return nil, fetchErr(p.sourceName+" search page", err)
	}

	base, _ := url.Parse(p.config.URL)
	blocks := make([]*core.ListingBlock, 0, len(items))
	for _, item := range items {
		price, ok := marketplace.ParsePrice(item.PriceText)
		block := newBlock(ctx, p.sourceName, base, candidate{
			title: item.Title,
			link:  item.Link,
			price: price,
			text:  item.PriceText,
			ok:    ok,
		})
		if block != nil {
			blocks = append(blocks, block)
		}
	}
	logger.Info("Fetched listings", slog.String("source", p.sourceName), slog.Int("raw", len(items)), slog.Int("valid", len(blocks)))
	return blocks, nil
}

func (p *HTMLProcessor) selectors() marketplace.Selectors {
	s := marketplace.Selectors{}
	if p.config.Selectors != nil {
		s = marketplace.Selectors{
			Item:  p.config.Selectors.Item,
			Title: p.config.Selectors.Title,
			Link:  p.config.Selectors.Link,
			Price: p.config.Selectors.Price,
		}
	}
	return s
}
