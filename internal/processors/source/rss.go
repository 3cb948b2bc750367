package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/bakkerme/dealwatch/internal/config"
	"github.com/bakkerme/dealwatch/internal/core"
	"github.com/bakkerme/dealwatch/internal/sources/marketplace"
	"github.com/bakkerme/dealwatch/internal/sources/rss"
)

// RSSProcessor reads listings from marketplace search feeds. The price is
// taken from the entry title, falling back to its description.
type RSSProcessor struct {
	name       string
	sourceName string
	config     config.RSSSource
	fetcher    rss.Fetcher
}

// Compile-time check that RSSProcessor implements core.SourceProcessor.
var _ core.SourceProcessor = (*RSSProcessor)(nil)

func NewRSSProcessor(sourceName string, cfg *config.RSSSource, fetcher rss.Fetcher) (*RSSProcessor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("rss config is required")
	}
	p := &RSSProcessor{
		name:       "rss",
		sourceName: sourceName,
		config:     *cfg,
		fetcher:    fetcher,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *RSSProcessor) Name() string {
	return p.name
}

func (p *RSSProcessor) Validate() error {
	if len(p.config.Feeds) == 0 {
		return fmt.Errorf("at least one rss feed is required")
	}
	if p.fetcher == nil {
		return fmt.Errorf("rss fetcher is required")
	}
	return nil
}

func (p *RSSProcessor) Fetch(ctx context.Context) ([]*core.ListingBlock, error) {
	logger := core.LoggerFromContext(ctx)
	options := rss.FetchOptions{
		Limit:     p.config.Limit,
		UserAgent: p.config.UserAgent,
	}

	blocks := []*core.ListingBlock{}
	seen := map[string]bool{}
	for _, feedURL := range p.config.Feeds {
		items, err := p.fetcher.Fetch(ctx, feedURL, options)
		if err != nil {
			return nil, fetchErr("feed "+feedURL, err)
		}
		base, _ := url.Parse(feedURL)
		for _, item := range items {
			priceText := item.Title
			price, ok := marketplace.ParsePrice(priceText)
			if !ok {
				priceText = item.Description
				price, ok = marketplace.ParsePrice(priceText)
			}
			block := newBlock(ctx, p.sourceName, base, candidate{
				title: item.Title,
				link:  item.Link,
				price: price,
				text:  priceText,
				ok:    ok,
			})
			if block == nil || seen[block.Link] {
				continue
			}
			seen[block.Link] = true
			blocks = append(blocks, block)
		}
		logger.Info("Fetched feed", slog.String("source", p.sourceName), slog.String("feed", feedURL), slog.Int("raw", len(items)))
	}
	return blocks, nil
}
