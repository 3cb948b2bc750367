package source

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bakkerme/dealwatch/internal/config"
	"github.com/bakkerme/dealwatch/internal/core"
	"github.com/bakkerme/dealwatch/internal/sources/marketplace"
	"github.com/bakkerme/dealwatch/internal/sources/reddit"
)

// RedditProcessor reads deal posts from subreddits such as
// r/frugalmalefashion. A post is a listing when its title, or failing that its
// body, carries a dollar price. The post permalink is the listing link.
type RedditProcessor struct {
	name       string
	sourceName string
	config     config.RedditSource
	fetcher    reddit.Fetcher
}

// Compile-time check that RedditProcessor implements core.SourceProcessor.
var _ core.SourceProcessor = (*RedditProcessor)(nil)

func NewRedditProcessor(sourceName string, cfg *config.RedditSource, fetcher reddit.Fetcher) (*RedditProcessor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("reddit config is required")
	}
	p := &RedditProcessor{
		name:       "reddit",
		sourceName: sourceName,
		config:     *cfg,
		fetcher:    fetcher,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *RedditProcessor) Name() string {
	return p.name
}

func (p *RedditProcessor) Validate() error {
	if len(p.config.Subreddits) == 0 {
		return fmt.Errorf("at least one subreddit is required")
	}
	if p.fetcher == nil {
		return fmt.Errorf("reddit fetcher is required")
	}
	return nil
}

func (p *RedditProcessor) Fetch(ctx context.Context) ([]*core.ListingBlock, error) {
	logger := core.LoggerFromContext(ctx)
	options := reddit.FetchOptions{
		Limit:      p.config.Limit,
		Sort:       p.config.Sort,
		TimeFilter: p.config.TimeFilter,
	}

	blocks := []*core.ListingBlock{}
	seen := map[string]bool{}
	for _, subreddit := range p.config.Subreddits {
		items, err := p.fetcher.Fetch(ctx, subreddit, options)
		if err != nil {
			return nil, fetchErr("subreddit "+subreddit, err)
		}
		for _, item := range items {
			if p.config.MinScore > 0 && item.Score < p.config.MinScore {
				logger.Debug("Dropping low score post", slog.String("link", item.Permalink), slog.Int("score", item.Score))
				continue
			}
			priceText := item.Title
			price, ok := marketplace.ParsePrice(priceText)
			if !ok {
				priceText = item.Body
				price, ok = marketplace.ParsePrice(priceText)
			}
			block := newBlock(ctx, p.sourceName, nil, candidate{
				title: item.Title,
				link:  item.Permalink,
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
		logger.Info("Fetched subreddit", slog.String("source", p.sourceName), slog.String("subreddit", subreddit), slog.Int("raw", len(items)))
	}
	return blocks, nil
}
