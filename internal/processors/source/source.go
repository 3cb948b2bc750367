package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bakkerme/dealwatch/internal/core"
)

// ErrFetch marks a failed listing fetch. A pass that sees it stops before
// touching the seen-set.
var ErrFetch = errors.New("fetch listings")

func fetchErr(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrFetch, what, err)
}

// candidate is a listing that still needs validating before it enters the pipeline.
type candidate struct {
	title string
	link  string
	price decimal.Decimal
	text  string
	ok    bool
}

// newBlock validates a candidate and builds its block. Listings without a
// title, link or positive price are dropped with a debug log.
func newBlock(ctx context.Context, sourceName string, base *url.URL, c candidate) *core.ListingBlock {
	logger := core.LoggerFromContext(ctx)
	title := strings.TrimSpace(c.title)
	link := resolveLink(base, strings.TrimSpace(c.link))
	switch {
	case title == "":
		logger.Debug("Dropping listing without title", slog.String("link", link))
		return nil
	case link == "":
		logger.Debug("Dropping listing without link", slog.String("title", title))
		return nil
	case !c.ok:
		logger.Debug("Dropping listing without price", slog.String("link", link), slog.String("price_text", c.text))
		return nil
	}
	return &core.ListingBlock{
		WatchID:     core.WatchIDFromContext(ctx),
		Source:      sourceName,
		Title:       title,
		Link:        link,
		Price:       c.price,
		PriceText:   c.text,
		ProcessedAt: time.Now().UTC(),
	}
}

func resolveLink(base *url.URL, link string) string {
	if link == "" || base == nil {
		return link
	}
	ref, err := url.Parse(link)
	if err != nil || ref.IsAbs() {
		return link
	}
	return base.ResolveReference(ref).String()
}
