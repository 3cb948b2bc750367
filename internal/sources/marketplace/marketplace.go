package marketplace

import (
	"context"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Selectors locate listing fields on a search-results page.
type Selectors struct {
	Item  string
	Title string
	Link  string
	Price string
}

// DefaultSelectors match eBay's classic search results markup.
var DefaultSelectors = Selectors{
	Item:  "li.s-item",
	Title: "h3.s-item__title",
	Link:  "a.s-item__link",
	Price: ".s-item__price",
}

// FetchOptions controls a single search page fetch.
type FetchOptions struct {
	UserAgent string
	Selectors Selectors
}

// Item is a raw candidate as found on the page. Any field may be empty.
type Item struct {
	Title     string
	Link      string
	PriceText string
}

// Fetcher fetches and parses a marketplace search page.
type Fetcher interface {
	Fetch(ctx context.Context, searchURL string, options FetchOptions) ([]Item, error)
}

var pricePattern = regexp.MustCompile(`\$\s*(\d[\d,]*(?:\.\d+)?|\.\d+)`)

// ParsePrice extracts the first dollar amount from text. Ranges such as
// "$20.00 to $35.00" resolve to the lower bound. ok is false when no positive
// amount is present.
func ParsePrice(text string) (price decimal.Decimal, ok bool) {
	m := pricePattern.FindStringSubmatch(text)
	if m == nil {
		return decimal.Zero, false
	}
	price, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
	if err != nil || !price.IsPositive() {
		return decimal.Zero, false
	}
	return price, true
}
