package source

import (
	"context"
	"errors"
	"testing"

	"github.com/bakkerme/dealwatch/internal/config"
	"github.com/bakkerme/dealwatch/internal/sources/rss"
	"github.com/bakkerme/dealwatch/internal/sources/rss/mock"
)

func TestRSSProcessorParsesPriceFromTitleOrDescription(t *testing.T) {
	fetcher := &mock.Fetcher{ItemsByFeed: map[string][]rss.Item{
		"https://example.com/a.rss": {
			{Title: "Thermoball jacket - $28", Link: "https://example.com/1"},
			{Title: "Thermoball hoodie", Link: "https://example.com/2", Description: "Asking $19.50 obo"},
			{Title: "Thermoball parka", Link: "https://example.com/3", Description: "make an offer"},
		},
		"https://example.com/b.rss": {
			{Title: "Thermoball jacket - $28", Link: "https://example.com/1"},
			{Title: "Thermoball boots $45", Link: "https://example.com/4"},
		},
	}}
	p, err := NewRSSProcessor("craigslist", &config.RSSSource{
		Feeds: []string{"https://example.com/a.rss", "https://example.com/b.rss"},
	}, fetcher)
	if err != nil {
		t.Fatalf("NewRSSProcessor failed: %v", err)
	}
	blocks, err := p.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(blocks) != 3 {
		t.Fatalf("expected 3 listings, got %d", len(blocks))
	}
	want := []struct{ link, price string }{
		{"https://example.com/1", "28"},
		{"https://example.com/2", "19.5"},
		{"https://example.com/4", "45"},
	}
	for i, w := range want {
		if blocks[i].Link != w.link || blocks[i].Price.String() != w.price {
			t.Fatalf("block %d: got %s %s want %s %s", i, blocks[i].Link, blocks[i].Price, w.link, w.price)
		}
		if blocks[i].Source != "craigslist" {
			t.Fatalf("block %d: expected source craigslist, got %q", i, blocks[i].Source)
		}
	}
}

func TestRSSProcessorFailsWholeFetch(t *testing.T) {
	fetcher := &mock.Fetcher{
		ItemsByFeed: map[string][]rss.Item{"https://example.com/a.rss": {{Title: "x $1", Link: "https://example.com/1"}}},
		ErrByFeed:   map[string]error{"https://example.com/b.rss": errors.New("timeout")},
	}
	p, err := NewRSSProcessor("craigslist", &config.RSSSource{
		Feeds: []string{"https://example.com/a.rss", "https://example.com/b.rss"},
	}, fetcher)
	if err != nil {
		t.Fatalf("NewRSSProcessor failed: %v", err)
	}
	blocks, err := p.Fetch(context.Background())
	if !errors.Is(err, ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
	if blocks != nil {
		t.Fatalf("expected no partial results, got %d", len(blocks))
	}
}
