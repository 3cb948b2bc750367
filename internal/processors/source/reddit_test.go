package source

import (
	"context"
	"errors"
	"testing"

	"github.com/bakkerme/dealwatch/internal/config"
	"github.com/bakkerme/dealwatch/internal/sources/reddit"
	redditmock "github.com/bakkerme/dealwatch/internal/sources/reddit/mock"
)

func TestRedditProcessorBuildsListingsFromPosts(t *testing.T) {
	fetcher := &redditmock.Fetcher{ItemsBySubreddit: map[string][]reddit.Item{
		"frugalmalefashion": {
			{Title: "[The North Face] Thermoball Jacket - $29.99 at REI", Permalink: "https://www.reddit.com/r/fmf/comments/1/", Score: 120},
			{Title: "[The North Face] Thermoball Vest", Permalink: "https://www.reddit.com/r/fmf/comments/2/", Body: "Down to $18 with code", Score: 40},
			{Title: "Daily questions thread", Permalink: "https://www.reddit.com/r/fmf/comments/3/", Body: "ask here", Score: 3},
			{Title: "Thermoball $10 (low effort)", Permalink: "https://www.reddit.com/r/fmf/comments/4/", Score: 1},
		},
		"buildapcsales": {
			{Title: "[The North Face] Thermoball Jacket - $29.99 at REI", Permalink: "https://www.reddit.com/r/fmf/comments/1/", Score: 50},
		},
	}}
	p, err := NewRedditProcessor("reddit_deals", &config.RedditSource{
		Subreddits: []string{"frugalmalefashion", "buildapcsales"},
		Sort:       "new",
		Limit:      50,
		MinScore:   2,
	}, fetcher)
	if err != nil {
		t.Fatalf("NewRedditProcessor failed: %v", err)
	}
	blocks, err := p.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(blocks) != 2 {
		t.Fatalf("expected 2 listings, got %d", len(blocks))
	}
	if blocks[0].Link != "https://www.reddit.com/r/fmf/comments/1/" || blocks[0].Price.String() != "29.99" {
		t.Fatalf("unexpected first listing %#v", blocks[0])
	}
	if blocks[1].Price.String() != "18" || blocks[1].PriceText != "Down to $18 with code" {
		t.Fatalf("expected body price, got %#v", blocks[1])
	}
	if blocks[0].Source != "reddit_deals" {
		t.Fatalf("expected source reddit_deals, got %q", blocks[0].Source)
	}
	if len(fetcher.Calls) != 2 || fetcher.Calls[0].Sort != "new" || fetcher.Calls[0].Limit != 50 {
		t.Fatalf("unexpected fetch options %#v", fetcher.Calls)
	}
}

func TestRedditProcessorFailsWholeFetch(t *testing.T) {
	fetcher := &redditmock.Fetcher{
		ItemsBySubreddit: map[string][]reddit.Item{"a": {{Title: "x $1", Permalink: "https://www.reddit.com/r/a/1"}}},
		ErrBySubreddit:   map[string]error{"b": errors.New("429 too many requests")},
	}
	p, err := NewRedditProcessor("reddit", &config.RedditSource{Subreddits: []string{"a", "b"}}, fetcher)
	if err != nil {
		t.Fatalf("NewRedditProcessor failed: %v", err)
	}
	blocks, err := p.Fetch(context.Background())
	if !errors.Is(err, ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
	if blocks != nil {
		t.Fatalf("expected no listings on failure, got %d", len(blocks))
	}
}

func TestNewRedditProcessorRequiresSubreddits(t *testing.T) {
	if _, err := NewRedditProcessor("reddit", &config.RedditSource{}, &redditmock.Fetcher{}); err == nil {
		t.Fatalf("expected error without subreddits")
	}
}
