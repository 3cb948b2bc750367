package reddit

import (
	"context"
	"time"
)

// Sorts accepted by FetchOptions.Sort.
const (
	SortNew    = "new"
	SortHot    = "hot"
	SortRising = "rising"
	SortTop    = "top"
)

// FetchOptions controls a subreddit listing request.
type FetchOptions struct {
	Limit int
	Sort  string
	// TimeFilter applies to SortTop only (hour, day, week, ...).
	TimeFilter string
}

// Item is a single post of a deals subreddit.
type Item struct {
	ID        string
	Title     string
	Permalink string
	URL       string
	Body      string
	Score     int
	CreatedAt time.Time
}

// Fetcher lists the posts of one subreddit.
type Fetcher interface {
	Fetch(ctx context.Context, subreddit string, options FetchOptions) ([]Item, error)
}
