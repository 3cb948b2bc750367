package impl

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	goreddit "github.com/vartanbeno/go-reddit/v2/reddit"

	"github.com/bakkerme/dealwatch/internal/sources/reddit"
)

const defaultLimit = 25

// Credentials enable the authenticated API. Without all four fields the
// fetcher uses the read-only client.
type Credentials struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
}

func (c Credentials) complete() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.Username != "" && c.Password != ""
}

type Fetcher struct {
	client  *goreddit.Client
	initErr error
}

func NewFetcher(timeout time.Duration, userAgent string, creds Credentials) *Fetcher {
	if userAgent == "" {
		userAgent = "dealwatch/0.1"
	}
	opts := []goreddit.Opt{
		goreddit.WithHTTPClient(&http.Client{Timeout: timeout}),
		goreddit.WithUserAgent(userAgent),
	}

	var (
		client *goreddit.Client
		err    error
	)
	if creds.complete() {
		client, err = goreddit.NewClient(goreddit.Credentials{
			ID:       creds.ClientID,
			Secret:   creds.ClientSecret,
			Username: creds.Username,
			Password: creds.Password,
		}, opts...)
	} else {
		client, err = goreddit.NewReadonlyClient(opts...)
	}
	return &Fetcher{client: client, initErr: err}
}

// Fetch makes one listing request for subreddit. Like the other sources it
// does not retry.
func (f *Fetcher) Fetch(ctx context.Context, subreddit string, options reddit.FetchOptions) ([]reddit.Item, error) {
	if f.initErr != nil {
		return nil, fmt.Errorf("reddit client: %w", f.initErr)
	}
	subreddit = strings.TrimPrefix(strings.TrimSpace(subreddit), "r/")
	if subreddit == "" {
		return nil, fmt.Errorf("subreddit is required")
	}
	limit := options.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	list := &goreddit.ListOptions{Limit: limit}

	var (
		posts []*goreddit.Post
		err   error
	)
	switch strings.ToLower(options.Sort) {
	case "", reddit.SortNew:
		posts, _, err = f.client.Subreddit.NewPosts(ctx, subreddit, list)
	case reddit.SortHot:
		posts, _, err = f.client.Subreddit.HotPosts(ctx, subreddit, list)
	case reddit.SortRising:
		posts, _, err = f.client.Subreddit.RisingPosts(ctx, subreddit, list)
	case reddit.SortTop:
		posts, _, err = f.client.Subreddit.TopPosts(ctx, subreddit, &goreddit.ListPostOptions{
			ListOptions: *list,
			Time:        options.TimeFilter,
		})
	default:
		return nil, fmt.Errorf("unsupported reddit sort %q", options.Sort)
	}
	if err != nil {
		return nil, fmt.Errorf("list r/%s: %w", subreddit, err)
	}

	items := make([]reddit.Item, 0, len(posts))
	for _, post := range posts {
		if post == nil {
			continue
		}
		items = append(items, toItem(post))
	}
	return items, nil
}

func toItem(post *goreddit.Post) reddit.Item {
	item := reddit.Item{
		ID:        post.ID,
		Title:     post.Title,
		Permalink: canonicalPostURL(post.Permalink),
		Body:      post.Body,
		Score:     post.Score,
	}
	if !post.IsSelfPost {
		item.URL = post.URL
	}
	if post.Created != nil {
		item.CreatedAt = post.Created.Time.UTC()
	}
	return item
}

func canonicalPostURL(permalink string) string {
	switch {
	case permalink == "":
		return ""
	case strings.HasPrefix(permalink, "http://"), strings.HasPrefix(permalink, "https://"):
		return permalink
	case strings.HasPrefix(permalink, "/"):
		return "https://www.reddit.com" + permalink
	default:
		return "https://www.reddit.com/" + permalink
	}
}
