package mock

import (
	"context"

	"github.com/bakkerme/dealwatch/internal/sources/reddit"
)

type Fetcher struct {
	ItemsBySubreddit map[string][]reddit.Item
	ErrBySubreddit   map[string]error
	Calls            []reddit.FetchOptions
}

func (f *Fetcher) Fetch(ctx context.Context, subreddit string, options reddit.FetchOptions) ([]reddit.Item, error) {
	_ = ctx
	f.Calls = append(f.Calls, options)
	if err, ok := f.ErrBySubreddit[subreddit]; ok {
		return nil, err
	}
	return f.ItemsBySubreddit[subreddit], nil
}
