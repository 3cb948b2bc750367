package mock

import (
	"context"

	"github.com/bakkerme/dealwatch/internal/sources/marketplace"
)

type Fetcher struct {
	Items []marketplace.Item
	Err   error
	Calls int
}

func (f *Fetcher) Fetch(ctx context.Context, searchURL string, options marketplace.FetchOptions) ([]marketplace.Item, error) {
	_ = ctx
	f.Calls++
	if f.Err != nil {
		return nil, f.Err
	}
	return append([]marketplace.Item(nil), f.Items...), nil
}
