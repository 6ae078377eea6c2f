package source

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/reillywatson/dorastats/internal/feed"
	"github.com/reillywatson/dorastats/internal/snapshot"
)

// Bundle is everything a render needs: the snapshot and the summary feeds
type Bundle struct {
	Store *snapshot.Store
	Feeds map[int]*feed.Result
}

// LoadBundle fetches the snapshot and every requested feed period
// concurrently. Any failure fails the whole bundle.
func LoadBundle(ctx context.Context, location string, open Opener, feeds feed.Fetcher, periods []int) (*Bundle, error) {
	if open == nil {
		open = Open
	}
	g, gctx := errgroup.WithContext(ctx)

	var store *snapshot.Store
	g.Go(func() error {
		s, err := open(gctx, location)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		store = s
		return nil
	})

	results := make([]*feed.Result, len(periods))
	if feeds != nil {
		for i, period := range periods {
			i, period := i, period
			g.Go(func() error {
				res, err := feeds.Fetch(gctx, period)
				if err != nil {
					return err
				}
				results[i] = res
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	b := &Bundle{Store: store, Feeds: make(map[int]*feed.Result, len(periods))}
	for i, period := range periods {
		if results[i] != nil {
			b.Feeds[period] = results[i]
		}
	}
	return b, nil
}
