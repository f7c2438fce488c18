package opportunity

import (
	"context"
	"errors"
	"fmt"

	"github.com/elonfeng/asoradar/pkg/keyword"
	"github.com/elonfeng/asoradar/pkg/market"
	"golang.org/x/sync/errgroup"
)

// Strategy selects how candidate apps are gathered.
type Strategy string

const (
	// StrategySimilar uses the marketplace's similar apps of AppID.
	StrategySimilar Strategy = "similar"
	// StrategyCategory uses the top collection of AppID's category.
	StrategyCategory Strategy = "category"
	// StrategyCompetition searches the top keywords extracted from AppID.
	StrategyCompetition Strategy = "competition"
	// StrategyKeywords searches each of Keywords.
	StrategyKeywords Strategy = "keywords"
	// StrategyArbitrary resolves AppIDs directly.
	StrategyArbitrary Strategy = "arbitrary"
)

// StrategySearchSize is the result count of each search a strategy runs.
const StrategySearchSize = 10

// Catalog is the data access a strategy needs.
type Catalog interface {
	market.Searcher
	market.AppFetcher
	market.SimilarFetcher
	market.Lister
}

// StrategyOptions are the inputs of AppsByStrategy. Which fields matter
// depends on Strategy.
type StrategyOptions struct {
	Strategy Strategy
	AppID    string
	AppIDs   []string
	Keywords []string
	// ListSize bounds the category collection (default: RankedListSize).
	ListSize  int
	Extractor keyword.Extractor
}

// AppsByStrategy resolves a strategy to candidate listings. A strategy
// missing its input, an unknown strategy, or one the source cannot serve
// yields no listings and no error.
func AppsByStrategy(ctx context.Context, c Catalog, opts StrategyOptions) ([]market.Listing, error) {
	apps, err := appsByStrategy(ctx, c, opts)
	if errors.Is(err, market.ErrUnsupportedOperation) {
		return nil, nil
	}
	return apps, err
}

func appsByStrategy(ctx context.Context, c Catalog, opts StrategyOptions) ([]market.Listing, error) {
	if opts.Extractor == nil {
		opts.Extractor = keyword.NewTokenizer()
	}
	if opts.ListSize <= 0 {
		opts.ListSize = RankedListSize
	}

	switch opts.Strategy {
	case StrategySimilar:
		if opts.AppID == "" {
			return nil, nil
		}
		return c.Similar(ctx, market.Params{AppID: opts.AppID, FullDetail: true})

	case StrategyCategory:
		if opts.AppID == "" {
			return nil, nil
		}
		app, err := c.App(ctx, market.Params{AppID: opts.AppID})
		if err != nil {
			return nil, err
		}
		coll := market.TopPaid
		if app.Free {
			coll = market.TopFree
		}
		return c.List(ctx, market.Params{
			Collection: coll,
			Category:   app.CategoryID,
			Num:        opts.ListSize,
			FullDetail: true,
		})

	case StrategyCompetition:
		if opts.AppID == "" {
			return nil, nil
		}
		app, err := c.App(ctx, market.Params{AppID: opts.AppID})
		if err != nil {
			return nil, err
		}
		words, err := opts.Extractor.Extract(ctx, app.Title+" "+app.Description)
		if err != nil {
			return nil, fmt.Errorf("extract keywords of %s: %w", app.ID, err)
		}
		if len(words) > TopKeywords {
			words = words[:TopKeywords]
		}
		return searchAll(ctx, c, words)

	case StrategyKeywords:
		if len(opts.Keywords) == 0 {
			return nil, nil
		}
		return searchAll(ctx, c, opts.Keywords)

	case StrategyArbitrary:
		if len(opts.AppIDs) == 0 {
			return nil, nil
		}
		apps := make([]market.Listing, len(opts.AppIDs))
		g, gctx := errgroup.WithContext(ctx)
		for i, id := range opts.AppIDs {
			g.Go(func() error {
				app, err := c.App(gctx, market.Params{AppID: id})
				if err != nil {
					return err
				}
				apps[i] = *app
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return apps, nil
	}
	return nil, nil
}

// searchAll runs one search per term and merges the results, first
// occurrence of each app id wins.
func searchAll(ctx context.Context, s market.Searcher, terms []string) ([]market.Listing, error) {
	results := make([][]market.Listing, len(terms))
	g, gctx := errgroup.WithContext(ctx)
	for i, term := range terms {
		g.Go(func() error {
			res, err := s.Search(gctx, market.Params{Term: term, Num: StrategySearchSize, FullDetail: true})
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var merged []market.Listing
	for _, res := range results {
		for _, l := range res {
			if _, ok := seen[l.ID]; ok {
				continue
			}
			seen[l.ID] = struct{}{}
			merged = append(merged, l)
		}
	}
	return merged, nil
}
