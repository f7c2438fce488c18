package aso

import (
	"context"
	"fmt"
	"strings"

	"github.com/elonfeng/asoradar/pkg/market"
	"github.com/elonfeng/asoradar/pkg/opportunity"
	"golang.org/x/sync/errgroup"
)

// DefaultSuggestCount is how many keywords Suggest returns by default.
const DefaultSuggestCount = 30

// SuggestOptions drive keyword suggestions. Strategy defaults to category.
type SuggestOptions struct {
	Strategy opportunity.Strategy `json:"strategy"`
	AppID    string               `json:"appId,omitempty"`
	AppIDs   []string             `json:"apps,omitempty"`
	// Keywords are the seeds of the keywords strategy. They are never suggested back.
	Keywords []string `json:"keywords,omitempty"`
	Num      int      `json:"num,omitempty"`
}

// Suggest proposes keywords drawn from the apps a strategy selects.
func (s *Session) Suggest(ctx context.Context, opts SuggestOptions) ([]string, error) {
	if opts.Strategy == "" {
		opts.Strategy = opportunity.StrategyCategory
	}
	if opts.Num <= 0 {
		opts.Num = DefaultSuggestCount
	}

	apps, err := opportunity.AppsByStrategy(ctx, s.exec, opportunity.StrategyOptions{
		Strategy:  opts.Strategy,
		AppID:     opts.AppID,
		AppIDs:    opts.AppIDs,
		Keywords:  opts.Keywords,
		ListSize:  s.variant.ListLimit(),
		Extractor: s.extractor,
	})
	if err != nil {
		return nil, fmt.Errorf("suggest by %s: %w", opts.Strategy, err)
	}

	perApp := make([][]string, len(apps))
	g, gctx := errgroup.WithContext(ctx)
	for i, app := range apps {
		g.Go(func() error {
			words, err := s.extractor.Extract(gctx, app.Title+" "+app.Description)
			if err != nil {
				return fmt.Errorf("extract keywords of %s: %w", app.ID, err)
			}
			perApp[i] = words
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seeds := make(map[string]struct{}, len(opts.Keywords))
	for _, k := range opts.Keywords {
		seeds[strings.ToLower(strings.TrimSpace(k))] = struct{}{}
	}

	seen := make(map[string]struct{})
	out := []string{}
	for _, words := range perApp {
		for _, w := range words {
			if _, ok := seen[w]; ok {
				continue
			}
			seen[w] = struct{}{}
			if _, ok := seeds[w]; ok {
				continue
			}
			out = append(out, w)
			if len(out) == opts.Num {
				return out, nil
			}
		}
	}
	return out, nil
}

// AppKeywords extracts the keywords of one listing's title and description.
func (s *Session) AppKeywords(ctx context.Context, appID string) ([]string, error) {
	app, err := s.AppInfo(ctx, appID)
	if err != nil {
		return nil, err
	}
	return s.extractor.Extract(ctx, app.Title+" "+app.Description)
}

// MarketReport combines saturation with the keyword analysis of one search.
type MarketReport struct {
	Keyword     string                   `json:"keyword"`
	Opportunity float64                  `json:"opportunity"`
	Saturation  float64                  `json:"saturation"`
	Competition *opportunity.ScoreResult `json:"competition"`
	// Competitors are the leading search results the scores were drawn from.
	Competitors []market.Listing `json:"competitors"`
}

// MarketOpportunity rates how favorable kw is to target.
func (s *Session) MarketOpportunity(ctx context.Context, kw string) (*MarketReport, error) {
	kw = strings.TrimSpace(kw)
	if kw == "" {
		return nil, ErrEmptyKeyword
	}

	results, err := s.exec.Search(ctx, market.Params{Term: kw, Num: AnalysisSearchSize, FullDetail: true})
	if err != nil {
		return nil, fmt.Errorf("market opportunity %q: %w", kw, err)
	}

	res, err := s.analyze(ctx, kw, results)
	if err != nil {
		return nil, err
	}

	saturation := opportunity.MarketSaturation(results, opportunity.DefaultSaturationThreshold)
	return &MarketReport{
		Keyword:     kw,
		Opportunity: opportunity.MarketOpportunity(saturation, res.Difficulty.Score, res.Traffic.Score),
		Saturation:  saturation,
		Competition: res,
		Competitors: results[:min(len(results), AnalysisSampleSize)],
	}, nil
}

// CompareApps reports the competitive gap of appID against competitorID.
func (s *Session) CompareApps(ctx context.Context, appID, competitorID string) (opportunity.Gap, error) {
	var app, competitor *market.Listing
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		app, err = s.AppInfo(gctx, appID)
		return err
	})
	g.Go(func() error {
		var err error
		competitor, err = s.AppInfo(gctx, competitorID)
		return err
	})
	if err := g.Wait(); err != nil {
		return opportunity.Gap{}, fmt.Errorf("compare %s with %s: %w", appID, competitorID, err)
	}
	return opportunity.CompetitiveGap(*app, []market.Listing{*competitor}), nil
}
