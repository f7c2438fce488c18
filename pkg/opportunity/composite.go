package opportunity

import (
	"context"
	"fmt"
	"time"

	"github.com/elonfeng/asoradar/pkg/keyword"
	"github.com/elonfeng/asoradar/pkg/market"
	"github.com/elonfeng/asoradar/pkg/score"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	// DifficultyWeights apply to title matches, competitors, installs, rating and age.
	DifficultyWeights = score.MustWeights(4, 3, 5, 2, 1)
	// TrafficWeights apply to suggest, ranked, installs and length.
	TrafficWeights = score.MustWeights(8, 3, 2, 1)
)

// Difficulty estimates how hard it is to rank for a keyword.
type Difficulty struct {
	TitleMatches TitleMatches `json:"titleMatches"`
	Competitors  Competitors  `json:"competitors"`
	Installs     Installs     `json:"installs"`
	Rating       Rating       `json:"rating"`
	Age          Age          `json:"age"`
	Score        float64      `json:"score"`
}

// Traffic estimates how much search volume a keyword has.
type Traffic struct {
	Suggest  Suggest  `json:"suggest"`
	Ranked   Ranked   `json:"ranked"`
	Installs Installs `json:"installs"`
	Length   Length   `json:"length"`
	Score    float64  `json:"score"`
}

// ScoreResult is the full analysis of one keyword.
type ScoreResult struct {
	Difficulty Difficulty `json:"difficulty"`
	Traffic    Traffic    `json:"traffic"`
}

// DifficultyOptions supplies the marketplace specifics of the difficulty score.
type DifficultyOptions struct {
	Extractor keyword.Extractor
	Installs  InstallsMetric
	Now       time.Time
}

// ComputeDifficulty runs the difficulty sub-scores concurrently and combines them.
func ComputeDifficulty(ctx context.Context, kw string, listings []market.Listing, opts DifficultyOptions) (Difficulty, error) {
	if opts.Extractor == nil {
		opts.Extractor = keyword.NewTokenizer()
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	var d Difficulty
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d.TitleMatches = TitleMatchScore(kw, listings)
		return nil
	})
	g.Go(func() error {
		c, err := CompetitorScore(gctx, kw, listings, opts.Extractor)
		if err != nil {
			return fmt.Errorf("competitor score: %w", err)
		}
		d.Competitors = c
		return nil
	})
	g.Go(func() error {
		d.Installs = InstallsScore(listings, opts.Installs)
		return nil
	})
	g.Go(func() error {
		d.Rating = RatingScore(listings)
		return nil
	})
	g.Go(func() error {
		d.Age = AgeScore(listings, opts.Now)
		return nil
	})
	if err := g.Wait(); err != nil {
		return Difficulty{}, err
	}

	d.Score = DifficultyWeights.Combine(
		d.TitleMatches.Score,
		d.Competitors.Score,
		d.Installs.Score,
		d.Rating.Score,
		d.Age.Score,
	)
	return d, nil
}

// TrafficOptions supplies the data access and marketplace specifics of the
// traffic score.
type TrafficOptions struct {
	Suggester market.Suggester
	Lister    market.Lister
	Suggest   SuggestScorer
	Installs  InstallsMetric
	Logger    logrus.FieldLogger
}

// ComputeTraffic runs the traffic sub-scores concurrently and combines them.
func ComputeTraffic(ctx context.Context, kw string, listings []market.Listing, opts TrafficOptions) (Traffic, error) {
	if opts.Suggest == nil {
		opts.Suggest = SuggestPresenceScore
	}

	var t Traffic
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := opts.Suggest(gctx, opts.Suggester, kw)
		if err != nil {
			return fmt.Errorf("suggest score: %w", err)
		}
		t.Suggest = s
		return nil
	})
	g.Go(func() error {
		t.Ranked = RankedScore(gctx, opts.Lister, listings, opts.Logger)
		return nil
	})
	g.Go(func() error {
		t.Installs = InstallsScore(listings, opts.Installs)
		return nil
	})
	g.Go(func() error {
		t.Length = LengthScore(kw)
		return nil
	})
	if err := g.Wait(); err != nil {
		return Traffic{}, err
	}

	t.Score = TrafficWeights.Combine(
		t.Suggest.Score,
		t.Ranked.Score,
		t.Installs.Score,
		t.Length.Score,
	)
	return t, nil
}
