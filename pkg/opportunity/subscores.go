// Package opportunity scores a keyword from one snapshot of competing
// listings. Each sub-score lands on the 1-10 scale of package score, except
// the rating sub-score which is reported unclamped.
package opportunity

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/elonfeng/asoradar/pkg/keyword"
	"github.com/elonfeng/asoradar/pkg/market"
	"github.com/elonfeng/asoradar/pkg/score"
	"golang.org/x/sync/errgroup"
)

const (
	// TopKeywords is how many extracted keywords of a listing count as its own.
	TopKeywords = 10
	// MaxKeywordLength bounds the suggest prefix search and the length scale.
	MaxKeywordLength = 25
)

// TitleMatches counts how sample titles match the keyword.
type TitleMatches struct {
	Exact   int     `json:"exact"`
	Broad   int     `json:"broad"`
	Partial int     `json:"partial"`
	None    int     `json:"none"`
	Score   float64 `json:"score"`
}

// Competitors counts listings that target the keyword.
type Competitors struct {
	Count int     `json:"count"`
	Score float64 `json:"score"`
}

// Installs is the sample mean of the marketplace's install proxy.
type Installs struct {
	Avg   float64 `json:"avg"`
	Score float64 `json:"score"`
}

// Rating is the sample mean rating. Score is Avg*2 and is not clamped.
type Rating struct {
	Avg   float64 `json:"avg"`
	Score float64 `json:"score"`
}

// Age is the mean number of days since the sample was last updated.
type Age struct {
	AvgDaysSinceUpdated float64 `json:"avgDaysSinceUpdated"`
	Score               float64 `json:"score"`
}

// Length scores the keyword's character length.
type Length struct {
	Length int     `json:"length"`
	Score  float64 `json:"score"`
}

// InstallsMetric selects which listing field stands in for install volume
// and the value that maps to a full score.
type InstallsMetric struct {
	Name    string
	Ceiling float64
	Value   func(market.Listing) int64
}

// Install proxies used by the two marketplace variants.
var (
	MinInstalls = InstallsMetric{
		Name:    "minInstalls",
		Ceiling: 1_000_000,
		Value:   func(l market.Listing) int64 { return l.Installs },
	}
	ReviewCount = InstallsMetric{
		Name:    "reviews",
		Ceiling: 100_000,
		Value:   func(l market.Listing) int64 { return l.Reviews },
	}
)

// TitleMatchScore weighs exact, broad and partial title matches:
// (10*exact + 5*broad + 2.5*partial) / n, kept within [1, 10].
func TitleMatchScore(kw string, listings []market.Listing) TitleMatches {
	var m TitleMatches
	for _, l := range listings {
		switch keyword.Match(kw, l.Title) {
		case keyword.MatchExact:
			m.Exact++
		case keyword.MatchBroad:
			m.Broad++
		case keyword.MatchPartial:
			m.Partial++
		default:
			m.None++
		}
	}
	if len(listings) == 0 {
		m.Score = score.Min
		return m
	}
	raw := (10*float64(m.Exact) + 5*float64(m.Broad) + 2.5*float64(m.Partial)) / float64(len(listings))
	m.Score = score.Round(score.Clamp(raw))
	return m
}

// CompetitorScore counts listings whose top extracted keywords include kw.
// Extraction runs concurrently, one goroutine per listing.
func CompetitorScore(ctx context.Context, kw string, listings []market.Listing, ex keyword.Extractor) (Competitors, error) {
	if len(listings) == 0 {
		return Competitors{Score: score.Min}, nil
	}

	target := strings.ToLower(strings.TrimSpace(kw))
	hits := make([]bool, len(listings))

	g, gctx := errgroup.WithContext(ctx)
	for i, l := range listings {
		g.Go(func() error {
			words, err := ex.Extract(gctx, l.Title+" "+l.Description)
			if err != nil {
				return fmt.Errorf("extract keywords of %s: %w", l.ID, err)
			}
			if len(words) > TopKeywords {
				words = words[:TopKeywords]
			}
			for _, w := range words {
				if strings.ToLower(w) == target {
					hits[i] = true
					break
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Competitors{}, err
	}

	var c Competitors
	for _, hit := range hits {
		if hit {
			c.Count++
		}
	}
	c.Score = score.MustScale(0, float64(len(listings))).Linear(float64(c.Count))
	return c, nil
}

// InstallsScore averages the metric over the sample against its ceiling.
func InstallsScore(listings []market.Listing, metric InstallsMetric) Installs {
	if len(listings) == 0 {
		return Installs{Score: score.Min}
	}
	var sum float64
	for _, l := range listings {
		sum += float64(metric.Value(l))
	}
	avg := sum / float64(len(listings))
	return Installs{
		Avg:   score.Round(avg),
		Score: score.MustScale(0, metric.Ceiling).Linear(avg),
	}
}

// RatingScore doubles the mean rating. The result is neither clamped nor
// rounded.
func RatingScore(listings []market.Listing) Rating {
	if len(listings) == 0 {
		return Rating{}
	}
	var sum float64
	for _, l := range listings {
		sum += l.Rating
	}
	avg := sum / float64(len(listings))
	return Rating{Avg: avg, Score: avg * 2}
}

var ageScale = score.MustScale(0, 500)

// AgeScore scores recently updated samples high; a sample idle for 500 days
// or more scores 1.
func AgeScore(listings []market.Listing, now time.Time) Age {
	if len(listings) == 0 {
		return Age{Score: score.Min}
	}
	var sum float64
	for _, l := range listings {
		sum += float64(keyword.DaysSince(l.Updated, now))
	}
	avg := sum / float64(len(listings))
	return Age{
		AvgDaysSinceUpdated: score.Round(avg),
		Score:               ageScale.Inverse(avg),
	}
}

var keywordLengthScale = score.MustScale(1, MaxKeywordLength)

// LengthScore maps the keyword's character length over [1, 25].
func LengthScore(kw string) Length {
	n := utf8.RuneCountInString(kw)
	return Length{Length: n, Score: keywordLengthScale.Linear(float64(n))}
}
