package opportunity

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/elonfeng/asoradar/pkg/market"
	"github.com/elonfeng/asoradar/pkg/score"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// RankedListSize is how deep each collection is searched for a listing.
const RankedListSize = 120

// Suggest is the autosuggest sub-score. Length and Index are set only by
// the prefix algorithm and only when the keyword was found.
type Suggest struct {
	Length *int    `json:"length,omitempty"`
	Index  *int    `json:"index,omitempty"`
	Score  float64 `json:"score"`
}

// Ranked summarizes where sample listings rank in their own collections.
type Ranked struct {
	Count   int      `json:"count"`
	AvgRank *float64 `json:"avgRank,omitempty"`
	Score   float64  `json:"score"`
}

// SuggestScorer computes the suggest sub-score for one marketplace.
type SuggestScorer func(ctx context.Context, s market.Suggester, kw string) (Suggest, error)

var (
	presenceScale   = score.MustScale(0, 8000)
	prefixLenScale  = score.MustScale(1, MaxKeywordLength)
	prefixIdxScale  = score.MustScale(0, 4)
	prefixWeights   = score.MustWeights(10, 1)
	rankCountWeight = score.MustWeights(5, 1)
	rankScale       = score.MustScale(1, 100)
)

// SuggestPresenceScore scores whether the bare keyword yields any suggestion
// at all, using a fixed volume proxy of 5000 against a ceiling of 8000.
func SuggestPresenceScore(ctx context.Context, s market.Suggester, kw string) (Suggest, error) {
	suggestions, err := s.Suggest(ctx, market.Params{Term: kw})
	if err != nil {
		return Suggest{}, fmt.Errorf("suggest %q: %w", kw, err)
	}
	volume := 0.0
	if len(suggestions) > 0 {
		volume = 5000
	}
	return Suggest{Score: presenceScale.Linear(volume)}, nil
}

// SuggestPrefixScore types the keyword one character at a time and stops at
// the first prefix whose suggestions contain the full keyword. Shorter
// prefixes and higher positions score better. A keyword never surfaced
// within min(len, 25) characters scores 1.
func SuggestPrefixScore(ctx context.Context, s market.Suggester, kw string) (Suggest, error) {
	target := strings.ToLower(kw)
	runes := []rune(kw)
	limit := min(len(runes), MaxKeywordLength)

	for length := 1; length <= limit; length++ {
		prefix := string(runes[:length])
		suggestions, err := s.Suggest(ctx, market.Params{Term: prefix})
		if err != nil {
			return Suggest{}, fmt.Errorf("suggest %q: %w", prefix, err)
		}

		index := slices.IndexFunc(suggestions, func(sg string) bool {
			return strings.ToLower(sg) == target
		})
		if index < 0 {
			continue
		}

		return Suggest{
			Length: &length,
			Index:  &index,
			Score: prefixWeights.Combine(
				prefixLenScale.Inverse(float64(length)),
				prefixIdxScale.Inverse(float64(index)),
			),
		}, nil
	}
	return Suggest{Score: score.Min}, nil
}

// RankedScore looks up every listing in the free or paid top collection of
// its category. Lookup failures degrade to {count: 0, score: 1}.
func RankedScore(ctx context.Context, l market.Lister, listings []market.Listing, log logrus.FieldLogger) Ranked {
	degraded := Ranked{Score: score.Min}
	if len(listings) == 0 {
		return degraded
	}

	ranks := make([]int, len(listings))
	g, gctx := errgroup.WithContext(ctx)
	for i, app := range listings {
		g.Go(func() error {
			coll := market.TopPaid
			if app.Free {
				coll = market.TopFree
			}
			list, err := l.List(gctx, market.Params{
				Collection: coll,
				Category:   app.CategoryID,
				Num:        RankedListSize,
			})
			if err != nil {
				return fmt.Errorf("list %s/%s for %s: %w", coll, app.CategoryID, app.ID, err)
			}
			ranks[i] = slices.IndexFunc(list, func(x market.Listing) bool { return x.ID == app.ID }) + 1
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if log != nil {
			log.WithError(err).Warn("ranked score degraded")
		}
		return degraded
	}

	var found []int
	for _, r := range ranks {
		if r > 0 {
			found = append(found, r)
		}
	}
	if len(found) == 0 {
		return degraded
	}

	var sum float64
	for _, r := range found {
		sum += float64(r)
	}
	avg := sum / float64(len(found))
	countScore := score.MustScale(0, float64(len(listings))).Linear(float64(len(found)))
	avgRound := score.Round(avg)
	return Ranked{
		Count:   len(found),
		AvgRank: &avgRound,
		Score:   rankCountWeight.Combine(countScore, rankScale.Inverse(avg)),
	}
}
