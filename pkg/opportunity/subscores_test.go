package opportunity

import (
	"context"
	"testing"
	"time"

	"github.com/elonfeng/asoradar/pkg/keyword"
	"github.com/elonfeng/asoradar/pkg/market"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTitleMatchScore(t *testing.T) {
	listings := []market.Listing{
		{Title: "Photo Editor Pro"},
		{Title: "Editor for Photo"},
		{Title: "Photo Collage"},
		{Title: "Music Player"},
	}

	got := TitleMatchScore("photo editor", listings)
	assert.Equal(t, TitleMatches{Exact: 1, Broad: 1, Partial: 1, None: 1, Score: 4.38}, got)
}

func TestTitleMatchScoreAllExact(t *testing.T) {
	listings := make([]market.Listing, 10)
	for i := range listings {
		listings[i] = market.Listing{Title: "Chess Clock"}
	}

	got := TitleMatchScore("chess clock", listings)
	assert.Equal(t, 10, got.Exact)
	assert.Equal(t, 10.0, got.Score)
}

func TestTitleMatchScoreFloor(t *testing.T) {
	assert.Equal(t, 1.0, TitleMatchScore("chess", nil).Score)
	assert.Equal(t, 1.0, TitleMatchScore("chess", []market.Listing{{Title: "Sudoku"}}).Score)
}

func TestCompetitorScore(t *testing.T) {
	listings := []market.Listing{
		{ID: "a", Title: "Chess Master"},
		{ID: "b", Title: "Chess Clock"},
		{ID: "c", Title: "Puzzle Game"},
		// chess is the eleventh keyword here, outside the top ten.
		{ID: "d", Description: "alpha beta gamma delta epsilon zeta eta theta iota kappa chess"},
	}

	got, err := CompetitorScore(context.Background(), "Chess", listings, keyword.NewTokenizer())
	require.NoError(t, err)
	assert.Equal(t, Competitors{Count: 2, Score: 5.5}, got)
}

func TestCompetitorScoreExtractorError(t *testing.T) {
	failing := keyword.ExtractorFunc(func(context.Context, string) ([]string, error) {
		return nil, errBoom
	})

	_, err := CompetitorScore(context.Background(), "chess", []market.Listing{{ID: "a"}}, failing)
	assert.ErrorIs(t, err, errBoom)
}

func TestInstallsScore(t *testing.T) {
	listings := []market.Listing{
		{Installs: 500_000, Reviews: 50_000},
		{Installs: 1_500_000, Reviews: 0},
	}

	assert.Equal(t, Installs{Avg: 1_000_000, Score: 10}, InstallsScore(listings, MinInstalls))
	assert.Equal(t, Installs{Avg: 25_000, Score: 3.25}, InstallsScore(listings, ReviewCount))
	assert.Equal(t, Installs{Score: 1}, InstallsScore(nil, MinInstalls))
}

func TestRatingScoreIsNotClamped(t *testing.T) {
	got := RatingScore([]market.Listing{{Rating: 4.5}, {Rating: 5}})
	assert.Equal(t, Rating{Avg: 4.75, Score: 9.5}, got)

	got = RatingScore([]market.Listing{{Rating: 6}, {Rating: 6}})
	assert.Equal(t, 12.0, got.Score)

	assert.Equal(t, Rating{}, RatingScore(nil))
}

func TestRatingScoreIsNotRounded(t *testing.T) {
	got := RatingScore([]market.Listing{{Rating: 4}, {Rating: 4}, {Rating: 4.5}})
	assert.InDelta(t, 12.5/3, got.Avg, 1e-9)
	assert.InDelta(t, 25.0/3, got.Score, 1e-9)
	assert.NotEqual(t, 8.33, got.Score)
}

func TestAgeScore(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	listings := []market.Listing{
		{Updated: now.AddDate(0, 0, -50)},
		{Updated: now.AddDate(0, 0, -150)},
	}

	got := AgeScore(listings, now)
	assert.Equal(t, Age{AvgDaysSinceUpdated: 100, Score: 8.2}, got)

	assert.Equal(t, 1.0, AgeScore([]market.Listing{{}}, now).Score)
	assert.Equal(t, 1.0, AgeScore(nil, now).Score)
}

func TestLengthScore(t *testing.T) {
	assert.Equal(t, Length{Length: 5, Score: 2.5}, LengthScore("chess"))
	assert.Equal(t, Length{Length: 0, Score: 1}, LengthScore(""))
	assert.Equal(t, 10.0, LengthScore("a keyword that is longer than twenty five").Score)
}

func TestSuggestPresenceScore(t *testing.T) {
	f := &fakeCatalog{suggestions: map[string][]string{"chess": {"chess clock"}}}

	got, err := SuggestPresenceScore(context.Background(), f, "chess")
	require.NoError(t, err)
	assert.Equal(t, Suggest{Score: 6.63}, got)

	got, err = SuggestPresenceScore(context.Background(), f, "zzzz")
	require.NoError(t, err)
	assert.Equal(t, Suggest{Score: 1}, got)
}

func TestSuggestPrefixScore(t *testing.T) {
	f := &fakeCatalog{suggestions: map[string][]string{
		"c":  {"candy crush", "clash"},
		"ch": {"chrome", "Chess", "chat"},
	}}

	got, err := SuggestPrefixScore(context.Background(), f, "chess")
	require.NoError(t, err)
	require.NotNil(t, got.Length)
	require.NotNil(t, got.Index)
	assert.Equal(t, 2, *got.Length)
	assert.Equal(t, 1, *got.Index)
	assert.Equal(t, 9.46, got.Score)
	assert.Equal(t, []string{"suggest:c", "suggest:ch"}, f.calls)
}

func TestSuggestPrefixScoreBoundedLoop(t *testing.T) {
	f := &fakeCatalog{}
	kw := "a very long keyword that never surfaces"

	got, err := SuggestPrefixScore(context.Background(), f, kw)
	require.NoError(t, err)
	assert.Equal(t, Suggest{Score: 1}, got)
	assert.Len(t, f.calls, MaxKeywordLength)
}

func TestRankedScore(t *testing.T) {
	f := &fakeCatalog{lists: map[string][]market.Listing{
		"TOP_FREE/GAME": {{ID: "a"}, {ID: "x"}, {ID: "b"}},
		"TOP_PAID/GAME": {{ID: "y"}},
	}}
	listings := []market.Listing{
		{ID: "a", Free: true, CategoryID: "GAME"},
		{ID: "b", Free: true, CategoryID: "GAME"},
		{ID: "c", Free: false, CategoryID: "GAME"},
	}

	got := RankedScore(context.Background(), f, listings, nil)
	require.NotNil(t, got.AvgRank)
	assert.Equal(t, 2, got.Count)
	assert.Equal(t, 2.0, *got.AvgRank)
	assert.Equal(t, 7.48, got.Score)
}

func TestRankedScoreDegrades(t *testing.T) {
	logger, hook := test.NewNullLogger()
	f := &fakeCatalog{listErr: errBoom}

	got := RankedScore(context.Background(), f, []market.Listing{{ID: "a", Free: true}}, logger)
	assert.Equal(t, Ranked{Score: 1}, got)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "ranked score degraded", hook.LastEntry().Message)

	got = RankedScore(context.Background(), &fakeCatalog{}, []market.Listing{{ID: "a"}}, logger)
	assert.Equal(t, Ranked{Score: 1}, got)
}
