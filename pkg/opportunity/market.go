package opportunity

import (
	"strings"
	"unicode/utf8"

	"github.com/elonfeng/asoradar/pkg/market"
	"github.com/elonfeng/asoradar/pkg/score"
)

// DefaultSaturationThreshold is the install count that marks a listing as established.
const DefaultSaturationThreshold = 10_000

var opportunityWeights = score.MustWeights(4, 3, 3)

// MarketSaturation is the share of listings with at least threshold installs,
// times 10. It is not normalized; an empty sample is 0.
func MarketSaturation(listings []market.Listing, threshold int64) float64 {
	if len(listings) == 0 {
		return 0
	}
	established := 0
	for _, l := range listings {
		if l.Installs >= threshold {
			established++
		}
	}
	return score.Round(float64(established*10) / float64(len(listings)))
}

// MarketOpportunity rewards low saturation, low difficulty and high traffic.
func MarketOpportunity(saturation, difficulty, traffic float64) float64 {
	return opportunityWeights.Combine(10-saturation, 10-difficulty, traffic)
}

// Gap lists qualitative differences between one listing and its competitors.
type Gap struct {
	Advantages    []string `json:"advantages"`
	Disadvantages []string `json:"disadvantages"`
	Opportunities []string `json:"opportunities"`
}

// CompetitiveGap compares app against the mean of competitors.
func CompetitiveGap(app market.Listing, competitors []market.Listing) Gap {
	gap := Gap{
		Advantages:    []string{},
		Disadvantages: []string{},
		Opportunities: []string{},
	}
	if len(competitors) == 0 {
		return gap
	}

	var rating, installs, titleLen, descLen, reviews float64
	for _, c := range competitors {
		rating += c.Rating
		installs += float64(c.Installs)
		titleLen += float64(utf8.RuneCountInString(c.Title))
		descLen += float64(utf8.RuneCountInString(c.Description))
		reviews += float64(c.Reviews)
	}
	n := float64(len(competitors))
	rating, installs, titleLen, descLen, reviews = rating/n, installs/n, titleLen/n, descLen/n, reviews/n

	switch {
	case app.Rating > rating:
		gap.Advantages = append(gap.Advantages, "Higher rating than competitors")
	case app.Rating < rating:
		gap.Disadvantages = append(gap.Disadvantages, "Lower rating than competitors")
	}
	if float64(app.Installs) < installs*0.8 {
		gap.Opportunities = append(gap.Opportunities, "Potential for install growth")
	}
	if float64(utf8.RuneCountInString(app.Title)) < titleLen*0.7 {
		gap.Opportunities = append(gap.Opportunities, "Title could be optimized for keywords")
	}
	if float64(utf8.RuneCountInString(app.Description)) < descLen*0.8 {
		gap.Opportunities = append(gap.Opportunities, "Description could be expanded")
	}
	if float64(app.Reviews) < reviews*0.5 {
		gap.Opportunities = append(gap.Opportunities, "Could improve review volume")
	}
	return gap
}

var (
	relevancyWeights = score.MustWeights(6, 4)
	relevancyScale   = score.MustScale(1, MaxKeywordLength)
)

// KeywordRelevancy scores a keyword on its shape alone: moderate lengths and
// two or three words score best.
func KeywordRelevancy(kw string) float64 {
	n := float64(utf8.RuneCountInString(kw))
	if n > 20 {
		n *= 0.8
	}

	var words float64
	switch len(strings.Fields(kw)) {
	case 2, 3:
		words = 10
	case 1:
		words = 7
	case 4:
		words = 6
	default:
		words = 4
	}
	return relevancyWeights.Combine(relevancyScale.Linear(n), words)
}
