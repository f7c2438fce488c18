package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/elonfeng/asoradar/pkg/market"
	"github.com/mmcdole/gofeed"
)

// storefronts maps a country code to its App Store front id.
var storefronts = map[string]string{
	"us": "143441", "gb": "143444", "ca": "143455", "au": "143460",
	"de": "143443", "fr": "143442", "es": "143454", "it": "143450",
	"nl": "143452", "se": "143456", "br": "143503", "mx": "143468",
	"jp": "143462", "kr": "143466", "cn": "143465", "in": "143467",
	"ru": "143469", "tr": "143480",
}

// AppStore reads the Apple App Store through the iTunes search API,
// the search hints service and the top chart feeds. It has no notion of
// similar apps.
type AppStore struct {
	client   *http.Client
	parser   *gofeed.Parser
	apiURL   string
	hintsURL string
}

// AppStoreOption customizes an AppStore.
type AppStoreOption func(*AppStore)

// WithAppStoreClient sets the HTTP client.
func WithAppStoreClient(c *http.Client) AppStoreOption {
	return func(a *AppStore) {
		if c != nil {
			a.client = c
		}
	}
}

// WithAppStoreURLs points the source at other hosts.
func WithAppStoreURLs(api, hints string) AppStoreOption {
	return func(a *AppStore) {
		a.apiURL = strings.TrimRight(api, "/")
		a.hintsURL = strings.TrimRight(hints, "/")
	}
}

// NewAppStore creates an App Store source.
func NewAppStore(opts ...AppStoreOption) *AppStore {
	a := &AppStore{
		client:   defaultClient(),
		parser:   gofeed.NewParser(),
		apiURL:   "https://itunes.apple.com",
		hintsURL: "https://search.itunes.apple.com",
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *AppStore) Name() string { return "itunes" }

type itunesApp struct {
	TrackID                   int64      `json:"trackId"`
	TrackName                 string     `json:"trackName"`
	Description               string     `json:"description"`
	ArtistName                string     `json:"artistName"`
	AverageUserRating         flexNumber `json:"averageUserRating"`
	UserRatingCount           int64      `json:"userRatingCount"`
	Price                     flexNumber `json:"price"`
	PrimaryGenreID            int64      `json:"primaryGenreId"`
	CurrentVersionReleaseDate string     `json:"currentVersionReleaseDate"`
	TrackViewURL              string     `json:"trackViewUrl"`
}

type itunesResponse struct {
	ResultCount int         `json:"resultCount"`
	Results     []itunesApp `json:"results"`
}

func (r itunesApp) listing() market.Listing {
	l := market.Listing{
		ID:          strconv.FormatInt(r.TrackID, 10),
		Title:       r.TrackName,
		Description: r.Description,
		Developer:   r.ArtistName,
		Rating:      float64(r.AverageUserRating),
		Free:        r.Price == 0,
		Reviews:     r.UserRatingCount,
		URL:         r.TrackViewURL,
	}
	if r.PrimaryGenreID != 0 {
		l.CategoryID = strconv.FormatInt(r.PrimaryGenreID, 10)
	}
	if t, err := time.Parse(time.RFC3339, r.CurrentVersionReleaseDate); err == nil {
		l.Updated = t
	}
	return l
}

func country(p market.Params) string {
	if p.Country == "" {
		return "us"
	}
	return strings.ToLower(p.Country)
}

// Search queries the iTunes search API. Its results always carry full detail.
func (a *AppStore) Search(ctx context.Context, p market.Params) ([]market.Listing, error) {
	ctx, cancel := withTimeout(ctx, p)
	defer cancel()

	q := url.Values{}
	q.Set("term", p.Term)
	q.Set("media", "software")
	q.Set("entity", "software")
	q.Set("country", country(p))
	if p.Language != "" {
		q.Set("lang", p.Language)
	}
	if p.Num > 0 {
		q.Set("limit", strconv.Itoa(p.Num))
	}

	var resp itunesResponse
	if err := fetchJSON(ctx, a.client, a.apiURL+"/search?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("itunes search %q: %w", p.Term, err)
	}

	listings := make([]market.Listing, 0, len(resp.Results))
	for _, r := range resp.Results {
		listings = append(listings, r.listing())
	}
	return listings, nil
}

// App looks up one app by numeric id or bundle id.
func (a *AppStore) App(ctx context.Context, p market.Params) (*market.Listing, error) {
	ctx, cancel := withTimeout(ctx, p)
	defer cancel()

	listings, err := a.lookup(ctx, []string{p.AppID}, country(p))
	if err != nil {
		return nil, err
	}
	if len(listings) == 0 {
		return nil, fmt.Errorf("itunes app %s: %w", p.AppID, market.ErrNotFound)
	}
	return &listings[0], nil
}

func (a *AppStore) lookup(ctx context.Context, ids []string, cc string) ([]market.Listing, error) {
	q := url.Values{}
	q.Set("country", cc)
	q.Set("entity", "software")
	if len(ids) == 1 && !isNumeric(ids[0]) {
		q.Set("bundleId", ids[0])
	} else {
		q.Set("id", strings.Join(ids, ","))
	}

	var resp itunesResponse
	if err := fetchJSON(ctx, a.client, a.apiURL+"/lookup?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("itunes lookup: %w", err)
	}
	listings := make([]market.Listing, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.TrackID == 0 {
			continue
		}
		listings = append(listings, r.listing())
	}
	return listings, nil
}

// Suggest reads the search hints for a term. The hints service answers
// with a property list; every <key>term</key> is followed by the hint.
func (a *AppStore) Suggest(ctx context.Context, p market.Params) ([]string, error) {
	ctx, cancel := withTimeout(ctx, p)
	defer cancel()

	q := url.Values{}
	q.Set("clientApplication", "Software")
	q.Set("term", p.Term)

	front, ok := storefronts[country(p)]
	if !ok {
		front = storefronts["us"]
	}
	header := http.Header{"X-Apple-Store-Front": {front + ",29"}}

	body, err := fetch(ctx, a.client, a.hintsURL+"/WebObjects/MZSearchHints.woa/wa/hints?"+q.Encode(), header)
	if err != nil {
		return nil, fmt.Errorf("itunes hints %q: %w", p.Term, err)
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parse itunes hints: %w", err)
	}

	var hints []string
	doc.Find("key").Each(func(_ int, s *goquery.Selection) {
		if strings.TrimSpace(s.Text()) != "term" {
			return
		}
		if hint := strings.TrimSpace(s.NextFiltered("string").Text()); hint != "" {
			hints = append(hints, hint)
		}
	})
	return hints, nil
}

// chartFeeds maps collections to top chart feed names.
var chartFeeds = map[market.Collection]string{
	market.TopFree:     "topfreeapplications",
	market.TopPaid:     "toppaidapplications",
	market.TopGrossing: "topgrossingapplications",
	market.NewFree:     "newfreeapplications",
}

// List reads a top chart feed. With FullDetail set the chart entries are
// resolved through one batched lookup, keeping chart order.
func (a *AppStore) List(ctx context.Context, p market.Params) ([]market.Listing, error) {
	ctx, cancel := withTimeout(ctx, p)
	defer cancel()

	feed, ok := chartFeeds[p.Collection]
	if !ok {
		return nil, fmt.Errorf("itunes collection %q: %w", p.Collection, market.ErrUnsupportedOperation)
	}
	num := p.Num
	if num <= 0 || num > 200 {
		num = 200
	}

	endpoint := fmt.Sprintf("%s/%s/rss/%s/limit=%d", a.apiURL, country(p), feed, num)
	if p.Category != "" {
		endpoint += "/genre=" + url.PathEscape(p.Category)
	}
	endpoint += "/xml"

	body, err := fetch(ctx, a.client, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("itunes chart %s: %w", p.Collection, err)
	}
	defer body.Close()

	parsed, err := a.parser.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse itunes chart %s: %w", p.Collection, err)
	}

	free := p.Collection != market.TopPaid
	var listings []market.Listing
	for _, entry := range parsed.Items {
		id := chartEntryID(entry)
		if id == "" {
			continue
		}
		listings = append(listings, market.Listing{
			ID:         id,
			Title:      chartEntryName(entry),
			Free:       free,
			CategoryID: p.Category,
			URL:        entry.Link,
		})
	}

	if !p.FullDetail || len(listings) == 0 {
		return listings, nil
	}

	ids := make([]string, len(listings))
	for i, l := range listings {
		ids[i] = l.ID
	}
	detailed, err := a.lookup(ctx, ids, country(p))
	if err != nil {
		return nil, err
	}
	byID := make(map[string]market.Listing, len(detailed))
	for _, d := range detailed {
		byID[d.ID] = d
	}
	for i, l := range listings {
		if d, ok := byID[l.ID]; ok {
			listings[i] = d
		}
	}
	return listings, nil
}

func chartEntryID(entry *gofeed.Item) string {
	for _, s := range []string{entry.GUID, entry.Link} {
		if m := appleIDPattern.FindStringSubmatch(s); m != nil {
			return m[1]
		}
	}
	return ""
}

func chartEntryName(entry *gofeed.Item) string {
	if names := entry.Extensions["im"]["name"]; len(names) > 0 && names[0].Value != "" {
		return names[0].Value
	}
	return entry.Title
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}
