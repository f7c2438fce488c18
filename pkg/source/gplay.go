package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/elonfeng/asoradar/pkg/market"
	"golang.org/x/sync/errgroup"
)

// GooglePlay scrapes the Google Play web store. Play publishes no top
// charts, so it has no List capability.
type GooglePlay struct {
	client     *http.Client
	baseURL    string
	suggestURL string
	// detailWorkers bounds concurrent detail page fetches of one call.
	detailWorkers int
}

// GooglePlayOption customizes a GooglePlay source.
type GooglePlayOption func(*GooglePlay)

// WithGooglePlayClient sets the HTTP client.
func WithGooglePlayClient(c *http.Client) GooglePlayOption {
	return func(g *GooglePlay) {
		if c != nil {
			g.client = c
		}
	}
}

// WithGooglePlayURLs points the source at other hosts.
func WithGooglePlayURLs(store, suggest string) GooglePlayOption {
	return func(g *GooglePlay) {
		g.baseURL = strings.TrimRight(store, "/")
		g.suggestURL = strings.TrimRight(suggest, "/")
	}
}

// NewGooglePlay creates a Google Play source.
func NewGooglePlay(opts ...GooglePlayOption) *GooglePlay {
	g := &GooglePlay{
		client:        defaultClient(),
		baseURL:       "https://play.google.com",
		suggestURL:    "https://market.android.com",
		detailWorkers: 4,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *GooglePlay) Name() string { return "gplay" }

func (g *GooglePlay) locale(p market.Params) url.Values {
	q := url.Values{}
	q.Set("hl", firstNonEmpty(p.Language, "en"))
	q.Set("gl", firstNonEmpty(p.Country, "us"))
	return q
}

// Search scrapes the search result page. With FullDetail each hit's detail
// page is fetched as well.
func (g *GooglePlay) Search(ctx context.Context, p market.Params) ([]market.Listing, error) {
	ctx, cancel := withTimeout(ctx, p)
	defer cancel()

	q := g.locale(p)
	q.Set("q", p.Term)
	q.Set("c", "apps")

	doc, err := g.page(ctx, "/store/search?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("gplay search %q: %w", p.Term, err)
	}

	hits := g.detailLinks(doc, "")
	if p.Num > 0 && len(hits) > p.Num {
		hits = hits[:p.Num]
	}
	if !p.FullDetail {
		return hits, nil
	}
	return g.details(ctx, hits, p)
}

// App scrapes one detail page.
func (g *GooglePlay) App(ctx context.Context, p market.Params) (*market.Listing, error) {
	ctx, cancel := withTimeout(ctx, p)
	defer cancel()

	doc, err := g.detailPage(ctx, p.AppID, p)
	if err != nil {
		return nil, err
	}
	l := parseDetail(doc, p.AppID)
	l.URL = g.detailURL(p.AppID, p)
	return &l, nil
}

// Similar collects the other apps linked from an app's detail page.
func (g *GooglePlay) Similar(ctx context.Context, p market.Params) ([]market.Listing, error) {
	ctx, cancel := withTimeout(ctx, p)
	defer cancel()

	doc, err := g.detailPage(ctx, p.AppID, p)
	if err != nil {
		return nil, err
	}
	similar := g.detailLinks(doc, p.AppID)
	if p.Num > 0 && len(similar) > p.Num {
		similar = similar[:p.Num]
	}
	if !p.FullDetail {
		return similar, nil
	}
	return g.details(ctx, similar, p)
}

// Suggest reads the store's autocomplete endpoint.
func (g *GooglePlay) Suggest(ctx context.Context, p market.Params) ([]string, error) {
	ctx, cancel := withTimeout(ctx, p)
	defer cancel()

	q := g.locale(p)
	q.Set("json", "1")
	q.Set("c", "3")
	q.Set("query", p.Term)

	var resp []struct {
		S string `json:"s"`
		T string `json:"t"`
	}
	if err := fetchJSON(ctx, g.client, g.suggestURL+"/suggest/SuggRequest?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("gplay suggest %q: %w", p.Term, err)
	}

	out := make([]string, 0, len(resp))
	for _, s := range resp {
		if v := strings.TrimSpace(s.S); v != "" {
			out = append(out, v)
		}
	}
	return out, nil
}

func (g *GooglePlay) detailURL(id string, p market.Params) string {
	q := g.locale(p)
	q.Set("id", id)
	return g.baseURL + "/store/apps/details?" + q.Encode()
}

func (g *GooglePlay) detailPage(ctx context.Context, id string, p market.Params) (*goquery.Document, error) {
	q := g.locale(p)
	q.Set("id", id)
	doc, err := g.page(ctx, "/store/apps/details?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("gplay app %s: %w", id, err)
	}
	return doc, nil
}

func (g *GooglePlay) page(ctx context.Context, path string) (*goquery.Document, error) {
	body, err := fetch(ctx, g.client, g.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

// detailLinks lists the distinct apps linked from doc, in page order,
// skipping exclude.
func (g *GooglePlay) detailLinks(doc *goquery.Document, exclude string) []market.Listing {
	seen := map[string]bool{exclude: true}
	var out []market.Listing
	doc.Find(`a[href*="/store/apps/details?id="]`).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		u, err := url.Parse(href)
		if err != nil {
			return
		}
		id := u.Query().Get("id")
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		out = append(out, market.Listing{
			ID:    id,
			Title: firstNonEmpty(s.AttrOr("aria-label", ""), textOrFallback(s.Find("span"), ""), strings.TrimSpace(s.Text())),
			URL:   g.baseURL + "/store/apps/details?id=" + url.QueryEscape(id),
		})
	})
	return out
}

// details resolves listings to full detail, preserving order. Any page that
// fails to load fails the whole call so the caller can retry it.
func (g *GooglePlay) details(ctx context.Context, listings []market.Listing, p market.Params) ([]market.Listing, error) {
	out := make([]market.Listing, len(listings))
	copy(out, listings)

	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(g.detailWorkers)
	for i, l := range listings {
		eg.Go(func() error {
			doc, err := g.detailPage(ectx, l.ID, p)
			if err != nil {
				return fmt.Errorf("detail %s: %w", l.ID, err)
			}
			d := parseDetail(doc, l.ID)
			d.URL = l.URL
			out[i] = d
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ldApp is the schema.org SoftwareApplication block of a detail page.
type ldApp struct {
	Type                string `json:"@type"`
	Name                string `json:"name"`
	Description         string `json:"description"`
	ApplicationCategory string `json:"applicationCategory"`
	Author              struct {
		Name string `json:"name"`
	} `json:"author"`
	AggregateRating struct {
		RatingValue flexNumber `json:"ratingValue"`
		RatingCount flexNumber `json:"ratingCount"`
	} `json:"aggregateRating"`
	Offers []struct {
		Price flexNumber `json:"price"`
	} `json:"offers"`
}

func parseDetail(doc *goquery.Document, id string) market.Listing {
	l := market.Listing{ID: id, Free: true}

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var app ldApp
		if err := json.Unmarshal([]byte(s.Text()), &app); err != nil || app.Type != "SoftwareApplication" {
			return true
		}
		l.Title = app.Name
		l.Description = app.Description
		l.Developer = app.Author.Name
		l.CategoryID = app.ApplicationCategory
		l.Rating = float64(app.AggregateRating.RatingValue)
		l.Reviews = int64(app.AggregateRating.RatingCount)
		for _, o := range app.Offers {
			if o.Price > 0 {
				l.Free = false
			}
		}
		return false
	})

	if l.Title == "" {
		l.Title = textOrFallback(doc.Find("h1"), "")
	}
	if l.Description == "" {
		l.Description = firstNonEmpty(
			textOrFallback(doc.Find(`[data-g-id="description"]`), ""),
			doc.Find(`meta[name="description"]`).AttrOr("content", ""),
		)
	}

	doc.Find("div").Each(func(_ int, s *goquery.Selection) {
		switch strings.TrimSpace(s.Text()) {
		case "Downloads":
			if n := parseInstalls(s.Prev().Text()); n > 0 {
				l.Installs = n
			}
		case "Updated on":
			if t, err := time.Parse("Jan 2, 2006", strings.TrimSpace(s.Next().Text())); err == nil {
				l.Updated = t
			}
		}
	})
	return l
}

func textOrFallback(sel *goquery.Selection, fallback string) string {
	value := strings.TrimSpace(sel.First().Text())
	if value == "" {
		return fallback
	}
	return value
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
