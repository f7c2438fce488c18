// Package source implements live marketplace data sources over HTTP.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/elonfeng/asoradar/pkg/market"
)

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// New returns the live source for a store name.
func New(store string, client *http.Client) (market.DataSource, error) {
	switch store {
	case "itunes":
		return NewAppStore(WithAppStoreClient(client)), nil
	case "gplay":
		return NewGooglePlay(WithGooglePlayClient(client)), nil
	}
	return nil, fmt.Errorf("no live source for store %q", store)
}

func defaultClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

// withTimeout applies the per-request timeout hint, if any.
func withTimeout(ctx context.Context, p market.Params) (context.Context, context.CancelFunc) {
	if p.Timeout > 0 {
		return context.WithTimeout(ctx, p.Timeout)
	}
	return context.WithCancel(ctx)
}

// fetch issues a GET and returns the body of a 200 response.
func fetch(ctx context.Context, client *http.Client, endpoint string, header http.Header) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request %s: %w", endpoint, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", endpoint, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: %w", endpoint, market.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: status %d", endpoint, resp.StatusCode)
	}
	return resp.Body, nil
}

func fetchJSON(ctx context.Context, client *http.Client, endpoint string, v any) error {
	body, err := fetch(ctx, client, endpoint, nil)
	if err != nil {
		return err
	}
	defer body.Close()

	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return nil
}

var appleIDPattern = regexp.MustCompile(`id(\d+)`)

// installsPattern matches install badges like "10M+" or "1,000,000+".
var installsPattern = regexp.MustCompile(`^([\d.,]+)\s*([KMB]?)\+?$`)

// parseInstalls turns an install badge into its lower bound.
func parseInstalls(s string) int64 {
	m := installsPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0
	}
	n, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0
	}
	switch m[2] {
	case "K":
		n *= 1_000
	case "M":
		n *= 1_000_000
	case "B":
		n *= 1_000_000_000
	}
	return int64(n)
}

// flexNumber accepts a JSON number or a number in a string.
type flexNumber float64

func (f *flexNumber) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("parse number %s: %w", b, err)
	}
	*f = flexNumber(v)
	return nil
}
