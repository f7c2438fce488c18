package opportunity

import (
	"context"
	"errors"
	"sync"

	"github.com/elonfeng/asoradar/pkg/market"
)

var errBoom = errors.New("boom")

// fakeCatalog serves canned marketplace data keyed by term, app id or collection.
type fakeCatalog struct {
	mu          sync.Mutex
	searches    map[string][]market.Listing
	apps        map[string]market.Listing
	similar     map[string][]market.Listing
	lists       map[string][]market.Listing // key: collection + "/" + category
	suggestions map[string][]string
	listErr     error
	similarErr  error
	calls       []string
}

func (f *fakeCatalog) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeCatalog) Name() string { return "fake" }

func (f *fakeCatalog) Search(_ context.Context, p market.Params) ([]market.Listing, error) {
	f.record("search:" + p.Term)
	return f.searches[p.Term], nil
}

func (f *fakeCatalog) App(_ context.Context, p market.Params) (*market.Listing, error) {
	f.record("app:" + p.AppID)
	app, ok := f.apps[p.AppID]
	if !ok {
		return nil, market.ErrNotFound
	}
	return &app, nil
}

func (f *fakeCatalog) Similar(_ context.Context, p market.Params) ([]market.Listing, error) {
	f.record("similar:" + p.AppID)
	if f.similarErr != nil {
		return nil, f.similarErr
	}
	return f.similar[p.AppID], nil
}

func (f *fakeCatalog) List(_ context.Context, p market.Params) ([]market.Listing, error) {
	f.record("list:" + string(p.Collection) + "/" + p.Category)
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.lists[string(p.Collection)+"/"+p.Category], nil
}

func (f *fakeCatalog) Suggest(_ context.Context, p market.Params) ([]string, error) {
	f.record("suggest:" + p.Term)
	return f.suggestions[p.Term], nil
}

func ids(listings []market.Listing) []string {
	out := make([]string, len(listings))
	for i, l := range listings {
		out[i] = l.ID
	}
	return out
}
