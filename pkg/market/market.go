// Package market defines the marketplace listing model and the data source
// capabilities a keyword scorer can draw on.
package market

import (
	"context"
	"errors"
	"time"
)

// Listing is one app as seen in a marketplace result.
type Listing struct {
	ID          string    `json:"appId" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description,omitempty" db:"description"`
	Developer   string    `json:"developer,omitempty" db:"developer"`
	Rating      float64   `json:"score" db:"rating"` // 0-5
	Free        bool      `json:"free" db:"free"`
	CategoryID  string    `json:"genreId,omitempty" db:"category_id"`
	Reviews     int64     `json:"reviews" db:"reviews"`
	Installs    int64     `json:"minInstalls" db:"installs"`
	Updated     time.Time `json:"updated" db:"updated"`
	URL         string    `json:"url,omitempty" db:"url"`
}

// Collection names a ranked marketplace list.
type Collection string

const (
	TopFree     Collection = "TOP_FREE"
	TopPaid     Collection = "TOP_PAID"
	TopGrossing Collection = "TOP_GROSSING"
	NewFree     Collection = "NEW_FREE"
)

// Operation names a data source call.
type Operation string

const (
	OpSearch  Operation = "search"
	OpApp     Operation = "app"
	OpSimilar Operation = "similar"
	OpSuggest Operation = "suggest"
	OpList    Operation = "list"
)

// Params carries the arguments of any operation. Each operation reads only
// the fields it needs.
type Params struct {
	Term       string
	Num        int
	FullDetail bool
	AppID      string
	Collection Collection
	Category   string
	Country    string
	Language   string
	Timeout    time.Duration
}

// ErrUnsupportedOperation is returned when a source lacks the capability an
// operation needs. It is a configuration error and is never retried.
var ErrUnsupportedOperation = errors.New("unsupported operation")

// ErrNotFound is returned when an app id does not resolve to a listing.
var ErrNotFound = errors.New("listing not found")

// DataSource is the minimum every marketplace backend implements. The
// operations it supports are the capability interfaces below.
type DataSource interface {
	Name() string
}

// Searcher runs keyword searches.
type Searcher interface {
	Search(ctx context.Context, p Params) ([]Listing, error)
}

// AppFetcher resolves a single listing by id.
type AppFetcher interface {
	App(ctx context.Context, p Params) (*Listing, error)
}

// SimilarFetcher returns listings the marketplace considers similar to an app.
type SimilarFetcher interface {
	Similar(ctx context.Context, p Params) ([]Listing, error)
}

// Suggester returns autocomplete suggestions for a prefix.
type Suggester interface {
	Suggest(ctx context.Context, p Params) ([]string, error)
}

// Lister returns a ranked collection, optionally narrowed to a category.
type Lister interface {
	List(ctx context.Context, p Params) ([]Listing, error)
}

// Supports reports whether src implements op.
func Supports(src DataSource, op Operation) bool {
	switch op {
	case OpSearch:
		_, ok := src.(Searcher)
		return ok
	case OpApp:
		_, ok := src.(AppFetcher)
		return ok
	case OpSimilar:
		_, ok := src.(SimilarFetcher)
		return ok
	case OpSuggest:
		_, ok := src.(Suggester)
		return ok
	case OpList:
		_, ok := src.(Lister)
		return ok
	}
	return false
}
