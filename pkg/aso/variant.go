package aso

import (
	"context"
	"errors"
	"fmt"

	"github.com/elonfeng/asoradar/pkg/market"
	"github.com/elonfeng/asoradar/pkg/opportunity"
)

// Store names a marketplace.
type Store string

const (
	GooglePlay Store = "gplay"
	AppStore   Store = "itunes"
)

// ErrUnknownStore is returned for a store name with no variant.
var ErrUnknownStore = errors.New("unknown store")

// Variant holds everything that differs between marketplaces.
type Variant interface {
	Store() Store
	// SearchLimit caps the results of one search.
	SearchLimit() int
	// ListLimit caps the size of one collection.
	ListLimit() int
	// Installs is the listing field that stands in for install volume.
	Installs() opportunity.InstallsMetric
	SuggestScore(ctx context.Context, s market.Suggester, kw string) (opportunity.Suggest, error)
}

// VariantFor returns the variant of store.
func VariantFor(store Store) (Variant, error) {
	switch store {
	case GooglePlay:
		return gplayVariant{}, nil
	case AppStore:
		return itunesVariant{}, nil
	}
	return nil, fmt.Errorf("%q: %w", store, ErrUnknownStore)
}

type gplayVariant struct{}

func (gplayVariant) Store() Store                         { return GooglePlay }
func (gplayVariant) SearchLimit() int                     { return 250 }
func (gplayVariant) ListLimit() int                       { return 120 }
func (gplayVariant) Installs() opportunity.InstallsMetric { return opportunity.MinInstalls }

func (gplayVariant) SuggestScore(ctx context.Context, s market.Suggester, kw string) (opportunity.Suggest, error) {
	return opportunity.SuggestPrefixScore(ctx, s, kw)
}

type itunesVariant struct{}

func (itunesVariant) Store() Store                         { return AppStore }
func (itunesVariant) SearchLimit() int                     { return 200 }
func (itunesVariant) ListLimit() int                       { return 100 }
func (itunesVariant) Installs() opportunity.InstallsMetric { return opportunity.ReviewCount }

func (itunesVariant) SuggestScore(ctx context.Context, s market.Suggester, kw string) (opportunity.Suggest, error) {
	return opportunity.SuggestPresenceScore(ctx, s, kw)
}
