package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/elonfeng/asoradar/pkg/market"
)

// Snapshot is the JSON import format: listings plus the ordered results the
// marketplace returned for searches, collections and similar-app lookups.
type Snapshot struct {
	Apps        []market.Listing    `json:"apps"`
	Searches    map[string][]string `json:"searches,omitempty"`
	Collections []CollectionEntry   `json:"collections,omitempty"`
	Similar     map[string][]string `json:"similar,omitempty"`
	Suggestions map[string][]string `json:"suggestions,omitempty"`
}

// CollectionEntry is one recorded chart.
type CollectionEntry struct {
	Collection market.Collection `json:"collection"`
	Category   string            `json:"category,omitempty"`
	Apps       []string          `json:"apps"`
}

// ReadSnapshot decodes a snapshot document.
func ReadSnapshot(r io.Reader) (*Snapshot, error) {
	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	for i, a := range snap.Apps {
		if a.ID == "" {
			return nil, fmt.Errorf("decode snapshot: app %d has no appId", i)
		}
	}
	return &snap, nil
}

// Source serves a stored snapshot through the market capability interfaces.
// It supports every operation.
type Source struct {
	st Store
}

// NewSource wraps a store as a data source.
func NewSource(st Store) *Source {
	return &Source{st: st}
}

func (s *Source) Name() string { return "snapshot" }

// Search replays a recorded search for the term, or falls back to matching
// stored listings when the term was never recorded.
func (s *Source) Search(ctx context.Context, p market.Params) ([]market.Listing, error) {
	listings, err := s.st.Ranking(ctx, KindSearch, normalizeTerm(p.Term), p.Num)
	if err != nil {
		return nil, err
	}
	if len(listings) > 0 {
		return listings, nil
	}
	return s.st.SearchListings(ctx, p.Term, p.Num)
}

func (s *Source) App(ctx context.Context, p market.Params) (*market.Listing, error) {
	return s.st.GetListing(ctx, p.AppID)
}

func (s *Source) Similar(ctx context.Context, p market.Params) ([]market.Listing, error) {
	return s.st.Ranking(ctx, KindSimilar, p.AppID, p.Num)
}

func (s *Source) Suggest(ctx context.Context, p market.Params) ([]string, error) {
	return s.st.Suggestions(ctx, p.Term, 0)
}

func (s *Source) List(ctx context.Context, p market.Params) ([]market.Listing, error) {
	return s.st.Ranking(ctx, KindCollection, CollectionKey(p.Collection, p.Category), p.Num)
}
