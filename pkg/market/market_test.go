package market

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type searchOnly struct{}

func (searchOnly) Name() string { return "search-only" }

func (searchOnly) Search(context.Context, Params) ([]Listing, error) { return nil, nil }

func TestSupports(t *testing.T) {
	src := searchOnly{}

	assert.True(t, Supports(src, OpSearch))
	assert.False(t, Supports(src, OpApp))
	assert.False(t, Supports(src, OpSimilar))
	assert.False(t, Supports(src, OpSuggest))
	assert.False(t, Supports(src, OpList))
	assert.False(t, Supports(src, Operation("reviews")))
}
