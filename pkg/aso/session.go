// Package aso scores app store search keywords against one marketplace.
package aso

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/elonfeng/asoradar/pkg/keyword"
	"github.com/elonfeng/asoradar/pkg/market"
	"github.com/elonfeng/asoradar/pkg/opportunity"
	"github.com/elonfeng/asoradar/pkg/request"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	// AnalysisSearchSize is how many results a keyword analysis fetches.
	AnalysisSearchSize = 100
	// AnalysisSampleSize is how many of those results are scored.
	AnalysisSampleSize = 10
)

// ErrEmptyKeyword is returned when a keyword is blank.
var ErrEmptyKeyword = errors.New("empty keyword")

// Config holds the session-wide request settings.
type Config struct {
	Country  string
	Language string
	// Throttle is the minimum spacing between marketplace requests.
	Throttle time.Duration
	// Timeout is passed to the data source with every request.
	Timeout time.Duration
	// Cache is accepted for compatibility and has no effect.
	Cache bool
	// RetryDelay is the wait before the first retry of a failed request.
	RetryDelay time.Duration
}

// DefaultConfig returns us/en, 20ms throttle and a 10s timeout.
func DefaultConfig() Config {
	return Config{
		Country:    "us",
		Language:   "en",
		Throttle:   20 * time.Millisecond,
		Timeout:    10 * time.Second,
		Cache:      true,
		RetryDelay: time.Second,
	}
}

// Session binds one marketplace variant to one data source. Every
// marketplace call goes through the session's executor, so all of them share
// a single pacing gate.
type Session struct {
	variant   Variant
	cfg       Config
	exec      *request.Executor
	extractor keyword.Extractor
	log       logrus.FieldLogger
	now       func() time.Time
}

// Option customizes a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Session) { s.log = l }
}

// WithExtractor replaces the default tokenizer.
func WithExtractor(e keyword.Extractor) Option {
	return func(s *Session) { s.extractor = e }
}

// WithClock sets the time source used for listing age.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// NewSession creates a session for store over src.
func NewSession(store Store, src market.DataSource, cfg Config, opts ...Option) (*Session, error) {
	v, err := VariantFor(store)
	if err != nil {
		return nil, err
	}

	s := &Session{
		variant:   v,
		cfg:       cfg,
		extractor: keyword.NewTokenizer(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		l := logrus.New()
		l.SetOutput(os.Stderr)
		s.log = l
	}
	s.log = s.log.WithField("store", string(store))

	s.exec = request.New(src, request.Options{
		Country:    cfg.Country,
		Language:   cfg.Language,
		Timeout:    cfg.Timeout,
		Throttle:   cfg.Throttle,
		RetryDelay: cfg.RetryDelay,
		Logger:     s.log,
	})
	return s, nil
}

// Store returns the session's marketplace.
func (s *Session) Store() Store { return s.variant.Store() }

// Config returns the session settings.
func (s *Session) Config() Config { return s.cfg }

// Search runs a keyword search, capped at the marketplace's search limit.
func (s *Session) Search(ctx context.Context, term string, num int, fullDetail bool) ([]market.Listing, error) {
	if num <= 0 || num > s.variant.SearchLimit() {
		num = s.variant.SearchLimit()
	}
	return s.exec.Search(ctx, market.Params{Term: term, Num: num, FullDetail: fullDetail})
}

// AppInfo fetches one listing.
func (s *Session) AppInfo(ctx context.Context, appID string) (*market.Listing, error) {
	return s.exec.App(ctx, market.Params{AppID: appID})
}

// SimilarApps fetches the listings the marketplace relates to appID.
func (s *Session) SimilarApps(ctx context.Context, appID string) ([]market.Listing, error) {
	return s.exec.Similar(ctx, market.Params{AppID: appID, FullDetail: true})
}

// Suggestions fetches autocomplete suggestions for term.
func (s *Session) Suggestions(ctx context.Context, term string) ([]string, error) {
	return s.exec.Suggest(ctx, market.Params{Term: term})
}

// Collection fetches a ranked collection, capped at the marketplace's list limit.
func (s *Session) Collection(ctx context.Context, coll market.Collection, category string, num int) ([]market.Listing, error) {
	if num <= 0 || num > s.variant.ListLimit() {
		num = s.variant.ListLimit()
	}
	return s.exec.List(ctx, market.Params{Collection: coll, Category: category, Num: num})
}

// AnalyzeKeyword scores kw from the top results of a fresh search.
func (s *Session) AnalyzeKeyword(ctx context.Context, kw string) (*opportunity.ScoreResult, error) {
	kw = strings.TrimSpace(kw)
	if kw == "" {
		return nil, ErrEmptyKeyword
	}

	results, err := s.exec.Search(ctx, market.Params{Term: kw, Num: AnalysisSearchSize, FullDetail: true})
	if err != nil {
		return nil, fmt.Errorf("analyze %q: %w", kw, err)
	}
	return s.analyze(ctx, kw, results)
}

func (s *Session) analyze(ctx context.Context, kw string, results []market.Listing) (*opportunity.ScoreResult, error) {
	sample := results
	if len(sample) > AnalysisSampleSize {
		sample = sample[:AnalysisSampleSize]
	}

	var res opportunity.ScoreResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := opportunity.ComputeDifficulty(gctx, kw, sample, opportunity.DifficultyOptions{
			Extractor: s.extractor,
			Installs:  s.variant.Installs(),
			Now:       s.now(),
		})
		if err != nil {
			return fmt.Errorf("difficulty: %w", err)
		}
		res.Difficulty = d
		return nil
	})
	g.Go(func() error {
		t, err := opportunity.ComputeTraffic(gctx, kw, sample, opportunity.TrafficOptions{
			Suggester: s.exec,
			Lister:    s.exec,
			Suggest:   s.variant.SuggestScore,
			Installs:  s.variant.Installs(),
			Logger:    s.log.WithField("keyword", kw),
		})
		if err != nil {
			return fmt.Errorf("traffic: %w", err)
		}
		res.Traffic = t
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("analyze %q: %w", kw, err)
	}
	return &res, nil
}
