// Package request mediates every call to a marketplace data source: calls
// share one pacing gate and each call is retried a bounded number of times.
package request

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/elonfeng/asoradar/pkg/market"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// MaxAttempts is the default number of tries per call, first one included.
const MaxAttempts = 3

// Options configures an Executor.
type Options struct {
	Country  string
	Language string
	Timeout  time.Duration
	// Throttle is the minimum spacing between dispatched calls. Zero disables pacing.
	Throttle time.Duration
	// MaxAttempts caps tries per call (default: 3).
	MaxAttempts int
	// RetryDelay is the wait before the second attempt; it doubles after that (default: 1s).
	RetryDelay time.Duration
	Logger     logrus.FieldLogger
}

// Executor runs data source operations through the pacing gate and retry loop.
// It is safe for concurrent use.
type Executor struct {
	src         market.DataSource
	limiter     *rate.Limiter
	country     string
	language    string
	timeout     time.Duration
	maxAttempts int
	retryDelay  time.Duration
	log         logrus.FieldLogger
	tracer      trace.Tracer
}

// New binds an executor to src.
func New(src market.DataSource, opts Options) *Executor {
	limit := rate.Inf
	if opts.Throttle > 0 {
		limit = rate.Every(opts.Throttle)
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = MaxAttempts
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	if opts.Logger == nil {
		l := logrus.New()
		l.SetOutput(os.Stderr)
		opts.Logger = l
	}
	return &Executor{
		src:         src,
		limiter:     rate.NewLimiter(limit, 1),
		country:     opts.Country,
		language:    opts.Language,
		timeout:     opts.Timeout,
		maxAttempts: opts.MaxAttempts,
		retryDelay:  opts.RetryDelay,
		log:         opts.Logger.WithField("source", src.Name()),
		tracer:      otel.Tracer("github.com/elonfeng/asoradar/pkg/request"),
	}
}

// Source returns the bound data source.
func (e *Executor) Source() market.DataSource { return e.src }

// Search runs a keyword search.
func (e *Executor) Search(ctx context.Context, p market.Params) ([]market.Listing, error) {
	s, ok := e.src.(market.Searcher)
	if !ok {
		return nil, e.unsupported(market.OpSearch)
	}
	return execute(ctx, e, market.OpSearch, p, s.Search)
}

// App fetches one listing.
func (e *Executor) App(ctx context.Context, p market.Params) (*market.Listing, error) {
	s, ok := e.src.(market.AppFetcher)
	if !ok {
		return nil, e.unsupported(market.OpApp)
	}
	return execute(ctx, e, market.OpApp, p, s.App)
}

// Similar fetches listings similar to p.AppID.
func (e *Executor) Similar(ctx context.Context, p market.Params) ([]market.Listing, error) {
	s, ok := e.src.(market.SimilarFetcher)
	if !ok {
		return nil, e.unsupported(market.OpSimilar)
	}
	return execute(ctx, e, market.OpSimilar, p, s.Similar)
}

// Suggest fetches autocomplete suggestions for p.Term.
func (e *Executor) Suggest(ctx context.Context, p market.Params) ([]string, error) {
	s, ok := e.src.(market.Suggester)
	if !ok {
		return nil, e.unsupported(market.OpSuggest)
	}
	return execute(ctx, e, market.OpSuggest, p, s.Suggest)
}

// List fetches a ranked collection.
func (e *Executor) List(ctx context.Context, p market.Params) ([]market.Listing, error) {
	s, ok := e.src.(market.Lister)
	if !ok {
		return nil, e.unsupported(market.OpList)
	}
	return execute(ctx, e, market.OpList, p, s.List)
}

func (e *Executor) unsupported(op market.Operation) error {
	return fmt.Errorf("%s on %s: %w", op, e.src.Name(), market.ErrUnsupportedOperation)
}

// merge overlays the session's locale and timeout onto the caller's params.
func (e *Executor) merge(p market.Params) market.Params {
	if e.country != "" {
		p.Country = e.country
	}
	if e.language != "" {
		p.Language = e.language
	}
	if e.timeout > 0 {
		p.Timeout = e.timeout
	}
	return p
}

// execute drives one call: every attempt first takes a slot from the pacing
// gate, then dispatches. Failures go back through the gate until the
// attempt budget is spent.
func execute[T any](ctx context.Context, e *Executor, op market.Operation, p market.Params, fn func(context.Context, market.Params) (T, error)) (T, error) {
	p = e.merge(p)

	ctx, span := e.tracer.Start(ctx, "request."+string(op),
		trace.WithAttributes(
			attribute.String("source", e.src.Name()),
			attribute.String("term", p.Term),
			attribute.String("app_id", p.AppID),
		))
	defer span.End()

	attempt := 0
	operation := func() (T, error) {
		var zero T
		if err := e.limiter.Wait(ctx); err != nil {
			return zero, backoff.Permanent(err)
		}
		attempt++

		res, err := fn(ctx, p)
		if err == nil {
			return res, nil
		}
		if errors.Is(err, market.ErrUnsupportedOperation) {
			return zero, backoff.Permanent(err)
		}
		e.log.WithFields(logrus.Fields{
			"op":           op,
			"attempt":      attempt,
			"max_attempts": e.maxAttempts,
		}).WithError(err).Warn("request attempt failed")
		return zero, err
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = e.retryDelay
	exp.Multiplier = 2
	exp.RandomizationFactor = 0

	res, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(exp),
		backoff.WithMaxTries(uint(e.maxAttempts)),
	)
	span.SetAttributes(attribute.Int("attempts", attempt))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var zero T
		return zero, fmt.Errorf("%s failed after %d attempts: %w", op, attempt, err)
	}
	return res, nil
}
