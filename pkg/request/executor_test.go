package request

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/elonfeng/asoradar/pkg/market"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("connection reset")

// flakySource fails its first failures calls, then answers.
type flakySource struct {
	failures int32
	calls    atomic.Int32
	mu       sync.Mutex
	params   []market.Params
}

func (s *flakySource) Name() string { return "flaky" }

func (s *flakySource) Search(_ context.Context, p market.Params) ([]market.Listing, error) {
	s.mu.Lock()
	s.params = append(s.params, p)
	s.mu.Unlock()
	if s.calls.Add(1) <= s.failures {
		return nil, errFlaky
	}
	return []market.Listing{{ID: "com.example", Title: p.Term}}, nil
}

func newTestExecutor(src market.DataSource, opts Options) (*Executor, *test.Hook) {
	logger, hook := test.NewNullLogger()
	opts.Logger = logger
	if opts.RetryDelay == 0 {
		opts.RetryDelay = time.Millisecond
	}
	return New(src, opts), hook
}

func TestExecutorRetriesUntilSuccess(t *testing.T) {
	src := &flakySource{failures: 2}
	e, hook := newTestExecutor(src, Options{})

	got, err := e.Search(context.Background(), market.Params{Term: "chess"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "chess", got[0].Title)
	assert.EqualValues(t, 3, src.calls.Load())

	entries := hook.AllEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, logrus.WarnLevel, entries[0].Level)
	assert.Equal(t, 1, entries[0].Data["attempt"])
	assert.Equal(t, 2, entries[1].Data["attempt"])
	assert.Equal(t, errFlaky, entries[1].Data[logrus.ErrorKey])
}

func TestExecutorExhaustsAttempts(t *testing.T) {
	src := &flakySource{failures: 100}
	e, hook := newTestExecutor(src, Options{})

	_, err := e.Search(context.Background(), market.Params{Term: "chess"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errFlaky)
	assert.ErrorContains(t, err, "search failed after 3 attempts")
	assert.EqualValues(t, 3, src.calls.Load())
	assert.Len(t, hook.AllEntries(), 3)
}

func TestExecutorUnsupportedOperation(t *testing.T) {
	src := &flakySource{}
	e, hook := newTestExecutor(src, Options{})

	_, err := e.List(context.Background(), market.Params{Collection: market.TopFree})
	assert.ErrorIs(t, err, market.ErrUnsupportedOperation)

	_, err = e.App(context.Background(), market.Params{AppID: "x"})
	assert.ErrorIs(t, err, market.ErrUnsupportedOperation)

	assert.Zero(t, src.calls.Load())
	assert.Empty(t, hook.AllEntries())
}

func TestExecutorSessionParamsWin(t *testing.T) {
	src := &flakySource{}
	e, _ := newTestExecutor(src, Options{Country: "br", Language: "pt", Timeout: 5 * time.Second})

	_, err := e.Search(context.Background(), market.Params{Term: "x", Country: "us", Language: "en", Num: 7})
	require.NoError(t, err)

	require.Len(t, src.params, 1)
	p := src.params[0]
	assert.Equal(t, "br", p.Country)
	assert.Equal(t, "pt", p.Language)
	assert.Equal(t, 5*time.Second, p.Timeout)
	assert.Equal(t, 7, p.Num)
}

func TestExecutorPacesConcurrentCalls(t *testing.T) {
	src := &flakySource{}
	e, _ := newTestExecutor(src, Options{Throttle: 25 * time.Millisecond})

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Search(context.Background(), market.Params{Term: "x"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// The first call goes out at once; the other four wait one interval each.
	assert.GreaterOrEqual(t, time.Since(start), 95*time.Millisecond)
	assert.EqualValues(t, 5, src.calls.Load())
}

func TestExecutorContextCancelled(t *testing.T) {
	src := &flakySource{failures: 100}
	e, _ := newTestExecutor(src, Options{RetryDelay: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := e.Search(ctx, market.Params{Term: "x"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.EqualValues(t, 1, src.calls.Load())
}
