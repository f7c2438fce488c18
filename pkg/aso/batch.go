package aso

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/elonfeng/asoradar/pkg/opportunity"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// KeywordAnalyzer is anything that scores a single keyword.
type KeywordAnalyzer interface {
	AnalyzeKeyword(ctx context.Context, kw string) (*opportunity.ScoreResult, error)
}

// BatchOptions controls AnalyzeKeywords.
type BatchOptions struct {
	// Concurrency is the chunk size; a chunk's keywords run in parallel (default: 3).
	Concurrency int
	// Pause separates consecutive chunks (default: 1s). Negative disables it.
	Pause  time.Duration
	Logger logrus.FieldLogger
}

// AnalyzeKeywords scores keywords chunk by chunk. A keyword that fails is
// logged and left out of the result; its siblings still run. The returned
// error is non-nil only when ctx ends before the batch does.
func AnalyzeKeywords(ctx context.Context, a KeywordAnalyzer, keywords []string, opts BatchOptions) (map[string]*opportunity.ScoreResult, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 3
	}
	if opts.Pause == 0 {
		opts.Pause = time.Second
	}
	if opts.Logger == nil {
		l := logrus.New()
		l.SetOutput(os.Stderr)
		opts.Logger = l
	}
	log := opts.Logger.WithField("run_id", uuid.NewString())

	results := make(map[string]*opportunity.ScoreResult, len(keywords))
	var mu sync.Mutex

	for start := 0; start < len(keywords); start += opts.Concurrency {
		if start > 0 && opts.Pause > 0 {
			select {
			case <-ctx.Done():
				return results, ctx.Err()
			case <-time.After(opts.Pause):
			}
		}

		chunk := keywords[start:min(start+opts.Concurrency, len(keywords))]
		log.WithField("chunk", chunk).Debug("analyzing chunk")

		var g errgroup.Group
		for _, kw := range chunk {
			g.Go(func() error {
				res, err := a.AnalyzeKeyword(ctx, kw)
				if err != nil {
					log.WithField("keyword", kw).WithError(err).Error("keyword analysis failed")
					return nil
				}
				mu.Lock()
				results[kw] = res
				mu.Unlock()
				return nil
			})
		}
		g.Wait()

		if err := ctx.Err(); err != nil {
			return results, err
		}
	}

	log.WithFields(logrus.Fields{
		"requested": len(keywords),
		"scored":    len(results),
	}).Info("batch analysis finished")
	return results, nil
}
