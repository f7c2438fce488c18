// Package scheduler re-scores a keyword watchlist on an interval and alerts
// when a keyword becomes attractive.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/elonfeng/asoradar/pkg/alert"
	"github.com/elonfeng/asoradar/pkg/aso"
	"github.com/sirupsen/logrus"
)

// Reporter produces market reports for keywords.
type Reporter interface {
	Store() aso.Store
	MarketOpportunity(ctx context.Context, kw string) (*aso.MarketReport, error)
}

// Scheduler runs periodic watchlist checks.
type Scheduler struct {
	reporter       Reporter
	alertMgr       *alert.Manager
	keywords       []string
	interval       time.Duration
	minOpportunity float64
	log            logrus.FieldLogger

	mu      sync.Mutex
	alerted map[string]bool
}

// New creates a new scheduler.
func New(
	r Reporter,
	alertMgr *alert.Manager,
	keywords []string,
	interval time.Duration,
	minOpportunity float64,
	log logrus.FieldLogger,
) *Scheduler {
	if interval == 0 {
		interval = 6 * time.Hour
	}
	if minOpportunity == 0 {
		minOpportunity = 7
	}
	if alertMgr == nil {
		alertMgr = alert.NewManager(nil)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Scheduler{
		reporter:       r,
		alertMgr:       alertMgr,
		keywords:       keywords,
		interval:       interval,
		minOpportunity: minOpportunity,
		log:            log.WithField("component", "scheduler"),
		alerted:        make(map[string]bool),
	}
}

// Run starts the scheduler loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.WithField("keywords", len(s.keywords)).Info("initial watchlist check")
	s.Check(ctx)

	s.log.WithField("interval", s.interval.String()).Info("scheduler running")

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.Check(ctx)
		}
	}
}

// Check scores every watched keyword once and returns the reports that
// succeeded. A keyword alerts when its opportunity reaches the threshold
// and again only after it has dropped below it in between.
func (s *Scheduler) Check(ctx context.Context) []*aso.MarketReport {
	var reports []*aso.MarketReport
	for _, kw := range s.keywords {
		if ctx.Err() != nil {
			break
		}
		log := s.log.WithField("keyword", kw)

		report, err := s.reporter.MarketOpportunity(ctx, kw)
		if err != nil {
			log.WithError(err).Error("watchlist check failed")
			continue
		}
		reports = append(reports, report)
		log.WithFields(logrus.Fields{
			"opportunity": report.Opportunity,
			"saturation":  report.Saturation,
		}).Info("keyword scored")

		if !s.crossed(kw, report.Opportunity) || !s.alertMgr.HasNotifiers() {
			continue
		}
		if err := s.alertMgr.Broadcast(ctx, s.notification(report)); err != nil {
			log.WithError(err).Warn("alert delivery failed")
			// Retry on the next check.
			s.reset(kw)
			continue
		}
		log.WithField("opportunity", report.Opportunity).Info("alerted")
	}
	return reports
}

// crossed records the keyword's state and reports whether it has just
// reached the threshold.
func (s *Scheduler) crossed(kw string, opportunity float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	above := opportunity >= s.minOpportunity
	was := s.alerted[kw]
	s.alerted[kw] = above
	return above && !was
}

func (s *Scheduler) reset(kw string) {
	s.mu.Lock()
	delete(s.alerted, kw)
	s.mu.Unlock()
}

func (s *Scheduler) notification(r *aso.MarketReport) *alert.Notification {
	n := &alert.Notification{
		Title:       "Keyword opportunity: " + r.Keyword,
		Body:        fmt.Sprintf("Opportunity reached %.1f (threshold %.1f)", r.Opportunity, s.minOpportunity),
		Keyword:     r.Keyword,
		Store:       string(s.reporter.Store()),
		Opportunity: r.Opportunity,
		Saturation:  r.Saturation,
		Competitors: r.Competitors,
	}
	if r.Competition != nil {
		n.Difficulty = r.Competition.Difficulty.Score
		n.Traffic = r.Competition.Traffic.Score
	}
	return n
}
