// Package scheduler drives the periodic weather collection and the
// per-minute alert checks.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lox/siteweather/internal/collector"
)

// MaxCatchUp bounds how many missed minutes a late check tick replays.
const MaxCatchUp = time.Hour

type Collector interface {
	Run(ctx context.Context) (collector.Result, error)
}

type Checker interface {
	RunDue(ctx context.Context, now time.Time) (int, error)
}

type Scheduler struct {
	collector       Collector
	checker         Checker
	collectInterval time.Duration
	checkInterval   time.Duration
	now             func() time.Time

	// lastMinute is the most recent minute handed to RunDue.
	lastMinute time.Time
}

func New(c Collector, ch Checker, collectInterval time.Duration) *Scheduler {
	if collectInterval <= 0 {
		collectInterval = time.Hour
	}
	return &Scheduler{
		collector:       c,
		checker:         ch,
		collectInterval: collectInterval,
		checkInterval:   time.Minute,
		now:             time.Now,
	}
}

// Run collects immediately and then every collect interval, and runs due
// checks every minute, until ctx is done. Collection and checks run in
// separate loops so a slow collection never delays a check minute.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Go(func() { s.collectLoop(ctx) })
	wg.Go(func() { s.checkLoop(ctx) })
	wg.Wait()
	zap.S().Info("scheduler: shut down")
}

func (s *Scheduler) collectLoop(ctx context.Context) {
	s.collect(ctx)

	ticker := time.NewTicker(s.collectInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.collect(ctx)
		}
	}
}

func (s *Scheduler) checkLoop(ctx context.Context) {
	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkDue(ctx)
		}
	}
}

func (s *Scheduler) collect(ctx context.Context) {
	if s.collector == nil {
		return
	}
	if _, err := s.collector.Run(ctx); err != nil && ctx.Err() == nil {
		zap.S().Errorw("scheduler: collect", "error", err)
	}
}

// checkDue runs RunDue once for every minute since the last one it
// handled, so minutes lost to a slow check are replayed rather than
// skipped. Gaps longer than MaxCatchUp only replay the last MaxCatchUp.
func (s *Scheduler) checkDue(ctx context.Context) {
	if s.checker == nil {
		return
	}
	current := s.now().Truncate(time.Minute)
	if s.lastMinute.IsZero() {
		s.lastMinute = current.Add(-time.Minute)
	}
	if current.Sub(s.lastMinute) > MaxCatchUp {
		zap.S().Warnw("scheduler: check minutes dropped", "from", s.lastMinute.Add(time.Minute), "to", current.Add(-MaxCatchUp))
		s.lastMinute = current.Add(-MaxCatchUp)
	}

	for m := s.lastMinute.Add(time.Minute); !m.After(current); m = m.Add(time.Minute) {
		if ctx.Err() != nil {
			return
		}
		n, err := s.checker.RunDue(ctx, m)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			zap.S().Errorw("scheduler: due checks", "minute", m.UTC().Format("15:04"), "error", err)
		} else if n > 0 {
			zap.S().Infow("scheduler: due checks complete", "jobsites", n, "minute", m.UTC().Format("15:04"))
		}
		s.lastMinute = m
	}
}
