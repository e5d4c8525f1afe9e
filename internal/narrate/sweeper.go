package narrate

import (
	"context"
	"sync/atomic"
	"time"
)

// Stale job defaults.
const (
	DefaultStaleAfter    = 15 * time.Minute
	DefaultSweepInterval = time.Minute

	staleMessage = "timed out"
)

// StaleJobStore fails abandoned jobs.
type StaleJobStore interface {
	SweepStale(ctx context.Context, cutoff time.Time, message string) (int64, error)
}

// Sweeper moves jobs that stayed non-terminal for too long to error.
//
// MaybeSweep runs at most once per interval. The last-run timestamp lives in
// the Sweeper, so the throttle is per process; concurrent instances may each
// sweep, which is harmless because the sweep is a single idempotent UPDATE.
type Sweeper struct {
	options
	jobs       StaleJobStore
	staleAfter time.Duration
	interval   time.Duration
	lastRun    atomic.Int64 // unix nanoseconds, 0 before the first run
}

// NewSweeper creates a Sweeper. Non-positive durations select the defaults.
func NewSweeper(jobs StaleJobStore, staleAfter, interval time.Duration, opts ...Option) *Sweeper {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		options:    newOptions(opts),
		jobs:       jobs,
		staleAfter: staleAfter,
		interval:   interval,
	}
}

// Sweep fails every non-terminal job created more than staleAfter ago.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	s.lastRun.Store(s.now().UnixNano())
	return s.jobs.SweepStale(ctx, s.now().Add(-s.staleAfter), staleMessage)
}

// MaybeSweep sweeps unless a sweep ran less than interval ago. Failures are
// logged and swallowed. It reports whether a sweep was attempted.
func (s *Sweeper) MaybeSweep(ctx context.Context) bool {
	now := s.now().UnixNano()
	last := s.lastRun.Load()
	if last != 0 && now-last < s.interval.Nanoseconds() {
		return false
	}
	if !s.lastRun.CompareAndSwap(last, now) {
		return false
	}

	n, err := s.jobs.SweepStale(ctx, s.now().Add(-s.staleAfter), staleMessage)
	if err != nil {
		s.log.Warnw("stale job sweep failed", "error", err)
		return true
	}
	if n > 0 {
		s.log.Infow("stale jobs swept", "count", n)
	}
	return true
}

// Run calls MaybeSweep every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.MaybeSweep(ctx)
		}
	}
}
