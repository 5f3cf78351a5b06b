package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Rorschach3/chore-chart/internal/clock"
)

// Sweeper purges expired entries from a Cache no more often than once per
// interval. It moves Idle -> Sweeping -> Idle; callers that arrive while a
// pass is running return immediately instead of waiting for it.
type Sweeper struct {
	cache    Cache
	interval time.Duration
	clock    clock.Clock

	lastRun  atomic.Int64 // unix nanos of the last pass (or creation)
	sweeping atomic.Bool

	// OnSweep, when set, is called after every completed pass.
	OnSweep func(removed int)
}

// NewSweeper creates a Sweeper for c. The first pass becomes due one interval
// after creation.
func NewSweeper(c Cache, interval time.Duration, clk clock.Clock) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if clk == nil {
		clk = clock.Real{}
	}
	s := &Sweeper{cache: c, interval: interval, clock: clk}
	s.lastRun.Store(clk.Now().UnixNano())
	return s
}

// Interval returns the minimum spacing between passes.
func (s *Sweeper) Interval() time.Duration { return s.interval }

// Sweeping reports whether a pass is in progress.
func (s *Sweeper) Sweeping() bool { return s.sweeping.Load() }

// LastRun returns the time of the last pass, or the creation time if no pass
// has run yet.
func (s *Sweeper) LastRun() time.Time { return time.Unix(0, s.lastRun.Load()) }

// MaybeSweep runs a pass if the interval has elapsed since the previous one.
// It reports how many entries were removed and whether a pass actually ran.
func (s *Sweeper) MaybeSweep() (int, bool) {
	now := s.clock.Now()
	last := s.lastRun.Load()
	if now.Sub(time.Unix(0, last)) < s.interval {
		return 0, false
	}
	if !s.sweeping.CompareAndSwap(false, true) {
		return 0, false
	}
	defer s.sweeping.Store(false)

	// Another caller may have completed a pass between the load and the CAS.
	if !s.lastRun.CompareAndSwap(last, now.UnixNano()) {
		return 0, false
	}
	return s.pass(), true
}

// Force runs a pass regardless of the interval, unless one is already in
// progress, in which case it returns 0 and false.
func (s *Sweeper) Force() (int, bool) {
	if !s.sweeping.CompareAndSwap(false, true) {
		return 0, false
	}
	defer s.sweeping.Store(false)

	s.lastRun.Store(s.clock.Now().UnixNano())
	return s.pass(), true
}

func (s *Sweeper) pass() int {
	removed := s.cache.Sweep()
	if s.OnSweep != nil {
		s.OnSweep(removed)
	}
	return removed
}

// Run forces a pass on every interval tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Force()
		case <-ctx.Done():
			return
		}
	}
}
