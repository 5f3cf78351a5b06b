// Package ratelimit provides an in-memory token-bucket rate limiter keyed by
// client, plus an HTTP middleware that applies it per remote IP.
package ratelimit

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Rorschach3/chore-chart/internal/clock"
)

// Limiter is a single token bucket.
type Limiter struct {
	mu         sync.Mutex
	rate       float64 // tokens added per second
	burst      float64 // maximum token capacity
	tokens     float64
	lastRefill time.Time
	clock      clock.Clock
}

// New creates a Limiter allowing ratePerSecond requests/s with a burst capacity.
// If burst <= 0, it defaults to ratePerSecond.
func New(ratePerSecond, burst float64, clk clock.Clock) *Limiter {
	if burst <= 0 {
		burst = ratePerSecond
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Limiter{
		rate:       ratePerSecond,
		burst:      burst,
		tokens:     burst,
		lastRefill: clk.Now(),
		clock:      clk,
	}
}

// Allow consumes one token and reports whether the request is permitted.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	l.tokens += now.Sub(l.lastRefill).Seconds() * l.rate
	if l.tokens > l.burst {
		l.tokens = l.burst
	}
	l.lastRefill = now

	if l.tokens >= 1.0 {
		l.tokens--
		return true
	}
	return false
}

func (l *Limiter) idleSince() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastRefill
}

// Store keeps one Limiter per key.
type Store struct {
	mu       sync.RWMutex
	limiters map[string]*Limiter
	rate     float64
	burst    float64
	clock    clock.Clock
}

// NewStore creates a Store whose per-key limiters share the same rate and burst.
func NewStore(ratePerSecond, burst float64, clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Store{
		limiters: make(map[string]*Limiter),
		rate:     ratePerSecond,
		burst:    burst,
		clock:    clk,
	}
}

// Allow checks, creating if needed, the limiter for key.
func (s *Store) Allow(key string) bool {
	s.mu.RLock()
	l, ok := s.limiters[key]
	s.mu.RUnlock()
	if ok {
		return l.Allow()
	}

	s.mu.Lock()
	if l, ok = s.limiters[key]; !ok {
		l = New(s.rate, s.burst, s.clock)
		s.limiters[key] = l
	}
	s.mu.Unlock()
	return l.Allow()
}

// Len returns the number of tracked keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.limiters)
}

// Prune drops limiters that have not been used for at least idle and returns
// how many were removed. A dropped key starts again with a full bucket.
func (s *Store) Prune(idle time.Duration) int {
	cutoff := s.clock.Now().Add(-idle)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, l := range s.limiters {
		if !l.idleSince().After(cutoff) {
			delete(s.limiters, key)
			removed++
		}
	}
	return removed
}

// ClientIP returns the host part of r.RemoteAddr. Run chi's RealIP middleware
// first when the service sits behind a proxy.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware rejects requests from clients that exceed their bucket by
// calling reject instead of next. Preflight requests are never limited.
func Middleware(s *Store, reject http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodOptions && !s.Allow(ClientIP(r)) {
				reject(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
