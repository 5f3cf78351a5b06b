package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Rorschach3/chore-chart/internal/clock"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestAllowWithinBurst(t *testing.T) {
	l := New(10, 5, clock.NewFake(epoch))
	for i := 0; i < 5; i++ {
		if !l.Allow() {
			t.Fatalf("expected allow on request %d within burst", i+1)
		}
	}
}

func TestBlockWhenDepleted(t *testing.T) {
	l := New(10, 2, clock.NewFake(epoch))
	l.Allow()
	l.Allow()
	if l.Allow() {
		t.Fatal("expected rate limit after burst exhausted")
	}
}

func TestRefillOverTime(t *testing.T) {
	clk := clock.NewFake(epoch)
	l := New(2, 1, clk)
	l.Allow()
	if l.Allow() {
		t.Fatal("expected empty bucket")
	}
	clk.Advance(500 * time.Millisecond)
	if !l.Allow() {
		t.Fatal("expected allow after refill")
	}
}

func TestBurstDefaultsToRate(t *testing.T) {
	l := New(3, 0, clock.NewFake(epoch))
	for i := 0; i < 3; i++ {
		if !l.Allow() {
			t.Fatalf("expected allow on request %d", i+1)
		}
	}
	if l.Allow() {
		t.Fatal("expected limit after rate-sized burst")
	}
}

func TestStoreCreatesPerKeyLimiters(t *testing.T) {
	s := NewStore(100, 10, clock.NewFake(epoch))
	for i := 0; i < 10; i++ {
		if !s.Allow("10.0.0.1") {
			t.Fatalf("expected allow on 10.0.0.1 request %d", i+1)
		}
	}
	if s.Allow("10.0.0.1") {
		t.Fatal("expected 10.0.0.1 to be limited")
	}
	if !s.Allow("10.0.0.2") {
		t.Fatal("expected allow on 10.0.0.2 (fresh limiter)")
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
}

func TestStorePrune(t *testing.T) {
	clk := clock.NewFake(epoch)
	s := NewStore(1, 1, clk)
	s.Allow("old")
	clk.Advance(10 * time.Minute)
	s.Allow("recent")

	if removed := s.Prune(5 * time.Minute); removed != 1 {
		t.Errorf("Prune() = %d, want 1", removed)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.RemoteAddr = "192.0.2.7:51234"
	if got := ClientIP(r); got != "192.0.2.7" {
		t.Errorf("ClientIP() = %q", got)
	}
	r.RemoteAddr = "192.0.2.8"
	if got := ClientIP(r); got != "192.0.2.8" {
		t.Errorf("ClientIP() without port = %q", got)
	}
}

func TestMiddleware(t *testing.T) {
	s := NewStore(1, 1, clock.NewFake(epoch))
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	reject := func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTooManyRequests) }
	h := Middleware(s, reject)(ok)

	codes := make([]int, 0, 3)
	for _, method := range []string{http.MethodPost, http.MethodPost, http.MethodOptions} {
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(method, "/generate-with-ai", nil)
		r.RemoteAddr = "192.0.2.7:1000"
		h.ServeHTTP(rec, r)
		codes = append(codes, rec.Code)
	}
	want := []int{http.StatusOK, http.StatusTooManyRequests, http.StatusOK}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("request %d: status %d, want %d", i, codes[i], want[i])
		}
	}
}
