package chorechart

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Rorschach3/chore-chart/internal/cache"
	"github.com/Rorschach3/chore-chart/internal/circuitbreaker"
	"github.com/Rorschach3/chore-chart/internal/clock"
	"github.com/Rorschach3/chore-chart/internal/logging"
	"github.com/Rorschach3/chore-chart/internal/metrics"
	"github.com/Rorschach3/chore-chart/internal/prompt"
	"github.com/Rorschach3/chore-chart/internal/tracing"
	"github.com/Rorschach3/chore-chart/providers"
)

// Event describes one answered request. It is passed to every hook
// registered with AddHook.
type Event struct {
	TraceID    string
	Outcome    Outcome
	Reason     Reason
	CacheHit   bool
	PromptHash string
	Backend    string
	Latency    time.Duration
	Err        error
	At         time.Time
}

// EventHookFunc is called asynchronously after every request.
type EventHookFunc func(ctx context.Context, ev Event)

// Assistant answers prompts from its cache or, on a miss, from the upstream
// generator. It is safe for concurrent use.
type Assistant struct {
	gen     providers.Generator
	cache   *cache.Memory
	sweeper *cache.Sweeper
	breaker *circuitbreaker.CircuitBreaker
	clock   clock.Clock
	tracer  trace.Tracer
	timeout time.Duration

	mu    sync.RWMutex
	hooks []EventHookFunc
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithClock sets the time source for cache expiry, sweeps and the breaker.
func WithClock(clk clock.Clock) Option {
	return func(a *Assistant) {
		if clk != nil {
			a.clock = clk
		}
	}
}

// WithTracer sets the tracer used for request spans.
func WithTracer(t trace.Tracer) Option {
	return func(a *Assistant) {
		if t != nil {
			a.tracer = t
		}
	}
}

// WithBreaker replaces the circuit breaker built from the config.
func WithBreaker(cb *circuitbreaker.CircuitBreaker) Option {
	return func(a *Assistant) { a.breaker = cb }
}

// New creates an Assistant around gen. The cache, sweeper and breaker are
// built from cfg.
func New(cfg Config, gen providers.Generator, opts ...Option) (*Assistant, error) {
	if gen == nil {
		return nil, errors.New("assistant requires a generator")
	}
	a := &Assistant{
		gen:     gen,
		clock:   clock.Real{},
		tracer:  tracing.Tracer(),
		timeout: cfg.Upstream.Timeout.Std(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.timeout <= 0 {
		a.timeout = DefaultUpstreamTimeout
	}

	a.cache = cache.NewMemory(cfg.Cache.TTL.Std(), a.clock)
	a.sweeper = cache.NewSweeper(a.cache, cfg.Cache.SweepInterval.Std(), a.clock)
	a.sweeper.OnSweep = func(removed int) {
		metrics.CacheSweeps.Inc()
		metrics.CacheEvictions.WithLabelValues("sweep").Add(float64(removed))
		logging.Logger.Debug("cache sweep completed", "removed", removed, "entries", a.cache.Len())
	}

	if a.breaker == nil {
		bc := cfg.Upstream.Breaker
		backend := gen.Name()
		a.breaker = circuitbreaker.New(bc.FailureThreshold, bc.SuccessThreshold, bc.Timeout.Std(),
			circuitbreaker.WithClock(a.clock),
			circuitbreaker.OnStateChange(func(from, to circuitbreaker.State) {
				metrics.CircuitBreakerState.WithLabelValues(backend).Set(float64(to))
				logging.Logger.Warn("circuit breaker state changed", "backend", backend, "from", from.String(), "to", to.String())
			}),
		)
	}
	return a, nil
}

// Backend returns the upstream backend name.
func (a *Assistant) Backend() string { return a.gen.Name() }

// Cache returns the answer cache.
func (a *Assistant) Cache() *cache.Memory { return a.cache }

// Sweeper returns the cache sweeper.
func (a *Assistant) Sweeper() *cache.Sweeper { return a.sweeper }

// Breaker returns the upstream circuit breaker.
func (a *Assistant) Breaker() *circuitbreaker.CircuitBreaker { return a.breaker }

// AddHook registers fn to be called after every request.
func (a *Assistant) AddHook(fn EventHookFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hooks = append(a.hooks, fn)
}

// Ask answers one raw request body. It never panics and never returns an
// error: every failure is folded into the Result.
func (a *Assistant) Ask(ctx context.Context, body []byte) (res Result) {
	start := time.Now()
	ctx, span := a.tracer.Start(ctx, "assistant.ask")
	var promptHash string

	defer func() {
		if rec := recover(); rec != nil {
			logging.FromContext(ctx).Error("panic while answering prompt",
				"panic", fmt.Sprint(rec),
				"stack", string(debug.Stack()),
			)
			res = UnexpectedFault(fmt.Sprint(rec), fmt.Errorf("panic: %v", rec))
		}
		a.finish(ctx, span, res, promptHash, time.Since(start))
	}()

	a.sweeper.MaybeSweep()

	text, err := prompt.Parse(body)
	if err != nil {
		return Degraded(ReasonInvalidInput, err)
	}
	promptHash = cache.Fingerprint(text)

	if entry, ok := a.cache.Get(text); ok {
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return Success(entry.Value, true)
	}
	metrics.CacheLookups.WithLabelValues("miss").Inc()

	answer, err := a.generate(ctx, text)
	if err != nil {
		return classify(err)
	}
	a.cache.Put(text, answer)
	return Success(answer, false)
}

// Reject records a request that was refused before reaching Ask, such as
// one over the rate limit, and returns its degraded reply.
func (a *Assistant) Reject(ctx context.Context, reason Reason) Result {
	res := Degraded(reason, nil)
	_, span := a.tracer.Start(ctx, "assistant.reject")
	a.finish(ctx, span, res, "", 0)
	return res
}

func (a *Assistant) generate(ctx context.Context, text string) (string, error) {
	backend := a.gen.Name()
	if !a.breaker.Allow() {
		metrics.UpstreamErrors.WithLabelValues(backend, "circuit_open").Inc()
		return "", fmt.Errorf("%s: %w", backend, circuitbreaker.ErrCircuitOpen)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	ctx, span := a.tracer.Start(ctx, "upstream.generate",
		trace.WithAttributes(attribute.String("upstream.backend", backend)))
	defer span.End()

	start := time.Now()
	answer, err := a.gen.Generate(ctx, text)
	elapsed := time.Since(start)
	metrics.UpstreamDuration.WithLabelValues(backend).Observe(elapsed.Seconds())

	log := logging.FromContext(ctx)
	if err == nil {
		a.breaker.RecordSuccess()
		log.Info("upstream request completed", "backend", backend, "latency_ms", elapsed.Milliseconds())
		return answer, nil
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	var credErr *providers.CredentialError
	errType := "transient"
	switch {
	case errors.As(err, &credErr):
		errType = "config"
	case errors.Is(err, providers.ErrQuotaExceeded):
		errType = "quota"
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		errType = "timeout"
		err = fmt.Errorf("upstream timed out after %s: %w", a.timeout, err)
	case errors.Is(ctx.Err(), context.Canceled):
		errType = "canceled"
	}
	if errType == "transient" || errType == "timeout" {
		a.breaker.RecordFailure()
	}
	metrics.UpstreamErrors.WithLabelValues(backend, errType).Inc()
	log.Warn("upstream request failed",
		"backend", backend,
		"error_type", errType,
		"latency_ms", elapsed.Milliseconds(),
		"error", err.Error(),
	)
	return "", err
}

func classify(err error) Result {
	var credErr *providers.CredentialError
	switch {
	case errors.As(err, &credErr):
		return ConfigFault(credErr.Detail, err)
	case errors.Is(err, providers.ErrQuotaExceeded):
		return Degraded(ReasonQuotaExceeded, err)
	default:
		return Degraded(ReasonUpstreamFailure, err)
	}
}

func (a *Assistant) finish(ctx context.Context, span trace.Span, res Result, promptHash string, latency time.Duration) {
	span.SetAttributes(
		attribute.Bool("cache.hit", res.CacheHit),
		attribute.String("assistant.outcome", res.Outcome.String()),
		attribute.String("assistant.reason", string(res.Reason)),
	)
	if res.Outcome == OutcomeConfigFault || res.Outcome == OutcomeUnexpectedFault {
		span.SetStatus(codes.Error, res.Detail)
	}
	span.End()

	metrics.RequestsTotal.WithLabelValues(res.Outcome.String(), string(res.Reason)).Inc()

	log := logging.FromContext(ctx)
	attrs := []any{
		"outcome", res.Outcome.String(),
		"cache_hit", res.CacheHit,
		"latency_ms", latency.Milliseconds(),
	}
	if res.Reason != ReasonNone {
		attrs = append(attrs, "reason", string(res.Reason))
	}
	if res.Err != nil {
		attrs = append(attrs, "error", res.Err.Error())
	}
	switch res.Outcome {
	case OutcomeConfigFault, OutcomeUnexpectedFault:
		log.Error("prompt failed", attrs...)
	case OutcomeDegraded:
		log.Warn("prompt degraded", attrs...)
	default:
		log.Info("prompt answered", attrs...)
	}

	ev := Event{
		TraceID:    logging.TraceIDFromContext(ctx),
		Outcome:    res.Outcome,
		Reason:     res.Reason,
		CacheHit:   res.CacheHit,
		PromptHash: promptHash,
		Backend:    a.gen.Name(),
		Latency:    latency,
		Err:        res.Err,
		At:         a.clock.Now(),
	}
	a.publishEvent(context.WithoutCancel(ctx), ev)
}

// publishEvent calls all registered hooks asynchronously.
func (a *Assistant) publishEvent(ctx context.Context, ev Event) {
	a.mu.RLock()
	hooks := make([]EventHookFunc, len(a.hooks))
	copy(hooks, a.hooks)
	a.mu.RUnlock()

	for _, h := range hooks {
		go h(ctx, ev)
	}
}
