package rategovernor

import (
	"context"
	"sync"
	"time"

	"github.com/eventforge/batchjobs/internal/joberrors"
	"github.com/eventforge/batchjobs/internal/metrics"
)

// SharedStore receives a best-effort per-provider failure tally that other
// process instances can read. The breaker's own state is always in-memory
// and per-process; a nil store (the single-process default, no Redis) only
// disables the tally.
type SharedStore interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// Governor composes a token bucket with a circuit breaker for one named
// provider ("STRIPE", "SES").
type Governor struct {
	provider string
	bucket   *TokenBucket
	breaker  *CircuitBreaker
	store    SharedStore
}

// New builds a Governor. store may be nil for single-process deployments.
func New(provider string, ratePerSecond float64, store SharedStore) *Governor {
	return &Governor{
		provider: provider,
		bucket:   NewTokenBucket(ratePerSecond),
		breaker:  NewCircuitBreaker(),
		store:    store,
	}
}

// Run executes fn if the token bucket has capacity and the breaker is
// closed (or trialing half-open), recording the result against the breaker.
// Returns a ProviderTransient joberror if the call was shed by the limiter
// or breaker, without invoking fn. A call the breaker admitted but the
// limiter shed is recorded against the breaker as a failure.
func (g *Governor) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	if !g.breaker.Allow() {
		metrics.RateLimiterDrops.WithLabelValues(g.provider).Inc()
		metrics.CircuitBreakerState.WithLabelValues(g.provider).Set(float64(g.breaker.State()))
		return joberrors.NewProviderTransient(g.provider+": circuit breaker open", nil)
	}

	if !g.bucket.TryAcquire() {
		g.breaker.RecordResult(false)
		metrics.RateLimiterDrops.WithLabelValues(g.provider).Inc()
		metrics.CircuitBreakerState.WithLabelValues(g.provider).Set(float64(g.breaker.State()))
		return joberrors.NewProviderTransient(g.provider+": rate limit exceeded", nil)
	}

	err := fn(ctx)
	g.breaker.RecordResult(err == nil)
	metrics.CircuitBreakerState.WithLabelValues(g.provider).Set(float64(g.breaker.State()))

	if err != nil && g.store != nil {
		// Best-effort cross-process failure tally, for multi-instance
		// deployments sharing a provider's rate budget. Never allowed to
		// affect the call outcome.
		key := "rategovernor:" + g.provider + ":failures"
		g.store.Incr(ctx, key)
		g.store.Expire(ctx, key, time.Minute)
	}

	return err
}

// registry holds one Governor per provider name, built lazily so callers
// needn't thread every provider's config through every constructor.
type Registry struct {
	mu          sync.Mutex
	governors   map[string]*Governor
	rates       map[string]float64
	sharedStore SharedStore
}

// NewRegistry builds a registry with per-provider rates (calls/sec).
func NewRegistry(rates map[string]float64, store SharedStore) *Registry {
	return &Registry{
		governors:   make(map[string]*Governor),
		rates:       rates,
		sharedStore: store,
	}
}

// For returns the Governor for provider, creating it on first use at its
// configured rate (default 50/s if unconfigured).
func (r *Registry) For(provider string) *Governor {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g, ok := r.governors[provider]; ok {
		return g
	}
	rate, ok := r.rates[provider]
	if !ok {
		rate = 50
	}
	g := New(provider, rate, r.sharedStore)
	r.governors[provider] = g
	return g
}
