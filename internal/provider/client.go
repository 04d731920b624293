package provider

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/sells-group/lead-prospector/internal/resilience"
)

// Call outcomes reported to Options.OnCall.
const (
	OutcomeOK       = "ok"
	OutcomeCacheHit = "cache_hit"
	OutcomeDisabled = "disabled"
)

// DefaultLookupTimeout bounds a shared lookup when Options.LookupTimeout is zero.
const DefaultLookupTimeout = 30 * time.Second

// Options configures a rate-limited provider client.
type Options struct {
	// Name identifies the provider in errors, logs, and metrics.
	Name string
	// MinInterval is the minimum delay between two calls through this
	// client. Zero disables rate limiting.
	MinInterval time.Duration
	// CacheTTL is the lifetime of cached lookups. Zero disables caching.
	CacheTTL time.Duration
	// LookupTimeout bounds a shared cached lookup, which outlives any one
	// caller's context. Defaults to DefaultLookupTimeout.
	LookupTimeout time.Duration
	// OnCall observes every call outcome (OutcomeOK, OutcomeCacheHit,
	// OutcomeDisabled, or a Kind string).
	OnCall func(provider, outcome string)
}

// Client serializes access to one external provider. Each instance owns its
// own limiter and cache; share an instance to share the rate budget.
type Client[V any] struct {
	name     string
	limiter  *rate.Limiter
	cache    *Cache[V]
	group    singleflight.Group
	timeout  time.Duration
	disabled atomic.Bool
	onCall   func(provider, outcome string)
	log      *zap.Logger
}

// NewClient creates a provider client from opts.
func NewClient[V any](opts Options) *Client[V] {
	limit := rate.Inf
	if opts.MinInterval > 0 {
		limit = rate.Every(opts.MinInterval)
	}
	c := &Client[V]{
		name:    opts.Name,
		limiter: rate.NewLimiter(limit, 1),
		timeout: opts.LookupTimeout,
		onCall:  opts.OnCall,
		log:     zap.L().With(zap.String("provider", opts.Name)),
	}
	if c.timeout <= 0 {
		c.timeout = DefaultLookupTimeout
	}
	if opts.CacheTTL > 0 {
		c.cache = NewCache[V](opts.CacheTTL)
	}
	return c
}

// Name returns the provider name.
func (c *Client[V]) Name() string { return c.name }

// Disabled reports whether a credential failure has switched the client off.
func (c *Client[V]) Disabled() bool { return c.disabled.Load() }

// Reset re-enables the client and clears its cache.
func (c *Client[V]) Reset() {
	c.disabled.Store(false)
	if c.cache != nil {
		c.cache.Clear()
	}
}

// CacheLen returns the number of cached entries.
func (c *Client[V]) CacheLen() int {
	if c.cache == nil {
		return 0
	}
	return c.cache.Len()
}

// Call performs one uncached request.
func (c *Client[V]) Call(ctx context.Context, fn func(ctx context.Context) (V, error)) (V, error) {
	return c.invoke(ctx, fn)
}

// Lookup performs an idempotent request cached under key. Cache hits skip
// both the network call and the rate-limit wait. Concurrent misses on the
// same key share one request, which runs detached from any single caller
// and is bounded by the lookup timeout. A caller whose ctx ends stops
// waiting without cancelling the others. NotFound results are cached as the
// zero value.
func (c *Client[V]) Lookup(ctx context.Context, key string, fn func(ctx context.Context) (V, error)) (V, error) {
	if c.cache == nil {
		return c.invoke(ctx, fn)
	}
	key = CacheKey(key)
	if v, ok := c.cache.Get(key); ok {
		c.observe(OutcomeCacheHit)
		return v, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		if v, ok := c.cache.Get(key); ok {
			return v, nil
		}
		v, err := c.invoke(shared, fn)
		if err == nil {
			c.cache.Set(key, v)
		}
		return v, err
	})

	var zero V
	select {
	case res := <-ch:
		v, _ := res.Val.(V)
		return v, res.Err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (c *Client[V]) invoke(ctx context.Context, fn func(ctx context.Context) (V, error)) (V, error) {
	var zero V
	if c.disabled.Load() {
		c.observe(OutcomeDisabled)
		return zero, NewError(c.name, KindUnauthorized, 0, ErrDisabled)
	}

	retry := resilience.SingleRetry(
		func(err error) bool { return KindOf(err) == KindTransient },
		resilience.RetryLogger(c.name, "call"),
	)
	v, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (V, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return zero, err
		}
		return fn(ctx)
	})
	if err == nil {
		c.observe(OutcomeOK)
		return v, nil
	}

	kind := KindOf(err)
	c.observe(kind.String())
	switch kind {
	case KindNotFound:
		return zero, nil
	case KindUnauthorized:
		if !c.disabled.Swap(true) {
			c.log.Warn("provider: credentials rejected, disabling client", zap.Error(err))
		}
	case KindPlanLimitation:
		c.log.Info("provider: capability not available on current plan", zap.Error(err))
	}
	return zero, err
}

func (c *Client[V]) observe(outcome string) {
	if c.onCall != nil {
		c.onCall(c.name, outcome)
	}
}
