// Package cache deletes stale dashboard cache keys after lifecycle
// transitions. Invalidation is best-effort: the authoritative store remains
// correct whether or not the cache cooperates, so every error here is logged
// and swallowed rather than propagated to the scheduler.
package cache

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// MetricsSink records cache invalidation activity.
type MetricsSink interface {
	CacheKeysInvalidated(count int)
	CacheInvalidationError()
}

// Invalidator deletes cache keys matching resolved scope patterns.
// Deletions run with bounded concurrency: not serial, to avoid
// O(users x patterns) latency, and not unbounded, to avoid overwhelming
// the cache.
type Invalidator struct {
	client      *redis.Client
	concurrency int
	breaker     *Breaker    // optional, nil = no breaker
	metrics     MetricsSink // optional, nil = disabled
}

// NewInvalidator creates an Invalidator with the given deletion concurrency.
// Concurrency values below 1 are treated as 1.
func NewInvalidator(client *redis.Client, concurrency int) *Invalidator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Invalidator{client: client, concurrency: concurrency}
}

// WithBreaker attaches a circuit breaker that skips invalidation passes
// while the cache is persistently unreachable.
func (inv *Invalidator) WithBreaker(b *Breaker) *Invalidator {
	inv.breaker = b
	return inv
}

// WithMetrics attaches a metrics sink.
func (inv *Invalidator) WithMetrics(sink MetricsSink) *Invalidator {
	inv.metrics = sink
	return inv
}

// Invalidate deletes all keys matching the scope's resolved patterns and
// returns the number of keys cleared. It never returns an error for cache
// failures; staleness is preferred over crashing the scheduler.
func (inv *Invalidator) Invalidate(ctx context.Context, scope Scope) int {
	if inv.client == nil {
		// No cache configured: skip, state is stale but correct.
		return 0
	}
	if inv.breaker != nil && !inv.breaker.Allow() {
		log.Println("cache: breaker open, skipping invalidation pass")
		return 0
	}

	patterns := scope.Resolve()
	if len(patterns) == 0 {
		return 0
	}

	var (
		cleared int64
		failed  int64
		wg      sync.WaitGroup
		sem     = make(chan struct{}, inv.concurrency)
	)

	for _, pattern := range patterns {
		wg.Add(1)
		sem <- struct{}{}
		go func(pattern string) {
			defer wg.Done()
			defer func() { <-sem }()

			n, err := inv.deletePattern(ctx, pattern)
			if err != nil {
				log.Printf("cache: delete pattern %s: %v", pattern, err)
				atomic.AddInt64(&failed, 1)
				return
			}
			atomic.AddInt64(&cleared, n)
		}(pattern)
	}
	wg.Wait()

	if failed > 0 {
		if inv.breaker != nil {
			inv.breaker.RecordFailure()
		}
		if inv.metrics != nil {
			inv.metrics.CacheInvalidationError()
		}
	} else if inv.breaker != nil {
		inv.breaker.RecordSuccess()
	}

	total := int(atomic.LoadInt64(&cleared))
	if inv.metrics != nil && total > 0 {
		inv.metrics.CacheKeysInvalidated(total)
	}
	return total
}

// deletePattern scans for keys matching the pattern and deletes them in
// batches. SCAN avoids blocking the cache the way KEYS would.
func (inv *Invalidator) deletePattern(ctx context.Context, pattern string) (int64, error) {
	var deleted int64

	iter := inv.client.Scan(ctx, 0, pattern, 100).Iterator()
	batch := make([]string, 0, 100)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := inv.client.Del(ctx, batch...).Result()
		deleted += n
		batch = batch[:0]
		return err
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 100 {
			if err := flush(); err != nil {
				return deleted, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, err
	}
	if err := flush(); err != nil {
		return deleted, err
	}
	return deleted, nil
}

// Close releases the underlying cache connection. Safe to call once at
// shutdown; a nil client is a no-op.
func (inv *Invalidator) Close() error {
	if inv.client == nil {
		return nil
	}
	return inv.client.Close()
}

// Breaker below is kept in this package because invalidation is its only
// consumer; the cache is the one collaborator flaky enough to warrant it.

// Breaker trips after threshold consecutive failed passes and stays open for
// the cooldown window, after which a single probe pass is allowed through.
type Breaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	failures  int
	openedAt  time.Time
	open      bool
	probing   bool
	clock     func() time.Time
}

// NewBreaker creates a Breaker. A threshold of 0 disables tripping.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	return &Breaker{threshold: threshold, cooldown: cooldown, clock: time.Now}
}

// Allow reports whether an invalidation pass may proceed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return true
	}
	if b.clock().Sub(b.openedAt) >= b.cooldown && !b.probing {
		b.probing = true
		return true
	}
	return false
}

// RecordSuccess closes the breaker.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.open = false
	b.probing = false
}

// RecordFailure counts a failed pass and trips the breaker at the threshold.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.probing = false
	if b.threshold > 0 && b.failures >= b.threshold {
		b.open = true
		b.openedAt = b.clock()
	}
}
