// Package poller provides the reentrancy-guarded polling primitive that every
// scheduler loop in the engine is built on.
//
// A Poller invokes its work function immediately on Run, then once per
// interval. If a previous invocation is still in flight when the next tick
// fires, that tick is skipped entirely: no queueing, no overlap. The guard is
// an atomic compare-and-swap, so the at-most-one-concurrent-execution
// guarantee holds under true parallelism, not just cooperative scheduling.
//
// Work errors and panics are logged and never terminate the loop. A hung work
// call simply delays subsequent ticks; this is backpressure, not a bug.
package poller

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

var errWorkPanicked = errors.New("work panicked")

// Work is one unit of polled work. Errors are logged by the poller; they do
// not stop the loop.
type Work func(ctx context.Context) error

// MetricsSink records poller activity. All methods must be non-blocking and
// fire-and-forget.
type MetricsSink interface {
	PollStarted(name string)
	PollCompleted(name string, duration time.Duration, err error)
	PollSkipped(name string)
}

// Poller runs a unit of work on a fixed interval with an overlap guard.
type Poller struct {
	name     string
	interval time.Duration
	work     Work
	metrics  MetricsSink // optional, nil = disabled
	clock    func() time.Time

	inFlight atomic.Bool
	wg       sync.WaitGroup
}

// New creates a Poller. The name is used as a log and metrics prefix.
func New(name string, interval time.Duration, work Work) *Poller {
	return &Poller{
		name:     name,
		interval: interval,
		work:     work,
		clock:    time.Now,
	}
}

// WithMetrics attaches a metrics sink to the poller.
func (p *Poller) WithMetrics(sink MetricsSink) *Poller {
	p.metrics = sink
	return p
}

// Run invokes the work immediately and then every interval until ctx is
// cancelled. It returns only after any in-flight invocation has finished, so
// a transition in progress at shutdown is allowed to commit.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	log.Printf("poller[%s]: started (interval=%s)", p.name, p.interval)

	p.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			p.wg.Wait()
			log.Printf("poller[%s]: stopped", p.name)
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// tick starts one invocation unless one is already in flight.
// CompareAndSwap ensures exactly one winner when ticks and slow work race.
func (p *Poller) tick(ctx context.Context) {
	if !p.inFlight.CompareAndSwap(false, true) {
		if p.metrics != nil {
			p.metrics.PollSkipped(p.name)
		}
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.inFlight.Store(false)
		// Cancellation stops future ticks only; an invocation already in
		// flight at shutdown runs to completion so a transition in progress
		// is committed, not aborted mid-store-call.
		p.invoke(context.WithoutCancel(ctx))
	}()
}

// invoke runs the work with a panic backstop. Malformed data should fail
// loudly in tests, but it must not crash a running poller.
func (p *Poller) invoke(ctx context.Context) {
	started := p.clock()

	if p.metrics != nil {
		p.metrics.PollStarted(p.name)
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("poller[%s]: %s panic recovered: %v", p.name, started.UTC().Format(time.RFC3339), r)
			if p.metrics != nil {
				p.metrics.PollCompleted(p.name, p.clock().Sub(started), errWorkPanicked)
			}
		}
	}()

	err := p.work(ctx)
	duration := p.clock().Sub(started)

	if p.metrics != nil {
		p.metrics.PollCompleted(p.name, duration, err)
	}
	if err != nil {
		log.Printf("poller[%s]: %s work error: %v", p.name, started.UTC().Format(time.RFC3339), err)
	}
}
