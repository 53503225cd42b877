package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// sinkRecorder is a mutex-guarded MetricsSink for assertions.
type sinkRecorder struct {
	mu        sync.Mutex
	started   int
	completed int
	skipped   int
	errors    int
}

func (r *sinkRecorder) PollStarted(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started++
}

func (r *sinkRecorder) PollCompleted(name string, duration time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed++
	if err != nil {
		r.errors++
	}
}

func (r *sinkRecorder) PollSkipped(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skipped++
}

func (r *sinkRecorder) snapshot() (started, completed, skipped, errCount int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started, r.completed, r.skipped, r.errors
}

func TestRunInvokesImmediately(t *testing.T) {
	invoked := make(chan struct{})
	var once sync.Once

	p := New("test", time.Hour, func(ctx context.Context) error {
		once.Do(func() { close(invoked) })
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	select {
	case <-invoked:
	case <-time.After(2 * time.Second):
		t.Fatal("work was not invoked immediately on Run")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNoOverlappingInvocations(t *testing.T) {
	var concurrent, maxConcurrent int64
	release := make(chan struct{})

	p := New("test", 10*time.Millisecond, func(ctx context.Context) error {
		cur := atomic.AddInt64(&concurrent, 1)
		for {
			prev := atomic.LoadInt64(&maxConcurrent)
			if cur <= prev || atomic.CompareAndSwapInt64(&maxConcurrent, prev, cur) {
				break
			}
		}
		<-release
		atomic.AddInt64(&concurrent, -1)
		return nil
	})

	sink := &sinkRecorder{}
	p = p.WithMetrics(sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	// Let several ticks fire while the first invocation is blocked.
	time.Sleep(100 * time.Millisecond)
	close(release)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if got := atomic.LoadInt64(&maxConcurrent); got != 1 {
		t.Errorf("max concurrent invocations = %d, want 1", got)
	}

	_, _, skipped, _ := sink.snapshot()
	if skipped == 0 {
		t.Error("expected skipped ticks while work was in flight, got none")
	}
}

func TestWorkErrorDoesNotStopLoop(t *testing.T) {
	var calls int64

	p := New("test", 10*time.Millisecond, func(ctx context.Context) error {
		atomic.AddInt64(&calls, 1)
		return errors.New("boom")
	})

	sink := &sinkRecorder{}
	p = p.WithMetrics(sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	time.Sleep(80 * time.Millisecond)
	cancel()
	<-done

	if got := atomic.LoadInt64(&calls); got < 2 {
		t.Errorf("calls = %d, want at least 2 (loop must survive errors)", got)
	}
	_, completed, _, errCount := sink.snapshot()
	if errCount == 0 || completed == 0 {
		t.Errorf("completed=%d errors=%d, want both > 0", completed, errCount)
	}
}

func TestWorkPanicDoesNotStopLoop(t *testing.T) {
	var calls int64

	p := New("test", 10*time.Millisecond, func(ctx context.Context) error {
		atomic.AddInt64(&calls, 1)
		panic("malformed row")
	})

	sink := &sinkRecorder{}
	p = p.WithMetrics(sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	time.Sleep(80 * time.Millisecond)
	cancel()
	<-done

	if got := atomic.LoadInt64(&calls); got < 2 {
		t.Errorf("calls = %d, want at least 2 (loop must survive panics)", got)
	}
	_, _, _, errCount := sink.snapshot()
	if errCount == 0 {
		t.Error("expected panic to be reported as a completed poll with error")
	}
}

func TestInFlightWorkSurvivesCancel(t *testing.T) {
	entered := make(chan struct{})
	proceed := make(chan struct{})
	var sawCancel atomic.Bool

	p := New("test", time.Hour, func(ctx context.Context) error {
		close(entered)
		<-proceed
		// The stop signal must not reach work already in flight; a store
		// call here would otherwise abort mid-transition.
		if ctx.Err() != nil {
			sawCancel.Store(true)
		}
		select {
		case <-ctx.Done():
			sawCancel.Store(true)
		default:
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	<-entered
	cancel()
	close(proceed)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}

	if sawCancel.Load() {
		t.Error("in-flight work observed cancellation at shutdown; it must run to completion")
	}
}

func TestRunWaitsForInFlightWork(t *testing.T) {
	entered := make(chan struct{})
	var finished atomic.Bool

	// Hour-long interval: exactly one invocation fires.
	p := New("test", time.Hour, func(ctx context.Context) error {
		close(entered)
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	<-entered
	cancel()

	select {
	case <-done:
		if !finished.Load() {
			t.Error("Run returned before in-flight work finished")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}
