package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) PollStarted(name string)                                      {}
func (n *NoopSink) PollCompleted(name string, duration time.Duration, err error) {}
func (n *NoopSink) PollSkipped(name string)                                      {}
func (n *NoopSink) TransitionsApplied(scheduler string, count int)               {}
func (n *NoopSink) DedupHit(subtype string)                                      {}
func (n *NoopSink) NotificationsInserted(category string, count int)             {}
func (n *NoopSink) CacheKeysInvalidated(count int)                               {}
func (n *NoopSink) CacheInvalidationError()                                      {}
