package payload

import (
	"maps"
	"sync"

	"github.com/jsamuelsen/go-reqctx/internal/app/reqctx"
)

// CounterSink receives the final counter values of a request.
type CounterSink interface {
	FlushCounters(totals map[string]int64)
}

// Counters holds named per-request counters. Every shallow copy of the
// context shares the same Counters, so increments from any flow land in one
// place. The totals go to the sink once the request's last context is done
// with them.
type Counters struct {
	reqctx.Base

	mu     sync.Mutex
	values map[string]int64
	sink   CounterSink
}

// NewCounters returns empty counters flushed to sink, which may be nil.
func NewCounters(sink CounterSink) *Counters {
	return &Counters{values: make(map[string]int64), sink: sink}
}

// Add increments the named counter by delta and returns the new value.
func (c *Counters) Add(name string, delta int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.values[name] += delta

	return c.values[name]
}

// Get returns the named counter.
func (c *Counters) Get(name string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.values[name]
}

// Snapshot returns a copy of all counters.
func (c *Counters) Snapshot() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return maps.Clone(c.values)
}

// Destroy flushes the totals to the sink.
func (c *Counters) Destroy() {
	if c.sink != nil {
		c.sink.FlushCounters(c.Snapshot())
	}
}

// CountersOf returns the counters stored in rc.
func CountersOf(rc *reqctx.RequestContext) (*Counters, bool) {
	return reqctx.Lookup[*Counters](rc, KeyCounters)
}
