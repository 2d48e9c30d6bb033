package reqctx

import (
	"bytes"
	"log/slog"
	"sync"
	"sync/atomic"
)

// recorder collects callback events in the order they happen.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)
}

// take returns the recorded events and resets the log.
func (r *recorder) take() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	events := r.events
	r.events = nil

	return events
}

// tracked is a test payload that records its callbacks and destruction.
type tracked struct {
	Base

	name      string
	callback  bool
	rec       *recorder
	destroyed atomic.Int32
}

func newTracked(rec *recorder, name string, callback bool) *tracked {
	return &tracked{name: name, callback: callback, rec: rec}
}

func (p *tracked) HasCallback() bool { return p.callback }

func (p *tracked) OnSet() {
	if p.rec != nil {
		p.rec.add("set:" + p.name)
	}
}

func (p *tracked) OnUnset() {
	if p.rec != nil {
		p.rec.add("unset:" + p.name)
	}
}

func (p *tracked) Destroy() {
	p.destroyed.Add(1)
}

// bufferLogger returns a JSON logger writing into the returned buffer.
func bufferLogger() (*slog.Logger, *syncBuffer) {
	buf := &syncBuffer{}

	return slog.New(slog.NewJSONHandler(buf, nil)), buf
}

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}
