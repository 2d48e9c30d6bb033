package payload

import (
	"context"
	"time"

	"github.com/jsamuelsen/go-reqctx/internal/app/reqctx"
)

// Deadline is the point in time by which the request must be finished.
type Deadline struct {
	reqctx.Base

	at  time.Time
	now func() time.Time
}

// NewDeadline returns a Deadline at.
func NewDeadline(at time.Time) *Deadline {
	return &Deadline{at: at, now: time.Now}
}

// NewDeadlineIn returns a Deadline d from now.
func NewDeadlineIn(d time.Duration) *Deadline {
	return NewDeadline(time.Now().Add(d))
}

// At returns the deadline.
func (d *Deadline) At() time.Time {
	return d.at
}

// Remaining returns the time left, never negative.
func (d *Deadline) Remaining() time.Duration {
	return max(d.at.Sub(d.now()), 0)
}

// Expired reports whether the deadline has passed.
func (d *Deadline) Expired() bool {
	return !d.now().Before(d.at)
}

// Apply derives a context.Context that is canceled at the deadline, or at
// the existing ctx deadline if that is earlier.
func (d *Deadline) Apply(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithDeadline(ctx, d.at)
}

// Tighten returns a Deadline no later than d and at most limit from now,
// for narrowing the deadline inside a shallow copy scope.
func (d *Deadline) Tighten(limit time.Duration) *Deadline {
	candidate := d.now().Add(limit)
	if candidate.After(d.at) {
		candidate = d.at
	}

	return &Deadline{at: candidate, now: d.now}
}

// DeadlineOf returns the deadline stored in rc.
func DeadlineOf(rc *reqctx.RequestContext) (*Deadline, bool) {
	return reqctx.Lookup[*Deadline](rc, KeyDeadline)
}
