package reqctx

import (
	"log/slog"
	"sync"
)

// Option configures a RequestContext or a Slot.
type Option func(*options)

// options are shared by a context, its shallow copies, and every context
// created through the same Slot.
type options struct {
	logger        *slog.Logger
	onCollision   func(key string)
	logCollisions bool

	// warned holds the keys whose collision has already been logged.
	warned sync.Map
}

// WithLogger sets the logger used for collision diagnostics. Without it the
// slog default logger at the time of the collision is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithCollisionHook registers fn to be called on every SetContextData
// collision, after the colliding entry has been removed. Unlike the log
// warning it is never de-duplicated, which makes it suitable for metrics.
func WithCollisionHook(fn func(key string)) Option {
	return func(o *options) {
		o.onCollision = fn
	}
}

// WithCollisionLogging enables or disables the one-time collision warning.
// It is enabled by default.
func WithCollisionLogging(enabled bool) Option {
	return func(o *options) {
		o.logCollisions = enabled
	}
}

func newOptions(opts ...Option) *options {
	o := &options{logCollisions: true}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// collision reports that key was set while already present. The warning is
// logged the first time each key collides.
func (o *options) collision(key string) {
	if o.logCollisions {
		if _, seen := o.warned.LoadOrStore(key, struct{}{}); !seen {
			o.log().Warn("request context data already set, clearing it",
				slog.String("key", key),
			)
		}
	}

	if o.onCollision != nil {
		o.onCollision(key)
	}
}

func (o *options) log() *slog.Logger {
	if o.logger != nil {
		return o.logger
	}

	return slog.Default()
}
