package telemetry

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "reqctx"

// ContextMetrics holds the Prometheus collectors describing request context
// activity. It is safe for concurrent use.
//
// ContextMetrics satisfies payload.CounterSink, so a request's counters
// payload can flush into it when the request's last holder releases it.
type ContextMetrics struct {
	collisions   *prometheus.CounterVec
	counters     *prometheus.CounterVec
	activeScopes prometheus.Gauge
	entries      prometheus.Histogram
}

// NewContextMetrics creates the collectors and registers them with reg.
// Collectors already registered with reg are reused, so calling it twice
// against the same registry is harmless.
func NewContextMetrics(reg prometheus.Registerer) (*ContextMetrics, error) {
	m := &ContextMetrics{
		collisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "collisions_total",
			Help:      "Number of request context keys cleared because they were set twice.",
		}, []string{"key"}),
		counters: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "request_counters_total",
			Help:      "Per-request counters flushed when a request's context is released.",
		}, []string{"counter"}),
		activeScopes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "active_scopes",
			Help:      "Number of request scopes currently open.",
		}),
		entries: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "entries",
			Help:      "Number of entries held by a request context when its scope closed.",
			Buckets:   prometheus.LinearBuckets(0, 2, 8),
		}),
	}

	var err error

	m.collisions, err = register(reg, m.collisions)
	if err != nil {
		return nil, err
	}

	m.counters, err = register(reg, m.counters)
	if err != nil {
		return nil, err
	}

	m.activeScopes, err = register(reg, m.activeScopes)
	if err != nil {
		return nil, err
	}

	m.entries, err = register(reg, m.entries)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}

	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}

	return c, err
}

// Collision records a collision on key. It has the signature expected by
// reqctx.WithCollisionHook.
func (m *ContextMetrics) Collision(key string) {
	m.collisions.WithLabelValues(key).Inc()
}

// FlushCounters adds a request's counter totals. Non-positive totals are
// ignored since Prometheus counters only increase.
func (m *ContextMetrics) FlushCounters(totals map[string]int64) {
	for name, v := range totals {
		if v > 0 {
			m.counters.WithLabelValues(name).Add(float64(v))
		}
	}
}

// ScopeOpened records a request scope being entered.
func (m *ContextMetrics) ScopeOpened() {
	m.activeScopes.Inc()
}

// ScopeClosed records a request scope being left along with the number of
// entries its context held.
func (m *ContextMetrics) ScopeClosed(entries int) {
	m.activeScopes.Dec()
	m.entries.Observe(float64(entries))
}
