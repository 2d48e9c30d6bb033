// Package archive provides ResultArchive implementations.
package archive

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/jsamuelsen/go-reqctx/internal/domain"
)

// DefaultMaxRequests is the number of requests a Memory archive retains.
const DefaultMaxRequests = 1024

// Memory is an in-process ResultArchive. It keeps the results of the most
// recent requests and forgets the oldest once more than maxRequests are held.
type Memory struct {
	mu          sync.RWMutex
	byRequest   map[string]map[string]domain.TaskResult
	order       []string
	maxRequests int
	closed      bool
}

// NewMemory returns an empty archive retaining at most maxRequests requests.
// A non-positive maxRequests selects DefaultMaxRequests.
func NewMemory(maxRequests int) *Memory {
	if maxRequests <= 0 {
		maxRequests = DefaultMaxRequests
	}

	return &Memory{
		byRequest:   make(map[string]map[string]domain.TaskResult),
		maxRequests: maxRequests,
	}
}

// Save implements ports.ResultArchive.
func (m *Memory) Save(ctx context.Context, requestID string, result domain.TaskResult) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("archiving task %q: %w", result.TaskID, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errClosed()
	}

	results, ok := m.byRequest[requestID]
	if !ok {
		results = make(map[string]domain.TaskResult)
		m.byRequest[requestID] = results
		m.order = append(m.order, requestID)
		m.evict()
	}

	if _, dup := results[result.TaskID]; dup {
		return domain.NewConflictError("task", fmt.Sprintf("%q already archived", result.TaskID))
	}

	results[result.TaskID] = result

	return nil
}

// List implements ports.ResultArchive.
func (m *Memory) List(_ context.Context, requestID string) ([]domain.TaskResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, errClosed()
	}

	results, ok := m.byRequest[requestID]
	if !ok {
		return nil, domain.NewNotFoundError("results", requestID)
	}

	out := make([]domain.TaskResult, 0, len(results))
	for _, r := range results {
		out = append(out, r)
	}

	slices.SortFunc(out, func(a, b domain.TaskResult) int {
		return cmp.Compare(a.TaskID, b.TaskID)
	})

	return out, nil
}

// Len returns the number of requests held.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.byRequest)
}

// Name implements ports.HealthChecker.
func (m *Memory) Name() string {
	return "archive"
}

// Check implements ports.HealthChecker.
func (m *Memory) Check(ctx context.Context) error {
	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()

	if closed {
		return errClosed()
	}

	return ctx.Err()
}

// Close drops every held result. Later calls to Save, List and Check fail
// with an unavailable error.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.byRequest = nil
	m.order = nil

	return nil
}

func errClosed() error {
	return domain.NewUnavailableError("archive", "closed")
}

// evict drops the oldest requests beyond the limit. Callers hold m.mu.
func (m *Memory) evict() {
	for len(m.order) > m.maxRequests {
		delete(m.byRequest, m.order[0])
		m.order = m.order[1:]
	}
}
