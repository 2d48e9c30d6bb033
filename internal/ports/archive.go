// Package ports defines the interfaces the application layer depends on.
// Adapters implement them; the application never imports an adapter.
package ports

import (
	"context"

	"github.com/jsamuelsen/go-reqctx/internal/domain"
)

// ResultArchive keeps the verified task results of each request.
type ResultArchive interface {
	// Save records a verified result under the request that produced it.
	// Returns domain.ErrConflict if the task was already archived for that
	// request.
	Save(ctx context.Context, requestID string, result domain.TaskResult) error

	// List returns the results archived for a request, ordered by task id.
	// Returns domain.ErrNotFound if nothing was archived for it.
	List(ctx context.Context, requestID string) ([]domain.TaskResult, error)
}
