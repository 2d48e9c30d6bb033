// Package app contains the application services. It coordinates domain types
// and ports, and is where request context propagation across goroutines
// happens: every helper that starts a goroutine hands the caller's request
// context to it.
package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/jsamuelsen/go-reqctx/internal/app/payload"
	"github.com/jsamuelsen/go-reqctx/internal/app/reqctx"
	"github.com/jsamuelsen/go-reqctx/internal/domain"
	"github.com/jsamuelsen/go-reqctx/internal/platform/logging"
	"github.com/jsamuelsen/go-reqctx/internal/ports"
)

// Counter names recorded in the request's payload.Counters.
const (
	CounterTasksCompleted = "tasks_completed"
	CounterWeightTotal    = "weight_total"
)

// DefaultConcurrency is the number of tasks a batch runs at once when not configured.
const DefaultConcurrency = 4

const opRunTask = "batch.task"

// BatchService runs batches of tasks concurrently. Each task runs on its own
// flow with the submitting request's context installed, so payloads such as
// the request id, span and counters are visible to the task.
type BatchService struct {
	archive     ports.ResultArchive
	exec        *Executor
	concurrency int
	logger      *slog.Logger
}

// BatchServiceConfig holds optional configuration for the service.
type BatchServiceConfig struct {
	Logger      *slog.Logger
	Concurrency int
}

// NewBatchService creates a batch service archiving results to archive.
func NewBatchService(archive ports.ResultArchive, cfg *BatchServiceConfig) *BatchService {
	logger := slog.Default()
	concurrency := DefaultConcurrency

	if cfg != nil {
		if cfg.Logger != nil {
			logger = cfg.Logger
		}

		if cfg.Concurrency > 0 {
			concurrency = cfg.Concurrency
		}
	}

	logger = logger.With(slog.String("component", "app.BatchService"))

	return &BatchService{
		archive:     archive,
		exec:        NewExecutor(logger),
		concurrency: concurrency,
		logger:      logger,
	}
}

// Run validates batch and runs its tasks. It fails on the first failing task.
func (s *BatchService) Run(ctx context.Context, batch domain.Batch) (*domain.BatchResult, error) {
	logger := logging.FromContext(ctx).With(slog.String("method", "Run"))

	if err := batch.Validate(); err != nil {
		return nil, fmt.Errorf("validating batch: %w", err)
	}

	requestID := payload.RequestIDOf(reqctx.Get(ctx))

	fns := make([]func(context.Context) (domain.TaskResult, error), 0, len(batch.Tasks))
	for _, task := range batch.Tasks {
		fns = append(fns, func(ctx context.Context) (domain.TaskResult, error) {
			return s.runTask(ctx, task)
		})
	}

	results, err := ParallelLimit(ctx, s.concurrency, fns...)
	if err != nil {
		return nil, fmt.Errorf("running batch: %w", err)
	}

	logger.InfoContext(ctx, "batch completed",
		slog.Int("tasks", len(results)),
		slog.Int64("weight_total", batch.TotalWeight()),
	)

	return &domain.BatchResult{
		RequestID:   requestID,
		Results:     results,
		Completed:   len(results),
		WeightTotal: batch.TotalWeight(),
	}, nil
}

// Results returns the archived results of a previous request.
func (s *BatchService) Results(ctx context.Context, requestID string) ([]domain.TaskResult, error) {
	results, err := s.archive.List(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("listing results: %w", err)
	}

	return results, nil
}

func (s *BatchService) runTask(ctx context.Context, task domain.Task) (domain.TaskResult, error) {
	var (
		performed string
		result    domain.TaskResult
	)

	err := s.exec.Run(ctx, opRunTask,
		Step{Name: StepValidate, Run: func(ctx context.Context) error {
			return validateTask(ctx, task)
		}},
		Step{Name: StepPerform, Run: func(ctx context.Context) (err error) {
			performed, err = performTask(ctx, task)
			return err
		}},
		Step{Name: StepVerify, Run: func(ctx context.Context) (err error) {
			result, err = verifyTask(ctx, task, performed)
			return err
		}},
		Step{Name: StepArchive, Run: func(ctx context.Context) error {
			return s.archive.Save(ctx, result.RequestID, result)
		}},
		Step{Name: StepRespond, Run: func(ctx context.Context) error {
			result = respondTask(ctx, task, result)
			return nil
		}},
	)
	if err != nil {
		return domain.TaskResult{}, err
	}

	return result, nil
}

func validateTask(ctx context.Context, task domain.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if d, ok := payload.DeadlineOf(reqctx.Get(ctx)); ok && d.Expired() {
		return domain.NewExpiredError(opRunTask, d.At())
	}

	if task.ID == "" {
		return domain.NewValidationError("id", "cannot be empty")
	}

	return nil
}

func performTask(ctx context.Context, task domain.Task) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	return digest(task), nil
}

func verifyTask(ctx context.Context, task domain.Task, performed string) (domain.TaskResult, error) {
	if performed != digest(task) {
		return domain.TaskResult{}, fmt.Errorf("digest mismatch for task %q", task.ID)
	}

	return domain.TaskResult{
		TaskID:    task.ID,
		Digest:    performed,
		Weight:    task.Weight,
		RequestID: payload.RequestIDOf(reqctx.Get(ctx)),
	}, nil
}

func respondTask(ctx context.Context, task domain.Task, verified domain.TaskResult) domain.TaskResult {
	if step, ok := CurrentStep(ctx); ok {
		verified.Step = string(step.Step)
	}

	if c, ok := payload.CountersOf(reqctx.Get(ctx)); ok {
		c.Add(CounterTasksCompleted, 1)
		c.Add(CounterWeightTotal, int64(task.Weight))
	}

	return verified
}

func digest(task domain.Task) string {
	sum := sha256.Sum256([]byte(task.ID + "\x00" + task.Input))

	return hex.EncodeToString(sum[:])
}
