package domain

import "fmt"

// MaxTaskWeight bounds the weight of a single task.
const MaxTaskWeight = 1000

// Task is one unit of work in a batch.
type Task struct {
	ID     string
	Input  string
	Weight int
}

// Batch is the set of tasks submitted by one request.
type Batch struct {
	Tasks []Task
}

// Validate checks the batch is non-empty, ids are present and unique, and
// weights are in range.
func (b Batch) Validate() error {
	if len(b.Tasks) == 0 {
		return NewValidationError("tasks", "at least one task is required")
	}

	seen := make(map[string]struct{}, len(b.Tasks))

	for i, t := range b.Tasks {
		if t.ID == "" {
			return NewValidationError(fmt.Sprintf("tasks[%d].id", i), "cannot be empty")
		}

		if _, dup := seen[t.ID]; dup {
			return NewConflictError("task", fmt.Sprintf("duplicate id %q", t.ID))
		}

		seen[t.ID] = struct{}{}

		if t.Weight < 0 || t.Weight > MaxTaskWeight {
			return NewValidationError(
				fmt.Sprintf("tasks[%d].weight", i),
				fmt.Sprintf("must be between 0 and %d, got %d", MaxTaskWeight, t.Weight),
			)
		}
	}

	return nil
}

// TotalWeight returns the sum of task weights.
func (b Batch) TotalWeight() int64 {
	var total int64

	for _, t := range b.Tasks {
		total += int64(t.Weight)
	}

	return total
}

// TaskResult is the outcome of one task. RequestID and Step are read from the
// request context of the flow that ran the task.
type TaskResult struct {
	TaskID    string
	Digest    string
	Weight    int
	RequestID string
	Step      string
}

// BatchResult is the outcome of a batch.
type BatchResult struct {
	RequestID   string
	Results     []TaskResult
	Completed   int
	WeightTotal int64
}
