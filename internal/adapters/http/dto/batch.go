package dto

import (
	"time"

	"github.com/jsamuelsen/go-reqctx/internal/domain"
)

// MaxBatchTasks bounds the number of tasks in one request.
const MaxBatchTasks = 256

// TaskRequest is one task in a batch submission.
type TaskRequest struct {
	ID     string `json:"id"     validate:"required,notblank,identifier,max=128"`
	Input  string `json:"input"  validate:"max=65536"`
	Weight int    `json:"weight" validate:"gte=0,lte=1000"`
}

// BatchRequest is the body of POST /api/v1/batches.
type BatchRequest struct {
	Tasks []TaskRequest `json:"tasks" validate:"required,min=1,max=256,dive"`
}

// ToDomain converts the request to a domain batch.
func (r *BatchRequest) ToDomain() domain.Batch {
	tasks := make([]domain.Task, len(r.Tasks))
	for i, t := range r.Tasks {
		tasks[i] = domain.Task{ID: t.ID, Input: t.Input, Weight: t.Weight}
	}

	return domain.Batch{Tasks: tasks}
}

// TaskResultResponse is one task outcome.
type TaskResultResponse struct {
	TaskID    string `json:"taskId"`
	Digest    string `json:"digest"`
	Weight    int    `json:"weight"`
	RequestID string `json:"requestId"`
	Step      string `json:"step"`
}

// NewTaskResultResponse converts a domain task result.
func NewTaskResultResponse(r domain.TaskResult) TaskResultResponse {
	return TaskResultResponse{
		TaskID:    r.TaskID,
		Digest:    r.Digest,
		Weight:    r.Weight,
		RequestID: r.RequestID,
		Step:      r.Step,
	}
}

// BatchResponse is the body returned for a completed batch.
type BatchResponse struct {
	RequestID   string               `json:"requestId"`
	Completed   int                  `json:"completed"`
	WeightTotal int64                `json:"weightTotal"`
	Results     []TaskResultResponse `json:"results"`
}

// NewBatchResponse converts a domain batch result.
func NewBatchResponse(r *domain.BatchResult) *BatchResponse {
	results := make([]TaskResultResponse, len(r.Results))
	for i, tr := range r.Results {
		results[i] = NewTaskResultResponse(tr)
	}

	return &BatchResponse{
		RequestID:   r.RequestID,
		Completed:   r.Completed,
		WeightTotal: r.WeightTotal,
		Results:     results,
	}
}

// ResultKey orders archived results in listings.
func ResultKey(r TaskResultResponse) string {
	return r.TaskID
}

// ContextResponse describes the request context a handler observed.
type ContextResponse struct {
	RequestID         string           `json:"requestId"`
	CorrelationID     string           `json:"correlationId"`
	TraceID           string           `json:"traceId,omitempty"`
	DeadlineRemaining *time.Duration   `json:"deadlineRemainingNs,omitempty"`
	Keys              []string         `json:"keys"`
	Counters          map[string]int64 `json:"counters,omitempty"`
}
