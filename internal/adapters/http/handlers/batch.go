package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/go-reqctx/internal/adapters/http/dto"
	"github.com/jsamuelsen/go-reqctx/internal/domain"
)

// BatchRunner runs batches and serves their archived results.
type BatchRunner interface {
	Run(ctx context.Context, batch domain.Batch) (*domain.BatchResult, error)
	Results(ctx context.Context, requestID string) ([]domain.TaskResult, error)
}

// BatchHandler handles batch endpoints.
type BatchHandler struct {
	runner BatchRunner
}

// NewBatchHandler creates a new batch handler.
func NewBatchHandler(runner BatchRunner) *BatchHandler {
	return &BatchHandler{runner: runner}
}

// Submit handles POST /api/v1/batches.
// Every task runs on its own worker flow that shares the request's context,
// so results carry the request ID seen by the worker.
//
// @Summary Run a batch
// @Tags batches
// @Accept json
// @Produce json
// @Param batch body dto.BatchRequest true "Tasks to run"
// @Success 200 {object} dto.BatchResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 504 {object} dto.ErrorResponse
// @Router /api/v1/batches [post]
func (h *BatchHandler) Submit(c *gin.Context) {
	var req dto.BatchRequest

	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.RespondWithBindError(c, err)
		return
	}

	result, err := h.runner.Run(c.Request.Context(), req.ToDomain())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewBatchResponse(result))
}

// Results handles GET /api/v1/batches/:request_id.
// Results are ordered by task ID and paginated with an opaque cursor.
//
// @Summary List archived results of a request
// @Tags batches
// @Produce json
// @Param request_id path string true "Request ID"
// @Param cursor query string false "Cursor from a previous page"
// @Param limit query int false "Page size (1-100)"
// @Success 200 {object} dto.Page[dto.TaskResultResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/batches/{request_id} [get]
func (h *BatchHandler) Results(c *gin.Context) {
	var page dto.PageRequest

	if err := dto.BindQueryAndValidate(c, &page); err != nil {
		dto.RespondWithBindError(c, err)
		return
	}

	after, err := page.After()
	if err != nil {
		dto.RespondWithErrorCode(c, dto.ErrorCodeBadRequest, "invalid cursor")
		return
	}

	results, err := h.runner.Results(c.Request.Context(), c.Param("request_id"))
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	items := make([]dto.TaskResultResponse, len(results))
	for i, r := range results {
		items[i] = dto.NewTaskResultResponse(r)
	}

	c.JSON(http.StatusOK, dto.PageAfter(items, after, page.PageSize(), dto.ResultKey))
}

// RegisterRoutes registers the batch routes on rg.
func (h *BatchHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/batches", h.Submit)
	rg.GET("/batches/:request_id", h.Results)
}
