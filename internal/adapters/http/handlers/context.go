package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/go-reqctx/internal/adapters/http/dto"
	"github.com/jsamuelsen/go-reqctx/internal/app/payload"
	"github.com/jsamuelsen/go-reqctx/internal/app/reqctx"
)

// Context handles GET /api/v1/context. It reports the request context the
// handler runs with, which makes propagation visible to clients and tests.
//
// @Summary Describe the request context
// @Tags context
// @Produce json
// @Success 200 {object} dto.ContextResponse
// @Router /api/v1/context [get]
func Context(c *gin.Context) {
	rc := reqctx.Get(c.Request.Context())

	resp := dto.ContextResponse{
		RequestID:     payload.RequestIDOf(rc),
		CorrelationID: payload.CorrelationIDOf(rc),
		TraceID:       payload.TraceIDOf(rc),
		Keys:          rc.Keys(),
	}

	if d, ok := payload.DeadlineOf(rc); ok {
		remaining := d.Remaining()
		resp.DeadlineRemaining = &remaining
	}

	if counters, ok := payload.CountersOf(rc); ok {
		resp.Counters = counters.Snapshot()
	}

	c.JSON(http.StatusOK, resp)
}
