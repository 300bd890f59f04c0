// internal/server/handlers.go
package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	cerrors "community-scout/internal/common/errors"
	"community-scout/internal/common/logger"
	"community-scout/internal/pipeline"
)

type Handler struct {
	pipeline *pipeline.Pipeline
	logger   logger.Logger
}

func NewHandler(pipe *pipeline.Pipeline, log logger.Logger) *Handler {
	return &Handler{
		pipeline: pipe,
		logger: log.With(map[string]interface{}{
			"component": "handler",
		}),
	}
}

type discoverRequest struct {
	Query string `json:"query"`
}

// Discover runs the full discovery pipeline for one query. Only a missing
// query short-circuits with a client error; degraded runs still return 200.
func (h *Handler) Discover(c *gin.Context) {
	var req discoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := h.pipeline.Run(c.Request.Context(), req.Query)
	if err != nil {
		if errors.Is(err, pipeline.ErrEmptyQuery) {
			c.JSON(http.StatusBadRequest, gin.H{"error": cerrors.NewEmptyQueryError()})
			return
		}
		h.logger.Error("discovery run failed", map[string]interface{}{
			"error": err.Error(),
		})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
