package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthHandler checks the health status of the service
// @Summary      Health check
// @Description  Reports whether the schema is loaded and whether the database and history store answer
// @Tags         Health
// @Produce      json
// @Success      200  {object}  map[string]string  "Service health status"
// @Router       /health [get]
func (h *Handlers) HealthHandler(c *gin.Context) {
	status := gin.H{
		"status":   "healthy",
		"schema":   "loaded",
		"llm":      "ready",
		"database": "not_configured",
		"history":  "disabled",
	}

	if !h.generator.SchemaLoaded() {
		status["schema"] = "missing"
		status["status"] = "degraded"
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if h.database != nil {
		if h.database.IsConnected(ctx) {
			status["database"] = "connected"
		} else {
			status["database"] = "unreachable"
			status["status"] = "degraded"
		}
	}

	if h.history != nil {
		if err := h.history.Ping(); err != nil {
			status["history"] = "unavailable"
			status["status"] = "degraded"
		} else {
			status["history"] = "ready"
		}
	}

	c.JSON(http.StatusOK, status)
}
