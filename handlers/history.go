package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"llmquery/models"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// HistoryHandler lists recent generations
// @Summary      List recent generations
// @Description  Returns the most recent generation attempts, newest first, successful or not
// @Tags         History
// @Produce      json
// @Param        limit  query     int                   false  "Maximum entries (default 50, max 500)"
// @Success      200    {object}  map[string]interface{}  "History entries"
// @Failure      400    {object}  models.ErrorResponse  "Invalid limit"
// @Failure      503    {object}  models.ErrorResponse  "History store not configured"
// @Router       /api/history [get]
func (h *Handlers) HistoryHandler(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "history store is not configured"})
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			badRequest(c, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	entries, err := h.history.ListHistory(limit)
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "failed to list history", "err", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to list history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "history": entries})
}
