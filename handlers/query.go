package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"llmquery/apperrors"
	"llmquery/models"
	"llmquery/service"
)

const (
	actionGenerate = "generate"
	actionExecute  = "execute"
)

// QueryHandler generates SQL from a question or executes a reviewed statement
// @Summary      Generate or execute a read-only query
// @Description  action=generate turns natural_query into SQL (and runs it when execute is true). action=execute validates and runs sql_query. Pipeline failures answer 200 with success=false and whatever was produced before the failure.
// @Tags         Query
// @Accept       json
// @Produce      json
// @Param        request    body      models.QueryRequest   true   "Query request"
// @Param        X-User-ID  header    string                false  "Caller id recorded in the audit log"
// @Success      200        {object}  map[string]interface{}  "Generation or execution result"
// @Failure      400        {object}  models.ErrorResponse    "Invalid request"
// @Failure      500        {object}  models.ErrorResponse    "Internal server error"
// @Router       /api/query [post]
func (h *Handlers) QueryHandler(c *gin.Context) {
	var req models.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	switch strings.ToLower(strings.TrimSpace(req.Action)) {
	case actionGenerate:
		h.generate(c, req)
	case actionExecute:
		h.execute(c, req)
	case "":
		badRequest(c, "action is required")
	default:
		badRequest(c, "unknown action: "+req.Action)
	}
}

func (h *Handlers) generate(c *gin.Context, req models.QueryRequest) {
	if strings.TrimSpace(req.NaturalQuery) == "" {
		badRequest(c, "natural_query is required")
		return
	}

	out, err := h.generator.Generate(c.Request.Context(), models.GenerationRequest{
		NaturalQuery: req.NaturalQuery,
		Execute:      req.Execute,
		UserID:       userID(c),
	})
	if err != nil {
		body := errorBody(err)
		if out.SQL != "" {
			body["sql_query"] = out.SQL
		}
		if out.Explanation != "" {
			body["llm_explanation"] = out.Explanation
		}
		if out.RawResponse != "" {
			body["raw_response"] = out.RawResponse
		}
		c.JSON(statusFor(err), body)
		return
	}

	body := gin.H{
		"success":         true,
		"sql_query":       out.SQL,
		"llm_explanation": out.Explanation,
		"raw_response":    out.RawResponse,
		"cached":          out.Cached,
	}
	if out.Result != nil {
		addResult(body, out.Result)
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handlers) execute(c *gin.Context, req models.QueryRequest) {
	if strings.TrimSpace(req.SQLQuery) == "" {
		badRequest(c, "sql_query is required")
		return
	}

	result, err := h.generator.Execute(c.Request.Context(), req.SQLQuery)
	if err != nil {
		c.JSON(statusFor(err), errorBody(err))
		return
	}

	body := gin.H{"success": true}
	addResult(body, result)
	c.JSON(http.StatusOK, body)
}

// ExportHandler runs a statement and downloads the rows as CSV
// @Summary      Export query results as CSV
// @Description  Validates and runs sql_query, then returns the rows as a CSV attachment
// @Tags         Query
// @Accept       json
// @Produce      text/csv
// @Param        request  body      models.ExportRequest  true  "Statement to export"
// @Success      200      {string}  string                "CSV file"
// @Failure      400      {object}  models.ErrorResponse  "Invalid request"
// @Failure      422      {object}  models.ErrorResponse  "Query rejected or failed"
// @Router       /api/query/export [post]
func (h *Handlers) ExportHandler(c *gin.Context) {
	var req models.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.SQLQuery) == "" {
		badRequest(c, "sql_query is required")
		return
	}

	result, err := h.generator.Execute(c.Request.Context(), req.SQLQuery)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusOK {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, errorBody(err))
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="`+service.ExportFileName(h.now())+`"`)
	c.Status(http.StatusOK)
	if err := service.WriteCSV(c.Writer, result); err != nil {
		h.logger.ErrorContext(c.Request.Context(), "failed to write csv export", "err", err)
	}
}

func errorBody(err error) gin.H {
	return gin.H{
		"success": false,
		"error":   apperrors.Message(err),
	}
}

func addResult(body gin.H, result *models.QueryResult) {
	body["columns"] = result.Columns
	body["results"] = result.Rows
	body["row_count"] = result.RowCount
	body["limited"] = result.Truncated
}
