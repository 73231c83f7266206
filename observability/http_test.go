package observability

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"llmquery/config"
)

func newTestEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handlers...)
	return r
}

func TestRequestIDMiddlewarePreservesIncomingID(t *testing.T) {
	r := newTestEngine(RequestIDMiddleware())
	var seen string
	r.GET("/health", func(c *gin.Context) {
		seen = RequestIDFromContext(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "req-1")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, "req-1", seen)
	assert.Equal(t, "req-1", rr.Header().Get(requestIDHeader))
}

func TestRequestIDMiddlewareGeneratesID(t *testing.T) {
	r := newTestEngine(RequestIDMiddleware())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Len(t, rr.Header().Get(requestIDHeader), 36)
}

func TestRequestIDContextHelpers(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "abc123")
	assert.Equal(t, "abc123", RequestIDFromContext(ctx))
	assert.Empty(t, RequestIDFromContext(context.Background()))
}

func TestLoggingMiddlewareWritesRequestLine(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(config.LogConfig{Level: slog.LevelInfo, JSON: true}, &buf)

	r := newTestEngine(RequestIDMiddleware(), LoggingMiddleware(logger), MetricsMiddleware())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusAccepted) })
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	out := buf.String()
	assert.Contains(t, out, `"msg":"http_request"`)
	assert.Contains(t, out, `"status":202`)
	assert.Contains(t, out, `"service":"llmquery"`)
}

func TestNewLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(config.LogConfig{Level: slog.LevelWarn}, &buf)
	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	NewLogger(config.LogConfig{}, nil).Info("discarded")
}
