package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"llmquery/apperrors"
	"llmquery/models"
	"llmquery/service"
)

// @title           llmquery API
// @version         1.0
// @description     Natural-language questions in, validated read-only SQL out. Optionally runs the SQL against the reporting database.

// @contact.name   API Support

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:9090
// @BasePath  /

// @schemes   http https

const (
	userIDHeader  = "X-User-ID"
	defaultUserID = "unknown"
)

// HistoryStore is the subset of db.DB the handlers use.
type HistoryStore interface {
	ListHistory(limit int) ([]models.HistoryEntry, error)
	Ping() error
}

// ConnectionChecker reports whether the reporting database answers.
type ConnectionChecker interface {
	IsConnected(ctx context.Context) bool
}

type Handlers struct {
	generator *service.Generator
	database  ConnectionChecker // nil when no database is configured
	history   HistoryStore      // nil when history is disabled
	logger    *slog.Logger
	now       func() time.Time
}

func New(generator *service.Generator, database ConnectionChecker, history HistoryStore, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		generator: generator,
		database:  database,
		history:   history,
		logger:    logger,
		now:       time.Now,
	}
}

func userID(c *gin.Context) string {
	if id := c.GetHeader(userIDHeader); id != "" {
		return id
	}
	return defaultUserID
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{Success: false, Error: msg})
}

// statusFor maps a pipeline error to an HTTP status. Classified pipeline
// failures are reported with 200 and success=false so the client can still
// show the partial result.
func statusFor(err error) int {
	switch apperrors.KindOf(err) {
	case apperrors.InputError:
		return http.StatusBadRequest
	case apperrors.Internal:
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}
