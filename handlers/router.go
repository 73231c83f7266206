package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"llmquery/config"
	"llmquery/models"
	"llmquery/observability"
)

// NewRouter wires middleware and routes. An empty origin list allows every
// origin, which is what the browser UI needs in development.
func NewRouter(h *Handlers, corsCfg config.CORSConfig, logger *slog.Logger) *gin.Engine {
	r := gin.New()

	r.Use(cors.New(corsConfig(corsCfg)))
	r.Use(observability.RequestIDMiddleware())
	r.Use(observability.LoggingMiddleware(logger))
	r.Use(observability.MetricsMiddleware())
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.ErrorContext(c.Request.Context(), "panic recovered", "panic", recovered, "path", c.Request.URL.Path)
		c.AbortWithStatusJSON(http.StatusInternalServerError, models.ErrorResponse{Error: "internal server error"})
	}))

	r.GET("/health", h.HealthHandler)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api")
	{
		api.POST("/query", h.QueryHandler)
		api.POST("/query/export", h.ExportHandler)
		api.GET("/history", h.HistoryHandler)
	}

	return r
}

func corsConfig(cfg config.CORSConfig) cors.Config {
	cc := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", "X-User-ID", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Disposition", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 {
		cc.AllowOriginFunc = func(string) bool { return true }
	} else {
		cc.AllowOrigins = cfg.AllowedOrigins
	}
	return cc
}
