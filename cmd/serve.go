package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"llmquery/ai"
	"llmquery/audit"
	"llmquery/cache"
	"llmquery/config"
	"llmquery/db"
	_ "llmquery/docs" // Swagger docs
	"llmquery/handlers"
	"llmquery/observability"
	"llmquery/service"
	"llmquery/validation"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := observability.NewLogger(cfg.Log, os.Stderr)
		slog.SetDefault(logger)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, logger)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

type closer struct {
	name  string
	close func() error
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if err := ensureDirectories(cfg); err != nil {
		return err
	}

	var closers []closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].close(); err != nil {
				logger.Warn("failed to close", "component", closers[i].name, "err", err)
			}
		}
	}()

	var store cache.Store
	if cfg.Cache.Enabled {
		switch cfg.Cache.Backend {
		case "memory":
			store = cache.New(cfg.Cache.TTL)
		default:
			fileStore, err := cache.NewFileStore(cfg.Cache.Dir, cfg.Cache.TTL, logger)
			if err != nil {
				return err
			}
			store = fileStore
		}
	}

	aiService, err := ai.New(ai.Config{
		Endpoint:           cfg.LLM.Endpoint,
		APIKey:             cfg.LLM.APIKey,
		Model:              cfg.LLM.Model,
		Temperature:        cfg.LLM.Temperature,
		MaxTokens:          cfg.LLM.MaxTokens,
		Timeout:            cfg.LLM.Timeout,
		MinRequestInterval: cfg.LLM.MinRequestInterval,
	}, store, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	if cfg.LLM.APIKey == "" {
		logger.Warn("llm.api_key is empty; requests to the completions endpoint will likely be rejected")
	}

	// Runner and checker stay nil interfaces when no database is configured.
	var (
		runner  service.QueryRunner
		checker handlers.ConnectionChecker
		conn    *sql.DB
	)
	if cfg.DatabaseConfigured() {
		conn, err = service.Open(cfg.Database)
		if err != nil {
			logger.Warn("database unavailable, execution is disabled", "err", err)
		} else {
			queries := service.NewQueryService(conn, cfg.Database.MaxRows, cfg.Database.QueryTimeout, logger)
			closers = append(closers, closer{"database", queries.Close})
			runner, checker = queries, queries
		}
	} else {
		logger.Info("no database configured, execution is disabled")
	}

	schema, err := service.LoadSchema(ctx, cfg.SchemaFile, conn, cfg.Database.Driver, logger)
	if err != nil {
		logger.Warn("failed to load schema", "err", err)
	}
	if schema == "" {
		logger.Warn("no database schema available; generation requests will fail until one is provided", "schema_file", cfg.SchemaFile)
	}

	var auditLog service.AuditLogger
	if cfg.Audit.Enabled {
		l, err := audit.New(cfg.Audit.File)
		if err != nil {
			return err
		}
		closers = append(closers, closer{"audit log", l.Close})
		auditLog = l
	}

	history, err := db.New(cfg.HistoryPath)
	if err != nil {
		return fmt.Errorf("failed to open history store: %w", err)
	}
	closers = append(closers, closer{"history", history.Close})

	generator := service.NewGenerator(service.GeneratorConfig{
		Schema: schema,
		Prompt: ai.PromptOptions{Dialect: cfg.Dialect, MaxRows: cfg.Database.MaxRows, QuoteChar: quoteChar(cfg.Database.Driver)},
		LLM:    aiService,
		Runner: runner,
		Validator: validation.NewValidator(validation.Policy{
			ForbiddenKeywords:    cfg.Security.ForbiddenKeywords,
			AllowedTablePrefixes: cfg.Security.AllowedTablePrefixes,
		}),
		Audit:   auditLog,
		History: history,
		Logger:  logger,
	})

	gin.SetMode(gin.ReleaseMode)
	h := handlers.New(generator, checker, history, logger)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.NewRouter(h, cfg.CORS, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting server", "addr", server.Addr, "model", aiService.Model(), "database", runner != nil)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		logger.Info("shutting down server")
		if err := server.Shutdown(shutdownCtx); err != nil {
			_ = server.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// ensureDirectories creates the directories the file-backed components write to.
func ensureDirectories(cfg config.Config) error {
	dirs := []string{cfg.HistoryPath}
	if cfg.Cache.Enabled && cfg.Cache.Backend == "file" {
		dirs = append(dirs, cfg.Cache.Dir)
	}
	if cfg.Audit.Enabled {
		dirs = append(dirs, filepath.Dir(cfg.Audit.File))
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

func quoteChar(driver string) string {
	if driver == "sqlserver" {
		return "["
	}
	return "`"
}
