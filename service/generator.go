package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"llmquery/ai"
	"llmquery/apperrors"
	"llmquery/models"
	"llmquery/observability"
	"llmquery/validation"
)

// Stage is a step of the generation pipeline.
type Stage int

const (
	StageIdle Stage = iota
	StagePromptBuilt
	StageLLMCalled
	StageExtracted
	StageValidated
	StageExecuted
	StageDone
	StageError
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StagePromptBuilt:
		return "prompt_built"
	case StageLLMCalled:
		return "llm_called"
	case StageExtracted:
		return "extracted"
	case StageValidated:
		return "validated"
	case StageExecuted:
		return "executed"
	case StageDone:
		return "done"
	case StageError:
		return "error"
	default:
		return "unknown"
	}
}

type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (*models.LLMExchange, error)
}

type QueryRunner interface {
	RunReadOnlyQuery(ctx context.Context, query string) (*models.QueryResult, error)
}

type AuditLogger interface {
	Log(entry models.AuditEntry) error
}

type HistoryRecorder interface {
	StoreHistory(entry models.HistoryEntry) error
}

// Outcome is what a generation produced. On failure it still carries every
// field computed before the failing stage, so the caller can show the SQL and
// the raw model answer for manual correction.
type Outcome struct {
	SQL         string
	Explanation string
	RawResponse string
	Usage       json.RawMessage
	Cached      bool
	Result      *models.QueryResult
	// Stage is StageDone or StageError.
	Stage Stage
	// FailedAt is the last stage reached before an error.
	FailedAt Stage
}

type GeneratorConfig struct {
	Schema    string
	Prompt    ai.PromptOptions
	LLM       Completer
	Runner    QueryRunner // nil when no database is configured
	Validator *validation.Validator
	Audit     AuditLogger     // optional
	History   HistoryRecorder // optional
	Logger    *slog.Logger
}

// Generator turns natural-language requests into validated SQL and
// optionally runs it. It holds no per-request state and is safe for
// concurrent use. Nothing is retried.
type Generator struct {
	schema       string
	systemPrompt string
	llm          Completer
	runner       QueryRunner
	validator    *validation.Validator
	audit        AuditLogger
	history      HistoryRecorder
	logger       *slog.Logger
	now          func() time.Time
}

func NewGenerator(cfg GeneratorConfig) *Generator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	validator := cfg.Validator
	if validator == nil {
		validator = validation.NewValidator(validation.Policy{ForbiddenKeywords: validation.DefaultForbiddenKeywords})
	}
	g := &Generator{
		schema:    cfg.Schema,
		llm:       cfg.LLM,
		runner:    cfg.Runner,
		validator: validator,
		audit:     cfg.Audit,
		history:   cfg.History,
		logger:    logger,
		now:       time.Now,
	}
	if strings.TrimSpace(cfg.Schema) != "" {
		g.systemPrompt = ai.BuildSystemPromptWith(cfg.Schema, cfg.Prompt)
	}
	return g
}

func (g *Generator) SchemaLoaded() bool { return g.systemPrompt != "" }

func (g *Generator) DatabaseConfigured() bool { return g.runner != nil }

// Generate runs the pipeline for one request. The returned Outcome is never
// nil; err is non-nil exactly when Outcome.Stage is StageError.
func (g *Generator) Generate(ctx context.Context, req models.GenerationRequest) (*Outcome, error) {
	out := &Outcome{Stage: StageIdle}

	if err := validation.CheckNaturalQuery(req.NaturalQuery); err != nil {
		return g.fail(ctx, req, out, err)
	}
	if g.systemPrompt == "" {
		return g.fail(ctx, req, out, apperrors.New(apperrors.SchemaUnavailable, "database schema not available"))
	}
	out.Stage = StagePromptBuilt

	exchange, err := g.llm.Complete(ctx, g.systemPrompt, req.NaturalQuery)
	if err != nil {
		return g.fail(ctx, req, out, err)
	}
	out.Stage = StageLLMCalled
	out.RawResponse = exchange.Content
	out.Usage = exchange.Usage
	out.Cached = exchange.Cached

	extracted := ai.Extract(exchange.Content)
	out.SQL = validation.FixReservedAliases(extracted.SQL)
	out.Explanation = extracted.Explanation
	out.Stage = StageExtracted

	if verdict := g.validator.Validate(out.SQL); !verdict.Valid {
		observability.IncrementValidationRejection("generate")
		return g.fail(ctx, req, out, apperrors.New(apperrors.ValidationError, "invalid query: "+verdict.Reason))
	}
	out.Stage = StageValidated

	if !validation.HasLimit(out.SQL) {
		g.logger.DebugContext(ctx, "generated query has no LIMIT clause", "sql", out.SQL)
	}
	g.writeAudit(ctx, req, out)

	if req.Execute {
		result, err := g.Execute(ctx, out.SQL)
		if err != nil {
			return g.fail(ctx, req, out, err)
		}
		out.Result = result
		out.Stage = StageExecuted
	}

	out.Stage = StageDone
	g.recordHistory(ctx, req, out, nil)
	observability.ObserveGeneration("ok")
	return out, nil
}

// Execute re-applies alias quoting and validation to sql before running it.
// The text may have been edited by a person since it was generated, so an
// earlier successful validation is never trusted.
func (g *Generator) Execute(ctx context.Context, sql string) (*models.QueryResult, error) {
	sql = strings.TrimSpace(sql)
	if sql == "" {
		return nil, apperrors.New(apperrors.InputError, "sql_query is required")
	}

	sql = validation.FixReservedAliases(sql)
	if verdict := g.validator.Validate(sql); !verdict.Valid {
		observability.IncrementValidationRejection("execute")
		return nil, apperrors.New(apperrors.ValidationError, "invalid query: "+verdict.Reason)
	}

	if g.runner == nil {
		return nil, apperrors.New(apperrors.ExecutionError, "database connection is not configured")
	}
	return g.runner.RunReadOnlyQuery(ctx, sql)
}

func (g *Generator) fail(ctx context.Context, req models.GenerationRequest, out *Outcome, err error) (*Outcome, error) {
	out.FailedAt = out.Stage
	out.Stage = StageError

	kind := apperrors.KindOf(err)
	g.logger.WarnContext(ctx, "generation failed",
		"stage", out.FailedAt.String(),
		"kind", string(kind),
		"err", err,
	)
	g.recordHistory(ctx, req, out, err)
	observability.ObserveGeneration(string(kind))
	return out, err
}

func (g *Generator) writeAudit(ctx context.Context, req models.GenerationRequest, out *Outcome) {
	if g.audit == nil {
		return
	}
	entry := models.AuditEntry{
		Time:         g.now(),
		UserID:       req.UserID,
		NaturalQuery: req.NaturalQuery,
		SQL:          out.SQL,
		Usage:        out.Usage,
	}
	if err := g.audit.Log(entry); err != nil {
		g.logger.WarnContext(ctx, "failed to write audit log", "err", err)
	}
}

func (g *Generator) recordHistory(ctx context.Context, req models.GenerationRequest, out *Outcome, err error) {
	if g.history == nil {
		return
	}
	entry := models.HistoryEntry{
		ID:           uuid.NewString(),
		UserID:       req.UserID,
		NaturalQuery: req.NaturalQuery,
		SQL:          out.SQL,
		Success:      err == nil,
		CreatedAt:    g.now(),
	}
	if err != nil {
		entry.Error = apperrors.Message(err)
	}
	if herr := g.history.StoreHistory(entry); herr != nil {
		g.logger.WarnContext(ctx, "failed to record history", "err", herr)
	}
}
