package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"llmquery/apperrors"
	"llmquery/cache"
	"llmquery/models"
	"llmquery/observability"
)

// maxErrorBody caps how much of a failed response body is kept in the error.
const maxErrorBody = 4096

type Config struct {
	Endpoint           string
	APIKey             string
	Model              string
	Temperature        float64
	MaxTokens          int
	Timeout            time.Duration
	MinRequestInterval time.Duration
}

// AIService calls an OpenAI-compatible chat completions endpoint. Each call
// is a single attempt; failures are returned, never retried.
type AIService struct {
	cfg        Config
	cache      cache.Store
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type ChatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Role    string  `json:"role"`
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage json.RawMessage `json:"usage,omitempty"`
}

type tokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// New builds the client. store may be nil to disable caching.
func New(cfg Config, store cache.Store, logger *slog.Logger) (*AIService, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("llm endpoint is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("llm model is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	limit := rate.Inf
	if cfg.MinRequestInterval > 0 {
		limit = rate.Every(cfg.MinRequestInterval)
	}

	return &AIService{
		cfg:   cfg,
		cache: store,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}, nil
}

func (a *AIService) Model() string { return a.cfg.Model }

// Complete sends the two prompts and returns the model's answer. A fresh
// cached exchange for the same prompts is returned as-is with Cached set and
// no request is made.
func (a *AIService) Complete(ctx context.Context, systemPrompt, userPrompt string) (*models.LLMExchange, error) {
	var key string
	if a.cache != nil {
		key = cache.Key(systemPrompt, userPrompt)
		if exchange, ok := a.lookup(key); ok {
			observability.ObserveCacheLookup(true)
			a.logger.DebugContext(ctx, "llm cache hit", "key", key)
			return exchange, nil
		}
		observability.ObserveCacheLookup(false)
	}

	exchange, err := a.call(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, err
	}

	if a.cache != nil {
		if data, err := json.Marshal(exchange); err == nil {
			a.cache.Set(key, data)
		} else {
			a.logger.WarnContext(ctx, "failed to encode llm exchange for cache", "err", err)
		}
	}
	return exchange, nil
}

func (a *AIService) lookup(key string) (*models.LLMExchange, bool) {
	data, ok := a.cache.Get(key)
	if !ok {
		return nil, false
	}
	var exchange models.LLMExchange
	if err := json.Unmarshal(data, &exchange); err != nil {
		a.logger.Warn("discarding unreadable cache entry", "key", key, "err", err)
		return nil, false
	}
	exchange.Cached = true
	return &exchange, true
}

func (a *AIService) call(ctx context.Context, systemPrompt, userPrompt string) (*models.LLMExchange, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, apperrors.Wrap(apperrors.TransportError, "LLM request cancelled", err)
	}

	reqBody := ChatCompletionRequest{
		Model: a.cfg.Model,
		Messages: []ChatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: a.cfg.Temperature,
		MaxTokens:   a.cfg.MaxTokens,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.Endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", a.cfg.APIKey))
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := a.httpClient.Do(req)
	if err != nil {
		observability.ObserveLLMRequest("network_error", time.Since(start))
		return nil, apperrors.Wrap(apperrors.TransportError, "LLM API request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	observability.ObserveLLMRequest(fmt.Sprintf("%d", resp.StatusCode), time.Since(start))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.TransportError, "failed to read LLM API response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		a.logger.WarnContext(ctx, "llm api returned error status", "status", resp.StatusCode)
		return nil, apperrors.New(apperrors.TransportError,
			fmt.Sprintf("LLM API HTTP %d: %s", resp.StatusCode, truncate(string(body), maxErrorBody)))
	}

	var apiResp ChatCompletionResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, apperrors.Wrap(apperrors.MalformedLLMResponse, "invalid LLM API response", err)
	}
	if len(apiResp.Choices) == 0 || apiResp.Choices[0].Message.Content == nil {
		return nil, apperrors.New(apperrors.MalformedLLMResponse, "invalid LLM API response: missing choices[0].message.content")
	}

	if len(apiResp.Usage) > 0 && !bytes.Equal(apiResp.Usage, []byte("null")) {
		var usage tokenUsage
		if err := json.Unmarshal(apiResp.Usage, &usage); err == nil {
			observability.AddLLMTokens(usage.PromptTokens, usage.CompletionTokens)
		}
	} else {
		apiResp.Usage = nil
	}

	a.logger.DebugContext(ctx, "llm call completed", "model", a.cfg.Model, "duration", time.Since(start).String())

	return &models.LLMExchange{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Content:      *apiResp.Choices[0].Message.Content,
		Usage:        apiResp.Usage,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

