package ai

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmquery/apperrors"
	"llmquery/cache"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T, url string, store cache.Store) *AIService {
	t.Helper()
	svc, err := New(Config{
		Endpoint:    url,
		APIKey:      "sk-test",
		Model:       "test-model",
		Temperature: 0.1,
		MaxTokens:   2000,
		Timeout:     5 * time.Second,
	}, store, testLogger())
	require.NoError(t, err)
	return svc
}

func TestCompleteSendsChatRequest(t *testing.T) {
	var got ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"SELECT 1;"}}],"usage":{"prompt_tokens":12,"completion_tokens":3,"total_tokens":15}}`)
	}))
	defer srv.Close()

	svc := newTestService(t, srv.URL, nil)
	exchange, err := svc.Complete(context.Background(), "system text", "user text")
	require.NoError(t, err)

	assert.Equal(t, "test-model", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, ChatMessage{Role: "system", Content: "system text"}, got.Messages[0])
	assert.Equal(t, ChatMessage{Role: "user", Content: "user text"}, got.Messages[1])
	assert.Equal(t, 0.1, got.Temperature)
	assert.Equal(t, 2000, got.MaxTokens)

	assert.Equal(t, "SELECT 1;", exchange.Content)
	assert.Equal(t, "system text", exchange.SystemPrompt)
	assert.Equal(t, "user text", exchange.UserPrompt)
	assert.JSONEq(t, `{"prompt_tokens":12,"completion_tokens":3,"total_tokens":15}`, string(exchange.Usage))
	assert.False(t, exchange.Cached)
}

func TestCompleteNon2xxIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":"rate limited"}`)
	}))
	defer srv.Close()

	_, err := newTestService(t, srv.URL, nil).Complete(context.Background(), "s", "u")
	require.Error(t, err)
	assert.Equal(t, apperrors.TransportError, apperrors.KindOf(err))
	assert.Contains(t, apperrors.Message(err), "LLM API HTTP 429")
	assert.Contains(t, apperrors.Message(err), "rate limited")
}

func TestCompleteNetworkFailureIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestService(t, url, nil).Complete(context.Background(), "s", "u")
	require.Error(t, err)
	assert.Equal(t, apperrors.TransportError, apperrors.KindOf(err))
}

func TestCompleteMalformedResponses(t *testing.T) {
	bodies := map[string]string{
		"no choices":    `{"choices":[]}`,
		"null content":  `{"choices":[{"message":{"role":"assistant","content":null}}]}`,
		"missing field": `{"choices":[{"message":{"role":"assistant"}}]}`,
		"not json":      `<html>gateway</html>`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, body)
			}))
			defer srv.Close()

			_, err := newTestService(t, srv.URL, nil).Complete(context.Background(), "s", "u")
			require.Error(t, err)
			assert.Equal(t, apperrors.MalformedLLMResponse, apperrors.KindOf(err))
		})
	}
}

func TestCompleteEmptyContentIsNotMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":""}}]}`)
	}))
	defer srv.Close()

	exchange, err := newTestService(t, srv.URL, nil).Complete(context.Background(), "s", "u")
	require.NoError(t, err)
	assert.Empty(t, exchange.Content)
	assert.Empty(t, exchange.Usage)
}

func TestCompleteUsesCacheWithinFreshnessWindow(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n == 1 {
			_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"SELECT 'first'"}}],"usage":{"total_tokens":7}}`)
			return
		}
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"SELECT 'second'"}}]}`)
	}))
	defer srv.Close()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store, err := cache.NewFileStore(t.TempDir(), time.Hour, testLogger())
	require.NoError(t, err)
	store.WithClock(func() time.Time { return now })

	svc := newTestService(t, srv.URL, store)
	ctx := context.Background()

	first, err := svc.Complete(ctx, "sys", "top 5 customers")
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := svc.Complete(ctx, "sys", "top 5 customers")
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Content, second.Content)
	assert.JSONEq(t, `{"total_tokens":7}`, string(second.Usage))
	assert.Equal(t, int32(1), calls.Load())

	now = now.Add(time.Hour)
	third, err := svc.Complete(ctx, "sys", "top 5 customers")
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Equal(t, "SELECT 'second'", third.Content)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCompleteDoesNotCacheFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	svc := newTestService(t, srv.URL, cache.New(time.Hour))
	_, err := svc.Complete(context.Background(), "s", "u")
	require.Error(t, err)
	_, err = svc.Complete(context.Background(), "s", "u")
	require.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestNewRequiresEndpointAndModel(t *testing.T) {
	_, err := New(Config{Model: "m"}, nil, nil)
	require.Error(t, err)
	_, err = New(Config{Endpoint: "http://localhost"}, nil, nil)
	require.Error(t, err)
}
