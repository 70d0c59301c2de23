package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"infracopilot/internal/config"
	"infracopilot/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T, baseURL string, mutate func(*config.GeminiConfig)) *GeminiClient {
	t.Helper()
	cfg := config.GeminiConfig{
		APIKey:  "test-key",
		Model:   "gemini-2.0-flash",
		BaseURL: baseURL,
		Timeout: 5 * time.Second,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewGeminiClient(cfg, zaptest.NewLogger(t))
}

func TestGenerate(t *testing.T) {
	var captured generatePayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-2.0-flash:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		fmt.Fprint(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"All "},{"text":"healthy.  "}]}}]}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, nil)

	text, err := client.Generate(context.Background(), GenerateRequest{
		SystemInstruction: "You are an infra assistant.",
		UserText:          "how is the cluster?",
		History: []Message{
			{Role: RoleUser, Text: "hi"},
			{Role: RoleModel, Text: "hello"},
		},
		Temperature: 0.4,
		MaxTokens:   900,
	})
	require.NoError(t, err)
	assert.Equal(t, "All healthy.", text)

	require.Len(t, captured.Contents, 3)
	assert.Equal(t, "model", captured.Contents[1].Role)
	assert.Equal(t, "how is the cluster?", captured.Contents[2].Parts[0].Text)
	require.NotNil(t, captured.SystemInstruction)
	assert.Equal(t, "You are an infra assistant.", captured.SystemInstruction.Parts[0].Text)
	assert.Equal(t, 900, captured.GenerationConfig.MaxOutputTokens)
}

func TestGenerateMissingCredentials(t *testing.T) {
	client := newTestClient(t, "http://127.0.0.1:0", func(cfg *config.GeminiConfig) {
		cfg.APIKey = ""
	})

	_, err := client.Generate(context.Background(), GenerateRequest{UserText: "hi"})
	assert.ErrorIs(t, err, types.ErrNotConfigured)

	client = newTestClient(t, "http://127.0.0.1:0", func(cfg *config.GeminiConfig) {
		cfg.Model = ""
	})

	_, err = client.Generate(context.Background(), GenerateRequest{UserText: "hi"})
	assert.ErrorIs(t, err, types.ErrNotConfigured)
}

func TestGenerateUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"quota exceeded"}}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, nil)

	_, err := client.Generate(context.Background(), GenerateRequest{UserText: "hi"})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrNarrativeUnavailable)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestGenerateRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, `{"error":{"message":"try again"}}`)
			return
		}
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, func(cfg *config.GeminiConfig) {
		cfg.Retry = config.RetryConfig{Enabled: true, MaxAttempts: 3, Interval: time.Millisecond}
	})

	text, err := client.Generate(context.Background(), GenerateRequest{UserText: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, int32(3), calls.Load())
}

func TestModelNormalization(t *testing.T) {
	client := newTestClient(t, "http://127.0.0.1:0", func(cfg *config.GeminiConfig) {
		cfg.Model = "models/gemini-2.0-flash"
	})
	assert.Equal(t, "gemini-2.0-flash", client.Model())
}

func TestListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		fmt.Fprint(w, `{"models":[
			{"name":"models/gemini-2.0-flash","supportedGenerationMethods":["generateContent","countTokens"]},
			{"name":"models/text-embedding-004","supportedGenerationMethods":["embedContent"]}
		]}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, nil)

	models, err := client.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.True(t, models[0].SupportsGenerateContent)
	assert.False(t, models[1].SupportsGenerateContent)
	assert.Equal(t, "models/gemini-2.0-flash", models[0].Name)
}

func TestListModelsUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":{"message":"key revoked"}}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, nil)

	_, err := client.ListModels(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrNarrativeUnavailable)
	assert.Contains(t, err.Error(), "key revoked")
}
