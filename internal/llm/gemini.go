package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"infracopilot/internal/config"
	"infracopilot/internal/retry"
	"infracopilot/internal/types"

	"go.uber.org/zap"
)

const apiKeyHeader = "x-goog-api-key"

// GeminiClient implements Client against the Gemini REST API
type GeminiClient struct {
	config config.GeminiConfig
	client *http.Client
	retry  *retry.Config
	logger *zap.Logger
}

// NewGeminiClient creates a new Gemini REST client
func NewGeminiClient(cfg config.GeminiConfig, logger *zap.Logger) *GeminiClient {
	return &GeminiClient{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		retry: &retry.Config{
			Enabled:     cfg.Retry.Enabled,
			MaxAttempts: cfg.Retry.MaxAttempts,
			Interval:    cfg.Retry.Interval,
		},
		logger: logger,
	}
}

// Model returns the configured model name
func (c *GeminiClient) Model() string {
	return normalizeModel(c.config.Model)
}

type generatePayload struct {
	Contents          []content     `json:"contents"`
	GenerationConfig  generationCfg `json:"generationConfig"`
	SystemInstruction *content      `json:"systemInstruction,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationCfg struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Message string `json:"message"`
}

// Generate produces a completion for the request
func (c *GeminiClient) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if c.config.APIKey == "" {
		return "", fmt.Errorf("%w: gemini API key missing", types.ErrNotConfigured)
	}
	model := c.Model()
	if model == "" {
		return "", fmt.Errorf("%w: gemini model missing", types.ErrNotConfigured)
	}

	contents := make([]content, 0, len(req.History)+1)
	for _, m := range req.History {
		contents = append(contents, content{Role: m.Role, Parts: []part{{Text: m.Text}}})
	}
	contents = append(contents, content{Role: RoleUser, Parts: []part{{Text: req.UserText}}})

	payload := generatePayload{
		Contents: contents,
		GenerationConfig: generationCfg{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
		},
	}
	if req.SystemInstruction != "" {
		payload.SystemInstruction = &content{Parts: []part{{Text: req.SystemInstruction}}}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal generate payload: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(c.config.BaseURL, "/"), model)

	var text string
	err = retry.Execute(ctx, c.retry, c.logger, func(ctx context.Context) error {
		var opErr error
		text, opErr = c.generateOnce(ctx, url, body)
		return opErr
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrNarrativeUnavailable, err)
	}

	return text, nil
}

func (c *GeminiClient) generateOnce(ctx context.Context, url string, body []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(apiKeyHeader, c.config.APIKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		msg := "gemini API error"
		if decoded.Error != nil && decoded.Error.Message != "" {
			msg = decoded.Error.Message
		}
		return "", fmt.Errorf("%s (status %d)", msg, resp.StatusCode)
	}

	var sb strings.Builder
	if len(decoded.Candidates) > 0 {
		for _, p := range decoded.Candidates[0].Content.Parts {
			sb.WriteString(p.Text)
		}
	}

	return strings.TrimSpace(sb.String()), nil
}

type listModelsResponse struct {
	Models []struct {
		Name                       string   `json:"name"`
		SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
	} `json:"models"`
	Error *apiError `json:"error"`
}

// ListModels enumerates the models available to the configured key
func (c *GeminiClient) ListModels(ctx context.Context) ([]types.ModelInfo, error) {
	if c.config.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key missing", types.ErrNotConfigured)
	}

	url := strings.TrimRight(c.config.BaseURL, "/") + "/models"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set(apiKeyHeader, c.config.APIKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrNarrativeUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read models response: %w", err)
	}

	var decoded listModelsResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("decode models response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		msg := "failed to list models"
		if decoded.Error != nil && decoded.Error.Message != "" {
			msg = decoded.Error.Message
		}
		return nil, fmt.Errorf("%w: %s (status %d)", types.ErrNarrativeUnavailable, msg, resp.StatusCode)
	}

	models := make([]types.ModelInfo, 0, len(decoded.Models))
	for _, m := range decoded.Models {
		supports := false
		for _, method := range m.SupportedGenerationMethods {
			if method == "generateContent" {
				supports = true
				break
			}
		}
		models = append(models, types.ModelInfo{
			Name:                    m.Name,
			SupportsGenerateContent: supports,
			Methods:                 m.SupportedGenerationMethods,
		})
	}

	return models, nil
}

// normalizeModel strips the resource prefix the models listing returns
func normalizeModel(model string) string {
	model = strings.TrimSpace(model)
	return strings.TrimPrefix(model, "models/")
}
