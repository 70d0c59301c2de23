package v1

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"infracopilot/internal/config"
	"infracopilot/internal/server/service"
	"infracopilot/internal/types"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type envelope struct {
	Code      int             `json:"code"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	Error     string          `json:"error"`
	RequestID string          `json:"request_id"`
}

// fakeGemini serves generateContent and model listing requests
func fakeGemini(t *testing.T, fail bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error":{"message":"backend down"}}`)
			return
		}
		if r.Method == http.MethodGet && r.URL.Path == "/models" {
			fmt.Fprint(w, `{"models":[{"name":"models/gemini-2.0-flash","supportedGenerationMethods":["generateContent"]}]}`)
			return
		}
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"Everything looks healthy."}]}}]}`)
	}))
}

func newTestRouter(t *testing.T, geminiURL string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Gemini: config.GeminiConfig{
			APIKey:  "test-key",
			Model:   "gemini-2.0-flash",
			BaseURL: geminiURL,
			Timeout: 5 * time.Second,
		},
		Thresholds: config.ThresholdConfig{
			CPUWarnPercent:    85,
			MemoryWarnPercent: 90,
			DiskWarnPercent:   90,
		},
		Endpoints: config.EndpointsConfig{Timeout: 2 * time.Second},
		Session: config.SessionConfig{
			TTL:           time.Hour,
			MaxTurns:      10,
			SweepInterval: time.Hour,
		},
	}

	svc, err := service.NewService(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Stop() })

	engine := gin.New()
	NewAPI(svc, zaptest.NewLogger(t)).RegisterRoutes(engine.Group("/api/v1"))
	return engine
}

func doJSON(engine *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestCheckHealthEndpoint(t *testing.T) {
	gemini := fakeGemini(t, false)
	defer gemini.Close()
	engine := newTestRouter(t, gemini.URL)

	w := doJSON(engine, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, "success", env.Message)

	var report types.HealthReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	require.NotNil(t, report.Local)
	assert.Equal(t, types.AzureStatusNotConfigured, report.Azure.Status)
	assert.Equal(t, 1, report.Summary.Total)
	assert.GreaterOrEqual(t, report.Local.UptimeSeconds, int64(0))
}

func TestMetricsEndpoint(t *testing.T) {
	gemini := fakeGemini(t, false)
	defer gemini.Close()
	engine := newTestRouter(t, gemini.URL)

	w := doJSON(engine, http.MethodGet, "/api/v1/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))

	var series types.MetricsSeries
	require.NoError(t, json.Unmarshal(env.Data, &series))
	assert.True(t, series.Synthetic)
	assert.Equal(t, "24h", series.Range)
	assert.Len(t, series.CPU, 24)
	assert.Len(t, series.Memory, 24)
}

func TestReportEndpoint(t *testing.T) {
	gemini := fakeGemini(t, false)
	defer gemini.Close()
	engine := newTestRouter(t, gemini.URL)

	w := doJSON(engine, http.MethodPost, "/api/v1/report", "")
	require.Equal(t, http.StatusOK, w.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))

	var result types.ReportResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, "Everything looks healthy.", result.ReportMarkdown)
	assert.Equal(t, "gemini-2.0-flash", result.UsedModel)
}

func TestReportEndpointUpstreamFailure(t *testing.T) {
	gemini := fakeGemini(t, true)
	defer gemini.Close()
	engine := newTestRouter(t, gemini.URL)

	w := doJSON(engine, http.MethodPost, "/api/v1/report", "")
	require.Equal(t, http.StatusBadGateway, w.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Contains(t, env.Error, "backend down")
}

func TestChatEndpointForcedHealth(t *testing.T) {
	gemini := fakeGemini(t, false)
	defer gemini.Close()
	engine := newTestRouter(t, gemini.URL)

	w := doJSON(engine, http.MethodPost, "/api/v1/chat", `{"input":"check health","mode":"health"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))

	var resp types.ChatResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "health", resp.ToolUsed)
	assert.Equal(t, "Everything looks healthy.", resp.Text)
	assert.NotEmpty(t, resp.SessionID)
	require.NotNil(t, resp.Health)
	assert.Equal(t, 1, resp.Health.Summary.Total)
}

func TestChatEndpointInvalidMode(t *testing.T) {
	gemini := fakeGemini(t, false)
	defer gemini.Close()
	engine := newTestRouter(t, gemini.URL)

	w := doJSON(engine, http.MethodPost, "/api/v1/chat", `{"input":"hi","mode":"reboot"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatEndpointMalformedSessionID(t *testing.T) {
	gemini := fakeGemini(t, false)
	defer gemini.Close()
	engine := newTestRouter(t, gemini.URL)

	w := doJSON(engine, http.MethodPost, "/api/v1/chat", `{"input":"hi","session_id":"not-a-uuid"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatEndpointInvalidJSON(t *testing.T) {
	gemini := fakeGemini(t, false)
	defer gemini.Close()
	engine := newTestRouter(t, gemini.URL)

	w := doJSON(engine, http.MethodPost, "/api/v1/chat", `{"input":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSupervisorEndpoint(t *testing.T) {
	gemini := fakeGemini(t, false)
	defer gemini.Close()
	engine := newTestRouter(t, gemini.URL)

	w := doJSON(engine, http.MethodPost, "/api/v1/supervisor", `{"input":"how do I check disk space?"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))

	var result types.SupervisorResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, "chat", result.Intent)
	assert.Equal(t, "Everything looks healthy.", result.Text)
}

func TestModelsEndpoint(t *testing.T) {
	gemini := fakeGemini(t, false)
	defer gemini.Close()
	engine := newTestRouter(t, gemini.URL)

	w := doJSON(engine, http.MethodGet, "/api/v1/models", "")
	require.Equal(t, http.StatusOK, w.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))

	var data struct {
		Models []types.ModelInfo `json:"models"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Len(t, data.Models, 1)
	assert.True(t, data.Models[0].SupportsGenerateContent)
}
