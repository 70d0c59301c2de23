package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"infracopilot/internal/config"
	"infracopilot/internal/types"
)

func TestEndpointCheckerStatuses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.WriteHeader(http.StatusOK)
		case "/redirected":
			w.WriteHeader(http.StatusFound)
		case "/teapot":
			w.WriteHeader(http.StatusTeapot)
		case "/slow":
			time.Sleep(500 * time.Millisecond)
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	cfg := config.EndpointsConfig{
		Timeout: 100 * time.Millisecond,
		Targets: []config.EndpointTarget{
			{Name: "ok", URL: server.URL + "/ok"},
			{Name: "redirected", URL: server.URL + "/redirected"},
			{Name: "teapot", URL: server.URL + "/teapot"},
			{Name: "slow", URL: server.URL + "/slow"},
		},
	}

	checker := NewEndpointChecker(cfg, zaptest.NewLogger(t))
	snapshot := checker.Check(context.Background())

	require.True(t, snapshot.Configured)
	require.Len(t, snapshot.Results, 4)

	ok := snapshot.Results[0]
	assert.Equal(t, types.EndpointUp, ok.Status)
	require.NotNil(t, ok.HTTPStatus)
	assert.Equal(t, http.StatusOK, *ok.HTTPStatus)
	assert.Empty(t, ok.Error)

	// 3xx counts as UP
	redirected := snapshot.Results[1]
	assert.Equal(t, types.EndpointUp, redirected.Status)

	teapot := snapshot.Results[2]
	assert.Equal(t, types.EndpointDown, teapot.Status)
	require.NotNil(t, teapot.HTTPStatus)
	assert.Equal(t, http.StatusTeapot, *teapot.HTTPStatus)
	assert.Equal(t, "bad status 418", teapot.Error)

	// Timeout leaves no status code but records the condition
	slow := snapshot.Results[3]
	assert.Equal(t, types.EndpointDown, slow.Status)
	assert.Nil(t, slow.HTTPStatus)
	assert.NotEmpty(t, slow.Error)
	assert.GreaterOrEqual(t, slow.LatencyMs, int64(0))

	require.Len(t, snapshot.Warnings, 2)
	assert.Contains(t, snapshot.Warnings[0], "CUSTOM: teapot DOWN")
	assert.Contains(t, snapshot.Warnings[1], "CUSTOM: slow DOWN")
}

func TestEndpointCheckerNoTargets(t *testing.T) {
	checker := NewEndpointChecker(config.EndpointsConfig{Timeout: time.Second}, zaptest.NewLogger(t))

	snapshot := checker.Check(context.Background())

	assert.False(t, snapshot.Configured)
	assert.Empty(t, snapshot.Results)
	assert.Empty(t, snapshot.Warnings)
}

func TestEndpointCheckerSlowProbeDoesNotBlockOthers(t *testing.T) {
	fast := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer fast.Close()

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer slow.Close()

	cfg := config.EndpointsConfig{
		Timeout: 200 * time.Millisecond,
		Targets: []config.EndpointTarget{
			{Name: "slow", URL: slow.URL},
			{Name: "fast", URL: fast.URL},
		},
	}

	checker := NewEndpointChecker(cfg, zaptest.NewLogger(t))

	started := time.Now()
	snapshot := checker.Check(context.Background())
	elapsed := time.Since(started)

	require.Len(t, snapshot.Results, 2)
	assert.Equal(t, types.EndpointDown, snapshot.Results[0].Status)
	assert.Equal(t, types.EndpointUp, snapshot.Results[1].Status)

	// Probes run concurrently, so total time is bounded by the slowest one
	assert.Less(t, elapsed, 450*time.Millisecond)
}
