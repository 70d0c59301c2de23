package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"infracopilot/internal/config"
	"infracopilot/internal/types"

	"go.uber.org/zap"
)

// EndpointChecker probes the configured custom endpoints
type EndpointChecker struct {
	config config.EndpointsConfig
	client *http.Client
	logger *zap.Logger
}

// NewEndpointChecker creates a new endpoint checker
func NewEndpointChecker(cfg config.EndpointsConfig, logger *zap.Logger) *EndpointChecker {
	client := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			MaxIdleConnsPerHost: 10,
		},
	}

	return &EndpointChecker{
		config: cfg,
		client: client,
		logger: logger,
	}
}

// Check probes every configured endpoint concurrently, each with its own
// timeout. Results and warnings keep the configured declaration order
// regardless of completion order.
func (c *EndpointChecker) Check(ctx context.Context) *types.CustomHealth {
	snapshot := &types.CustomHealth{
		Configured: len(c.config.Targets) > 0,
		Results:    make([]types.EndpointResult, len(c.config.Targets)),
		Warnings:   []string{},
	}

	var wg sync.WaitGroup
	for i, target := range c.config.Targets {
		wg.Add(1)
		go func(i int, target config.EndpointTarget) {
			defer wg.Done()
			snapshot.Results[i] = c.probe(ctx, target)
		}(i, target)
	}
	wg.Wait()

	for _, result := range snapshot.Results {
		if result.Status != types.EndpointUp {
			snapshot.Warnings = append(snapshot.Warnings,
				fmt.Sprintf("CUSTOM: %s DOWN (%s)", result.Name, result.Error))
		}
	}

	return snapshot
}

// probe performs one GET against a target. 200..399 after redirects is UP;
// everything else is DOWN with the triggering condition recorded.
func (c *EndpointChecker) probe(ctx context.Context, target config.EndpointTarget) types.EndpointResult {
	result := types.EndpointResult{
		Name:   target.Name,
		URL:    target.URL,
		Status: types.EndpointDown,
	}

	start := time.Now()
	defer func() {
		result.LatencyMs = time.Since(start).Milliseconds()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.URL, nil)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	resp, err := c.client.Do(req)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	code := resp.StatusCode
	result.HTTPStatus = &code

	if code >= 200 && code < 400 {
		result.Status = types.EndpointUp
	} else {
		result.Error = fmt.Sprintf("bad status %d", code)
	}

	return result
}
