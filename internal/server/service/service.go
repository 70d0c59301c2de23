// Package service wires the checkers, the session store and the agent into
// one facade the API layer talks to.
package service

import (
	"context"
	"time"

	"infracopilot/internal/agent"
	"infracopilot/internal/config"
	"infracopilot/internal/health"
	"infracopilot/internal/llm"
	"infracopilot/internal/metrics"
	"infracopilot/internal/report"
	"infracopilot/internal/session"
	"infracopilot/internal/types"

	"go.uber.org/zap"
)

// Service represents the server service
type Service struct {
	config     *config.Config
	aggregator *health.Aggregator
	metrics    *metrics.Provider
	reports    *report.Generator
	agent      *agent.Agent
	sessions   session.Store
	llm        llm.Client
	logger     *zap.Logger
	startedAt  time.Time
}

// NewService creates new service instance
func NewService(cfg *config.Config, logger *zap.Logger) (*Service, error) {
	local := health.NewLocalChecker(cfg.Thresholds, logger)
	tokens := health.NewClientCredentialsProvider(cfg.Azure)
	azure := health.NewAzureChecker(cfg.Azure, tokens, logger)
	endpoints := health.NewEndpointChecker(cfg.Endpoints, logger)
	aggregator := health.NewAggregator(local, azure, endpoints, logger)

	provider := metrics.NewProvider(local)

	client := llm.NewGeminiClient(cfg.Gemini, logger)

	compiler := report.NewCompiler(aggregator, provider, logger)
	generator := report.NewGenerator(compiler, client, logger)

	sessions := session.NewMemoryStore(cfg.Session, logger)

	svc := &Service{
		config:     cfg,
		aggregator: aggregator,
		metrics:    provider,
		reports:    generator,
		agent:      agent.New(client, sessions, aggregator, provider, generator, logger),
		sessions:   sessions,
		llm:        client,
		logger:     logger,
		startedAt:  time.Now(),
	}

	return svc, nil
}

// Stop stops the service and cleanup resources
func (s *Service) Stop() error {
	s.sessions.Stop()
	return nil
}

// LivenessStatus represents the liveness probe payload
type LivenessStatus struct {
	OK        bool      `json:"ok"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`
}

// Liveness reports process liveness
func (s *Service) Liveness() *LivenessStatus {
	return &LivenessStatus{
		OK:        true,
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(s.startedAt).Round(time.Second).String(),
	}
}

// CheckHealth runs all health checks and returns the unified report
func (s *Service) CheckHealth(ctx context.Context) *types.HealthReport {
	return s.aggregator.Aggregate(ctx)
}

// Metrics returns a trailing series anchored on live readings
func (s *Service) Metrics(ctx context.Context) *types.MetricsSeries {
	return s.metrics.Series(ctx)
}

// GenerateReport produces a narrative report, gathering any inputs the
// request left out
func (s *Service) GenerateReport(ctx context.Context, req types.ReportRequest) (*types.ReportResult, error) {
	return s.reports.Generate(ctx, req.Health, req.Metrics, false)
}

// Chat executes one conversational agent turn
func (s *Service) Chat(ctx context.Context, req types.ChatRequest) (*types.ChatResponse, error) {
	return s.agent.Chat(ctx, req)
}

// Supervisor answers a single question without tools or session state
func (s *Service) Supervisor(ctx context.Context, input string) (*types.SupervisorResult, error) {
	return s.agent.Supervisor(ctx, input)
}

// ListModels enumerates the narrative models available to the configured key
func (s *Service) ListModels(ctx context.Context) ([]types.ModelInfo, error) {
	return s.llm.ListModels(ctx)
}
