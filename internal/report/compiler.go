// Package report assembles health and metrics payloads into narrative
// markdown reports.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"infracopilot/internal/llm"
	"infracopilot/internal/types"

	"go.uber.org/zap"
)

const (
	reportTemperature = 0.4
	reportMaxTokens   = 900
)

// HealthSource supplies a fresh unified health report
type HealthSource interface {
	Aggregate(ctx context.Context) *types.HealthReport
}

// MetricsSource supplies a fresh trailing metrics series
type MetricsSource interface {
	Series(ctx context.Context) *types.MetricsSeries
}

// Context represents the inputs a report is generated from
type Context struct {
	Health      *types.HealthReport
	Metrics     *types.MetricsSeries
	GeneratedAt time.Time
}

// Compiler assembles report contexts, auto-filling missing inputs from the
// live checkers
type Compiler struct {
	health  HealthSource
	metrics MetricsSource
	logger  *zap.Logger
}

// NewCompiler creates a new report compiler
func NewCompiler(health HealthSource, metrics MetricsSource, logger *zap.Logger) *Compiler {
	return &Compiler{
		health:  health,
		metrics: metrics,
		logger:  logger,
	}
}

// Compile builds a report context. Either input may be nil, in which case the
// corresponding checker runs as a side effect.
func (c *Compiler) Compile(ctx context.Context, health *types.HealthReport, metrics *types.MetricsSeries) *Context {
	if health == nil {
		c.logger.Debug("report input missing health, running checks")
		health = c.health.Aggregate(ctx)
	}
	if metrics == nil {
		c.logger.Debug("report input missing metrics, synthesizing series")
		metrics = c.metrics.Series(ctx)
	}

	return &Context{
		Health:      health,
		Metrics:     metrics,
		GeneratedAt: time.Now().UTC(),
	}
}

// SystemInstruction returns the generation framing for a report
func (rc *Context) SystemInstruction() string {
	return "You are InfraCopilot, a virtual SRE assistant. " +
		"Summarize infra health + metrics in plain English. " +
		"Highlight risks and suggest NON-DESTRUCTIVE next actions only. " +
		"Format output as Markdown with headings, bullet points, and a short 'Next Actions' section."
}

// Prompt renders the report request text. Daily reports ask for an
// operator-facing daily digest; otherwise an on-demand snapshot is requested.
func (rc *Context) Prompt(daily bool) (string, error) {
	local, err := json.MarshalIndent(rc.Health.Local, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal local health: %w", err)
	}
	azure, err := json.MarshalIndent(rc.Health.Azure, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal azure health: %w", err)
	}
	custom, err := json.MarshalIndent(rc.Health.Custom, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal custom health: %w", err)
	}
	series, err := json.MarshalIndent(rc.Metrics, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal metrics: %w", err)
	}

	heading := "Generate a hybrid infra health report."
	if daily {
		heading = "Generate today's daily infra health report with clear next actions for the on-call engineer."
	}

	return fmt.Sprintf(`%s
LOCAL HEALTH:
%s

AZURE HEALTH:
%s

CUSTOM ENDPOINTS:
%s

METRICS:
%s

Be concise, actionable, and include a short risk score (Low/Med/High).
`, heading, local, azure, custom, series), nil
}

// Generator turns compiled report contexts into narrative markdown
type Generator struct {
	compiler *Compiler
	llm      llm.Client
	logger   *zap.Logger
}

// NewGenerator creates a new report generator
func NewGenerator(compiler *Compiler, client llm.Client, logger *zap.Logger) *Generator {
	return &Generator{
		compiler: compiler,
		llm:      client,
		logger:   logger,
	}
}

// Generate compiles a report context and produces the markdown report. Either
// input may be nil; missing inputs are gathered from the live checkers.
func (g *Generator) Generate(ctx context.Context, health *types.HealthReport, metrics *types.MetricsSeries, daily bool) (*types.ReportResult, error) {
	rc := g.compiler.Compile(ctx, health, metrics)

	prompt, err := rc.Prompt(daily)
	if err != nil {
		return nil, err
	}

	markdown, err := g.llm.Generate(ctx, llm.GenerateRequest{
		SystemInstruction: rc.SystemInstruction(),
		UserText:          prompt,
		Temperature:       reportTemperature,
		MaxTokens:         reportMaxTokens,
	})
	if err != nil {
		return nil, err
	}

	g.logger.Debug("report generated",
		zap.Bool("daily", daily),
		zap.Int("markdown_bytes", len(markdown)))

	return &types.ReportResult{
		ReportMarkdown: markdown,
		UsedModel:      g.llm.Model(),
	}, nil
}
