// Package agent implements the conversational tool-routing loop: a planner
// decides which infra tools a turn needs, the tools run, and the narrative
// model composes the final answer from their output.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"infracopilot/internal/llm"
	"infracopilot/internal/session"
	"infracopilot/internal/types"

	"go.uber.org/zap"
)

const (
	chatTemperature   = 0.45
	answerTemperature = 0.35
	answerMaxTokens   = 900

	// Upper bound on serialized tool output passed to the model
	toolPayloadLimit = 12000
)

const chatInstruction = `You are InfraCopilot, a helpful SRE assistant.
Answer clearly and practically.
If the user asks for destructive actions, suggest safe read-only alternatives.
Use brief headings and bullet points when helpful.`

const answerInstruction = `You are InfraCopilot, an SRE assistant.
Use TOOL_OUTPUTS to answer the user's question.
Be concise but helpful. Include:
- what you observed
- key values (cpu/mem/disk/uptime for health)
- warnings if any
- non-destructive next steps
Format with short headings and bullets.
Do NOT ask unnecessary clarification if TOOL_OUTPUTS already contains the needed info.`

const supervisorInstruction = `You are InfraCopilot, a ChatOps SRE assistant for Azure-like environments. ` +
	`Answer clearly. If a user asks for destructive actions, suggest safe read-only alternatives.`

// HealthSource supplies a fresh unified health report
type HealthSource interface {
	Aggregate(ctx context.Context) *types.HealthReport
}

// MetricsSource supplies a fresh trailing metrics series
type MetricsSource interface {
	Series(ctx context.Context) *types.MetricsSeries
}

// ReportSource produces narrative markdown reports
type ReportSource interface {
	Generate(ctx context.Context, health *types.HealthReport, metrics *types.MetricsSeries, daily bool) (*types.ReportResult, error)
}

// Agent coordinates planning, tool execution and answer composition
type Agent struct {
	llm      llm.Client
	sessions session.Store
	health   HealthSource
	metrics  MetricsSource
	reports  ReportSource
	logger   *zap.Logger
}

// New creates a new agent
func New(client llm.Client, sessions session.Store, health HealthSource, metrics MetricsSource, reports ReportSource, logger *zap.Logger) *Agent {
	return &Agent{
		llm:      client,
		sessions: sessions,
		health:   health,
		metrics:  metrics,
		reports:  reports,
		logger:   logger,
	}
}

// turnState carries the tool output of one turn
type turnState struct {
	health  *types.HealthReport
	metrics *types.MetricsSeries
	report  *types.ReportResult
}

// Chat executes one conversational turn. The session is only mutated once the
// full answer exists; any failure leaves history untouched.
func (a *Agent) Chat(ctx context.Context, req types.ChatRequest) (*types.ChatResponse, error) {
	mode := req.Mode
	if mode == "" {
		mode = types.ModeAuto
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidMode, req.Mode)
	}

	sess, err := a.sessions.GetOrCreate(req.SessionID)
	if err != nil {
		return nil, err
	}

	input := strings.TrimSpace(req.Input)
	if input == "" {
		return &types.ChatResponse{
			SessionID: sess.ID(),
			ToolUsed:  "none",
			Text:      "Say something and I'll help.",
		}, nil
	}

	history := sess.History()

	decision := a.plan(ctx, input, sess, mode)
	a.logger.Debug("turn planned",
		zap.String("session_id", sess.ID()),
		zap.String("action", actionName(decision.Action)),
		zap.String("why", decision.Why),
		zap.Bool("need_tools", decision.NeedTools))

	state, err := a.runTools(ctx, decision)
	if err != nil {
		return nil, err
	}

	text, err := a.compose(ctx, input, decision, sess, state, history)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sess.Append(
		types.ChatTurn{Role: types.RoleUser, Text: input, Timestamp: now},
		types.ChatTurn{Role: types.RoleAgent, Text: text, Tool: actionName(decision.Action), Timestamp: now},
	)
	if state.health != nil {
		sess.CacheHealth(state.health)
	}
	if state.metrics != nil {
		sess.CacheMetrics(state.metrics)
	}
	if state.report != nil {
		sess.CacheReport(state.report.ReportMarkdown)
	}

	resp := &types.ChatResponse{
		SessionID: sess.ID(),
		ToolUsed:  actionName(decision.Action),
		Text:      text,
		UsedModel: a.llm.Model(),
		Health:    state.health,
		Metrics:   state.metrics,
	}
	if state.report != nil {
		resp.ReportMarkdown = state.report.ReportMarkdown
	}
	return resp, nil
}

// Supervisor answers a single question without tools or session state
func (a *Agent) Supervisor(ctx context.Context, input string) (*types.SupervisorResult, error) {
	text, err := a.llm.Generate(ctx, llm.GenerateRequest{
		SystemInstruction: supervisorInstruction,
		UserText:          input,
		Temperature:       chatTemperature,
		MaxTokens:         answerMaxTokens,
	})
	if err != nil {
		return nil, err
	}

	return &types.SupervisorResult{
		Intent:    "chat",
		Text:      text,
		UsedModel: a.llm.Model(),
	}, nil
}

// runTools executes the tool set the plan calls for. Health and metrics run
// concurrently; a report reuses their output from this turn instead of
// re-running the checks.
func (a *Agent) runTools(ctx context.Context, decision plan) (*turnState, error) {
	state := &turnState{}
	if !decision.NeedTools {
		return state, nil
	}

	needHealth := decision.Action == types.ModeHealth || decision.Action == types.ModeReport || decision.Action == types.ModeDailyReport
	needMetrics := decision.Action == types.ModeMetrics || decision.Action == types.ModeReport || decision.Action == types.ModeDailyReport

	var wg sync.WaitGroup
	if needHealth {
		wg.Add(1)
		go func() {
			defer wg.Done()
			state.health = a.health.Aggregate(ctx)
		}()
	}
	if needMetrics {
		wg.Add(1)
		go func() {
			defer wg.Done()
			state.metrics = a.metrics.Series(ctx)
		}()
	}
	wg.Wait()

	if decision.Action == types.ModeReport || decision.Action == types.ModeDailyReport {
		report, err := a.reports.Generate(ctx, state.health, state.metrics, decision.Action == types.ModeDailyReport)
		if err != nil {
			return nil, err
		}
		state.report = report
	}

	return state, nil
}

// compose produces the final answer text for the turn
func (a *Agent) compose(ctx context.Context, input string, decision plan, sess *session.Session, state *turnState, history []types.ChatTurn) (string, error) {
	if decision.Action == types.ModeAuto {
		return a.llm.Generate(ctx, llm.GenerateRequest{
			SystemInstruction: chatInstruction,
			UserText:          input,
			History:           toMessages(history),
			Temperature:       chatTemperature,
			MaxTokens:         answerMaxTokens,
		})
	}

	// Follow-ups answered from the session cache when the tools didn't run
	switch decision.Action {
	case types.ModeHealth:
		if state.health == nil {
			state.health = sess.CachedHealth()
		}
	case types.ModeMetrics:
		if state.metrics == nil {
			state.metrics = sess.CachedMetrics()
		}
	case types.ModeReport, types.ModeDailyReport:
		if state.report == nil {
			if cached := sess.CachedReport(); cached != "" {
				state.report = &types.ReportResult{ReportMarkdown: cached, UsedModel: a.llm.Model()}
			}
		}
	}

	payload, err := a.toolPayload(decision, state)
	if err != nil {
		return "", err
	}

	userText := fmt.Sprintf("USER_QUESTION:\n%s\n\nACTION:\n%s\n\nTOOL_OUTPUTS (JSON):\n%s\n", input, actionName(decision.Action), payload)

	return a.llm.Generate(ctx, llm.GenerateRequest{
		SystemInstruction: answerInstruction,
		UserText:          userText,
		Temperature:       answerTemperature,
		MaxTokens:         answerMaxTokens,
	})
}

// toolPayload serializes the tool output for the answer prompt, bounded to
// keep the request payload reasonable
func (a *Agent) toolPayload(decision plan, state *turnState) (string, error) {
	payload := map[string]any{
		"action": actionName(decision.Action),
		"why":    decision.Why,
	}
	if state.health != nil {
		payload["health"] = state.health
	}
	if state.metrics != nil {
		payload["metrics"] = state.metrics
	}
	if state.report != nil {
		payload["reportMarkdown"] = state.report.ReportMarkdown
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal tool payload: %w", err)
	}
	if len(data) > toolPayloadLimit {
		data = data[:toolPayloadLimit]
	}
	return string(data), nil
}

// actionName renders the plan action for responses and logs; auto means no
// tool ran
func actionName(mode types.ChatMode) string {
	if mode == types.ModeAuto {
		return "chat"
	}
	return string(mode)
}

// toMessages converts session history into generation context
func toMessages(history []types.ChatTurn) []llm.Message {
	messages := make([]llm.Message, 0, len(history))
	for _, turn := range history {
		role := llm.RoleUser
		if turn.Role == types.RoleAgent {
			role = llm.RoleModel
		}
		messages = append(messages, llm.Message{Role: role, Text: turn.Text})
	}
	return messages
}
