package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"infracopilot/internal/llm"
	"infracopilot/internal/session"
	"infracopilot/internal/types"

	"go.uber.org/zap"
)

const (
	planTemperature = 0.0
	planMaxTokens   = 220
)

const plannerInstruction = `You are an SRE ChatOps router. Decide the best action for the user.
Return ONLY a JSON object with keys:
  action: one of [chat, health, metrics, report, daily_report]
  why: short reason
  need_tools: true/false
Routing rules:
- If user asks to run/check health/status/uptime/warnings/local system => action=health
- If user asks charts/trends/last 24h/metrics => action=metrics
- If user asks report/summary => action=report
- If user asks daily report => action=daily_report
- If user asks follow-up like 'give details' and ctx has last_health => action=health
- Otherwise action=chat
Output must be valid JSON only.`

// plan represents a routing decision for one turn
type plan struct {
	Action    types.ChatMode
	Why       string
	NeedTools bool
}

type planPayload struct {
	Action    string `json:"action"`
	Why       string `json:"why"`
	NeedTools *bool  `json:"need_tools"`
}

// plan routes the turn. Forced modes bypass the model; in auto mode the
// planner output is parsed leniently and anything unusable downgrades to chat.
func (a *Agent) plan(ctx context.Context, userText string, sess *session.Session, mode types.ChatMode) plan {
	if mode != types.ModeAuto {
		return plan{
			Action:    mode,
			Why:       fmt.Sprintf("forced_by_mode:%s", mode),
			NeedTools: true,
		}
	}

	flags, _ := json.Marshal(map[string]bool{
		"has_last_health":  sess.CachedHealth() != nil,
		"has_last_metrics": sess.CachedMetrics() != nil,
		"has_last_report":  sess.CachedReport() != "",
	})

	raw, err := a.llm.Generate(ctx, llm.GenerateRequest{
		SystemInstruction: plannerInstruction,
		UserText:          fmt.Sprintf("User message: %s\nContext flags: %s\n", userText, flags),
		Temperature:       planTemperature,
		MaxTokens:         planMaxTokens,
	})
	if err != nil {
		a.logger.Warn("planner unavailable, downgrading to chat", zap.Error(err))
		return plan{Action: types.ModeAuto, Why: "planner_unavailable", NeedTools: false}
	}

	return parsePlan(raw)
}

// parsePlan interprets the planner output, tolerating prose around the JSON
// object. Unparseable or unknown output means a plain chat turn.
func parsePlan(raw string) plan {
	chatPlan := plan{Action: types.ModeAuto, Why: "n/a", NeedTools: false}

	payload := extractJSONObject(raw)
	if payload == nil {
		return chatPlan
	}

	action := types.ChatMode(strings.ToLower(strings.TrimSpace(payload.Action)))
	switch action {
	case types.ModeHealth, types.ModeMetrics, types.ModeReport, types.ModeDailyReport:
	default:
		action = types.ModeAuto
	}

	needTools := action != types.ModeAuto
	if payload.NeedTools != nil {
		needTools = *payload.NeedTools
	}

	why := strings.TrimSpace(payload.Why)
	if why == "" {
		why = "n/a"
	}

	return plan{Action: action, Why: why, NeedTools: needTools}
}

// extractJSONObject decodes s as JSON, falling back to the first '{' through
// the last '}' when the model wrapped the object in prose
func extractJSONObject(s string) *planPayload {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	var payload planPayload
	if err := json.Unmarshal([]byte(s), &payload); err == nil {
		return &payload
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return nil
	}

	if err := json.Unmarshal([]byte(s[start:end+1]), &payload); err != nil {
		return nil
	}
	return &payload
}
