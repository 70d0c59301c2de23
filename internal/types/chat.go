package types

import "time"

// ChatMode represents an explicit tool routing override
type ChatMode string

const (
	ModeAuto        ChatMode = "auto"
	ModeHealth      ChatMode = "health"
	ModeMetrics     ChatMode = "metrics"
	ModeReport      ChatMode = "report"
	ModeDailyReport ChatMode = "daily_report"
)

// Valid reports whether the mode is a supported value
func (m ChatMode) Valid() bool {
	switch m {
	case ModeAuto, ModeHealth, ModeMetrics, ModeReport, ModeDailyReport:
		return true
	}
	return false
}

// TurnRole represents the author of a conversation turn
type TurnRole string

const (
	RoleUser  TurnRole = "user"
	RoleAgent TurnRole = "agent"
)

// ChatTurn represents one message of a conversation
type ChatTurn struct {
	Role      TurnRole  `json:"role"`
	Text      string    `json:"text"`
	Tool      string    `json:"tool,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatRequest represents an inbound agent turn request
type ChatRequest struct {
	Input     string   `json:"input"`
	Mode      ChatMode `json:"mode" validate:"chatmode"`
	SessionID string   `json:"session_id"`
}

// ChatResponse represents the outcome of one agent turn
type ChatResponse struct {
	SessionID      string         `json:"session_id"`
	ToolUsed       string         `json:"tool_used"`
	Text           string         `json:"text"`
	UsedModel      string         `json:"used_model,omitempty"`
	Health         *HealthReport  `json:"health,omitempty"`
	Metrics        *MetricsSeries `json:"metrics,omitempty"`
	ReportMarkdown string         `json:"report_markdown,omitempty"`
}

// ReportRequest represents a report generation request
type ReportRequest struct {
	Health  *HealthReport  `json:"health,omitempty"`
	Metrics *MetricsSeries `json:"metrics,omitempty"`
}

// ReportResult represents a generated narrative report
type ReportResult struct {
	ReportMarkdown string `json:"report_markdown"`
	UsedModel      string `json:"used_model"`
}

// SupervisorResult represents the legacy plain-chat response
type SupervisorResult struct {
	Intent    string `json:"intent"`
	Text      string `json:"text"`
	UsedModel string `json:"used_model"`
}

// ModelInfo represents one narrative model listing entry
type ModelInfo struct {
	Name                    string   `json:"name"`
	SupportsGenerateContent bool     `json:"supports_generate_content"`
	Methods                 []string `json:"methods"`
}
