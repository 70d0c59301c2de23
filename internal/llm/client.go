// Package llm abstracts the narrative model behind a small client interface
// so agent logic stays independent of the upstream wire format.
package llm

import (
	"context"

	"infracopilot/internal/types"
)

// Message roles understood by the narrative model
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Message represents one prior conversation turn passed as generation context
type Message struct {
	Role string
	Text string
}

// GenerateRequest represents a single narrative generation request
type GenerateRequest struct {
	SystemInstruction string
	UserText          string
	History           []Message
	Temperature       float64
	MaxTokens         int
}

// Client represents a narrative model client
type Client interface {
	// Generate produces a completion for the request
	Generate(ctx context.Context, req GenerateRequest) (string, error)
	// ListModels enumerates the models available to the configured key
	ListModels(ctx context.Context) ([]types.ModelInfo, error)
	// Model returns the configured model name
	Model() string
}
