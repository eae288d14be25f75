// Package llm defines the Converse contract between the agent runtime and
// the model provider, plus the production HTTP adapter and a test double.
package llm

import "context"

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// InferenceConfig carries the per-call sampling parameters.
type InferenceConfig struct {
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	TopP        float64 `json:"top_p"`
}

// ConverseRequest is one non-streaming model invocation.
type ConverseRequest struct {
	ModelID  string          `json:"model_id"`
	System   string          `json:"system,omitempty"`
	Messages []Message       `json:"messages"`
	Config   InferenceConfig `json:"inference_config"`
}

// Usage reports token consumption for one call.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// ConverseResponse is the model's reply.
type ConverseResponse struct {
	Content     string `json:"content"`
	Usage       Usage  `json:"usage"`
	LatencyMS   int64  `json:"latency_ms"`
	StopReason  string `json:"stop_reason"`
	ServiceTier string `json:"service_tier,omitempty"`
}

// ConverseClient is the single model capability the runtime depends on.
// No streaming: one request, one complete response.
type ConverseClient interface {
	Converse(ctx context.Context, req *ConverseRequest) (*ConverseResponse, error)

	// Close releases the underlying transport.
	Close() error
}
