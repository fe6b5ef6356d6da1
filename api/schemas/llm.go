// File: api/schemas/llm.go
package schemas

import "context"

// ModelTier allows for selecting a large language model based on a preference
// for speed versus advanced capabilities.
type ModelTier string

const (
	TierFast     ModelTier = "fast"     // Classification and yes/no judgments.
	TierPowerful ModelTier = "powerful" // Planning, step decisions, selector search.
)

// GenerationOptions provides detailed parameters to control the text generation
// process of the LLM.
type GenerationOptions struct {
	Temperature     float32 `json:"temperature"`
	ForceJSONFormat bool    `json:"force_json_format"`
	TopP            float32 `json:"top_p"`
	TopK            int     `json:"top_k"`
}

// GenerationRequest is one oracle round-trip: prompts, tier, and options.
type GenerationRequest struct {
	SystemPrompt string            `json:"system_prompt"`
	UserPrompt   string            `json:"user_prompt"`
	Tier         ModelTier         `json:"tier"`
	Options      GenerationOptions `json:"options"`
}

// LLMClient is the text-in, text-out oracle. Implementations must honor ctx
// cancellation.
type LLMClient interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	Close() error
}
