package types

// Model describes one LLM model a provider exposes: its capabilities and
// pricing, used for routing and cost accounting.
type Model struct {
	ID                string       `json:"id"`
	Name              string       `json:"name"`
	ProviderID        string       `json:"provider_id"`
	ContextLength     int          `json:"context_length"`
	MaxOutputTokens   int          `json:"max_output_tokens,omitempty"`
	SupportsTools     bool         `json:"supports_tools"`
	SupportsVision    bool         `json:"supports_vision"`
	SupportsReasoning bool         `json:"supports_reasoning,omitempty"`
	InputPrice        float64      `json:"input_price,omitempty"`  // USD per 1M input tokens
	OutputPrice       float64      `json:"output_price,omitempty"` // USD per 1M output tokens
	Options           ModelOptions `json:"options,omitempty"`
}

// ModelOptions carries model-specific tuning knobs and feature flags.
type ModelOptions struct {
	Temperature    *float64 `json:"temperature,omitempty"`
	TopP           *float64 `json:"top_p,omitempty"`
	PromptCaching  bool     `json:"prompt_caching,omitempty"`
	ExtendedOutput bool     `json:"extended_output,omitempty"`
}
