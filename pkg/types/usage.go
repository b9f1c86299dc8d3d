package types

// TokenUsage accumulates additively per session, per spec.md §3.
type TokenUsage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
	Total      int `json:"total"`
	CacheRead  int `json:"cache_read,omitempty"`
	CacheWrite int `json:"cache_write,omitempty"`
}

// Add accumulates delta into u, returning the updated value.
func (u TokenUsage) Add(delta TokenUsage) TokenUsage {
	u.Prompt += delta.Prompt
	u.Completion += delta.Completion
	u.Total += delta.Total
	u.CacheRead += delta.CacheRead
	u.CacheWrite += delta.CacheWrite
	return u
}

// ContextUsage tracks context-window consumption for a session.
type ContextUsage struct {
	Used    int     `json:"used"`
	Max     int     `json:"max"`
	Percent float64 `json:"percent"`
	Turns   int     `json:"turns"`
}

// Recompute refreshes Percent from Used/Max, enforcing Max >= 1 per the
// session invariant in spec.md §3.
func (c *ContextUsage) Recompute() {
	if c.Max < 1 {
		c.Max = 1
	}
	c.Percent = float64(c.Used) / float64(c.Max)
}

// CostRecord is one line item contributing to a session's total cost.
type CostRecord struct {
	Label        string  `json:"label"`
	ProviderID   string  `json:"provider_id"`
	ModelID      string  `json:"model_id"`
	Usage        TokenUsage `json:"usage"`
	CostUSD      float64 `json:"cost_usd"`
	RecordedAtMS int64   `json:"recorded_at_ms"`
}
