package types

// SessionData is the serializable snapshot of a Session, written and
// read by a SessionStore backend. It carries exactly the fields the
// spec requires to survive a restart: conversation, accounting, todos,
// memory, and policy-adjacent metadata; the Session aggregate itself
// owns the live mutex-guarded values this is copied from/into.
type SessionData struct {
	ID        string     `json:"id"`
	ParentID  string     `json:"parent_id,omitempty"`
	State     State      `json:"state"`
	Messages  []Message  `json:"messages"`
	Usage     TokenUsage `json:"usage"`
	Context   ContextUsage `json:"context"`
	Cost      []CostRecord `json:"cost"`
	Todos     []Todo     `json:"todos"`
	Memory    map[string]string `json:"memory,omitempty"`
	CreatedAt int64      `json:"created_at_ms"`
	UpdatedAt int64      `json:"updated_at_ms"`
}
