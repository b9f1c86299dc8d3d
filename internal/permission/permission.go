// Package permission implements the declarative tool-call permission
// policy: ordered deny/allow/ask rule buckets evaluated against a
// canonicalized form of the tool's arguments.
package permission

import "strings"

// Decision is the outcome of a policy check.
type Decision string

const (
	Allow Decision = "allow"
	Deny  Decision = "deny"
	Ask   Decision = "ask"
)

// Rule matches a tool name (optionally a glob, e.g. "mcp__*") plus an
// argument glob pattern evaluated against the tool's canonicalized
// argument string.
type Rule struct {
	Tool       string `json:"tool" yaml:"tool"`
	ArgPattern string `json:"arg_pattern,omitempty" yaml:"arg_pattern,omitempty"`
}

// Matches reports whether rule matches a call to tool with canonical
// argument string arg.
func (r Rule) Matches(tool, arg string) bool {
	if !matchToolName(r.Tool, tool) {
		return false
	}
	if r.ArgPattern == "" {
		return true
	}
	return matchGlob(r.ArgPattern, arg)
}

// matchToolName compares tool names case-insensitively as globs. A rule
// naming an MCP server ("mcp__name") also matches every tool of that
// server ("mcp__name__tool").
func matchToolName(pattern, tool string) bool {
	pattern, tool = strings.ToLower(pattern), strings.ToLower(tool)
	if strings.HasPrefix(pattern, "mcp__") && strings.HasPrefix(tool, pattern+"__") {
		return true
	}
	return matchGlob(pattern, tool)
}

// Policy is an ordered deny > allow > ask > default rule set. A disabled
// Policy always allows, per the contract's step 1.
type Policy struct {
	Disabled bool     `json:"disabled,omitempty" yaml:"disabled,omitempty"`
	Deny     []Rule   `json:"deny,omitempty" yaml:"deny,omitempty"`
	Allow    []Rule   `json:"allow,omitempty" yaml:"allow,omitempty"`
	Ask      []Rule   `json:"ask,omitempty" yaml:"ask,omitempty"`
	Default  Decision `json:"default,omitempty" yaml:"default,omitempty"`
}

// NewPolicy returns an empty, enabled policy defaulting to Ask.
func NewPolicy() *Policy {
	return &Policy{Default: Ask}
}

// Check evaluates tool/args against the policy: deny rules first, then
// allow, then ask, then the configured default (Ask if unset).
func (p *Policy) Check(tool string, args any) Decision {
	if p == nil || p.Disabled {
		return Allow
	}
	arg := Canonicalize(tool, args)

	for _, r := range p.Deny {
		if r.Matches(tool, arg) {
			return Deny
		}
	}
	for _, r := range p.Allow {
		if r.Matches(tool, arg) {
			return Allow
		}
	}
	for _, r := range p.Ask {
		if r.Matches(tool, arg) {
			return Ask
		}
	}
	if p.Default == "" {
		return Ask
	}
	return p.Default
}

// AddDenyRule appends a deny rule, evaluated before allow/ask.
func (p *Policy) AddDenyRule(r Rule) { p.Deny = append(p.Deny, r) }

// AddAllowRule appends an allow rule.
func (p *Policy) AddAllowRule(r Rule) { p.Allow = append(p.Allow, r) }

// AddAskRule appends an ask rule.
func (p *Policy) AddAskRule(r Rule) { p.Ask = append(p.Ask, r) }

// SetDefault sets the fallback decision used when no rule matches.
func (p *Policy) SetDefault(d Decision) { p.Default = d }

// Manager layers a process-wide global Policy with per-session override
// policies: deny rules from both scopes always apply; allow/ask/default
// come from the session scope when present, otherwise the global scope.
type Manager struct {
	global   *Policy
	sessions map[string]*Policy
}

// NewManager creates a Manager with the given global policy.
func NewManager(global *Policy) *Manager {
	if global == nil {
		global = NewPolicy()
	}
	return &Manager{global: global, sessions: make(map[string]*Policy)}
}

// SetSessionPolicy installs or replaces a session-scoped override policy.
func (m *Manager) SetSessionPolicy(sessionID string, p *Policy) {
	m.sessions[sessionID] = p
}

// ClearSessionPolicy removes a session's override, reverting it to the
// global policy alone.
func (m *Manager) ClearSessionPolicy(sessionID string) {
	delete(m.sessions, sessionID)
}

// Check evaluates tool/args for sessionID, merging global deny rules with
// the session's (if any) allow/ask/default.
func (m *Manager) Check(sessionID, tool string, args any) Decision {
	session := m.sessions[sessionID]
	arg := Canonicalize(tool, args)

	for _, r := range m.global.Deny {
		if r.Matches(tool, arg) {
			return Deny
		}
	}
	if session != nil {
		for _, r := range session.Deny {
			if r.Matches(tool, arg) {
				return Deny
			}
		}
	}

	active := session
	if active == nil {
		active = m.global
	}
	for _, r := range active.Allow {
		if r.Matches(tool, arg) {
			return Allow
		}
	}
	for _, r := range active.Ask {
		if r.Matches(tool, arg) {
			return Ask
		}
	}
	if active.Default == "" {
		return Ask
	}
	return active.Default
}
