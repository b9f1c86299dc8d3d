package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPolicyCheckOrder(t *testing.T) {
	p := NewPolicy()
	p.AddAllowRule(Rule{Tool: "bash", ArgPattern: "*"})
	p.AddDenyRule(Rule{Tool: "bash", ArgPattern: "prefix:rm "})

	tests := []struct {
		name     string
		args     map[string]any
		expected Decision
	}{
		{"deny wins over allow", map[string]any{"command": "rm -rf /tmp"}, Deny},
		{"falls through to allow", map[string]any{"command": "echo hi"}, Allow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Check("bash", tt.args)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestPolicyDisabledAlwaysAllows(t *testing.T) {
	p := NewPolicy()
	p.Disabled = true
	p.AddDenyRule(Rule{Tool: "bash", ArgPattern: "*"})
	assert.Equal(t, Allow, p.Check("bash", map[string]any{"command": "rm -rf /"}))
}

func TestPolicyDefaultsToAsk(t *testing.T) {
	p := NewPolicy()
	assert.Equal(t, Ask, p.Check("edit", map[string]any{"file_path": "x.go"}))
}

func TestPolicyCustomDefault(t *testing.T) {
	p := NewPolicy()
	p.SetDefault(Deny)
	assert.Equal(t, Deny, p.Check("webfetch", map[string]any{"url": "http://example.com"}))
}

func TestManagerGlobalDenyAppliesAcrossSessions(t *testing.T) {
	global := NewPolicy()
	global.AddDenyRule(Rule{Tool: "bash", ArgPattern: "prefix:rm "})
	global.SetDefault(Allow)
	m := NewManager(global)

	session := NewPolicy()
	session.AddAllowRule(Rule{Tool: "bash", ArgPattern: "*"})
	m.SetSessionPolicy("s1", session)

	assert.Equal(t, Deny, m.Check("s1", "bash", map[string]any{"command": "rm -rf /"}))
	assert.Equal(t, Allow, m.Check("s1", "bash", map[string]any{"command": "echo hi"}))
	assert.Equal(t, Allow, m.Check("s2", "bash", map[string]any{"command": "echo hi"}))
}

func TestGlobMatching(t *testing.T) {
	tests := []struct {
		pattern string
		s       string
		want    bool
	}{
		{"git *", "git commit", true},
		{"git *", "gitweird commit", false},
		{"**.go", "a/b/c.go", true},
		{"*.go", "a/b/c.go", false},
		{"read?.txt", "read1.txt", true},
		{"read?.txt", "read12.txt", false},
		{"prefix:/tmp/", "/tmp/anything", true},
		{"prefix:/tmp/", "/var/anything", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchGlob(tt.pattern, tt.s), "pattern=%q s=%q", tt.pattern, tt.s)
	}
}

func TestMcpToolPrefixMatch(t *testing.T) {
	r := Rule{Tool: "mcp__*", ArgPattern: "*"}
	assert.True(t, r.Matches("mcp__filesystem__read", "{}"))
	assert.False(t, r.Matches("bash", "{}"))
}

func TestCanonicalizeByToolFamily(t *testing.T) {
	assert.Equal(t, "echo hi", Canonicalize("bash", map[string]any{"command": "echo hi"}))
	assert.Equal(t, "x.go", Canonicalize("edit", map[string]any{"file_path": "x.go"}))
	assert.Equal(t, "*.go", Canonicalize("glob", map[string]any{"pattern": "*.go"}))
	assert.Equal(t, "TODO .", Canonicalize("grep", map[string]any{"pattern": "TODO", "path": "."}))
	assert.Equal(t, "/tmp", Canonicalize("ls", map[string]any{"path": "/tmp"}))
}

func TestParseBashExtractsSubcommand(t *testing.T) {
	cmds, err := ParseBash("git commit -m 'hi'")
	assert.NoError(t, err)
	if assert.Len(t, cmds, 1) {
		assert.Equal(t, "git", cmds[0].Name)
		assert.Equal(t, "commit", cmds[0].Subcommand)
	}
}

func TestBuildPattern(t *testing.T) {
	assert.Equal(t, "git commit *", BuildPattern(Command{Name: "git", Subcommand: "commit"}))
	assert.Equal(t, "ls *", BuildPattern(Command{Name: "ls"}))
}
