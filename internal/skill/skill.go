// Package skill parses and validates the frontmatter of loadable skill
// documents and enforces the allowed_tools gate the Agent Loop applies
// ahead of permission policy (see internal/permission).
package skill

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/opencode-ai/agentcore/internal/permission"
)

// Kind classifies what a loaded skill contributes to the augmented
// system prompt / tool registry once it fires.
type Kind string

const (
	KindInstruction Kind = "instruction"
	KindTool        Kind = "tool"
	KindAgent       Kind = "agent"
)

// frontmatter is the YAML header a skill document carries between a
// pair of "---" fences, ahead of its markdown body.
type frontmatter struct {
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description"`
	Kind         Kind     `yaml:"kind"`
	AllowedTools []string `yaml:"allowed_tools,omitempty"`
}

// Skill is a parsed, validated skill document: frontmatter plus body.
type Skill struct {
	Name         string
	Description  string
	Kind         Kind
	AllowedTools []permission.Rule
	Body         string
}

// Parse splits raw into a YAML frontmatter block and a markdown body,
// validates the frontmatter against the known schema, and returns the
// assembled Skill. raw must open with a "---" fence line; anything else
// is rejected rather than silently treated as bodyless.
func Parse(raw string) (*Skill, error) {
	header, body, err := splitFrontmatter(raw)
	if err != nil {
		return nil, err
	}

	var fm frontmatter
	if err := yaml.Unmarshal([]byte(header), &fm); err != nil {
		return nil, fmt.Errorf("skill: invalid frontmatter: %w", err)
	}
	if err := fm.validate(); err != nil {
		return nil, err
	}

	rules := make([]permission.Rule, 0, len(fm.AllowedTools))
	for _, pattern := range fm.AllowedTools {
		tool, argPattern := splitToolPattern(pattern)
		rules = append(rules, permission.Rule{Tool: tool, ArgPattern: argPattern})
	}

	return &Skill{
		Name:         fm.Name,
		Description:  fm.Description,
		Kind:         fm.Kind,
		AllowedTools: rules,
		Body:         strings.TrimSpace(body),
	}, nil
}

func (fm frontmatter) validate() error {
	if fm.Name == "" {
		return fmt.Errorf("skill: frontmatter missing required field \"name\"")
	}
	switch fm.Kind {
	case KindInstruction, KindTool, KindAgent:
	case "":
		return fmt.Errorf("skill %q: frontmatter missing required field \"kind\"", fm.Name)
	default:
		return fmt.Errorf("skill %q: unknown kind %q (want instruction, tool, or agent)", fm.Name, fm.Kind)
	}
	return nil
}

// splitFrontmatter separates the "---"-fenced YAML header from the
// markdown body that follows it.
func splitFrontmatter(raw string) (header, body string, err error) {
	raw = strings.TrimLeft(raw, "\n")
	const fence = "---"
	if !strings.HasPrefix(raw, fence) {
		return "", "", fmt.Errorf("skill: document does not open with a %q frontmatter fence", fence)
	}
	rest := raw[len(fence):]
	idx := strings.Index(rest, "\n"+fence)
	if idx < 0 {
		return "", "", fmt.Errorf("skill: unterminated frontmatter (no closing %q fence)", fence)
	}
	header = rest[:idx]
	body = rest[idx+len(fence)+1:]
	return header, body, nil
}

// splitToolPattern divides an allowed_tools entry like "bash(git *)" or
// "read" into the bare tool name and its optional argument glob.
func splitToolPattern(entry string) (tool, argPattern string) {
	entry = strings.TrimSpace(entry)
	open := strings.Index(entry, "(")
	if open < 0 || !strings.HasSuffix(entry, ")") {
		return entry, ""
	}
	return entry[:open], entry[open+1 : len(entry)-1]
}

// Permits reports whether this skill's allowed_tools rules cover a call
// to tool with canonical argument string arg. A skill with no
// allowed_tools set imposes no restriction.
func (s *Skill) Permits(tool, arg string) bool {
	if len(s.AllowedTools) == 0 {
		return true
	}
	for _, r := range s.AllowedTools {
		if r.Matches(tool, arg) {
			return true
		}
	}
	return false
}

// Restricting reports whether s carries an allowed_tools restriction at
// all, i.e. whether it participates in the gate in Permits.
func (s *Skill) Restricting() bool {
	return len(s.AllowedTools) > 0
}
