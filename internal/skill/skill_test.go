package skill

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleInstruction = `---
name: release-notes
description: Draft release notes from merged PRs
kind: instruction
---
Summarize merged PRs into a changelog entry.
`

const sampleToolWithAllowedTools = `---
name: git-helper
description: Restricted git operations
kind: tool
allowed_tools:
  - "bash(git *)"
  - read
---
Use git commands to inspect repo state.
`

func TestParseValidInstructionSkill(t *testing.T) {
	s, err := Parse(sampleInstruction)
	require.NoError(t, err)
	assert.Equal(t, "release-notes", s.Name)
	assert.Equal(t, KindInstruction, s.Kind)
	assert.False(t, s.Restricting())
	assert.Contains(t, s.Body, "Summarize merged PRs")
}

func TestParseAllowedToolsPattern(t *testing.T) {
	s, err := Parse(sampleToolWithAllowedTools)
	require.NoError(t, err)
	require.True(t, s.Restricting())

	assert.True(t, s.Permits("bash", "git status"))
	assert.False(t, s.Permits("bash", "rm -rf /"))
	assert.True(t, s.Permits("read", "anything"))
	assert.False(t, s.Permits("write", "anything"))
}

func TestParseRejectsMissingFence(t *testing.T) {
	_, err := Parse("no frontmatter here")
	assert.Error(t, err)
}

func TestParseRejectsUnknownKind(t *testing.T) {
	_, err := Parse("---\nname: x\nkind: bogus\n---\nbody\n")
	assert.Error(t, err)
}

func TestParseRejectsMissingName(t *testing.T) {
	_, err := Parse("---\nkind: instruction\n---\nbody\n")
	assert.Error(t, err)
}

func TestGateAllowsWhenNoSkillRestricts(t *testing.T) {
	s, err := Parse(sampleInstruction)
	require.NoError(t, err)
	assert.True(t, Gate([]*Skill{s}, "bash", map[string]any{"command": "rm -rf /"}))
}

func TestGateDeniesOutsideAllowedTools(t *testing.T) {
	s, err := Parse(sampleToolWithAllowedTools)
	require.NoError(t, err)
	assert.False(t, Gate([]*Skill{s}, "write", map[string]any{"file_path": "x"}))
	assert.True(t, Gate([]*Skill{s}, "bash", map[string]any{"command": "git log"}))
}

func TestParseLoadDirectiveExtractsSkill(t *testing.T) {
	meta := []byte(`{"_load_skill":true,"skill_name":"override","skill_content":"---\nname: inline\nkind: instruction\n---\nbody text\n"}`)
	s, err := ParseLoadDirective(meta)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "override", s.Name)
}

func TestParseLoadDirectiveIgnoresAbsentFlag(t *testing.T) {
	s, err := ParseLoadDirective([]byte(`{"other":"field"}`))
	require.NoError(t, err)
	assert.Nil(t, s)
}
