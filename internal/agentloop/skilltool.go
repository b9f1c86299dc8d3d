package agentloop

import (
	"context"
	"encoding/json"

	"github.com/opencode-ai/agentcore/internal/skill"
	"github.com/opencode-ai/agentcore/internal/toolexec"
)

// skillTool adapts a Tool-kind skill into a toolexec.Tool so a skill
// auto-loaded mid-prompt (spec.md §4.5.1 step (e)) can be invoked in a
// later round the same way a built-in tool is: its body is the
// procedure the model follows, returned verbatim as output.
type skillTool struct {
	sk *skill.Skill
}

func newSkillTool(sk *skill.Skill) *skillTool {
	return &skillTool{sk: sk}
}

func (t *skillTool) ID() string          { return t.sk.Name }
func (t *skillTool) Description() string { return t.sk.Description }

func (t *skillTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{}}`)
}

func (t *skillTool) Execute(_ context.Context, _ json.RawMessage, _ *toolexec.Context) (toolexec.Result, error) {
	return toolexec.Result{Output: t.sk.Body, ExitCode: 0}, nil
}
